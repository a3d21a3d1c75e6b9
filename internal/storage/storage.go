// Package storage mirrors generated sites to S3-compatible object storage
// (Supabase Storage exposes the S3 API).
package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Publisher copies a site's files somewhere durable after generation.
type Publisher interface {
	// Publish uploads files (absolute paths) under the site's prefix and
	// returns the public URL of index.html, or "" when none is available.
	Publish(ctx context.Context, siteID string, files []string) (string, error)
}

// NoopPublisher is used when object storage is not configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, []string) (string, error) {
	return "", nil
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Publisher struct {
	client    putObjectAPI
	bucket    string
	publicURL string
}

type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	PublicURL string
}

func NewS3Publisher(ctx context.Context, cfg S3Config) (*S3Publisher, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})
	return &S3Publisher{client: client, bucket: cfg.Bucket, publicURL: strings.TrimSuffix(cfg.PublicURL, "/")}, nil
}

func (p *S3Publisher) Publish(ctx context.Context, siteID string, files []string) (string, error) {
	for _, f := range files {
		if err := p.put(ctx, objectKey(siteID, filepath.Base(f)), f); err != nil {
			return "", err
		}
	}
	if p.publicURL == "" {
		return "", nil
	}
	return p.publicURL + "/" + objectKey(siteID, "index.html"), nil
}

func (p *S3Publisher) put(ctx context.Context, key, file string) error {
	body, err := os.Open(file)
	if err != nil {
		return err
	}
	defer body.Close()

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType(key)),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func objectKey(siteID, name string) string {
	return path.Join("sites", siteID, name)
}

func contentType(name string) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
