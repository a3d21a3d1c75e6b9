package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"gopkg.in/gomail.v2"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Mailer delivers the transactional emails the service sends.
type Mailer interface {
	SendLoginLink(ctx context.Context, to, link string, ttl time.Duration) error
	SendDownloadLink(ctx context.Context, to, businessName, link string, ttl time.Duration) error
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(host string, port int, user, password, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
	}
}

func (s *SMTPMailer) SendLoginLink(ctx context.Context, to, link string, ttl time.Duration) error {
	m, err := loginMessage(s.from, to, link, ttl)
	if err != nil {
		return err
	}
	return s.send(ctx, m)
}

func (s *SMTPMailer) SendDownloadLink(ctx context.Context, to, businessName, link string, ttl time.Duration) error {
	m, err := downloadMessage(s.from, to, businessName, link, ttl)
	if err != nil {
		return err
	}
	return s.send(ctx, m)
}

// send dials per message. gomail has no context support, so cancellation
// is only checked before dialing.
func (s *SMTPMailer) send(ctx context.Context, m *gomail.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send email via SMTP: %w", err)
	}
	return nil
}

func loginMessage(from, to, link string, ttl time.Duration) (*gomail.Message, error) {
	body, err := render("login.html", map[string]string{"Link": link, "TTL": humanTTL(ttl)})
	if err != nil {
		return nil, err
	}
	return newMessage(from, to, "Your SiteGen sign-in link", body, link), nil
}

func downloadMessage(from, to, businessName, link string, ttl time.Duration) (*gomail.Message, error) {
	body, err := render("download.html", map[string]string{
		"BusinessName": businessName,
		"Link":         link,
		"TTL":          humanTTL(ttl),
	})
	if err != nil {
		return nil, err
	}
	return newMessage(from, to, fmt.Sprintf("Download your %s website", businessName), body, link), nil
}

func newMessage(from, to, subject, html, link string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", subject+"\n\n"+link+"\n")
	m.AddAlternative("text/html", html)
	return m
}

func render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render email %s: %w", name, err)
	}
	return buf.String(), nil
}

func humanTTL(d time.Duration) string {
	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		if n := int(d / (24 * time.Hour)); n > 1 {
			return fmt.Sprintf("%d days", n)
		}
		return "1 day"
	case d >= time.Hour && d%time.Hour == 0:
		if n := int(d / time.Hour); n > 1 {
			return fmt.Sprintf("%d hours", n)
		}
		return "1 hour"
	default:
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
}

// LogMailer writes links to the log instead of sending mail. It is used when
// no SMTP server is configured.
type LogMailer struct {
	Logger *slog.Logger
}

func (l LogMailer) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func (l LogMailer) SendLoginLink(_ context.Context, to, link string, _ time.Duration) error {
	l.logger().Info("login link (mail disabled)", "to", to, "link", link)
	return nil
}

func (l LogMailer) SendDownloadLink(_ context.Context, to, businessName, link string, _ time.Duration) error {
	l.logger().Info("download link (mail disabled)", "to", to, "business", businessName, "link", link)
	return nil
}
