// Package generator turns a business record into a static website on disk.
// It never touches the database; callers persist the returned Result.
package generator

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

const (
	indexTemplate = "index.html.tmpl"
	stylesheet    = "styles.css"
	IndexFile     = "index.html"
)

var (
	ErrTemplateMissing  = errors.New("site template missing")
	ErrInvalidSiteID    = errors.New("invalid site id")
	ErrSiteNotGenerated = errors.New("site has not been generated")
)

//go:embed templates
var templateFS embed.FS

//go:embed placeholders
var placeholderFS embed.FS

var siteIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ValidationError lists required fields missing from a record.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// Image slots and the base name each is written under.
var imageSlots = []struct {
	slot string
	base string
}{
	{"logo", "logo"},
	{"hero_image", "hero-background"},
	{"about_image", "about-image"},
	{"team_image", "team-image"},
}

// BusinessData is the generator input. Uploads maps an image slot (logo,
// hero_image, about_image, team_image) to a file on disk.
type BusinessData struct {
	ID               string            `json:"id"`
	BusinessName     string            `json:"business_name"`
	Industry         string            `json:"industry"`
	Email            string            `json:"email"`
	Phone            string            `json:"phone"`
	Address          string            `json:"address"`
	OwnerName        string            `json:"owner_name"`
	YearsExperience  string            `json:"years_experience"`
	BusinessStory    string            `json:"business_story"`
	MissionStatement string            `json:"mission_statement"`
	Values           string            `json:"values"`
	Goals            string            `json:"goals"`
	Services         string            `json:"services"`
	PrimaryColor     string            `json:"primary_color"`
	Uploads          map[string]string `json:"uploads,omitempty"`
}

// Validate checks the required fields.
func (b BusinessData) Validate() error {
	var missing []string
	if strings.TrimSpace(b.BusinessName) == "" {
		missing = append(missing, "business_name")
	}
	if strings.TrimSpace(b.Industry) == "" {
		missing = append(missing, "industry")
	}
	if strings.TrimSpace(b.Email) == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

type File struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

type Result struct {
	SiteID      string    `json:"site_id"`
	SiteURL     string    `json:"site_url"`
	Dir         string    `json:"directory"`
	Files       []File    `json:"files"`
	GeneratedAt time.Time `json:"generated_at"`
}

type Options struct {
	// OutputDir receives one directory per site.
	OutputDir string
	// Templates overrides the embedded templates. It must contain
	// index.html.tmpl and styles.css at its root.
	Templates fs.FS
	Catalog   *Catalog
	// FormAction is the contact form target written into generated pages.
	FormAction string
	Now        func() time.Time
}

type Generator struct {
	outDir     string
	templates  fs.FS
	catalog    *Catalog
	formAction string
	now        func() time.Time
	locks      sync.Map
}

func New(opts Options) (*Generator, error) {
	if opts.OutputDir == "" {
		return nil, errors.New("generator: output directory is required")
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("generator: create output dir: %w", err)
	}

	g := &Generator{
		outDir:     opts.OutputDir,
		templates:  opts.Templates,
		catalog:    opts.Catalog,
		formAction: opts.FormAction,
		now:        opts.Now,
	}
	if g.templates == nil {
		sub, err := fs.Sub(templateFS, "templates")
		if err != nil {
			return nil, err
		}
		g.templates = sub
	}
	if g.catalog == nil {
		c, err := DefaultCatalog()
		if err != nil {
			return nil, err
		}
		g.catalog = c
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g, nil
}

// TemplatesFromDir reads templates from a directory instead of the embedded set.
func TemplatesFromDir(dir string) fs.FS {
	return os.DirFS(dir)
}

func (g *Generator) Catalog() *Catalog {
	return g.catalog
}

func (g *Generator) OutputDir() string {
	return g.outDir
}

// SiteURL is the public path of a site's index page.
func SiteURL(siteID string) string {
	return "/generated_sites/" + siteID + "/" + IndexFile
}

// Generate renders the site for data into OutputDir/<id>, replacing any
// previous output atomically. Calls for the same site id are serialized.
func (g *Generator) Generate(ctx context.Context, data BusinessData) (*Result, error) {
	if !siteIDPattern.MatchString(data.ID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSiteID, data.ID)
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}

	unlock := g.lock(data.ID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tmpl, css, err := g.loadTemplates()
	if err != nil {
		return nil, err
	}

	staging, err := os.MkdirTemp(g.outDir, "."+data.ID+"-staging-")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	images, err := writeImages(staging, data.Uploads)
	if err != nil {
		return nil, err
	}

	now := g.now()
	page := g.buildPage(data, images, now)

	var html bytes.Buffer
	if err := tmpl.Execute(&html, page); err != nil {
		return nil, fmt.Errorf("render index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(staging, IndexFile), html.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("write index: %w", err)
	}

	color := data.PrimaryColor
	if color == "" {
		color = DefaultPrimaryColor
	}
	if err := os.WriteFile(filepath.Join(staging, stylesheet), []byte(applyAccent(css, color)), 0o644); err != nil {
		return nil, fmt.Errorf("write stylesheet: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	final := filepath.Join(g.outDir, data.ID)
	if err := swapDir(staging, final); err != nil {
		return nil, err
	}

	files, err := listFiles(final)
	if err != nil {
		return nil, err
	}

	return &Result{
		SiteID:      data.ID,
		SiteURL:     SiteURL(data.ID),
		Dir:         final,
		Files:       files,
		GeneratedAt: now,
	}, nil
}

// Exists reports whether the site has a generated index page.
func (g *Generator) Exists(siteID string) bool {
	if !siteIDPattern.MatchString(siteID) {
		return false
	}
	info, err := os.Stat(filepath.Join(g.outDir, siteID, IndexFile))
	return err == nil && info.Mode().IsRegular()
}

// FilePath resolves a file inside a site's directory. Names containing path
// separators or dot segments are rejected.
func (g *Generator) FilePath(siteID, name string) (string, error) {
	if !siteIDPattern.MatchString(siteID) {
		return "", ErrInvalidSiteID
	}
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: bad file name %q", fs.ErrNotExist, name)
	}
	return filepath.Join(g.outDir, siteID, name), nil
}

func (g *Generator) lock(siteID string) func() {
	v, _ := g.locks.LoadOrStore(siteID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (g *Generator) loadTemplates() (*template.Template, string, error) {
	raw, err := fs.ReadFile(g.templates, indexTemplate)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("%w: %s", ErrTemplateMissing, indexTemplate)
		}
		return nil, "", fmt.Errorf("read %s: %w", indexTemplate, err)
	}
	css, err := fs.ReadFile(g.templates, stylesheet)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("%w: %s", ErrTemplateMissing, stylesheet)
		}
		return nil, "", fmt.Errorf("read %s: %w", stylesheet, err)
	}

	tmpl, err := template.New(indexTemplate).
		Funcs(template.FuncMap{"lower": strings.ToLower}).
		Parse(string(raw))
	if err != nil {
		return nil, "", fmt.Errorf("parse %s: %w", indexTemplate, err)
	}
	return tmpl, string(css), nil
}

// writeImages fills every image slot in dir, copying the upload when one
// exists and the embedded placeholder otherwise. It returns slot -> file name.
func writeImages(dir string, uploads map[string]string) (map[string]string, error) {
	names := make(map[string]string, len(imageSlots))
	for _, s := range imageSlots {
		if src := uploads[s.slot]; src != "" {
			if _, err := os.Stat(src); err == nil {
				name := s.base + strings.ToLower(filepath.Ext(src))
				if err := copyFile(src, filepath.Join(dir, name)); err != nil {
					return nil, fmt.Errorf("copy %s: %w", s.slot, err)
				}
				names[s.slot] = name
				continue
			}
		}

		name := s.base + ".svg"
		raw, err := placeholderFS.ReadFile("placeholders/" + name)
		if err != nil {
			return nil, fmt.Errorf("placeholder %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), raw, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
		names[s.slot] = name
	}
	return names, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// swapDir moves staging into place at final. An existing final directory is
// renamed aside first and removed once the new one is in place.
func swapDir(staging, final string) error {
	if err := os.Chmod(staging, 0o755); err != nil {
		return fmt.Errorf("chmod staging dir: %w", err)
	}

	var old string
	if _, err := os.Stat(final); err == nil {
		old = final + ".old-" + filepath.Base(staging)
		if err := os.Rename(final, old); err != nil {
			return fmt.Errorf("move previous output aside: %w", err)
		}
	}
	if err := os.Rename(staging, final); err != nil {
		if old != "" {
			_ = os.Rename(old, final)
		}
		return fmt.Errorf("publish site dir: %w", err)
	}
	if old != "" {
		_ = os.RemoveAll(old)
	}
	return nil
}

func listFiles(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list generated files: %w", err)
	}
	files := make([]File, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		files = append(files, File{
			Name: e.Name(),
			Type: fileType(e.Name()),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

func fileType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html":
		return "html"
	case ".css":
		return "css"
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg":
		return "image"
	default:
		return "other"
	}
}
