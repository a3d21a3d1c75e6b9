package generator

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(t *testing.T, opts Options) *Generator {
	t.Helper()
	if opts.OutputDir == "" {
		opts.OutputDir = t.TempDir()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	}
	g, err := New(opts)
	require.NoError(t, err)
	return g
}

func acme() BusinessData {
	return BusinessData{
		ID:           "site-acme",
		BusinessName: "Acme Plumbing",
		Industry:     "plumbing",
		Email:        "hello@acme.test",
		PrimaryColor: "#0077CC",
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(raw)
}

func TestGenerateWritesCompleteSite(t *testing.T) {
	g := newTestGenerator(t, Options{})

	res, err := g.Generate(context.Background(), acme())
	require.NoError(t, err)

	assert.Equal(t, "/generated_sites/site-acme/index.html", res.SiteURL)
	names := make([]string, 0, len(res.Files))
	for _, f := range res.Files {
		names = append(names, f.Name)
		assert.Positive(t, f.Size, f.Name)
	}
	assert.ElementsMatch(t, []string{
		"index.html", "styles.css", "logo.svg", "hero-background.svg", "about-image.svg", "team-image.svg",
	}, names)

	html := readFile(t, filepath.Join(res.Dir, "index.html"))
	assert.Contains(t, html, "<title>Acme Plumbing - Expert Plumbing Solutions</title>")
	assert.Contains(t, html, "Expert Plumbing Services You Can Trust")
	assert.Contains(t, html, "Emergency Plumbing Repairs")
	assert.Contains(t, html, "Acme Plumbing saved the day!")
	assert.Contains(t, html, "&copy; 2026 Acme Plumbing")
	assert.Contains(t, html, `action="https://formsubmit.co/hello@acme.test"`)
	assert.NotContains(t, html, "Meet the Team")

	css := readFile(t, filepath.Join(res.Dir, "styles.css"))
	assert.Contains(t, css, "--color-accent: 205 100% 40%;")
	assert.Contains(t, css, "--color-accent-dark: 205 100% 30%;")

	assert.True(t, g.Exists("site-acme"))
}

func TestGenerateRendersOptionalSections(t *testing.T) {
	g := newTestGenerator(t, Options{FormAction: "https://forms.example/submit"})
	data := acme()
	data.OwnerName = "Ada Acme"
	data.YearsExperience = "15"
	data.Values = "Honesty\nSpeed\n\nCare\nExtra"
	data.Services = "Pipes\nDrains"

	res, err := g.Generate(context.Background(), data)
	require.NoError(t, err)

	html := readFile(t, filepath.Join(res.Dir, "index.html"))
	assert.Contains(t, html, "Meet the Team")
	assert.Contains(t, html, "With 15 years of experience in the industry, Ada Acme")
	assert.Contains(t, html, "We prioritize honesty in everything we do")
	assert.Contains(t, html, "We prioritize care in everything we do")
	assert.NotContains(t, html, "Extra")
	assert.Contains(t, html, "Professional drains services")
	assert.NotContains(t, html, "Emergency Plumbing Repairs")
	assert.Contains(t, html, `action="https://forms.example/submit"`)
}

func TestGenerateEscapesBusinessName(t *testing.T) {
	g := newTestGenerator(t, Options{})
	data := acme()
	data.BusinessName = "Tom's Plumbing & Sons <Est. 1990>"

	res, err := g.Generate(context.Background(), data)
	require.NoError(t, err)

	html := readFile(t, filepath.Join(res.Dir, "index.html"))
	escaped := "Tom&#39;s Plumbing &amp; Sons &lt;Est. 1990&gt;"
	assert.Contains(t, html, `<span class="header__name">`+escaped+`</span>`)
	assert.Contains(t, html, "About "+escaped)
	assert.NotContains(t, html, data.BusinessName)
}

func TestGenerateRequiresFields(t *testing.T) {
	g := newTestGenerator(t, Options{})

	_, err := g.Generate(context.Background(), BusinessData{ID: "x1", BusinessName: "Only Name"})

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"industry", "email"}, verr.Fields)
	assert.False(t, g.Exists("x1"))
}

func TestGenerateRejectsUnsafeIDs(t *testing.T) {
	g := newTestGenerator(t, Options{})
	for _, id := range []string{"", "../etc", "a/b", ".hidden", strings.Repeat("a", 65)} {
		data := acme()
		data.ID = id
		_, err := g.Generate(context.Background(), data)
		assert.ErrorIs(t, err, ErrInvalidSiteID, id)
	}
}

func TestGenerateMissingTemplate(t *testing.T) {
	g := newTestGenerator(t, Options{
		Templates: fstest.MapFS{"styles.css": &fstest.MapFile{Data: []byte("body{}")}},
	})

	_, err := g.Generate(context.Background(), acme())
	assert.ErrorIs(t, err, ErrTemplateMissing)
	assert.False(t, g.Exists("site-acme"))
}

func TestGenerateFromCustomTemplates(t *testing.T) {
	g := newTestGenerator(t, Options{
		Templates: fstest.MapFS{
			"index.html.tmpl": &fstest.MapFile{Data: []byte(`<title>{{.Name}}</title>`)},
			"styles.css":      &fstest.MapFile{Data: []byte(":root { --color-accent: 215 85% 45%; }")},
		},
	})
	data := acme()
	data.PrimaryColor = "#ff0000"

	res, err := g.Generate(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "<title>Acme Plumbing</title>", readFile(t, filepath.Join(res.Dir, "index.html")))
	assert.Contains(t, readFile(t, filepath.Join(res.Dir, "styles.css")), "--color-accent: 0 100% 50%;")
}

func TestRegenerationReplacesOutput(t *testing.T) {
	out := t.TempDir()
	g := newTestGenerator(t, Options{OutputDir: out})

	_, err := g.Generate(context.Background(), acme())
	require.NoError(t, err)

	data := acme()
	data.BusinessName = "Acme Pipes"
	res, err := g.Generate(context.Background(), data)
	require.NoError(t, err)

	html := readFile(t, filepath.Join(res.Dir, "index.html"))
	assert.Contains(t, html, "Acme Pipes")
	assert.NotContains(t, html, "Acme Plumbing")

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 1, "staging and previous directories are cleaned up")
	assert.Equal(t, "site-acme", entries[0].Name())
}

func TestConcurrentRegenerationIsSerialized(t *testing.T) {
	g := newTestGenerator(t, Options{})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Generate(context.Background(), acme())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.True(t, g.Exists("site-acme"))
}

func TestGenerateCopiesUploads(t *testing.T) {
	g := newTestGenerator(t, Options{})
	upload := filepath.Join(t.TempDir(), "my-logo.PNG")
	require.NoError(t, os.WriteFile(upload, []byte("png-bytes"), 0o644))

	data := acme()
	data.Uploads = map[string]string{"logo": upload, "hero_image": "/does/not/exist.jpg"}
	res, err := g.Generate(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, "png-bytes", readFile(t, filepath.Join(res.Dir, "logo.png")))
	assert.FileExists(t, filepath.Join(res.Dir, "hero-background.svg"))
	assert.Contains(t, readFile(t, filepath.Join(res.Dir, "index.html")), `src="logo.png"`)
}

func TestGenerateHonorsCancelledContext(t *testing.T) {
	g := newTestGenerator(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Generate(ctx, acme())
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, g.Exists("site-acme"))
}

func TestFilePath(t *testing.T) {
	g := newTestGenerator(t, Options{})

	p, err := g.FilePath("site-acme", "styles.css")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(g.OutputDir(), "site-acme", "styles.css"), p)

	for _, name := range []string{"", "../secret", ".env", `a\b`} {
		_, err := g.FilePath("site-acme", name)
		assert.ErrorIs(t, err, os.ErrNotExist, name)
	}
	_, err = g.FilePath("..", "index.html")
	assert.ErrorIs(t, err, ErrInvalidSiteID)
}

func TestArchive(t *testing.T) {
	g := newTestGenerator(t, Options{})

	var buf bytes.Buffer
	assert.ErrorIs(t, g.Archive(&buf, "site-acme"), ErrSiteNotGenerated)

	_, err := g.Generate(context.Background(), acme())
	require.NoError(t, err)

	buf.Reset()
	require.NoError(t, g.Archive(&buf, "site-acme"))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "index.html")
	assert.Contains(t, names, "styles.css")
	assert.Len(t, names, 6)
}
