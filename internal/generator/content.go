package generator

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed content/industries.yaml
var contentFS embed.FS

// Testimonial is one customer quote. Text may contain "{business}".
type Testimonial struct {
	Text   string `yaml:"text"`
	Author string `yaml:"author"`
}

// Initials returns up to two upper-case initials of the author.
func (t Testimonial) Initials() string {
	var b strings.Builder
	for i, word := range strings.Fields(t.Author) {
		if i == 2 {
			break
		}
		b.WriteString(strings.ToUpper(string([]rune(word)[:1])))
	}
	return b.String()
}

// IndustryContent is the stock copy for one industry. Empty fields fall back
// to the catalog default.
type IndustryContent struct {
	Tagline      string        `yaml:"tagline"`
	Headline     string        `yaml:"headline"`
	Promise      string        `yaml:"promise"`
	Services     []string      `yaml:"services"`
	Testimonials []Testimonial `yaml:"testimonials"`
}

type Catalog struct {
	Default    IndustryContent            `yaml:"default"`
	Industries map[string]IndustryContent `yaml:"industries"`
}

// DefaultCatalog parses the embedded industry catalog.
func DefaultCatalog() (*Catalog, error) {
	return LoadCatalog(contentFS, "content/industries.yaml")
}

func LoadCatalog(fsys fs.FS, name string) (*Catalog, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read content catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse content catalog: %w", err)
	}
	if len(c.Default.Services) == 0 || len(c.Default.Testimonials) == 0 {
		return nil, fmt.Errorf("content catalog: default services and testimonials are required")
	}
	return &c, nil
}

// Lookup returns the content for an industry with defaults filled in.
func (c *Catalog) Lookup(industry string) IndustryContent {
	key := strings.ToLower(strings.TrimSpace(industry))
	key = strings.ReplaceAll(key, " ", "_")
	out := c.Industries[key]
	d := c.Default
	if out.Tagline == "" {
		out.Tagline = d.Tagline
	}
	if out.Headline == "" {
		out.Headline = d.Headline
	}
	if out.Promise == "" {
		out.Promise = d.Promise
	}
	if len(out.Services) == 0 {
		out.Services = d.Services
	}
	if len(out.Testimonials) == 0 {
		out.Testimonials = d.Testimonials
	}
	return out
}

// Names lists the catalog industry keys, for the capture form's select box.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Industries))
	for name := range c.Industries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// parseList splits multi-line free text into trimmed, non-empty lines.
func parseList(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
