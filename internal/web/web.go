// Package web renders the server-side HTML pages.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/dto"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/models"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/services"
	"github.com/gofiber/fiber/v2"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"year": func() int { return time.Now().Year() },
	"date": formatDate,
	"label": func(s string) string {
		s = strings.ReplaceAll(s, "_", " ")
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
}

// Page holds the fields the shared layout reads. Every page type embeds it.
type Page struct {
	Title       string
	Message     string
	MessageType string
}

type CapturePage struct {
	Page
	Form       *dto.CaptureRequest
	Industries []string
	Fields     map[string]string
}

type PreviewPage struct {
	Page
	Site     *models.Site
	IndexURL string
}

type LoginPage struct {
	Page
	Email string
}

type MessagePage struct {
	Page
	Body     string
	LinkURL  string
	LinkText string
}

type DashboardPage struct {
	Page
	Email        string
	Sites        []models.Site
	Subscription *models.Subscription
	Features     services.PlanFeatures
	LeadCount    int
}

type LeadsPage struct {
	Page
	Leads []models.EmailLead
	Total int64
}

type PrivacyPage struct {
	Page
	Contact string
}

type Renderer struct {
	t *template.Template
}

func New() (*Renderer, error) {
	t, err := template.New("pages").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse page templates: %w", err)
	}
	return &Renderer{t: t}, nil
}

// Render executes the named page into the response with the given status.
func (r *Renderer) Render(c *fiber.Ctx, status int, name string, data interface{}) error {
	var buf bytes.Buffer
	if err := r.t.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	c.Status(status)
	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}

func formatDate(v interface{}) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return "-"
		}
		return t.Format("Jan 2, 2006")
	case *time.Time:
		if t == nil || t.IsZero() {
			return "-"
		}
		return t.Format("Jan 2, 2006")
	}
	return "-"
}
