package generator

import (
	"html/template"
	"strings"
	"time"
)

var featureIcons = []template.HTML{
	`<svg viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2"><path d="M20 6L9 17l-5-5"/></svg>`,
	`<svg viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2"><path d="M12 2l3.09 6.26L22 9.27l-5 4.87L7 21l1.18-6.86L2 9.27l6.91-1.01L12 2z"/></svg>`,
	`<svg viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2"><circle cx="12" cy="12" r="10"/><path d="M12 6v6l4 2"/></svg>`,
}

var defaultValues = []string{"Quality Service", "Professional Team", "Customer Satisfaction"}

const (
	maxFeatures = 3
	maxServices = 6

	defaultPhone      = "(555) 123-4567"
	defaultAddress    = "Your City, State"
	defaultYears      = "10+"
	defaultMission    = "Providing quality services to our community"
	defaultFormAction = "https://formsubmit.co/"
)

type feature struct {
	Title string
	Icon  template.HTML
}

type page struct {
	Name         string
	Tagline      string
	Headline     string
	Promise      string
	Mission      string
	Story        string
	Goals        string
	Owner        string
	Years        string
	Phone        string
	Email        string
	Address      string
	Features     []feature
	Services     []string
	Featured     *Testimonial
	Testimonials []Testimonial
	Images       map[string]string
	FormAction   string
	Year         int
}

func (g *Generator) buildPage(data BusinessData, images map[string]string, now time.Time) page {
	stock := g.catalog.Lookup(data.Industry)

	values := parseList(data.Values)
	if len(values) == 0 {
		values = defaultValues
	}
	if len(values) > maxFeatures {
		values = values[:maxFeatures]
	}
	features := make([]feature, len(values))
	for i, v := range values {
		features[i] = feature{Title: v, Icon: featureIcons[i%len(featureIcons)]}
	}

	services := parseList(data.Services)
	if len(services) == 0 {
		services = stock.Services
	}
	if len(services) > maxServices {
		services = services[:maxServices]
	}

	testimonials := make([]Testimonial, 0, len(stock.Testimonials))
	for _, t := range stock.Testimonials {
		t.Text = strings.ReplaceAll(t.Text, "{business}", data.BusinessName)
		testimonials = append(testimonials, t)
	}
	var featured *Testimonial
	if len(testimonials) > 0 {
		featured = &testimonials[0]
		testimonials = testimonials[1:]
		if len(testimonials) > 3 {
			testimonials = testimonials[:3]
		}
	}

	formAction := g.formAction
	if formAction == "" {
		formAction = defaultFormAction + data.Email
	}

	return page{
		Name:         data.BusinessName,
		Tagline:      stock.Tagline,
		Headline:     stock.Headline,
		Promise:      stock.Promise,
		Mission:      orDefault(data.MissionStatement, defaultMission),
		Story:        strings.TrimSpace(data.BusinessStory),
		Goals:        strings.TrimSpace(data.Goals),
		Owner:        strings.TrimSpace(data.OwnerName),
		Years:        orDefault(data.YearsExperience, defaultYears),
		Phone:        orDefault(data.Phone, defaultPhone),
		Email:        data.Email,
		Address:      orDefault(data.Address, defaultAddress),
		Features:     features,
		Services:     services,
		Featured:     featured,
		Testimonials: testimonials,
		Images:       images,
		FormAction:   formAction,
		Year:         now.Year(),
	}
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}
