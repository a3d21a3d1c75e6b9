package services

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrGenerationFailed   = errors.New("site generation failed")
	ErrSiteNotFound       = errors.New("site not found")
	ErrFileNotFound       = errors.New("file not found")
	ErrForbidden          = errors.New("site belongs to another user")
	ErrInvalidTransition  = errors.New("invalid site status transition")
	ErrSiteLimit          = errors.New("site limit reached for current plan")
	ErrConsentRequired    = errors.New("consent to receive the download is required")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrSubscriptionExists = errors.New("an active subscription already exists")
	ErrNoSubscription     = errors.New("no active subscription")
	ErrUnknownPlan        = errors.New("unknown plan")
)

// FieldError reports per-field input problems.
type FieldError struct {
	Fields map[string]string
}

func newFieldError(field, message string) *FieldError {
	return &FieldError{Fields: map[string]string{field: message}}
}

func (e *FieldError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}
