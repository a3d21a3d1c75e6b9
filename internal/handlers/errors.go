package handlers

import (
	"errors"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/dto"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/generator"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/repository"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/services"
	"github.com/gofiber/fiber/v2"
)

// classify maps domain errors to an HTTP status and, for input problems,
// per-field messages. ok is false for errors that should surface as 500.
func classify(err error) (status int, fields map[string]string, ok bool) {
	var verr *generator.ValidationError
	var ferr *services.FieldError

	switch {
	case errors.As(err, &verr):
		fields = make(map[string]string, len(verr.Fields))
		for _, f := range verr.Fields {
			fields[f] = "required"
		}
		return fiber.StatusUnprocessableEntity, fields, true
	case errors.As(err, &ferr):
		return fiber.StatusUnprocessableEntity, ferr.Fields, true
	case errors.Is(err, services.ErrConsentRequired),
		errors.Is(err, services.ErrUnknownPlan):
		return fiber.StatusBadRequest, nil, true
	case errors.Is(err, services.ErrInvalidToken):
		return fiber.StatusUnauthorized, nil, true
	case errors.Is(err, services.ErrSiteLimit):
		return fiber.StatusPaymentRequired, nil, true
	case errors.Is(err, services.ErrForbidden):
		return fiber.StatusForbidden, nil, true
	case errors.Is(err, services.ErrSiteNotFound),
		errors.Is(err, services.ErrFileNotFound),
		errors.Is(err, services.ErrNoSubscription),
		errors.Is(err, repository.ErrNotFound):
		return fiber.StatusNotFound, nil, true
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrSubscriptionExists),
		errors.Is(err, repository.ErrDuplicate):
		return fiber.StatusConflict, nil, true
	case errors.Is(err, generator.ErrTemplateMissing):
		return fiber.StatusServiceUnavailable, nil, false
	}
	return fiber.StatusInternalServerError, nil, false
}

// apiError writes the JSON error body for err. Unclassified errors go to the
// app error handler, which hides their details.
func apiError(c *fiber.Ctx, err error) error {
	status, fields, ok := classify(err)
	if !ok {
		if status == fiber.StatusServiceUnavailable {
			return fiber.NewError(status, "Site generation is temporarily unavailable")
		}
		return err
	}
	return c.Status(status).JSON(dto.ErrorResponse{
		Error:   true,
		Message: errorMessage(err),
		Fields:  fields,
	})
}

func errorMessage(err error) string {
	var verr *generator.ValidationError
	var ferr *services.FieldError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.As(err, &ferr):
		return ferr.Error()
	case errors.Is(err, services.ErrSiteNotFound):
		return services.ErrSiteNotFound.Error()
	case errors.Is(err, services.ErrFileNotFound):
		return services.ErrFileNotFound.Error()
	case errors.Is(err, services.ErrInvalidTransition):
		return services.ErrInvalidTransition.Error()
	case errors.Is(err, services.ErrInvalidToken):
		return services.ErrInvalidToken.Error()
	}
	return err.Error()
}
