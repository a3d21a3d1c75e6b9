package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/dto"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/generator"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/repository"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		ok     bool
	}{
		{&generator.ValidationError{Fields: []string{"email"}}, fiber.StatusUnprocessableEntity, true},
		{services.ErrConsentRequired, fiber.StatusBadRequest, true},
		{services.ErrInvalidToken, fiber.StatusUnauthorized, true},
		{services.ErrSiteLimit, fiber.StatusPaymentRequired, true},
		{services.ErrForbidden, fiber.StatusForbidden, true},
		{fmt.Errorf("lookup: %w", repository.ErrNotFound), fiber.StatusNotFound, true},
		{services.ErrInvalidTransition, fiber.StatusConflict, true},
		{generator.ErrTemplateMissing, fiber.StatusServiceUnavailable, false},
		{errors.New("disk full"), fiber.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		status, _, ok := classify(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.ok, ok, tc.err.Error())
	}
}

func TestClassifyValidationFields(t *testing.T) {
	_, fields, _ := classify(&generator.ValidationError{Fields: []string{"business_name", "industry"}})
	assert.Equal(t, map[string]string{"business_name": "required", "industry": "required"}, fields)
}

func TestAPIError(t *testing.T) {
	app := fiber.New()
	app.Get("/known", func(c *fiber.Ctx) error { return apiError(c, services.ErrSiteNotFound) })
	app.Get("/unknown", func(c *fiber.Ctx) error { return apiError(c, errors.New("boom")) })

	resp, err := app.Test(httptest.NewRequest("GET", "/known", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var payload dto.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.True(t, payload.Error)
	assert.Equal(t, services.ErrSiteNotFound.Error(), payload.Message)

	resp, err = app.Test(httptest.NewRequest("GET", "/unknown", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestChecked(t *testing.T) {
	for _, v := range []string{"on", "true", "1", "YES", " yes "} {
		assert.True(t, checked(v), v)
	}
	for _, v := range []string{"", "off", "false", "0", "no"} {
		assert.False(t, checked(v), v)
	}
}
