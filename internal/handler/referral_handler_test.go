package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ReMyndassessments/concern2care-api/internal/dto"
	"github.com/ReMyndassessments/concern2care-api/internal/handler"
	"github.com/ReMyndassessments/concern2care-api/internal/service"
)

type mockIntakeService struct {
	lastPayload dto.ReferralRequest
	response    dto.ReferralResponse
	err         error
}

func (m *mockIntakeService) Submit(_ context.Context, req dto.ReferralRequest) (dto.ReferralResponse, error) {
	m.lastPayload = req
	if m.err != nil {
		return dto.ReferralResponse{}, m.err
	}
	return m.response, nil
}

func (m *mockIntakeService) Status(_ context.Context, _ string) (dto.ReferralResponse, error) {
	if m.err != nil {
		return dto.ReferralResponse{}, m.err
	}
	return m.response, nil
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(body, target))
}

func referralPayload() dto.ReferralRequest {
	return dto.ReferralRequest{
		TeacherEmail: "teacher@school.edu",
		TeacherPIN:   "4821",
		StudentRef:   "student-42",
		ConcernText:  "Has difficulty staying engaged during group activities.",
	}
}

func TestReferralHandler_SubmitAccepted(t *testing.T) {
	svc := &mockIntakeService{response: dto.ReferralResponse{ReferenceID: "ref-1", State: "pending_review"}}
	logger := zerolog.New(io.Discard)
	app := fiber.New()
	handler.NewReferralHandler(svc, logger).Register(app.Group("/api/v1/referrals"))

	body, err := json.Marshal(referralPayload())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/referrals", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var response struct {
		Success bool                 `json:"success"`
		Data    dto.ReferralResponse `json:"data"`
		Message string               `json:"message"`
	}
	decodeResponse(t, resp, &response)

	require.True(t, response.Success)
	require.Equal(t, "ref-1", response.Data.ReferenceID)
	require.Equal(t, "pending_review", response.Data.State)
	require.Equal(t, "teacher@school.edu", svc.lastPayload.TeacherEmail)
}

func TestReferralHandler_NeverExposesGeneratedText(t *testing.T) {
	svc := &mockIntakeService{response: dto.ReferralResponse{ReferenceID: "ref-1", State: "pending_review"}}
	logger := zerolog.New(io.Discard)
	app := fiber.New()
	handler.NewReferralHandler(svc, logger).Register(app.Group("/api/v1/referrals"))

	body, err := json.Marshal(referralPayload())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/referrals", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "ai_response_text")
	require.NotContains(t, string(raw), "concern_text")
}

func TestReferralHandler_ServiceErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		statusCode int
	}{
		{name: "closed", err: service.ErrIntakeClosed, statusCode: fiber.StatusServiceUnavailable},
		{name: "duplicate", err: service.ErrIntakeDuplicate, statusCode: fiber.StatusTooManyRequests},
		{name: "generic", err: errors.New("boom"), statusCode: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockIntakeService{err: tc.err}
			logger := zerolog.New(io.Discard)
			app := fiber.New()
			handler.NewReferralHandler(svc, logger).Register(app.Group("/api/v1/referrals"))

			body, err := json.Marshal(referralPayload())
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/referrals", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.statusCode, resp.StatusCode)
		})
	}
}

func TestReferralHandler_Status(t *testing.T) {
	svc := &mockIntakeService{response: dto.ReferralResponse{ReferenceID: "ref-1", State: "held", Urgent: false}}
	logger := zerolog.New(io.Discard)
	app := fiber.New()
	handler.NewReferralHandler(svc, logger).Register(app.Group("/api/v1/referrals"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/referrals/ref-1", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Data dto.ReferralResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.Equal(t, "held", response.Data.State)
}

func TestReferralHandler_StatusNotFound(t *testing.T) {
	svc := &mockIntakeService{err: service.ErrReferralNotFound}
	logger := zerolog.New(io.Discard)
	app := fiber.New()
	handler.NewReferralHandler(svc, logger).Register(app.Group("/api/v1/referrals"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/referrals/unknown", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestReferralHandler_InvalidBody(t *testing.T) {
	svc := &mockIntakeService{}
	logger := zerolog.New(io.Discard)
	app := fiber.New()
	handler.NewReferralHandler(svc, logger).Register(app.Group("/api/v1/referrals"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/referrals", bytes.NewReader([]byte("not-json")))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
