package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/api/http/handlers"
	"github.com/spec-kit/ticket-engine/internal/auth"
	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/events"
	"github.com/spec-kit/ticket-engine/internal/observability"
	"github.com/spec-kit/ticket-engine/internal/repository"
	"github.com/spec-kit/ticket-engine/internal/service"
)

type testServer struct {
	app    *fiber.App
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T, limiter *IPRateLimiter) *testServer {
	t.Helper()
	store := repository.NewMemoryStore()
	dispatcher := events.NewInMemoryDispatcher()
	tickets := service.NewTicketService(service.TicketDependencies{Store: store, Dispatcher: dispatcher})
	assignments := service.NewAssignmentService(service.AssignmentDependencies{Store: store, Dispatcher: dispatcher})
	technicians := service.NewTechnicianService(service.TechnicianDependencies{Store: store})
	metrics := observability.NewMetrics()
	tokens := auth.NewTokenManager("test-secret", 5)

	app := fiber.New()
	RegisterMiddlewares(app, MiddlewareConfig{
		Logger:  zap.NewNop(),
		Metrics: metrics,
		Timeout: 5 * time.Second,
		Limiter: limiter,
	})
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("ticket-engine", "test", store, nil, metrics),
		Tickets:        handlers.NewTicketsHandler(tickets, assignments),
		Technicians:    handlers.NewTechniciansHandler(technicians),
		Escalations:    handlers.NewEscalationsHandler(tickets, time.Hour),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})
	return &testServer{app: app, tokens: tokens}
}

func (s *testServer) token(t *testing.T, role domain.OperatorRole) string {
	t.Helper()
	token, _, err := s.tokens.GenerateToken("tester", role)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	decoded := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp.StatusCode, decoded
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil)
	agent := srv.token(t, domain.OperatorRoleAgent)
	admin := srv.token(t, domain.OperatorRoleAdmin)

	status, body := srv.do(t, fiber.MethodPost, "/tickets", agent, map[string]any{"title": "Printer down", "priority": 2})
	require.Equal(t, fiber.StatusCreated, status)
	ticket := body["data"].(map[string]any)
	assert.Equal(t, "open", ticket["status"])

	status, body = srv.do(t, fiber.MethodPost, "/technicians", agent, map[string]any{"name": "Alice"})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, body = srv.do(t, fiber.MethodPost, "/technicians", admin, map[string]any{"name": "Alice"})
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, true, body["data"].(map[string]any)["active"])

	status, body = srv.do(t, fiber.MethodPost, "/tickets/1/assign", agent, map[string]any{"technician_id": 1})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), body["data"].(map[string]any)["technician_id"])

	status, body = srv.do(t, fiber.MethodPost, "/tickets/1/assign", agent, map[string]any{"technician_id": 1})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "CONFLICT", errorCode(body))

	status, body = srv.do(t, fiber.MethodGet, "/tickets?include=technician", agent, nil)
	require.Equal(t, fiber.StatusOK, status)
	listed := body["data"].([]any)
	require.Len(t, listed, 1)
	assert.Equal(t, "Alice", listed[0].(map[string]any)["technician_name"])

	status, body = srv.do(t, fiber.MethodPost, "/tickets/1/close", agent, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "closed", body["data"].(map[string]any)["status"])

	status, body = srv.do(t, fiber.MethodGet, "/tickets/1/audit", agent, nil)
	require.Equal(t, fiber.StatusOK, status)
	entries := body["data"].([]any)
	require.Len(t, entries, 2)
	assert.Equal(t, "open", entries[0].(map[string]any)["previous_status"])
	assert.Equal(t, "assigned", entries[0].(map[string]any)["new_status"])
	assert.Equal(t, "closed", entries[1].(map[string]any)["new_status"])

	status, body = srv.do(t, fiber.MethodDelete, "/technicians/1", admin, nil)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "CONFLICT", errorCode(body))
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t, nil)
	agent := srv.token(t, domain.OperatorRoleAgent)

	testCases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{name: "missing ticket", method: fiber.MethodGet, path: "/tickets/99", status: fiber.StatusNotFound, code: "NOT_FOUND"},
		{name: "bad id", method: fiber.MethodGet, path: "/tickets/abc", status: fiber.StatusBadRequest, code: "VALIDATION_FAILED"},
		{name: "unknown status", method: fiber.MethodPut, path: "/tickets/1/status", body: map[string]any{"status": "paused"}, status: fiber.StatusBadRequest, code: "INVALID_STATUS"},
		{name: "blank title", method: fiber.MethodPost, path: "/tickets", body: map[string]any{"title": " ", "priority": 1}, status: fiber.StatusBadRequest, code: "VALIDATION_FAILED"},
		{name: "missing technician", method: fiber.MethodPost, path: "/tickets/1/assign", body: map[string]any{}, status: fiber.StatusBadRequest, code: "VALIDATION_FAILED"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := srv.do(t, tc.method, tc.path, agent, tc.body)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, errorCode(body))
		})
	}

	status, body := srv.do(t, fiber.MethodGet, "/tickets", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))
}

func TestHealthAndEscalationRoutes(t *testing.T) {
	srv := newTestServer(t, nil)

	status, body := srv.do(t, fiber.MethodGet, "/health/ready", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "ok", deps["store"])
	assert.Equal(t, "disabled", deps["redis"])

	agent := srv.token(t, domain.OperatorRoleAgent)
	status, _ = srv.do(t, fiber.MethodPost, "/escalations/run", agent, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body = srv.do(t, fiber.MethodPost, "/escalations/run", srv.token(t, domain.OperatorRoleAdmin), nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, body["data"].(map[string]any)["escalated"])

	status, body = srv.do(t, fiber.MethodGet, "/health/metrics", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body["data"], "sweeps")
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, NewIPRateLimiter(0.001, 2))

	for i := 0; i < 2; i++ {
		status, _ := srv.do(t, fiber.MethodGet, "/health/live", "", nil)
		require.Equal(t, fiber.StatusOK, status)
	}
	status, body := srv.do(t, fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Equal(t, "RATE_LIMITED", errorCode(body))

	assert.Nil(t, NewIPRateLimiter(0, 10))
}
