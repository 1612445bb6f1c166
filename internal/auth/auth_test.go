package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/events"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, expires, err := tm.GenerateToken("ops@example.com", domain.OperatorRoleAdmin)
	require.NoError(t, err)
	assert.False(t, expires.IsZero())

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.Equal(t, domain.OperatorRoleAdmin, claims.Role)

	_, err = NewTokenManager("other", 5).ParseToken(token)
	assert.Error(t, err)

	_, _, err = tm.GenerateToken("ops", domain.OperatorRole("root"))
	assert.Error(t, err)
	_, _, err = tm.GenerateToken(" ", domain.OperatorRoleAgent)
	assert.Error(t, err)
}

func newApp(tm *TokenManager) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).SendString(domainErr.Code)
		},
	})
	mw := NewAuthMiddleware(tm)
	app.Get("/agent", mw.Handle, RequireRole(domain.OperatorRoleAgent, domain.OperatorRoleAdmin), func(c *fiber.Ctx) error {
		return c.SendString(events.ActorFrom(c.UserContext()).Subject)
	})
	app.Get("/admin", mw.Handle, RequireRole(domain.OperatorRoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	return app
}

func TestMiddlewareRoles(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	app := newApp(tm)
	agentToken, _, err := tm.GenerateToken("agent-7", domain.OperatorRoleAgent)
	require.NoError(t, err)

	testCases := []struct {
		name   string
		path   string
		header string
		status int
		body   string
	}{
		{name: "missing header", path: "/agent", status: http.StatusUnauthorized, body: apperrors.CodeUnauthorized},
		{name: "malformed header", path: "/agent", header: "Token abc", status: http.StatusUnauthorized},
		{name: "garbage token", path: "/agent", header: "Bearer abc", status: http.StatusUnauthorized},
		{name: "agent allowed", path: "/agent", header: "Bearer " + agentToken, status: http.StatusOK, body: "agent-7"},
		{name: "agent forbidden on admin route", path: "/admin", header: "Bearer " + agentToken, status: http.StatusForbidden, body: apperrors.CodeForbidden},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
			if tc.body != "" {
				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.Equal(t, tc.body, string(body))
			}
		})
	}
}
