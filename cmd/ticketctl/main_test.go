package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-engine/internal/auth"
	"github.com/spec-kit/ticket-engine/internal/domain"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util/errorutil"
)

func memoryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("AUTH_JWT_SECRET", "cli-secret")
	t.Setenv("TICKETCTL_MEMORY", "true")
}

func runCLI(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), append([]string{"ticketctl"}, args...), &out)
	return &out, err
}

func TestTicketCreatePrintsOpenTicket(t *testing.T) {
	memoryEnv(t)
	out, err := runCLI(t, "ticket", "create", "--title", "Printer down", "--priority", "2")
	require.NoError(t, err)

	var ticket map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &ticket))
	assert.Equal(t, float64(1), ticket["id"])
	assert.Equal(t, "Printer down", ticket["title"])
	assert.Equal(t, "open", ticket["status"])
	assert.Equal(t, float64(2), ticket["priority"])
}

func TestTicketCommandErrors(t *testing.T) {
	memoryEnv(t)

	_, err := runCLI(t, "ticket", "get", "42")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	_, err = runCLI(t, "ticket", "status", "--status", "paused", "1")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidStatus))

	_, err = runCLI(t, "ticket", "create", "--title", "x", "--priority", "9")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	_, err = runCLI(t, "ticket", "get", "abc")
	assert.Error(t, err)
}

func TestEmptyListsPrintArrays(t *testing.T) {
	memoryEnv(t)
	for _, args := range [][]string{
		{"ticket", "list"},
		{"ticket", "list", "--with-technician"},
		{"ticket", "audit", "7"},
		{"technician", "list"},
		{"escalate", "--threshold", "0s"},
	} {
		out, err := runCLI(t, args...)
		require.NoError(t, err, args)
		assert.NotEmpty(t, bytes.TrimSpace(out.Bytes()), args)
	}
}

func TestTokenIssue(t *testing.T) {
	memoryEnv(t)
	out, err := runCLI(t, "token", "issue", "--subject", "dana", "--role", "admin")
	require.NoError(t, err)

	var payload struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &payload))
	assert.Equal(t, "admin", payload.Role)

	claims, err := auth.NewTokenManager("cli-secret", 60).ParseToken(payload.Token)
	require.NoError(t, err)
	assert.Equal(t, "dana", claims.Subject)
	assert.Equal(t, domain.OperatorRoleAdmin, claims.Role)

	_, err = runCLI(t, "token", "issue", "--subject", "dana", "--role", "root")
	assert.Error(t, err)
}

func TestStoreCommandsRequireDSN(t *testing.T) {
	memoryEnv(t)
	t.Setenv("TICKETCTL_MEMORY", "")

	for _, args := range [][]string{
		{"ticket", "create", "--title", "Printer down", "--priority", "2"},
		{"ticket", "list"},
		{"escalate"},
	} {
		out, err := runCLI(t, args...)
		assert.ErrorIs(t, err, errNoDSN, args)
		assert.Empty(t, out.String(), args)
	}

	_, err := runCLI(t, "--memory", "ticket", "list")
	assert.NoError(t, err)

	_, err = runCLI(t, "token", "issue", "--subject", "dana", "--role", "agent")
	assert.NoError(t, err)
}
