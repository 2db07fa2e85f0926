package main

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"currency-conversion-service/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runToken(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return out.String(), err
}

func outputField(out, name string) string {
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, name+":"); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func TestTokenCommand_MintsTokenForUser(t *testing.T) {
	t.Setenv("CCS_AUTH_SECRET", "test-secret")
	userID := uuid.New()

	out, err := runToken(t, "--user", userID.String())
	require.NoError(t, err)
	assert.Equal(t, userID.String(), outputField(out, "user_id"))

	claims, err := service.NewJWTTokenService("test-secret", time.Hour, "currency-conversion-service").
		Validate(outputField(out, "token"))
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
}

func TestTokenCommand_GeneratesUserWhenOmitted(t *testing.T) {
	t.Setenv("CCS_AUTH_SECRET", "test-secret")

	out, err := runToken(t)
	require.NoError(t, err)
	_, err = uuid.Parse(outputField(out, "user_id"))
	assert.NoError(t, err)
}

func TestTokenCommand_Errors(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		args    []string
		wantErr string
	}{
		{"missing secret", "", nil, "auth.secret is empty"},
		{"bad user id", "test-secret", []string{"--user", "not-a-uuid"}, "invalid --user"},
		{"unexpected arg", "test-secret", []string{"extra"}, "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CCS_AUTH_SECRET", tt.secret)
			_, err := runToken(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
