package trino

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedTestToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": sub, "exp": exp.Unix()}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestBearerTokenAuthIdentity(t *testing.T) {
	tok := signedTestToken(t, "alice", time.Now().Add(time.Hour))
	auth := NewBearerTokenAuth(tok)
	assert.Equal(t, "alice", auth.Identity())
}

func TestBearerTokenAuthValidateExpired(t *testing.T) {
	tok := signedTestToken(t, "alice", time.Now().Add(-time.Hour))
	auth := NewBearerTokenAuth(tok)
	err := auth.Validate()
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestBearerTokenAuthOpaqueTokenAlwaysValid(t *testing.T) {
	auth := NewBearerTokenAuth("not-a-jwt")
	require.NoError(t, auth.Validate())
	assert.Equal(t, "", auth.Identity())
}

func TestBearerTokenAuthAttachSetsHeader(t *testing.T) {
	tok := signedTestToken(t, "alice", time.Now().Add(time.Hour))
	auth := NewBearerTokenAuth(tok)
	req, err := http.NewRequest(http.MethodGet, "http://example.com", nil)
	require.NoError(t, err)
	require.NoError(t, auth.Attach(req))
	assert.Equal(t, "Bearer "+tok, req.Header.Get("Authorization"))
}

func TestBearerTokenAuthAttachRejectsExpired(t *testing.T) {
	tok := signedTestToken(t, "alice", time.Now().Add(-time.Hour))
	auth := NewBearerTokenAuth(tok)
	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	err := auth.Attach(req)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestNoAuthIsInert(t *testing.T) {
	var a NoAuth
	assert.Equal(t, "", a.Identity())
	require.NoError(t, a.Validate())
	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	require.NoError(t, a.Attach(req))
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestOAuthClientCredentialsAuthFetchesAndAttachesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"abc123","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	auth := NewOAuthClientCredentialsAuth(context.Background(), "client-id", "client-secret", srv.URL, nil)
	req, err := http.NewRequest(http.MethodGet, "http://example.com", nil)
	require.NoError(t, err)
	require.NoError(t, auth.Attach(req))
	assert.Equal(t, "Bearer abc123", req.Header.Get("Authorization"))
	assert.Equal(t, "client-id", auth.Identity())
}
