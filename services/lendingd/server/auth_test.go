package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"lendchain/services/lendingd/config"
)

const testSecret = "lendingd-test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func authProbe(t *testing.T, auth *Authenticator, header string) int {
	t.Helper()
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPost, "/v1/markets", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestAuthMiddlewareDisabledPassesThrough(t *testing.T) {
	auth := NewAuthenticator(config.AuthConfig{Enabled: false})
	require.Equal(t, http.StatusNoContent, authProbe(t, auth, ""))
}

func TestAuthMiddlewareAcceptsSignedToken(t *testing.T) {
	auth := NewAuthenticator(config.AuthConfig{
		Enabled:    true,
		HMACSecret: testSecret,
		Issuer:     "lendchain",
		Audience:   "operators",
		ClockSkew:  time.Minute,
	})
	token := signToken(t, testSecret, jwt.MapClaims{
		"iss": "lendchain",
		"aud": "operators",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	require.Equal(t, http.StatusNoContent, authProbe(t, auth, "Bearer "+token))
}

func TestAuthMiddlewareRejections(t *testing.T) {
	auth := NewAuthenticator(config.AuthConfig{
		Enabled:    true,
		HMACSecret: testSecret,
		Issuer:     "lendchain",
		ClockSkew:  time.Minute,
	})

	t.Run("missing header", func(t *testing.T) {
		require.Equal(t, http.StatusUnauthorized, authProbe(t, auth, ""))
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, "other-secret", jwt.MapClaims{
			"iss": "lendchain",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		require.Equal(t, http.StatusUnauthorized, authProbe(t, auth, "Bearer "+token))
	})

	t.Run("expired", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{
			"iss": "lendchain",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})
		require.Equal(t, http.StatusUnauthorized, authProbe(t, auth, "Bearer "+token))
	})

	t.Run("missing expiry", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{"iss": "lendchain"})
		require.Equal(t, http.StatusUnauthorized, authProbe(t, auth, "Bearer "+token))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{
			"iss": "someone-else",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		require.Equal(t, http.StatusUnauthorized, authProbe(t, auth, "Bearer "+token))
	})

	t.Run("not bearer", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{
			"iss": "lendchain",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		require.Equal(t, http.StatusUnauthorized, authProbe(t, auth, "Basic "+token))
	})
}
