package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ssoServer(t *testing.T, handler http.HandlerFunc) *SSOClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewSSOClient(srv.URL, 2*time.Second)
}

func TestVerifyAssertionReturnsProfile(t *testing.T) {
	client := ssoServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/me", r.URL.Path)
		assert.Equal(t, "Bearer assertion-123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user":{"email":"asha@example.com","name":"Asha","picture":"https://cdn/p.png"}}`))
	})

	profile, err := client.VerifyAssertion(context.Background(), "assertion-123")
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", profile.Email)
	assert.Equal(t, "Asha", profile.Name)
	require.NotNil(t, profile.Avatar)
	assert.Equal(t, "https://cdn/p.png", *profile.Avatar)
}

func TestVerifyAssertionRejected(t *testing.T) {
	client := ssoServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.VerifyAssertion(context.Background(), "bad-assertion")
	assert.ErrorIs(t, err, ErrAssertionRejected)
}

func TestVerifyAssertionEmptyEmailRejected(t *testing.T) {
	client := ssoServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user":{"name":"No Email"}}`))
	})

	_, err := client.VerifyAssertion(context.Background(), "assertion")
	assert.ErrorIs(t, err, ErrAssertionRejected)
}

func TestVerifyAssertionServerError(t *testing.T) {
	client := ssoServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.VerifyAssertion(context.Background(), "assertion")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAssertionRejected)
}

func TestVerifyAssertionAvatarFallback(t *testing.T) {
	client := ssoServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user":{"email":"a@b.c","name":"A","avatar":"https://cdn/a.png"}}`))
	})

	profile, err := client.VerifyAssertion(context.Background(), "assertion")
	require.NoError(t, err)
	require.NotNil(t, profile.Avatar)
	assert.Equal(t, "https://cdn/a.png", *profile.Avatar)
}
