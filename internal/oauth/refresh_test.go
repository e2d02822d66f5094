package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvcrn/gemini-cli-auth/internal/auth"
	"github.com/dvcrn/gemini-cli-auth/internal/credentials"
)

func testConfig() auth.Config {
	return auth.Config{
		Type:              auth.AuthTypeOAuthPersonal,
		OAuthClientID:     "test-client-id",
		OAuthClientSecret: "test-client-secret",
	}
}

func TestRefreshSuccess(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var gotForm map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"grant_type":    r.PostForm.Get("grant_type"),
			"client_id":     r.PostForm.Get("client_id"),
			"refresh_token": r.PostForm.Get("refresh_token"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new-access","expires_in":3600,"token_type":"Bearer","scope":"test-scope"}`))
	}))
	defer ts.Close()

	e := &Engine{
		TokenURL:   ts.URL,
		httpClient: ts.Client(),
		now:        func() time.Time { return now },
		sleep:      ctxSleep,
	}

	cred := &credentials.Credential{
		AccessToken:  "old-access",
		RefreshToken: "refresh-123",
	}
	cred.SetExpiry(now.Add(-time.Hour))

	require.NoError(t, e.Refresh(context.Background(), testConfig(), cred))

	assert.Equal(t, "refresh_token", gotForm["grant_type"])
	assert.Equal(t, "test-client-id", gotForm["client_id"])
	assert.Equal(t, "refresh-123", gotForm["refresh_token"])

	assert.Equal(t, "new-access", cred.AccessToken)
	assert.Equal(t, "refresh-123", cred.RefreshToken, "refresh token must survive the grant")
	assert.Equal(t, "test-scope", cred.Scope)
	assert.Equal(t, now.Add(time.Hour).UnixMilli(), cred.ExpiryDate)
}

func TestRefreshInvalidGrant(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been revoked."}`))
	}))
	defer ts.Close()

	e := &Engine{TokenURL: ts.URL, httpClient: ts.Client(), now: time.Now, sleep: ctxSleep}
	cred := &credentials.Credential{AccessToken: "old", RefreshToken: "revoked"}

	err := e.Refresh(context.Background(), testConfig(), cred)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindUnrefreshable))
	assert.Equal(t, "old", cred.AccessToken, "a failed refresh must not mutate the credential")
}

func TestRefreshServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	e := &Engine{TokenURL: ts.URL, httpClient: ts.Client(), now: time.Now, sleep: ctxSleep}
	cred := &credentials.Credential{AccessToken: "old", RefreshToken: "ref"}

	err := e.Refresh(context.Background(), testConfig(), cred)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindNetwork))
}

func TestRefreshRejectedOtherError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer ts.Close()

	e := &Engine{TokenURL: ts.URL, httpClient: ts.Client(), now: time.Now, sleep: ctxSleep}
	cred := &credentials.Credential{AccessToken: "old", RefreshToken: "ref"}

	err := e.Refresh(context.Background(), testConfig(), cred)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidCredential))
}

func TestRefreshWithoutRefreshToken(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer ts.Close()

	e := &Engine{TokenURL: ts.URL, httpClient: ts.Client(), now: time.Now, sleep: ctxSleep}
	cred := &credentials.Credential{AccessToken: "old"}

	err := e.Refresh(context.Background(), testConfig(), cred)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindUnrefreshable))
	assert.Zero(t, calls, "no request should leave the process without a refresh token")
}
