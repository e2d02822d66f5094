package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dvcrn/gemini-cli-auth/internal/auth"
	"github.com/dvcrn/gemini-cli-auth/internal/credentials"
	"github.com/dvcrn/gemini-cli-auth/internal/logger"
)

// tokenRefreshResponse is the token endpoint's answer to a refresh grant.
type tokenRefreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
	TokenType   string `json:"token_type"`
}

type tokenErrorResponse struct {
	Error     string `json:"error"`
	ErrorDesc string `json:"error_description"`
}

// Refresh exchanges the refresh token for a new access token, mutating cred
// in place (same identity, new access token and expiry). A provider that no
// longer accepts the refresh token yields KindUnrefreshable; the caller is
// expected to invalidate the cache and fall back to a full flow.
func (e *Engine) Refresh(ctx context.Context, cfg auth.Config, cred *credentials.Credential) error {
	if !cred.Refreshable() {
		return flowErr(KindUnrefreshable, "no refresh token available", nil)
	}

	form := url.Values{}
	form.Set("client_id", cfg.OAuthClientID)
	form.Set("client_secret", cfg.OAuthClientSecret)
	form.Set("refresh_token", cred.RefreshToken)
	form.Set("grant_type", "refresh_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return flowErr(KindNetwork, "failed to build refresh request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return flowErr(KindNetwork, "token refresh request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return flowErr(KindNetwork, "failed to read refresh response", err)
	}

	if resp.StatusCode != http.StatusOK {
		var tokenErr tokenErrorResponse
		_ = json.Unmarshal(body, &tokenErr)
		switch {
		case tokenErr.Error == "invalid_grant":
			return flowErr(KindUnrefreshable, "refresh token was revoked or is invalid", nil)
		case resp.StatusCode >= 500:
			return flowErr(KindNetwork,
				fmt.Sprintf("token refresh failed with status %d", resp.StatusCode), nil)
		default:
			return flowErr(KindInvalidCredential,
				fmt.Sprintf("token refresh failed with status %d: %s", resp.StatusCode, tokenErr.Error), nil)
		}
	}

	var refreshResp tokenRefreshResponse
	if err := json.Unmarshal(body, &refreshResp); err != nil {
		return flowErr(KindInvalidCredential, "failed to parse refresh response", err)
	}
	if refreshResp.AccessToken == "" {
		return flowErr(KindInvalidCredential, "refresh response carried no access token", nil)
	}

	cred.AccessToken = refreshResp.AccessToken
	cred.SetExpiry(e.now().Add(time.Duration(refreshResp.ExpiresIn) * time.Second))
	if refreshResp.TokenType != "" {
		cred.TokenType = refreshResp.TokenType
	}
	if refreshResp.Scope != "" {
		cred.Scope = refreshResp.Scope
	}

	logger.Get().Info().Time("expiry", cred.Expiry()).Msg("Refreshed OAuth token")
	return nil
}
