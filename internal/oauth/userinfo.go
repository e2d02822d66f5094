package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type userInfoResponse struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// FetchUserInfo resolves the authenticated email for identity caching.
// Callers treat failures as non-fatal; the credential works without it.
func (e *Engine) FetchUserInfo(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.UserInfoURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("userinfo endpoint returned status %d", resp.StatusCode)
	}

	var info userInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("failed to parse userinfo response: %w", err)
	}
	return info.Email, nil
}
