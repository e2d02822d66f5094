package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dvcrn/gemini-cli-auth/internal/auth"
	"github.com/dvcrn/gemini-cli-auth/internal/credentials"
	"github.com/dvcrn/gemini-cli-auth/internal/logger"
)

// deviceState tracks progress of the device-authorization flow.
type deviceState int

const (
	deviceIdle deviceState = iota
	deviceCodeRequested
	deviceCodeDisplayed
	devicePolling
	deviceGranted
	deviceDenied
	deviceExpired
	deviceFailed
)

func (s deviceState) String() string {
	switch s {
	case deviceIdle:
		return "idle"
	case deviceCodeRequested:
		return "device_code_requested"
	case deviceCodeDisplayed:
		return "code_displayed"
	case devicePolling:
		return "polling"
	case deviceGranted:
		return "granted"
	case deviceDenied:
		return "denied"
	case deviceExpired:
		return "expired"
	case deviceFailed:
		return "failed"
	}
	return "unknown"
}

type deviceCodeResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete,omitempty"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

type deviceTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorDesc    string `json:"error_description,omitempty"`
}

type deviceFlow struct {
	engine *Engine
	cfg    auth.Config
	state  deviceState
}

func (f *deviceFlow) transition(next deviceState) {
	logger.Get().Debug().
		Str("from", f.state.String()).
		Str("to", next.String()).
		Msg("Device flow transition")
	f.state = next
}

func (f *deviceFlow) fail(terminal deviceState, err *FlowError) (*credentials.Credential, error) {
	f.transition(terminal)
	return nil, err
}

// runDeviceFlow executes the device-authorization flow: obtain a user code,
// display it, poll the token endpoint until grant, denial, or device-code
// expiry. Polling is inherently bounded by that expiry.
func (e *Engine) runDeviceFlow(ctx context.Context, cfg auth.Config) (*credentials.Credential, error) {
	f := &deviceFlow{engine: e, cfg: cfg, state: deviceIdle}
	return f.run(ctx)
}

func (f *deviceFlow) run(ctx context.Context) (*credentials.Credential, error) {
	resp, err := f.engine.requestDeviceCode(ctx, f.cfg)
	if err != nil {
		return f.fail(deviceFailed, flowErr(KindNetwork, "device authorization request failed", err))
	}
	f.transition(deviceCodeRequested)

	verificationURL := resp.VerificationURIComplete
	if verificationURL == "" {
		verificationURL = resp.VerificationURI
	}
	logger.Get().Info().
		Str("url", verificationURL).
		Str("code", resp.UserCode).
		Msg("Visit the URL and enter the code to authorize this machine")
	f.transition(deviceCodeDisplayed)

	interval := time.Duration(resp.Interval) * time.Second
	if interval == 0 {
		interval = 5 * time.Second
	}
	deadline := f.engine.now().Add(time.Duration(resp.ExpiresIn) * time.Second)

	f.transition(devicePolling)
	for {
		if f.engine.now().After(deadline) {
			return f.fail(deviceExpired, flowErr(KindExpired, "device code expired before the grant was approved", nil))
		}

		tokenResp, err := f.engine.pollDeviceToken(ctx, f.cfg, resp.DeviceCode)
		switch {
		case err == nil:
			f.transition(deviceGranted)
			return f.credentialFromDeviceToken(tokenResp), nil
		case errors.Is(err, errAuthorizationPending):
			// keep waiting
		case errors.Is(err, errSlowDown):
			interval += 5 * time.Second
		default:
			var fe *FlowError
			if errors.As(err, &fe) {
				switch fe.Kind {
				case KindUserDenied:
					return f.fail(deviceDenied, fe)
				case KindExpired:
					return f.fail(deviceExpired, fe)
				case KindNetwork:
					// Transient transport failures are retried at the
					// current interval; the device-code expiry still bounds
					// the loop.
					logger.Get().Warn().Err(fe).Msg("Device poll failed, retrying")
				default:
					return f.fail(deviceFailed, fe)
				}
			} else {
				return f.fail(deviceFailed, flowErr(KindNetwork, "device poll failed", err))
			}
		}

		if err := f.engine.sleep(ctx, interval); err != nil {
			return f.fail(deviceFailed, flowErr(KindTimeout, "device authorization cancelled", err))
		}
	}
}

func (f *deviceFlow) credentialFromDeviceToken(resp *deviceTokenResponse) *credentials.Credential {
	cred := &credentials.Credential{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		Scope:        resp.Scope,
		IDToken:      resp.IDToken,
	}
	if cred.TokenType == "" {
		cred.TokenType = "Bearer"
	}
	if resp.ExpiresIn > 0 {
		cred.SetExpiry(f.engine.now().Add(time.Duration(resp.ExpiresIn) * time.Second))
	}
	return cred
}

func (e *Engine) requestDeviceCode(ctx context.Context, cfg auth.Config) (*deviceCodeResponse, error) {
	form := url.Values{}
	form.Set("client_id", cfg.OAuthClientID)
	form.Set("scope", strings.Join(oauthScopes, " "))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.DeviceAuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("device authorization endpoint returned status %d", resp.StatusCode)
	}
	var payload deviceCodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse device authorization response: %w", err)
	}
	if payload.DeviceCode == "" {
		return nil, fmt.Errorf("device authorization response carried no device code")
	}
	return &payload, nil
}

// pollDeviceToken performs one token-endpoint poll. Pending and slow-down
// outcomes surface as sentinel errors so the loop can continue; terminal
// provider verdicts surface as FlowErrors.
func (e *Engine) pollDeviceToken(ctx context.Context, cfg auth.Config, deviceCode string) (*deviceTokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:device_code")
	form.Set("device_code", deviceCode)
	form.Set("client_id", cfg.OAuthClientID)
	form.Set("client_secret", cfg.OAuthClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, flowErr(KindNetwork, "device poll request failed", err)
	}
	defer resp.Body.Close()

	var payload deviceTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, flowErr(KindInvalidCredential, "failed to parse device token response", err)
	}

	if payload.Error != "" {
		switch payload.Error {
		case "authorization_pending":
			return nil, errAuthorizationPending
		case "slow_down":
			return nil, errSlowDown
		case "access_denied":
			return nil, flowErr(KindUserDenied, "the user denied the device authorization", nil)
		case "expired_token":
			return nil, flowErr(KindExpired, "the device code expired", nil)
		default:
			return nil, flowErr(KindInvalidCredential,
				fmt.Sprintf("device token error: %s (%s)", payload.Error, payload.ErrorDesc), nil)
		}
	}
	if payload.AccessToken == "" {
		return nil, flowErr(KindInvalidCredential, "device token response carried no access token", nil)
	}
	return &payload, nil
}
