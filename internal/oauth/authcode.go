package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/dvcrn/gemini-cli-auth/internal/auth"
	"github.com/dvcrn/gemini-cli-auth/internal/credentials"
	"github.com/dvcrn/gemini-cli-auth/internal/logger"
)

// authCodeState tracks progress of the authorization-code flow. Terminal
// states are authCodeDone and authCodeFailed; a flow value is never reused
// across attempts.
type authCodeState int

const (
	authCodeIdle authCodeState = iota
	authCodeListenerStarted
	authCodeBrowserLaunched
	authCodeAwaitingRedirect
	authCodeCodeReceived
	authCodeTokenExchanged
	authCodeDone
	authCodeFailed
)

func (s authCodeState) String() string {
	switch s {
	case authCodeIdle:
		return "idle"
	case authCodeListenerStarted:
		return "listener_started"
	case authCodeBrowserLaunched:
		return "browser_launched"
	case authCodeAwaitingRedirect:
		return "awaiting_redirect"
	case authCodeCodeReceived:
		return "code_received"
	case authCodeTokenExchanged:
		return "token_exchanged"
	case authCodeDone:
		return "done"
	case authCodeFailed:
		return "failed"
	}
	return "unknown"
}

type authCodeFlow struct {
	engine *Engine
	cfg    auth.Config
	state  authCodeState
}

func (f *authCodeFlow) transition(next authCodeState) {
	logger.Get().Debug().
		Str("from", f.state.String()).
		Str("to", next.String()).
		Msg("Authorization-code flow transition")
	f.state = next
}

func (f *authCodeFlow) fail(err *FlowError) (*credentials.Credential, error) {
	f.transition(authCodeFailed)
	return nil, err
}

// runAuthCodeFlow executes the browser flow: bind the local listener, launch
// the browser, wait (bounded) for the redirect, exchange the code.
func (e *Engine) runAuthCodeFlow(ctx context.Context, cfg auth.Config) (*credentials.Credential, error) {
	f := &authCodeFlow{engine: e, cfg: cfg, state: authCodeIdle}
	return f.run(ctx)
}

func (f *authCodeFlow) run(ctx context.Context) (*credentials.Credential, error) {
	wait := f.engine.CallbackWait
	if wait <= 0 {
		wait = DefaultCallbackWait
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	// The listener must be up before the browser launches, otherwise the
	// redirect can arrive with nobody listening.
	srv := newCallbackServer(f.cfg.CallbackPort)
	redirectURI, err := srv.start(ctx)
	if err != nil {
		return f.fail(flowErr(KindNetwork, "failed to start local callback listener", err))
	}
	defer srv.stop()
	f.transition(authCodeListenerStarted)

	state, err := randomState()
	if err != nil {
		return f.fail(flowErr(KindInvalidCredential, "failed to generate state parameter", err))
	}
	verifier := oauth2.GenerateVerifier()

	conf := &oauth2.Config{
		ClientID:     f.cfg.OAuthClientID,
		ClientSecret: f.cfg.OAuthClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       oauthScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  f.engine.AuthURL,
			TokenURL: f.engine.TokenURL,
		},
	}
	authURL := conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("prompt", "consent"),
	)

	logger.Get().Info().Str("url", authURL).Msg("Opening browser for sign-in; visit the URL manually if it does not open")
	if err := launchBrowser(authURL); err != nil {
		// The printed URL still works; keep waiting for the redirect.
		logger.Get().Warn().Err(err).Msg("Failed to open browser")
	}
	f.transition(authCodeBrowserLaunched)

	f.transition(authCodeAwaitingRedirect)
	result, err := srv.wait(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return f.fail(flowErr(KindTimeout, "timed out waiting for the OAuth redirect", err))
		}
		return f.fail(flowErr(KindNetwork, "callback listener failed", err))
	}

	if result.isError() {
		if result.Error == "access_denied" {
			return f.fail(flowErr(KindUserDenied, "authorization was denied", nil))
		}
		return f.fail(flowErr(KindInvalidCredential,
			fmt.Sprintf("authorization failed: %s (%s)", result.Error, result.ErrorDescription), nil))
	}
	if result.State != state {
		return f.fail(flowErr(KindInvalidCredential, "OAuth state mismatch (possible CSRF)", nil))
	}
	if result.Code == "" {
		return f.fail(flowErr(KindInvalidCredential, "redirect carried no authorization code", nil))
	}
	f.transition(authCodeCodeReceived)

	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.engine.httpClient)
	tok, err := conf.Exchange(ctx, result.Code, oauth2.VerifierOption(verifier))
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return f.fail(flowErr(KindInvalidCredential, "token exchange rejected", err))
		}
		return f.fail(flowErr(KindNetwork, "token exchange failed", err))
	}
	f.transition(authCodeTokenExchanged)

	f.transition(authCodeDone)
	return credentialFromToken(tok), nil
}

// randomState returns a CSRF state parameter.
func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
