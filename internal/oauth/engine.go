package oauth

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/dvcrn/gemini-cli-auth/internal/auth"
	"github.com/dvcrn/gemini-cli-auth/internal/credentials"
	"github.com/dvcrn/gemini-cli-auth/internal/env"
	authhttp "github.com/dvcrn/gemini-cli-auth/internal/http"
	"github.com/dvcrn/gemini-cli-auth/internal/logger"
)

// Scopes requested by the personal OAuth flow, matching the Gemini CLI.
var oauthScopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

const defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// DefaultCallbackWait bounds the authorization-code redirect wait. An
// abandoned browser tab must not hang the process forever.
const DefaultCallbackWait = 10 * time.Minute

// Engine executes the interactive OAuth flows and token refresh. Endpoint
// URLs are fields so tests can point them at a local server; the defaults are
// Google's production endpoints.
type Engine struct {
	AuthURL       string
	TokenURL      string
	DeviceAuthURL string
	UserInfoURL   string

	// CallbackWait bounds the redirect wait of the authorization-code flow.
	CallbackWait time.Duration

	httpClient *http.Client
	src        env.Source
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// ctxSleep waits for d unless ctx ends first.
func ctxSleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// NewEngine builds an engine for one resolved configuration. The HTTP client
// honors the configured proxy.
func NewEngine(cfg auth.Config, src env.Source) *Engine {
	return &Engine{
		AuthURL:       google.Endpoint.AuthURL,
		TokenURL:      google.Endpoint.TokenURL,
		DeviceAuthURL: google.Endpoint.DeviceAuthURL,
		UserInfoURL:   defaultUserInfoURL,
		CallbackWait:  DefaultCallbackWait,
		httpClient:    authhttp.NewHTTPClient(cfg.Proxy),
		src:           src,
		now:           time.Now,
		sleep:         ctxSleep,
	}
}

// Authenticate runs a full interactive flow and returns the new credential
// plus the authenticated email when the userinfo endpoint is reachable.
// Flow selection happens once, up front: the NoBrowser flag or a headless
// host forces the device flow, and there is no silent fallback between the
// two afterwards.
func (e *Engine) Authenticate(ctx context.Context, cfg auth.Config) (*credentials.Credential, string, error) {
	useDevice := cfg.NoBrowser || !CanLaunchBrowser(e.src)

	var (
		cred *credentials.Credential
		err  error
	)
	if useDevice {
		logger.Get().Info().Msg("Browser unavailable or disabled, using device authorization flow")
		cred, err = e.runDeviceFlow(ctx, cfg)
	} else {
		cred, err = e.runAuthCodeFlow(ctx, cfg)
	}
	if err != nil {
		return nil, "", err
	}

	email, uerr := e.FetchUserInfo(ctx, cred.AccessToken)
	if uerr != nil {
		logger.Get().Warn().Err(uerr).Msg("Could not fetch authenticated identity")
	}
	return cred, email, nil
}

// credentialFromToken converts an exchange result into the CLI wire shape.
func credentialFromToken(tok *oauth2.Token) *credentials.Credential {
	cred := &credentials.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if cred.TokenType == "" {
		cred.TokenType = "Bearer"
	}
	if !tok.Expiry.IsZero() {
		cred.SetExpiry(tok.Expiry)
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		cred.Scope = scope
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		cred.IDToken = idToken
	}
	return cred
}
