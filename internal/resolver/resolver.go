package resolver

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dvcrn/gemini-cli-auth/internal/auth"
	"github.com/dvcrn/gemini-cli-auth/internal/credentials"
	"github.com/dvcrn/gemini-cli-auth/internal/env"
	"github.com/dvcrn/gemini-cli-auth/internal/logger"
	"github.com/dvcrn/gemini-cli-auth/internal/oauth"
)

// flowEngine is the slice of the OAuth engine the resolver needs; faked in
// tests so resolution can run without a browser or network.
type flowEngine interface {
	Authenticate(ctx context.Context, cfg auth.Config) (*credentials.Credential, string, error)
	Refresh(ctx context.Context, cfg auth.Config, cred *credentials.Credential) error
}

// Resolver is the single entry point the rest of the system uses: given an
// optional AuthType hint it returns materialized ClientParameters or one
// typed error.
type Resolver struct {
	src       env.Source
	store     *credentials.Store
	newEngine func(cfg auth.Config) flowEngine
	ambient   func(ctx context.Context) (*credentials.Credential, error)
	group     singleflight.Group
	now       func() time.Time
}

// New builds a resolver over the real environment-derived store and engine.
func New(src env.Source) (*Resolver, error) {
	store, err := credentials.NewStore(src)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		src:   src,
		store: store,
		newEngine: func(cfg auth.Config) flowEngine {
			return oauth.NewEngine(cfg, src)
		},
		ambient: oauth.AmbientCredential,
		now:     time.Now,
	}, nil
}

// Resolve picks an auth type (detecting one when the hint is unspecified),
// validates its configuration, ensures a usable credential where the type
// needs one, and materializes the client parameters.
func (r *Resolver) Resolve(ctx context.Context, hint auth.AuthType) (*ClientParameters, error) {
	authType := hint
	if authType == auth.AuthTypeUnspecified {
		authType = auth.Detect(r.src)
		logger.Get().Debug().Str("auth_type", authType.String()).Msg("Auto-detected auth method")
	}

	cfg, verrs := auth.Validate(authType, r.src)
	if len(verrs) > 0 {
		return nil, verrs
	}

	switch cfg.Type {
	case auth.AuthTypeAPIKey, auth.AuthTypeVertexAI:
		// No credential lifecycle: keys are used as-is.
		return Materialize(cfg, nil), nil
	case auth.AuthTypeCloudShell:
		// The host manages the credential; mint a token from it, skip the cache.
		cred, err := r.ambient(ctx)
		if err != nil {
			return nil, err
		}
		return Materialize(cfg, cred), nil
	}

	cred, err := r.ensureCredential(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return Materialize(cfg, cred), nil
}

// Invalidate discards the cached credential so the next resolution performs a
// fresh interactive flow.
func (r *Resolver) Invalidate() error {
	return r.store.Invalidate()
}

// ensureCredential returns a usable OAuth credential, loading, refreshing, or
// acquiring one as needed. Concurrent callers for the same auth type share a
// single flow instead of each launching a browser.
func (r *Resolver) ensureCredential(ctx context.Context, cfg auth.Config) (*credentials.Credential, error) {
	if cached, err := r.store.Load(); err == nil && cached != nil && cached.Usable(r.now()) {
		return &cached.Credential, nil
	}

	v, err, _ := r.group.Do(cfg.Type.String(), func() (interface{}, error) {
		return r.acquire(ctx, cfg)
	})
	if err != nil {
		return nil, err
	}
	return v.(*credentials.Credential), nil
}

func (r *Resolver) acquire(ctx context.Context, cfg auth.Config) (*credentials.Credential, error) {
	engine := r.newEngine(cfg)

	cached, err := r.store.Load()
	if err != nil {
		return nil, err
	}
	if cached != nil {
		// A coalesced caller may find the cache already renewed.
		if cached.Usable(r.now()) {
			return &cached.Credential, nil
		}
		if cached.Refreshable() {
			cred := cached.Credential
			err := engine.Refresh(ctx, cfg, &cred)
			if err == nil {
				if serr := r.store.Save(&cred, cfg.Type.String(), cached.Email); serr != nil {
					logger.Get().Warn().Err(serr).Msg("Failed to persist refreshed credentials")
				}
				return &cred, nil
			}
			if !oauth.IsKind(err, oauth.KindUnrefreshable) {
				return nil, err
			}
			// Revoked refresh token: the cache is dead. Discard it and fall
			// back to a full interactive flow.
			logger.Get().Warn().Err(err).Msg("Refresh token rejected, re-authentication required")
			if ierr := r.store.Invalidate(); ierr != nil {
				logger.Get().Warn().Err(ierr).Msg("Failed to invalidate credential cache")
			}
		}
		// Expired without a refresh token: treated as absent.
	}

	cred, email, err := engine.Authenticate(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if serr := r.store.Save(cred, cfg.Type.String(), email); serr != nil {
		logger.Get().Warn().Err(serr).Msg("Failed to persist new credentials")
	}
	return cred, nil
}
