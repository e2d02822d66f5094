package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvcrn/gemini-cli-auth/internal/auth"
	"github.com/dvcrn/gemini-cli-auth/internal/env"
	"github.com/dvcrn/gemini-cli-auth/internal/logger"
	"github.com/dvcrn/gemini-cli-auth/internal/oauth"
	"github.com/dvcrn/gemini-cli-auth/internal/resolver"
)

// resolveTimeout bounds the whole resolution, interactive flows included.
const resolveTimeout = 15 * time.Minute

func main() {
	// Pick up a local .env so keys and project settings work without a reload.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Get().Warn().Err(err).Msg("Failed to load .env file")
	}

	src := env.OS{}

	hint := auth.AuthTypeUnspecified
	if v, ok := env.Get(src, "AUTH_TYPE"); ok {
		hint = auth.AuthType(v)
		if !hint.Valid() {
			logger.Get().Fatal().Str("auth_type", v).Msg("Unknown AUTH_TYPE")
		}
	}

	r, err := resolver.New(src)
	if err != nil {
		logger.Get().Fatal().Err(err).Msg("Failed to create resolver")
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	params, err := r.Resolve(ctx, hint)
	if err != nil {
		var verrs auth.ValidationErrors
		if errors.As(err, &verrs) {
			for _, ve := range verrs {
				logger.Get().Error().Str("kind", string(ve.Kind)).Msg(ve.Message)
			}
			os.Exit(1)
		}
		var flowErr *oauth.FlowError
		if errors.As(err, &flowErr) {
			logger.Get().Error().Str("kind", string(flowErr.Kind)).Msg(flowErr.Message)
			os.Exit(1)
		}
		logger.Get().Fatal().Err(err).Msg("Authentication failed")
	}

	// Summarize without ever logging token or key material.
	evt := logger.Get().Info().Str("auth_type", params.AuthType.String())
	if params.ProjectID != "" {
		evt = evt.Str("project_id", params.ProjectID).Str("location", params.Location)
	}
	evt.Bool("has_api_key", params.APIKey != "").
		Bool("has_bearer_token", params.BearerToken != "").
		Msg("Authentication resolved")
}
