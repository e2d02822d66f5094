package auth

import (
	"strconv"

	"github.com/dvcrn/gemini-cli-auth/internal/env"
)

// Validate checks that the environment carries everything authType needs and
// builds the immutable Config for it. It is pure: no network, no filesystem.
// All missing items are collected rather than short-circuited.
func Validate(authType AuthType, src env.Source) (Config, ValidationErrors) {
	cfg := Config{Type: authType}
	var errs ValidationErrors

	// Shared knobs, read for every type.
	cfg.Proxy = env.GetOrDefault(src, EnvHTTPSProxy, env.GetOrDefault(src, EnvHTTPProxy, ""))
	if v, ok := env.Get(src, EnvNoBrowser); ok {
		cfg.NoBrowser = v != "0" && v != "false"
	}
	if v, ok := env.Get(src, EnvCallbackPort); ok {
		if port, err := strconv.Atoi(v); err == nil && port > 0 && port < 65536 {
			cfg.CallbackPort = port
		}
	}

	switch authType {
	case AuthTypeAPIKey:
		key, ok := env.Get(src, EnvGeminiAPIKey)
		if !ok {
			errs = append(errs, ValidationError{
				Kind: MissingAPIKey,
				Message: "GEMINI_API_KEY environment variable not found. " +
					"Add that to your environment and try again (no reload needed if using .env)!",
			})
			break
		}
		cfg.APIKey = key

	case AuthTypeVertexAI:
		project, hasProject := env.Get(src, EnvCloudProject)
		location, hasLocation := env.Get(src, EnvCloudLocation)
		expressKey, hasExpressKey := env.Get(src, EnvGoogleAPIKey)

		if !(hasProject && hasLocation) && !hasExpressKey {
			errs = append(errs, ValidationError{
				Kind: MissingProjectConfig,
				Message: "When using Vertex AI, you must specify either " +
					"GOOGLE_CLOUD_PROJECT and GOOGLE_CLOUD_LOCATION environment variables, or " +
					"GOOGLE_API_KEY (express mode). " +
					"Update your environment and try again (no reload needed if using .env)!",
			})
			break
		}
		cfg.ProjectID = project
		cfg.Location = location
		cfg.APIKey = expressKey

	case AuthTypeOAuthPersonal, AuthTypeCloudShell:
		// The public installed-app client is the default; an override that is
		// present but empty is an explicit misconfiguration.
		cfg.OAuthClientID = DefaultOAuthClientID
		cfg.OAuthClientSecret = DefaultOAuthClientSecret
		if v, set := src.Lookup(EnvOAuthClientID); set {
			if v == "" {
				errs = append(errs, ValidationError{
					Kind:    MissingOAuthClient,
					Message: "GEMINI_CLI_CLIENT_ID is set but empty; unset it to use the built-in client",
				})
			} else {
				cfg.OAuthClientID = v
			}
		}
		if v, set := src.Lookup(EnvOAuthClientSecret); set {
			if v == "" {
				errs = append(errs, ValidationError{
					Kind:    MissingOAuthClient,
					Message: "GEMINI_CLI_CLIENT_SECRET is set but empty; unset it to use the built-in client",
				})
			} else {
				cfg.OAuthClientSecret = v
			}
		}

		if authType == AuthTypeCloudShell {
			if _, ok := env.Get(src, EnvCloudShell); !ok {
				errs = append(errs, ValidationError{
					Kind:    CloudShellUnavailable,
					Message: "GOOGLE_CLOUD_SHELL is not set; ambient Cloud Shell credentials are unavailable",
				})
			}
		}

	default:
		errs = append(errs, ValidationError{
			Kind:    MissingProjectConfig,
			Message: "invalid auth method selected",
		})
	}

	if len(errs) > 0 {
		return Config{Type: authType}, errs
	}
	return cfg, nil
}
