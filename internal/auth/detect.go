package auth

import "github.com/dvcrn/gemini-cli-auth/internal/env"

// Detect picks the default authentication strategy for an environment.
//
// The priority order is a contract (first match wins):
//  1. Cloud Shell marker present
//  2. Gemini API key present
//  3. Vertex project and location present
//  4. Google API key present (Vertex express mode)
//  5. interactive OAuth fallback
//
// Detect is total and deterministic: every environment maps to exactly one
// strategy, and the OAuth fallback always succeeds as a choice even when the
// flow itself may later fail.
func Detect(src env.Source) AuthType {
	if _, ok := env.Get(src, EnvCloudShell); ok {
		return AuthTypeCloudShell
	}
	if _, ok := env.Get(src, EnvGeminiAPIKey); ok {
		return AuthTypeAPIKey
	}
	_, hasProject := env.Get(src, EnvCloudProject)
	_, hasLocation := env.Get(src, EnvCloudLocation)
	if hasProject && hasLocation {
		return AuthTypeVertexAI
	}
	if _, ok := env.Get(src, EnvGoogleAPIKey); ok {
		return AuthTypeVertexAI
	}
	return AuthTypeOAuthPersonal
}
