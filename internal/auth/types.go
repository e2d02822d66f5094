package auth

// AuthType selects the authentication strategy. The string values match the
// ones the Gemini CLI persists, so configuration written by either tool is
// interchangeable.
type AuthType string

const (
	// AuthTypeUnspecified asks the resolver to auto-detect a strategy.
	AuthTypeUnspecified AuthType = ""
	// AuthTypeOAuthPersonal is the interactive "login with Google" flow.
	AuthTypeOAuthPersonal AuthType = "oauth-personal"
	// AuthTypeAPIKey uses a direct Gemini API key.
	AuthTypeAPIKey AuthType = "gemini-api-key"
	// AuthTypeVertexAI uses a GCP project+location, or an API key in express mode.
	AuthTypeVertexAI AuthType = "vertex-ai"
	// AuthTypeCloudShell trusts the ambient credentials of a Cloud Shell host.
	AuthTypeCloudShell AuthType = "cloud-shell"
)

// Valid reports whether t is one of the four concrete strategies.
func (t AuthType) Valid() bool {
	switch t {
	case AuthTypeOAuthPersonal, AuthTypeAPIKey, AuthTypeVertexAI, AuthTypeCloudShell:
		return true
	}
	return false
}

func (t AuthType) String() string {
	return string(t)
}

// Environment variable names making up the configuration surface.
const (
	EnvGeminiAPIKey      = "GEMINI_API_KEY"
	EnvGoogleAPIKey      = "GOOGLE_API_KEY"
	EnvCloudProject      = "GOOGLE_CLOUD_PROJECT"
	EnvCloudLocation     = "GOOGLE_CLOUD_LOCATION"
	EnvCloudShell        = "GOOGLE_CLOUD_SHELL"
	EnvOAuthClientID     = "GEMINI_CLI_CLIENT_ID"
	EnvOAuthClientSecret = "GEMINI_CLI_CLIENT_SECRET"
	EnvNoBrowser         = "NO_BROWSER"
	EnvCallbackPort      = "OAUTH_CALLBACK_PORT"
	EnvHTTPProxy         = "HTTP_PROXY"
	EnvHTTPSProxy        = "HTTPS_PROXY"
)

// Public installed-app client shipped by the Gemini CLI. These identify the
// client application, not a secret grant, and are safe to embed.
const (
	DefaultOAuthClientID     = "681255809395-oo8ft2oprdrnp9e3aqf6av3hmdib135j.apps.googleusercontent.com"
	DefaultOAuthClientSecret = "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"
)

// Config is the resolved, validated configuration for one authentication
// attempt. It is constructed by Validate and never mutated afterwards; fields
// belonging to other auth types are left zero.
type Config struct {
	Type AuthType

	// APIKey is the Gemini API key (gemini-api-key) or the express-mode key
	// (vertex-ai).
	APIKey string

	// ProjectID and Location configure Vertex AI project auth.
	ProjectID string
	Location  string

	// OAuth client identity, defaulted to the public Gemini CLI client.
	OAuthClientID     string
	OAuthClientSecret string

	// NoBrowser forces the device-code flow.
	NoBrowser bool

	// CallbackPort pins the local redirect listener port; 0 means ephemeral.
	CallbackPort int

	// Proxy is the outbound proxy URL, if configured.
	Proxy string
}
