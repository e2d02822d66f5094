package resolver

import (
	"github.com/dvcrn/gemini-cli-auth/internal/auth"
	"github.com/dvcrn/gemini-cli-auth/internal/credentials"
)

// ClientParameters is everything the transport layer needs to authorize API
// calls. It is the only authentication state the rest of the system sees.
type ClientParameters struct {
	AuthType auth.AuthType

	// APIKey is set for gemini-api-key and Vertex express mode.
	APIKey string

	// ProjectID and Location are set for vertex-ai.
	ProjectID string
	Location  string

	// BearerToken and TokenType are set for oauth-personal, and for
	// vertex-ai when a credential backs it.
	BearerToken string
	TokenType   string
}

// Materialize maps a resolved configuration and credential onto client
// parameters. Pure: by the time it runs, resolution has completed or already
// failed, so it never triggers network calls or flow execution.
func Materialize(cfg auth.Config, cred *credentials.Credential) *ClientParameters {
	p := &ClientParameters{AuthType: cfg.Type}

	switch cfg.Type {
	case auth.AuthTypeAPIKey:
		p.APIKey = cfg.APIKey

	case auth.AuthTypeVertexAI:
		p.ProjectID = cfg.ProjectID
		p.Location = cfg.Location
		if cred != nil && cred.AccessToken != "" {
			p.BearerToken = cred.AccessToken
			p.TokenType = tokenType(cred)
		} else {
			p.APIKey = cfg.APIKey
		}

	case auth.AuthTypeOAuthPersonal, auth.AuthTypeCloudShell:
		if cred != nil {
			p.BearerToken = cred.AccessToken
			p.TokenType = tokenType(cred)
		}
	}

	return p
}

func tokenType(cred *credentials.Credential) string {
	if cred.TokenType != "" {
		return cred.TokenType
	}
	return "Bearer"
}
