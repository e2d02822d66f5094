package oauth

import (
	"context"

	"golang.org/x/oauth2/google"

	"github.com/dvcrn/gemini-cli-auth/internal/credentials"
)

// AmbientCredential mints an access token from the host's application default
// credentials (Cloud Shell, GCE metadata, gcloud). No interactive flow and no
// cache: the host manages the underlying credential's lifetime.
func AmbientCredential(ctx context.Context) (*credentials.Credential, error) {
	ts, err := google.DefaultTokenSource(ctx, oauthScopes...)
	if err != nil {
		return nil, flowErr(KindInvalidCredential, "no ambient host credentials available", err)
	}
	tok, err := ts.Token()
	if err != nil {
		return nil, flowErr(KindNetwork, "failed to obtain ambient host token", err)
	}
	return credentialFromToken(tok), nil
}
