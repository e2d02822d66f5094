package credentials

import "time"

// Credential is the access/refresh token bundle in the exact JSON shape the
// Gemini CLI writes to oauth_creds.json. ExpiryDate is absolute wall-clock
// time in epoch milliseconds, never a relative duration.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	ExpiryDate   int64  `json:"expiry_date,omitempty"`
}

// ExpirySafetyMargin is subtracted from the token expiry when judging
// freshness, so an in-flight request never races token expiry.
const ExpirySafetyMargin = 30 * time.Second

// Expiry returns the absolute expiry time, or the zero time when unset.
func (c *Credential) Expiry() time.Time {
	if c.ExpiryDate == 0 {
		return time.Time{}
	}
	return time.UnixMilli(c.ExpiryDate)
}

// SetExpiry stores t as epoch milliseconds.
func (c *Credential) SetExpiry(t time.Time) {
	c.ExpiryDate = t.UnixMilli()
}

// Usable reports whether the access token can still back a request at now.
// A credential without an expiry is treated as non-expiring.
func (c *Credential) Usable(now time.Time) bool {
	if c.AccessToken == "" {
		return false
	}
	if c.ExpiryDate == 0 {
		return true
	}
	return now.Before(c.Expiry().Add(-ExpirySafetyMargin))
}

// Refreshable reports whether an expired credential can be renewed without a
// full interactive flow.
func (c *Credential) Refreshable() bool {
	return c.RefreshToken != ""
}

// CachedFile is the on-disk representation: the credential in CLI wire format
// plus provenance metadata. Only the Store reads or writes it.
type CachedFile struct {
	Credential

	// AuthType records which strategy produced the credential.
	AuthType string `json:"auth_type,omitempty"`

	// LastRefresh is the RFC3339 time of the last successful exchange or refresh.
	LastRefresh string `json:"last_refresh,omitempty"`

	// Email is the cached identity from the userinfo endpoint, when known.
	Email string `json:"email,omitempty"`
}
