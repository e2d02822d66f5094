package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dvcrn/gemini-cli-auth/internal/env"
	"github.com/dvcrn/gemini-cli-auth/internal/logger"
	"github.com/dvcrn/gemini-cli-auth/internal/util"
)

// Environment overrides for the cache location and content.
const (
	// EnvCredsPath points the store at a different cache file.
	EnvCredsPath = "GEMINI_OAUTH_CREDS_PATH"
	// EnvCredsJSON supplies the credential JSON directly; the store then
	// operates read-only and never touches the filesystem.
	EnvCredsJSON = "GEMINI_OAUTH_CREDS"
)

const (
	credsDirName        = ".gemini"
	credsFileName       = "oauth_creds.json"
	legacyCredsFileName = "oauth.json"
)

// Store owns the on-disk credential cache. Every read and write of the cache
// file goes through it; writes are atomic and serialized so a concurrent
// refresh can never be observed as a partial file.
type Store struct {
	mu      sync.Mutex
	path    string
	envJSON string
	now     func() time.Time
}

// NewStore resolves the cache location from the environment. The preferred
// file is ~/.gemini/oauth_creds.json; a pre-existing legacy ~/.gemini/oauth.json
// is used instead so older setups keep working.
func NewStore(src env.Source) (*Store, error) {
	s := &Store{now: time.Now}

	if raw, ok := env.Get(src, EnvCredsJSON); ok {
		s.envJSON = raw
		return s, nil
	}

	if path, ok := env.Get(src, EnvCredsPath); ok {
		s.path = path
		return s, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	base := filepath.Join(homeDir, credsDirName)
	preferred := filepath.Join(base, credsFileName)
	legacy := filepath.Join(base, legacyCredsFileName)
	if _, err := os.Stat(preferred); err == nil {
		s.path = preferred
	} else if _, err := os.Stat(legacy); err == nil {
		s.path = legacy
	} else {
		s.path = preferred
	}
	return s, nil
}

// Path returns the cache file location, or "" in environment-JSON mode.
func (s *Store) Path() string {
	return s.path
}

// ReadOnly reports whether the credential came from GEMINI_OAUTH_CREDS and
// therefore cannot be persisted.
func (s *Store) ReadOnly() bool {
	return s.envJSON != ""
}

// Load reads the cached credential. A missing, unreadable, or structurally
// corrupt cache is reported as absent (nil, nil), never as a fatal error;
// re-authentication is pushed upstream instead.
func (s *Store) Load() (*CachedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	if s.envJSON != "" {
		data = []byte(s.envJSON)
	} else {
		var err error
		data, err = os.ReadFile(s.path)
		if err != nil {
			if !os.IsNotExist(err) {
				logger.Get().Warn().Err(err).Str("path", s.path).Msg("Credential cache unreadable, treating as absent")
			}
			return nil, nil
		}
	}

	cached := &CachedFile{}
	if err := json.Unmarshal(data, cached); err != nil {
		logger.Get().Warn().Err(err).Str("path", s.path).Msg("Credential cache corrupt, treating as absent")
		return nil, nil
	}
	if cached.AccessToken == "" {
		return nil, nil
	}
	return cached, nil
}

// Save persists the credential with its provenance. The write is atomic
// (temp file + rename) with owner-only permissions. In environment-JSON mode
// saving is skipped, not an error.
func (s *Store) Save(cred *Credential, authType string, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.envJSON != "" {
		logger.Get().Debug().Msg("Credential store is read-only (GEMINI_OAUTH_CREDS), skipping save")
		return nil
	}

	cached := &CachedFile{
		Credential:  *cred,
		AuthType:    authType,
		LastRefresh: s.now().UTC().Format(time.RFC3339),
		Email:       email,
	}
	if err := util.WriteJSONAtomic(s.path, cached, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials to %s: %w", s.path, err)
	}

	logger.Get().Debug().Str("path", s.path).Msg("Saved credentials")
	return nil
}

// Invalidate removes the cache file. A missing file is not an error. The
// environment-JSON variant cannot be invalidated; the caller simply stops
// trusting it.
func (s *Store) Invalidate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.envJSON != "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credential cache: %w", err)
	}
	logger.Get().Debug().Str("path", s.path).Msg("Invalidated credential cache")
	return nil
}
