package msgraph

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// TokenData holds OAuth2 token data for Microsoft Graph API.
type TokenData struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scope        string    `json:"scope"`
}

// IsExpired returns true if the token is expired or will expire within 5 minutes.
func (t *TokenData) IsExpired() bool {
	return time.Now().Add(5 * time.Minute).After(t.ExpiresAt)
}

// TokenStore keeps the Graph tokens in a JSON file.
type TokenStore struct {
	Path string
}

// DefaultTokenStore stores tokens in ~/.config/citabot/msgraph_tokens.json.
func DefaultTokenStore() (*TokenStore, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "finding home directory")
	}
	return &TokenStore{Path: filepath.Join(home, ".config", "citabot", "msgraph_tokens.json")}, nil
}

// Load returns nil, nil if the file does not exist.
func (s *TokenStore) Load() (*TokenData, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "reading token file")
	}

	var tokens TokenData
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, errors.Wrap(err, "parsing token file")
	}
	return &tokens, nil
}

// Save writes tokens with 0600 permissions (tmp + rename).
func (s *TokenStore) Save(tokens *TokenData) error {
	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling tokens")
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return errors.Wrap(err, "creating config directory")
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return errors.Wrap(err, "writing temp token file")
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "renaming token file")
	}
	return nil
}

func (s *TokenStore) exists() bool {
	_, err := os.Stat(s.Path)
	return err == nil
}
