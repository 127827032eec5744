package gcal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading google token")
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(data, tok); err != nil {
		return nil, errors.Wrap(err, "parsing google token")
	}
	return tok, nil
}

// saveToken writes the token with 0600 permissions (tmp + rename).
func saveToken(path string, tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling google token")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "creating token directory")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return errors.Wrap(err, "writing temp token file")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "renaming token file")
	}
	return nil
}

// persistingSource writes every refreshed token back to disk so a rotated
// refresh token survives restarts.
type persistingSource struct {
	base   oauth2.TokenSource
	path   string
	logger *zap.Logger

	mu   sync.Mutex
	last string
}

func newPersistingSource(base oauth2.TokenSource, path string, initial *oauth2.Token, logger *zap.Logger) *persistingSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &persistingSource{base: base, path: path, logger: logger}
	if initial != nil {
		s.last = initial.AccessToken
	}
	return s
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := saveToken(s.path, tok); err != nil {
			s.logger.Warn("failed to cache refreshed google token", zap.Error(err))
		} else {
			s.logger.Debug("google token refreshed and saved")
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}

// Authorize runs the installed-app flow: it prints the consent URL, reads
// the code the user pastes back and saves the resulting token.
func Authorize(ctx context.Context, opts Options, in io.Reader, out io.Writer) error {
	cfg, err := oauthConfig(opts.CredentialsPath)
	if err != nil {
		return err
	}
	authURL := cfg.AuthCodeURL("citabot", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(out, "Open this link in your browser and authorize access:\n\n  %s\n\nPaste the authorization code: ", authURL)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return errors.Wrap(err, "reading authorization code")
	}
	code := strings.TrimSpace(line)
	if code == "" {
		return errors.New("no authorization code entered")
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return errors.Wrap(err, "exchanging authorization code")
	}
	if err := saveToken(opts.TokenPath, tok); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nToken saved to %s\n", opts.TokenPath)
	return nil
}
