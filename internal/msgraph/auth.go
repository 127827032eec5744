package msgraph

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	defaultScope     = "Calendars.ReadWrite offline_access"
	defaultLoginHost = "https://login.microsoftonline.com"
)

// Auth handles the OAuth2 device code flow for Microsoft Graph.
type Auth struct {
	clientID   string
	tenantID   string
	loginHost  string
	tokens     *TokenStore
	httpClient *http.Client
	logger     *zap.Logger
	// pollUnit scales the server supplied polling interval
	pollUnit time.Duration
}

// NewAuth creates an Auth for the given Azure AD app. An empty tenant means
// "common".
func NewAuth(clientID, tenantID string, tokens *TokenStore, logger *zap.Logger) *Auth {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tenantID == "" {
		tenantID = "common"
	}
	return &Auth{
		clientID:  clientID,
		tenantID:  tenantID,
		loginHost: defaultLoginHost,
		tokens:    tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:   logger,
		pollUnit: time.Second,
	}
}

// Configured reports whether a client id is set and tokens were saved.
func (a *Auth) Configured() bool {
	return a.clientID != "" && a.tokens != nil && a.tokens.exists()
}

// DeviceCodeResponse holds the response from the device code endpoint.
type DeviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
	Message         string `json:"message"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

func (t tokenResponse) data() *TokenData {
	return &TokenData{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(t.ExpiresIn) * time.Second),
		Scope:        t.Scope,
	}
}

func (a *Auth) endpoint(name string) string {
	return a.loginHost + "/" + a.tenantID + "/oauth2/v2.0/" + name
}

func (a *Auth) postForm(ctx context.Context, endpoint string, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, errors.Wrap(err, "reading response")
	}
	return resp.StatusCode, body, nil
}

// StartDeviceCodeFlow initiates the device code flow and returns the user code
// and verification URI to show.
func (a *Auth) StartDeviceCodeFlow(ctx context.Context) (*DeviceCodeResponse, error) {
	status, body, err := a.postForm(ctx, a.endpoint("devicecode"), url.Values{
		"client_id": {a.clientID},
		"scope":     {defaultScope},
	})
	if err != nil {
		return nil, errors.Wrap(err, "requesting device code")
	}
	if status != http.StatusOK {
		return nil, errors.Errorf("device code request failed (status %d): %s", status, truncateStr(string(body), 200))
	}

	var dc DeviceCodeResponse
	if err := json.Unmarshal(body, &dc); err != nil {
		return nil, errors.Wrap(err, "parsing device code response")
	}
	return &dc, nil
}

// PollForToken polls the token endpoint until the user completes
// authorization, then saves the tokens.
func (a *Auth) PollForToken(ctx context.Context, deviceCode string, interval int) (*TokenData, error) {
	if interval < 1 {
		interval = 5
	}
	form := url.Values{
		"client_id":   {a.clientID},
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
		"device_code": {deviceCode},
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(interval) * a.pollUnit):
		}

		_, body, err := a.postForm(ctx, a.endpoint("token"), form)
		if err != nil {
			return nil, errors.Wrap(err, "polling for token")
		}
		var tr tokenResponse
		if err := json.Unmarshal(body, &tr); err != nil {
			return nil, errors.Wrap(err, "parsing token response")
		}

		switch tr.Error {
		case "":
			tokens := tr.data()
			if err := a.tokens.Save(tokens); err != nil {
				return nil, err
			}
			return tokens, nil
		case "authorization_pending":
			a.logger.Debug("waiting for user authorization")
		case "slow_down":
			interval += 5
			a.logger.Debug("slowing down polling", zap.Int("interval", interval))
		case "expired_token":
			return nil, errors.New("device code expired, please try again")
		default:
			return nil, errors.Errorf("token error: %s: %s", tr.Error, tr.ErrorDesc)
		}
	}
}

// RefreshAccessToken uses a refresh token to obtain a new access token.
func (a *Auth) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenData, error) {
	_, body, err := a.postForm(ctx, a.endpoint("token"), url.Values{
		"client_id":     {a.clientID},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"scope":         {defaultScope},
	})
	if err != nil {
		return nil, errors.Wrap(err, "refreshing token")
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, errors.Wrap(err, "parsing refresh response")
	}
	if tr.Error != "" {
		return nil, errors.Errorf("refresh failed: %s: %s", tr.Error, tr.ErrorDesc)
	}
	return tr.data(), nil
}

// EnsureValidToken loads cached tokens, refreshes them when expired, and
// returns a valid access token.
func (a *Auth) EnsureValidToken(ctx context.Context) (string, error) {
	tokens, err := a.tokens.Load()
	if err != nil {
		return "", errors.Wrap(err, "loading cached tokens")
	}
	if tokens == nil {
		return "", errors.New("not authenticated with Microsoft Graph, run 'citabot calendar auth' first")
	}
	if !tokens.IsExpired() {
		return tokens.AccessToken, nil
	}

	a.logger.Debug("access token expired, refreshing")
	fresh, err := a.RefreshAccessToken(ctx, tokens.RefreshToken)
	if err != nil {
		return "", errors.Wrap(err, "token refresh failed (run 'citabot calendar auth' to re-authenticate)")
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tokens.RefreshToken
	}
	if err := a.tokens.Save(fresh); err != nil {
		a.logger.Warn("failed to cache refreshed tokens", zap.Error(err))
	}
	return fresh.AccessToken, nil
}
