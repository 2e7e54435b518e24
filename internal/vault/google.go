package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trade-coach/internal/circuitbreaker"
	"trade-coach/internal/common/errors"
	commonhttp "trade-coach/internal/common/http"
	"trade-coach/internal/common/logging"
)

const (
	googleAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL = "https://oauth2.googleapis.com/token"
)

// DefaultScopes are the Google API scopes the coach needs: reading the
// journal spreadsheet and downloading attachments from Drive.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/spreadsheets.readonly",
	"https://www.googleapis.com/auth/drive.readonly",
}

// GoogleConfig configures the Google token endpoint client.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// GoogleExchanger implements Exchanger against Google's OAuth endpoints.
type GoogleExchanger struct {
	config     GoogleConfig
	tokenURL   string
	httpClient *http.Client
	breaker    *circuitbreaker.GoBreakerAdapter
}

func NewGoogleExchanger(config GoogleConfig, logger logging.Logger) *GoogleExchanger {
	if len(config.Scopes) == 0 {
		config.Scopes = DefaultScopes
	}
	return &GoogleExchanger{
		config:     config,
		tokenURL:   googleTokenURL,
		httpClient: commonhttp.NewHTTPClientWithTimeout(30 * time.Second),
		breaker:    circuitbreaker.NewGoBreaker("google-oauth", circuitbreaker.OAuthConfig, logger),
	}
}

// AuthCodeURL builds the consent page URL. The state token binds the
// callback to the user who started the flow.
func (g *GoogleExchanger) AuthCodeURL(state string) string {
	params := url.Values{}
	params.Set("client_id", g.config.ClientID)
	params.Set("redirect_uri", g.config.RedirectURL)
	params.Set("response_type", "code")
	params.Set("scope", strings.Join(g.config.Scopes, " "))
	params.Set("access_type", "offline")
	params.Set("prompt", "consent")
	params.Set("state", state)
	return googleAuthURL + "?" + params.Encode()
}

func (g *GoogleExchanger) Exchange(ctx context.Context, code string) (*Token, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("client_id", g.config.ClientID)
	data.Set("client_secret", g.config.ClientSecret)
	data.Set("redirect_uri", g.config.RedirectURL)

	return g.requestToken(ctx, data)
}

func (g *GoogleExchanger) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	data.Set("client_id", g.config.ClientID)
	data.Set("client_secret", g.config.ClientSecret)

	return g.requestToken(ctx, data)
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

func (g *GoogleExchanger) requestToken(ctx context.Context, data url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", g.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp *http.Response
	err = g.breaker.Execute(ctx, func() error {
		var httpErr error
		resp, httpErr = g.httpClient.Do(req)
		if httpErr != nil {
			return errors.ConnectionError("token request failed", httpErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)

		// invalid_grant means the user revoked access or the refresh token
		// aged out. That is not transient; the user must reconnect.
		if errResp.Error == "invalid_grant" {
			return nil, errors.AuthRequiredError("google grant is revoked or expired")
		}
		if errResp.Error != "" {
			return nil, errors.ConnectionError(
				fmt.Sprintf("token request failed: %s - %s", errResp.Error, errResp.Description), nil)
		}
		return nil, errors.ConnectionError(
			fmt.Sprintf("token request failed with status %d", resp.StatusCode), nil)
	}

	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, errors.ConnectionError("token response missing access token", nil)
	}

	expiry := time.Now()
	if tokenResp.ExpiresIn > 0 {
		expiry = expiry.Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	}

	var scopes []string
	if tokenResp.Scope != "" {
		scopes = strings.Fields(tokenResp.Scope)
	}

	return &Token{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		Expiry:       expiry,
		Scopes:       scopes,
	}, nil
}
