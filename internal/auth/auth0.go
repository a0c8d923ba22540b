package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// Auth0Config holds Auth0 configuration
type Auth0Config struct {
	Domain       string
	Audience     string
	ClientID     string
	ClientSecret string
}

// GetAuth0Config returns Auth0 configuration from environment
func GetAuth0Config() *Auth0Config {
	return &Auth0Config{
		Domain:       os.Getenv("AUTH0_DOMAIN"),
		Audience:     os.Getenv("AUTH0_AUDIENCE"),
		ClientID:     os.Getenv("AUTH0_CLIENT_ID"),
		ClientSecret: os.Getenv("AUTH0_CLIENT_SECRET"),
	}
}

// BaseURL is the tenant URL. Domains given with a scheme (tests) are kept as is.
func (c *Auth0Config) BaseURL() string {
	if strings.HasPrefix(c.Domain, "http://") || strings.HasPrefix(c.Domain, "https://") {
		return c.Domain
	}
	return "https://" + c.Domain
}

// tokenResponse is the body of Auth0's /oauth/token endpoint.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Auth0Client talks to the Auth0 token and management endpoints and caches
// the management token.
type Auth0Client struct {
	config     *Auth0Config
	httpClient *http.Client

	mu        sync.RWMutex
	mgmtToken string
	expiresAt time.Time
}

// NewAuth0Client creates a client for the given tenant.
func NewAuth0Client(config *Auth0Config, httpClient *http.Client) *Auth0Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Auth0Client{config: config, httpClient: httpClient}
}

// ManagementToken returns a cached management token or fetches a new one
func (a *Auth0Client) ManagementToken(ctx context.Context) (string, error) {
	a.mu.RLock()
	if a.mgmtToken != "" && time.Now().Before(a.expiresAt) {
		token := a.mgmtToken
		a.mu.RUnlock()
		return token, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	// Double-check after acquiring write lock
	if a.mgmtToken != "" && time.Now().Before(a.expiresAt) {
		return a.mgmtToken, nil
	}

	slog.Info("Fetching new Auth0 management token")
	resp, err := a.requestToken(ctx, map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     a.config.ClientID,
		"client_secret": a.config.ClientSecret,
		"audience":      a.config.BaseURL() + "/api/v2/",
	})
	if err != nil {
		return "", fmt.Errorf("failed to get management token: %w", err)
	}

	// Cache with a small buffer before expiration (5 minutes early)
	a.mgmtToken = resp.AccessToken
	a.expiresAt = time.Now().Add(time.Duration(resp.ExpiresIn)*time.Second - 5*time.Minute)

	slog.Info("Cached new management token", "expiresAt", a.expiresAt)
	return a.mgmtToken, nil
}

// RefreshAccessToken exchanges a refresh token for a user access token.
func (a *Auth0Client) RefreshAccessToken(ctx context.Context, refreshToken string) (string, time.Duration, error) {
	resp, err := a.requestToken(ctx, map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     a.config.ClientID,
		"refresh_token": refreshToken,
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to refresh access token: %w", err)
	}
	return resp.AccessToken, time.Duration(resp.ExpiresIn) * time.Second, nil
}

func (a *Auth0Client) requestToken(ctx context.Context, payload map[string]string) (*tokenResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL()+"/oauth/token", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("auth0 returned status %d: %s", resp.StatusCode, string(b))
	}

	var result tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("auth0 returned an empty access token")
	}
	return &result, nil
}
