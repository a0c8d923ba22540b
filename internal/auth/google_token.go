package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// TokenProvider returns a Google access token for a user.
type TokenProvider interface {
	GetGoogleAccessToken(ctx context.Context, userID string) (string, error)
}

// Auth0GoogleTokenProvider reads the Google access token stored on the
// user's google-oauth2 identity in Auth0.
type Auth0GoogleTokenProvider struct {
	client *Auth0Client
}

// NewAuth0GoogleTokenProvider creates a provider backed by the Auth0 management API.
func NewAuth0GoogleTokenProvider(client *Auth0Client) *Auth0GoogleTokenProvider {
	return &Auth0GoogleTokenProvider{client: client}
}

// GetGoogleAccessToken exchanges the Auth0 identity of userID for its Google access token
func (p *Auth0GoogleTokenProvider) GetGoogleAccessToken(ctx context.Context, userID string) (string, error) {
	// Extract the connection from user ID (e.g., "google-oauth2|123456")
	if parts := strings.Split(userID, "|"); len(parts) < 2 {
		return "", fmt.Errorf("invalid user ID format: %s", userID)
	}

	mgmtToken, err := p.client.ManagementToken(ctx)
	if err != nil {
		return "", err
	}

	slog.Info("Fetching Google access token for user", "sub", userID)

	endpoint := fmt.Sprintf("%s/api/v2/users/%s", p.client.config.BaseURL(), url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+mgmtToken)

	resp, err := p.client.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed to get user info, status %d: %s", resp.StatusCode, string(body))
	}

	var user struct {
		Identities []struct {
			Provider    string `json:"provider"`
			AccessToken string `json:"access_token"`
		} `json:"identities"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("failed to decode user info: %w", err)
	}

	for _, identity := range user.Identities {
		if identity.Provider == "google-oauth2" {
			if identity.AccessToken == "" {
				return "", fmt.Errorf("google access token not available for user")
			}
			return identity.AccessToken, nil
		}
	}

	return "", fmt.Errorf("no google identity found for user")
}
