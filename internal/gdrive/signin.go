package gdrive

import (
	"context"
	"fmt"
	"strings"

	"projectstore/internal/auth"
	"projectstore/internal/modal"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// TokenProviderSignIn signs in with a Google token the identity provider
// already holds for the user. Used by the HTTP server.
type TokenProviderSignIn struct {
	Provider auth.TokenProvider
	UserID   string
}

func (s TokenProviderSignIn) SignIn(ctx context.Context, apis *APIs) (*oauth2.Token, error) {
	if s.UserID == "" {
		return nil, fmt.Errorf("no user to get a Google token for")
	}
	accessToken, err := s.Provider.GetGoogleAccessToken(ctx, s.UserID)
	if err != nil {
		return nil, err
	}
	// No expiry is known, a 401 ends the session instead.
	return &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}, nil
}

// InteractiveSignIn shows the consent URL through the modal host and waits
// for the authorization code the user pastes back.
type InteractiveSignIn struct {
	Host modal.Host
}

func (s InteractiveSignIn) SignIn(ctx context.Context, apis *APIs) (*oauth2.Token, error) {
	state := uuid.NewString()
	consentURL := apis.OAuth.AuthCodeURL(state, oauth2.AccessTypeOffline)

	code, err := modal.Await[string](ctx, s.Host, modal.Request{
		Kind:         modal.KindDriveSignIn,
		ProviderName: InternalName,
		Title:        "Sign in to Google Drive",
		URL:          consentURL,
	})
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, modal.ErrCancelled
	}

	token, err := apis.OAuth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return token, nil
}
