package auth

import (
	"context"
	"sync"
	"time"
)

// RefreshingUser is a signed-in user whose access token is obtained from a
// long-lived refresh token and renewed before it expires.
type RefreshingUser struct {
	profile      *Profile
	client       *Auth0Client
	refreshToken string

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewRefreshingUser creates a user for the CLI. A nil profile or an empty
// refresh token yields an unauthenticated user.
func NewRefreshingUser(profile *Profile, client *Auth0Client, refreshToken string) *RefreshingUser {
	return &RefreshingUser{profile: profile, client: client, refreshToken: refreshToken}
}

func (u *RefreshingUser) Authenticated() bool {
	return u.profile != nil && u.refreshToken != ""
}

func (u *RefreshingUser) Profile() *Profile {
	if !u.Authenticated() {
		return nil
	}
	return u.profile
}

func (u *RefreshingUser) AuthorizationHeader(ctx context.Context) (string, error) {
	if !u.Authenticated() {
		return "", ErrNoToken
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.token != "" && time.Now().Before(u.expiresAt) {
		return "Bearer " + u.token, nil
	}

	token, expiresIn, err := u.client.RefreshAccessToken(ctx, u.refreshToken)
	if err != nil {
		return "", err
	}
	u.token = token
	u.expiresAt = time.Now().Add(expiresIn - 5*time.Minute)
	return "Bearer " + u.token, nil
}
