package auth

import (
	"context"
	"errors"
)

// ErrNoToken is returned when a user has no usable access token.
var ErrNoToken = errors.New("no access token available")

// Profile is the signed-in user's account as known to the cloud service.
type Profile struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
}

// User is the authenticated user handed to every storage operations factory.
type User interface {
	Authenticated() bool
	// Profile returns nil when nobody is signed in.
	Profile() *Profile
	// AuthorizationHeader returns the value for the Authorization header of
	// calls to the cloud service.
	AuthorizationHeader(ctx context.Context) (string, error)
}

// StaticUser is a User with a fixed bearer token, e.g. one taken from an
// incoming request that was already validated.
type StaticUser struct {
	profile *Profile
	token   string
}

// NewStaticUser returns a signed-in user. An empty token still yields a
// profile but AuthorizationHeader fails.
func NewStaticUser(profile *Profile, token string) *StaticUser {
	return &StaticUser{profile: profile, token: token}
}

// Anonymous returns a user that is not signed in.
func Anonymous() *StaticUser {
	return &StaticUser{}
}

func (u *StaticUser) Authenticated() bool {
	return u.profile != nil
}

func (u *StaticUser) Profile() *Profile {
	return u.profile
}

func (u *StaticUser) AuthorizationHeader(ctx context.Context) (string, error) {
	if u.token == "" {
		return "", ErrNoToken
	}
	return "Bearer " + u.token, nil
}
