package gdrive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"projectstore/internal/modal"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// SignIn obtains a Google token for the current user.
type SignIn interface {
	SignIn(ctx context.Context, apis *APIs) (*oauth2.Token, error)
}

// SignInFunc adapts a function to SignIn.
type SignInFunc func(ctx context.Context, apis *APIs) (*oauth2.Token, error)

func (f SignInFunc) SignIn(ctx context.Context, apis *APIs) (*oauth2.Token, error) {
	return f(ctx, apis)
}

// Session is one user's Drive sign-in state.
type Session struct {
	loader *Loader

	mu            sync.Mutex
	authenticated bool
	token         *oauth2.Token
}

func NewSession(loader *Loader) *Session {
	return &Session{loader: loader}
}

// Authenticate returns a Drive client for the user, signing in through
// signIn unless a valid sign-in is cached.
func (s *Session) Authenticate(ctx context.Context, signIn SignIn) (*drive.Service, error) {
	apis, err := s.loader.Init(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.authenticated && !s.token.Valid() {
		slog.Info("Google Drive token expired")
		s.authenticated = false
	}

	if !s.authenticated {
		if signIn == nil {
			return nil, newDriveError(ErrAuthorization, errors.New("no sign-in method available"))
		}
		token, err := signIn.SignIn(ctx, apis)
		if err != nil {
			if errors.Is(err, modal.ErrCancelled) || errors.Is(err, modal.ErrNoAnswer) {
				return nil, err
			}
			return nil, newDriveError(ErrAuthorization, err)
		}
		s.token = token
		s.authenticated = true
	}

	opts := append(slices.Clone(apis.ClientOptions),
		option.WithHTTPClient(oauth2.NewClient(ctx, oauth2.StaticTokenSource(s.token))))
	service, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}
	return service, nil
}

func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated && s.token.Valid()
}

// SignOut forgets the cached token.
func (s *Session) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = false
	s.token = nil
}

// check inspects a Drive call failure. A 401 drops the cached sign-in.
func (s *Session) check(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
		slog.Warn("Google Drive refused the token, signing out")
		s.SignOut()
		return newDriveError(ErrAuthorization, err)
	}
	return err
}

// sessionIdleTimeout is how long an unused sign-in is kept.
const sessionIdleTimeout = 12 * time.Hour

type trackedSession struct {
	session  *Session
	lastUsed time.Time
}

// sessions keeps one Session per profile id and drops the ones left idle.
type sessions struct {
	loader *Loader
	idle   time.Duration
	now    func() time.Time

	mu     sync.Mutex
	byUser map[string]*trackedSession
}

func newSessions(loader *Loader) *sessions {
	return &sessions{
		loader: loader,
		idle:   sessionIdleTimeout,
		now:    time.Now,
		byUser: make(map[string]*trackedSession),
	}
}

// get returns the session of userID. Anonymous users get a session of
// their own that is not kept.
func (s *sessions) get(userID string) *Session {
	if userID == "" {
		return NewSession(s.loader)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, tracked := range s.byUser {
		if now.Sub(tracked.lastUsed) > s.idle {
			delete(s.byUser, id)
		}
	}

	tracked, ok := s.byUser[userID]
	if !ok {
		tracked = &trackedSession{session: NewSession(s.loader)}
		s.byUser[userID] = tracked
	}
	tracked.lastUsed = now
	return tracked.session
}

func (s *sessions) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byUser)
}
