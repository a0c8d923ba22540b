// Package gdrive stores projects as JSON files in the user's Google Drive.
package gdrive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"projectstore/internal/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/singleflight"
	"google.golang.org/api/option"
)

// APIs is what loading Google's client configuration yields.
type APIs struct {
	OAuth         *oauth2.Config
	ClientOptions []option.ClientOption
}

// LoadFunc builds the APIs. It runs at most once at a time.
type LoadFunc func(ctx context.Context) (*APIs, error)

// Status reports the loader's state.
type Status struct {
	Loaded    bool
	LoadError error
}

// Loader loads the Google APIs once per process. Concurrent Init calls share
// one load; a failed load is retried by the next Init.
type Loader struct {
	load  LoadFunc
	group singleflight.Group

	mu      sync.RWMutex
	apis    *APIs
	lastErr error
}

// NewLoader creates a loader. A nil load uses LoadFromConfig.
func NewLoader(load LoadFunc) *Loader {
	if load == nil {
		load = LoadFromConfig
	}
	return &Loader{load: load}
}

// Init returns the loaded APIs, loading them if needed.
func (l *Loader) Init(ctx context.Context) (*APIs, error) {
	l.mu.RLock()
	apis := l.apis
	l.mu.RUnlock()
	if apis != nil {
		return apis, nil
	}

	v, err, _ := l.group.Do("init", func() (any, error) {
		l.mu.RLock()
		loaded := l.apis
		l.mu.RUnlock()
		if loaded != nil {
			return loaded, nil
		}

		// One caller giving up must not fail the others waiting on this load.
		apis, err := l.load(context.WithoutCancel(ctx))

		l.mu.Lock()
		defer l.mu.Unlock()
		if err != nil {
			l.lastErr = err
			slog.Error("Failed to load Google APIs", "error", err)
			return nil, err
		}
		l.apis = apis
		l.lastErr = nil
		slog.Info("Google APIs loaded")
		return apis, nil
	})
	if err != nil {
		return nil, newDriveError(ErrNotLoaded, err)
	}
	return v.(*APIs), nil
}

func (l *Loader) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Status{Loaded: l.apis != nil, LoadError: l.lastErr}
}

// Reset forgets the loaded APIs so the next Init loads again.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.apis = nil
	l.lastErr = nil
}

// LoadFromConfig builds the OAuth2 config from the client secrets file, or
// from the client id and secret when no file is configured.
func LoadFromConfig(ctx context.Context) (*APIs, error) {
	if config.GoogleClientSecretsFile != "" {
		return LoadFromSecretsFile(config.GoogleClientSecretsFile)(ctx)
	}
	if config.GoogleClientID == "" {
		return nil, fmt.Errorf("GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRETS_FILE must be set")
	}
	return newAPIs(&oauth2.Config{
		ClientID:     config.GoogleClientID,
		ClientSecret: config.GoogleClientSecret,
		RedirectURL:  config.GoogleRedirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       config.Scopes,
	}), nil
}

// LoadFromSecretsFile returns a LoadFunc that reads a client secrets file
// downloaded from the Google Cloud console.
func LoadFromSecretsFile(path string) LoadFunc {
	return func(ctx context.Context) (*APIs, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read client secrets: %w", err)
		}
		oauthConfig, err := google.ConfigFromJSON(data, config.Scopes...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse client secrets: %w", err)
		}
		return newAPIs(oauthConfig), nil
	}
}

func newAPIs(oauthConfig *oauth2.Config) *APIs {
	var opts []option.ClientOption
	if config.GoogleDriveEndpoint != "" {
		opts = append(opts, option.WithEndpoint(config.GoogleDriveEndpoint))
	}
	return &APIs{OAuth: oauthConfig, ClientOptions: opts}
}
