package gdrive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"projectstore/internal/auth"
	"projectstore/internal/modal"
	"projectstore/internal/project"
	"projectstore/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// fakeDrive stands in for the Drive v3 REST API.
type fakeDrive struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	files    map[string]string
	requests []string
	uploads  map[string]string
	token    string
}

func newFakeDrive(t *testing.T) *fakeDrive {
	f := &fakeDrive{t: t, files: map[string]string{}, uploads: map[string]string{}, token: "good"}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeDrive) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	if r.URL.Path == "/token" {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": f.token, "token_type": "Bearer", "expires_in": 3600})
		return
	}

	if r.Header.Get("Authorization") != "Bearer "+f.token {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"message":"Invalid Credentials"}}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/files/"):
		id := strings.TrimPrefix(r.URL.Path, "/files/")
		content, ok := f.files[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"File not found"}}`))
			return
		}
		if r.URL.Query().Get("alt") == "media" {
			_, _ = w.Write([]byte(content))
			return
		}
		_ = json.NewEncoder(w).Encode(drive.File{Id: id, Name: id + ".json", ModifiedTime: "2025-09-06T10:00:00.000Z"})

	case r.Method == http.MethodPatch && strings.HasPrefix(r.URL.Path, "/upload/drive/v3/files/"):
		id := strings.TrimPrefix(r.URL.Path, "/upload/drive/v3/files/")
		body, _ := io.ReadAll(r.Body)
		f.uploads[id] = string(body)
		_ = json.NewEncoder(w).Encode(drive.File{Id: id, ModifiedTime: "2025-09-06T11:00:00.000Z"})

	case r.Method == http.MethodPost && r.URL.Path == "/files":
		var file drive.File
		_ = json.NewDecoder(r.Body).Decode(&file)
		f.files["created-1"] = ""
		_ = json.NewEncoder(w).Encode(drive.File{Id: "created-1", Name: file.Name})

	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"unexpected route"}}`))
	}
}

func (f *fakeDrive) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *fakeDrive) apis() *APIs {
	return &APIs{
		OAuth: &oauth2.Config{
			ClientID: "client",
			Endpoint: oauth2.Endpoint{AuthURL: f.server.URL + "/auth", TokenURL: f.server.URL + "/token"},
		},
		ClientOptions: []option.ClientOption{option.WithEndpoint(f.server.URL + "/")},
	}
}

// countingSignIn hands out fixed tokens and counts sign-ins.
type countingSignIn struct {
	calls  atomic.Int32
	token  string
	expiry time.Time
}

func (s *countingSignIn) SignIn(ctx context.Context, apis *APIs) (*oauth2.Token, error) {
	s.calls.Add(1)
	return &oauth2.Token{AccessToken: s.token, TokenType: "Bearer", Expiry: s.expiry}, nil
}

func newTestOperations(t *testing.T, f *fakeDrive, signIn SignIn, host modal.Host) storage.Operations {
	t.Helper()
	loader := NewLoader(func(ctx context.Context) (*APIs, error) { return f.apis(), nil })
	provider := NewStorageProvider(loader, func(deps storage.Dependencies) SignIn { return signIn })
	return provider.CreateOperations(storage.Dependencies{
		User:  auth.NewStaticUser(&auth.Profile{ID: "user-1"}, "token"),
		Modal: host,
	})
}

func TestLoaderSingleFlight(t *testing.T) {
	var loads atomic.Int32
	release := make(chan struct{})
	apis := &APIs{OAuth: &oauth2.Config{}}
	loader := NewLoader(func(ctx context.Context) (*APIs, error) {
		loads.Add(1)
		<-release
		return apis, nil
	})

	var wg sync.WaitGroup
	results := make([]*APIs, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := loader.Init(context.Background())
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
	for _, got := range results {
		assert.Same(t, apis, got)
	}
	assert.True(t, loader.Status().Loaded)

	_, err := loader.Init(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), loads.Load(), "loaded APIs are memoized")

	loader.Reset()
	assert.False(t, loader.Status().Loaded)
	_, err = loader.Init(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), loads.Load())
}

func TestLoaderFailureIsRetried(t *testing.T) {
	var loads atomic.Int32
	loader := NewLoader(func(ctx context.Context) (*APIs, error) {
		if loads.Add(1) == 1 {
			return nil, errors.New("network down")
		}
		return &APIs{}, nil
	})

	_, err := loader.Init(context.Background())
	assert.ErrorIs(t, err, ErrNotLoaded)
	status := loader.Status()
	assert.False(t, status.Loaded)
	assert.EqualError(t, status.LoadError, "network down")
	assert.Contains(t, storage.OpenErrorMessage(err), "could not be loaded")

	_, err = loader.Init(context.Background())
	require.NoError(t, err)
	assert.True(t, loader.Status().Loaded)
	assert.NoError(t, loader.Status().LoadError)
}

func TestSessionReusesSignIn(t *testing.T) {
	f := newFakeDrive(t)
	f.files["file-1"] = `{"properties":{"name":"Game"}}`
	signIn := &countingSignIn{token: "good"}
	ops := newTestOperations(t, f, signIn, nil)

	for range 2 {
		result, err := ops.Open(context.Background(), storage.FileMetadata{FileIdentifier: "file-1"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "Game", result.Content.Name())
	}
	assert.Equal(t, int32(1), signIn.calls.Load())
}

func TestSessionSignsInAgainAfterExpiry(t *testing.T) {
	loader := NewLoader(func(ctx context.Context) (*APIs, error) { return &APIs{}, nil })
	session := NewSession(loader)
	signIn := &countingSignIn{token: "good", expiry: time.Now().Add(-time.Minute)}

	_, err := session.Authenticate(context.Background(), signIn)
	require.NoError(t, err)
	assert.False(t, session.Authenticated(), "an expired token does not count as signed in")

	_, err = session.Authenticate(context.Background(), signIn)
	require.NoError(t, err)
	assert.Equal(t, int32(2), signIn.calls.Load())
}

func TestUnauthorizedResetsSession(t *testing.T) {
	f := newFakeDrive(t)
	f.files["file-1"] = `{}`
	signIn := &countingSignIn{token: "revoked"}
	loader := NewLoader(func(ctx context.Context) (*APIs, error) { return f.apis(), nil })
	provider := NewStorageProvider(loader, func(deps storage.Dependencies) SignIn { return signIn })
	user := auth.NewStaticUser(&auth.Profile{ID: "user-1"}, "token")

	ops := provider.CreateOperations(storage.Dependencies{User: user})
	_, err := ops.Open(context.Background(), storage.FileMetadata{FileIdentifier: "file-1"}, nil)
	assert.ErrorIs(t, err, ErrAuthorization)
	assert.Contains(t, storage.OpenErrorMessage(err), "Sign in again")

	// Signing in again picks up a working token.
	signIn.token = "good"
	_, err = provider.CreateOperations(storage.Dependencies{User: user}).Open(context.Background(), storage.FileMetadata{FileIdentifier: "file-1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), signIn.calls.Load())
}

func TestSessionsKeepOnlyKnownActiveUsers(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	all := newSessions(NewLoader(nil))
	all.now = func() time.Time { return now }

	assert.NotSame(t, all.get(""), all.get(""), "anonymous sessions are not shared")
	assert.Equal(t, 0, all.len())

	first := all.get("user-1")
	assert.Same(t, first, all.get("user-1"))
	all.get("user-2")
	assert.Equal(t, 2, all.len())

	now = now.Add(sessionIdleTimeout / 2)
	all.get("user-1")
	now = now.Add(sessionIdleTimeout/2 + time.Minute)
	assert.Same(t, first, all.get("user-1"), "recently used session is kept")
	assert.Equal(t, 1, all.len(), "idle session is dropped")
}

func TestSaveProject(t *testing.T) {
	f := newFakeDrive(t)
	ops := newTestOperations(t, f, &countingSignIn{token: "good"}, nil)

	p := project.Project{"layouts": []any{}}
	p.SetName("Game")
	result, err := ops.SaveProject(context.Background(), p, storage.FileMetadata{FileIdentifier: "file-1"})
	require.NoError(t, err)
	assert.True(t, result.WasSaved)
	assert.Equal(t, "file-1", result.FileMetadata.FileIdentifier)
	assert.NotZero(t, result.FileMetadata.LastModifiedDate)
	assert.Contains(t, f.uploads["file-1"], `"layouts"`)

	_, err = ops.SaveProject(context.Background(), p, storage.FileMetadata{})
	assert.ErrorIs(t, err, storage.ErrMissingFileIdentifier)
}

func TestSaveProjectAs(t *testing.T) {
	t.Run("moves resources before patching content", func(t *testing.T) {
		f := newFakeDrive(t)
		ops := newTestOperations(t, f, &countingSignIn{token: "good"}, nil)

		var moved []string
		var uploadsAtMove int
		result, err := ops.SaveProjectAs(context.Background(), project.Project{"layouts": []any{}}, &storage.SaveAsLocation{FileIdentifier: "target"}, storage.SaveAsOptions{
			OnMoveResources: func(ctx context.Context, fm storage.FileMetadata) error {
				moved = append(moved, fm.FileIdentifier)
				uploadsAtMove = len(f.uploads)
				return nil
			},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"target"}, moved)
		assert.Zero(t, uploadsAtMove)
		assert.True(t, result.WasSaved)
		assert.Contains(t, f.uploads["target"], `"layouts"`)
	})

	t.Run("missing location makes no request", func(t *testing.T) {
		f := newFakeDrive(t)
		signIn := &countingSignIn{token: "good"}
		ops := newTestOperations(t, f, signIn, nil)

		_, err := ops.SaveProjectAs(context.Background(), project.Project{}, nil, storage.SaveAsOptions{})
		assert.ErrorIs(t, err, storage.ErrMissingSaveAsLocation)
		_, err = ops.SaveProjectAs(context.Background(), project.Project{}, &storage.SaveAsLocation{Name: "only a name"}, storage.SaveAsOptions{})
		assert.ErrorIs(t, err, storage.ErrMissingSaveAsLocation)

		assert.Empty(t, f.Requests())
		assert.Zero(t, signIn.calls.Load())
	})
}

func TestChooseSaveProjectAsLocation(t *testing.T) {
	f := newFakeDrive(t)
	var asked modal.Request
	host := modal.HostFunc(func(ctx context.Context, req modal.Request) (any, error) {
		asked = req
		return modal.FileChoice{ParentFolderID: "folder-1", Name: "Copy.json"}, nil
	})
	ops := newTestOperations(t, f, &countingSignIn{token: "good"}, host)

	p := project.Project{}
	p.SetName("Game")
	location, err := ops.ChooseSaveProjectAsLocation(context.Background(), p, nil)
	require.NoError(t, err)
	assert.Equal(t, modal.KindDriveSaveAs, asked.Kind)
	assert.Equal(t, "Game.json", asked.DefaultValue)
	assert.Equal(t, &storage.SaveAsLocation{Name: "Copy.json", FileIdentifier: "created-1", ParentFolderID: "folder-1"}, location)
}

func TestOpenWithPicker(t *testing.T) {
	f := newFakeDrive(t)
	f.files["picked"] = `{}`
	host := modal.Answers{modal.KindDriveFile: "picked"}
	ops := newTestOperations(t, f, &countingSignIn{token: "good"}, host)

	picker, ok := storage.AsPickerOpener(ops)
	require.True(t, ok)
	fm, err := picker.OpenWithPicker(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "picked", fm.FileIdentifier)
	assert.Equal(t, time.Date(2025, 9, 6, 10, 0, 0, 0, time.UTC).UnixMilli(), fm.LastModifiedDate)
}

func TestInteractiveSignIn(t *testing.T) {
	f := newFakeDrive(t)
	var consentURL string
	host := modal.HostFunc(func(ctx context.Context, req modal.Request) (any, error) {
		assert.Equal(t, modal.KindDriveSignIn, req.Kind)
		consentURL = req.URL
		return " the-code ", nil
	})

	token, err := InteractiveSignIn{Host: host}.SignIn(context.Background(), f.apis())
	require.NoError(t, err)
	assert.Equal(t, "good", token.AccessToken)
	assert.True(t, strings.HasPrefix(consentURL, f.server.URL+"/auth?"))
	assert.Contains(t, consentURL, "access_type=offline")

	dismissed := modal.HostFunc(func(ctx context.Context, req modal.Request) (any, error) { return nil, nil })
	_, err = InteractiveSignIn{Host: dismissed}.SignIn(context.Background(), f.apis())
	assert.ErrorIs(t, err, modal.ErrCancelled)
}

func TestTokenProviderSignIn(t *testing.T) {
	provider := &auth.MockTokenProvider{Token: "google-token"}
	token, err := TokenProviderSignIn{Provider: provider, UserID: "google-oauth2|1"}.SignIn(context.Background(), &APIs{})
	require.NoError(t, err)
	assert.Equal(t, "google-token", token.AccessToken)
	assert.True(t, token.Valid())
	assert.Equal(t, []string{"google-oauth2|1"}, provider.Calls)

	_, err = TokenProviderSignIn{Provider: provider}.SignIn(context.Background(), &APIs{})
	assert.Error(t, err)
}

func TestDescriptor(t *testing.T) {
	provider := NewStorageProvider(NewLoader(nil), InteractiveSignInFactory)
	assert.Equal(t, InternalName, provider.InternalName)
	fm := provider.FileMetadataFromAppArguments(map[string]string{AppArgument: "abc"})
	require.NotNil(t, fm)
	assert.Equal(t, "abc", fm.FileIdentifier)
	assert.Nil(t, provider.FileMetadataFromAppArguments(map[string]string{"cloud-project-id": "x"}))

	ops := provider.CreateOperations(storage.Dependencies{})
	assert.True(t, ops.Supports(storage.CapabilityOpenWithPicker))
	assert.False(t, ops.Supports(storage.CapabilityAutoSave))
}

func TestLoadFromSecretsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client_secret.json")
	secrets := `{"installed":{"client_id":"client-1.apps.googleusercontent.com","client_secret":"shh",` +
		`"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token",` +
		`"redirect_uris":["http://localhost"]}}`
	require.NoError(t, os.WriteFile(path, []byte(secrets), 0o600))

	apis, err := LoadFromSecretsFile(path)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "client-1.apps.googleusercontent.com", apis.OAuth.ClientID)
	assert.Equal(t, "https://oauth2.googleapis.com/token", apis.OAuth.Endpoint.TokenURL)

	loader := NewLoader(LoadFromSecretsFile(filepath.Join(t.TempDir(), "missing.json")))
	_, err = loader.Init(context.Background())
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.Contains(t, OpenErrorMessage(err), "could not be loaded")
}
