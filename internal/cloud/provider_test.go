package cloud

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"projectstore/internal/auth"
	"projectstore/internal/config"
	"projectstore/internal/modal"
	"projectstore/internal/project"
	"projectstore/internal/state"
	"projectstore/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI is an in-memory cloud service that records every call.
type fakeAPI struct {
	mu        sync.Mutex
	calls     []string
	projects  map[string]*CloudProject
	nextID    string
	versionID string
	updateErr error
	getErr    error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{projects: map[string]*CloudProject{}, nextID: "new-project", versionID: "v1"}
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) GetCloudProject(ctx context.Context, user auth.User, id string) (*CloudProject, error) {
	f.record("get:" + id)
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.projects[id]
	if !ok {
		return nil, &APIError{StatusCode: 404, Body: "not found"}
	}
	return p, nil
}

func (f *fakeAPI) ListCloudProjects(ctx context.Context, user auth.User) ([]CloudProject, error) {
	f.record("list")
	var out []CloudProject
	for _, p := range f.projects {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeAPI) CreateCloudProject(ctx context.Context, user auth.User, req CreateCloudProjectRequest) (*CloudProject, error) {
	f.record("create:" + req.Name)
	if f.nextID == "" {
		return &CloudProject{}, nil
	}
	p := &CloudProject{ID: f.nextID, Name: req.Name}
	f.projects[p.ID] = p
	return p, nil
}

func (f *fakeAPI) UpdateCloudProject(ctx context.Context, user auth.User, id string, req UpdateCloudProjectRequest) (*CloudProject, error) {
	f.record("update:" + id)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.projects[id], nil
}

func (f *fakeAPI) GetCredentialsForCloudProject(ctx context.Context, user auth.User, id string) (*Credentials, error) {
	f.record("credentials:" + id)
	return &Credentials{Bucket: "projects"}, nil
}

func (f *fakeAPI) GetPresignedUploadURL(ctx context.Context, user auth.User, id string) (string, error) {
	f.record("presign:" + id)
	return "https://upload.example/" + id, nil
}

func (f *fakeAPI) CommitVersion(ctx context.Context, user auth.User, id, previousVersion string) (string, error) {
	f.record("commit:" + id)
	return f.versionID, nil
}

// fakeBlobs keeps zips by key and records uploads.
type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	uploads map[string][]byte
	onCall  func(call string)
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}, uploads: map[string][]byte{}}
}

func (b *fakeBlobs) FetchProjectZip(ctx context.Context, creds *Credentials, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func (b *fakeBlobs) UploadZip(ctx context.Context, presignedURL string, zip []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.onCall != nil {
		b.onCall("upload")
	}
	b.uploads[presignedURL] = zip
	return nil
}

type fixture struct {
	api   *fakeAPI
	blobs *fakeBlobs
	cache *state.BoltAutoSaveCache
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cache, err := state.NewBoltAutoSaveCache(filepath.Join(t.TempDir(), "autosave.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return &fixture{
		api:   newFakeAPI(),
		blobs: newFakeBlobs(),
		cache: cache,
		now:   time.UnixMilli(1_700_000_000_000),
	}
}

func (f *fixture) provider(cache state.AutoSaveCache) storage.Provider {
	return NewStorageProvider(f.api, f.blobs, cache,
		WithGraceWindow(5*time.Second),
		WithClock(func() time.Time { return f.now }))
}

func (f *fixture) ops(user auth.User) *Operations {
	return f.provider(f.cache).CreateOperations(storage.Dependencies{User: user}).(*Operations)
}

func signedIn() auth.User {
	return auth.NewStaticUser(&auth.Profile{ID: "user-1", Email: "user@example.com"}, "token")
}

func sampleProject(name string) project.Project {
	p := project.Project{"layouts": []any{}}
	p.SetName(name)
	return p
}

func TestOpenReportsProgressInQuarters(t *testing.T) {
	f := newFixture(t)
	f.api.projects["proj-1"] = &CloudProject{ID: "proj-1", Name: "Game", CurrentVersion: "v7"}
	archive, err := project.Zip(sampleProject("Game"))
	require.NoError(t, err)
	f.blobs.objects[ObjectKey("proj-1", "v7")] = archive

	var ratios []float64
	var messages []string
	result, err := f.ops(signedIn()).Open(context.Background(), storage.FileMetadata{FileIdentifier: "proj-1"}, func(progress float64, message string) {
		ratios = append(ratios, progress)
		messages = append(messages, message)
	})
	require.NoError(t, err)

	assert.Equal(t, []float64{0.25, 0.5, 0.75, 1.0}, ratios)
	assert.Equal(t, openSteps[:], messages)
	assert.Equal(t, "Game", result.Content.Name())
}

func TestOpenSpecificVersion(t *testing.T) {
	f := newFixture(t)
	f.api.projects["proj-1"] = &CloudProject{ID: "proj-1", CurrentVersion: "v7"}
	archive, err := project.Zip(sampleProject("Older"))
	require.NoError(t, err)
	f.blobs.objects[ObjectKey("proj-1", "v3")] = archive

	result, err := f.ops(signedIn()).Open(context.Background(), storage.FileMetadata{FileIdentifier: "proj-1", Version: "v3"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Older", result.Content.Name())
}

func TestOpenUnreadableContentIsReadingError(t *testing.T) {
	f := newFixture(t)
	f.api.projects["proj-1"] = &CloudProject{ID: "proj-1"}
	archive, err := project.ZipBytes([]byte("not json"))
	require.NoError(t, err)
	f.blobs.objects[ObjectKey("proj-1", "")] = archive

	_, err = f.ops(signedIn()).Open(context.Background(), storage.FileMetadata{FileIdentifier: "proj-1"}, nil)
	var readingErr *ReadingError
	require.ErrorAs(t, err, &readingErr)
	assert.Equal(t, "proj-1", readingErr.ProjectID)
	assert.Contains(t, storage.OpenErrorMessage(err), "previous version")
}

func TestOpenAutoSaveOnlyUsesCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := signedIn()
	ops := f.ops(user)

	require.NoError(t, ops.AutoSave(ctx, sampleProject("Autosaved"), storage.FileMetadata{FileIdentifier: "proj-1"}))

	result, err := ops.Open(ctx, storage.FileMetadata{FileIdentifier: config.AutoSavePrefix + "proj-1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Autosaved", result.Content.Name())
	assert.Empty(t, f.api.Calls(), "autosave open must not reach the cloud service")
	assert.Empty(t, f.blobs.uploads)

	t.Run("missing entry", func(t *testing.T) {
		_, err := ops.Open(ctx, storage.FileMetadata{FileIdentifier: config.AutoSavePrefix + "other"}, nil)
		assert.ErrorIs(t, err, state.ErrEntryNotFound)
		assert.Empty(t, f.api.Calls())
	})

	t.Run("signed out", func(t *testing.T) {
		_, err := f.ops(auth.Anonymous()).Open(ctx, storage.FileMetadata{FileIdentifier: config.AutoSavePrefix + "proj-1"}, nil)
		assert.ErrorIs(t, err, storage.ErrNotAuthenticated)
	})

	t.Run("no cache", func(t *testing.T) {
		noCache := f.provider(nil).CreateOperations(storage.Dependencies{User: user})
		assert.False(t, noCache.Supports(storage.CapabilityAutoSave))
		_, err := noCache.Open(ctx, storage.FileMetadata{FileIdentifier: config.AutoSavePrefix + "proj-1"}, nil)
		assert.ErrorIs(t, err, storage.ErrCacheUnavailable)
		assert.Empty(t, f.api.Calls())
	})
}

func TestSaveProject(t *testing.T) {
	ctx := context.Background()

	t.Run("new version", func(t *testing.T) {
		f := newFixture(t)
		f.api.versionID = "v2"
		result, err := f.ops(signedIn()).SaveProject(ctx, sampleProject("Game"), storage.FileMetadata{FileIdentifier: "proj-1", Version: "v1"})
		require.NoError(t, err)
		assert.True(t, result.WasSaved)
		assert.Equal(t, "proj-1", result.FileMetadata.FileIdentifier)
		assert.Equal(t, "v2", result.FileMetadata.Version)
		assert.Equal(t, f.now.UnixMilli(), result.FileMetadata.LastModifiedDate)

		uploaded, err := project.Unzip(f.blobs.uploads["https://upload.example/proj-1"])
		require.NoError(t, err)
		assert.Equal(t, "Game", uploaded.Name())
	})

	t.Run("version not acknowledged", func(t *testing.T) {
		f := newFixture(t)
		f.api.versionID = ""
		input := storage.FileMetadata{FileIdentifier: "proj-1", Version: "v1", LastModifiedDate: 42}
		result, err := f.ops(signedIn()).SaveProject(ctx, sampleProject("Game"), input)
		require.NoError(t, err)
		assert.False(t, result.WasSaved)
		assert.Equal(t, input, *result.FileMetadata)
	})

	t.Run("missing identifier", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ops(signedIn()).SaveProject(ctx, sampleProject("Game"), storage.FileMetadata{})
		assert.ErrorIs(t, err, storage.ErrMissingFileIdentifier)
		assert.Empty(t, f.api.Calls())
	})
}

func TestSaveProjectAs(t *testing.T) {
	ctx := context.Background()

	t.Run("moves resources before writing content", func(t *testing.T) {
		f := newFixture(t)
		var order []string
		f.blobs.onCall = func(call string) { order = append(order, call) }

		p := sampleProject("Old name")
		result, err := f.ops(signedIn()).SaveProjectAs(ctx, p, &storage.SaveAsLocation{Name: "New name"}, storage.SaveAsOptions{
			OnMoveResources: func(ctx context.Context, fm storage.FileMetadata) error {
				order = append(order, "move:"+fm.FileIdentifier)
				return nil
			},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"move:new-project", "upload"}, order)
		assert.True(t, result.WasSaved)
		assert.Equal(t, "new-project", result.FileMetadata.FileIdentifier)
		assert.Equal(t, "v1", result.FileMetadata.Version)
		assert.Equal(t, "New name", p.Name())
	})

	t.Run("missing location", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ops(signedIn()).SaveProjectAs(ctx, sampleProject("Game"), nil, storage.SaveAsOptions{})
		assert.ErrorIs(t, err, storage.ErrMissingSaveAsLocation)
		_, err = f.ops(signedIn()).SaveProjectAs(ctx, sampleProject("Game"), &storage.SaveAsLocation{}, storage.SaveAsOptions{})
		assert.ErrorIs(t, err, storage.ErrMissingSaveAsLocation)
		assert.Empty(t, f.api.Calls())
	})

	t.Run("move failure stops the save", func(t *testing.T) {
		f := newFixture(t)
		boom := errors.New("copy failed")
		_, err := f.ops(signedIn()).SaveProjectAs(ctx, sampleProject("Game"), &storage.SaveAsLocation{Name: "Copy"}, storage.SaveAsOptions{
			OnMoveResources: func(ctx context.Context, fm storage.FileMetadata) error { return boom },
		})
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, f.blobs.uploads)
	})

	t.Run("creation without id fails", func(t *testing.T) {
		f := newFixture(t)
		f.api.nextID = ""
		_, err := f.ops(signedIn()).SaveProjectAs(ctx, sampleProject("Game"), &storage.SaveAsLocation{Name: "Copy"}, storage.SaveAsOptions{})
		assert.Error(t, err)
		assert.Empty(t, f.blobs.uploads)
	})

	t.Run("unacknowledged first version fails", func(t *testing.T) {
		f := newFixture(t)
		f.api.versionID = ""
		_, err := f.ops(signedIn()).SaveProjectAs(ctx, sampleProject("Game"), &storage.SaveAsLocation{Name: "Copy"}, storage.SaveAsOptions{})
		assert.Error(t, err)
	})
}

func TestChooseSaveProjectAsLocation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var asked modal.Request
	host := modal.HostFunc(func(ctx context.Context, req modal.Request) (any, error) {
		asked = req
		return "  My copy  ", nil
	})
	ops := f.provider(f.cache).CreateOperations(storage.Dependencies{User: signedIn(), Modal: host})

	location, err := ops.ChooseSaveProjectAsLocation(ctx, sampleProject("Game"), nil)
	require.NoError(t, err)
	assert.Equal(t, "My copy", location.Name)
	assert.Equal(t, modal.KindSaveAsName, asked.Kind)
	assert.Equal(t, "Game", asked.DefaultValue)

	dismissed := f.provider(f.cache).CreateOperations(storage.Dependencies{
		User:  signedIn(),
		Modal: modal.HostFunc(func(ctx context.Context, req modal.Request) (any, error) { return nil, nil }),
	})
	_, err = dismissed.ChooseSaveProjectAsLocation(ctx, sampleProject("Game"), nil)
	assert.ErrorIs(t, err, modal.ErrCancelled)
}

func TestChangeProjectProperty(t *testing.T) {
	ctx := context.Background()
	name := "Renamed"

	t.Run("update then commit", func(t *testing.T) {
		f := newFixture(t)
		f.api.projects["proj-1"] = &CloudProject{ID: "proj-1"}
		p := sampleProject("Game")
		ok := f.ops(signedIn()).ChangeProjectProperty(ctx, p, storage.FileMetadata{FileIdentifier: "proj-1"}, storage.ProjectProperties{Name: &name})
		assert.True(t, ok)
		assert.Equal(t, "Renamed", p.Name())
		assert.Equal(t, []string{"update:proj-1", "presign:proj-1", "commit:proj-1"}, f.api.Calls())
	})

	t.Run("failed update reports false without committing", func(t *testing.T) {
		f := newFixture(t)
		f.api.updateErr = errors.New("boom")
		p := sampleProject("Game")
		ok := f.ops(signedIn()).ChangeProjectProperty(ctx, p, storage.FileMetadata{FileIdentifier: "proj-1"}, storage.ProjectProperties{Name: &name})
		assert.False(t, ok)
		assert.Equal(t, "Game", p.Name())
		assert.Empty(t, f.blobs.uploads)
	})
}

func TestGetAutoSaveCreationDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ops := f.ops(signedIn())
	saveTime := f.now.UnixMilli()

	fm := storage.FileMetadata{FileIdentifier: "proj-1", LastModifiedDate: saveTime}

	date, err := ops.GetAutoSaveCreationDate(ctx, fm, true)
	require.NoError(t, err)
	assert.Nil(t, date, "no entry")

	require.NoError(t, f.cache.Put(ctx, state.Key("user-1", "proj-1"), state.AutoSaveEntry{Project: "{}", CreatedAt: saveTime + 5000}))
	date, err = ops.GetAutoSaveCreationDate(ctx, fm, true)
	require.NoError(t, err)
	assert.Nil(t, date, "within the grace window")

	require.NoError(t, f.cache.Put(ctx, state.Key("user-1", "proj-1"), state.AutoSaveEntry{Project: "{}", CreatedAt: saveTime + 5001}))
	date, err = ops.GetAutoSaveCreationDate(ctx, fm, true)
	require.NoError(t, err)
	require.NotNil(t, date)
	assert.Equal(t, saveTime+5001, date.UnixMilli())

	date, err = ops.GetAutoSaveCreationDate(ctx, fm, false)
	require.NoError(t, err)
	require.NotNil(t, date, "save time is still compared")
	assert.Equal(t, saveTime+5001, date.UnixMilli())

	date, err = ops.GetAutoSaveCreationDate(ctx, storage.FileMetadata{FileIdentifier: "proj-1"}, false)
	require.NoError(t, err)
	assert.Nil(t, date, "no save time and no comparison asked")

	date, err = ops.GetAutoSaveCreationDate(ctx, storage.FileMetadata{FileIdentifier: "proj-1"}, true)
	require.NoError(t, err)
	require.NotNil(t, date, "never saved")
	assert.Equal(t, saveTime+5001, date.UnixMilli())

	require.NoError(t, f.cache.Put(ctx, state.Key("user-1", "proj-1"), state.AutoSaveEntry{Project: "{}", CreatedAt: saveTime - 60_000}))
	date, err = ops.GetAutoSaveCreationDate(ctx, fm, false)
	require.NoError(t, err)
	assert.Nil(t, date, "older than the last save")

	date, err = f.ops(auth.Anonymous()).GetAutoSaveCreationDate(ctx, fm, true)
	require.NoError(t, err)
	assert.Nil(t, date, "signed out")
}

func TestGetAutoSaveAndBurst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ops := f.ops(signedIn())

	fm := storage.FileMetadata{FileIdentifier: "proj-1", Version: "v3", LastModifiedDate: 10}
	autoSave := ops.GetAutoSave(fm)
	assert.Equal(t, config.AutoSavePrefix+"proj-1", autoSave.FileIdentifier)
	assert.Equal(t, "v3", autoSave.Version)
	assert.Equal(t, autoSave, ops.GetAutoSave(autoSave), "prefix is not doubled")

	require.NoError(t, ops.AutoSave(ctx, sampleProject("Game"), fm))
	require.NoError(t, ops.BurstAutoSaveCache(ctx))
	_, err := ops.Open(ctx, autoSave, nil)
	assert.ErrorIs(t, err, state.ErrEntryNotFound)
}

func TestListProjects(t *testing.T) {
	f := newFixture(t)
	modified := time.UnixMilli(1_600_000_000_000)
	f.api.projects["proj-1"] = &CloudProject{ID: "proj-1", Name: "Game", CurrentVersion: "v2", LastModifiedAt: modified}

	ops := f.ops(signedIn())
	lister, ok := storage.AsLister(ops)
	require.True(t, ok)

	summaries, err := lister.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Game", summaries[0].Name)
	assert.Equal(t, storage.FileMetadata{FileIdentifier: "proj-1", Version: "v2", LastModifiedDate: modified.UnixMilli()}, summaries[0].FileMetadata)
}

func TestDescriptor(t *testing.T) {
	f := newFixture(t)
	provider := f.provider(f.cache)

	assert.Equal(t, InternalName, provider.InternalName)
	assert.False(t, provider.Disabled)
	assert.Nil(t, provider.FileMetadataFromAppArguments(map[string]string{}))
	fm := provider.FileMetadataFromAppArguments(map[string]string{AppArgument: "proj-9"})
	require.NotNil(t, fm)
	assert.Equal(t, "proj-9", fm.FileIdentifier)

	ops := provider.CreateOperations(storage.Dependencies{User: signedIn()})
	for _, c := range []storage.Capability{storage.CapabilityOpen, storage.CapabilitySave, storage.CapabilitySaveAs, storage.CapabilityAutoSave, storage.CapabilityChangeProperty} {
		assert.True(t, ops.Supports(c), c)
	}
	assert.False(t, ops.Supports(storage.CapabilityOpenWithPicker))
}
