package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"projectstore/internal/auth"
	"projectstore/internal/config"
	"projectstore/internal/modal"
	"projectstore/internal/project"
	"projectstore/internal/state"
	"projectstore/internal/storage"
)

// InternalName identifies the cloud provider in URLs and preferences.
const InternalName = "Cloud"

// AppArgument is the launch argument naming a cloud project to open.
const AppArgument = "cloud-project-id"

// Open progress phrases, one per quarter.
var openSteps = [4]string{
	"Fetching project information",
	"Getting access to project files",
	"Downloading project",
	"Reading project",
}

// Option customizes the cloud provider.
type Option func(*settings)

type settings struct {
	graceWindow time.Duration
	now         func() time.Time
}

// WithGraceWindow sets how much newer than the last save an autosave must be
// to be offered for recovery.
func WithGraceWindow(d time.Duration) Option {
	return func(s *settings) { s.graceWindow = d }
}

// WithClock replaces time.Now (for testing).
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// NewStorageProvider describes the cloud backend. A nil cache disables the
// autosave capability.
func NewStorageProvider(api API, blobs BlobStore, cache state.AutoSaveCache, opts ...Option) storage.Provider {
	s := settings{graceWindow: config.AutoSaveGraceWindow, now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}

	return storage.Provider{
		InternalName: InternalName,
		Name:         "Cloud projects",
		FileMetadataFromAppArguments: func(args map[string]string) *storage.FileMetadata {
			if id := args[AppArgument]; id != "" {
				return &storage.FileMetadata{FileIdentifier: id}
			}
			return nil
		},
		CreateOperations: func(deps storage.Dependencies) storage.Operations {
			return newOperations(api, blobs, cache, deps, s)
		},
	}
}

// Operations is the cloud backend bound to one user.
type Operations struct {
	api   API
	blobs BlobStore
	cache state.AutoSaveCache
	user  auth.User
	modal modal.Host
	caps  storage.CapabilitySet
	settings
}

// newOperations binds the cloud backend to deps.
func newOperations(api API, blobs BlobStore, cache state.AutoSaveCache, deps storage.Dependencies, s settings) *Operations {
	caps := storage.NewCapabilitySet(
		storage.CapabilityOpen,
		storage.CapabilitySave,
		storage.CapabilitySaveAs,
		storage.CapabilityChooseSaveAsLocation,
		storage.CapabilityChangeProperty,
		storage.CapabilityList,
	)
	if cache != nil {
		caps[storage.CapabilityAutoSave] = true
	}
	user := deps.User
	if user == nil {
		user = auth.Anonymous()
	}
	return &Operations{
		api:      api,
		blobs:    blobs,
		cache:    cache,
		user:     user,
		modal:    deps.Modal,
		caps:     caps,
		settings: s,
	}
}

func (o *Operations) Supports(c storage.Capability) bool {
	return o.caps.Supports(c)
}

// Open loads a project. Identifiers carrying the autosave prefix are read
// from the autosave cache only.
func (o *Operations) Open(ctx context.Context, fm storage.FileMetadata, onProgress storage.ProgressFunc) (*storage.OpenResult, error) {
	if projectID, ok := strings.CutPrefix(fm.FileIdentifier, config.AutoSavePrefix); ok {
		return o.openAutoSave(ctx, projectID)
	}
	if fm.FileIdentifier == "" {
		return nil, storage.ErrMissingFileIdentifier
	}
	projectID := fm.FileIdentifier

	progress := func(step int) {
		if onProgress != nil {
			onProgress(float64(step+1)/float64(len(openSteps)), openSteps[step])
		}
	}

	progress(0)
	cloudProject, err := o.api.GetCloudProject(ctx, o.user, projectID)
	if err != nil {
		slog.Error("Failed to open cloud project", "projectId", projectID, "step", openSteps[0], "error", err)
		return nil, err
	}

	progress(1)
	creds, err := o.api.GetCredentialsForCloudProject(ctx, o.user, projectID)
	if err != nil {
		slog.Error("Failed to open cloud project", "projectId", projectID, "step", openSteps[1], "error", err)
		return nil, err
	}

	progress(2)
	version := fm.Version
	if version == "" {
		version = cloudProject.CurrentVersion
	}
	archive, err := o.blobs.FetchProjectZip(ctx, creds, ObjectKey(projectID, version))
	if err != nil {
		slog.Error("Failed to open cloud project", "projectId", projectID, "step", openSteps[2], "error", err)
		return nil, err
	}

	progress(3)
	content, err := project.Unzip(archive)
	if err != nil {
		slog.Error("Cloud project content is unreadable", "projectId", projectID, "version", version, "error", err)
		return nil, &ReadingError{ProjectID: projectID, Err: err}
	}

	return &storage.OpenResult{Content: content}, nil
}

func (o *Operations) openAutoSave(ctx context.Context, projectID string) (*storage.OpenResult, error) {
	key, err := o.autoSaveKey(projectID)
	if err != nil {
		return nil, err
	}

	entry, err := o.cache.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read autosave of %s: %w", projectID, err)
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", state.ErrEntryNotFound, projectID)
	}

	content, err := project.Parse([]byte(entry.Project))
	if err != nil {
		return nil, &ReadingError{ProjectID: projectID, Err: err}
	}
	return &storage.OpenResult{Content: content}, nil
}

// SaveProject commits a new version of an existing project. A version the
// service does not acknowledge is reported as not saved.
func (o *Operations) SaveProject(ctx context.Context, p project.Project, fm storage.FileMetadata) (*storage.SaveResult, error) {
	projectID := strings.TrimPrefix(fm.FileIdentifier, config.AutoSavePrefix)
	if projectID == "" {
		return nil, storage.ErrMissingFileIdentifier
	}

	version, err := o.commit(ctx, p, projectID, fm.Version)
	if err != nil {
		return nil, err
	}
	if version == "" {
		slog.Warn("Cloud project version was not acknowledged", "projectId", projectID)
		return &storage.SaveResult{WasSaved: false, FileMetadata: &fm}, nil
	}

	return &storage.SaveResult{
		WasSaved: true,
		FileMetadata: &storage.FileMetadata{
			FileIdentifier:   projectID,
			Version:          version,
			LastModifiedDate: o.now().UnixMilli(),
		},
	}, nil
}

// SaveProjectAs creates a new cloud project named location.Name, lets the
// caller relink resources, then commits the first version.
func (o *Operations) SaveProjectAs(ctx context.Context, p project.Project, location *storage.SaveAsLocation, opts storage.SaveAsOptions) (*storage.SaveResult, error) {
	if location == nil || strings.TrimSpace(location.Name) == "" {
		return nil, storage.ErrMissingSaveAsLocation
	}

	cloudProject, err := o.api.CreateCloudProject(ctx, o.user, CreateCloudProjectRequest{Name: location.Name})
	if err != nil {
		return nil, err
	}
	if cloudProject == nil || cloudProject.ID == "" {
		return nil, errors.New("cloud project creation returned no project id")
	}

	p.SetName(location.Name)
	newMetadata := storage.FileMetadata{FileIdentifier: cloudProject.ID}

	if opts.OnMoveResources != nil {
		if err := opts.OnMoveResources(ctx, newMetadata); err != nil {
			return nil, fmt.Errorf("failed to move resources to cloud project %s: %w", cloudProject.ID, err)
		}
	}

	version, err := o.commit(ctx, p, cloudProject.ID, "")
	if err != nil {
		return nil, err
	}
	if version == "" {
		return nil, fmt.Errorf("first version of cloud project %s was not acknowledged", cloudProject.ID)
	}

	newMetadata.Version = version
	newMetadata.LastModifiedDate = o.now().UnixMilli()
	return &storage.SaveResult{WasSaved: true, FileMetadata: &newMetadata}, nil
}

// ChooseSaveProjectAsLocation asks the user for the new project name.
func (o *Operations) ChooseSaveProjectAsLocation(ctx context.Context, p project.Project, fm *storage.FileMetadata) (*storage.SaveAsLocation, error) {
	name, err := modal.Await[string](ctx, o.modal, modal.Request{
		Kind:         modal.KindSaveAsName,
		ProviderName: InternalName,
		Title:        "Save project as",
		DefaultValue: p.Name(),
	})
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, modal.ErrCancelled
	}
	return &storage.SaveAsLocation{Name: name}, nil
}

// ChangeProjectProperty updates the project record, then commits a version
// so the content agrees with it.
func (o *Operations) ChangeProjectProperty(ctx context.Context, p project.Project, fm storage.FileMetadata, props storage.ProjectProperties) bool {
	projectID := fm.FileIdentifier
	if projectID == "" {
		slog.Error("Cannot change property of a project without identifier")
		return false
	}

	_, err := o.api.UpdateCloudProject(ctx, o.user, projectID, UpdateCloudProjectRequest{
		Name:        props.Name,
		Description: props.Description,
	})
	if err != nil {
		slog.Error("Failed to update cloud project", "projectId", projectID, "error", err)
		return false
	}

	if props.Name != nil {
		p.SetName(*props.Name)
	}
	if props.Description != nil {
		p.SetDescription(*props.Description)
	}

	version, err := o.commit(ctx, p, projectID, fm.Version)
	if err != nil {
		slog.Error("Failed to commit cloud project after property change", "projectId", projectID, "error", err)
		return false
	}
	return version != ""
}

// ListProjects lists the signed-in user's cloud projects.
func (o *Operations) ListProjects(ctx context.Context) ([]storage.ProjectSummary, error) {
	projects, err := o.api.ListCloudProjects(ctx, o.user)
	if err != nil {
		return nil, err
	}

	summaries := make([]storage.ProjectSummary, 0, len(projects))
	for _, cp := range projects {
		summaries = append(summaries, storage.ProjectSummary{
			Name: cp.Name,
			FileMetadata: storage.FileMetadata{
				FileIdentifier:   cp.ID,
				Version:          cp.CurrentVersion,
				LastModifiedDate: cp.LastModifiedAt.UnixMilli(),
			},
		})
	}
	return summaries, nil
}

// AutoSave writes p to the autosave cache. Nothing is sent to the service.
func (o *Operations) AutoSave(ctx context.Context, p project.Project, fm storage.FileMetadata) error {
	projectID := strings.TrimPrefix(fm.FileIdentifier, config.AutoSavePrefix)
	if projectID == "" {
		return storage.ErrMissingFileIdentifier
	}
	key, err := o.autoSaveKey(projectID)
	if err != nil {
		return err
	}

	data, err := p.Serialize()
	if err != nil {
		return err
	}
	return o.cache.Put(ctx, key, state.AutoSaveEntry{
		Project:   string(data),
		CreatedAt: o.now().UnixMilli(),
	})
}

// GetAutoSaveCreationDate returns the autosave time when it is newer than
// the last save by more than the grace window. Without a save time to compare
// against there is nothing to recover.
func (o *Operations) GetAutoSaveCreationDate(ctx context.Context, fm storage.FileMetadata, compareLastModified bool) (*time.Time, error) {
	profile := o.user.Profile()
	if profile == nil {
		return nil, nil
	}
	if o.cache == nil {
		return nil, storage.ErrCacheUnavailable
	}

	projectID := strings.TrimPrefix(fm.FileIdentifier, config.AutoSavePrefix)
	entry, err := o.cache.Get(ctx, state.Key(profile.ID, projectID))
	if err != nil {
		return nil, fmt.Errorf("failed to read autosave of %s: %w", projectID, err)
	}
	if entry == nil {
		return nil, nil
	}

	// Without a save time only a caller asking for the comparison gets a date.
	saveTime := fm.LastModifiedDate
	if saveTime == 0 && !compareLastModified {
		return nil, nil
	}
	if entry.CreatedAt <= saveTime+o.graceWindow.Milliseconds() {
		return nil, nil
	}

	created := entry.CreatedTime()
	return &created, nil
}

// GetAutoSave returns the metadata that opens fm's autosave.
func (o *Operations) GetAutoSave(fm storage.FileMetadata) storage.FileMetadata {
	autoSave := fm
	if !strings.HasPrefix(fm.FileIdentifier, config.AutoSavePrefix) {
		autoSave.FileIdentifier = config.AutoSavePrefix + fm.FileIdentifier
	}
	return autoSave
}

// BurstAutoSaveCache drops every cached autosave.
func (o *Operations) BurstAutoSaveCache(ctx context.Context) error {
	if o.cache == nil {
		return storage.ErrCacheUnavailable
	}
	return o.cache.Burst(ctx)
}

func (o *Operations) autoSaveKey(projectID string) (string, error) {
	profile := o.user.Profile()
	if profile == nil {
		return "", storage.ErrNotAuthenticated
	}
	if o.cache == nil {
		return "", storage.ErrCacheUnavailable
	}
	return state.Key(profile.ID, projectID), nil
}

// commit zips p, uploads it and records it as a version.
func (o *Operations) commit(ctx context.Context, p project.Project, projectID, previousVersion string) (string, error) {
	archive, err := project.Zip(p)
	if err != nil {
		return "", err
	}

	uploadURL, err := o.api.GetPresignedUploadURL(ctx, o.user, projectID)
	if err != nil {
		return "", err
	}
	if err := o.blobs.UploadZip(ctx, uploadURL, archive); err != nil {
		return "", err
	}

	version, err := o.api.CommitVersion(ctx, o.user, projectID, previousVersion)
	if err != nil {
		return "", err
	}
	slog.Info("Committed cloud project version", "projectId", projectID, "version", version, "size", len(archive))
	return version, nil
}
