package gdrive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"projectstore/internal/auth"
	"projectstore/internal/modal"
	"projectstore/internal/project"
	"projectstore/internal/storage"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

const (
	// InternalName identifies the Drive provider in URLs and preferences.
	InternalName = "GoogleDrive"
	// AppArgument is the launch argument naming a Drive file to open.
	AppArgument = "gdrive-file-id"

	projectMimeType = "application/json"
	fileFields      = "id, name, modifiedTime"
)

// SignInFactory picks the sign-in strategy for a user.
type SignInFactory func(deps storage.Dependencies) SignIn

// ServerSignIn signs users in with the Google token held by the identity provider.
func ServerSignIn(provider auth.TokenProvider) SignInFactory {
	return func(deps storage.Dependencies) SignIn {
		var userID string
		if deps.User != nil && deps.User.Profile() != nil {
			userID = deps.User.Profile().ID
		}
		return TokenProviderSignIn{Provider: provider, UserID: userID}
	}
}

// InteractiveSignInFactory signs users in through the modal host.
func InteractiveSignInFactory(deps storage.Dependencies) SignIn {
	return InteractiveSignIn{Host: deps.Modal}
}

// NewStorageProvider describes the Drive backend. Sign-in state is kept per
// profile until it sits idle; the loader is shared.
func NewStorageProvider(loader *Loader, signIn SignInFactory) storage.Provider {
	all := newSessions(loader)

	return storage.Provider{
		InternalName: InternalName,
		Name:         "Google Drive",
		FileMetadataFromAppArguments: func(args map[string]string) *storage.FileMetadata {
			if id := args[AppArgument]; id != "" {
				return &storage.FileMetadata{FileIdentifier: id}
			}
			return nil
		},
		CreateOperations: func(deps storage.Dependencies) storage.Operations {
			var userID string
			if deps.User != nil && deps.User.Profile() != nil {
				userID = deps.User.Profile().ID
			}
			return &Operations{
				session: all.get(userID),
				signIn:  signIn(deps),
				modal:   deps.Modal,
			}
		},
	}
}

var capabilities = storage.NewCapabilitySet(
	storage.CapabilityOpen,
	storage.CapabilitySave,
	storage.CapabilitySaveAs,
	storage.CapabilityChooseSaveAsLocation,
	storage.CapabilityOpenWithPicker,
)

// Operations is the Drive backend bound to one user.
type Operations struct {
	session *Session
	signIn  SignIn
	modal   modal.Host
}

func (o *Operations) Supports(c storage.Capability) bool {
	return capabilities.Supports(c)
}

func (o *Operations) Open(ctx context.Context, fm storage.FileMetadata, onProgress storage.ProgressFunc) (*storage.OpenResult, error) {
	if fm.FileIdentifier == "" {
		return nil, storage.ErrMissingFileIdentifier
	}
	service, err := o.session.Authenticate(ctx, o.signIn)
	if err != nil {
		return nil, err
	}

	resp, err := service.Files.Get(fm.FileIdentifier).Context(ctx).Download()
	if err != nil {
		slog.Error("Failed to download Drive file", "fileId", fm.FileIdentifier, "error", err)
		return nil, o.session.check(fmt.Errorf("failed to download file %s: %w", fm.FileIdentifier, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file content: %w", err)
	}
	content, err := project.Parse(data)
	if err != nil {
		slog.Error("Drive file is not a project", "fileId", fm.FileIdentifier, "error", err)
		return nil, err
	}
	if onProgress != nil {
		onProgress(1, "Reading project")
	}
	return &storage.OpenResult{Content: content}, nil
}

func (o *Operations) SaveProject(ctx context.Context, p project.Project, fm storage.FileMetadata) (*storage.SaveResult, error) {
	if fm.FileIdentifier == "" {
		return nil, storage.ErrMissingFileIdentifier
	}
	data, err := p.Serialize()
	if err != nil {
		return nil, err
	}
	service, err := o.session.Authenticate(ctx, o.signIn)
	if err != nil {
		return nil, err
	}

	file, err := o.writeContent(ctx, service, fm.FileIdentifier, data)
	if err != nil {
		return nil, err
	}
	return &storage.SaveResult{WasSaved: true, FileMetadata: metadataOf(file)}, nil
}

// SaveProjectAs writes into the file picked by ChooseSaveProjectAsLocation.
func (o *Operations) SaveProjectAs(ctx context.Context, p project.Project, location *storage.SaveAsLocation, opts storage.SaveAsOptions) (*storage.SaveResult, error) {
	if location == nil || location.FileIdentifier == "" {
		return nil, storage.ErrMissingSaveAsLocation
	}
	service, err := o.session.Authenticate(ctx, o.signIn)
	if err != nil {
		return nil, err
	}

	newMetadata := storage.FileMetadata{FileIdentifier: location.FileIdentifier}
	if opts.OnMoveResources != nil {
		if err := opts.OnMoveResources(ctx, newMetadata); err != nil {
			return nil, fmt.Errorf("failed to move resources to Drive file %s: %w", location.FileIdentifier, err)
		}
	}

	data, err := p.Serialize()
	if err != nil {
		return nil, err
	}
	file, err := o.writeContent(ctx, service, location.FileIdentifier, data)
	if err != nil {
		return nil, err
	}
	return &storage.SaveResult{WasSaved: true, FileMetadata: metadataOf(file)}, nil
}

// ChooseSaveProjectAsLocation lets the user pick a folder and a name, then
// creates the empty file so SaveProjectAs has an id to write to.
func (o *Operations) ChooseSaveProjectAsLocation(ctx context.Context, p project.Project, fm *storage.FileMetadata) (*storage.SaveAsLocation, error) {
	service, err := o.session.Authenticate(ctx, o.signIn)
	if err != nil {
		return nil, err
	}

	defaultName := p.Name()
	if defaultName == "" {
		defaultName = "Project"
	}
	choice, err := modal.Await[modal.FileChoice](ctx, o.modal, modal.Request{
		Kind:         modal.KindDriveSaveAs,
		ProviderName: InternalName,
		Title:        "Save to Google Drive",
		DefaultValue: defaultName + ".json",
	})
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(choice.Name)
	if name == "" {
		return nil, modal.ErrCancelled
	}

	file := &drive.File{Name: name, MimeType: projectMimeType}
	if choice.ParentFolderID != "" {
		file.Parents = []string{choice.ParentFolderID}
	}
	created, err := service.Files.Create(file).Fields("id").Context(ctx).Do()
	if err != nil {
		slog.Error("Failed to create Drive file", "name", name, "error", err)
		return nil, o.session.check(fmt.Errorf("failed to create file: %w", err))
	}

	slog.Info("Created Drive file", "name", name, "fileId", created.Id)
	return &storage.SaveAsLocation{
		Name:           name,
		FileIdentifier: created.Id,
		ParentFolderID: choice.ParentFolderID,
	}, nil
}

// OpenWithPicker asks the user to pick a file and returns its metadata.
func (o *Operations) OpenWithPicker(ctx context.Context) (*storage.FileMetadata, error) {
	service, err := o.session.Authenticate(ctx, o.signIn)
	if err != nil {
		return nil, err
	}

	fileID, err := modal.Await[string](ctx, o.modal, modal.Request{
		Kind:         modal.KindDriveFile,
		ProviderName: InternalName,
		Title:        "Open from Google Drive",
	})
	if err != nil {
		return nil, err
	}
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return nil, modal.ErrCancelled
	}

	file, err := service.Files.Get(fileID).Fields(fileFields).Context(ctx).Do()
	if err != nil {
		slog.Error("Failed to get Drive file", "fileId", fileID, "error", err)
		return nil, o.session.check(fmt.Errorf("failed to get file %s: %w", fileID, err))
	}
	return metadataOf(file), nil
}

func (o *Operations) writeContent(ctx context.Context, service *drive.Service, fileID string, data []byte) (*drive.File, error) {
	file, err := service.Files.Update(fileID, &drive.File{}).
		Media(bytes.NewReader(data), googleapi.ContentType(projectMimeType)).
		Fields(fileFields).
		Context(ctx).
		Do()
	if err != nil {
		slog.Error("Failed to write Drive file", "fileId", fileID, "error", err)
		return nil, o.session.check(fmt.Errorf("failed to write file %s: %w", fileID, err))
	}
	return file, nil
}

func metadataOf(file *drive.File) *storage.FileMetadata {
	fm := &storage.FileMetadata{FileIdentifier: file.Id}
	if file.ModifiedTime != "" {
		if modified, err := time.Parse(time.RFC3339, file.ModifiedTime); err == nil {
			fm.LastModifiedDate = modified.UnixMilli()
		} else {
			slog.Warn("Could not parse modifiedTime", "time", file.ModifiedTime, "fileId", file.Id, "error", err)
		}
	}
	return fm
}
