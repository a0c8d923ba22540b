// Package stubs declares storage backends that are listed but not available yet.
package stubs

import (
	"context"

	"projectstore/internal/project"
	"projectstore/internal/storage"
)

// NewDropboxProvider returns the disabled Dropbox descriptor.
func NewDropboxProvider() storage.Provider {
	return newStubProvider("Dropbox", "Dropbox")
}

// NewOneDriveProvider returns the disabled OneDrive descriptor.
func NewOneDriveProvider() storage.Provider {
	return newStubProvider("OneDrive", "OneDrive")
}

func newStubProvider(internalName, name string) storage.Provider {
	return storage.Provider{
		InternalName: internalName,
		Name:         name,
		Disabled:     true,
		CreateOperations: func(deps storage.Dependencies) storage.Operations {
			return Operations{}
		},
	}
}

// Operations exposes the whole contract and fails every call with
// storage.ErrUnimplemented.
type Operations struct{}

var stubCapabilities = storage.NewCapabilitySet(
	storage.CapabilityOpen,
	storage.CapabilitySave,
	storage.CapabilitySaveAs,
	storage.CapabilityChooseSaveAsLocation,
	storage.CapabilityOpenWithPicker,
)

func (Operations) Supports(c storage.Capability) bool {
	return stubCapabilities.Supports(c)
}

func (Operations) Open(ctx context.Context, fm storage.FileMetadata, onProgress storage.ProgressFunc) (*storage.OpenResult, error) {
	return nil, storage.ErrUnimplemented
}

func (Operations) SaveProject(ctx context.Context, p project.Project, fm storage.FileMetadata) (*storage.SaveResult, error) {
	return nil, storage.ErrUnimplemented
}

func (Operations) SaveProjectAs(ctx context.Context, p project.Project, location *storage.SaveAsLocation, opts storage.SaveAsOptions) (*storage.SaveResult, error) {
	return nil, storage.ErrUnimplemented
}

func (Operations) ChooseSaveProjectAsLocation(ctx context.Context, p project.Project, fm *storage.FileMetadata) (*storage.SaveAsLocation, error) {
	return nil, storage.ErrUnimplemented
}

func (Operations) OpenWithPicker(ctx context.Context) (*storage.FileMetadata, error) {
	return nil, storage.ErrUnimplemented
}
