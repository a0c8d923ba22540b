package storage

import (
	"context"
	"errors"

	"projectstore/internal/project"
)

var (
	// ErrUnimplemented is returned by providers that only expose the contract.
	ErrUnimplemented = errors.New("Unimplemented")
	// ErrUnsupported is returned when an operation is outside a provider's capabilities.
	ErrUnsupported = errors.New("operation not supported by this storage provider")
	// ErrNotAuthenticated is returned when an operation needs a signed-in user.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrCacheUnavailable is returned when the autosave cache is not configured.
	ErrCacheUnavailable = errors.New("cache unavailable")
	// ErrMissingFileIdentifier is a caller contract violation.
	ErrMissingFileIdentifier = errors.New("file metadata has no file identifier")
	// ErrMissingSaveAsLocation is a caller contract violation.
	ErrMissingSaveAsLocation = errors.New("save as location is missing or incomplete")
	// ErrUnknownProvider is returned by the registry.
	ErrUnknownProvider = errors.New("unknown storage provider")
)

// FileMetadata identifies a saved project within one provider's namespace.
type FileMetadata struct {
	FileIdentifier string `json:"fileIdentifier"`
	// LastModifiedDate is in milliseconds since the epoch, 0 when unknown.
	LastModifiedDate int64  `json:"lastModifiedDate,omitempty"`
	Version          string `json:"version,omitempty"`
}

// SaveAsLocation describes a new save target. Each provider requires its own field.
type SaveAsLocation struct {
	Name           string `json:"name,omitempty"`
	FileIdentifier string `json:"fileIdentifier,omitempty"`
	ParentFolderID string `json:"parentFolderId,omitempty"`
}

// OpenResult is what Open resolves to.
type OpenResult struct {
	Content project.Project `json:"content"`
}

// SaveResult is what SaveProject and SaveProjectAs resolve to. WasSaved=false
// is a normal outcome, not a failure, and FileMetadata may still describe
// where the project went.
type SaveResult struct {
	WasSaved     bool          `json:"wasSaved"`
	FileMetadata *FileMetadata `json:"fileMetadata"`
}

// ProgressFunc receives a completion ratio in [0, 1] and a status phrase.
type ProgressFunc func(progress float64, message string)

// MoveResourcesFunc relinks a project's resources to its new identity.
type MoveResourcesFunc func(ctx context.Context, newFileMetadata FileMetadata) error

// SaveAsOptions carries hooks for SaveProjectAs.
type SaveAsOptions struct {
	OnMoveResources MoveResourcesFunc
}

// ProjectProperties lists metadata a provider can update without a full save.
type ProjectProperties struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// ProjectSummary is one entry of a provider's project listing.
type ProjectSummary struct {
	FileMetadata FileMetadata `json:"fileMetadata"`
	Name         string       `json:"name"`
}
