package storage

import (
	"errors"

	"projectstore/internal/auth"
	"projectstore/internal/modal"
)

// Dependencies are what a provider binds its operations to.
type Dependencies struct {
	User  auth.User
	Modal modal.Host
}

// Provider is the static descriptor of a storage backend. It is defined once
// per backend and never mutated after registration.
type Provider struct {
	// InternalName is the stable identifier used in URLs and preferences.
	InternalName string
	// Name is shown to users.
	Name string
	// Disabled providers are listed but greyed out.
	Disabled bool
	// HiddenInOpenDialog providers can save but are not offered for opening.
	HiddenInOpenDialog bool
	// FileMetadataFromAppArguments recognizes a project passed on launch. May be nil.
	FileMetadataFromAppArguments func(args map[string]string) *FileMetadata
	// CreateOperations binds the backend to a user and modal host.
	CreateOperations func(deps Dependencies) Operations
}

// OpenErrorMessager is implemented by errors that carry their own
// user-facing explanation.
type OpenErrorMessager interface {
	OpenErrorMessage() string
}

// OpenErrorMessage turns an error from Open into guidance for the user.
func OpenErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var messager OpenErrorMessager
	if errors.As(err, &messager) {
		return messager.OpenErrorMessage()
	}

	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return "You need to be signed in to open this project."
	case errors.Is(err, ErrCacheUnavailable):
		return "The autosave cache is not available on this device."
	case errors.Is(err, ErrUnimplemented):
		return "This storage is not available yet."
	case errors.Is(err, ErrUnsupported):
		return "This storage cannot open projects."
	default:
		return "Check that your internet connection is working and try again."
	}
}
