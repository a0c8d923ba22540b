package gdrive

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLoaded means the Google APIs could not be loaded at all.
	ErrNotLoaded = errors.New("google drive APIs not loaded")
	// ErrAuthorization means the APIs loaded but the user could not be signed in
	// or the token was refused.
	ErrAuthorization = errors.New("google drive authorization failed")
)

type driveError struct {
	kind error
	err  error
}

func newDriveError(kind, err error) error {
	return &driveError{kind: kind, err: err}
}

func (e *driveError) Error() string {
	return fmt.Sprintf("%v: %v", e.kind, e.err)
}

func (e *driveError) Unwrap() []error {
	return []error{e.kind, e.err}
}

func (e *driveError) OpenErrorMessage() string {
	return OpenErrorMessage(e)
}

// OpenErrorMessage turns a Drive failure into guidance for the user.
func OpenErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotLoaded):
		return "Google Drive could not be loaded. Check your internet connection and that nothing blocks access to Google."
	case errors.Is(err, ErrAuthorization):
		return "Google Drive did not give access to your files. Sign in again and allow access when asked."
	default:
		return "Check that your internet connection is working and try again."
	}
}
