package cloud

import (
	"fmt"
)

// ReadingError means the project content was fetched but could not be
// decoded. Recovering a previous version is the usual fix.
type ReadingError struct {
	ProjectID string
	Err       error
}

func (e *ReadingError) Error() string {
	return fmt.Sprintf("cloud project %s could not be read: %v", e.ProjectID, e.Err)
}

func (e *ReadingError) Unwrap() error {
	return e.Err
}

func (e *ReadingError) OpenErrorMessage() string {
	return "The project file could not be read. Try opening a previous version of the project."
}
