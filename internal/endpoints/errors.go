package endpoints

import (
	"errors"
	"log/slog"
	"net/http"

	"projectstore/internal/cloud"
	"projectstore/internal/download"
	"projectstore/internal/gdrive"
	"projectstore/internal/modal"
	"projectstore/internal/state"
	"projectstore/internal/storage"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	// Message is user-facing guidance, set for open failures.
	Message string `json:"message,omitempty"`
	// Modal is what the user must answer before the request can succeed.
	Modal *modal.Request `json:"modal,omitempty"`
}

func statusForError(err error) int {
	var readingErr *cloud.ReadingError
	switch {
	case errors.Is(err, modal.ErrNoAnswer):
		return http.StatusPreconditionRequired
	case errors.Is(err, storage.ErrMissingFileIdentifier),
		errors.Is(err, storage.ErrMissingSaveAsLocation),
		errors.Is(err, modal.ErrCancelled):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotAuthenticated),
		errors.Is(err, gdrive.ErrAuthorization):
		return http.StatusUnauthorized
	case errors.Is(err, storage.ErrUnknownProvider),
		errors.Is(err, state.ErrEntryNotFound),
		errors.Is(err, download.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &readingErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrUnsupported),
		errors.Is(err, storage.ErrUnimplemented):
		return http.StatusNotImplemented
	case errors.Is(err, storage.ErrCacheUnavailable),
		errors.Is(err, gdrive.ErrNotLoaded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func respondError(c *gin.Context, err error) {
	respond(c, err, ErrorResponse{Error: err.Error()})
}

// respondOpenError adds the guidance users see when a project fails to open.
func respondOpenError(c *gin.Context, err error) {
	respond(c, err, ErrorResponse{Error: err.Error(), Message: storage.OpenErrorMessage(err)})
}

func respond(c *gin.Context, err error, body ErrorResponse) {
	status := statusForError(err)

	var noAnswer *modal.NoAnswerError
	if errors.As(err, &noAnswer) {
		body.Modal = &noAnswer.Request
	}

	if status >= http.StatusInternalServerError {
		slog.Error("Storage request failed", "path", c.Request.URL.Path, "status", status, "error", err)
	} else {
		slog.Warn("Storage request rejected", "path", c.Request.URL.Path, "status", status, "error", err)
	}
	c.JSON(status, body)
}
