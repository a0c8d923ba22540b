// Package modal lets storage operations ask the user something and wait for
// the answer without knowing how the question is rendered.
package modal

import (
	"context"
	"errors"
	"fmt"
)

// ErrCancelled is returned when the user dismisses a modal.
var ErrCancelled = errors.New("cancelled by user")

// ErrNoAnswer is returned by hosts that cannot answer a given request kind.
var ErrNoAnswer = errors.New("no answer available for request")

// NoAnswerError carries the request nobody could answer so a caller can
// present it and retry.
type NoAnswerError struct {
	Request Request
}

func (e *NoAnswerError) Error() string {
	return fmt.Sprintf("%v: %s", ErrNoAnswer, e.Request.Kind)
}

func (e *NoAnswerError) Unwrap() error {
	return ErrNoAnswer
}

// Kind identifies what a request asks for.
type Kind string

const (
	KindSaveAsName    Kind = "save-as-name"
	KindDriveSignIn   Kind = "drive-sign-in"
	KindDriveFile     Kind = "drive-file-picker"
	KindDriveSaveAs   Kind = "drive-save-as-picker"
	KindDownloadReady Kind = "download-ready"
)

// Request describes a modal to present.
type Request struct {
	Kind         Kind   `json:"kind"`
	ProviderName string `json:"providerName"`
	Title        string `json:"title,omitempty"`
	// DefaultValue pre-fills text inputs.
	DefaultValue string `json:"defaultValue,omitempty"`
	// URL is set for sign-in and download requests.
	URL string `json:"url,omitempty"`
}

// FileChoice answers a save-as picker: where to create the file and its name.
type FileChoice struct {
	ParentFolderID string `json:"parentFolderId,omitempty"`
	Name           string `json:"name"`
}

// Host presents a modal and blocks until it is closed.
type Host interface {
	Present(ctx context.Context, req Request) (any, error)
}

// HostFunc adapts a function to Host.
type HostFunc func(ctx context.Context, req Request) (any, error)

func (f HostFunc) Present(ctx context.Context, req Request) (any, error) {
	return f(ctx, req)
}

// Await presents req and type-checks the answer.
func Await[T any](ctx context.Context, host Host, req Request) (T, error) {
	var zero T
	if host == nil {
		return zero, &NoAnswerError{Request: req}
	}

	answer, err := host.Present(ctx, req)
	if err != nil {
		return zero, err
	}
	if answer == nil {
		return zero, ErrCancelled
	}

	typed, ok := answer.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected answer type %T for %s", answer, req.Kind)
	}
	return typed, nil
}

// Answers is a Host that replies from a fixed table, keyed by request kind.
// The HTTP API uses it: the client has already collected the answers.
type Answers map[Kind]any

func (a Answers) Present(ctx context.Context, req Request) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	answer, ok := a[req.Kind]
	if !ok {
		return nil, &NoAnswerError{Request: req}
	}
	return answer, nil
}
