package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"projectstore/internal/modal"

	"golang.org/x/term"
)

// terminalHost asks modal questions on the terminal. When input is not a
// terminal every question is left unanswered.
type terminalHost struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

func newTerminalHost(in io.Reader, out io.Writer, interactive bool) *terminalHost {
	return &terminalHost{in: bufio.NewReader(in), out: out, interactive: interactive}
}

func newStdioHost() *terminalHost {
	return newTerminalHost(os.Stdin, os.Stderr, term.IsTerminal(int(os.Stdin.Fd())))
}

func (h *terminalHost) Present(ctx context.Context, req modal.Request) (any, error) {
	if req.Kind == modal.KindDownloadReady {
		fmt.Fprintf(h.out, "Project written to %s\n", req.URL)
		return nil, nil
	}
	if !h.interactive {
		return nil, &modal.NoAnswerError{Request: req}
	}

	switch req.Kind {
	case modal.KindSaveAsName:
		return h.ask(ctx, "Project name", req.DefaultValue)
	case modal.KindDriveSignIn:
		fmt.Fprintf(h.out, "Open this link to allow access to Google Drive:\n\n  %s\n\n", req.URL)
		return h.ask(ctx, "Authorization code", "")
	case modal.KindDriveFile:
		return h.ask(ctx, "Google Drive file id", "")
	case modal.KindDriveSaveAs:
		folder, err := h.line(ctx, "Folder id (blank for My Drive)")
		if err != nil {
			return nil, err
		}
		name, err := h.ask(ctx, "File name", req.DefaultValue)
		if err != nil || name == nil {
			return name, err
		}
		return modal.FileChoice{ParentFolderID: folder, Name: name.(string)}, nil
	default:
		return nil, &modal.NoAnswerError{Request: req}
	}
}

// ask reads one answer. A blank line takes the default; with no default it
// cancels, which Await reports as modal.ErrCancelled.
func (h *terminalHost) ask(ctx context.Context, prompt, defaultValue string) (any, error) {
	if defaultValue != "" {
		prompt = fmt.Sprintf("%s [%s]", prompt, defaultValue)
	}
	answer, err := h.line(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if answer == "" {
		answer = defaultValue
	}
	if answer == "" {
		return nil, nil
	}
	return answer, nil
}

func (h *terminalHost) line(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprintf(h.out, "%s: ", prompt)
	text, err := h.in.ReadString('\n')
	if err != nil && (err != io.EOF || text == "") {
		if err == io.EOF {
			return "", nil
		}
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	return strings.TrimSpace(text), nil
}
