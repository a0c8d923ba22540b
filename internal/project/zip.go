package project

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// EntryName is the single entry of a project archive.
const EntryName = "game.json"

// ErrEmptyArchive is returned when an archive has no entries.
var ErrEmptyArchive = errors.New("project archive has no entries")

// Zip serializes the project and wraps it in an archive holding game.json.
func Zip(p Project) ([]byte, error) {
	data, err := p.Serialize()
	if err != nil {
		return nil, err
	}
	return ZipBytes(data)
}

// ZipBytes wraps already serialized project JSON.
func ZipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.Create(EntryName)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s entry: %w", EntryName, err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write %s entry: %w", EntryName, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	return buf.Bytes(), nil
}

// UnzipBytes returns the content of the first entry of the archive.
func UnzipBytes(archive []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	if len(zr.File) == 0 {
		return nil, ErrEmptyArchive
	}

	rc, err := zr.File[0].Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open entry %s: %w", zr.File[0].Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read entry %s: %w", zr.File[0].Name, err)
	}
	return data, nil
}

// Unzip reads the first entry and parses it as a project.
func Unzip(archive []byte) (Project, error) {
	data, err := UnzipBytes(archive)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}
