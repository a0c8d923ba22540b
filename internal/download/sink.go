package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown download ids.
var ErrNotFound = errors.New("download not found")

// Offer is a file made available to the user.
type Offer struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	// URL is where the user fetches the file: BaseURL+ID, or the local path
	// when the sink has no base URL.
	URL  string `json:"url"`
	Path string `json:"-"`
}

// Sink makes a serialized project available for download.
type Sink interface {
	Offer(ctx context.Context, filename string, data []byte) (*Offer, error)
}

// DirSink keeps offered files in a directory, one file per offer named
// "<uuid>-<filename>".
type DirSink struct {
	dir     string
	baseURL string
}

func NewDirSink(dir, baseURL string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}
	return &DirSink{dir: dir, baseURL: baseURL}, nil
}

func (s *DirSink) offer(id, filename, path string) *Offer {
	url := path
	if s.baseURL != "" {
		url = s.baseURL + id
	}
	return &Offer{ID: id, Filename: filename, URL: url, Path: path}
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._ -]+`)

// SanitizeFilename keeps names portable across file systems.
func SanitizeFilename(name string) string {
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, " .")
	if name == "" {
		return "project"
	}
	return name
}

func (s *DirSink) Offer(ctx context.Context, filename string, data []byte) (*Offer, error) {
	id := uuid.NewString()
	filename = SanitizeFilename(filename)
	path := filepath.Join(s.dir, id+"-"+filename)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write download: %w", err)
	}
	slog.Info("Project offered for download", "id", id, "filename", filename, "size", len(data))
	return s.offer(id, filename, path), nil
}

// Open returns the offered file with the given id.
func (s *DirSink) Open(id string) (io.ReadCloser, *Offer, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	matches, err := filepath.Glob(filepath.Join(s.dir, id+"-*"))
	if err != nil {
		return nil, nil, err
	}
	if len(matches) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	f, err := os.Open(matches[0])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open download: %w", err)
	}
	filename := strings.TrimPrefix(filepath.Base(matches[0]), id+"-")
	return f, s.offer(id, filename, matches[0]), nil
}

// Sweep removes offers written before cutoff and returns how many it removed.
// Files not named like an offer are left alone.
func (s *DirSink) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read download directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		name := entry.Name()
		if !entry.Type().IsRegular() || len(name) < 37 || name[36] != '-' {
			continue
		}
		if _, err := uuid.Parse(name[:36]); err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Failed to remove expired download", "file", name, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
