// Package recent remembers which projects each user opened or saved lately.
package recent

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"projectstore/internal/storage"

	_ "modernc.org/sqlite"
)

// Entry is one recently used project.
type Entry struct {
	ProfileID    string               `json:"-"`
	ProviderName string               `json:"storageProviderName"`
	FileMetadata storage.FileMetadata `json:"fileMetadata"`
	Name         string               `json:"name,omitempty"`
	UsedAt       time.Time            `json:"usedAt"`
}

// Store keeps recent entries in SQLite, at most limit per profile.
type Store struct {
	db    *sql.DB
	limit int
	mu    sync.Mutex
	now   func() time.Time
}

// NewStore creates or opens the database at path.
func NewStore(path string, limit int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, limit: limit, now: time.Now}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS recent_projects (
		profile_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		file_identifier TEXT NOT NULL,
		version TEXT NOT NULL DEFAULT '',
		last_modified INTEGER NOT NULL DEFAULT 0,
		name TEXT NOT NULL DEFAULT '',
		used_at INTEGER NOT NULL,
		PRIMARY KEY (profile_id, provider, file_identifier)
	);
	CREATE INDEX IF NOT EXISTS idx_recent_used ON recent_projects(profile_id, used_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Add records e as the most recent entry of its profile and drops the
// oldest entries beyond the limit.
func (s *Store) Add(ctx context.Context, e Entry) error {
	if e.ProfileID == "" || e.ProviderName == "" || e.FileMetadata.FileIdentifier == "" {
		return fmt.Errorf("recent entry needs a profile, a provider and a file identifier")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	usedAt := e.UsedAt
	if usedAt.IsZero() {
		usedAt = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO recent_projects (profile_id, provider, file_identifier, version, last_modified, name, used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (profile_id, provider, file_identifier) DO UPDATE SET
			version = excluded.version,
			last_modified = excluded.last_modified,
			name = excluded.name,
			used_at = excluded.used_at`,
		e.ProfileID, e.ProviderName, e.FileMetadata.FileIdentifier, e.FileMetadata.Version,
		e.FileMetadata.LastModifiedDate, e.Name, usedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record recent project: %w", err)
	}

	if s.limit > 0 {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM recent_projects
			WHERE profile_id = ? AND rowid NOT IN (
				SELECT rowid FROM recent_projects WHERE profile_id = ?
				ORDER BY used_at DESC LIMIT ?
			)`, e.ProfileID, e.ProfileID, s.limit)
		if err != nil {
			return fmt.Errorf("failed to prune recent projects: %w", err)
		}
	}

	return tx.Commit()
}

// List returns a profile's entries, most recent first.
func (s *Store) List(ctx context.Context, profileID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, file_identifier, version, last_modified, name, used_at
		FROM recent_projects WHERE profile_id = ?
		ORDER BY used_at DESC`, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent projects: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e := Entry{ProfileID: profileID}
		var usedAt int64
		if err := rows.Scan(&e.ProviderName, &e.FileMetadata.FileIdentifier, &e.FileMetadata.Version,
			&e.FileMetadata.LastModifiedDate, &e.Name, &usedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recent project: %w", err)
		}
		e.UsedAt = time.UnixMilli(usedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Remove forgets one entry. Removing an unknown entry is not an error.
func (s *Store) Remove(ctx context.Context, profileID, providerName, fileIdentifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM recent_projects WHERE profile_id = ? AND provider = ? AND file_identifier = ?`,
		profileID, providerName, fileIdentifier)
	if err != nil {
		return fmt.Errorf("failed to remove recent project: %w", err)
	}
	return nil
}

// PruneBefore drops entries last used before cutoff, across all profiles.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM recent_projects WHERE used_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune recent projects: %w", err)
	}
	return res.RowsAffected()
}
