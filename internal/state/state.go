package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"projectstore/internal/config"
)

// ErrEntryNotFound is returned when opening an autosave that does not exist.
var ErrEntryNotFound = errors.New("autosave entry not found")

// AutoSaveEntry is one cached autosave. Project holds the serialized project.
type AutoSaveEntry struct {
	Project   string `json:"project"`
	CreatedAt int64  `json:"createdAt"` // milliseconds since the epoch
}

// CreatedTime returns CreatedAt as a time.Time.
func (e AutoSaveEntry) CreatedTime() time.Time {
	return time.UnixMilli(e.CreatedAt)
}

// AutoSaveCache stores autosaves keyed by "<profileID>/<projectID>".
// Get returns (nil, nil) when the key has no entry.
type AutoSaveCache interface {
	Get(ctx context.Context, key string) (*AutoSaveEntry, error)
	Put(ctx context.Context, key string, entry AutoSaveEntry) error
	// Burst removes every autosave.
	Burst(ctx context.Context) error
	Close() error
}

// Key builds the cache key of a user's project.
func Key(profileID, projectID string) string {
	return profileID + "/" + projectID
}

// Autosave cache backends.
const (
	BackendRedis = "redis"
	BackendBolt  = "bolt"
	BackendNone  = "none"
)

// NewAutoSaveCache opens the named backend. BackendNone yields a nil cache,
// which leaves autosave unsupported.
func NewAutoSaveCache(ctx context.Context, backend string) (AutoSaveCache, error) {
	switch backend {
	case BackendRedis:
		cache, err := NewRedisAutoSaveCache(ctx)
		if err != nil {
			return nil, err
		}
		return cache, nil
	case BackendBolt:
		cache, err := NewBoltAutoSaveCache(config.AutoSaveBoltPath)
		if err != nil {
			return nil, err
		}
		return cache, nil
	case BackendNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown autosave backend %q", backend)
	}
}
