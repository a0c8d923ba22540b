package state

import (
	"context"
	"encoding/json"
	"fmt"

	"projectstore/internal/config"

	"go.etcd.io/bbolt"
)

var autoSaveBucket = []byte(config.AutoSaveCacheName)

// BoltAutoSaveCache is an AutoSaveCache backed by a local bbolt file.
type BoltAutoSaveCache struct {
	db *bbolt.DB
}

// NewBoltAutoSaveCache opens (or creates) the cache file at path.
func NewBoltAutoSaveCache(path string) (*BoltAutoSaveCache, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(autoSaveBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create autosave bucket: %w", err)
	}

	return &BoltAutoSaveCache{db: db}, nil
}

func (c *BoltAutoSaveCache) Get(ctx context.Context, key string) (*AutoSaveEntry, error) {
	var entry *AutoSaveEntry
	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(autoSaveBucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		entry = &AutoSaveEntry{}
		if err := json.Unmarshal(data, entry); err != nil {
			return fmt.Errorf("failed to unmarshal autosave: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (c *BoltAutoSaveCache) Put(ctx context.Context, key string, entry AutoSaveEntry) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal autosave: %w", err)
		}
		if err := tx.Bucket(autoSaveBucket).Put([]byte(key), data); err != nil {
			return fmt.Errorf("failed to put autosave: %w", err)
		}
		return nil
	})
}

func (c *BoltAutoSaveCache) Burst(ctx context.Context) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(autoSaveBucket); err != nil {
			return fmt.Errorf("failed to delete autosave bucket: %w", err)
		}
		_, err := tx.CreateBucket(autoSaveBucket)
		return err
	})
}

// Close closes the underlying store.
func (c *BoltAutoSaveCache) Close() error {
	return c.db.Close()
}
