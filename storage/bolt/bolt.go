// Package bolt stores title snapshots in a local BoltDB file.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"noticeboard-notifier/pkg/notice"

	bolt "go.etcd.io/bbolt"
)

var bucketSnapshots = []byte("snapshots")

// Store is a BoltDB-backed snapshot store for one board key.
type Store struct {
	db     *bolt.DB
	key    []byte
	logger *slog.Logger
}

// New opens (creating if needed) the database at path.
func New(path, key string, logger *slog.Logger) (*Store, error) {
	if key == "" {
		return nil, fmt.Errorf("bolt store: empty key")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create bolt directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSnapshots)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create snapshots bucket: %w", err)
	}
	return &Store{db: db, key: []byte(key), logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the saved titles, or none if nothing was saved.
func (s *Store) Load(ctx context.Context) ([]string, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var snap notice.Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketSnapshots).Get(s.key)
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &snap)
	})
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return snap.Titles, nil
}

// Save overwrites the snapshot with titles.
func (s *Store) Save(ctx context.Context, titles []string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	payload, err := json.Marshal(notice.Snapshot{SavedAt: time.Now().UTC(), Titles: titles})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Put(s.key, payload)
	}); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	s.logger.Info("Snapshot saved to bolt", "key", string(s.key), "title_count", len(titles))
	return nil
}

// Delete removes the snapshot.
func (s *Store) Delete(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Delete(s.key)
	})
}

// Keys lists the board keys with a saved snapshot.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSnapshots).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return keys, nil
}
