// Package storage persists the title snapshot used for change detection.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"noticeboard-notifier/pkg/notice"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/iterator"
)

const (
	keyPrefix = "snapshot-"
	keySuffix = ".json"
)

// ErrInvalidKey is returned for snapshot keys that are not safe object names.
var ErrInvalidKey = errors.New("invalid snapshot key")

// Store keeps snapshots either in a local directory or in a Cloud Storage bucket.
// Local storage is used whenever localPath is set.
type Store struct {
	client    *storage.Client
	logger    *slog.Logger
	localPath string
	bucket    string
	key       string
}

// New creates a snapshot store for the board identified by key.
func New(client *storage.Client, bucket, localPath, key string, logger *slog.Logger) (*Store, error) {
	if SnapshotKey(key) == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if localPath == "" && client == nil {
		return nil, errors.New("either a local path or a storage client is required")
	}
	if localPath != "" {
		if err := os.MkdirAll(localPath, 0o750); err != nil {
			return nil, fmt.Errorf("create local storage directory: %w", err)
		}
	}
	return &Store{
		client:    client,
		logger:    logger,
		localPath: localPath,
		bucket:    bucket,
		key:       key,
	}, nil
}

// SnapshotKey returns the object name for key, or "" if key is not made of
// 1 to 64 lowercase letters, digits and dashes. This keeps keys from escaping
// the storage directory.
func SnapshotKey(key string) string {
	if key == "" || len(key) > 64 {
		return ""
	}
	for _, c := range key {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
			return ""
		}
	}
	return keyPrefix + key + keySuffix
}

// Load returns the saved titles. A snapshot that was never saved yields no titles.
func (s *Store) Load(ctx context.Context) ([]string, error) {
	snap, err := s.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Titles, nil
}

// LoadSnapshot returns the saved snapshot including its timestamp.
func (s *Store) LoadSnapshot(ctx context.Context) (*notice.Snapshot, error) {
	name := SnapshotKey(s.key)

	data, err := s.read(ctx, name)
	if err != nil {
		if IsNotFound(err) {
			s.logger.Debug("No snapshot saved yet", "key", name)
			return &notice.Snapshot{}, nil
		}
		return nil, err
	}

	var snap notice.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Save overwrites the snapshot with titles.
func (s *Store) Save(ctx context.Context, titles []string) error {
	name := SnapshotKey(s.key)
	snap := notice.Snapshot{SavedAt: time.Now().UTC(), Titles: titles}
	if snap.Titles == nil {
		snap.Titles = []string{}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if s.localPath != "" {
		filePath := filepath.Join(s.localPath, name)
		tmp := filePath + ".tmp"
		if err := os.WriteFile(tmp, data, 0o600); err != nil {
			return fmt.Errorf("write to local storage: %w", err)
		}
		if err := os.Rename(tmp, filePath); err != nil {
			return fmt.Errorf("replace local snapshot: %w", err)
		}
		s.logger.Info("Snapshot saved to local storage", "path", filePath, "title_count", len(titles))
		return nil
	}

	err = retry.Do(
		func() error {
			w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
			w.ContentType = "application/json"
			if _, writeErr := w.Write(data); writeErr != nil {
				if closeErr := w.Close(); closeErr != nil {
					s.logger.Warn("Failed to close writer after error", "error", closeErr)
				}
				return fmt.Errorf("write to storage: %w", writeErr)
			}
			if closeErr := w.Close(); closeErr != nil {
				return fmt.Errorf("close storage writer: %w", closeErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying save operation after error", "attempt", n, "key", name, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("save after retries: %w", err)
	}

	s.logger.Info("Snapshot saved", "bucket", s.bucket, "key", name, "title_count", len(titles))
	return nil
}

// Delete removes the snapshot so that the next check treats every title as new.
func (s *Store) Delete(ctx context.Context) error {
	name := SnapshotKey(s.key)

	if s.localPath != "" {
		filePath := filepath.Join(s.localPath, name)
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete from local storage: %w", err)
		}
		s.logger.Info("Snapshot deleted from local storage", "path", filePath)
		return nil
	}

	err := retry.Do(
		func() error {
			if deleteErr := s.client.Bucket(s.bucket).Object(name).Delete(ctx); deleteErr != nil {
				// Deleting a missing snapshot is not an error worth retrying.
				if errors.Is(deleteErr, storage.ErrObjectNotExist) {
					return retry.Unrecoverable(fmt.Errorf("delete from storage: %w", deleteErr))
				}
				return fmt.Errorf("delete from storage: %w", deleteErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying delete operation after error", "attempt", n, "key", name, "error", retryErr)
		}),
	)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete after retries: %w", err)
	}

	s.logger.Info("Snapshot deleted", "bucket", s.bucket, "key", name)
	return nil
}

// Keys lists the board keys that have a saved snapshot.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string

	if s.localPath != "" {
		entries, err := os.ReadDir(s.localPath)
		if err != nil {
			return nil, fmt.Errorf("read local storage directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if key, ok := keyFromName(entry.Name()); ok {
				keys = append(keys, key)
			}
		}
		return keys, nil
	}

	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: keyPrefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate storage: %w", err)
		}
		if key, ok := keyFromName(attrs.Name); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func keyFromName(name string) (string, bool) {
	if !strings.HasPrefix(name, keyPrefix) || !strings.HasSuffix(name, keySuffix) {
		return "", false
	}
	key := strings.TrimSuffix(strings.TrimPrefix(name, keyPrefix), keySuffix)
	return key, SnapshotKey(key) != ""
}

func (s *Store) read(ctx context.Context, name string) ([]byte, error) {
	if s.localPath != "" {
		data, err := os.ReadFile(filepath.Join(s.localPath, name))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errNotFound
			}
			return nil, fmt.Errorf("read from local storage: %w", err)
		}
		return data, nil
	}

	var data []byte
	err := retry.Do(
		func() error {
			r, openErr := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
			if openErr != nil {
				// Don't retry on "not found" errors
				if errors.Is(openErr, storage.ErrObjectNotExist) {
					return retry.Unrecoverable(errNotFound)
				}
				return fmt.Errorf("open storage reader: %w", openErr)
			}
			defer func() {
				if closeErr := r.Close(); closeErr != nil {
					s.logger.Warn("Failed to close storage reader", "error", closeErr)
				}
			}()

			var readErr error
			data, readErr = io.ReadAll(r)
			if readErr != nil {
				return fmt.Errorf("read from storage: %w", readErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying load operation after error", "attempt", n, "key", name, "error", retryErr)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("load after retries: %w", err)
	}
	return data, nil
}

var errNotFound = errors.New("storage: object doesn't exist")

// IsNotFound checks if an error indicates a snapshot was not found.
func IsNotFound(err error) bool {
	return err != nil && (errors.Is(err, errNotFound) || strings.Contains(err.Error(), errNotFound.Error()))
}
