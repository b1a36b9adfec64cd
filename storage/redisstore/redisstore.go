// Package redisstore stores title snapshots as Redis lists.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps one board's snapshot under "<prefix>:<key>:titles".
type Store struct {
	rdb     *redis.Client
	prefix  string
	key     string
	tempKey string
	savedAt string
	logger  *slog.Logger
}

// New creates a store. prefix defaults to "noticeboard".
func New(rdb *redis.Client, prefix, key string, logger *slog.Logger) (*Store, error) {
	if key == "" {
		return nil, errors.New("redis store: empty key")
	}
	if prefix == "" {
		prefix = "noticeboard"
	}
	base := prefix + ":" + key
	return &Store{
		rdb:     rdb,
		prefix:  prefix,
		key:     base + ":titles",
		tempKey: base + ":titles:temp",
		savedAt: base + ":saved_at",
		logger:  logger,
	}, nil
}

// NewClient connects to Redis.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Load returns the saved titles in order.
func (s *Store) Load(ctx context.Context) ([]string, error) {
	titles, err := s.rdb.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return titles, nil
}

// Save replaces the snapshot. The list is built under a temporary key and
// renamed into place in one transaction so readers never see a partial list.
func (s *Store) Save(ctx context.Context, titles []string) error {
	if len(titles) == 0 {
		// Redis has no empty lists; an absent key reads back as no titles.
		if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
			return fmt.Errorf("clear snapshot: %w", err)
		}
		return s.touch(ctx)
	}

	values := make([]any, len(titles))
	for i, t := range titles {
		values[i] = t
	}

	// The temporary list never carries a TTL, so the renamed key cannot expire.
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.tempKey)
		pipe.RPush(ctx, s.tempKey, values...)
		pipe.Rename(ctx, s.tempKey, s.key)
		return nil
	})
	if err != nil {
		if delErr := s.rdb.Del(ctx, s.tempKey).Err(); delErr != nil {
			s.logger.Warn("Failed to remove temporary snapshot", "key", s.tempKey, "error", delErr)
		}
		return fmt.Errorf("replace snapshot: %w", err)
	}

	s.logger.Info("Snapshot saved to redis", "key", s.key, "title_count", len(titles))
	return s.touch(ctx)
}

// Delete removes the snapshot.
func (s *Store) Delete(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key, s.savedAt).Err(); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

func (s *Store) touch(ctx context.Context) error {
	if err := s.rdb.Set(ctx, s.savedAt, time.Now().UnixMilli(), 0).Err(); err != nil {
		return fmt.Errorf("record snapshot time: %w", err)
	}
	return nil
}

// Keys lists the board keys under the store's prefix that have saved titles.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, s.prefix+":*:titles", 100).Iterator()
	for iter.Next(ctx) {
		if key, ok := keyFromRedis(s.prefix, iter.Val()); ok {
			keys = append(keys, key)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan snapshots: %w", err)
	}
	return keys, nil
}

func keyFromRedis(prefix, name string) (string, bool) {
	key, ok := strings.CutPrefix(name, prefix+":")
	if !ok {
		return "", false
	}
	key, ok = strings.CutSuffix(key, ":titles")
	return key, ok && key != ""
}
