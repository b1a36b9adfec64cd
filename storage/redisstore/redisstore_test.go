package redisstore

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"testing"
)

// Runs against a real server when REDIS_ADDR is set.
func TestStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" || testing.Short() {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	rdb := NewClient(addr, "", 0)
	defer rdb.Close()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s, err := New(rdb, "noticeboard-test", t.Name(), logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Delete(ctx) })

	want := []string{"공지 1", "공지 2", "공지 1"}
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !slices.Equal(got, want) {
		t.Errorf("Load() = %v, want %v", got, want)
	}
	if ttl := rdb.TTL(ctx, s.key).Val(); ttl >= 0 {
		t.Errorf("TTL(%s) = %v, want no expiry", s.key, ttl)
	}
	if n := rdb.Exists(ctx, s.tempKey).Val(); n != 0 {
		t.Errorf("temporary key left behind")
	}
	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if !slices.Contains(keys, t.Name()) {
		t.Errorf("Keys() = %v, want %q included", keys, t.Name())
	}

	if err := s.Save(ctx, nil); err != nil {
		t.Fatalf("Save(nil) error = %v", err)
	}
	if got, _ := s.Load(ctx); len(got) != 0 {
		t.Errorf("Load() after empty save = %v", got)
	}
}

func TestNewKeys(t *testing.T) {
	s, err := New(nil, "", "hallym", slog.Default())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.key != "noticeboard:hallym:titles" || s.tempKey != "noticeboard:hallym:titles:temp" {
		t.Errorf("keys = %q, %q", s.key, s.tempKey)
	}
	if _, err := New(nil, "", "", slog.Default()); err == nil {
		t.Error("New() with empty key succeeded")
	}
}

func TestKeyFromRedis(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{name: "noticeboard:hallym-notice:titles", want: "hallym-notice", wantOK: true},
		{name: "noticeboard:a:b:titles", want: "a:b", wantOK: true},
		{name: "noticeboard::titles"},
		{name: "noticeboard:hallym:saved_at"},
		{name: "other:hallym:titles"},
	}
	for _, tt := range tests {
		got, ok := keyFromRedis("noticeboard", tt.name)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("keyFromRedis(%q) = %q, %v; want %q, %v", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}
