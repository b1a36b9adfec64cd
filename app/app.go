// Package app builds the notifier's components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"noticeboard-notifier/board"
	"noticeboard-notifier/config"
	"noticeboard-notifier/notify"
	"noticeboard-notifier/scraper"
	"noticeboard-notifier/storage"
	"noticeboard-notifier/storage/bolt"
	"noticeboard-notifier/storage/redisstore"
)

// Snapshots is a snapshot backend that can also be reset and listed.
type Snapshots interface {
	board.SnapshotStore
	Delete(ctx context.Context) error
	Keys(ctx context.Context) ([]string, error)
}

// NewLogger returns the JSON logger used by every binary.
func NewLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))
}

// NewScraper creates a scraper for the configured site.
func NewScraper(cfg *config.Config, logger *slog.Logger) *scraper.Scraper {
	site := scraper.DefaultSite()
	if cfg.Site.Origin != "" {
		site.Origin = cfg.Site.Origin
	}
	if cfg.Site.ListPath != "" {
		site.ListPath = cfg.Site.ListPath
	}

	return scraper.New(
		&http.Client{Timeout: cfg.Fetch.Timeout},
		scraper.NewParser(site, logger),
		scraper.Options{
			UserAgent: cfg.Fetch.UserAgent,
			PageSize:  cfg.Fetch.PageSize,
			Attempts:  cfg.Fetch.Attempts,
		},
		logger,
	)
}

// NewSnapshots opens the configured snapshot backend. It returns a nil store
// for the "none" backend. The returned cleanup must be called on shutdown.
func NewSnapshots(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Snapshots, func(), error) {
	sc := cfg.Storage
	noop := func() {}

	switch sc.Backend {
	case "none":
		logger.Info("Change detection disabled, no snapshot backend")
		return nil, noop, nil

	case "local":
		logger.Info("Using local snapshot storage", "storage_path", sc.LocalPath)
		st, err := storage.New(nil, "", sc.LocalPath, sc.Key, logger)
		if err != nil {
			return nil, noop, err
		}
		return st, noop, nil

	case "gcs":
		var opts []option.ClientOption
		if creds := cfg.Notify.GoogleCredentialsJSON; creds != "" {
			opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
		}
		client, err := gcs.NewClient(ctx, opts...)
		if err != nil {
			return nil, noop, fmt.Errorf("initialize storage client: %w", err)
		}
		cleanup := func() {
			if err := client.Close(); err != nil {
				logger.Warn("Failed to close storage client", "error", err)
			}
		}
		st, err := storage.New(client, sc.Bucket, "", sc.Key, logger)
		if err != nil {
			cleanup()
			return nil, noop, err
		}
		logger.Info("Using Cloud Storage snapshots", "bucket", sc.Bucket)
		return st, cleanup, nil

	case "bolt":
		st, err := bolt.New(sc.BoltPath, sc.Key, logger)
		if err != nil {
			return nil, noop, err
		}
		cleanup := func() {
			if err := st.Close(); err != nil {
				logger.Warn("Failed to close bolt database", "error", err)
			}
		}
		logger.Info("Using bolt snapshot storage", "path", sc.BoltPath)
		return st, cleanup, nil

	case "redis":
		rdb := redisstore.NewClient(sc.RedisAddr, sc.RedisPassword, sc.RedisDB)
		cleanup := func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("Failed to close redis client", "error", err)
			}
		}
		st, err := redisstore.New(rdb, sc.RedisPrefix, sc.Key, logger)
		if err != nil {
			cleanup()
			return nil, noop, err
		}
		logger.Info("Using redis snapshot storage", "addr", sc.RedisAddr)
		return st, cleanup, nil

	default:
		return nil, noop, fmt.Errorf("unknown storage backend %q", sc.Backend)
	}
}

// NewNotifier creates the configured notification sender, or nil for the
// "none" provider.
func NewNotifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*notify.Sender, error) {
	nc := cfg.Notify

	var provider notify.Provider
	switch nc.Provider {
	case "none":
		logger.Info("Notifications disabled")
		return nil, nil

	case "mock":
		logger.Info("Mock notification mode enabled")
		provider = notify.NewMockProvider(logger)

	case "bark":
		p, err := notify.NewBarkProvider(notify.BarkOptions{
			ServerURL:     nc.Bark.ServerURL,
			DeviceKey:     nc.Bark.DeviceKey,
			Token:         nc.Bark.Token,
			Group:         nc.Bark.Group,
			EncryptionKey: nc.Bark.EncryptionKey,
			Timeout:       nc.Bark.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		provider = p

	case "brevo":
		p, err := notify.NewBrevoProvider(nc.BrevoAPIKey, nc.FromAddr, nc.FromName, nc.Recipients, logger)
		if err != nil {
			return nil, err
		}
		provider = p

	case "gmail":
		svc, err := initGmailService(ctx, nc.GoogleCredentialsJSON)
		if err != nil {
			return nil, fmt.Errorf("initialize Gmail service: %w", err)
		}
		p, err := notify.NewGmailProvider(svc, nc.Recipients, logger)
		if err != nil {
			return nil, err
		}
		provider = p

	default:
		return nil, fmt.Errorf("unknown notify provider %q", nc.Provider)
	}

	return notify.New(provider, logger), nil
}

// NewController wires the scraper, snapshots and notifier into a board controller.
// Typed nil values are converted so the controller sees a missing dependency.
func NewController(cfg *config.Config, fetcher board.Fetcher, snapshots Snapshots, sender *notify.Sender, logger *slog.Logger) *board.Controller {
	var (
		ss board.SnapshotStore
		n  board.Notifier
	)
	if snapshots != nil {
		ss = snapshots
	}
	if sender != nil {
		n = sender
	}
	return board.NewController(fetcher, ss, n, board.Options{
		PageSize:    cfg.Fetch.PageSize,
		NotifyTitle: cfg.Notify.Title,
	}, logger)
}

func initGmailService(ctx context.Context, credsJSON string) (*gmail.Service, error) {
	if credsJSON != "" {
		return gmail.NewService(ctx, option.WithCredentialsJSON([]byte(credsJSON)))
	}

	// Application Default Credentials need the gmail.send scope on the service account.
	if isCloudRun(ctx) {
		return gmail.NewService(ctx)
	}

	return nil, errors.New("GOOGLE_CREDENTIALS_JSON required when not running in Cloud Run")
}

// isCloudRun checks if we're running in a GCP environment by querying the metadata server.
func isCloudRun(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://metadata.google.internal/computeMetadata/v1/project/project-id", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Metadata-Flavor", "Google")

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	return resp.StatusCode == http.StatusOK
}
