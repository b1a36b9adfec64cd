// Package config loads runtime configuration from defaults, an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. NOTICEBOARD_FETCH_PAGE_SIZE.
const EnvPrefix = "noticeboard"

// Config holds all runtime configuration knobs for the notifier.
type Config struct {
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	Site struct {
		Origin   string `mapstructure:"origin"`
		ListPath string `mapstructure:"list_path"`
	} `mapstructure:"site"`

	Fetch struct {
		PageSize  int           `mapstructure:"page_size"`
		Attempts  uint          `mapstructure:"attempts"`
		Timeout   time.Duration `mapstructure:"timeout"`
		UserAgent string        `mapstructure:"user_agent"`
	} `mapstructure:"fetch"`

	Poll struct {
		Enabled  bool          `mapstructure:"enabled"`
		Spec     string        `mapstructure:"spec"`
		Timezone string        `mapstructure:"timezone"`
		Timeout  time.Duration `mapstructure:"timeout"`
	} `mapstructure:"poll"`

	Storage struct {
		Backend       string `mapstructure:"backend"` // local, gcs, bolt, redis or none
		Key           string `mapstructure:"key"`
		LocalPath     string `mapstructure:"local_path"`
		Bucket        string `mapstructure:"bucket"`
		BoltPath      string `mapstructure:"bolt_path"`
		RedisAddr     string `mapstructure:"redis_addr"`
		RedisPassword string `mapstructure:"redis_password"`
		RedisDB       int    `mapstructure:"redis_db"`
		RedisPrefix   string `mapstructure:"redis_prefix"`
	} `mapstructure:"storage"`

	Notify struct {
		Provider              string   `mapstructure:"provider"` // mock, bark, gmail, brevo or none
		Title                 string   `mapstructure:"title"`
		Recipients            []string `mapstructure:"recipients"`
		FromAddr              string   `mapstructure:"from_addr"`
		FromName              string   `mapstructure:"from_name"`
		BrevoAPIKey           string   `mapstructure:"brevo_api_key"`
		GoogleCredentialsJSON string   `mapstructure:"google_credentials_json"`
		Bark                  struct {
			ServerURL     string        `mapstructure:"server_url"`
			DeviceKey     string        `mapstructure:"device_key"`
			Token         string        `mapstructure:"token"`
			Group         string        `mapstructure:"group"`
			EncryptionKey string        `mapstructure:"encryption_key"`
			Timeout       time.Duration `mapstructure:"timeout"`
		} `mapstructure:"bark"`
	} `mapstructure:"notify"`
}

// Load reads the configuration using Viper. path may be empty or name a
// missing file, in which case only defaults and the environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return nil, fmt.Errorf("bind environment: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks option values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error

	if c.Fetch.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("fetch.page_size must be positive, got %d", c.Fetch.PageSize))
	}
	if c.Fetch.Attempts == 0 {
		errs = append(errs, errors.New("fetch.attempts must be at least 1"))
	}

	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalPath == "" {
			errs = append(errs, errors.New("storage.local_path is required for the local backend"))
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("storage.bucket is required for the gcs backend"))
		}
	case "bolt":
		if c.Storage.BoltPath == "" {
			errs = append(errs, errors.New("storage.bolt_path is required for the bolt backend"))
		}
	case "redis":
		if c.Storage.RedisAddr == "" {
			errs = append(errs, errors.New("storage.redis_addr is required for the redis backend"))
		}
	case "none":
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q", c.Storage.Backend))
	}

	switch c.Notify.Provider {
	case "mock", "none":
	case "bark":
		if c.Notify.Bark.DeviceKey == "" {
			errs = append(errs, errors.New("notify.bark.device_key is required for the bark provider"))
		}
	case "gmail", "brevo":
		if len(c.Notify.Recipients) == 0 {
			errs = append(errs, fmt.Errorf("notify.recipients is required for the %s provider", c.Notify.Provider))
		}
		if c.Notify.Provider == "brevo" && c.Notify.BrevoAPIKey == "" {
			errs = append(errs, errors.New("notify.brevo_api_key is required for the brevo provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown notify.provider %q", c.Notify.Provider))
	}

	if _, err := time.LoadLocation(c.Poll.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("poll.timezone: %w", err))
	}

	return errors.Join(errs...)
}

// Level returns the configured slog level, defaulting to info.
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Location returns the time zone the poll schedule is evaluated in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Poll.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")

	v.SetDefault("site.origin", "https://data.hallym.ac.kr")
	v.SetDefault("site.list_path", "/data/community/notice02.do")

	v.SetDefault("fetch.page_size", 10)
	v.SetDefault("fetch.attempts", 1)
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.user_agent", "")

	v.SetDefault("poll.enabled", true)
	v.SetDefault("poll.spec", "@every 15m")
	v.SetDefault("poll.timezone", "Asia/Seoul")
	v.SetDefault("poll.timeout", "2m")

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.key", "hallym-notice")
	v.SetDefault("storage.local_path", "./data")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.bolt_path", "./data/snapshots.db")
	v.SetDefault("storage.redis_addr", "")
	v.SetDefault("storage.redis_password", "")
	v.SetDefault("storage.redis_db", 0)
	v.SetDefault("storage.redis_prefix", "noticeboard")

	v.SetDefault("notify.provider", "mock")
	v.SetDefault("notify.title", "새로운 공지사항이 있습니다")
	v.SetDefault("notify.recipients", []string{})
	v.SetDefault("notify.from_addr", "")
	v.SetDefault("notify.from_name", "공지 알림")
	v.SetDefault("notify.brevo_api_key", "")
	v.SetDefault("notify.google_credentials_json", "")
	v.SetDefault("notify.bark.server_url", "https://api.day.app")
	v.SetDefault("notify.bark.device_key", "")
	v.SetDefault("notify.bark.token", "")
	v.SetDefault("notify.bark.group", "")
	v.SetDefault("notify.bark.encryption_key", "")
	v.SetDefault("notify.bark.timeout", "10s")
}

// bindLegacyEnv accepts the unprefixed variable names deployments already set.
// The prefixed name wins when both are present.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"port":                           "PORT",
		"log_level":                      "LOG_LEVEL",
		"fetch.attempts":                 "FETCH_ATTEMPTS",
		"storage.local_path":             "LOCAL_STORAGE",
		"storage.bucket":                 "STORAGE_BUCKET",
		"notify.google_credentials_json": "GOOGLE_CREDENTIALS_JSON",
		"notify.brevo_api_key":           "BREVO_API_KEY",
	}
	for key, legacy := range bindings {
		prefixed := strings.ToUpper(EnvPrefix + "_" + strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return err
		}
	}
	return nil
}
