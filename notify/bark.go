package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// BarkOptions configures a BarkProvider.
type BarkOptions struct {
	ServerURL string // e.g. https://api.day.app
	DeviceKey string
	Token     string // Sent as API-TOKEN when set
	Group     string
	// EncryptionKey enables encrypted pushes. It must be 16, 24 or 32 bytes
	// and match the key configured on the device.
	EncryptionKey string
	Timeout       time.Duration
}

// BarkProvider sends push notifications through a Bark server.
type BarkProvider struct {
	baseURL *url.URL
	opts    BarkOptions
	client  *http.Client
	logger  *slog.Logger
}

type barkPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Group string `json:"group,omitempty"`
}

type barkResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// NewBarkProvider creates a Bark provider.
func NewBarkProvider(opts BarkOptions, logger *slog.Logger) (*BarkProvider, error) {
	if opts.ServerURL == "" {
		return nil, errors.New("bark server url is required")
	}
	if opts.DeviceKey == "" {
		return nil, errors.New("bark device key is required")
	}
	parsed, err := url.Parse(opts.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("parse bark server url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("bark server url must include scheme and host: %q", opts.ServerURL)
	}
	if k := len(opts.EncryptionKey); k != 0 && k != 16 && k != 24 && k != 32 {
		return nil, fmt.Errorf("bark encryption key must be 16, 24 or 32 bytes, got %d", k)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")

	return &BarkProvider{
		baseURL: parsed,
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		logger:  logger,
	}, nil
}

// Send pushes title and body to the configured device.
func (b *BarkProvider) Send(ctx context.Context, title, body string) error {
	payload := barkPayload{Title: title, Body: body, Group: b.opts.Group}
	reqBody, err := b.encode(payload)
	if err != nil {
		return err
	}
	endpoint := b.endpoint()

	return retry.Do(
		func() error {
			b.logger.Info("Bark API request starting",
				"method", "POST",
				"endpoint", b.baseURL.Host,
				"encrypted", b.opts.EncryptionKey != "")

			startTime := time.Now()
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			req.Header.Set("Content-Type", "application/json; charset=utf-8")
			if b.opts.Token != "" {
				req.Header.Set("API-TOKEN", b.opts.Token)
			}

			resp, err := b.client.Do(req)
			duration := time.Since(startTime)
			if err != nil {
				b.logger.Warn("Bark API request failed, will retry",
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					b.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()

			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return retry.Unrecoverable(fmt.Errorf("bark push rejected: HTTP %d", resp.StatusCode))
			}
			if resp.StatusCode != http.StatusOK {
				b.logger.Warn("Bark API returned non-200 status, will retry", "status_code", resp.StatusCode)
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}

			var out barkResponse
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return fmt.Errorf("decode bark response: %w", err)
			}
			if out.Code != http.StatusOK {
				return retry.Unrecoverable(fmt.Errorf("bark push failed: code %d: %s", out.Code, out.Message))
			}

			b.logger.Info("Bark API request completed",
				"duration_ms", duration.Milliseconds(),
				"status", "success")
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			b.logger.Info("Retrying Bark push after error", "attempt", n, "error", err)
		}),
	)
}

// encode returns the request body, encrypting the payload when a key is configured.
func (b *BarkProvider) encode(p barkPayload) ([]byte, error) {
	plain, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	if b.opts.EncryptionKey == "" {
		return plain, nil
	}

	iv, err := randomIV()
	if err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}
	ciphertext, err := encryptToBase64(plain, []byte(b.opts.EncryptionKey), iv)
	if err != nil {
		return nil, fmt.Errorf("encrypt payload: %w", err)
	}
	body, err := json.Marshal(map[string]string{
		"ciphertext": ciphertext,
		"iv":         string(iv),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal encrypted payload: %w", err)
	}
	return body, nil
}

func (b *BarkProvider) endpoint() string {
	u := *b.baseURL
	u.Path = path.Join(b.baseURL.Path, "/", b.opts.DeviceKey)
	return u.String()
}
