// Package notify delivers new-notice notifications through pluggable providers.
package notify

import (
	"context"
	"errors"
	"log/slog"
)

// Provider delivers one notification.
type Provider interface {
	Send(ctx context.Context, title, body string) error
}

// Sender announces new notices through a provider.
type Sender struct {
	provider Provider
	logger   *slog.Logger
}

// New creates a sender for provider.
func New(provider Provider, logger *slog.Logger) *Sender {
	return &Sender{
		provider: provider,
		logger:   logger,
	}
}

// NotifyNewNotice sends title with the first new notice title as body.
func (s *Sender) NotifyNewNotice(ctx context.Context, title, body string) error {
	if body == "" {
		return errors.New("empty notification body")
	}

	s.logger.Info("Sending new notice notification",
		"title", title,
		"body", body)

	return s.provider.Send(ctx, title, body)
}
