package notify

import (
	"context"
	"log/slog"
	"sync"
)

// MockProvider logs notifications instead of sending them and keeps them for inspection.
type MockProvider struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []Message
}

// Message is a notification recorded by MockProvider.
type Message struct {
	Title string
	Body  string
}

// NewMockProvider creates a new mock provider.
func NewMockProvider(logger *slog.Logger) *MockProvider {
	return &MockProvider{
		logger: logger,
	}
}

// Send logs the notification.
func (m *MockProvider) Send(ctx context.Context, title, body string) error {
	m.logger.Info("MOCK NOTIFICATION",
		"title", title,
		"body", body)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, Message{Title: title, Body: body})
	return nil
}

// Sent returns the notifications recorded so far.
func (m *MockProvider) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}
