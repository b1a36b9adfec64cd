package notify

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/gmail/v1"
)

// GmailProvider sends notifications as email via the Gmail API.
type GmailProvider struct {
	service *gmail.Service
	to      []string
	logger  *slog.Logger
}

// NewGmailProvider creates a new Gmail provider that mails every notification to recipients.
func NewGmailProvider(service *gmail.Service, recipients []string, logger *slog.Logger) (*GmailProvider, error) {
	if len(recipients) == 0 {
		return nil, errors.New("at least one recipient is required")
	}
	return &GmailProvider{
		service: service,
		to:      recipients,
		logger:  logger,
	}, nil
}

// sanitizeHeader removes newlines and control characters to prevent header injection.
func sanitizeHeader(s string) string {
	var result strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// buildMessage returns the raw RFC 5322 message, base64url encoded as the API expects.
func buildMessage(to []string, title, body string) string {
	recipients := make([]string, 0, len(to))
	for _, addr := range to {
		recipients = append(recipients, sanitizeHeader(addr))
	}

	// From address is set by Gmail API based on the authenticated account
	var msg strings.Builder
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.BEncoding.Encode("utf-8", sanitizeHeader(title)))
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)
	return base64.URLEncoding.EncodeToString([]byte(msg.String()))
}

// Send sends the notification via Gmail API.
func (g *GmailProvider) Send(ctx context.Context, title, body string) error {
	encoded := buildMessage(g.to, title, body)

	return retry.Do(
		func() error {
			g.logger.Info("Gmail API request starting",
				"method", "POST",
				"endpoint", "users.messages.send",
				"recipients", len(g.to),
				"subject", title)

			startTime := time.Now()
			_, err := g.service.Users.Messages.Send("me", &gmail.Message{
				Raw: encoded,
			}).Context(ctx).Do()
			duration := time.Since(startTime)

			if err != nil {
				g.logger.Warn("Gmail API send failed, will retry",
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return err
			}

			g.logger.Info("Gmail API request completed",
				"endpoint", "users.messages.send",
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
			g.logger.Info("Retrying Gmail send after error", "attempt", n, "error", err)
		}),
	)
}
