package auth

import (
	"context"
	"log/slog"
)

// LogNotifier writes reset links to the log. Used when no mail/event
// transport is configured.
type LogNotifier struct{}

func (LogNotifier) SendPasswordReset(ctx context.Context, email, link string) error {
	slog.InfoContext(ctx, "Password reset link generated", "email", email, "link", link)
	return nil
}
