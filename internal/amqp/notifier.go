package amqp

import (
	"context"
	"time"
)

// ResetNotifier publishes password reset links as events.
type ResetNotifier struct {
	Client *Client
}

func (n ResetNotifier) SendPasswordReset(ctx context.Context, email, link string) error {
	return n.Client.PublishPasswordReset(ctx, PasswordResetEvent{
		Email:     email,
		Link:      link,
		Timestamp: time.Now(),
	})
}
