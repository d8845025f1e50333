package user

import (
	"context"
	"log/slog"
)

// Mailer delivers the password-reset link. Actual SMTP/provider delivery
// lives outside this service; the default implementation just logs.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.Logger.Info("password reset requested",
		slog.String("email", email),
		slog.String("token", token),
	)
	return nil
}
