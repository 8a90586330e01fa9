package auth

import (
	"context"

	"jobboard.org/internal/obs"
)

// Mailer delivers account lifecycle email. Template rendering and outbound
// delivery live in an external collaborator; the identity core depends only
// on this contract.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, name, email, token string) error
	SendPasswordResetEmail(ctx context.Context, email, token string) error
}

// LogMailer records the mail intent on the structured log instead of
// sending anything. Used in development and tests.
type LogMailer struct{}

func (LogMailer) SendVerificationEmail(ctx context.Context, name, email, token string) error {
	obs.LogRequest(map[string]any{
		"level": "info",
		"msg":   "verification_email",
		"email": email,
		"name":  name,
	})
	return nil
}

func (LogMailer) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	obs.LogRequest(map[string]any{
		"level": "info",
		"msg":   "password_reset_email",
		"email": email,
	})
	return nil
}
