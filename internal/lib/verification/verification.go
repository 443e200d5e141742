package verification

import (
	"context"
	"fmt"

	"social_service/internal/models"
)

type Publisher interface {
	SendMessage(ctx context.Context, msg models.Message) error
}

// SendVerificationEmail publishes an email carrying the verification link.
// Whether a delivery failure is fatal is up to the caller.
func SendVerificationEmail(ctx context.Context, pub Publisher, address, email, token string) error {
	msg := models.Message{
		Email:   email,
		Link:    fmt.Sprintf("http://%s/verify-email?token=%s", address, token),
		Purpose: "email_verification",
	}

	return pub.SendMessage(ctx, msg)
}

// SendOTPEmail publishes an email carrying the password-reset code.
func SendOTPEmail(ctx context.Context, pub Publisher, email, code string) error {
	msg := models.Message{
		Email:   email,
		Code:    code,
		Purpose: "password_reset",
	}

	return pub.SendMessage(ctx, msg)
}
