package mailer

import (
	"context"
	"fmt"

	"social_service/internal/config"
	"social_service/internal/models"

	gomail "gopkg.in/gomail.v2"
)

// SMTPMailer delivers email messages directly over SMTP. It implements the
// same Publisher interface as the RabbitMQ client for deployments that run
// without a broker.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func New(cfg config.SMTP) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
	}
}

func (m *SMTPMailer) SendMessage(_ context.Context, msg models.Message) error {
	const op = "mailer.SendMessage"

	mail := gomail.NewMessage()
	mail.SetHeader("From", m.from)
	mail.SetHeader("To", msg.Email)

	switch msg.Purpose {
	case "password_reset":
		mail.SetHeader("Subject", "OTP Verification")
		mail.SetBody("text/html", fmt.Sprintf(
			"<h3>Your OTP code is: <b>%s</b></h3><p>This OTP will expire in 10 minutes.</p>",
			msg.Code,
		))
	default:
		mail.SetHeader("Subject", "Email Verification")
		mail.SetBody("text/html", fmt.Sprintf(
			"<p>Please verify your email by following <a href=%q>this link</a>.</p>",
			msg.Link,
		))
	}

	if err := m.dialer.DialAndSend(mail); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
