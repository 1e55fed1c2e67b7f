package mail

import (
	"github.com/everkeep/everkeep/internal/pkg/env"
)

// Sender delivers a single email.
type Sender interface {
	Send(to string, subject string, body string) error
}

// NewSenderFromEnv picks the configured mail backend: SendGrid when an API
// key is present, plain SMTP otherwise.
func NewSenderFromEnv() Sender {
	if env.GetEnv("SENDGRID_API_KEY", "") != "" {
		return NewSendgridSender()
	}
	return NewSMTPSender()
}
