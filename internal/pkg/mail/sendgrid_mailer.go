package mail

import (
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/everkeep/everkeep/internal/pkg/env"
)

// SendgridSender sends emails through the SendGrid API.
type SendgridSender struct{}

// NewSendgridSender creates a SendGrid-backed mail sender.
func NewSendgridSender() *SendgridSender {
	return &SendgridSender{}
}

// Send delivers an email via SendGrid.
func (s *SendgridSender) Send(to string, subject string, body string) error {
	apiKey := env.GetEnv("SENDGRID_API_KEY", "")
	if apiKey == "" {
		return fmt.Errorf("SENDGRID_API_KEY not configured")
	}
	sender := env.GetEnv("SMTP_SENDER", "no-reply@localhost")

	from := sgmail.NewEmail("EverKeep", sender)
	recipient := sgmail.NewEmail("", to)
	message := sgmail.NewSingleEmail(from, subject, recipient, body, body)
	client := sendgrid.NewSendClient(apiKey)

	resp, err := client.Send(message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d", resp.StatusCode)
	}
	return nil
}
