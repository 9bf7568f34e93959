package email

import (
	"context"
	"fmt"
	"time"
)

// SendRequest contains the data needed to send an email via an external provider.
type SendRequest struct {
	To      []string // Recipient email addresses
	From    string   // Sender address, e.g. "Zanshin Dojo <noreply@zanshin.co.za>"; empty uses the sender default
	Subject string
	HTML    string
	ReplyTo string
}

// SendResult contains the response from the email provider.
type SendResult struct {
	MessageID string    // Provider's message ID for tracking
	SentAt    time.Time // When the send was accepted
}

// Sender is the interface for sending emails via an external provider.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
	SendBatch(ctx context.Context, reqs []SendRequest) ([]SendResult, error)
}

// New returns the sender for a configured provider name.
// PRE: provider is "resend", "sendgrid" or "noop"
func New(provider, apiKey, from string) (Sender, error) {
	switch provider {
	case "resend":
		return NewResendSender(apiKey, from), nil
	case "sendgrid":
		return NewSendgridSender(apiKey, from), nil
	case "noop", "":
		return NewNoopSender(), nil
	}
	return nil, fmt.Errorf("unknown email provider %q", provider)
}

func fromOrDefault(from, fallback string) string {
	if from == "" {
		return fallback
	}
	return from
}
