package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendgridSender sends emails via the SendGrid v3 mail API.
type SendgridSender struct {
	key  string
	from string
	host string
}

// NewSendgridSender creates a sender with a default from address.
func NewSendgridSender(apiKey, from string) *SendgridSender {
	return &SendgridSender{key: apiKey, from: from, host: sendgridHost}
}

// WithHost points the sender at another API host.
func (s *SendgridSender) WithHost(host string) *SendgridSender {
	s.host = host
	return s
}

func sgAddress(addr string) *sgmail.Email {
	if a, err := mail.ParseAddress(addr); err == nil {
		return sgmail.NewEmail(a.Name, a.Address)
	}
	return sgmail.NewEmail("", addr)
}

func (s *SendgridSender) prepare(req SendRequest) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = req.Subject
	for _, to := range req.To {
		p.AddTos(sgAddress(to))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(sgAddress(fromOrDefault(req.From, s.from)))
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/html", req.HTML))
	if req.ReplyTo != "" {
		m.SetReplyTo(sgAddress(req.ReplyTo))
	}
	return m
}

// Send posts one message. SendGrid returns 202 and the message ID in a header.
func (s *SendgridSender) Send(_ context.Context, req SendRequest) (SendResult, error) {
	r := sendgrid.GetRequest(s.key, sendgridEndpoint, s.host)
	r.Method = http.MethodPost
	r.Body = sgmail.GetRequestBody(s.prepare(req))

	res, err := sendgrid.API(r)
	if err != nil {
		slog.Error("sendgrid_send_failed", "error", err, "subject", req.Subject)
		return SendResult{}, fmt.Errorf("sendgrid send failed: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		slog.Error("sendgrid_send_rejected", "status", res.StatusCode, "body", res.Body)
		return SendResult{}, fmt.Errorf("sendgrid send rejected: status %d", res.StatusCode)
	}

	var id string
	if v := res.Headers["X-Message-Id"]; len(v) > 0 {
		id = v[0]
	}
	slog.Info("sendgrid_sent", "message_id", id, "subject", req.Subject)
	return SendResult{MessageID: id, SentAt: time.Now()}, nil
}

// SendBatch sends each email in turn and stops at the first failure.
func (s *SendgridSender) SendBatch(ctx context.Context, reqs []SendRequest) ([]SendResult, error) {
	results := make([]SendResult, 0, len(reqs))
	for _, req := range reqs {
		res, err := s.Send(ctx, req)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}
