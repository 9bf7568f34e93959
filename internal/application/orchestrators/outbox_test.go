package orchestrators

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	emailAdapter "dojo/internal/adapters/email"
	"dojo/internal/domain/notification"
	"dojo/internal/domain/outbox"
)

type flakySender struct {
	emailAdapter.NoopSender
	failures int
	calls    int
}

func (s *flakySender) Send(ctx context.Context, req emailAdapter.SendRequest) (emailAdapter.SendResult, error) {
	s.calls++
	if s.calls <= s.failures {
		return emailAdapter.SendResult{}, errors.New("provider unavailable")
	}
	return emailAdapter.SendResult{MessageID: "msg-1", SentAt: time.Now()}, nil
}

func testMessage() notification.Message {
	return notification.Message{
		Template: notification.TemplateRegistrationConfirmation,
		To:       []string{"thandi@example.com"},
		Subject:  "Welcome",
		HTML:     "<p>Welcome</p>",
	}
}

func newTestProcessor(store *mockOutboxStore, sender emailAdapter.Sender, now *time.Time) *OutboxProcessor {
	p := NewOutboxProcessor(store, map[string]ActionExecutor{
		outbox.ActionTypeEmail: &EmailExecutor{Sender: sender, From: "dojo@example.com"},
	})
	return p.WithClock(func() time.Time { return *now })
}

// TestEnqueueEmail_DeliversImmediately verifies a healthy provider finishes the entry at once.
func TestEnqueueEmail_DeliversImmediately(t *testing.T) {
	store := newMockOutboxStore()
	sender := emailAdapter.NewNoopSender()
	now := time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC)
	p := newTestProcessor(store, sender, &now)

	if err := p.EnqueueEmail(context.Background(), testMessage()); err != nil {
		t.Fatalf("EnqueueEmail: %v", err)
	}
	e := store.only()
	if e.Status != outbox.StatusDone || e.Attempts != 1 {
		t.Errorf("entry = %+v", e)
	}
	var msg notification.Message
	if err := json.Unmarshal([]byte(e.Payload), &msg); err != nil || msg.Subject != "Welcome" {
		t.Errorf("payload = %s", e.Payload)
	}
	sent := sender.Sent()
	if len(sent) != 1 || sent[0].From != "dojo@example.com" {
		t.Errorf("sent = %+v", sent)
	}
}

// TestEnqueueEmail_RetriesWithBackoff verifies failures stay queued until the backoff elapses.
func TestEnqueueEmail_RetriesWithBackoff(t *testing.T) {
	store := newMockOutboxStore()
	sender := &flakySender{failures: 2}
	now := time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC)
	p := newTestProcessor(store, sender, &now)

	if err := p.EnqueueEmail(context.Background(), testMessage()); err != nil {
		t.Fatalf("EnqueueEmail should not surface delivery errors: %v", err)
	}
	if e := store.only(); e.Status != outbox.StatusRetrying || e.ErrorMessage == "" {
		t.Fatalf("after first failure entry = %+v", e)
	}

	// Not due yet.
	if err := p.ProcessPending(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sender.calls != 1 {
		t.Errorf("calls = %d before backoff elapsed", sender.calls)
	}

	now = now.Add(time.Hour)
	_ = p.ProcessPending(context.Background())
	now = now.Add(time.Hour)
	_ = p.ProcessPending(context.Background())

	if e := store.only(); e.Status != outbox.StatusDone || e.ExternalID != "msg-1" || e.Attempts != 3 {
		t.Errorf("entry = %+v", e)
	}
}

// TestRetryAndAbandon covers the admin actions on failed entries.
func TestRetryAndAbandon(t *testing.T) {
	store := newMockOutboxStore()
	sender := &flakySender{failures: 100}
	now := time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC)
	p := newTestProcessor(store, sender, &now)

	if err := p.EnqueueEmail(context.Background(), testMessage()); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		now = now.Add(2 * time.Hour)
		_ = p.ProcessPending(context.Background())
	}
	e := store.only()
	if e.Status != outbox.StatusFailed {
		t.Fatalf("entry should fail after max attempts: %+v", e)
	}

	sender.failures = 0
	if err := p.RetryEntry(context.Background(), e.ID); err != nil {
		t.Fatalf("RetryEntry: %v", err)
	}
	if got := store.only(); got.Status != outbox.StatusDone {
		t.Errorf("after retry = %+v", got)
	}
	if err := p.RetryEntry(context.Background(), e.ID); !errors.Is(err, outbox.ErrTerminal) {
		t.Errorf("retry of done entry = %v", err)
	}
	if err := p.AbandonEntry(context.Background(), e.ID); err == nil {
		t.Error("abandoning a delivered entry should fail")
	}
}

// TestEnqueueEmail_InvalidMessage verifies nothing is stored for a message without recipients.
func TestEnqueueEmail_InvalidMessage(t *testing.T) {
	store := newMockOutboxStore()
	now := time.Now()
	p := newTestProcessor(store, emailAdapter.NewNoopSender(), &now)
	msg := testMessage()
	msg.To = nil
	if err := p.EnqueueEmail(context.Background(), msg); !errors.Is(err, notification.ErrNoRecipients) {
		t.Fatalf("error = %v", err)
	}
	if len(store.entries) != 0 {
		t.Error("invalid message was queued")
	}
}
