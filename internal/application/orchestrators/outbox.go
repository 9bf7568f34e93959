package orchestrators

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	emailAdapter "dojo/internal/adapters/email"
	"dojo/internal/domain/notification"
	domain "dojo/internal/domain/outbox"
)

// OutboxStore is the persistence the outbox processor needs.
type OutboxStore interface {
	GetByID(ctx context.Context, id string) (domain.Entry, error)
	Save(ctx context.Context, e domain.Entry) error
	ListPending(ctx context.Context, limit int) ([]domain.Entry, error)
}

// ActionExecutor executes a specific type of external action.
type ActionExecutor interface {
	// Execute runs the external action with the given payload.
	// Returns the provider's ID for the action and any error.
	Execute(ctx context.Context, payload string) (string, error)
}

// OutboxProcessor delivers outbox entries and retries failures with backoff.
type OutboxProcessor struct {
	store     OutboxStore
	executors map[string]ActionExecutor
	baseDelay time.Duration
	maxDelay  time.Duration
	batchSize int
	now       func() time.Time
}

// NewOutboxProcessor creates a new outbox processor.
func NewOutboxProcessor(store OutboxStore, executors map[string]ActionExecutor) *OutboxProcessor {
	return &OutboxProcessor{
		store:     store,
		executors: executors,
		baseDelay: 30 * time.Second,
		maxDelay:  time.Hour,
		batchSize: 20,
		now:       time.Now,
	}
}

// WithClock replaces the processor's time source.
func (p *OutboxProcessor) WithClock(now func() time.Time) *OutboxProcessor {
	p.now = now
	return p
}

// EnqueueEmail stores a message in the outbox and attempts delivery at once.
// A failed attempt stays queued for the background worker; only storage errors are returned.
// PRE: msg.Validate() returns nil
// POST: an outbox entry exists for msg
func (p *OutboxProcessor) EnqueueEmail(ctx context.Context, msg notification.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}
	entry, err := domain.NewEntry(uuid.New().String(), domain.ActionTypeEmail, string(payload), p.now())
	if err != nil {
		return err
	}
	if err := p.store.Save(ctx, entry); err != nil {
		return fmt.Errorf("queue email: %w", err)
	}
	slog.Info("outbox_enqueued", "entry_id", entry.ID, "template", msg.Template)

	if err := p.attempt(ctx, entry); err != nil {
		slog.Error("outbox_process_failed", "entry_id", entry.ID, "error", err)
	}
	return nil
}

// ProcessPending processes due outbox entries.
// PRE: Context is valid
// POST: Due entries are attempted once; failures are left for the next run
func (p *OutboxProcessor) ProcessPending(ctx context.Context) error {
	entries, err := p.store.ListPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("list pending outbox entries: %w", err)
	}
	now := p.now()
	for _, entry := range entries {
		if !entry.IsDue(now, p.baseDelay, p.maxDelay) {
			continue
		}
		if err := p.attempt(ctx, entry); err != nil {
			slog.Error("outbox_process_failed", "entry_id", entry.ID, "action_type", entry.ActionType, "error", err)
		}
	}
	return nil
}

// attempt runs one delivery attempt and saves the outcome.
func (p *OutboxProcessor) attempt(ctx context.Context, entry domain.Entry) error {
	if !entry.CanRetry() {
		return domain.ErrNotRetryable
	}
	entry.MarkAttempt(p.now())

	executor, ok := p.executors[entry.ActionType]
	if !ok {
		entry.MarkFailed(fmt.Errorf("no executor registered for action type: %s", entry.ActionType))
		return p.store.Save(ctx, entry)
	}

	externalID, err := executor.Execute(ctx, entry.Payload)
	if err != nil {
		entry.MarkFailed(err)
		slog.Warn("outbox_action_failed", "entry_id", entry.ID, "attempt", entry.Attempts, "status", entry.Status, "error", err)
	} else {
		entry.MarkSuccess(externalID)
		slog.Info("outbox_action_succeeded", "entry_id", entry.ID, "action_type", entry.ActionType, "external_id", externalID)
	}
	return p.store.Save(ctx, entry)
}

// RetryEntry gives a failed entry fresh attempts and tries it immediately (admin retry).
// PRE: entryID names a failed or pending entry
// POST: Entry has been attempted once more
func (p *OutboxProcessor) RetryEntry(ctx context.Context, entryID string) error {
	entry, err := p.store.GetByID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("get outbox entry: %w", err)
	}
	if entry.Status == domain.StatusFailed {
		if err := entry.Requeue(); err != nil {
			return err
		}
	}
	if entry.IsTerminal() {
		return fmt.Errorf("entry %s: %w", entryID, domain.ErrTerminal)
	}
	return p.attempt(ctx, entry)
}

// AbandonEntry marks an entry as abandoned by an admin.
// POST: Entry status set to abandoned
func (p *OutboxProcessor) AbandonEntry(ctx context.Context, entryID string) error {
	entry, err := p.store.GetByID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("get outbox entry: %w", err)
	}
	if err := entry.MarkAbandoned(); err != nil {
		return err
	}
	slog.Info("outbox_abandoned", "entry_id", entryID)
	return p.store.Save(ctx, entry)
}

// --- Email Executor ---

// EmailExecutor sends queued notification messages.
type EmailExecutor struct {
	Sender  emailAdapter.Sender
	From    string
	ReplyTo string
}

// Execute sends an email from the payload.
// PRE: payload is a JSON notification.Message
// POST: email accepted by the provider; returns its message ID
func (e *EmailExecutor) Execute(ctx context.Context, payload string) (string, error) {
	var msg notification.Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return "", fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return "", err
	}
	if e.Sender == nil {
		return "", errors.New("no email sender configured")
	}
	res, err := e.Sender.Send(ctx, emailAdapter.SendRequest{
		To:      msg.To,
		From:    e.From,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		ReplyTo: e.ReplyTo,
	})
	if err != nil {
		return "", err
	}
	return res.MessageID, nil
}

// --- Background Worker ---

// StartBackgroundWorker starts a background goroutine that periodically processes pending outbox entries.
// PRE: stopCh is provided to signal shutdown
// POST: Worker runs until stopCh is closed
func StartBackgroundWorker(processor *OutboxProcessor, interval time.Duration, stopCh <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				if err := processor.ProcessPending(ctx); err != nil {
					slog.Error("outbox_background_process_failed", "error", err)
				}
				cancel()
			case <-stopCh:
				slog.Info("outbox_background_worker_stopped")
				return
			}
		}
	}()
}
