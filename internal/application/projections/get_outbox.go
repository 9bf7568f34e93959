package projections

import (
	"context"

	domainOutbox "dojo/internal/domain/outbox"
)

const outboxPageSize = 100

// OutboxResult is the admin view of queued emails.
type OutboxResult struct {
	Status  string
	Entries []domainOutbox.Entry
	Counts  map[string]int
}

// QueryGetOutbox lists entries in one status, failed by default.
func QueryGetOutbox(ctx context.Context, status string, store OutboxStore) (OutboxResult, error) {
	if status == "" {
		status = domainOutbox.StatusFailed
	}
	entries, err := store.ListByStatus(ctx, status, outboxPageSize)
	if err != nil {
		return OutboxResult{}, err
	}
	counts, err := store.CountByStatus(ctx)
	if err != nil {
		return OutboxResult{}, err
	}
	return OutboxResult{Status: status, Entries: entries, Counts: counts}, nil
}
