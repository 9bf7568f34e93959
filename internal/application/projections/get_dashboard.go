package projections

import (
	"context"
	"time"

	"github.com/samber/lo"

	"dojo/internal/adapters/storage/member"
	domainEvent "dojo/internal/domain/event"
	domainMember "dojo/internal/domain/member"
	domainOutbox "dojo/internal/domain/outbox"
	domainPayment "dojo/internal/domain/payment"
)

// recentWindow is how far back the dashboard counts new registrations.
const recentWindow = 30 * 24 * time.Hour

// dashboardEventLimit caps the upcoming events shown on the dashboard.
const dashboardEventLimit = 5

// GetDashboardDeps holds dependencies for the admin dashboard projection.
type GetDashboardDeps struct {
	MemberStore       MemberStore
	RegistrationStore RegistrationStore
	PaymentStore      PaymentStore
	EventStore        EventStore
	OutboxStore       OutboxStore
}

// DashboardResult carries the admin dashboard counts.
type DashboardResult struct {
	ActiveMembers       int
	InactiveMembers     int
	ArchivedMembers     int
	KidsMembers         int
	RecentRegistrations int
	PaidCount           int
	PaidTotal           string
	PendingPayments     int
	OutboxFailed        int
	OutboxPending       int
	UpcomingEvents      []domainEvent.Event
}

// QueryGetDashboard gathers the admin dashboard counts.
// PRE: now is the request time
// POST: counts reflect the stores at query time
func QueryGetDashboard(ctx context.Context, now time.Time, deps GetDashboardDeps) (DashboardResult, error) {
	var res DashboardResult
	counts := []struct {
		filter member.ListFilter
		dst    *int
	}{
		{member.ListFilter{Status: domainMember.StatusActive}, &res.ActiveMembers},
		{member.ListFilter{Status: domainMember.StatusInactive}, &res.InactiveMembers},
		{member.ListFilter{Status: domainMember.StatusArchived}, &res.ArchivedMembers},
		{member.ListFilter{Status: domainMember.StatusActive, Program: domainMember.ProgramKids}, &res.KidsMembers},
	}
	for _, c := range counts {
		n, err := deps.MemberStore.Count(ctx, c.filter)
		if err != nil {
			return DashboardResult{}, err
		}
		*c.dst = n
	}

	n, err := deps.RegistrationStore.CountSince(ctx, now.Add(-recentWindow).UTC().Format(time.RFC3339))
	if err != nil {
		return DashboardResult{}, err
	}
	res.RecentRegistrations = n

	totals, err := deps.PaymentStore.SumByStatus(ctx)
	if err != nil {
		return DashboardResult{}, err
	}
	paid := totals[domainPayment.StatusPaid]
	res.PaidCount = paid.Count
	res.PaidTotal = domainPayment.FormatAmount(paid.Cents)
	res.PendingPayments = totals[domainPayment.StatusPending].Count

	outbox, err := deps.OutboxStore.CountByStatus(ctx)
	if err != nil {
		return DashboardResult{}, err
	}
	res.OutboxFailed = outbox[domainOutbox.StatusFailed]
	res.OutboxPending = outbox[domainOutbox.StatusPending] + outbox[domainOutbox.StatusRetrying]

	events, err := deps.EventStore.List(ctx, now, false)
	if err != nil {
		return DashboardResult{}, err
	}
	res.UpcomingEvents = lo.Subset(events, 0, dashboardEventLimit)
	return res, nil
}
