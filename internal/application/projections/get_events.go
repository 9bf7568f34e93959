package projections

import (
	"context"
	"time"

	"github.com/samber/lo"

	domainEvent "dojo/internal/domain/event"
	domainPayment "dojo/internal/domain/payment"
)

// EventView is one event as listed on the site and in the portals.
type EventView struct {
	domainEvent.Event
	Dates string
	Fee   string // empty when free
	Past  bool
}

// GetEventsDeps holds dependencies for the event listing.
type GetEventsDeps struct {
	EventStore EventStore
}

// QueryGetEvents lists events starting on or after from.
// PRE: publicOnly is true for anonymous visitors
// POST: events keep the store order, earliest first
func QueryGetEvents(ctx context.Context, from, now time.Time, publicOnly bool, deps GetEventsDeps) ([]EventView, error) {
	events, err := deps.EventStore.List(ctx, from, publicOnly)
	if err != nil {
		return nil, err
	}
	return lo.Map(events, func(e domainEvent.Event, _ int) EventView {
		return eventView(e, now)
	}), nil
}

// GroupByMonth buckets events under "January 2026" style headings.
func GroupByMonth(events []EventView) ([]string, map[string][]EventView) {
	groups := lo.GroupBy(events, func(e EventView) string { return e.StartDate.Format("January 2006") })
	months := lo.Uniq(lo.Map(events, func(e EventView, _ int) string { return e.StartDate.Format("January 2006") }))
	return months, groups
}

func eventView(e domainEvent.Event, now time.Time) EventView {
	v := EventView{Event: e, Dates: e.StartDate.Format("Mon 2 Jan 2006"), Past: e.IsPast(now)}
	if e.IsMultiDay() {
		v.Dates += " to " + e.EndDate.Format("Mon 2 Jan 2006")
	}
	if e.FeeCents > 0 {
		v.Fee = domainPayment.FormatAmount(e.FeeCents)
	}
	return v
}
