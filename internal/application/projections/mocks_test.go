package projections

import (
	"context"
	"errors"
	"sort"
	"time"

	"dojo/internal/adapters/storage/member"
	"dojo/internal/adapters/storage/payment"
	domainConsent "dojo/internal/domain/consent"
	domainDocument "dojo/internal/domain/document"
	domainEvent "dojo/internal/domain/event"
	domainMember "dojo/internal/domain/member"
	domainOutbox "dojo/internal/domain/outbox"
	domainPayment "dojo/internal/domain/payment"
	domainRegistration "dojo/internal/domain/registration"
)

var errNotSeeded = errors.New("not seeded")

type mockMemberStore struct {
	members   []domainMember.Member
	guardians map[string]domainMember.Guardian
}

func (m *mockMemberStore) GetByID(_ context.Context, id string) (domainMember.Member, error) {
	for _, mem := range m.members {
		if mem.ID == id {
			return mem, nil
		}
	}
	return domainMember.Member{}, errNotSeeded
}

func (m *mockMemberStore) matching(f member.ListFilter) []domainMember.Member {
	var out []domainMember.Member
	for _, mem := range m.members {
		if f.Status != "" && mem.Status != f.Status {
			continue
		}
		if f.Program != "" && mem.Program != f.Program {
			continue
		}
		out = append(out, mem)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (m *mockMemberStore) List(_ context.Context, f member.ListFilter) ([]domainMember.Member, error) {
	out := m.matching(f)
	if f.Offset > len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *mockMemberStore) Count(_ context.Context, f member.ListFilter) (int, error) {
	return len(m.matching(f)), nil
}

func (m *mockMemberStore) ListByGuardian(_ context.Context, guardianID string) ([]domainMember.Member, error) {
	var out []domainMember.Member
	for _, mem := range m.members {
		if mem.GuardianID == guardianID {
			out = append(out, mem)
		}
	}
	return out, nil
}

func (m *mockMemberStore) GetGuardian(_ context.Context, id string) (domainMember.Guardian, error) {
	g, ok := m.guardians[id]
	if !ok {
		return domainMember.Guardian{}, errNotSeeded
	}
	return g, nil
}

type mockRegistrationStore struct {
	byMember map[string][]domainRegistration.Registration
	recent   int
	since    string
}

func (m *mockRegistrationStore) ListByMember(_ context.Context, memberID string) ([]domainRegistration.Registration, error) {
	return m.byMember[memberID], nil
}

func (m *mockRegistrationStore) CountSince(_ context.Context, since string) (int, error) {
	m.since = since
	return m.recent, nil
}

type mockConsentStore struct {
	byMember map[string][]domainConsent.Consent
}

func (m *mockConsentStore) GetByMemberID(_ context.Context, memberID string) ([]domainConsent.Consent, error) {
	return m.byMember[memberID], nil
}

type mockDocumentStore struct {
	byMember map[string][]domainDocument.Document
}

func (m *mockDocumentStore) ListByMember(_ context.Context, memberID string) ([]domainDocument.Document, error) {
	return m.byMember[memberID], nil
}

type mockPaymentStore struct {
	byMember map[string][]domainPayment.Payment
	totals   map[string]payment.Totals
}

func (m *mockPaymentStore) ListByMember(_ context.Context, memberID string) ([]domainPayment.Payment, error) {
	return m.byMember[memberID], nil
}

func (m *mockPaymentStore) SumByStatus(context.Context) (map[string]payment.Totals, error) {
	return m.totals, nil
}

type mockEventStore struct {
	events []domainEvent.Event
}

func (m *mockEventStore) List(_ context.Context, from time.Time, publicOnly bool) ([]domainEvent.Event, error) {
	var out []domainEvent.Event
	for _, e := range m.events {
		if e.StartDate.Before(from) || (publicOnly && !e.Public) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

type mockOutboxStore struct {
	entries []domainOutbox.Entry
}

func (m *mockOutboxStore) ListByStatus(_ context.Context, status string, limit int) ([]domainOutbox.Entry, error) {
	var out []domainOutbox.Entry
	for _, e := range m.entries {
		if e.Status == status && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockOutboxStore) CountByStatus(context.Context) (map[string]int, error) {
	counts := map[string]int{}
	for _, e := range m.entries {
		counts[e.Status]++
	}
	return counts, nil
}
