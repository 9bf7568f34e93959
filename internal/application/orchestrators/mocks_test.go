package orchestrators

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	accountStore "dojo/internal/adapters/storage/account"
	memberStore "dojo/internal/adapters/storage/member"
	"dojo/internal/domain/account"
	"dojo/internal/domain/consent"
	"dojo/internal/domain/document"
	"dojo/internal/domain/event"
	"dojo/internal/domain/member"
	"dojo/internal/domain/outbox"
	"dojo/internal/domain/payment"
	"dojo/internal/domain/registration"
)

var errNotFound = errors.New("not found")

// --- accounts ---

type mockAccountStore struct {
	byID map[string]account.Account
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{byID: map[string]account.Account{}}
}

func (s *mockAccountStore) GetByID(_ context.Context, id string) (account.Account, error) {
	a, ok := s.byID[id]
	if !ok {
		return account.Account{}, accountStore.ErrNotFound
	}
	return a, nil
}

func (s *mockAccountStore) GetByEmail(_ context.Context, email string) (account.Account, error) {
	for _, a := range s.byID {
		if a.Email == email {
			return a, nil
		}
	}
	return account.Account{}, accountStore.ErrNotFound
}

func (s *mockAccountStore) Save(_ context.Context, a account.Account) error {
	s.byID[a.ID] = a
	return nil
}

func (s *mockAccountStore) Count(_ context.Context) (int, error) {
	return len(s.byID), nil
}

// --- members ---

type mockMemberStore struct {
	members   map[string]member.Member
	guardians map[string]member.Guardian
	lookupErr error
}

func newMockMemberStore(members ...member.Member) *mockMemberStore {
	s := &mockMemberStore{members: map[string]member.Member{}, guardians: map[string]member.Guardian{}}
	for _, m := range members {
		s.members[m.ID] = m
	}
	return s
}

func (s *mockMemberStore) GetByID(_ context.Context, id string) (member.Member, error) {
	m, ok := s.members[id]
	if !ok {
		return member.Member{}, memberStore.ErrNotFound
	}
	return m, nil
}

func (s *mockMemberStore) GetByIDNumber(_ context.Context, idNumber string) (member.Member, error) {
	if s.lookupErr != nil {
		return member.Member{}, s.lookupErr
	}
	for _, m := range s.members {
		if m.IDNumber == idNumber {
			return m, nil
		}
	}
	return member.Member{}, memberStore.ErrNotFound
}

func (s *mockMemberStore) NumberTaken(_ context.Context, number string) (bool, error) {
	for _, m := range s.members {
		if m.MembershipNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (s *mockMemberStore) Save(_ context.Context, m member.Member) error {
	s.members[m.ID] = m
	return nil
}

func (s *mockMemberStore) SaveGuardian(_ context.Context, g member.Guardian) error {
	s.guardians[g.ID] = g
	return nil
}

// --- documents and blobs ---

type mockDocumentStore struct {
	docs map[string]document.Document
}

func newMockDocumentStore() *mockDocumentStore {
	return &mockDocumentStore{docs: map[string]document.Document{}}
}

func (s *mockDocumentStore) Save(_ context.Context, d document.Document) error {
	s.docs[d.ID] = d
	return nil
}

func (s *mockDocumentStore) LinkToMember(_ context.Context, memberID string, ids []string) error {
	for _, id := range ids {
		d, ok := s.docs[id]
		if !ok {
			return errNotFound
		}
		d.MemberID = memberID
		s.docs[id] = d
	}
	return nil
}

// --- registrations and consents ---

// mockRegistrationStore upserts by ID like the SQLite store.
type mockRegistrationStore struct {
	saved []registration.Registration
}

func (s *mockRegistrationStore) Save(_ context.Context, r registration.Registration) error {
	for i := range s.saved {
		if s.saved[i].ID == r.ID {
			s.saved[i] = r
			return nil
		}
	}
	s.saved = append(s.saved, r)
	return nil
}

// mockConsentStore upserts by ID; failNext makes the next Save fail once.
type mockConsentStore struct {
	saved    []consent.Consent
	failNext error
}

func (s *mockConsentStore) Save(_ context.Context, c consent.Consent) error {
	if err := s.failNext; err != nil {
		s.failNext = nil
		return err
	}
	for i := range s.saved {
		if s.saved[i].ID == c.ID {
			s.saved[i] = c
			return nil
		}
	}
	s.saved = append(s.saved, c)
	return nil
}

// --- outbox ---

type mockOutboxStore struct {
	mu      sync.Mutex
	entries map[string]outbox.Entry
}

func newMockOutboxStore() *mockOutboxStore {
	return &mockOutboxStore{entries: map[string]outbox.Entry{}}
}

func (s *mockOutboxStore) GetByID(_ context.Context, id string) (outbox.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return outbox.Entry{}, errNotFound
	}
	return e, nil
}

func (s *mockOutboxStore) Save(_ context.Context, e outbox.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.ID] = e
	return nil
}

func (s *mockOutboxStore) ListPending(_ context.Context, limit int) ([]outbox.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []outbox.Entry
	for _, e := range s.entries {
		if e.Status == outbox.StatusPending || e.Status == outbox.StatusRetrying {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *mockOutboxStore) only() outbox.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		return e
	}
	return outbox.Entry{}
}

// --- payments ---

type mockPaymentStore struct {
	payments map[string]payment.Payment
}

func newMockPaymentStore() *mockPaymentStore {
	return &mockPaymentStore{payments: map[string]payment.Payment{}}
}

func (s *mockPaymentStore) Save(_ context.Context, p payment.Payment) error {
	s.payments[p.ID] = p
	return nil
}

func (s *mockPaymentStore) GetByID(_ context.Context, id string) (payment.Payment, error) {
	p, ok := s.payments[id]
	if !ok {
		return payment.Payment{}, errNotFound
	}
	return p, nil
}

func (s *mockPaymentStore) Complete(_ context.Context, id, outcome, _ string, now time.Time) (bool, error) {
	p, ok := s.payments[id]
	if !ok || !p.IsPending() {
		return false, nil
	}
	p.Status = outcome
	p.CompletedAt = now
	s.payments[id] = p
	return true, nil
}

// --- events ---

type mockEventStore struct {
	events map[string]event.Event
}

func (s *mockEventStore) Save(_ context.Context, e event.Event) error {
	s.events[e.ID] = e
	return nil
}

func (s *mockEventStore) GetByID(_ context.Context, id string) (event.Event, error) {
	e, ok := s.events[id]
	if !ok {
		return event.Event{}, errNotFound
	}
	return e, nil
}

func (s *mockEventStore) Delete(_ context.Context, id string) error {
	delete(s.events, id)
	return nil
}

// sequence returns an ID generator producing prefix-1, prefix-2, ...
func sequence(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}


func docWithID(id string) document.Document {
	return document.Document{ID: id, Kind: document.KindStudentID}
}

func memberFixture(id string) member.Member {
	return member.Member{
		ID:               id,
		MembershipNumber: "ZF0001",
		FirstName:        "Thandi",
		LastName:         "Mokoena",
		IDType:           "passport",
		IDNumber:         "P" + id,
		Program:          member.ProgramAdults,
		Status:           member.StatusActive,
	}
}
