package wizardstore

import (
	"context"
	"time"

	"github.com/zekroTJA/timedmap"

	"dojo/internal/domain/wizard"
)

// MemoryStore keeps sessions in process memory with a sliding TTL.
// Values are stored encoded so callers never share a *State.
type MemoryStore struct {
	m   *timedmap.TimedMap
	ttl time.Duration
}

// NewMemoryStore creates a store whose expired entries are swept every minute.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{m: timedmap.New(time.Minute), ttl: ttl}
}

// Load returns a copy of the stored session.
func (s *MemoryStore) Load(_ context.Context, token string) (*wizard.State, error) {
	data, ok := s.m.GetValue(token).([]byte)
	if !ok {
		return nil, ErrNotFound
	}
	return decode(data)
}

// Save stores a copy of the session.
func (s *MemoryStore) Save(_ context.Context, st *wizard.State) error {
	data, err := encode(st)
	if err != nil {
		return err
	}
	s.m.Set(st.Token, data, s.ttl)
	return nil
}

// Delete removes a session.
func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.m.Remove(token)
	return nil
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	return s.m.Size()
}

// Close stops the expiry sweeper.
func (s *MemoryStore) Close() {
	s.m.StopCleaner()
}
