// Package wizardstore keeps in-progress registration wizard sessions on the server.
package wizardstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dojo/internal/domain/wizard"
)

// DefaultTTL is how long an idle wizard session is kept.
const DefaultTTL = 24 * time.Hour

// ErrNotFound is returned for unknown, expired or unreadable sessions.
var ErrNotFound = errors.New("wizard session not found")

// Store persists wizard sessions by token.
type Store interface {
	// Load returns the session for token.
	// POST: returns ErrNotFound when the session is missing, expired or corrupt
	Load(ctx context.Context, token string) (*wizard.State, error)

	// Save stores the session and restarts its TTL.
	// PRE: s.Token is non-empty
	Save(ctx context.Context, s *wizard.State) error

	// Delete removes a session.
	Delete(ctx context.Context, token string) error
}

func encode(s *wizard.State) ([]byte, error) {
	if s == nil || s.Token == "" {
		return nil, errors.New("wizard session has no token")
	}
	return json.Marshal(s)
}

func decode(data []byte) (*wizard.State, error) {
	var s wizard.State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return &s, nil
}
