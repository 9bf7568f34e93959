package consent

import (
	"context"
	"database/sql"
	"time"

	"dojo/internal/adapters/storage"
	domain "dojo/internal/domain/consent"
)

const dateLayout = "2006-01-02T15:04:05.999999999Z07:00"

// SQLiteStore implements the consent Store interface using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new consent store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save persists a consent record.
// PRE: consent is valid
// POST: Consent is persisted; only the grant state changes on conflict
func (s *SQLiteStore) Save(ctx context.Context, c domain.Consent) error {
	var revokedAt any
	if c.RevokedAt != nil {
		revokedAt = c.RevokedAt.Format(dateLayout)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO consent (id, member_id, type, granted, granted_at, revoked_at, source, ip_address, user_agent, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET granted=excluded.granted, revoked_at=excluded.revoked_at`,
		c.ID, c.MemberID, string(c.Type), c.Granted, c.GrantedAt.Format(dateLayout),
		revokedAt, c.Source, c.IPAddress, c.UserAgent, c.Version)
	return err
}

// GetByMemberID retrieves all consent records for a member.
// PRE: memberID is non-empty
// POST: Returns all consent records for the member, newest first
func (s *SQLiteStore) GetByMemberID(ctx context.Context, memberID string) ([]domain.Consent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, member_id, type, granted, granted_at, revoked_at, source, ip_address, user_agent, version
		 FROM consent WHERE member_id = ? ORDER BY granted_at DESC`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Consent
	for rows.Next() {
		var c domain.Consent
		var typ, grantedAt string
		var revokedAt sql.NullString
		if err := rows.Scan(&c.ID, &c.MemberID, &typ, &c.Granted, &grantedAt, &revokedAt,
			&c.Source, &c.IPAddress, &c.UserAgent, &c.Version); err != nil {
			return nil, err
		}
		c.Type = domain.Type(typ)
		c.GrantedAt, _ = time.Parse(dateLayout, grantedAt)
		if revokedAt.Valid && revokedAt.String != "" {
			t, _ := time.Parse(dateLayout, revokedAt.String)
			c.RevokedAt = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// HasValidConsent checks if member has valid consent of a specific type.
// POST: Returns true if a granted, unrevoked consent exists for the current document version
func (s *SQLiteStore) HasValidConsent(ctx context.Context, memberID string, consentType domain.Type) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM consent
		 WHERE member_id = ? AND type = ? AND granted = 1 AND revoked_at IS NULL AND version = ?`,
		memberID, string(consentType), domain.Versions[consentType]).Scan(&n)
	return n > 0, err
}
