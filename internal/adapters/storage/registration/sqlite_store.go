package registration

import (
	"context"
	"database/sql"
	"time"

	"dojo/internal/adapters/storage"
	domain "dojo/internal/domain/registration"
)

const dateLayout = "2006-01-02T15:04:05.999999999Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new registration store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save inserts a registration, or rewrites the one with the same ID.
// PRE: r has been validated
// POST: registration is persisted
func (s *SQLiteStore) Save(ctx context.Context, r domain.Registration) error {
	var guardianID any
	if r.GuardianID != "" {
		guardianID = r.GuardianID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO registration (id, member_id, guardian_id, kind, parq, training, medical, readiness, parq_flagged, submitted_ip, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET member_id=excluded.member_id, guardian_id=excluded.guardian_id, kind=excluded.kind,
		   parq=excluded.parq, training=excluded.training, medical=excluded.medical, readiness=excluded.readiness,
		   parq_flagged=excluded.parq_flagged, submitted_ip=excluded.submitted_ip, submitted_at=excluded.submitted_at`,
		r.ID, r.MemberID, guardianID, r.Kind, r.ParQJSON, r.TrainingJSON, r.MedicalJSON, r.ReadinessJSON,
		r.ParQFlagged, r.SubmittedIP, r.SubmittedAt.UTC().Format(dateLayout))
	return err
}

// ListByMember returns a member's registrations, newest first.
func (s *SQLiteStore) ListByMember(ctx context.Context, memberID string) ([]domain.Registration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, member_id, guardian_id, kind, parq, training, medical, readiness, parq_flagged, submitted_ip, submitted_at
		 FROM registration WHERE member_id = ? ORDER BY submitted_at DESC`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Registration
	for rows.Next() {
		var r domain.Registration
		var guardianID sql.NullString
		var submittedAt string
		if err := rows.Scan(&r.ID, &r.MemberID, &guardianID, &r.Kind, &r.ParQJSON, &r.TrainingJSON,
			&r.MedicalJSON, &r.ReadinessJSON, &r.ParQFlagged, &r.SubmittedIP, &submittedAt); err != nil {
			return nil, err
		}
		r.GuardianID = guardianID.String
		r.SubmittedAt, _ = time.Parse(dateLayout, submittedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountSince returns the number of registrations submitted at or after since.
func (s *SQLiteStore) CountSince(ctx context.Context, since string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM registration WHERE submitted_at >= ?`, since).Scan(&n)
	return n, err
}
