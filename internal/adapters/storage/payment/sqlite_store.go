package payment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dojo/internal/adapters/storage"
	domain "dojo/internal/domain/payment"
)

const dateLayout = "2006-01-02T15:04:05.999999999Z07:00"

const paymentColumns = `id, member_id, type, amount_cents, currency, reference, status, link_url, gateway_ref, created_at, completed_at`

// ErrNotFound is returned when no payment has the requested ID.
var ErrNotFound = errors.New("payment not found")

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new payment store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save inserts or updates a payment.
// PRE: p has been validated
// POST: payment is persisted; amount and type never change after insert
func (s *SQLiteStore) Save(ctx context.Context, p domain.Payment) error {
	var completedAt any
	if !p.CompletedAt.IsZero() {
		completedAt = p.CompletedAt.UTC().Format(dateLayout)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payment (`+paymentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status=excluded.status, link_url=excluded.link_url,
		   gateway_ref=excluded.gateway_ref, completed_at=excluded.completed_at`,
		p.ID, p.MemberID, string(p.Type), p.AmountCents, p.Currency, p.Reference, p.Status,
		p.LinkURL, p.GatewayRef, p.CreatedAt.UTC().Format(dateLayout), completedAt)
	return err
}

// GetByID retrieves a payment by ID.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Payment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payment WHERE id = ?`, id)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

// Complete records the outcome of a pending payment.
// INVARIANT: a payment leaves pending at most once, even under concurrent returns
func (s *SQLiteStore) Complete(ctx context.Context, id, outcome, gatewayRef string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payment SET status = ?, gateway_ref = COALESCE(NULLIF(?, ''), gateway_ref), completed_at = ?
		 WHERE id = ? AND status = ?`,
		outcome, gatewayRef, now.UTC().Format(dateLayout), id, domain.StatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ListByMember returns a member's payments, newest first.
func (s *SQLiteStore) ListByMember(ctx context.Context, memberID string) ([]domain.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payment WHERE member_id = ? ORDER BY created_at DESC`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SumByStatus returns counts and totals per status.
func (s *SQLiteStore) SumByStatus(ctx context.Context) (map[string]Totals, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*), COALESCE(SUM(amount_cents), 0) FROM payment GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Totals)
	for rows.Next() {
		var status string
		var t Totals
		if err := rows.Scan(&status, &t.Count, &t.Cents); err != nil {
			return nil, err
		}
		out[status] = t
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPayment(row scanner) (domain.Payment, error) {
	var p domain.Payment
	var typ, createdAt string
	var completedAt sql.NullString
	if err := row.Scan(&p.ID, &p.MemberID, &typ, &p.AmountCents, &p.Currency, &p.Reference, &p.Status,
		&p.LinkURL, &p.GatewayRef, &createdAt, &completedAt); err != nil {
		return domain.Payment{}, err
	}
	p.Type = domain.Type(typ)
	p.CreatedAt, _ = time.Parse(dateLayout, createdAt)
	if completedAt.Valid {
		p.CompletedAt, _ = time.Parse(dateLayout, completedAt.String)
	}
	return p, nil
}
