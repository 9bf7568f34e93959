package event

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dojo/internal/adapters/storage"
	domain "dojo/internal/domain/event"
)

const dateLayout = "2006-01-02T15:04:05.999999999Z07:00"

const eventColumns = `id, title, description, location, start_date, end_date, public, fee_cents, created_by, created_at`

// ErrNotFound is returned when no event has the requested ID.
var ErrNotFound = errors.New("event not found")

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new SQLiteStore.
// PRE: db is a valid, open database connection with migrations applied
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save inserts or updates an event.
// PRE: e is a valid Event (Validate() returns nil)
// POST: event is persisted; created_by and created_at never change
func (s *SQLiteStore) Save(ctx context.Context, e domain.Event) error {
	var endDate any
	if !e.EndDate.IsZero() {
		endDate = e.EndDate.UTC().Format(dateLayout)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO event (`+eventColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title=excluded.title, description=excluded.description, location=excluded.location,
		   start_date=excluded.start_date, end_date=excluded.end_date,
		   public=excluded.public, fee_cents=excluded.fee_cents`,
		e.ID, e.Title, e.Description, e.Location,
		e.StartDate.UTC().Format(dateLayout), endDate, e.Public, e.FeeCents,
		e.CreatedBy, e.CreatedAt.UTC().Format(dateLayout),
	)
	return err
}

// GetByID retrieves an event by ID.
// PRE: id is non-empty
// POST: returns the event or ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM event WHERE id = ?`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return e, ErrNotFound
	}
	return e, err
}

// List returns events that have not ended before from.
// POST: sorted by start_date ascending
func (s *SQLiteStore) List(ctx context.Context, from time.Time, publicOnly bool) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM event WHERE COALESCE(end_date, start_date) >= ?`
	if publicOnly {
		query += ` AND public = 1`
	}
	query += ` ORDER BY start_date ASC`

	rows, err := s.db.QueryContext(ctx, query, from.UTC().Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Delete removes an event by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM event WHERE id = ?`, id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (domain.Event, error) {
	var e domain.Event
	var start, created string
	var end sql.NullString
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &start, &end,
		&e.Public, &e.FeeCents, &e.CreatedBy, &created); err != nil {
		return domain.Event{}, err
	}
	e.StartDate, _ = time.Parse(dateLayout, start)
	if end.Valid && end.String != "" {
		e.EndDate, _ = time.Parse(dateLayout, end.String)
	}
	e.CreatedAt, _ = time.Parse(dateLayout, created)
	return e, nil
}
