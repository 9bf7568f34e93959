package member

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"dojo/internal/adapters/storage"
	domain "dojo/internal/domain/member"
)

const dateLayout = "2006-01-02T15:04:05.999999999Z07:00"

const memberColumns = `id, membership_number, first_name, last_name, id_type, id_number, date_of_birth,
	email, phone, address, program, status, guardian_id, account_id, created_at, updated_at`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new member store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a Member by its ID.
// PRE: id is non-empty
// POST: Returns the entity or ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Member, error) {
	return s.getOne(ctx, "id", id)
}

// GetByIDNumber retrieves a Member by identity number.
// POST: Returns the entity or ErrNotFound
func (s *SQLiteStore) GetByIDNumber(ctx context.Context, idNumber string) (domain.Member, error) {
	return s.getOne(ctx, "id_number", idNumber)
}

// GetByMembershipNumber retrieves a Member by membership number.
// POST: Returns the entity or ErrNotFound
func (s *SQLiteStore) GetByMembershipNumber(ctx context.Context, number string) (domain.Member, error) {
	return s.getOne(ctx, "membership_number", number)
}

func (s *SQLiteStore) getOne(ctx context.Context, column, value string) (domain.Member, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+memberColumns+" FROM member WHERE "+column+" = ?", value)
	m, err := scanMember(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Member{}, ErrNotFound
	}
	return m, err
}

// NumberTaken reports whether a membership number is already assigned.
func (s *SQLiteStore) NumberTaken(ctx context.Context, number string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM member WHERE membership_number = ?", number).Scan(&n)
	return n > 0, err
}

// Save persists a Member to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, m domain.Member) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO member (`+memberColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			membership_number=excluded.membership_number, first_name=excluded.first_name,
			last_name=excluded.last_name, id_type=excluded.id_type, id_number=excluded.id_number,
			date_of_birth=excluded.date_of_birth, email=excluded.email, phone=excluded.phone,
			address=excluded.address, program=excluded.program, status=excluded.status,
			guardian_id=excluded.guardian_id, account_id=excluded.account_id,
			updated_at=excluded.updated_at`,
		m.ID, m.MembershipNumber, m.FirstName, m.LastName, m.IDType, m.IDNumber,
		m.DateOfBirth.Format(dateLayout), m.Email, m.Phone, m.Address, m.Program, m.Status,
		nullable(m.GuardianID), nullable(m.AccountID),
		m.CreatedAt.Format(dateLayout), m.UpdatedAt.Format(dateLayout))
	return err
}

// Delete removes a Member from the database.
// PRE: id is non-empty
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM member WHERE id = ?", id)
	return err
}

// listWhereClause builds the WHERE clause and args for List/Count queries.
func listWhereClause(filter ListFilter) (string, []any) {
	where := " WHERE 1=1"
	var args []any

	if filter.Program != "" {
		where += " AND program = ?"
		args = append(args, filter.Program)
	}
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		where += " AND (first_name || ' ' || last_name LIKE ? OR email LIKE ? OR membership_number LIKE ?)"
		term := "%" + strings.TrimSpace(filter.Search) + "%"
		args = append(args, term, term, term)
	}
	return where, args
}

// sortClause returns a safe ORDER BY clause. Only allowed columns are accepted.
func sortClause(filter ListFilter) string {
	allowed := map[string]string{
		"name": "last_name, first_name", "number": "membership_number",
		"program": "program", "status": "status", "joined": "created_at",
	}
	col, ok := allowed[filter.Sort]
	if !ok {
		return " ORDER BY last_name, first_name ASC"
	}
	dir := "ASC"
	if filter.Dir == "desc" {
		dir = "DESC"
	}
	return " ORDER BY " + col + " " + dir
}

// Count returns the total number of members matching the filter.
// POST: Returns count >= 0
func (s *SQLiteStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	where, args := listWhereClause(filter)
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM member"+where, args...).Scan(&count)
	return count, err
}

// List retrieves Members matching the filter.
// POST: Returns matching entities in the requested order
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.Member, error) {
	where, args := listWhereClause(filter)
	query := "SELECT " + memberColumns + " FROM member" + where + sortClause(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)
	return s.query(ctx, query, args...)
}

// ListByGuardian returns the members a guardian registered.
func (s *SQLiteStore) ListByGuardian(ctx context.Context, guardianID string) ([]domain.Member, error) {
	return s.query(ctx, "SELECT "+memberColumns+" FROM member WHERE guardian_id = ? ORDER BY created_at, membership_number", guardianID)
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]domain.Member, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Member
	for rows.Next() {
		m, err := scanMember(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

// SaveGuardian persists a Guardian.
// PRE: entity has been validated
func (s *SQLiteStore) SaveGuardian(ctx context.Context, g domain.Guardian) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO guardian
		(id, first_name, last_name, id_type, id_number, relationship, email, phone, address, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name=excluded.first_name, last_name=excluded.last_name, id_type=excluded.id_type,
			id_number=excluded.id_number, relationship=excluded.relationship, email=excluded.email,
			phone=excluded.phone, address=excluded.address`,
		g.ID, g.FirstName, g.LastName, g.IDType, g.IDNumber, g.Relationship, g.Email, g.Phone, g.Address,
		g.CreatedAt.Format(dateLayout))
	return err
}

// GetGuardian retrieves a Guardian by ID.
// POST: Returns the entity or ErrNotFound
func (s *SQLiteStore) GetGuardian(ctx context.Context, id string) (domain.Guardian, error) {
	var g domain.Guardian
	var createdAt string
	err := s.db.QueryRowContext(ctx, `SELECT id, first_name, last_name, id_type, id_number, relationship, email, phone, address, created_at
		FROM guardian WHERE id = ?`, id).Scan(
		&g.ID, &g.FirstName, &g.LastName, &g.IDType, &g.IDNumber, &g.Relationship, &g.Email, &g.Phone, &g.Address, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Guardian{}, ErrNotFound
	}
	if err != nil {
		return domain.Guardian{}, err
	}
	g.CreatedAt, _ = time.Parse(dateLayout, createdAt)
	return g, nil
}

// scanMember extracts a Member from a row scanner function.
func scanMember(scan func(dest ...any) error) (domain.Member, error) {
	var m domain.Member
	var dob, createdAt, updatedAt string
	var guardianID, accountID sql.NullString
	err := scan(&m.ID, &m.MembershipNumber, &m.FirstName, &m.LastName, &m.IDType, &m.IDNumber, &dob,
		&m.Email, &m.Phone, &m.Address, &m.Program, &m.Status, &guardianID, &accountID, &createdAt, &updatedAt)
	if err != nil {
		return domain.Member{}, err
	}
	m.GuardianID = guardianID.String
	m.AccountID = accountID.String
	m.DateOfBirth, _ = time.Parse(dateLayout, dob)
	m.CreatedAt, _ = time.Parse(dateLayout, createdAt)
	m.UpdatedAt, _ = time.Parse(dateLayout, updatedAt)
	return m, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
