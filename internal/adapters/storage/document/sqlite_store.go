package document

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"dojo/internal/adapters/storage"
	domain "dojo/internal/domain/document"
)

const dateLayout = "2006-01-02T15:04:05.999999999Z07:00"

const documentColumns = `id, member_id, kind, blob_key, filename, content_type, size, uploaded_at`

// ErrNotFound is returned when no document has the requested ID.
var ErrNotFound = errors.New("document not found")

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new document store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save inserts or updates document metadata.
// PRE: d has been validated
func (s *SQLiteStore) Save(ctx context.Context, d domain.Document) error {
	var memberID any
	if d.MemberID != "" {
		memberID = d.MemberID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO document (`+documentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET member_id=excluded.member_id`,
		d.ID, memberID, string(d.Kind), d.BlobKey, d.Filename, d.ContentType, d.Size,
		d.UploadedAt.UTC().Format(dateLayout))
	return err
}

// GetByID retrieves document metadata by ID.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM document WHERE id = ?`, id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return d, ErrNotFound
	}
	return d, err
}

// LinkToMember sets member_id on the given documents.
// PRE: memberID is non-empty
func (s *SQLiteStore) LinkToMember(ctx context.Context, memberID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, memberID)
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	_, err := s.db.ExecContext(ctx,
		`UPDATE document SET member_id = ? WHERE id IN (`+placeholders+`)`, args...)
	return err
}

// ListByMember returns a member's documents, oldest first.
func (s *SQLiteStore) ListByMember(ctx context.Context, memberID string) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM document WHERE member_id = ? ORDER BY uploaded_at ASC`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (domain.Document, error) {
	var d domain.Document
	var memberID sql.NullString
	var kind, uploadedAt string
	if err := row.Scan(&d.ID, &memberID, &kind, &d.BlobKey, &d.Filename, &d.ContentType, &d.Size, &uploadedAt); err != nil {
		return domain.Document{}, err
	}
	d.MemberID = memberID.String
	d.Kind = domain.Kind(kind)
	d.UploadedAt, _ = time.Parse(dateLayout, uploadedAt)
	return d, nil
}
