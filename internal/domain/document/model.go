package document

import (
	"errors"
	"path"
	"strings"
	"time"
)

// Kind identifies what an uploaded file is for.
type Kind string

const (
	KindClearanceLetter Kind = "clearance_letter"
	KindStudentPhoto    Kind = "student_photo"
	KindStudentID       Kind = "student_id"
	KindParentIDFront   Kind = "parent_id_front"
	KindParentIDBack    Kind = "parent_id_back"
	KindChildPhoto      Kind = "child_photo"
)

// DefaultMaxBytes is the upload size limit when none is configured.
const DefaultMaxBytes = 5 << 20

// allowedTypes maps accepted content types to the extension used for blob keys.
var allowedTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// Domain errors
var (
	ErrUnknownKind     = errors.New("unknown document kind")
	ErrEmptyFile       = errors.New("uploaded file is empty")
	ErrTooLarge        = errors.New("uploaded file is too large")
	ErrUnsupportedType = errors.New("only JPEG, PNG, WebP images or PDF files are accepted")
)

// Document is the metadata of one uploaded file. The bytes live in a blob store under BlobKey.
type Document struct {
	ID          string    `json:"id"`
	MemberID    string    `json:"member_id,omitempty"`
	Kind        Kind      `json:"kind"`
	BlobKey     string    `json:"blob_key"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// ValidKind reports whether k is a known document kind.
func ValidKind(k Kind) bool {
	switch k {
	case KindClearanceLetter, KindStudentPhoto, KindStudentID, KindParentIDFront, KindParentIDBack, KindChildPhoto:
		return true
	}
	return false
}

// Validate checks the upload against kind, size and type rules.
// PRE: maxBytes > 0
// POST: Returns nil if the file may be stored
func (d *Document) Validate(maxBytes int64) error {
	if !ValidKind(d.Kind) {
		return ErrUnknownKind
	}
	if d.Size <= 0 {
		return ErrEmptyFile
	}
	if d.Size > maxBytes {
		return ErrTooLarge
	}
	if _, ok := allowedTypes[normalizeType(d.ContentType)]; !ok {
		return ErrUnsupportedType
	}
	return nil
}

// KeyFor builds the blob key for a document: <prefix>/<kind>/<id><ext>.
func KeyFor(prefix string, kind Kind, id, contentType string) string {
	return path.Join(prefix, string(kind), id+allowedTypes[normalizeType(contentType)])
}

func normalizeType(ct string) string {
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
