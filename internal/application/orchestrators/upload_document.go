package orchestrators

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"dojo/internal/adapters/blob"
	"dojo/internal/domain/document"
)

// sniffLen is how many leading bytes decide the content type.
const sniffLen = 512

// UploadInput is one file submitted on a wizard page.
type UploadInput struct {
	Kind     document.Kind
	Filename string
	Size     int64
	Body     io.Reader
}

// DocumentStoreForUpload defines the store interface needed by UploadDocument.
type DocumentStoreForUpload interface {
	Save(ctx context.Context, d document.Document) error
}

// UploadDeps holds dependencies for UploadDocument.
type UploadDeps struct {
	DocumentStore DocumentStoreForUpload
	Blobs         blob.Store
	MaxBytes      int64
	KeyPrefix     string
	Now           func() time.Time
	GenerateID    func() string
}

// ExecuteUploadDocument stores an uploaded file and its metadata.
// The content type is sniffed from the bytes; the browser's claim is ignored.
// PRE: in.Body is positioned at the start of the file
// POST: the blob and its document row exist, or neither does
func ExecuteUploadDocument(ctx context.Context, in UploadInput, deps UploadDeps) (document.Document, error) {
	maxBytes := deps.MaxBytes
	if maxBytes <= 0 {
		maxBytes = document.DefaultMaxBytes
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(in.Body, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return document.Document{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	doc := document.Document{
		ID:          newID(deps.GenerateID),
		Kind:        in.Kind,
		Filename:    cleanFilename(in.Filename),
		ContentType: http.DetectContentType(head),
		Size:        in.Size,
		UploadedAt:  clock(deps.Now),
	}
	if doc.Size <= 0 {
		doc.Size = int64(n)
	}
	if err := doc.Validate(maxBytes); err != nil {
		return document.Document{}, invalid(err)
	}
	doc.BlobKey = document.KeyFor(deps.KeyPrefix, doc.Kind, doc.ID, doc.ContentType)

	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), in.Body), doc.Size)
	if err := deps.Blobs.Put(ctx, doc.BlobKey, doc.ContentType, body, doc.Size); err != nil {
		return document.Document{}, fmt.Errorf("store upload: %w", err)
	}
	if err := deps.DocumentStore.Save(ctx, doc); err != nil {
		if delErr := deps.Blobs.Delete(ctx, doc.BlobKey); delErr != nil {
			slog.Error("document_blob_orphaned", "key", doc.BlobKey, "error", delErr)
		}
		return document.Document{}, fmt.Errorf("save document: %w", err)
	}

	slog.Info("document_uploaded", "document_id", doc.ID, "kind", doc.Kind, "content_type", doc.ContentType, "size", doc.Size)
	return doc, nil
}

func cleanFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return "upload"
	}
	if len(name) > 200 {
		name = name[len(name)-200:]
	}
	return name
}
