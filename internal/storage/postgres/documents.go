package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/docsync/agent/internal/docsync"
)

const documentColumns = `id, job_id, filename, source_url, file_size,
accepted, reason, document_type, uploaded, remote_id, created_at`

// CreateDocument inserts a classified document row.
func (s *Store) CreateDocument(ctx context.Context, doc docsync.Document) error {
	query := `
INSERT INTO documents (` + documentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := s.db.Exec(ctx, query,
		doc.ID,
		doc.JobID,
		doc.Filename,
		doc.SourceURL,
		doc.FileSize,
		doc.Accepted,
		doc.Reason,
		doc.DocumentType,
		doc.Uploaded,
		doc.RemoteID,
		doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// ListDocuments returns a job's documents in creation order.
func (s *Store) ListDocuments(ctx context.Context, jobID string) ([]docsync.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE job_id = $1 ORDER BY created_at, id`
	return s.queryDocuments(ctx, query, jobID)
}

// ListPendingUploads returns a job's accepted, not-yet-uploaded documents in
// creation order.
func (s *Store) ListPendingUploads(ctx context.Context, jobID string) ([]docsync.Document, error) {
	query := `SELECT ` + documentColumns + `
FROM documents
WHERE job_id = $1 AND accepted AND NOT uploaded
ORDER BY created_at, id`
	return s.queryDocuments(ctx, query, jobID)
}

// MarkUploaded records a successful upload.
func (s *Store) MarkUploaded(ctx context.Context, docID, remoteID string, fileSize int64) error {
	query := `UPDATE documents SET uploaded = TRUE, remote_id = $2, file_size = $3 WHERE id = $1`
	tag, err := s.db.Exec(ctx, query, docID, remoteID, fileSize)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return docsync.ErrNotFound
	}
	return nil
}

func (s *Store) queryDocuments(ctx context.Context, query string, args ...any) ([]docsync.Document, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	defer rows.Close()

	var out []docsync.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func scanDocument(row pgx.Row) (docsync.Document, error) {
	var doc docsync.Document
	err := row.Scan(
		&doc.ID,
		&doc.JobID,
		&doc.Filename,
		&doc.SourceURL,
		&doc.FileSize,
		&doc.Accepted,
		&doc.Reason,
		&doc.DocumentType,
		&doc.Uploaded,
		&doc.RemoteID,
		&doc.CreatedAt,
	)
	return doc, err
}
