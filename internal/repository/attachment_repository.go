package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/excellencepro/dossier-api/internal/models"
)

// AttachmentRepository persists attachment metadata. One table covers every
// domain; the domain column scopes rows to their request table.
type AttachmentRepository struct {
	db *sqlx.DB
}

// NewAttachmentRepository constructs the repository.
func NewAttachmentRepository(db *sqlx.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

const attachmentColumns = `id, domain, request_id, file_name, stored_path, mime_type, size_bytes, uploaded_by, created_at`

// Create inserts an attachment record.
func (r *AttachmentRepository) Create(ctx context.Context, a *models.Attachment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attachments (id, domain, request_id, file_name, stored_path, mime_type, size_bytes, uploaded_by, created_at)
	VALUES (:id, :domain, :request_id, :file_name, :stored_path, :mime_type, :size_bytes, :uploaded_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("create attachment: %w", err)
	}
	return nil
}

// GetByID returns one attachment.
func (r *AttachmentRepository) GetByID(ctx context.Context, id string) (*models.Attachment, error) {
	query := fmt.Sprintf("SELECT %s FROM attachments WHERE id = $1", attachmentColumns)
	var attachment models.Attachment
	if err := r.db.GetContext(ctx, &attachment, query, id); err != nil {
		return nil, err
	}
	return &attachment, nil
}

// ListByRequest returns the attachments of one request, oldest first.
func (r *AttachmentRepository) ListByRequest(ctx context.Context, domain models.DomainCode, requestID string) ([]models.Attachment, error) {
	query := fmt.Sprintf("SELECT %s FROM attachments WHERE domain = $1 AND request_id = $2 ORDER BY created_at ASC", attachmentColumns)
	var attachments []models.Attachment
	if err := r.db.SelectContext(ctx, &attachments, query, domain, requestID); err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	return attachments, nil
}

// Delete removes an attachment record and returns the rows affected.
func (r *AttachmentRepository) Delete(ctx context.Context, id string) (int64, error) {
	const query = `DELETE FROM attachments WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("delete attachment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete attachment rows: %w", err)
	}
	return rows, nil
}
