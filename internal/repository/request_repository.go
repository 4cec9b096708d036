package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/excellencepro/dossier-api/internal/models"
)

// Sentinel errors surfaced to the service layer.
var (
	// ErrStatusConflict signals the guarded status update matched no row:
	// either the request vanished or a concurrent transition won.
	ErrStatusConflict = errors.New("request status changed concurrently")

	// ErrPaymentExceedsTotal signals a completed payment would push the sum
	// of completed payments past the request total.
	ErrPaymentExceedsTotal = errors.New("completed payments exceed total amount")
)

const requestColumns = `id, reference, user_id, full_name, phone, email, category, subcategory, details,
       total_amount, advance_amount, amount_paid, balance_due, status, created_at, updated_at`

const historyColumns = `id, request_id, old_status, new_status, notes, actor_id, created_at`

const paymentColumns = `id, request_id, amount, payment_type, status, reference, method, created_at`

// RequestRepository persists the request/status/payment workflow for one
// domain. The same implementation serves every domain; the DomainConfig
// supplies the table names.
type RequestRepository struct {
	db  *sqlx.DB
	cfg *models.DomainConfig
}

// NewRequestRepository constructs the repository for a domain.
func NewRequestRepository(db *sqlx.DB, cfg *models.DomainConfig) *RequestRepository {
	return &RequestRepository{db: db, cfg: cfg}
}

// Domain returns the owning domain configuration.
func (r *RequestRepository) Domain() *models.DomainConfig {
	return r.cfg
}

// Create inserts a new request together with its initial status history row
// (old_status NULL) in a single transaction.
func (r *RequestRepository) Create(ctx context.Context, request *models.Request) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create request: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	insertRequest := fmt.Sprintf(`INSERT INTO %s
	(id, reference, user_id, full_name, phone, email, category, subcategory, details,
	 total_amount, advance_amount, amount_paid, balance_due, status, created_at, updated_at)
	VALUES (:id, :reference, :user_id, :full_name, :phone, :email, :category, :subcategory, :details,
	 :total_amount, :advance_amount, :amount_paid, :balance_due, :status, :created_at, :updated_at)`,
		r.cfg.RequestTable)
	if _, err := tx.NamedExecContext(ctx, insertRequest, request); err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	insertHistory := fmt.Sprintf(`INSERT INTO %s (id, request_id, old_status, new_status, notes, actor_id, created_at)
	VALUES ($1, $2, NULL, $3, NULL, NULL, $4)`, r.cfg.HistoryTable)
	if _, err := tx.ExecContext(ctx, insertHistory, uuid.NewString(), request.ID, request.Status, now); err != nil {
		return fmt.Errorf("create initial status history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.Request, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", requestColumns, r.cfg.RequestTable)
	var request models.Request
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// GetByReference fetches a request by its public reference number.
// Returns sql.ErrNoRows when nothing matches.
func (r *RequestRepository) GetByReference(ctx context.Context, reference string) (*models.Request, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE reference = $1", requestColumns, r.cfg.RequestTable)
	var request models.Request
	if err := r.db.GetContext(ctx, &request, query, reference); err != nil {
		return nil, err
	}
	return &request, nil
}

// History returns the full status history for a request, oldest first.
func (r *RequestRepository) History(ctx context.Context, requestID string) ([]models.StatusHistory, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE request_id = $1 ORDER BY created_at ASC",
		historyColumns, r.cfg.HistoryTable)
	var history []models.StatusHistory
	if err := r.db.SelectContext(ctx, &history, query, requestID); err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	return history, nil
}

// Payments returns all payment rows for a request, oldest first.
func (r *RequestRepository) Payments(ctx context.Context, requestID string) ([]models.Payment, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE request_id = $1 ORDER BY created_at ASC",
		paymentColumns, r.cfg.PaymentTable)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, requestID); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// GetPayment fetches one payment of a request.
func (r *RequestRepository) GetPayment(ctx context.Context, requestID, paymentID string) (*models.Payment, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1 AND request_id = $2",
		paymentColumns, r.cfg.PaymentTable)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, paymentID, requestID); err != nil {
		return nil, err
	}
	return &payment, nil
}

// List returns requests matching the filter (latest first) with a total count.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.Request, int, error) {
	base := fmt.Sprintf("FROM %s", r.cfg.RequestTable)
	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 4)

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		idx := len(args)
		conditions = append(conditions,
			fmt.Sprintf("(LOWER(reference) LIKE $%d OR LOWER(full_name) LIKE $%d OR LOWER(email) LIKE $%d)", idx, idx, idx))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s%s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		requestColumns, base, whereClause, size, offset)
	var requests []models.Request
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s%s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}
	return requests, total, nil
}

// TransitionParams groups the inputs of a status transition.
type TransitionParams struct {
	RequestID string
	From      models.RequestStatus
	To        models.RequestStatus
	Notes     *string
	ActorID   *string
}

// Transition updates the request status guarded by the expected previous
// status and appends exactly one history row, atomically. A concurrent
// transition that already moved the row away from From yields
// ErrStatusConflict and nothing is written.
func (r *RequestRepository) Transition(ctx context.Context, params TransitionParams) (*models.StatusHistory, error) {
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	update := fmt.Sprintf("UPDATE %s SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4",
		r.cfg.RequestTable)
	result, err := tx.ExecContext(ctx, update, params.To, now, params.RequestID, params.From)
	if err != nil {
		return nil, fmt.Errorf("update request status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check status update rows: %w", err)
	}
	if rows == 0 {
		return nil, ErrStatusConflict
	}

	entry := &models.StatusHistory{
		ID:        uuid.NewString(),
		RequestID: params.RequestID,
		OldStatus: &params.From,
		NewStatus: params.To,
		Notes:     params.Notes,
		ActorID:   params.ActorID,
		CreatedAt: now,
	}
	insert := fmt.Sprintf(`INSERT INTO %s (id, request_id, old_status, new_status, notes, actor_id, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`, r.cfg.HistoryTable)
	if _, err := tx.ExecContext(ctx, insert,
		entry.ID, entry.RequestID, entry.OldStatus, entry.NewStatus, entry.Notes, entry.ActorID, entry.CreatedAt); err != nil {
		return nil, fmt.Errorf("append status history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return entry, nil
}

// PaymentParams groups the inputs of a payment recording.
type PaymentParams struct {
	RequestID string
	Amount    int64
	Type      models.PaymentType
	Status    models.PaymentStatus
	Reference *string
	Method    *string
}

// RecordPayment appends one immutable payment row. For completed payments the
// request row is locked, the completed-sum cap is verified, and
// amount_paid/balance_due are updated in the same transaction so the balance
// invariant can never be observed broken.
func (r *RequestRepository) RecordPayment(ctx context.Context, params PaymentParams) (*models.Payment, error) {
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin record payment: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	lock := fmt.Sprintf("SELECT total_amount, amount_paid FROM %s WHERE id = $1 FOR UPDATE", r.cfg.RequestTable)
	var amounts struct {
		TotalAmount int64 `db:"total_amount"`
		AmountPaid  int64 `db:"amount_paid"`
	}
	if err := tx.GetContext(ctx, &amounts, lock, params.RequestID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("lock request row: %w", err)
	}

	if params.Status == models.PaymentStatusCompleted {
		if amounts.AmountPaid+params.Amount > amounts.TotalAmount {
			return nil, ErrPaymentExceedsTotal
		}
	}

	payment := &models.Payment{
		ID:        uuid.NewString(),
		RequestID: params.RequestID,
		Amount:    params.Amount,
		Type:      params.Type,
		Status:    params.Status,
		Reference: params.Reference,
		Method:    params.Method,
		CreatedAt: now,
	}
	insert := fmt.Sprintf(`INSERT INTO %s (id, request_id, amount, payment_type, status, reference, method, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, r.cfg.PaymentTable)
	if _, err := tx.ExecContext(ctx, insert,
		payment.ID, payment.RequestID, payment.Amount, payment.Type, payment.Status,
		payment.Reference, payment.Method, payment.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}

	if params.Status == models.PaymentStatusCompleted {
		update := fmt.Sprintf(`UPDATE %s SET amount_paid = amount_paid + $1,
	balance_due = total_amount - (amount_paid + $1), updated_at = $2 WHERE id = $3`, r.cfg.RequestTable)
		if _, err := tx.ExecContext(ctx, update, params.Amount, now, params.RequestID); err != nil {
			return nil, fmt.Errorf("update request balance: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit record payment: %w", err)
	}
	return payment, nil
}
