package models

import "time"

// Request is a persisted service-order dossier. One table per domain shares
// this shape; the owning DomainConfig names the table.
type Request struct {
	ID          string  `db:"id" json:"id"`
	Reference   string  `db:"reference" json:"reference"`
	UserID      *string `db:"user_id" json:"user_id,omitempty"`
	FullName    string  `db:"full_name" json:"full_name"`
	Phone       string  `db:"phone" json:"phone"`
	Email       string  `db:"email" json:"email"`
	Category    string  `db:"category" json:"category"`
	Subcategory string  `db:"subcategory" json:"subcategory,omitempty"`
	Details     []byte  `db:"details" json:"details,omitempty"`

	TotalAmount   int64 `db:"total_amount" json:"total_amount"`
	AdvanceAmount int64 `db:"advance_amount" json:"advance_amount"`
	AmountPaid    int64 `db:"amount_paid" json:"amount_paid"`
	BalanceDue    int64 `db:"balance_due" json:"balance_due"`

	Status    RequestStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// StatusHistory is one append-only audit entry of a status change.
// OldStatus is nil only on the row written at creation time.
type StatusHistory struct {
	ID        string         `db:"id" json:"id"`
	RequestID string         `db:"request_id" json:"request_id"`
	OldStatus *RequestStatus `db:"old_status" json:"old_status,omitempty"`
	NewStatus RequestStatus  `db:"new_status" json:"new_status"`
	Notes     *string        `db:"notes" json:"notes,omitempty"`
	ActorID   *string        `db:"actor_id" json:"actor_id,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// PaymentStatus reflects the gateway outcome for a recorded payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment is an immutable, append-only payment record against a request.
type Payment struct {
	ID        string        `db:"id" json:"id"`
	RequestID string        `db:"request_id" json:"request_id"`
	Amount    int64         `db:"amount" json:"amount"`
	Type      PaymentType   `db:"payment_type" json:"payment_type"`
	Status    PaymentStatus `db:"status" json:"status"`
	Reference *string       `db:"reference" json:"reference,omitempty"`
	Method    *string       `db:"method" json:"method,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}

// RequestFilter constrains administrative listing queries.
type RequestFilter struct {
	Statuses []RequestStatus
	Search   string
	Page     int
	PageSize int
}
