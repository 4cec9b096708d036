package dto

import (
	"encoding/json"

	"github.com/excellencepro/dossier-api/internal/models"
)

// SubmitRequest is the public payload opening a new dossier in a domain.
type SubmitRequest struct {
	FullName    string          `json:"full_name" validate:"required"`
	Phone       string          `json:"phone" validate:"required"`
	Email       string          `json:"email" validate:"required,email"`
	Category    string          `json:"category" validate:"required"`
	Subcategory string          `json:"subcategory"`
	Details     json.RawMessage `json:"details"`
}

// SubmitResponse returns the assigned reference and pricing to the caller.
type SubmitResponse struct {
	ID            string               `json:"id"`
	Reference     string               `json:"reference"`
	Status        models.RequestStatus `json:"status"`
	TotalAmount   int64                `json:"total_amount"`
	AdvanceAmount int64                `json:"advance_amount"`
	BalanceDue    int64                `json:"balance_due"`
}

// TransitionRequest is the administrative payload moving a request along its
// workflow. Force records the transition even when it is not a regular move.
type TransitionRequest struct {
	Status string  `json:"status" validate:"required"`
	Notes  *string `json:"notes"`
	Force  bool    `json:"force"`
}

// RecordPaymentRequest appends a payment against a request.
type RecordPaymentRequest struct {
	Amount    int64   `json:"amount" validate:"required,gt=0"`
	Type      string  `json:"payment_type" validate:"required"`
	Status    string  `json:"status" validate:"omitempty,oneof=pending completed failed"`
	Reference *string `json:"reference"`
	Method    *string `json:"method"`
}

// RequestQuery mirrors the supported listing filters.
type RequestQuery struct {
	Statuses []string
	Search   string
	Page     int
	PageSize int
}

// TrackingStep is one public history entry, stripped of internal actor data.
type TrackingStep struct {
	Status    models.RequestStatus `json:"status"`
	Notes     *string              `json:"notes,omitempty"`
	Timestamp string               `json:"timestamp"`
}

// TrackingResult is the public tracking answer. Found is false when no
// request carries the reference; an unknown reference is not an error.
type TrackingResult struct {
	Found      bool                 `json:"found"`
	Reference  string               `json:"reference,omitempty"`
	Domain     models.DomainCode    `json:"domain,omitempty"`
	Status     models.RequestStatus `json:"status,omitempty"`
	FullName   string               `json:"full_name,omitempty"`
	Category   string               `json:"category,omitempty"`
	AmountPaid int64                `json:"amount_paid,omitempty"`
	BalanceDue int64                `json:"balance_due,omitempty"`
	History    []TrackingStep       `json:"history,omitempty"`
}

// RequestDetail bundles a request with its history and payments for the
// administrative detail endpoint.
type RequestDetail struct {
	Request  *models.Request        `json:"request"`
	History  []models.StatusHistory `json:"history"`
	Payments []models.Payment       `json:"payments"`
}
