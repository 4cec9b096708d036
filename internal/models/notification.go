package models

import "time"

// NotificationType tags the origin of a notification.
type NotificationType string

const (
	NotificationTypeStatus  NotificationType = "STATUS_UPDATE"
	NotificationTypePayment NotificationType = "PAYMENT"
	NotificationTypeMessage NotificationType = "MESSAGE"
)

// Notification is a user-targeted message. Created by administrators or by
// workflow triggers; the owner may only flip Read. Never deleted.
type Notification struct {
	ID               string           `db:"id" json:"id"`
	UserID           string           `db:"user_id" json:"user_id"`
	Title            string           `db:"title" json:"title"`
	Body             string           `db:"body" json:"body"`
	Type             NotificationType `db:"type" json:"type"`
	Link             *string          `db:"link" json:"link,omitempty"`
	RequestReference *string          `db:"request_reference" json:"request_reference,omitempty"`
	Read             bool             `db:"read" json:"read"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter constrains notification listing.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Page       int
	PageSize   int
}
