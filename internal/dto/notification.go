package dto

// CreateNotificationRequest is the internal payload queued by services when a
// user-visible event occurs.
type CreateNotificationRequest struct {
	UserID           string  `json:"user_id" validate:"required"`
	Title            string  `json:"title" validate:"required"`
	Body             string  `json:"body" validate:"required"`
	Type             string  `json:"type" validate:"required"`
	Link             *string `json:"link"`
	RequestReference *string `json:"request_reference"`
}

// NotificationQuery mirrors listing filters for a user's notifications.
type NotificationQuery struct {
	UnreadOnly bool
	Page       int
	PageSize   int
}
