package models

import "time"

// Attachment references a supporting document stored on local storage for a
// request. The stored path is never exposed directly; downloads go through
// signed URLs.
type Attachment struct {
	ID         string     `db:"id" json:"id"`
	Domain     DomainCode `db:"domain" json:"domain"`
	RequestID  string     `db:"request_id" json:"request_id"`
	FileName   string     `db:"file_name" json:"file_name"`
	StoredPath string     `db:"stored_path" json:"-"`
	MimeType   string     `db:"mime_type" json:"mime_type"`
	SizeBytes  int64      `db:"size_bytes" json:"size_bytes"`
	UploadedBy *string    `db:"uploaded_by" json:"uploaded_by,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
