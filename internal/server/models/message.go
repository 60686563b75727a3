package models

import "time"

// Message is an immutable chat log record.
type Message struct {
	ID          int64
	SenderID    string
	RecipientID string
	Content     string
	CreatedAt   time.Time
}
