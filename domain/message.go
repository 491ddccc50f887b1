// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat event. SentAt is assigned by the
// server at receipt, never taken from the client.
type Message struct {
	ID       uuid.UUID
	ChatID   ChatID
	AuthorID int64
	Content  string
	SentAt   time.Time
}
