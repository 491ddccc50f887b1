package domain

import "time"

// Membership is a per-user participation record in a chat.
// Composite identity is (ChatID, UserID); at most one row per pair.
// LastWatchedAt is nil until the first read-acknowledgment.
type Membership struct {
	ChatID        ChatID
	UserID        int64
	IsModerator   bool
	JoinedAt      time.Time
	LastWatchedAt *time.Time
}
