// Package domain contains core concepts of the chat system.
// This file defines User identities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// User is an identity with a unique display name.
// The identity is immutable once created.
type User struct {
	ID        int64
	Username  string
	Password  string
	Email     string
	CreatedAt time.Time
}
