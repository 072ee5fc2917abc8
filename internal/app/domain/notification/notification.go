// Package notification defines per-user unread messages.
package notification

import "time"

// UnreadLimit caps how many notifications a single fetch returns.
const UnreadLimit = 10

// Notification is a message delivered to a user, created as a side effect of
// a reply on one of their howls.
type Notification struct {
	ID        string    `json:"_id"`
	UserID    string    `json:"userId"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}
