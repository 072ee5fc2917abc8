// Package howl defines howls (posts) and their replies.
package howl

import (
	"time"

	"github.com/wolfchat/wolfchat/internal/app/domain/user"
)

// MaxContentLength bounds howl and reply text.
const MaxContentLength = 280

// Howl is a user-authored post.
type Howl struct {
	ID        string    `json:"_id"`
	AuthorID  string    `json:"-"`
	Content   string    `json:"content"`
	Replies   []Reply   `json:"replies"`
	CreatedAt time.Time `json:"createdAt"`
}

// Reply is a comment attached to a howl, individually attributable to its
// own author for deletion rights.
type Reply struct {
	ID        string    `json:"_id"`
	HowlID    string    `json:"-"`
	AuthorID  string    `json:"-"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Populated is a howl with its author and reply authors resolved for display.
type Populated struct {
	ID        string           `json:"_id"`
	Author    user.Author      `json:"author"`
	Content   string           `json:"content"`
	Replies   []PopulatedReply `json:"replies"`
	CreatedAt time.Time        `json:"createdAt"`
}

// PopulatedReply is a reply with its author resolved.
type PopulatedReply struct {
	ID        string      `json:"_id"`
	Author    user.Author `json:"author"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"createdAt"`
}
