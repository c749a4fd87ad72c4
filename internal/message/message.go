// Package message provides the append-only per-conversation message log
// with read tracking. Messages are immutable once created; only the read
// state mutates, and nothing is ever deleted.
package message

import "time"

// Kind distinguishes participant text from registry transition markers.
type Kind string

const (
	KindText   Kind = "TEXT"
	KindSystem Kind = "SYSTEM"
)

// MaxContentChars bounds message content length.
const MaxContentChars = 2000

// Message is one unit of communication inside a conversation. For SYSTEM
// messages the sender id is advisory: it records the actor who triggered
// the transition rather than a participant speaking.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	SenderID       string     `json:"senderId"`
	Content        string     `json:"content"`
	Kind           Kind       `json:"kind"`
	SentAt         time.Time  `json:"sentAt"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
	IsRead         bool       `json:"isRead"`
}
