// Package conversation owns the contact-request state machine between a
// requester and an item's owner. A conversation is created PENDING by the
// requester, moved to APPROVED or REJECTED by the owner, and CLOSED by
// either participant. REJECTED and CLOSED are terminal.
package conversation

import "time"

// Status is the conversation lifecycle state.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusClosed   Status = "CLOSED"
	StatusRejected Status = "REJECTED"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusClosed, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are permitted from s.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusRejected
}

// MaxInitialMessageChars bounds the optional message attached to a contact
// request.
const MaxInitialMessageChars = 500

// Conversation is one gated channel between a requester and an owner about
// one item. At most one conversation with status PENDING or APPROVED exists
// per (item, requester) pair.
type Conversation struct {
	ID             string     `json:"id"`
	ItemID         string     `json:"itemId"`
	ItemTitle      string     `json:"itemTitle,omitempty"`
	RequesterID    string     `json:"requesterId"`
	OwnerID        string     `json:"ownerId"`
	Status         Status     `json:"status"`
	InitialMessage string     `json:"initialMessage,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	ApprovedAt     *time.Time `json:"approvedAt,omitempty"`
}

// IsParticipant reports whether userID is the requester or the owner.
func (c *Conversation) IsParticipant(userID string) bool {
	return userID == c.RequesterID || userID == c.OwnerID
}

// Peer returns the other participant's id, or "" if userID is not a
// participant.
func (c *Conversation) Peer(userID string) string {
	switch userID {
	case c.RequesterID:
		return c.OwnerID
	case c.OwnerID:
		return c.RequesterID
	}
	return ""
}
