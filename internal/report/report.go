// Package report provides the moderation queue: user-filed reports against
// other users, triaged by moderators. The queue is deliberately looser than
// the conversation state machine — a moderator may move a report through
// REVIEWING, RESOLVED, and DISMISSED in any order.
package report

import "time"

// Reason is the reporter's accusation category.
type Reason string

const (
	ReasonHarassment           Reason = "HARASSMENT"
	ReasonSpam                 Reason = "SPAM"
	ReasonInappropriateContent Reason = "INAPPROPRIATE_CONTENT"
	ReasonScam                 Reason = "SCAM"
	ReasonFakeItem             Reason = "FAKE_ITEM"
	ReasonOffensiveLanguage    Reason = "OFFENSIVE_LANGUAGE"
	ReasonOther                Reason = "OTHER"
)

// validReasons matches the CHECK constraint on the reports table.
var validReasons = map[Reason]bool{
	ReasonHarassment:           true,
	ReasonSpam:                 true,
	ReasonInappropriateContent: true,
	ReasonScam:                 true,
	ReasonFakeItem:             true,
	ReasonOffensiveLanguage:    true,
	ReasonOther:                true,
}

// Status is the triage state of a report.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusReviewing Status = "REVIEWING"
	StatusResolved  Status = "RESOLVED"
	StatusDismissed Status = "DISMISSED"
)

var validStatuses = map[Status]bool{
	StatusPending:   true,
	StatusReviewing: true,
	StatusResolved:  true,
	StatusDismissed: true,
}

// Report is one accusation by reporterID against reportedUserID, optionally
// tagged with a conversation for context.
type Report struct {
	ID             string     `json:"id"`
	ReporterID     string     `json:"reporterId"`
	ReportedUserID string     `json:"reportedUserId"`
	Reason         Reason     `json:"reason"`
	Description    string     `json:"description,omitempty"`
	ConversationID string     `json:"conversationId,omitempty"`
	Status         Status     `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	ReviewedAt     *time.Time `json:"reviewedAt,omitempty"`
	ReviewedByID   string     `json:"reviewedById,omitempty"`
	AdminNotes     string     `json:"adminNotes,omitempty"`
}
