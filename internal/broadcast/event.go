package broadcast

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event kinds carried on the real-time channels.
const (
	EventNewRequest   = "NEW_REQUEST"
	EventApproved     = "APPROVED"
	EventRejected     = "REJECTED"
	EventMessage      = "MESSAGE"
	EventTyping       = "TYPING"
	EventOnlineStatus = "ONLINE_STATUS"
)

// TypingEvent is the ephemeral typing-indicator payload. It carries no
// persisted state and may be dropped silently.
type TypingEvent struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
}

// OnlineStatusEvent announces a user coming online or going offline.
type OnlineStatusEvent struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

// MarshalEvent flattens the payload's JSON fields into a single envelope
// with the event type and a millisecond timestamp:
//
//	{"type": "...", <payload fields>, "timestamp": 1712345678901}
func MarshalEvent(eventType string, payload interface{}) ([]byte, error) {
	envelope := map[string]interface{}{}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("broadcast: marshal payload: %w", err)
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, fmt.Errorf("broadcast: payload must be a JSON object: %w", err)
		}
	}

	envelope["type"] = eventType
	envelope["timestamp"] = time.Now().UnixMilli()

	return json.Marshal(envelope)
}
