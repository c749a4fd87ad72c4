package ws

import (
	"encoding/json"
	"fmt"
)

// Client -> server frame types. Everything the client sends is ephemeral:
// durable operations (sending messages, approving requests) go through the
// REST API, and a reconnecting client re-syncs from there.
const (
	TypeSubscribe = "subscribe"
	TypeTyping    = "typing"
	TypePing      = "ping"
)

// Server -> client frame types emitted by the gateway itself. Broadcast
// envelopes (MESSAGE, NEW_REQUEST, ...) are forwarded verbatim.
const (
	TypeSubscribed = "subscribed"
	TypeError      = "error"
	TypePong       = "pong"
)

// clientFrame is the single decode target for inbound frames; the type
// discriminator selects which fields matter.
type clientFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

func parseClientFrame(data []byte) (*clientFrame, error) {
	var f clientFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ws: malformed frame: %w", err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("ws: frame missing type")
	}
	return &f, nil
}

type serverFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId,omitempty"`
	Code           string `json:"code,omitempty"`
	Message        string `json:"message,omitempty"`
}

func marshalServerFrame(f serverFrame) []byte {
	data, _ := json.Marshal(f)
	return data
}
