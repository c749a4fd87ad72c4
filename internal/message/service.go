package message

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/foundly/contact-service/internal/apperr"
	"github.com/foundly/contact-service/internal/broadcast"
	"github.com/foundly/contact-service/internal/conversation"
	"github.com/foundly/contact-service/internal/metrics"
)

// BlockChecker is the symmetric block gate consulted on every send:
// blocking after approval must still silence messaging.
type BlockChecker interface {
	IsBlockedEitherDirection(ctx context.Context, a, b string) (bool, error)
}

// Service authorizes and persists messages. Authorization comes from the
// conversation store (the conversation must exist, be APPROVED, and include
// the sender); the broadcaster mirrors accepted messages after the durable
// commit, never before.
type Service struct {
	store  Store
	convs  conversation.Store
	blocks BlockChecker
	bc     broadcast.Broadcaster
}

// NewService wires a message service.
func NewService(store Store, convs conversation.Store, blocks BlockChecker, bc broadcast.Broadcaster) *Service {
	return &Service{store: store, convs: convs, blocks: blocks, bc: bc}
}

// Send appends a TEXT message from senderID to the conversation.
func (s *Service) Send(ctx context.Context, conversationID, senderID, content string) (*Message, error) {
	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, apperr.NotFound("conversation %s not found", conversationID)
	}
	if conv.Status != conversation.StatusApproved {
		return nil, apperr.InvalidStateTransition("conversation is not approved for messaging")
	}
	if !conv.IsParticipant(senderID) {
		return nil, apperr.PermissionDenied("not a participant")
	}

	blocked, err := s.blocks.IsBlockedEitherDirection(ctx, conv.RequesterID, conv.OwnerID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, apperr.Blocked("messaging between these users is blocked")
	}

	if strings.TrimSpace(content) == "" {
		return nil, apperr.Validation("message content is blank")
	}
	if utf8.RuneCountInString(content) > MaxContentChars {
		return nil, apperr.Validation("message exceeds %d characters", MaxContentChars)
	}

	msg, err := s.append(ctx, conversationID, senderID, content, KindText)
	if err != nil {
		return nil, err
	}

	// Personal copy for the recipient's notification channel; the
	// conversation channel publish happens in append.
	s.bc.ToUser(conv.Peer(senderID), broadcast.EventMessage, msg)
	return msg, nil
}

// ListAndMarkRead returns the full message sequence of the conversation in
// ascending sent order and marks everything not sent by requestingUserID as
// read. Calling it again is a no-op for already-read messages.
func (s *Service) ListAndMarkRead(ctx context.Context, conversationID, requestingUserID string) ([]Message, error) {
	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, apperr.NotFound("conversation %s not found", conversationID)
	}
	if !conv.IsParticipant(requestingUserID) {
		return nil, apperr.PermissionDenied("not a participant")
	}

	return s.store.ListAndMarkRead(ctx, conversationID, requestingUserID)
}

// CountUnread returns the user's unread message count across APPROVED
// conversations. It reflects ListAndMarkRead side effects synchronously
// since both run against the same durable store.
func (s *Service) CountUnread(ctx context.Context, userID string) (int, error) {
	return s.store.CountUnread(ctx, userID)
}

// LogTransition appends a SYSTEM marker attributed to the actor who
// triggered the state transition. Called by the conversation registry.
func (s *Service) LogTransition(ctx context.Context, conversationID, actorID, content string) error {
	_, err := s.append(ctx, conversationID, actorID, content, KindSystem)
	return err
}

// LogInitial materializes the contact request's initial message as the
// requester's first TEXT message. Called by the registry on approval.
func (s *Service) LogInitial(ctx context.Context, conversationID, senderID, content string) error {
	_, err := s.append(ctx, conversationID, senderID, content, KindText)
	return err
}

func (s *Service) append(ctx context.Context, conversationID, senderID, content string, kind Kind) (*Message, error) {
	msg := &Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Kind:           kind,
		SentAt:         time.Now().UTC(),
	}
	if err := s.store.Append(ctx, msg); err != nil {
		return nil, err
	}

	metrics.MessagesSent.WithLabelValues(string(kind)).Inc()
	s.bc.ToConversation(conversationID, broadcast.EventMessage, msg)
	return msg, nil
}
