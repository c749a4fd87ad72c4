package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/foundly/contact-service/internal/apperr"
	"github.com/foundly/contact-service/internal/broadcast"
	"github.com/foundly/contact-service/internal/item"
	"github.com/foundly/contact-service/internal/metrics"
)

// BlockChecker is the slice of the block service the registry needs: the
// symmetric gate consulted before a contact request is accepted.
type BlockChecker interface {
	IsBlockedEitherDirection(ctx context.Context, a, b string) (bool, error)
}

// TransitionLogger appends messages on behalf of the registry: SYSTEM
// markers for state transitions and the requester's initial message when an
// approval materializes it. Implemented by the message service.
type TransitionLogger interface {
	LogTransition(ctx context.Context, conversationID, actorID, content string) error
	LogInitial(ctx context.Context, conversationID, senderID, content string) error
}

// Registry owns the request/approve/reject/close state machine.
type Registry struct {
	store    Store
	items    item.Directory
	blocks   BlockChecker
	messages TransitionLogger
	bc       broadcast.Broadcaster
}

// NewRegistry wires a conversation registry.
func NewRegistry(store Store, items item.Directory, blocks BlockChecker, messages TransitionLogger, bc broadcast.Broadcaster) *Registry {
	return &Registry{store: store, items: items, blocks: blocks, messages: messages, bc: bc}
}

// Request creates a contact request from requesterID about itemID, or
// returns the existing APPROVED conversation for the pair unchanged. A
// PENDING conversation for the pair fails with DuplicateRequest. The insert
// relies on the store's open-conversation uniqueness: when two requests
// race, the loser re-reads instead of creating a second open row.
func (r *Registry) Request(ctx context.Context, itemID, requesterID, initialMessage string) (*Conversation, error) {
	if utf8.RuneCountInString(initialMessage) > MaxInitialMessageChars {
		return nil, apperr.Validation("initial message exceeds %d characters", MaxInitialMessageChars)
	}

	it, err := r.items.Lookup(ctx, itemID)
	if errors.Is(err, item.ErrNotFound) {
		return nil, apperr.NotFound("item %s not found", itemID)
	}
	if err != nil {
		return nil, err
	}

	if requesterID == it.OwnerID {
		return nil, apperr.InvalidActor("cannot request contact about your own item")
	}

	blocked, err := r.blocks.IsBlockedEitherDirection(ctx, requesterID, it.OwnerID)
	if err != nil {
		return nil, err
	}
	if blocked {
		metrics.ConversationRequests.WithLabelValues("blocked").Inc()
		return nil, apperr.Blocked("contact between these users is blocked")
	}

	if existing, err := r.store.FindOpen(ctx, itemID, requesterID); err != nil {
		return nil, err
	} else if existing != nil {
		return r.reuseOrDuplicate(existing)
	}

	now := time.Now().UTC()
	conv := &Conversation{
		ID:             uuid.New().String(),
		ItemID:         itemID,
		ItemTitle:      it.Title,
		RequesterID:    requesterID,
		OwnerID:        it.OwnerID,
		Status:         StatusPending,
		InitialMessage: initialMessage,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := r.store.Insert(ctx, conv); err != nil {
		if errors.Is(err, ErrOpenExists) {
			// Lost the insert race: some concurrent request created the open
			// conversation first. Resolve exactly as the lookup would have.
			existing, ferr := r.store.FindOpen(ctx, itemID, requesterID)
			if ferr != nil {
				return nil, ferr
			}
			if existing == nil {
				return nil, fmt.Errorf("conversation: open row vanished after conflict: %w", err)
			}
			return r.reuseOrDuplicate(existing)
		}
		return nil, err
	}

	metrics.ConversationRequests.WithLabelValues("created").Inc()
	r.bc.ToUser(it.OwnerID, broadcast.EventNewRequest, conv)
	return conv, nil
}

func (r *Registry) reuseOrDuplicate(existing *Conversation) (*Conversation, error) {
	if existing.Status == StatusApproved {
		metrics.ConversationRequests.WithLabelValues("reused").Inc()
		return existing, nil
	}
	metrics.ConversationRequests.WithLabelValues("duplicate").Inc()
	return nil, apperr.New(apperr.KindDuplicateRequest, "a pending request for this item already exists")
}

// Approve moves a PENDING conversation to APPROVED. Only the owner may
// approve. On success a SYSTEM marker is appended and, when the request
// carried an initial message, it is materialized as the first TEXT message
// from the requester.
func (r *Registry) Approve(ctx context.Context, conversationID, actingUserID string) (*Conversation, error) {
	conv, err := r.getForUpdate(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if actingUserID != conv.OwnerID {
		return nil, apperr.PermissionDenied("only the item owner may approve")
	}

	ok, err := r.store.UpdateStatus(ctx, conversationID, []Status{StatusPending}, StatusApproved)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.InvalidStateTransition("conversation is not pending")
	}

	// The transition is committed; marker failures must not undo it.
	if err := r.messages.LogTransition(ctx, conversationID, actingUserID, "contact approved"); err != nil {
		log.Printf("conversation: approve marker for %s: %v", conversationID, err)
	}
	if conv.InitialMessage != "" {
		if err := r.messages.LogInitial(ctx, conversationID, conv.RequesterID, conv.InitialMessage); err != nil {
			log.Printf("conversation: initial message for %s: %v", conversationID, err)
		}
	}

	updated, err := r.store.Get(ctx, conversationID)
	if err != nil || updated == nil {
		return nil, fmt.Errorf("conversation: reload after approve: %w", err)
	}

	r.bc.ToUser(updated.RequesterID, broadcast.EventApproved, updated)
	return updated, nil
}

// Reject moves a PENDING conversation to REJECTED. Only the owner may
// reject; no message history is created.
func (r *Registry) Reject(ctx context.Context, conversationID, actingUserID string) (*Conversation, error) {
	conv, err := r.getForUpdate(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if actingUserID != conv.OwnerID {
		return nil, apperr.PermissionDenied("only the item owner may reject")
	}

	ok, err := r.store.UpdateStatus(ctx, conversationID, []Status{StatusPending}, StatusRejected)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.InvalidStateTransition("conversation is not pending")
	}

	updated, err := r.store.Get(ctx, conversationID)
	if err != nil || updated == nil {
		return nil, fmt.Errorf("conversation: reload after reject: %w", err)
	}

	r.bc.ToUser(updated.RequesterID, broadcast.EventRejected, updated)
	return updated, nil
}

// Close moves a PENDING or APPROVED conversation to CLOSED. Either
// participant may close; a SYSTEM marker names the closer. Closing an
// already-terminal conversation fails InvalidStateTransition.
func (r *Registry) Close(ctx context.Context, conversationID, actingUserID string) (*Conversation, error) {
	conv, err := r.getForUpdate(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsParticipant(actingUserID) {
		return nil, apperr.PermissionDenied("only a participant may close the conversation")
	}

	ok, err := r.store.UpdateStatus(ctx, conversationID, []Status{StatusPending, StatusApproved}, StatusClosed)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.InvalidStateTransition("conversation is already closed or rejected")
	}

	content := fmt.Sprintf("conversation closed by %s", actingUserID)
	if err := r.messages.LogTransition(ctx, conversationID, actingUserID, content); err != nil {
		log.Printf("conversation: close marker for %s: %v", conversationID, err)
	}

	updated, err := r.store.Get(ctx, conversationID)
	if err != nil || updated == nil {
		return nil, fmt.Errorf("conversation: reload after close: %w", err)
	}
	return updated, nil
}

// Get returns the conversation if requestingUserID participates in it.
func (r *Registry) Get(ctx context.Context, conversationID, requestingUserID string) (*Conversation, error) {
	conv, err := r.getForUpdate(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsParticipant(requestingUserID) {
		return nil, apperr.PermissionDenied("not a participant")
	}
	return conv, nil
}

// ListForUser returns the caller's conversations, optionally filtered by
// status.
func (r *Registry) ListForUser(ctx context.Context, userID string, status Status) ([]Conversation, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.Validation("unknown status %q", status)
	}
	return r.store.ListByParticipant(ctx, userID, status)
}

// ListPending returns the requests awaiting the caller's decision as owner.
func (r *Registry) ListPending(ctx context.Context, ownerID string) ([]Conversation, error) {
	return r.store.ListPendingForOwner(ctx, ownerID)
}

// CountPending returns the number of requests awaiting the caller as owner.
func (r *Registry) CountPending(ctx context.Context, ownerID string) (int, error) {
	return r.store.CountPendingForOwner(ctx, ownerID)
}

func (r *Registry) getForUpdate(ctx context.Context, conversationID string) (*Conversation, error) {
	conv, err := r.store.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, apperr.NotFound("conversation %s not found", conversationID)
	}
	return conv, nil
}
