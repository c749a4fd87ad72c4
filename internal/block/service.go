package block

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/foundly/contact-service/internal/apperr"
)

// Service applies the block invariants on top of a Store. It is consumed by
// the conversation and message services as the hard gate on contact.
type Service struct {
	store Store
}

// NewService creates a block service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Block records blockerID blocking targetID.
func (s *Service) Block(ctx context.Context, blockerID, targetID, reason string) (*Block, error) {
	if blockerID == targetID {
		return nil, apperr.InvalidActor("cannot block yourself")
	}

	b := &Block{
		ID:        uuid.New().String(),
		BlockerID: blockerID,
		BlockedID: targetID,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Insert(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Unblock removes blockerID's block against targetID. Only the blocker may
// remove their own block, which the key shape already guarantees.
func (s *Service) Unblock(ctx context.Context, blockerID, targetID string) error {
	removed, err := s.store.Delete(ctx, blockerID, targetID)
	if err != nil {
		return err
	}
	if !removed {
		return apperr.NotFound("no block against user %s", targetID)
	}
	return nil
}

// IsBlockedEitherDirection reports whether a block exists between a and b in
// either direction. Enforcement is deliberately symmetric even though the
// underlying record is directional.
func (s *Service) IsBlockedEitherDirection(ctx context.Context, a, b string) (bool, error) {
	return s.store.ExistsEitherDirection(ctx, a, b)
}

// List returns the blocks owned by blockerID.
func (s *Service) List(ctx context.Context, blockerID string) ([]Block, error) {
	return s.store.ListByBlocker(ctx, blockerID)
}
