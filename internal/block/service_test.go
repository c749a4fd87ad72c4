package block

import (
	"context"
	"sync"
	"testing"

	"github.com/foundly/contact-service/internal/apperr"
)

// memStore is an in-memory Store enforcing the (blocker, blocked) uniqueness
// the way the table constraint does.
type memStore struct {
	mu     sync.Mutex
	blocks map[string]Block // blocker|blocked -> record
}

func newMemStore() *memStore {
	return &memStore{blocks: make(map[string]Block)}
}

func key(blockerID, blockedID string) string {
	return blockerID + "|" + blockedID
}

func (s *memStore) Insert(ctx context.Context, b *Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(b.BlockerID, b.BlockedID)
	if _, exists := s.blocks[k]; exists {
		return apperr.New(apperr.KindDuplicateBlock, "user %s is already blocked", b.BlockedID)
	}
	s.blocks[k] = *b
	return nil
}

func (s *memStore) Delete(ctx context.Context, blockerID, blockedID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(blockerID, blockedID)
	if _, exists := s.blocks[k]; !exists {
		return false, nil
	}
	delete(s.blocks, k)
	return true, nil
}

func (s *memStore) ExistsEitherDirection(ctx context.Context, a, b string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ab := s.blocks[key(a, b)]
	_, ba := s.blocks[key(b, a)]
	return ab || ba, nil
}

func (s *memStore) ListByBlocker(ctx context.Context, blockerID string) ([]Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Block
	for _, b := range s.blocks {
		if b.BlockerID == blockerID {
			out = append(out, b)
		}
	}
	return out, nil
}

func TestBlock_SelfFails(t *testing.T) {
	s := NewService(newMemStore())

	_, err := s.Block(context.Background(), "alice", "alice", "")
	if !apperr.IsKind(err, apperr.KindInvalidActor) {
		t.Fatalf("expected InvalidActor, got %v", err)
	}
}

func TestBlock_DuplicateFails(t *testing.T) {
	s := NewService(newMemStore())

	if _, err := s.Block(context.Background(), "alice", "bob", "spam"); err != nil {
		t.Fatalf("first block: %v", err)
	}
	_, err := s.Block(context.Background(), "alice", "bob", "again")
	if !apperr.IsKind(err, apperr.KindDuplicateBlock) {
		t.Fatalf("expected DuplicateBlock, got %v", err)
	}
}

// The reverse direction is a distinct record: bob blocking alice back is
// allowed even while alice's block stands.
func TestBlock_ReverseDirectionIsDistinct(t *testing.T) {
	s := NewService(newMemStore())

	if _, err := s.Block(context.Background(), "alice", "bob", ""); err != nil {
		t.Fatalf("alice->bob: %v", err)
	}
	if _, err := s.Block(context.Background(), "bob", "alice", ""); err != nil {
		t.Fatalf("bob->alice: %v", err)
	}
}

func TestUnblock_RemovesOwnBlock(t *testing.T) {
	s := NewService(newMemStore())

	s.Block(context.Background(), "alice", "bob", "")
	if err := s.Unblock(context.Background(), "alice", "bob"); err != nil {
		t.Fatalf("unblock: %v", err)
	}

	blocked, _ := s.IsBlockedEitherDirection(context.Background(), "alice", "bob")
	if blocked {
		t.Error("block still enforced after unblock")
	}
}

func TestUnblock_UnknownBlockFails(t *testing.T) {
	s := NewService(newMemStore())

	err := s.Unblock(context.Background(), "alice", "bob")
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

// Only the blocker owns the record: bob cannot remove alice's block.
func TestUnblock_OtherPartysBlockFails(t *testing.T) {
	s := NewService(newMemStore())

	s.Block(context.Background(), "alice", "bob", "")
	err := s.Unblock(context.Background(), "bob", "alice")
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}

	blocked, _ := s.IsBlockedEitherDirection(context.Background(), "alice", "bob")
	if !blocked {
		t.Error("alice's block should survive bob's unblock attempt")
	}
}

func TestIsBlockedEitherDirection_Symmetric(t *testing.T) {
	s := NewService(newMemStore())

	s.Block(context.Background(), "alice", "bob", "")

	got, _ := s.IsBlockedEitherDirection(context.Background(), "alice", "bob")
	if !got {
		t.Error("expected blocked for (alice, bob)")
	}
	got, _ = s.IsBlockedEitherDirection(context.Background(), "bob", "alice")
	if !got {
		t.Error("expected blocked for (bob, alice)")
	}
	got, _ = s.IsBlockedEitherDirection(context.Background(), "alice", "carol")
	if got {
		t.Error("unrelated pair must not be blocked")
	}
}

func TestList_ReturnsOnlyOwnBlocks(t *testing.T) {
	s := NewService(newMemStore())

	s.Block(context.Background(), "alice", "bob", "")
	s.Block(context.Background(), "carol", "alice", "")

	blocks, err := s.List(context.Background(), "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(blocks) != 1 || blocks[0].BlockedID != "bob" {
		t.Errorf("expected alice's single block of bob, got %v", blocks)
	}
}
