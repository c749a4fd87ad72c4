package block

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/foundly/contact-service/internal/apperr"
)

// Store is the persistence surface the block service needs. The blocks
// table carries a unique (blocker_id, blocked_id) constraint; Insert maps
// a violation to DuplicateBlock so the invariant holds under concurrent
// callers.
type Store interface {
	Insert(ctx context.Context, b *Block) error
	Delete(ctx context.Context, blockerID, blockedID string) (bool, error)
	ExistsEitherDirection(ctx context.Context, a, b string) (bool, error)
	ListByBlocker(ctx context.Context, blockerID string) ([]Block, error)
}

// PGStore manages block records in Postgres.
type PGStore struct {
	db *sql.DB
}

// NewPGStore creates a block store backed by the given database handle.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// Insert persists a block. A unique violation on (blocker_id, blocked_id)
// surfaces as DuplicateBlock.
func (s *PGStore) Insert(ctx context.Context, b *Block) error {
	const query = `
		INSERT INTO blocks (id, blocker_id, blocked_id, reason, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)`

	_, err := s.db.ExecContext(ctx, query, b.ID, b.BlockerID, b.BlockedID, b.Reason, b.CreatedAt)
	if isUniqueViolation(err) {
		return apperr.New(apperr.KindDuplicateBlock, "user %s is already blocked", b.BlockedID)
	}
	if err != nil {
		return fmt.Errorf("block: insert: %w", err)
	}
	return nil
}

// Delete removes the block record owned by blockerID against blockedID.
// Returns false if no such record exists.
func (s *PGStore) Delete(ctx context.Context, blockerID, blockedID string) (bool, error) {
	const query = `DELETE FROM blocks WHERE blocker_id = $1 AND blocked_id = $2`

	res, err := s.db.ExecContext(ctx, query, blockerID, blockedID)
	if err != nil {
		return false, fmt.Errorf("block: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("block: delete rows: %w", err)
	}
	return n > 0, nil
}

// ExistsEitherDirection reports whether a block exists between a and b in
// either direction.
func (s *PGStore) ExistsEitherDirection(ctx context.Context, a, b string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM blocks
			WHERE (blocker_id = $1 AND blocked_id = $2)
			   OR (blocker_id = $2 AND blocked_id = $1)
		)`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, a, b).Scan(&exists); err != nil {
		return false, fmt.Errorf("block: exists: %w", err)
	}
	return exists, nil
}

// ListByBlocker returns every block owned by blockerID, newest first.
func (s *PGStore) ListByBlocker(ctx context.Context, blockerID string) ([]Block, error) {
	const query = `
		SELECT id, blocker_id, blocked_id, COALESCE(reason, ''), created_at
		FROM blocks
		WHERE blocker_id = $1
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, blockerID)
	if err != nil {
		return nil, fmt.Errorf("block: list: %w", err)
	}
	defer rows.Close()

	var blocks []Block
	for rows.Next() {
		var b Block
		if err := rows.Scan(&b.ID, &b.BlockerID, &b.BlockedID, &b.Reason, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("block: scan: %w", err)
		}
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("block: rows: %w", err)
	}
	return blocks, nil
}

// isUniqueViolation reports whether err is a Postgres unique_violation
// (class 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
