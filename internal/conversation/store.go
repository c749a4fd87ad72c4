package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrOpenExists is returned by Insert when the partial unique index on
// (item_id, requester_id) for open conversations rejects the row. The
// database, not the preceding lookup, is the authoritative enforcement of
// the dedup invariant; callers losing this race re-read and decide.
var ErrOpenExists = errors.New("conversation: open conversation already exists")

// Store is the persistence surface the registry needs.
type Store interface {
	Insert(ctx context.Context, c *Conversation) error
	Get(ctx context.Context, id string) (*Conversation, error)
	FindOpen(ctx context.Context, itemID, requesterID string) (*Conversation, error)
	ListByParticipant(ctx context.Context, userID string, status Status) ([]Conversation, error)
	ListPendingForOwner(ctx context.Context, ownerID string) ([]Conversation, error)
	CountPendingForOwner(ctx context.Context, ownerID string) (int, error)
	// UpdateStatus performs the guarded transition: the row is updated only
	// if its current status is in from. Returns false when the guard fails,
	// so racing transitions lose cleanly instead of overwriting.
	UpdateStatus(ctx context.Context, id string, from []Status, to Status) (bool, error)
}

const conversationColumns = `
	c.id, c.item_id, COALESCE(i.title, ''), c.requester_id, c.owner_id,
	c.status, COALESCE(c.initial_message, ''), c.created_at, c.updated_at, c.approved_at`

// PGStore manages conversations in Postgres.
type PGStore struct {
	db *sql.DB
}

// NewPGStore creates a conversation store backed by the given database handle.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// Insert persists a new conversation. A violation of the open-conversation
// dedup key surfaces as ErrOpenExists.
func (s *PGStore) Insert(ctx context.Context, c *Conversation) error {
	const query = `
		INSERT INTO conversations
			(id, item_id, requester_id, owner_id, status, initial_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $7)`

	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.ItemID, c.RequesterID, c.OwnerID, string(c.Status), c.InitialMessage, c.CreatedAt)
	if isUniqueViolation(err) {
		return ErrOpenExists
	}
	if err != nil {
		return fmt.Errorf("conversation: insert: %w", err)
	}
	return nil
}

// Get fetches one conversation by id. Returns (nil, nil) if absent.
func (s *PGStore) Get(ctx context.Context, id string) (*Conversation, error) {
	query := `
		SELECT` + conversationColumns + `
		FROM conversations c LEFT JOIN items i ON i.id = c.item_id
		WHERE c.id = $1`

	c, err := scanConversation(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: get %s: %w", id, err)
	}
	return c, nil
}

// FindOpen fetches the single PENDING or APPROVED conversation for the
// (item, requester) pair, or (nil, nil) if none exists.
func (s *PGStore) FindOpen(ctx context.Context, itemID, requesterID string) (*Conversation, error) {
	query := `
		SELECT` + conversationColumns + `
		FROM conversations c LEFT JOIN items i ON i.id = c.item_id
		WHERE c.item_id = $1 AND c.requester_id = $2
		  AND c.status IN ('PENDING', 'APPROVED')`

	c, err := scanConversation(s.db.QueryRowContext(ctx, query, itemID, requesterID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: find open: %w", err)
	}
	return c, nil
}

// ListByParticipant returns the user's conversations, most recently updated
// first. An empty status lists every state.
func (s *PGStore) ListByParticipant(ctx context.Context, userID string, status Status) ([]Conversation, error) {
	query := `
		SELECT` + conversationColumns + `
		FROM conversations c LEFT JOIN items i ON i.id = c.item_id
		WHERE (c.requester_id = $1 OR c.owner_id = $1)
		  AND ($2 = '' OR c.status = $2)
		ORDER BY c.updated_at DESC`

	return s.queryConversations(ctx, query, userID, string(status))
}

// ListPendingForOwner returns requests awaiting the owner's decision, oldest
// first.
func (s *PGStore) ListPendingForOwner(ctx context.Context, ownerID string) ([]Conversation, error) {
	query := `
		SELECT` + conversationColumns + `
		FROM conversations c LEFT JOIN items i ON i.id = c.item_id
		WHERE c.owner_id = $1 AND c.status = 'PENDING'
		ORDER BY c.created_at ASC`

	return s.queryConversations(ctx, query, ownerID)
}

// CountPendingForOwner returns the number of requests awaiting the owner.
func (s *PGStore) CountPendingForOwner(ctx context.Context, ownerID string) (int, error) {
	const query = `SELECT COUNT(*) FROM conversations WHERE owner_id = $1 AND status = 'PENDING'`

	var n int
	if err := s.db.QueryRowContext(ctx, query, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("conversation: count pending: %w", err)
	}
	return n, nil
}

// UpdateStatus applies the guarded transition and stamps updated_at.
// approved_at is stamped when the target status is APPROVED.
func (s *PGStore) UpdateStatus(ctx context.Context, id string, from []Status, to Status) (bool, error) {
	const query = `
		UPDATE conversations
		SET status = $1,
		    updated_at = now(),
		    approved_at = CASE WHEN $1 = 'APPROVED' THEN now() ELSE approved_at END
		WHERE id = $2 AND status = ANY($3)`

	fromStrs := make([]string, len(from))
	for i, st := range from {
		fromStrs[i] = string(st)
	}

	res, err := s.db.ExecContext(ctx, query, string(to), id, pq.Array(fromStrs))
	if err != nil {
		return false, fmt.Errorf("conversation: update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("conversation: update status rows: %w", err)
	}
	return n > 0, nil
}

func (s *PGStore) queryConversations(ctx context.Context, query string, args ...interface{}) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("conversation: query: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("conversation: scan: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: rows: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var c Conversation
	var status string
	var approvedAt sql.NullTime
	err := row.Scan(&c.ID, &c.ItemID, &c.ItemTitle, &c.RequesterID, &c.OwnerID,
		&status, &c.InitialMessage, &c.CreatedAt, &c.UpdatedAt, &approvedAt)
	if err != nil {
		return nil, err
	}
	c.Status = Status(status)
	if approvedAt.Valid {
		t := approvedAt.Time
		c.ApprovedAt = &t
	}
	return &c, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
