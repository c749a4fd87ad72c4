package message

import (
	"context"
	"database/sql"
	"fmt"
)

// Store is the persistence surface the message service needs.
type Store interface {
	// Append persists the message and bumps the conversation's updated_at
	// in the same transaction.
	Append(ctx context.Context, m *Message) error
	// ListAndMarkRead returns the conversation's messages in ascending
	// sent order and, in the same transaction, marks every message not
	// sent by readerID as read. Re-marking already-read messages is a
	// no-op.
	ListAndMarkRead(ctx context.Context, conversationID, readerID string) ([]Message, error)
	// CountUnread counts unread messages addressed to userID across that
	// user's APPROVED conversations.
	CountUnread(ctx context.Context, userID string) (int, error)
}

// PGStore manages the message log in Postgres.
type PGStore struct {
	db *sql.DB
}

// NewPGStore creates a message store backed by the given database handle.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// Append inserts the message and stamps the parent conversation's
// updated_at atomically.
func (s *PGStore) Append(ctx context.Context, m *Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("message: begin append: %w", err)
	}
	defer tx.Rollback()

	const insert = `
		INSERT INTO messages (id, conversation_id, sender_id, content, kind, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.ExecContext(ctx, insert,
		m.ID, m.ConversationID, m.SenderID, m.Content, string(m.Kind), m.SentAt); err != nil {
		return fmt.Errorf("message: insert: %w", err)
	}

	const touch = `UPDATE conversations SET updated_at = now() WHERE id = $1`
	if _, err := tx.ExecContext(ctx, touch, m.ConversationID); err != nil {
		return fmt.Errorf("message: touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("message: commit append: %w", err)
	}
	return nil
}

// ListAndMarkRead marks then selects inside one transaction so that unread
// accounting observes the side effect synchronously.
func (s *PGStore) ListAndMarkRead(ctx context.Context, conversationID, readerID string) ([]Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("message: begin list: %w", err)
	}
	defer tx.Rollback()

	const mark = `
		UPDATE messages
		SET is_read = true, read_at = now()
		WHERE conversation_id = $1 AND sender_id <> $2 AND NOT is_read`
	if _, err := tx.ExecContext(ctx, mark, conversationID, readerID); err != nil {
		return nil, fmt.Errorf("message: mark read: %w", err)
	}

	const list = `
		SELECT id, conversation_id, sender_id, content, kind, sent_at, read_at, is_read
		FROM messages
		WHERE conversation_id = $1
		ORDER BY sent_at ASC, id ASC`
	rows, err := tx.QueryContext(ctx, list, conversationID)
	if err != nil {
		return nil, fmt.Errorf("message: list: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var kind string
		var readAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content,
			&kind, &m.SentAt, &readAt, &m.IsRead); err != nil {
			return nil, fmt.Errorf("message: scan: %w", err)
		}
		m.Kind = Kind(kind)
		if readAt.Valid {
			t := readAt.Time
			m.ReadAt = &t
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("message: rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("message: commit list: %w", err)
	}
	return out, nil
}

// CountUnread counts unread messages addressed to userID in APPROVED
// conversations the user participates in.
func (s *PGStore) CountUnread(ctx context.Context, userID string) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE c.status = 'APPROVED'
		  AND (c.requester_id = $1 OR c.owner_id = $1)
		  AND m.sender_id <> $1
		  AND NOT m.is_read`

	var n int
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("message: count unread: %w", err)
	}
	return n, nil
}
