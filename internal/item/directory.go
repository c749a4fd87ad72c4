// Package item resolves item ids to their owner and a display summary.
// Item storage itself belongs to another service; the conversation layer
// only ever needs this narrow lookup.
package item

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no item exists for the given id.
var ErrNotFound = errors.New("item: not found")

// Item is the minimal projection the contact service needs.
type Item struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"`
	Title   string `json:"title"`
}

// Directory looks up items. The conversation service depends on this
// interface, not on the backing table.
type Directory interface {
	Lookup(ctx context.Context, itemID string) (*Item, error)
}

// PGDirectory reads the items table in Postgres.
type PGDirectory struct {
	db *sql.DB
}

// NewPGDirectory creates a Directory backed by the given database handle.
func NewPGDirectory(db *sql.DB) *PGDirectory {
	return &PGDirectory{db: db}
}

// Lookup fetches one item. Returns ErrNotFound if the id is unknown.
func (d *PGDirectory) Lookup(ctx context.Context, itemID string) (*Item, error) {
	const query = `SELECT id, owner_id, title FROM items WHERE id = $1`

	var it Item
	err := d.db.QueryRowContext(ctx, query, itemID).Scan(&it.ID, &it.OwnerID, &it.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("item: lookup %s: %w", itemID, err)
	}
	return &it, nil
}
