// Package block maintains the block relation between user pairs. The record
// is directional (only the blocker may remove it) but enforcement is
// symmetric: a block in either direction silences contact requests and
// messaging both ways.
package block

import "time"

// Block is one directional block record.
type Block struct {
	ID        string    `json:"id"`
	BlockerID string    `json:"blockerId"`
	BlockedID string    `json:"blockedId"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
