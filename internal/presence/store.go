// Package presence tracks which users currently hold a live gateway
// connection. Records live in Redis with a short TTL refreshed by ws
// heartbeats, so a crashed gateway instance cannot leave users permanently
// "online".
package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Prefix is the Redis key prefix for presence records.
	Prefix = "presence:"

	// TTL is how long a presence record survives without a refresh.
	TTL = 90 * time.Second
)

// Store manages presence records in Redis.
type Store struct {
	client     *redis.Client
	serverName string // which gateway instance owns the record
}

// NewStore connects to Redis and verifies the connection.
func NewStore(redisAddr, serverName string) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: redisAddr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("presence: redis connection failed: %w", err)
	}

	return &Store{client: client, serverName: serverName}, nil
}

// NewStoreWithClient wraps an existing Redis client, used by tests.
func NewStoreWithClient(client *redis.Client, serverName string) *Store {
	return &Store{client: client, serverName: serverName}
}

// SetOnline marks the user online, owned by this gateway instance.
func (s *Store) SetOnline(ctx context.Context, userID string) error {
	return s.client.Set(ctx, Prefix+userID, s.serverName, TTL).Err()
}

// Refresh extends the user's presence TTL. Called on ws heartbeats.
func (s *Store) Refresh(ctx context.Context, userID string) error {
	return s.client.Expire(ctx, Prefix+userID, TTL).Err()
}

// SetOffline removes the user's presence record.
func (s *Store) SetOffline(ctx context.Context, userID string) error {
	return s.client.Del(ctx, Prefix+userID).Err()
}

// IsOnline reports whether the user currently has a presence record.
func (s *Store) IsOnline(ctx context.Context, userID string) (bool, error) {
	err := s.client.Get(ctx, Prefix+userID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
