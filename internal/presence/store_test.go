package presence

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

// setupTestStore creates a Store against a test Redis instance. Requires
// Redis on localhost:6379; tests are skipped if unavailable.
func setupTestStore(t *testing.T) (*Store, context.Context) {
	t.Helper()

	rdb := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // use DB 15 for tests to avoid conflicts
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("skipping: Redis not available: %v", err)
	}

	rdb.FlushDB(ctx)
	t.Cleanup(func() {
		rdb.FlushDB(ctx)
		rdb.Close()
	})

	return NewStoreWithClient(rdb, "test-1"), ctx
}

func TestSetOnline_ThenIsOnline(t *testing.T) {
	s, ctx := setupTestStore(t)

	if err := s.SetOnline(ctx, "alice"); err != nil {
		t.Fatalf("set online: %v", err)
	}

	online, err := s.IsOnline(ctx, "alice")
	if err != nil {
		t.Fatalf("is online: %v", err)
	}
	if !online {
		t.Error("expected alice online")
	}
}

func TestIsOnline_UnknownUser(t *testing.T) {
	s, ctx := setupTestStore(t)

	online, err := s.IsOnline(ctx, "ghost")
	if err != nil {
		t.Fatalf("is online: %v", err)
	}
	if online {
		t.Error("expected ghost offline")
	}
}

func TestSetOffline_RemovesRecord(t *testing.T) {
	s, ctx := setupTestStore(t)

	s.SetOnline(ctx, "alice")
	if err := s.SetOffline(ctx, "alice"); err != nil {
		t.Fatalf("set offline: %v", err)
	}

	online, _ := s.IsOnline(ctx, "alice")
	if online {
		t.Error("expected alice offline after SetOffline")
	}
}

func TestRefresh_ExtendsTTL(t *testing.T) {
	s, ctx := setupTestStore(t)

	s.SetOnline(ctx, "alice")
	if err := s.Refresh(ctx, "alice"); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	ttl, err := s.client.TTL(ctx, Prefix+"alice").Result()
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= 0 || ttl > TTL {
		t.Errorf("unexpected TTL %v", ttl)
	}
}
