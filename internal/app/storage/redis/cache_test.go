package redis

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/jerome-fosse/tokens-api/internal/app/domain/profile"
)

// Integration test against a real Redis, skipped unless TEST_REDIS_ADDR is
// set, e.g. TEST_REDIS_ADDR=127.0.0.1:6379 go test ./...
func TestCacheIntegration(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set; skipping redis integration test")
	}

	ctx := context.Background()
	client := goredis.NewClient(&goredis.Options{Addr: addr, DB: 15})
	defer client.Close()
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	cache := New(client, time.Second, nil)

	if _, ok, err := cache.Get(ctx, "u1"); err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%t err=%v", ok, err)
	}

	snap := profile.Snapshot{
		AccountID: "u1",
		Email:     "u1@example.com",
		FirstName: "Jane",
		LastName:  "Doe",
		Birthdate: "1987-06-05",
	}
	if err := cache.Put(ctx, snap); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := cache.Get(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%t err=%v", ok, err)
	}
	if got != snap {
		t.Fatalf("round-trip mismatch: %+v vs %+v", got, snap)
	}

	time.Sleep(1500 * time.Millisecond)
	if _, ok, _ := cache.Get(ctx, "u1"); ok {
		t.Fatal("entry must expire after the TTL")
	}
}
