package mongodb

import (
	"context"
	"os"
	"testing"
	"time"

	apperrors "github.com/jerome-fosse/tokens-api/internal/errors"
)

// Integration test against a real MongoDB, in the same spirit as the other
// store tests: skipped unless TEST_MONGO_URI is set, e.g.
// TEST_MONGO_URI=mongodb://127.0.0.1:27017 go test ./...
func TestStoreIntegration(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set; skipping mongodb integration test")
	}

	ctx := context.Background()
	db, disconnect, err := Connect(ctx, uri, "tokens_api_test", 10*time.Second)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer disconnect(ctx)

	if err := db.Collection(collectionName).Drop(ctx); err != nil {
		t.Fatalf("drop collection: %v", err)
	}

	store := New(db, 5*time.Second, nil)

	if _, err := store.GetAccount(ctx, "u1"); !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}

	acct, err := store.UpsertDevice(ctx, "u1", "d1")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if len(acct.Devices) != 1 || !acct.Devices[0].Active {
		t.Fatalf("unexpected account after upsert: %+v", acct)
	}

	// Same device on a second account, then reconcile away from u1.
	if _, err := store.UpsertDevice(ctx, "u2", "d1"); err != nil {
		t.Fatalf("upsert u2: %v", err)
	}
	modified, err := store.DeactivateDeviceElsewhere(ctx, "d1", "u2")
	if err != nil {
		t.Fatalf("deactivate elsewhere: %v", err)
	}
	if modified != 1 {
		t.Fatalf("expected 1 modified document, got %d", modified)
	}
	u1, _ := store.GetAccount(ctx, "u1")
	if u1.Devices[0].Active {
		t.Fatal("u1.d1 should be inactive after reconciliation")
	}

	count, err := store.DeactivateDevice(ctx, "u2", "d1")
	if err != nil || count != 1 {
		t.Fatalf("deactivate: count=%d err=%v", count, err)
	}
	if count, _ := store.DeactivateDevice(ctx, "u2", "d1"); count != 0 {
		t.Fatalf("second deactivate must be a no-op, got %d", count)
	}

	if _, err := store.SetMaasToken(ctx, "unknown", "d1", "tok"); !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
	withToken, err := store.SetMaasToken(ctx, "u1", "d1", "maas-token")
	if err != nil {
		t.Fatalf("set maas token: %v", err)
	}
	if withToken.Devices[0].MaasToken != "maas-token" {
		t.Fatalf("token not persisted: %+v", withToken.Devices[0])
	}
}
