// Package storage defines the persistence contracts of the gateway.
package storage

import (
	"context"

	"github.com/jerome-fosse/tokens-api/internal/app/domain/account"
	"github.com/jerome-fosse/tokens-api/internal/app/domain/profile"
)

// AccountStore persists account documents and exposes the conditional device
// mutations the reconciliation protocol is built from. The store is the
// single source of truth for device state; each mutation is independently
// idempotent so a retried registration heals a partial prior attempt.
type AccountStore interface {
	// GetAccount returns the account document, or a not-found error.
	GetAccount(ctx context.Context, id string) (account.Account, error)

	// SaveAccount writes the whole document, creating it when absent.
	SaveAccount(ctx context.Context, acct account.Account) (account.Account, error)

	// UpsertDevice registers deviceID as active on the account, creating the
	// account when absent.
	UpsertDevice(ctx context.Context, accountID, deviceID string) (account.Account, error)

	// DeactivateDeviceElsewhere clears the active flag of deviceID on every
	// account except excludeAccountID and returns the number of modified
	// documents.
	DeactivateDeviceElsewhere(ctx context.Context, deviceID, excludeAccountID string) (int64, error)

	// DeactivateDevice clears the active flag of deviceID on the given
	// account when it is currently active. Returns 0 or 1.
	DeactivateDevice(ctx context.Context, accountID, deviceID string) (int64, error)

	// SetMaasToken stores the partner device token on the matching device.
	// Unlike UpsertDevice this never creates the account.
	SetMaasToken(ctx context.Context, accountID, deviceID, token string) (account.Account, error)
}

// ProfileCache accelerates partner profile reads. It is never authoritative;
// entries expire after the TTL fixed at construction and are overwritten
// whole.
type ProfileCache interface {
	// Get returns the cached snapshot and whether one was present.
	Get(ctx context.Context, accountID string) (profile.Snapshot, bool, error)

	// Put stores the snapshot under its account id, subject to the cache TTL.
	Put(ctx context.Context, snap profile.Snapshot) error
}
