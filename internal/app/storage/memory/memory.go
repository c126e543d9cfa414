// Package memory is an in-memory implementation of the storage interfaces.
// It is safe for concurrent use and is primarily intended for tests and local
// development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jerome-fosse/tokens-api/internal/app/domain/account"
	"github.com/jerome-fosse/tokens-api/internal/app/domain/profile"
	"github.com/jerome-fosse/tokens-api/internal/app/storage"
	apperrors "github.com/jerome-fosse/tokens-api/internal/errors"
)

// Store keeps account documents in a map guarded by a mutex.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]account.Account

	// Now is the clock used for lastSeen stamps. Tests may override it.
	Now func() time.Time
}

var _ storage.AccountStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		accounts: make(map[string]account.Account),
		Now:      time.Now,
	}
}

func (s *Store) GetAccount(_ context.Context, id string) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[id]
	if !ok {
		return account.Account{}, apperrors.AccountNotFound(id)
	}
	return clone(acct), nil
}

func (s *Store) SaveAccount(_ context.Context, acct account.Account) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[acct.ID] = clone(acct)
	return acct, nil
}

func (s *Store) UpsertDevice(_ context.Context, accountID, deviceID string) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now().UTC()
	acct, ok := s.accounts[accountID]
	if !ok {
		acct = account.New(accountID, deviceID, now)
	} else {
		acct = acct.UpsertDevice(deviceID, now)
	}
	s.accounts[accountID] = acct
	return clone(acct), nil
}

func (s *Store) DeactivateDeviceElsewhere(_ context.Context, deviceID, excludeAccountID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var modified int64
	for id, acct := range s.accounts {
		if id == excludeAccountID {
			continue
		}
		changed := false
		for i := range acct.Devices {
			if acct.Devices[i].DeviceID == deviceID && acct.Devices[i].Active {
				acct.Devices[i].Active = false
				changed = true
			}
		}
		if changed {
			s.accounts[id] = acct
			modified++
		}
	}
	return modified, nil
}

func (s *Store) DeactivateDevice(_ context.Context, accountID, deviceID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return 0, nil
	}
	for i := range acct.Devices {
		if acct.Devices[i].DeviceID == deviceID && acct.Devices[i].Active {
			acct.Devices[i].Active = false
			s.accounts[accountID] = acct
			return 1, nil
		}
	}
	return 0, nil
}

func (s *Store) SetMaasToken(_ context.Context, accountID, deviceID, token string) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return account.Account{}, apperrors.AccountNotFound(accountID)
	}
	acct = acct.WithMaasToken(deviceID, token)
	s.accounts[accountID] = acct
	return clone(acct), nil
}

func clone(acct account.Account) account.Account {
	devices := make([]account.Device, len(acct.Devices))
	copy(devices, acct.Devices)
	return account.Account{ID: acct.ID, Devices: devices}
}

// ProfileCache is an in-memory TTL cache for profile snapshots.
type ProfileCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration

	// Now is the clock used for expiry. Tests may override it.
	Now func() time.Time
}

type cacheEntry struct {
	snap      profile.Snapshot
	expiresAt time.Time
}

var _ storage.ProfileCache = (*ProfileCache)(nil)

// NewProfileCache creates an empty cache whose entries expire after ttl.
func NewProfileCache(ttl time.Duration) *ProfileCache {
	return &ProfileCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		Now:     time.Now,
	}
}

func (c *ProfileCache) Get(_ context.Context, accountID string) (profile.Snapshot, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[accountID]
	if !ok || c.Now().After(entry.expiresAt) {
		return profile.Snapshot{}, false, nil
	}
	return entry.snap, true, nil
}

func (c *ProfileCache) Put(_ context.Context, snap profile.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[snap.AccountID] = cacheEntry{snap: snap, expiresAt: c.Now().Add(c.ttl)}
	return nil
}
