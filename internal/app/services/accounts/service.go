// Package accounts implements account lookup, profile resolution and partner
// account lifecycle operations.
package accounts

import (
	"context"
	"fmt"

	"github.com/jerome-fosse/tokens-api/internal/app/domain/account"
	"github.com/jerome-fosse/tokens-api/internal/app/metrics"
	"github.com/jerome-fosse/tokens-api/internal/app/storage"
	"github.com/jerome-fosse/tokens-api/internal/auth"
	apperrors "github.com/jerome-fosse/tokens-api/internal/errors"
	"github.com/jerome-fosse/tokens-api/internal/partner"
	"github.com/jerome-fosse/tokens-api/pkg/logger"
	"github.com/jerome-fosse/tokens-api/pkg/obfuscate"
)

// ProfileView is what callers of GetProfile receive: the partner profile
// merged with the device association the caller authenticated with.
type ProfileView struct {
	ID          string         `json:"iuc"`
	Email       string         `json:"email,omitempty"`
	Firstname   string         `json:"firstname,omitempty"`
	Lastname    string         `json:"lastname,omitempty"`
	Birthdate   string         `json:"birthdate,omitempty"`
	PhoneNumber string         `json:"phoneNumber,omitempty"`
	Device      account.Device `json:"device"`
}

// Service resolves accounts and profiles. Profile reads go through the cache
// first; the partner is only called on a miss and the result is written back
// on the way out.
type Service struct {
	verifier *auth.Verifier
	store    storage.AccountStore
	cache    storage.ProfileCache
	partner  partner.Client
	log      *logger.Logger
}

// New creates an accounts service. A nil logger falls back to a default one.
func New(verifier *auth.Verifier, store storage.AccountStore, cache storage.ProfileCache, client partner.Client, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("accounts")
	}
	return &Service{
		verifier: verifier,
		store:    store,
		cache:    cache,
		partner:  client,
		log:      log,
	}
}

// GetWithDevice verifies the identity token and returns the caller's account,
// requiring deviceID to be associated with it in any state. A missing account
// and a missing device are distinct failures.
func (s *Service) GetWithDevice(ctx context.Context, idToken, deviceID string) (account.Account, error) {
	accountID, err := s.verifier.Subject(idToken)
	if err != nil {
		return account.Account{}, err
	}

	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return account.Account{}, err
	}
	if _, ok := acct.Device(deviceID); !ok {
		return account.Account{}, apperrors.DeviceMismatch(
			fmt.Sprintf("device %s is not associated with account %s", deviceID, obfuscate.End(accountID, 4)))
	}
	return acct, nil
}

// GetWithActiveDevices returns the account with its device list filtered by
// the active flag. No token is involved; the caller supplies the account id.
func (s *Service) GetWithActiveDevices(ctx context.Context, accountID string, active bool) (account.Account, error) {
	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return account.Account{}, err
	}
	return acct.FilterDevices(active), nil
}

// GetProfile verifies the identity token, requires deviceID to be ACTIVE on
// the caller's account, then resolves the partner profile cache-first.
func (s *Service) GetProfile(ctx context.Context, idToken, deviceID string) (ProfileView, error) {
	accountID, err := s.verifier.Subject(idToken)
	if err != nil {
		return ProfileView{}, err
	}

	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return ProfileView{}, apperrors.DeviceMismatch(
				fmt.Sprintf("no active device %s for account %s", deviceID, obfuscate.End(accountID, 4)))
		}
		return ProfileView{}, err
	}
	dev, ok := acct.ActiveDevice(deviceID)
	if !ok {
		return ProfileView{}, apperrors.DeviceMismatch(
			fmt.Sprintf("no active device %s for account %s", deviceID, obfuscate.End(accountID, 4)))
	}

	snap, hit, err := s.cache.Get(ctx, accountID)
	if err != nil {
		s.log.WithError(err).Warn("profile cache read failed")
		hit = false
	}
	if hit {
		metrics.ProfileCacheHit()
	} else {
		metrics.ProfileCacheMiss()
		snap, err = s.partner.FetchProfile(ctx, accountID)
		if err != nil {
			return ProfileView{}, err
		}
		if err := s.cache.Put(ctx, snap); err != nil {
			// A cold cache is only a latency problem.
			s.log.WithError(err).Warn("profile cache write failed")
		}
	}

	return ProfileView{
		ID:          snap.AccountID,
		Email:       snap.Email,
		Firstname:   snap.FirstName,
		Lastname:    snap.LastName,
		Birthdate:   snap.Birthdate,
		PhoneNumber: snap.MobileNumber,
		Device:      dev,
	}, nil
}

// Create provisions a new partner account.
func (s *Service) Create(ctx context.Context, req partner.CreateAccountRequest, language string) error {
	if err := s.partner.CreateAccount(ctx, req, false, language); err != nil {
		return err
	}
	s.log.WithField("email", obfuscate.Email(req.Email)).Info("partner account created")
	return nil
}

// Migrate provisions a partner account flagged as migrated from the legacy
// user base.
func (s *Service) Migrate(ctx context.Context, req partner.CreateAccountRequest, language string) error {
	if err := s.partner.CreateAccount(ctx, req, true, language); err != nil {
		return err
	}
	s.log.WithField("email", obfuscate.Email(req.Email)).Info("partner account migrated")
	return nil
}
