// Package tokens implements the token-centric operations of the gateway:
// device registration, maas-token storage and logout.
package tokens

import (
	"context"
	"fmt"

	"github.com/jerome-fosse/tokens-api/internal/app/domain/account"
	"github.com/jerome-fosse/tokens-api/internal/app/metrics"
	"github.com/jerome-fosse/tokens-api/internal/app/storage"
	"github.com/jerome-fosse/tokens-api/internal/auth"
	"github.com/jerome-fosse/tokens-api/internal/partner"
	"github.com/jerome-fosse/tokens-api/pkg/logger"
	"github.com/jerome-fosse/tokens-api/pkg/obfuscate"
)

// Service composes the verifier, the account store and the partner client.
type Service struct {
	verifier *auth.Verifier
	store    storage.AccountStore
	partner  partner.Client
	log      *logger.Logger

	// accessTokenValidation gates the partner introspection call during
	// registration. Passed explicitly so tests can exercise both branches.
	accessTokenValidation bool
}

// New constructs the service.
func New(verifier *auth.Verifier, store storage.AccountStore, client partner.Client, accessTokenValidation bool, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("tokens")
	}
	return &Service{
		verifier:              verifier,
		store:                 store,
		partner:               client,
		accessTokenValidation: accessTokenValidation,
		log:                   log,
	}
}

// Register binds a device to the account asserted by the id token.
//
// The reconciliation runs as two independent idempotent steps in a fixed
// order: deactivate the device everywhere else, then upsert it on the target
// account. The steps are not atomic; when two registrations race, the last
// upsert wins and a stale deactivation cannot undo it.
func (s *Service) Register(ctx context.Context, idToken, accessToken, deviceID string) (account.Account, error) {
	accountID, err := s.verifier.Subject(idToken)
	if err != nil {
		s.log.WithError(err).
			WithField("id_token", obfuscate.Begin(idToken, 20)).
			Warn("unable to verify id token")
		return account.Account{}, err
	}

	if s.accessTokenValidation {
		s.log.WithField("access_token", obfuscate.End(accessToken, 10)).Debug("validating access token with partner")
		if _, err := s.partner.ValidateAccessToken(ctx, accessToken); err != nil {
			return account.Account{}, err
		}
	}

	if _, err := s.store.DeactivateDeviceElsewhere(ctx, deviceID, accountID); err != nil {
		return account.Account{}, fmt.Errorf("deactivate device elsewhere: %w", err)
	}
	acct, err := s.store.UpsertDevice(ctx, accountID, deviceID)
	if err != nil {
		return account.Account{}, fmt.Errorf("upsert device: %w", err)
	}

	metrics.DeviceRegistered()
	s.log.WithField("account_id", accountID).
		WithField("device_id", deviceID).
		Info("device registered")
	return acct, nil
}

// SaveMaasToken stores the partner device token on an existing account. The
// account is never created here; a missing account is a not-found failure.
func (s *Service) SaveMaasToken(ctx context.Context, idToken, deviceID, maasToken string) (account.Account, error) {
	accountID, err := s.verifier.Subject(idToken)
	if err != nil {
		return account.Account{}, err
	}

	s.log.WithField("account_id", accountID).
		WithField("device_id", deviceID).
		WithField("maas_token", obfuscate.End(maasToken, 10)).
		Debug("saving maas token")

	acct, err := s.store.SetMaasToken(ctx, accountID, deviceID, maasToken)
	if err != nil {
		return account.Account{}, err
	}
	return acct, nil
}

// Logout deactivates the device locally and then invalidates the refresh
// token on partner side. The local deactivation is best-effort context; only
// the partner call decides success.
func (s *Service) Logout(ctx context.Context, idToken, refreshToken, deviceID string) error {
	accountID, err := s.verifier.Subject(idToken)
	if err != nil {
		return err
	}

	count, err := s.store.DeactivateDevice(ctx, accountID, deviceID)
	if err != nil {
		return fmt.Errorf("deactivate device: %w", err)
	}
	s.log.WithField("account_id", accountID).
		WithField("device_id", deviceID).
		WithField("devices_modified", count).
		Debug("device deactivated for logout")

	if err := s.partner.InvalidateRefreshToken(ctx, refreshToken); err != nil {
		return err
	}

	metrics.LoggedOut()
	return nil
}
