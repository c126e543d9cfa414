// Package app wires the domain services of the tokens API together.
package app

import (
	"time"

	"github.com/jerome-fosse/tokens-api/internal/app/services/accounts"
	"github.com/jerome-fosse/tokens-api/internal/app/services/tokens"
	"github.com/jerome-fosse/tokens-api/internal/app/storage"
	"github.com/jerome-fosse/tokens-api/internal/app/storage/memory"
	"github.com/jerome-fosse/tokens-api/internal/auth"
	"github.com/jerome-fosse/tokens-api/internal/partner"
	"github.com/jerome-fosse/tokens-api/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementations, which is what the tests and local development
// run against.
type Stores struct {
	Accounts storage.AccountStore
	Profiles storage.ProfileCache
}

// Options carries the feature switches of the application.
type Options struct {
	// AccessTokenValidation makes device registration introspect the access
	// token with the partner before touching the store.
	AccessTokenValidation bool

	// ProfileCacheTTL bounds the default in-memory profile cache. Ignored
	// when a ProfileCache is provided through Stores.
	ProfileCacheTTL time.Duration
}

// Application ties the domain services together.
type Application struct {
	log *logger.Logger

	Tokens   *tokens.Service
	Accounts *accounts.Service
}

// New builds a fully initialised application with the provided stores.
func New(verifier *auth.Verifier, client partner.Client, stores Stores, opts Options, log *logger.Logger) *Application {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if stores.Accounts == nil {
		stores.Accounts = memory.New()
	}
	if stores.Profiles == nil {
		ttl := opts.ProfileCacheTTL
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		stores.Profiles = memory.NewProfileCache(ttl)
	}

	return &Application{
		log:      log,
		Tokens:   tokens.New(verifier, stores.Accounts, client, opts.AccessTokenValidation, log),
		Accounts: accounts.New(verifier, stores.Accounts, stores.Profiles, client, log),
	}
}
