// Package mongodb implements the account store on MongoDB. Account documents
// live in the accounts collection, keyed by the identity subject.
package mongodb

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jerome-fosse/tokens-api/internal/app/domain/account"
	"github.com/jerome-fosse/tokens-api/internal/app/storage"
	apperrors "github.com/jerome-fosse/tokens-api/internal/errors"
	"github.com/jerome-fosse/tokens-api/pkg/logger"
)

const collectionName = "accounts"

// Store is a MongoDB-backed account store.
type Store struct {
	accounts *mongo.Collection
	timeout  time.Duration
	log      *logger.Logger
	now      func() time.Time
}

var _ storage.AccountStore = (*Store)(nil)

// New creates a store using the given database. Every operation runs under
// the given timeout in addition to whatever deadline the caller's context
// carries.
func New(db *mongo.Database, timeout time.Duration, log *logger.Logger) *Store {
	if log == nil {
		log = logger.NewDefault("mongodb")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Store{
		accounts: db.Collection(collectionName),
		timeout:  timeout,
		log:      log,
		now:      time.Now,
	}
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) GetAccount(ctx context.Context, id string) (account.Account, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var acct account.Account
	err := s.accounts.FindOne(ctx, bson.M{"_id": id}).Decode(&acct)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return account.Account{}, apperrors.AccountNotFound(id)
	}
	if err != nil {
		return account.Account{}, fmt.Errorf("find account %s: %w", id, err)
	}
	return acct, nil
}

func (s *Store) SaveAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.accounts.ReplaceOne(ctx, bson.M{"_id": acct.ID}, acct, options.Replace().SetUpsert(true))
	if err != nil {
		return account.Account{}, fmt.Errorf("save account %s: %w", acct.ID, err)
	}
	return acct, nil
}

// UpsertDevice reads, mutates and rewrites the whole document. Concurrent
// registrations resolve last-write-wins, which is what the reconciliation
// protocol expects.
func (s *Store) UpsertDevice(ctx context.Context, accountID, deviceID string) (account.Account, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	now := s.now().UTC()

	var acct account.Account
	err := s.accounts.FindOne(ctx, bson.M{"_id": accountID}).Decode(&acct)
	switch {
	case stderrors.Is(err, mongo.ErrNoDocuments):
		acct = account.New(accountID, deviceID, now)
	case err != nil:
		return account.Account{}, fmt.Errorf("find account %s: %w", accountID, err)
	default:
		acct = acct.UpsertDevice(deviceID, now)
	}

	if _, err := s.accounts.ReplaceOne(ctx, bson.M{"_id": accountID}, acct, options.Replace().SetUpsert(true)); err != nil {
		return account.Account{}, fmt.Errorf("upsert device %s for account %s: %w", deviceID, accountID, err)
	}
	s.log.WithField("account_id", accountID).WithField("device_id", deviceID).Debug("device upserted")
	return acct, nil
}

func (s *Store) DeactivateDeviceElsewhere(ctx context.Context, deviceID, excludeAccountID string) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.accounts.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$ne": excludeAccountID}, "devices.deviceId": deviceID},
		bson.M{"$set": bson.M{"devices.$.active": false}},
	)
	if err != nil {
		return 0, fmt.Errorf("deactivate device %s elsewhere: %w", deviceID, err)
	}
	s.log.WithField("device_id", deviceID).
		WithField("exclude_account_id", excludeAccountID).
		WithField("modified", res.ModifiedCount).
		Debug("device deactivated on other accounts")
	return res.ModifiedCount, nil
}

func (s *Store) DeactivateDevice(ctx context.Context, accountID, deviceID string) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.accounts.UpdateOne(ctx,
		bson.M{
			"_id":     accountID,
			"devices": bson.M{"$elemMatch": bson.M{"deviceId": deviceID, "active": true}},
		},
		bson.M{"$set": bson.M{"devices.$.active": false}},
	)
	if err != nil {
		return 0, fmt.Errorf("deactivate device %s for account %s: %w", deviceID, accountID, err)
	}
	return res.ModifiedCount, nil
}

func (s *Store) SetMaasToken(ctx context.Context, accountID, deviceID, token string) (account.Account, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var acct account.Account
	err := s.accounts.FindOne(ctx, bson.M{"_id": accountID}).Decode(&acct)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return account.Account{}, apperrors.AccountNotFound(accountID)
	}
	if err != nil {
		return account.Account{}, fmt.Errorf("find account %s: %w", accountID, err)
	}

	acct = acct.WithMaasToken(deviceID, token)
	if _, err := s.accounts.ReplaceOne(ctx, bson.M{"_id": accountID}, acct); err != nil {
		return account.Account{}, fmt.Errorf("save maas token for account %s: %w", accountID, err)
	}
	return acct, nil
}

// Connect opens a client, pings the server and returns the database handle.
func Connect(ctx context.Context, uri, database string, timeout time.Duration) (*mongo.Database, func(context.Context) error, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return client.Database(database), client.Disconnect, nil
}
