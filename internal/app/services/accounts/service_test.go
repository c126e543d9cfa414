package accounts

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jerome-fosse/tokens-api/internal/app/domain/profile"
	"github.com/jerome-fosse/tokens-api/internal/app/storage/memory"
	"github.com/jerome-fosse/tokens-api/internal/auth"
	apperrors "github.com/jerome-fosse/tokens-api/internal/errors"
	"github.com/jerome-fosse/tokens-api/internal/partner"
	"github.com/jerome-fosse/tokens-api/pkg/testutil"
)

type fakePartner struct {
	fetchCalls  int
	fetchErr    error
	snapshot    profile.Snapshot
	createCalls int
	migrated    []bool
}

func (f *fakePartner) CreateAccount(_ context.Context, _ partner.CreateAccountRequest, migrated bool, _ string) error {
	f.createCalls++
	f.migrated = append(f.migrated, migrated)
	return nil
}

func (f *fakePartner) InvalidateRefreshToken(context.Context, string) error { return nil }

func (f *fakePartner) ValidateAccessToken(context.Context, string) (partner.TokenInfo, error) {
	return partner.TokenInfo{}, nil
}

func (f *fakePartner) FetchProfile(context.Context, string) (profile.Snapshot, error) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return profile.Snapshot{}, f.fetchErr
	}
	return f.snapshot, nil
}

type fixture struct {
	signer  *testutil.TokenSigner
	store   *memory.Store
	cache   *memory.ProfileCache
	partner *fakePartner
}

func newFixture(t *testing.T) (*Service, *fixture) {
	t.Helper()
	f := &fixture{
		signer:  testutil.NewTokenSigner(t),
		store:   memory.New(),
		cache:   memory.NewProfileCache(time.Minute),
		partner: &fakePartner{},
	}
	verifier, err := auth.NewVerifier(f.signer.PublicPEM(t))
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return New(verifier, f.store, f.cache, f.partner, nil), f
}

func registerDevice(t *testing.T, f *fixture, accountID, deviceID string) {
	t.Helper()
	if _, err := f.store.UpsertDevice(context.Background(), accountID, deviceID); err != nil {
		t.Fatalf("upsert device: %v", err)
	}
}

func TestGetWithDeviceUnknownAccount(t *testing.T) {
	svc, f := newFixture(t)

	_, err := svc.GetWithDevice(context.Background(), f.signer.ValidToken(t, "ghost"), "d1")
	if !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestGetWithDeviceUnknownDevice(t *testing.T) {
	svc, f := newFixture(t)
	registerDevice(t, f, "u1", "d1")

	_, err := svc.GetWithDevice(context.Background(), f.signer.ValidToken(t, "u1"), "other")
	if !apperrors.IsKind(err, apperrors.KindDeviceMismatch) {
		t.Fatalf("expected device-mismatch, got %v", err)
	}
}

func TestGetWithDeviceAcceptsInactiveDevice(t *testing.T) {
	svc, f := newFixture(t)
	ctx := context.Background()
	registerDevice(t, f, "u1", "d1")
	if _, err := f.store.DeactivateDevice(ctx, "u1", "d1"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	acct, err := svc.GetWithDevice(ctx, f.signer.ValidToken(t, "u1"), "d1")
	if err != nil {
		t.Fatalf("get with device: %v", err)
	}
	if acct.ID != "u1" {
		t.Fatalf("unexpected account: %+v", acct)
	}
}

func TestGetWithActiveDevices(t *testing.T) {
	svc, f := newFixture(t)
	ctx := context.Background()
	registerDevice(t, f, "u1", "d1")
	registerDevice(t, f, "u1", "d2")
	if _, err := f.store.DeactivateDevice(ctx, "u1", "d1"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	active, err := svc.GetWithActiveDevices(ctx, "u1", true)
	if err != nil {
		t.Fatalf("active devices: %v", err)
	}
	if len(active.Devices) != 1 || active.Devices[0].DeviceID != "d2" {
		t.Fatalf("unexpected active devices: %+v", active.Devices)
	}

	inactive, err := svc.GetWithActiveDevices(ctx, "u1", false)
	if err != nil {
		t.Fatalf("inactive devices: %v", err)
	}
	if len(inactive.Devices) != 1 || inactive.Devices[0].DeviceID != "d1" {
		t.Fatalf("unexpected inactive devices: %+v", inactive.Devices)
	}
}

func TestGetProfileRequiresActiveDevice(t *testing.T) {
	svc, f := newFixture(t)
	ctx := context.Background()

	// Missing account, inactive device and unknown device all look the same
	// to the caller.
	_, err := svc.GetProfile(ctx, f.signer.ValidToken(t, "ghost"), "d1")
	if !apperrors.IsKind(err, apperrors.KindDeviceMismatch) {
		t.Fatalf("missing account: expected device-mismatch, got %v", err)
	}

	registerDevice(t, f, "u1", "d1")
	if _, err := f.store.DeactivateDevice(ctx, "u1", "d1"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err = svc.GetProfile(ctx, f.signer.ValidToken(t, "u1"), "d1")
	if !apperrors.IsKind(err, apperrors.KindDeviceMismatch) {
		t.Fatalf("inactive device: expected device-mismatch, got %v", err)
	}

	_, err = svc.GetProfile(ctx, f.signer.ValidToken(t, "u1"), "never-seen")
	if !apperrors.IsKind(err, apperrors.KindDeviceMismatch) {
		t.Fatalf("unknown device: expected device-mismatch, got %v", err)
	}
	if f.partner.fetchCalls != 0 {
		t.Fatal("partner must not be called without an active device")
	}
}

func TestGetProfileCachesPartnerResponse(t *testing.T) {
	svc, f := newFixture(t)
	ctx := context.Background()
	registerDevice(t, f, "u1", "d1")
	f.partner.snapshot = profile.Snapshot{
		AccountID:    "u1",
		Email:        "jdoe@example.com",
		FirstName:    "John",
		LastName:     "Doe",
		MobileNumber: "+33600000000",
	}

	first, err := svc.GetProfile(ctx, f.signer.ValidToken(t, "u1"), "d1")
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	second, err := svc.GetProfile(ctx, f.signer.ValidToken(t, "u1"), "d1")
	if err != nil {
		t.Fatalf("second read: %v", err)
	}

	if f.partner.fetchCalls != 1 {
		t.Fatalf("expected a single partner fetch, got %d", f.partner.fetchCalls)
	}
	if first.Email != "jdoe@example.com" || second.Email != first.Email {
		t.Fatalf("unexpected profiles: %+v vs %+v", first, second)
	}
	if second.Device.DeviceID != "d1" || !second.Device.Active {
		t.Fatalf("unexpected device in view: %+v", second.Device)
	}
}

func TestGetProfilePartnerFailure(t *testing.T) {
	svc, f := newFixture(t)
	registerDevice(t, f, "u1", "d1")
	f.partner.fetchErr = apperrors.Partner("CONNECT_GET_ACCOUNT_INFO_ERROR", partner.Name, http.StatusServiceUnavailable, "upstream down")

	_, err := svc.GetProfile(context.Background(), f.signer.ValidToken(t, "u1"), "d1")
	e := apperrors.Get(err)
	if e == nil || e.Kind != apperrors.KindPartner {
		t.Fatalf("expected partner kind, got %v", err)
	}
	if e.HTTPStatus() != http.StatusServiceUnavailable {
		t.Fatalf("partner status must be preserved, got %d", e.HTTPStatus())
	}
}

func TestCreateAndMigrate(t *testing.T) {
	svc, f := newFixture(t)
	req := partner.CreateAccountRequest{Email: "jdoe@example.com", Password: "s3cret"}

	if err := svc.Create(context.Background(), req, "fr"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Migrate(context.Background(), req, "fr"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if f.partner.createCalls != 2 {
		t.Fatalf("expected 2 partner calls, got %d", f.partner.createCalls)
	}
	if f.partner.migrated[0] || !f.partner.migrated[1] {
		t.Fatalf("unexpected migrated flags: %v", f.partner.migrated)
	}
}
