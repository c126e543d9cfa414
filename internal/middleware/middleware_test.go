package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/jerome-fosse/tokens-api/internal/app/domain/profile"
	apperrors "github.com/jerome-fosse/tokens-api/internal/errors"
	"github.com/jerome-fosse/tokens-api/internal/partner"
)

type fakePartner struct {
	validateCalls int
	validateErr   error
}

func (f *fakePartner) CreateAccount(context.Context, partner.CreateAccountRequest, bool, string) error {
	return nil
}

func (f *fakePartner) InvalidateRefreshToken(context.Context, string) error { return nil }

func (f *fakePartner) ValidateAccessToken(context.Context, string) (partner.TokenInfo, error) {
	f.validateCalls++
	return partner.TokenInfo{}, f.validateErr
}

func (f *fakePartner) FetchProfile(context.Context, string) (profile.Snapshot, error) {
	return profile.Snapshot{}, nil
}

func okRouter(mw ...mux.MiddlewareFunc) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/protected", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	r.HandleFunc("/open", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	r.Use(mw...)
	return r
}

func TestRequireIDToken(t *testing.T) {
	router := okRouter(RequireIDToken("GET /protected"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/protected", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing header: expected 400, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-Id-Token", "token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("with header: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/open", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("open route: expected 200, got %d", rec.Code)
	}
}

func TestAccessTokenValidationDisabled(t *testing.T) {
	client := &fakePartner{}
	router := okRouter(AccessTokenValidation(client, false, nil, "GET /protected"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/protected", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected pass-through, got %d", rec.Code)
	}
	if client.validateCalls != 0 {
		t.Fatal("partner must not be called when the filter is disabled")
	}
}

func TestAccessTokenValidationEnabled(t *testing.T) {
	client := &fakePartner{}
	router := okRouter(AccessTokenValidation(client, true, nil, "GET /protected"))

	// Missing bearer token.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/protected", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing bearer: expected 400, got %d", rec.Code)
	}

	// Valid token passes.
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer access-1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid bearer: expected 200, got %d", rec.Code)
	}
	if client.validateCalls != 1 {
		t.Fatalf("expected 1 validation call, got %d", client.validateCalls)
	}

	// Rejected token surfaces the partner's classification.
	client.validateErr = apperrors.AccessToken(http.StatusBadRequest, "Access token expired")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("rejected bearer: expected 400, got %d", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	router := okRouter(rl.Handler)

	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rec.Code)
	}

	// Another client has its own bucket.
	other := httptest.NewRequest(http.MethodGet, "/open", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Fatalf("other client: expected 200, got %d", rec.Code)
	}
}
