// Package httpapi exposes the REST surface of the tokens API.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	app "github.com/jerome-fosse/tokens-api/internal/app"
	"github.com/jerome-fosse/tokens-api/internal/app/metrics"
	apperrors "github.com/jerome-fosse/tokens-api/internal/errors"
	"github.com/jerome-fosse/tokens-api/internal/partner"
	"github.com/jerome-fosse/tokens-api/pkg/logger"
)

// HeaderIDToken carries the caller's identity token on read endpoints.
const HeaderIDToken = "X-Id-Token"

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
	log *logger.Logger
}

// NewHandler returns a router exposing the REST API. Middleware is attached
// by the caller.
func NewHandler(application *app.Application, log *logger.Logger) *mux.Router {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/token/register", h.registerToken).Methods(http.MethodPost)
	r.HandleFunc("/token/maas", h.saveMaasToken).Methods(http.MethodPost)
	r.HandleFunc("/connect/logout", h.logout).Methods(http.MethodPost)
	r.HandleFunc("/connect/accounts", h.profile).Methods(http.MethodGet)
	r.HandleFunc("/connect/accounts", h.createAccount).Methods(http.MethodPut)
	r.HandleFunc("/accounts", h.accountByDevice).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{id}", h.accountByID).Methods(http.MethodGet)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return r
}

func (h *handler) registerToken(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		IDToken     string `json:"idToken"`
		AccessToken string `json:"accessToken"`
		DeviceID    string `json:"deviceId"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, apperrors.Validation(err.Error()))
		return
	}
	if payload.IDToken == "" || payload.DeviceID == "" {
		h.writeError(w, apperrors.Validation("idToken and deviceId are required"))
		return
	}

	acct, err := h.app.Tokens.Register(r.Context(), payload.IDToken, payload.AccessToken, payload.DeviceID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (h *handler) saveMaasToken(w http.ResponseWriter, r *http.Request) {
	idToken := r.Header.Get(HeaderIDToken)
	var payload struct {
		DeviceID        string `json:"deviceId"`
		DeviceTokenMaas string `json:"deviceTokenMaas"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, apperrors.Validation(err.Error()))
		return
	}
	if payload.DeviceID == "" {
		h.writeError(w, apperrors.Validation("deviceId is required"))
		return
	}

	if _, err := h.app.Tokens.SaveMaasToken(r.Context(), idToken, payload.DeviceID, payload.DeviceTokenMaas); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		IDToken      string `json:"idToken"`
		RefreshToken string `json:"refreshToken"`
		DeviceID     string `json:"deviceId"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, apperrors.Validation(err.Error()))
		return
	}
	if payload.IDToken == "" || payload.RefreshToken == "" || payload.DeviceID == "" {
		h.writeError(w, apperrors.Validation("idToken, refreshToken and deviceId are required"))
		return
	}

	if err := h.app.Tokens.Logout(r.Context(), payload.IDToken, payload.RefreshToken, payload.DeviceID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *handler) profile(w http.ResponseWriter, r *http.Request) {
	idToken := r.Header.Get(HeaderIDToken)
	deviceID := r.URL.Query().Get("deviceId")
	if deviceID == "" {
		h.writeError(w, apperrors.Validation("deviceId is required"))
		return
	}

	view, err := h.app.Accounts.GetProfile(r.Context(), idToken, deviceID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		Firstname string `json:"firstname"`
		Lastname  string `json:"lastname"`
		Birthdate string `json:"birthdate"`
		Language  string `json:"language"`
		Migrate   bool   `json:"migrate"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, apperrors.Validation(err.Error()))
		return
	}
	if payload.Email == "" || payload.Password == "" {
		h.writeError(w, apperrors.Validation("email and password are required"))
		return
	}

	req := partner.CreateAccountRequest{
		Email:     payload.Email,
		Password:  payload.Password,
		FirstName: payload.Firstname,
		LastName:  payload.Lastname,
		Birthdate: payload.Birthdate,
	}
	var err error
	if payload.Migrate {
		err = h.app.Accounts.Migrate(r.Context(), req, payload.Language)
	} else {
		err = h.app.Accounts.Create(r.Context(), req, payload.Language)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *handler) accountByDevice(w http.ResponseWriter, r *http.Request) {
	idToken := r.Header.Get(HeaderIDToken)
	deviceID := r.URL.Query().Get("deviceId")
	if deviceID == "" {
		h.writeError(w, apperrors.Validation("deviceId is required"))
		return
	}

	acct, err := h.app.Accounts.GetWithDevice(r.Context(), idToken, deviceID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (h *handler) accountByID(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["id"]

	raw := r.URL.Query().Get("active")
	active := true
	if raw != "" {
		parsed, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			h.writeError(w, apperrors.Validation("active must be true or false"))
			return
		}
		active = parsed
	}

	acct, err := h.app.Accounts.GetWithActiveDevices(r.Context(), accountID, active)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ErrorResponse is the wire form of every failure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	e := apperrors.Get(err)
	if e == nil {
		e = apperrors.Internal("", err)
	}
	if e.Kind == apperrors.KindInternal {
		h.log.WithError(err).Error("request failed")
	}
	writeJSON(w, e.HTTPStatus(), ErrorResponse{Error: e.Code, Message: e.Message})
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
