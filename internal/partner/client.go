// Package partner talks to the external identity provider ("Connect"). Every
// method either succeeds or returns a classified error carrying the partner's
// status code and error description.
package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jerome-fosse/tokens-api/internal/app/domain/profile"
	"github.com/jerome-fosse/tokens-api/internal/app/metrics"
	apperrors "github.com/jerome-fosse/tokens-api/internal/errors"
	"github.com/jerome-fosse/tokens-api/pkg/logger"
	"github.com/jerome-fosse/tokens-api/pkg/obfuscate"
)

// Name is the partner identifier carried by classified errors.
const Name = "Connect"

// Client is the partner gateway boundary.
type Client interface {
	// CreateAccount creates (or migrates) a partner account.
	CreateAccount(ctx context.Context, req CreateAccountRequest, migrated bool, language string) error

	// InvalidateRefreshToken revokes a refresh token on partner side.
	InvalidateRefreshToken(ctx context.Context, refreshToken string) error

	// ValidateAccessToken introspects an access token.
	ValidateAccessToken(ctx context.Context, accessToken string) (TokenInfo, error)

	// FetchProfile returns the partner's profile for the account.
	FetchProfile(ctx context.Context, accountID string) (profile.Snapshot, error)
}

// Config holds the partner endpoints and credentials.
type Config struct {
	// AccountAPIURL is the base URL of the account API.
	AccountAPIURL string
	// OpenAMAPIURL is the base URL of the token introspection API.
	OpenAMAPIURL string
	User         string
	Password     string
	Timeout      time.Duration

	// Account-creation callback URLs, passed through as query parameters.
	CallbackURL       string
	CallbackMobileURL string
	SendNotifEmail    bool
}

// HTTPClient is the production implementation of Client.
type HTTPClient struct {
	cfg  Config
	http *http.Client
	log  *logger.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds a client with its own timeout-bounded http.Client.
func NewHTTPClient(cfg Config, log *logger.Logger) *HTTPClient {
	if log == nil {
		log = logger.NewDefault("partner")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

func (c *HTTPClient) CreateAccount(ctx context.Context, req CreateAccountRequest, migrated bool, language string) error {
	query := url.Values{}
	query.Set("send_notif_email", strconv.FormatBool(c.cfg.SendNotifEmail))
	query.Set("callback", c.cfg.CallbackURL)
	query.Set("callback_mobile", c.cfg.CallbackMobileURL)
	query.Set("is_migrated", strconv.FormatBool(migrated))

	body, err := json.Marshal(req)
	if err != nil {
		return apperrors.Internal("encode create account request", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, c.cfg.AccountAPIURL+"?"+query.Encode(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	if language != "" {
		httpReq.Header.Set("Accept-Language", language)
	}

	resp, raw, err := c.do("create_account", httpReq)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return apperrors.Partner("CONNECT_CREATE_ACCOUNT_ERROR", Name, resp.StatusCode,
			fmt.Sprintf("unable to create partner account for email=%s %s", obfuscate.Email(req.Email), string(raw)))
	}
	return nil
}

func (c *HTTPClient) InvalidateRefreshToken(ctx context.Context, refreshToken string) error {
	c.log.WithField("refresh_token", obfuscate.End(refreshToken, 10)).Debug("calling partner logout")

	body, err := json.Marshal(invalidTokenBody{RefreshToken: refreshToken})
	if err != nil {
		return apperrors.Internal("encode logout request", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, c.cfg.AccountAPIURL+"/logout", bytes.NewReader(body))
	if err != nil {
		return err
	}

	resp, raw, err := c.do("invalidate_refresh_token", httpReq)
	if err != nil {
		return err
	}
	switch {
	case resp.StatusCode == http.StatusBadGateway:
		msg := "invalid or expired refresh token"
		if len(raw) > 0 {
			msg = fmt.Sprintf("%s: response=%s", msg, string(raw))
		}
		return apperrors.InvalidRefreshToken(resp.StatusCode, msg)
	case resp.StatusCode >= 400:
		msg := "unexpected error"
		if len(raw) > 0 {
			msg = fmt.Sprintf("%s: response=%s", msg, string(raw))
		}
		return apperrors.Partner("CONNECT_INVALIDATE_REFRESH_TOKEN_UNEXPECTED_ERROR", Name, resp.StatusCode, msg)
	}
	return nil
}

func (c *HTTPClient) ValidateAccessToken(ctx context.Context, accessToken string) (TokenInfo, error) {
	c.log.WithField("access_token", obfuscate.End(accessToken, 10)).Debug("calling partner tokeninfo")

	query := url.Values{"access_token": []string{accessToken}}
	httpReq, err := c.newRequest(ctx, http.MethodGet, c.cfg.OpenAMAPIURL+"/tokeninfo?"+query.Encode(), nil)
	if err != nil {
		return TokenInfo{}, err
	}

	resp, raw, err := c.do("validate_access_token", httpReq)
	if err != nil {
		return TokenInfo{}, err
	}
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		var apiErr apiError
		description := "CONNECT_TOKEN_INFO_BAD_REQUEST"
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Description != "" {
			description = apiErr.Description
		}
		return TokenInfo{}, apperrors.AccessToken(resp.StatusCode, description)
	case resp.StatusCode >= 400:
		return TokenInfo{}, apperrors.AccessToken(resp.StatusCode, "CONNECT_TOKEN_INFO_UNEXPECTED_ERROR")
	}

	var info TokenInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return TokenInfo{}, apperrors.Partner("CONNECT_TOKEN_INFO_UNEXPECTED_ERROR", Name, resp.StatusCode,
			fmt.Sprintf("undecodable tokeninfo response: %v", err))
	}
	return info, nil
}

func (c *HTTPClient) FetchProfile(ctx context.Context, accountID string) (profile.Snapshot, error) {
	c.log.WithField("account_id", accountID).Debug("calling partner account info")

	httpReq, err := c.newRequest(ctx, http.MethodGet, c.cfg.AccountAPIURL+"/"+url.PathEscape(accountID), nil)
	if err != nil {
		return profile.Snapshot{}, err
	}

	resp, raw, err := c.do("fetch_profile", httpReq)
	if err != nil {
		return profile.Snapshot{}, err
	}
	if resp.StatusCode >= 400 {
		return profile.Snapshot{}, apperrors.Partner("CONNECT_GET_ACCOUNT_INFO_ERROR", Name, resp.StatusCode,
			fmt.Sprintf("unexpected response while retrieving account info for iuc=%s, response=%s", accountID, string(raw)))
	}

	var snap profile.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return profile.Snapshot{}, apperrors.Partner("CONNECT_GET_ACCOUNT_INFO_ERROR", Name, resp.StatusCode,
			fmt.Sprintf("undecodable account info response: %v", err))
	}
	return snap, nil
}

func (c *HTTPClient) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, apperrors.Internal("build partner request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.User, c.cfg.Password)
	return req, nil
}

// do executes the request, reads the whole body and records metrics. Network
// failures and timeouts come back as partner errors with status 0 so callers
// see one failure shape for the whole boundary.
func (c *HTTPClient) do(operation string, req *http.Request) (*http.Response, []byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObservePartnerRequest(operation, 0, time.Since(start))
		return nil, nil, apperrors.Partner("CONNECT_UNREACHABLE", Name, 0, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	metrics.ObservePartnerRequest(operation, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, nil, apperrors.Partner("CONNECT_UNREACHABLE", Name, resp.StatusCode,
			fmt.Sprintf("read response body: %v", err))
	}
	return resp, raw, nil
}
