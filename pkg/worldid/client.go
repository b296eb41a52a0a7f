// Package worldid is a stateless client for the World ID identity provider:
// authorization code exchange, user info and zero-knowledge proof
// verification. It performs no retries and keeps no state between calls.
package worldid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pawaret/worldgate/pkg/metrics"
	"github.com/pawaret/worldgate/pkg/oauth2"
)

const (
	DefaultAuthorizeURL = "https://id.worldcoin.org/authorize"
	DefaultTokenURL     = "https://id.worldcoin.org/token"
	DefaultUserInfoURL  = "https://id.worldcoin.org/userinfo"
	DefaultVerifyURL    = "https://developer.worldcoin.org/api/v2/verify"
)

const (
	callToken    = "token"
	callUserInfo = "userinfo"
	callVerify   = "verify"
)

const maxResponseSize = 1 << 20

type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	UserInfoURL  string
	VerifyURL    string
	// Timeout bounds every single provider call. Zero leaves only the
	// caller's context in charge.
	Timeout   time.Duration
	UserAgent string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	metrics    *metrics.Metrics
}

func NewClient(cfg Config, httpClient *http.Client, m *metrics.Metrics) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = DefaultUserInfoURL
	}
	if cfg.VerifyURL == "" {
		cfg.VerifyURL = DefaultVerifyURL
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		metrics:    m,
	}
}

// ExchangeCode trades a single-use authorization code for an access token.
// The client secret travels in the form body and never leaves this process
// otherwise.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*oauth2.TokenResponse, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	params := url.Values{}
	params.Set("grant_type", string(oauth2.GrantTypeAuthorizationCode))
	params.Set("client_id", c.cfg.ClientID)
	params.Set("client_secret", c.cfg.ClientSecret)
	params.Set("code", code)
	params.Set("redirect_uri", redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, newError(KindTokenExchange, 0, fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	status, body, err := c.do(req, callToken)
	if err != nil {
		return nil, newError(KindTokenExchange, status, err)
	}
	if !isSuccess(status) {
		return nil, newError(KindTokenExchange, status, parseErrorResponse(status, body))
	}

	var token oauth2.TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, newError(KindTokenExchange, status, fmt.Errorf("decode token response: %w", err))
	}
	if token.AccessToken == "" {
		return nil, newError(KindTokenExchange, status, fmt.Errorf("token response without access_token"))
	}

	return &token, nil
}

// FetchUserInfo reads the claims of the user the access token was issued for.
func (c *Client) FetchUserInfo(ctx context.Context, accessToken string) (*Claims, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.UserInfoURL, nil)
	if err != nil {
		return nil, newError(KindUserInfo, 0, fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	status, body, err := c.do(req, callUserInfo)
	if err != nil {
		return nil, newError(KindUserInfo, status, err)
	}
	if !isSuccess(status) {
		return nil, newError(KindUserInfo, status, parseErrorResponse(status, body))
	}

	var claims Claims
	if err := json.Unmarshal(body, &claims); err != nil {
		return nil, newError(KindUserInfo, status, fmt.Errorf("decode user info: %w", err))
	}
	if claims.Subject == "" {
		return nil, newError(KindUserInfo, status, fmt.Errorf("user info without sub"))
	}

	return &claims, nil
}

// VerifyProof submits a proof to the per-client verification path.
//
// A 400 response is authoritative: its body becomes the rejected outcome as
// is, so provider diagnostics such as "detail" reach the caller. Any other
// non-2xx status or transport failure is returned as an *Error.
func (c *Client) VerifyProof(ctx context.Context, proof ProofRequest) (*ProofOutcome, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	endpoint, err := url.JoinPath(c.cfg.VerifyURL, c.cfg.ClientID)
	if err != nil {
		return nil, newError(KindProofVerification, 0, fmt.Errorf("build verify url: %w", err))
	}

	payload, err := json.Marshal(proof)
	if err != nil {
		return nil, newError(KindProofVerification, 0, fmt.Errorf("encode proof: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, newError(KindProofVerification, 0, fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	status, body, err := c.do(req, callVerify)
	if err != nil {
		return nil, newError(KindProofVerification, status, err)
	}

	switch {
	case isSuccess(status):
		var res verifyResponse
		if err := json.Unmarshal(body, &res); err != nil {
			return nil, newError(KindProofVerification, status, fmt.Errorf("decode verify response: %w", err))
		}
		if !res.Success {
			rejection := res.rejection()
			if rejection.Message == "" {
				rejection.Message = "Proof verification failed"
			}
			return Rejected(rejection), nil
		}
		return Verified(res.verification()), nil

	case status == http.StatusBadRequest:
		var res verifyResponse
		if err := json.Unmarshal(body, &res); err != nil {
			return nil, newError(KindProofVerification, status, fmt.Errorf("decode verify error: %w", err))
		}
		return Rejected(res.rejection()), nil

	default:
		return nil, newError(KindProofVerification, status, fmt.Errorf("unexpected status code: %d", status))
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.Timeout)
}

// do sends the request and reads the whole (bounded) body.
func (c *Client) do(req *http.Request, call string) (int, []byte, error) {
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveProviderCall(call, 0, time.Since(start))
		return 0, nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	c.metrics.ObserveProviderCall(call, resp.StatusCode, time.Since(start))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
