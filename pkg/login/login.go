// Package login drives the authorization code flow against World ID: it
// builds the authorize redirect and, once the user is back with a code,
// exchanges it and fetches the verified claims.
package login

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pawaret/worldgate/pkg/metrics"
	"github.com/pawaret/worldgate/pkg/oauth2"
	"github.com/pawaret/worldgate/pkg/worldid"
)

// Stage marks how far a login attempt got.
type Stage string

const (
	StageIdle           Stage = "idle"
	StageCodeReceived   Stage = "code_received"
	StageTokenExchanged Stage = "token_exchanged"
	StageClaimsFetched  Stage = "claims_fetched"
	StageCompleted      Stage = "completed"
	StageFailed         Stage = "failed"
)

const genericFailure = "Authentication failed"

// Provider is the part of the World ID client a login needs.
type Provider interface {
	ExchangeCode(ctx context.Context, code, redirectURI string) (*oauth2.TokenResponse, error)
	FetchUserInfo(ctx context.Context, accessToken string) (*worldid.Claims, error)
}

type Options struct {
	ClientID     string
	AuthorizeURL string
	// DefaultRedirectURI is used when AuthorizationURL gets no redirect URI.
	DefaultRedirectURI string
	Metrics            *metrics.Metrics
}

// Result is the outcome of one login attempt. User is set only on success.
type Result struct {
	Success       bool            `json:"success"`
	User          *worldid.Claims `json:"user,omitempty"`
	IsOrbVerified bool            `json:"isOrbVerified"`
	Error         string          `json:"error,omitempty"`
	// Stage is the last stage reached, also on failure.
	Stage Stage `json:"-"`
}

type Service struct {
	provider           Provider
	clientID           string
	authorizeURL       string
	defaultRedirectURI string
	metrics            *metrics.Metrics
}

func NewService(provider Provider, opts Options) *Service {
	if opts.AuthorizeURL == "" {
		opts.AuthorizeURL = worldid.DefaultAuthorizeURL
	}
	return &Service{
		provider:           provider,
		clientID:           opts.ClientID,
		authorizeURL:       opts.AuthorizeURL,
		defaultRedirectURI: opts.DefaultRedirectURI,
		metrics:            opts.Metrics,
	}
}

// AuthorizationURL returns the provider authorize URL the browser is sent
// to. An empty redirect URI falls back to the configured default, an empty
// state is left out of the URL.
func (s *Service) AuthorizationURL(redirectURI, state string) (string, error) {
	if redirectURI == "" {
		redirectURI = s.defaultRedirectURI
	}
	if redirectURI == "" {
		return "", errors.New("redirect uri is required")
	}
	return oauth2.AuthCodeURL(
		s.authorizeURL,
		s.clientID,
		redirectURI,
		oauth2.WithState(state),
	)
}

// CompleteLogin exchanges the code and fetches the claims, strictly in that
// order. It never returns an error: every failure becomes an unsuccessful
// Result with a message that is safe to show the caller.
func (s *Service) CompleteLogin(ctx context.Context, code, redirectURI string) Result {
	stage := StageIdle

	if code == "" || redirectURI == "" {
		return s.fail(stage, errors.New("code and redirect uri are required"))
	}
	stage = StageCodeReceived

	token, err := s.provider.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		return s.fail(stage, err)
	}
	if token == nil {
		return s.fail(stage, errors.New("provider returned no token"))
	}
	stage = StageTokenExchanged

	claims, err := s.provider.FetchUserInfo(ctx, token.AccessToken)
	if err != nil {
		return s.fail(stage, err)
	}
	if err := worldid.CheckIDTokenSubject(token, claims); err != nil {
		return s.fail(stage, err)
	}
	stage = StageClaimsFetched
	slog.Debug("World ID claims fetched", "stage", stage, "sub", claims.Subject)

	result := Result{
		Success:       true,
		User:          claims,
		IsOrbVerified: claims.IsOrbVerified(),
		Stage:         StageCompleted,
	}

	s.metrics.LoginCompleted(string(StageCompleted))

	return result
}

// fail logs the cause and reports the stage the attempt stopped at.
func (s *Service) fail(stage Stage, err error) Result {
	slog.Error("World ID login failed", "stage", stage, "error", err)
	s.metrics.LoginCompleted(string(StageFailed))

	return Result{
		Success: false,
		Error:   publicMessage(err),
		Stage:   stage,
	}
}

func publicMessage(err error) string {
	var wErr *worldid.Error
	if errors.As(err, &wErr) && wErr.Message != "" {
		return wErr.Message
	}
	return genericFailure
}
