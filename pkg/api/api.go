// Package api exposes the login and proof verification flows over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pawaret/worldgate/pkg/handoff"
	"github.com/pawaret/worldgate/pkg/login"
	"github.com/pawaret/worldgate/pkg/proof"
	"github.com/pawaret/worldgate/pkg/worldid"
)

type Authenticator interface {
	AuthorizationURL(redirectURI, state string) (string, error)
	CompleteLogin(ctx context.Context, code, redirectURI string) login.Result
}

type ProofVerifier interface {
	Verify(ctx context.Context, sub proof.Submission) (*worldid.ProofOutcome, error)
}

type Server struct {
	login          Authenticator
	proofs         ProofVerifier
	handoff        *handoff.Service
	redirectURI    string
	enforceState   bool
	metricsHandler http.Handler
}

type Option func(*Server) error

func WithAuthenticator(a Authenticator) Option {
	return func(s *Server) error {
		s.login = a
		return nil
	}
}

func WithProofVerifier(v ProofVerifier) Option {
	return func(s *Server) error {
		s.proofs = v
		return nil
	}
}

func WithHandoff(h *handoff.Service) Option {
	return func(s *Server) error {
		s.handoff = h
		return nil
	}
}

// WithRedirectURI sets the callback URI registered with the provider.
func WithRedirectURI(uri string) Option {
	return func(s *Server) error {
		if uri == "" {
			return errors.New("redirect uri must not be empty")
		}
		s.redirectURI = uri
		return nil
	}
}

// WithStateEnforcement controls whether the callback rejects a state value
// it did not issue. When off, the state is only logged.
func WithStateEnforcement(enforce bool) Option {
	return func(s *Server) error {
		s.enforceState = enforce
		return nil
	}
}

func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) error {
		s.metricsHandler = h
		return nil
	}
}

func NewServer(opts ...Option) (*Server, error) {
	s := &Server{enforceState: true}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.login == nil {
		return nil, errors.New("authenticator is required")
	}
	if s.proofs == nil {
		return nil, errors.New("proof verifier is required")
	}
	if s.handoff == nil {
		return nil, errors.New("handoff service is required")
	}
	if s.redirectURI == "" {
		return nil, errors.New("redirect uri is required")
	}

	return s, nil
}

func (s *Server) MountRoutes(group *echo.Group) {
	group.POST("/api/verify-world-id", s.verifyWorldID)
	group.POST("/api/verify-proof", s.verifyProof)
	group.GET("/auth/world-id", s.authorize)
	group.GET("/callback/world-id", s.callback)
	group.GET("/callback/worldcoin", s.callback)
	group.GET("/health", s.health)

	if s.metricsHandler != nil {
		group.GET("/metrics", echo.WrapHandler(s.metricsHandler))
	}
}
