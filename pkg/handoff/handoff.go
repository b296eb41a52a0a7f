// Package handoff keeps the short-lived server-side state of the redirect
// flow: OAuth state values issued before the authorize redirect, and the
// code/redirect URI pairs parked by the callback until the page claims them
// with a one-time token.
package handoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/ksuid"
)

var ErrNotFound = errors.New("handoff: not found or expired")

const DefaultTTL = 5 * time.Minute

type Entry struct {
	Code        string    `json:"code"`
	RedirectURI string    `json:"redirect_uri"`
	State       string    `json:"state,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store holds one-time values. Take* removes what it returns; a second Take
// for the same key yields ErrNotFound.
type Store interface {
	PutState(ctx context.Context, state string, ttl time.Duration) error
	TakeState(ctx context.Context, state string) error
	PutEntry(ctx context.Context, token string, entry *Entry, ttl time.Duration) error
	TakeEntry(ctx context.Context, token string) (*Entry, error)
}

type Service struct {
	store Store
	ttl   time.Duration
}

func NewService(store Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{store: store, ttl: ttl}
}

// IssueState creates a fresh state value and remembers it until it is
// redeemed or expires.
func (s *Service) IssueState(ctx context.Context) (string, error) {
	state := ksuid.New().String()
	if err := s.store.PutState(ctx, state, s.ttl); err != nil {
		return "", fmt.Errorf("store state: %w", err)
	}
	return state, nil
}

// RedeemState consumes a state value issued by IssueState.
func (s *Service) RedeemState(ctx context.Context, state string) error {
	if state == "" {
		return ErrNotFound
	}
	return s.store.TakeState(ctx, state)
}

// Stash parks the entry and returns the token to claim it with.
func (s *Service) Stash(ctx context.Context, entry Entry) (string, error) {
	if entry.Code == "" || entry.RedirectURI == "" {
		return "", errors.New("handoff: code and redirect uri are required")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	token := ksuid.New().String()
	if err := s.store.PutEntry(ctx, token, &entry, s.ttl); err != nil {
		return "", fmt.Errorf("store entry: %w", err)
	}
	return token, nil
}

// Claim returns the parked entry exactly once.
func (s *Service) Claim(ctx context.Context, token string) (*Entry, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return s.store.TakeEntry(ctx, token)
}
