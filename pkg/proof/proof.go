// Package proof checks World ID zero-knowledge proof submissions and hands
// them to the provider for verification.
package proof

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pawaret/worldgate/pkg/metrics"
	"github.com/pawaret/worldgate/pkg/worldid"
)

// RequiredFields lists the submission fields that must be present, in wire
// order.
var RequiredFields = []string{"merkle_root", "nullifier_hash", "proof", "verification_level", "action"}

type Submission struct {
	MerkleRoot        string `json:"merkle_root" validate:"required"`
	NullifierHash     string `json:"nullifier_hash" validate:"required"`
	Proof             string `json:"proof" validate:"required"`
	VerificationLevel string `json:"verification_level" validate:"required"`
	Action            string `json:"action" validate:"required"`
	SignalHash        string `json:"signal_hash,omitempty"`
}

// ValidationError is returned when a submission lacks required fields. No
// provider call has been made when it is returned.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "Missing required parameters: " + strings.Join(RequiredFields, ", ")
}

type Verifier interface {
	VerifyProof(ctx context.Context, proof worldid.ProofRequest) (*worldid.ProofOutcome, error)
}

type Service struct {
	verifier Verifier
	validate *validator.Validate
	metrics  *metrics.Metrics
}

func NewService(verifier Verifier, m *metrics.Metrics) *Service {
	validate := validator.New()
	validate.RegisterTagNameFunc(jsonFieldName)
	return &Service{
		verifier: verifier,
		validate: validate,
		metrics:  m,
	}
}

// Verify validates the submission and forwards it to the provider. Apart
// from a *ValidationError it never fails: a provider that cannot be reached
// yields a rejected outcome.
func (s *Service) Verify(ctx context.Context, sub Submission) (*worldid.ProofOutcome, error) {
	if err := s.check(sub); err != nil {
		s.metrics.ProofVerified("invalid")
		return nil, err
	}

	outcome, err := s.verifier.VerifyProof(ctx, worldid.ProofRequest{
		MerkleRoot:        sub.MerkleRoot,
		NullifierHash:     sub.NullifierHash,
		Proof:             sub.Proof,
		VerificationLevel: sub.VerificationLevel,
		Action:            sub.Action,
		SignalHash:        sub.SignalHash,
	})
	if err != nil {
		slog.Error("Proof verification request failed", "action", sub.Action, "error", err)
		s.metrics.ProofVerified("error")
		return worldid.Rejected(worldid.ProofRejection{Error: failureMessage(err)}), nil
	}

	if !outcome.Succeeded() {
		rej := outcome.Rejection()
		slog.Warn("Proof rejected by provider", "action", sub.Action, "code", rej.Code, "detail", rej.Detail)
		s.metrics.ProofVerified("rejected")
		return outcome, nil
	}

	slog.Debug("Proof verified", "nullifier_hash", outcome.Verification().NullifierHash)
	s.metrics.ProofVerified("verified")
	return outcome, nil
}

func (s *Service) check(sub Submission) error {
	err := s.validate.Struct(sub)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	missing := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		missing = append(missing, fe.Field())
	}
	return &ValidationError{Missing: missing}
}

func failureMessage(err error) string {
	var wErr *worldid.Error
	if errors.As(err, &wErr) && wErr.Message != "" {
		return wErr.Message
	}
	return "Proof verification failed"
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}
