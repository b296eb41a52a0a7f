package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pawaret/worldgate/pkg/proof"
)

const msgProofFailed = "Proof verification failed"

type proofErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
	Code   string `json:"code,omitempty"`
}

func (s *Server) verifyProof(c echo.Context) error {
	var sub proof.Submission
	if err := c.Bind(&sub); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidBody)
	}

	outcome, err := s.proofs.Verify(c.Request().Context(), sub)
	var vErr *proof.ValidationError
	if errors.As(err, &vErr) {
		return echo.NewHTTPError(http.StatusBadRequest, vErr.Error())
	}
	if err != nil {
		return err
	}

	if !outcome.Succeeded() {
		rej := outcome.Rejection()
		msg := rej.Error
		if msg == "" {
			msg = msgProofFailed
		}
		return c.JSON(http.StatusBadRequest, proofErrorResponse{
			Error:  msg,
			Detail: rej.Detail,
			Code:   rej.Code,
		})
	}

	// the nullifier hash must be stored by the caller to prevent proof reuse
	v := outcome.Verification()
	slog.Info("World ID proof verification result",
		"nullifier_hash", v.NullifierHash,
		"action", v.Action,
		"uses", v.Uses,
		"max_uses", v.MaxUses,
	)

	return c.JSON(http.StatusOK, outcome)
}
