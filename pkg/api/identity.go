package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pawaret/worldgate/pkg/handoff"
)

const (
	msgMissingLoginParams = "Missing required parameters: code and redirectUri"
	msgInvalidHandoff     = "Invalid or expired handoff token"
	msgVerificationFailed = "Verification failed"
	msgInvalidBody        = "Invalid request body"
)

// verifyWorldIDRequest carries either the code and redirect URI directly or
// a hand-off token issued by the callback.
type verifyWorldIDRequest struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirectUri"`
	Handoff     string `json:"handoff"`
}

type codeParams struct {
	Code        string `validate:"required"`
	RedirectURI string `validate:"required"`
}

func (s *Server) verifyWorldID(c echo.Context) error {
	var req verifyWorldIDRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidBody)
	}

	ctx := c.Request().Context()
	params := codeParams{Code: req.Code, RedirectURI: req.RedirectURI}

	if req.Handoff != "" {
		entry, err := s.handoff.Claim(ctx, req.Handoff)
		if errors.Is(err, handoff.ErrNotFound) {
			return echo.NewHTTPError(http.StatusBadRequest, msgInvalidHandoff)
		}
		if err != nil {
			return err
		}
		params = codeParams{Code: entry.Code, RedirectURI: entry.RedirectURI}
	}

	if err := c.Validate(&params); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgMissingLoginParams)
	}

	res := s.login.CompleteLogin(ctx, params.Code, params.RedirectURI)
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = msgVerificationFailed
		}
		return echo.NewHTTPError(http.StatusBadRequest, msg)
	}

	slog.Info("World ID verification result",
		"sub", res.User.Subject,
		"email", res.User.Email(),
		"name", res.User.Name(),
		"is_orb_verified", res.IsOrbVerified,
		"verification_level", res.User.VerificationLevel(),
	)

	return c.JSON(http.StatusOK, res)
}
