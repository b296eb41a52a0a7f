package api

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/pawaret/worldgate/pkg"
	"github.com/pawaret/worldgate/pkg/handoff"
)

const landingPath = "/"

// authorize starts a login: it issues a state value and sends the browser
// to the provider.
func (s *Server) authorize(c echo.Context) error {
	ctx := c.Request().Context()

	state, err := s.handoff.IssueState(ctx)
	if err != nil {
		return err
	}

	authURL, err := s.login.AuthorizationURL(s.redirectURI, state)
	if err != nil {
		return err
	}

	slog.Debug("Redirecting to World ID", "auth_url", authURL)
	return c.Redirect(http.StatusFound, authURL)
}

// callback receives the provider redirect and parks the code server-side.
// The browser only gets a one-time hand-off token for it.
func (s *Server) callback(c echo.Context) error {
	ctx := c.Request().Context()

	if providerErr := c.QueryParam("error"); providerErr != "" {
		slog.Warn("Authorization failed at provider", "error", providerErr, "description", c.QueryParam("error_description"))
		return redirectToLanding(c, "error", providerErr)
	}

	code := c.QueryParam("code")
	if code == "" {
		return redirectToLanding(c, "error", "missing_code")
	}

	state := c.QueryParam("state")
	if s.enforceState {
		if err := s.handoff.RedeemState(ctx, state); err != nil {
			slog.Warn("Callback with unknown state", "state", state, "error", err)
			return redirectToLanding(c, "error", "invalid_state")
		}
	} else {
		slog.Info("Callback state not enforced", "state", state)
	}

	token, err := s.handoff.Stash(ctx, handoff.Entry{
		Code:        code,
		RedirectURI: s.redirectURI,
		State:       state,
	})
	if err != nil {
		return err
	}

	return redirectToLanding(c, "handoff", token)
}

func redirectToLanding(c echo.Context, key, value string) error {
	query := url.Values{}
	query.Set(key, value)
	return c.Redirect(http.StatusFound, landingPath+"?"+query.Encode())
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": pkg.Version,
	})
}
