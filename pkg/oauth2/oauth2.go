package oauth2

import (
	"fmt"
	"net/url"
)

type GrantType string

const (
	GrantTypeAuthorizationCode GrantType = "authorization_code"
)

const (
	ResponseTypeCode = "code"
	ScopeOpenID      = "openid"
)

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
	IDToken     string `json:"id_token,omitempty"`
}

// Error is the error body defined by RFC 6749 section 5.2.
type Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

type ParameterOption func(params url.Values)

// WithState adds an opaque state value. Empty values are ignored.
func WithState(state string) ParameterOption {
	return func(params url.Values) {
		if state != "" {
			params.Set("state", state)
		}
	}
}
