package worldid

import (
	"encoding/json"
	"fmt"

	"github.com/pawaret/worldgate/pkg/oauth2"
)

// Kind identifies which provider call failed.
type Kind string

const (
	KindTokenExchange     Kind = "token_exchange"
	KindUserInfo          Kind = "user_info"
	KindProofVerification Kind = "proof_verification"
)

var publicMessages = map[Kind]string{
	KindTokenExchange:     "Failed to exchange authorization code for token",
	KindUserInfo:          "Failed to get user information",
	KindProofVerification: "Failed to verify proof",
}

// Error is returned by every Client call that did not produce a usable
// response. Message is safe to hand to callers; Err carries the cause and is
// meant for server-side logs only.
type Error struct {
	Kind    Kind
	Status  int // HTTP status, 0 when the request never completed
	Message string
	Err     error
}

func newError(kind Kind, status int, err error) *Error {
	return &Error{
		Kind:    kind,
		Status:  status,
		Message: publicMessages[kind],
		Err:     err,
	}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// tries to read an RFC 6749 error from a non-2xx response body
func parseErrorResponse(status int, body []byte) error {
	var oauthErr oauth2.Error
	if err := json.Unmarshal(body, &oauthErr); err == nil && oauthErr.Code != "" {
		return &oauthErr
	}
	return fmt.Errorf("unexpected status code: %d", status)
}
