package worldid

import (
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/pawaret/worldgate/pkg/oauth2"
)

// CheckIDTokenSubject compares the sub claim of the ID token that came with
// the access token against the user info subject. The ID token is received
// directly from the token endpoint over TLS, so its signature is not checked
// again here. A token response without an ID token passes.
func CheckIDTokenSubject(token *oauth2.TokenResponse, claims *Claims) error {
	if token == nil || token.IDToken == "" {
		return nil
	}
	if claims == nil {
		return newError(KindUserInfo, 0, fmt.Errorf("no claims to compare id token against"))
	}

	idToken, err := jwt.ParseInsecure([]byte(token.IDToken))
	if err != nil {
		return newError(KindUserInfo, 0, fmt.Errorf("parse id token: %w", err))
	}
	if sub := idToken.Subject(); sub != claims.Subject {
		return newError(KindUserInfo, 0, fmt.Errorf("id token subject %q does not match user info subject %q", sub, claims.Subject))
	}
	return nil
}
