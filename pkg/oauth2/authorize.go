package oauth2

import (
	"fmt"
	"net/url"
)

// AuthCodeURL builds the authorization endpoint URL for the authorization code flow.
// The query is encoded with sorted keys, so equal inputs produce equal URLs.
func AuthCodeURL(endpoint, clientID, redirectURI string, opts ...ParameterOption) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse authorization endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("authorization endpoint must be absolute: %q", endpoint)
	}

	query := url.Values{}
	query.Set("response_type", ResponseTypeCode)
	query.Set("client_id", clientID)
	query.Set("redirect_uri", redirectURI)
	query.Set("scope", ScopeOpenID)

	for _, opt := range opts {
		opt(query)
	}

	u.RawQuery = query.Encode()
	return u.String(), nil
}
