package worldid

import (
	"encoding/json"
	"fmt"
)

type VerificationLevel string

const (
	VerificationLevelOrb    VerificationLevel = "orb"
	VerificationLevelDevice VerificationLevel = "device"
)

const (
	claimSubject = "sub"
	claimWorldID = "https://id.worldcoin.org/v1"
)

// WorldIDClaims is the provider specific claim set under "https://id.worldcoin.org/v1".
type WorldIDClaims struct {
	VerificationLevel VerificationLevel `json:"verification_level"`
}

// Claims is the verified user record returned by the user info endpoint.
//
// Only the subject and the verification level are interpreted. Every other
// claim is kept as received and written back unchanged by MarshalJSON, so
// profile fields the provider adds or types differently pass through.
type Claims struct {
	Subject string
	WorldID *WorldIDClaims

	raw map[string]json.RawMessage
}

func (c *Claims) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var subject string
	if v, ok := raw[claimSubject]; ok {
		if err := json.Unmarshal(v, &subject); err != nil {
			return fmt.Errorf("claim %q: %w", claimSubject, err)
		}
	}

	// a malformed marker counts as no marker
	var worldID *WorldIDClaims
	if v, ok := raw[claimWorldID]; ok {
		var wc WorldIDClaims
		if err := json.Unmarshal(v, &wc); err == nil {
			worldID = &wc
		}
	}

	*c = Claims{Subject: subject, WorldID: worldID, raw: raw}
	return nil
}

func (c Claims) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(c.raw)+2)
	for k, v := range c.raw {
		out[k] = v
	}

	sub, err := json.Marshal(c.Subject)
	if err != nil {
		return nil, err
	}
	out[claimSubject] = sub

	if _, ok := out[claimWorldID]; !ok && c.WorldID != nil {
		wc, err := json.Marshal(c.WorldID)
		if err != nil {
			return nil, err
		}
		out[claimWorldID] = wc
	}

	return json.Marshal(out)
}

// StringClaim returns the named claim if it is a JSON string.
func (c *Claims) StringClaim(name string) string {
	if c == nil {
		return ""
	}
	v, ok := c.raw[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return s
}

func (c *Claims) Email() string {
	return c.StringClaim("email")
}

func (c *Claims) Name() string {
	return c.StringClaim("name")
}

// VerificationLevel returns the personhood level marker, or "" when absent.
func (c *Claims) VerificationLevel() VerificationLevel {
	if c == nil || c.WorldID == nil {
		return ""
	}
	return c.WorldID.VerificationLevel
}

// IsOrbVerified reports whether the marker is exactly "orb". Device level
// and a missing marker both count as not orb verified.
func (c *Claims) IsOrbVerified() bool {
	return c.VerificationLevel() == VerificationLevelOrb
}
