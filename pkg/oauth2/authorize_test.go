package oauth2_test

import (
	"net/url"
	"testing"

	"github.com/pawaret/worldgate/pkg/oauth2"
)

func TestAuthCodeURL(t *testing.T) {
	raw, err := oauth2.AuthCodeURL(
		"https://id.worldcoin.org/authorize",
		"app_123",
		"https://world.pawaret.dev/callback/world-id",
		oauth2.WithState("abc"),
	)
	if err != nil {
		t.Fatal(err)
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if u.Host != "id.worldcoin.org" || u.Path != "/authorize" {
		t.Fatalf("unexpected endpoint: %s", raw)
	}

	want := map[string]string{
		"response_type": "code",
		"client_id":     "app_123",
		"redirect_uri":  "https://world.pawaret.dev/callback/world-id",
		"scope":         "openid",
		"state":         "abc",
	}
	q := u.Query()
	for k, v := range want {
		if got := q.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestAuthCodeURLWithoutState(t *testing.T) {
	raw, err := oauth2.AuthCodeURL("https://id.worldcoin.org/authorize", "app_123", "https://be.pawaret.uk/callback/world-id", oauth2.WithState(""))
	if err != nil {
		t.Fatal(err)
	}
	u, _ := url.Parse(raw)
	if u.Query().Has("state") {
		t.Fatalf("state must be omitted when empty: %s", raw)
	}
}

func TestAuthCodeURLIsDeterministic(t *testing.T) {
	build := func() string {
		raw, err := oauth2.AuthCodeURL("https://id.worldcoin.org/authorize", "app_123", "https://be.pawaret.uk/callback/world-id", oauth2.WithState("s1"))
		if err != nil {
			t.Fatal(err)
		}
		return raw
	}
	if a, b := build(), build(); a != b {
		t.Fatalf("urls differ:\n%s\n%s", a, b)
	}
}

func TestAuthCodeURLRejectsRelativeEndpoint(t *testing.T) {
	if _, err := oauth2.AuthCodeURL("/authorize", "app_123", "https://x/cb"); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestErrorString(t *testing.T) {
	e := &oauth2.Error{Code: "invalid_grant", Description: "code already used"}
	if e.Error() != "invalid_grant: code already used" {
		t.Fatalf("unexpected: %s", e.Error())
	}
	if (&oauth2.Error{Code: "invalid_grant"}).Error() != "invalid_grant" {
		t.Fatal("unexpected error string without description")
	}
}
