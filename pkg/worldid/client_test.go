package worldid_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pawaret/worldgate/pkg/metrics"
	"github.com/pawaret/worldgate/pkg/oauth2"
	"github.com/pawaret/worldgate/pkg/worldid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const (
	testClientID     = "app_staging_123"
	testClientSecret = "sk_secret"
)

func newTestClient(t *testing.T, handler http.Handler, m *metrics.Metrics) *worldid.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return worldid.NewClient(worldid.Config{
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		TokenURL:     srv.URL + "/token",
		UserInfoURL:  srv.URL + "/userinfo",
		VerifyURL:    srv.URL + "/api/v2/verify",
		Timeout:      2 * time.Second,
		UserAgent:    "worldgate-test",
	}, srv.Client(), m)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestExchangeCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("unexpected content type %q", ct)
		}
		if ua := r.Header.Get("User-Agent"); ua != "worldgate-test" {
			t.Errorf("unexpected user agent %q", ua)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		want := map[string]string{
			"grant_type":    "authorization_code",
			"client_id":     testClientID,
			"client_secret": testClientSecret,
			"code":          "abc",
			"redirect_uri":  "https://app.example/callback/world-id",
		}
		for k, v := range want {
			if got := r.PostForm.Get(k); got != v {
				t.Errorf("form %s: got %q, want %q", k, got, v)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "at_1",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})

	reg := prometheus.NewRegistry()
	client := newTestClient(t, mux, metrics.New(reg))

	token, err := client.ExchangeCode(context.Background(), "abc", "https://app.example/callback/world-id")
	if err != nil {
		t.Fatal(err)
	}
	if token.AccessToken != "at_1" {
		t.Fatalf("unexpected access token %q", token.AccessToken)
	}
	if token.ExpiresIn != 3600 {
		t.Fatalf("unexpected expires_in %d", token.ExpiresIn)
	}

	count, err := testutil.GatherAndCount(reg, "worldgate_provider_requests_total")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected one provider request series, got %d", count)
	}
}

func TestExchangeCodeRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_grant",
			"error_description": "code already used",
		})
	})
	client := newTestClient(t, mux, nil)

	_, err := client.ExchangeCode(context.Background(), "used", "https://app.example/callback/world-id")
	if err == nil {
		t.Fatal("expected error")
	}

	var wErr *worldid.Error
	if !errors.As(err, &wErr) {
		t.Fatalf("expected *worldid.Error, got %T", err)
	}
	if wErr.Kind != worldid.KindTokenExchange {
		t.Fatalf("unexpected kind %q", wErr.Kind)
	}
	if wErr.Status != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", wErr.Status)
	}
	if wErr.Message != "Failed to exchange authorization code for token" {
		t.Fatalf("unexpected message %q", wErr.Message)
	}

	var oauthErr *oauth2.Error
	if !errors.As(err, &oauthErr) {
		t.Fatalf("expected wrapped *oauth2.Error, got %v", err)
	}
	if oauthErr.Code != "invalid_grant" {
		t.Fatalf("unexpected oauth2 error code %q", oauthErr.Code)
	}
	if strings.Contains(wErr.Message, testClientSecret) {
		t.Fatal("public message must not contain the client secret")
	}
}

func TestExchangeCodeWithoutAccessToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"token_type": "Bearer"})
	})
	client := newTestClient(t, mux, nil)

	_, err := client.ExchangeCode(context.Background(), "abc", "https://app.example/cb")
	var wErr *worldid.Error
	if !errors.As(err, &wErr) || wErr.Kind != worldid.KindTokenExchange {
		t.Fatalf("expected token exchange error, got %v", err)
	}
}

func TestExchangeCodeTimeout(t *testing.T) {
	release := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()
	defer close(release)

	client := worldid.NewClient(worldid.Config{
		ClientID: testClientID,
		TokenURL: srv.URL + "/token",
		Timeout:  50 * time.Millisecond,
	}, srv.Client(), nil)

	start := time.Now()
	_, err := client.ExchangeCode(context.Background(), "abc", "https://app.example/cb")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("timeout not honored, took %s", elapsed)
	}
}

func TestFetchUserInfo(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer at_1" {
			t.Errorf("unexpected authorization header %q", got)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"sub":   "0x123",
			"email": "0x123@id.worldcoin.org",
			"https://id.worldcoin.org/v1": map[string]string{
				"verification_level": "orb",
			},
		})
	})
	client := newTestClient(t, mux, nil)

	claims, err := client.FetchUserInfo(context.Background(), "at_1")
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "0x123" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if !claims.IsOrbVerified() {
		t.Fatal("expected orb verified claims")
	}
}

func TestFetchUserInfoKeepsUnknownClaims(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"sub":"0x1","locale":"en","email_verified":"true",`+
			`"https://id.worldcoin.org/v1":{"verification_level":"orb","extra":"x"}}`)
	})
	client := newTestClient(t, mux, nil)

	claims, err := client.FetchUserInfo(context.Background(), "at_1")
	if err != nil {
		t.Fatal(err)
	}
	if !claims.IsOrbVerified() {
		t.Fatal("expected orb verified claims")
	}

	out, err := json.Marshal(claims)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatal(err)
	}
	if m["locale"] != "en" {
		t.Errorf("locale claim lost: %s", out)
	}
	if m["email_verified"] != "true" {
		t.Errorf("email_verified changed: %s", out)
	}
	marker, _ := m["https://id.worldcoin.org/v1"].(map[string]any)
	if marker["extra"] != "x" {
		t.Errorf("provider claim member lost: %s", out)
	}
}

func TestFetchUserInfoMalformedMarker(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"sub":                         "0x1",
			"https://id.worldcoin.org/v1": []string{"orb"},
		})
	})
	client := newTestClient(t, mux, nil)

	claims, err := client.FetchUserInfo(context.Background(), "at_1")
	if err != nil {
		t.Fatal(err)
	}
	if claims.IsOrbVerified() {
		t.Fatal("malformed marker must not count as orb")
	}
}

func TestFetchUserInfoUnauthorized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	client := newTestClient(t, mux, nil)

	_, err := client.FetchUserInfo(context.Background(), "expired")
	var wErr *worldid.Error
	if !errors.As(err, &wErr) {
		t.Fatalf("expected *worldid.Error, got %v", err)
	}
	if wErr.Kind != worldid.KindUserInfo || wErr.Status != http.StatusUnauthorized {
		t.Fatalf("unexpected error %+v", wErr)
	}
	if wErr.Message != "Failed to get user information" {
		t.Fatalf("unexpected message %q", wErr.Message)
	}
}

func TestFetchUserInfoWithoutSubject(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"email": "x@example.com"})
	})
	client := newTestClient(t, mux, nil)

	if _, err := client.FetchUserInfo(context.Background(), "at_1"); err == nil {
		t.Fatal("expected error for claims without sub")
	}
}

func testProof() worldid.ProofRequest {
	return worldid.ProofRequest{
		MerkleRoot:        "0x1",
		NullifierHash:     "0x2",
		Proof:             "0x3",
		VerificationLevel: "orb",
		Action:            "login",
	}
}

func TestVerifyProof(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/verify/"+testClientID, func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatal(err)
		}
		if req["nullifier_hash"] != "0x2" || req["action"] != "login" {
			t.Errorf("unexpected request body %s", body)
		}
		if _, ok := req["signal_hash"]; ok {
			t.Errorf("empty signal_hash must be omitted")
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":            true,
			"uses":               1,
			"action":             "login",
			"max_uses":           1,
			"nullifier_hash":     "0x2",
			"created_at":         "2024-01-01T00:00:00Z",
			"verification_level": "orb",
		})
	})
	client := newTestClient(t, mux, nil)

	outcome, err := client.VerifyProof(context.Background(), testProof())
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.Succeeded() {
		t.Fatalf("expected success, got rejection %+v", outcome.Rejection())
	}
	if v := outcome.Verification(); v.NullifierHash != "0x2" || v.Uses != 1 {
		t.Fatalf("unexpected verification %+v", v)
	}
	if outcome.Rejection() != nil {
		t.Fatal("success outcome must not carry a rejection")
	}
}

func TestVerifyProofRejectedWithDetail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/verify/"+testClientID, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"code":      "invalid_proof",
			"detail":    "The provided proof is invalid and it cannot be verified.",
			"attribute": nil,
		})
	})
	client := newTestClient(t, mux, nil)

	outcome, err := client.VerifyProof(context.Background(), testProof())
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Succeeded() {
		t.Fatal("expected rejection")
	}
	rej := outcome.Rejection()
	if rej.Code != "invalid_proof" {
		t.Fatalf("unexpected code %q", rej.Code)
	}
	if rej.Detail != "The provided proof is invalid and it cannot be verified." {
		t.Fatalf("detail not passed through: %q", rej.Detail)
	}

	data, err := json.Marshal(outcome)
	if err != nil {
		t.Fatal(err)
	}
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatal(err)
	}
	if flat["success"] != false || flat["code"] != "invalid_proof" {
		t.Fatalf("unexpected JSON %s", data)
	}
}

func TestVerifyProofUnsuccessfulTwoHundred(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/verify/"+testClientID, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false})
	})
	client := newTestClient(t, mux, nil)

	outcome, err := client.VerifyProof(context.Background(), testProof())
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Succeeded() {
		t.Fatal("expected rejection")
	}
	if outcome.Rejection().Message != "Proof verification failed" {
		t.Fatalf("unexpected message %q", outcome.Rejection().Message)
	}
}

func TestVerifyProofServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/verify/"+testClientID, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	client := newTestClient(t, mux, nil)

	_, err := client.VerifyProof(context.Background(), testProof())
	var wErr *worldid.Error
	if !errors.As(err, &wErr) {
		t.Fatalf("expected *worldid.Error, got %v", err)
	}
	if wErr.Kind != worldid.KindProofVerification || wErr.Status != http.StatusInternalServerError {
		t.Fatalf("unexpected error %+v", wErr)
	}
}

func TestVerifyProofTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := worldid.NewClient(worldid.Config{
		ClientID:  testClientID,
		VerifyURL: url + "/api/v2/verify",
	}, nil, nil)

	_, err := client.VerifyProof(context.Background(), testProof())
	var wErr *worldid.Error
	if !errors.As(err, &wErr) {
		t.Fatalf("expected *worldid.Error, got %v", err)
	}
	if wErr.Status != 0 {
		t.Fatalf("expected status 0 for transport error, got %d", wErr.Status)
	}
}
