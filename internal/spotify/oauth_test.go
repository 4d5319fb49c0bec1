package spotify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

// tokenServer fakes the provider token endpoint with a fixed JSON response.
func tokenServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("token endpoint hit with %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func testOAuth(srvURL string) *OAuth {
	return NewOAuth("client-id", "client-secret", "https://bot.example.com/callback").
		WithEndpoint(oauth2.Endpoint{
			AuthURL:   srvURL + "/authorize",
			TokenURL:  srvURL + "/api/token",
			AuthStyle: oauth2.AuthStyleInHeader,
		})
}

func TestAuthCodeURL_CarriesStateAndScope(t *testing.T) {
	o := NewOAuth("client-id", "client-secret", "https://bot.example.com/callback")
	raw := o.AuthCodeURL("state-xyz")

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	if u.Host != "accounts.spotify.com" || u.Path != "/authorize" {
		t.Fatalf("auth url = %q", raw)
	}
	q := u.Query()
	if q.Get("state") != "state-xyz" {
		t.Fatalf("state = %q", q.Get("state"))
	}
	if q.Get("scope") != ScopeLibraryModify {
		t.Fatalf("scope = %q", q.Get("scope"))
	}
	if q.Get("client_id") != "client-id" || q.Get("response_type") != "code" {
		t.Fatalf("query = %q", u.RawQuery)
	}
}

func TestExchange_FullTokenSet(t *testing.T) {
	srv := tokenServer(t, `{
		"access_token": "at-1",
		"token_type": "Bearer",
		"refresh_token": "rt-1",
		"expires_in": 3600
	}`)
	defer srv.Close()

	tok, err := testOAuth(srv.URL).Exchange(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if tok.AccessToken != "at-1" || tok.RefreshToken != "rt-1" {
		t.Fatalf("token = %+v", tok)
	}
	if tok.Expiry.IsZero() {
		t.Fatalf("expected expiry to be set from expires_in")
	}
}

func TestExchange_MissingRefreshToken(t *testing.T) {
	srv := tokenServer(t, `{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`)
	defer srv.Close()

	_, err := testOAuth(srv.URL).Exchange(context.Background(), "auth-code")
	if !errors.Is(err, ErrNoRefreshToken) {
		t.Fatalf("got %v; want ErrNoRefreshToken", err)
	}
}

func TestExchange_MissingExpiry(t *testing.T) {
	srv := tokenServer(t, `{"access_token":"at-1","token_type":"Bearer","refresh_token":"rt-1"}`)
	defer srv.Close()

	_, err := testOAuth(srv.URL).Exchange(context.Background(), "auth-code")
	if !errors.Is(err, ErrNoExpiry) {
		t.Fatalf("got %v; want ErrNoExpiry", err)
	}
}

func TestRefresh_RotatedToken(t *testing.T) {
	srv := tokenServer(t, `{
		"access_token": "at-2",
		"token_type": "Bearer",
		"refresh_token": "rt-2",
		"expires_in": 3600
	}`)
	defer srv.Close()

	tok, err := testOAuth(srv.URL).Refresh(context.Background(), "rt-1")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if tok.AccessToken != "at-2" || tok.RefreshToken != "rt-2" {
		t.Fatalf("token = %+v", tok)
	}
}

func TestRefresh_NotRotatedKeepsSeededToken(t *testing.T) {
	srv := tokenServer(t, `{"access_token":"at-2","token_type":"Bearer","expires_in":3600}`)
	defer srv.Close()

	tok, err := testOAuth(srv.URL).Refresh(context.Background(), "rt-1")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	// x/oauth2 preserves the refresh token it was seeded with.
	if tok.RefreshToken != "rt-1" {
		t.Fatalf("refresh_token = %q; want seeded rt-1", tok.RefreshToken)
	}
}

func TestRefresh_MissingExpiry(t *testing.T) {
	srv := tokenServer(t, `{"access_token":"at-2","token_type":"Bearer"}`)
	defer srv.Close()

	_, err := testOAuth(srv.URL).Refresh(context.Background(), "rt-1")
	if !errors.Is(err, ErrNoExpiry) {
		t.Fatalf("got %v; want ErrNoExpiry", err)
	}
}

func TestRefresh_ProviderRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Refresh token revoked"}`))
	}))
	defer srv.Close()

	_, err := testOAuth(srv.URL).Refresh(context.Background(), "revoked")
	if err == nil {
		t.Fatalf("expected error for revoked refresh token")
	}
	if !strings.Contains(err.Error(), "invalid_grant") {
		t.Fatalf("error = %v", err)
	}
}
