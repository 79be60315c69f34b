package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/qrtune/internal/shared"
	"golang.org/x/oauth2"
)

func testConfig(base string) shared.SpotifyConfig {
	return shared.SpotifyConfig{
		ClientID:    "test_client_id",
		RedirectURI: "http://localhost:8080/callback",
		AuthURL:     base + "/authorize",
		TokenURL:    base + "/api/token",
		APIURL:      base + "/v1",
	}
}

// fakeAccounts serves the token endpoint, recording the last form it received.
type fakeAccounts struct {
	form   url.Values
	auth   string
	status int
	body   string
}

func (f *fakeAccounts) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/token" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		f.form = r.PostForm
		f.auth = r.Header.Get("Authorization")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		io.WriteString(w, f.body)
	})
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Config", func(t *testing.T) {
			srv, err := NewSpotifyService(testConfig("http://example.com"), nil)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", srv.Name())
			}
			if srv.config.Endpoint.AuthStyle != oauth2.AuthStyleInParams {
				t.Error("expected client id to be sent in params")
			}
			if srv.config.ClientSecret != "" {
				t.Error("public client must not carry a secret")
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			cfg := testConfig("http://example.com")
			cfg.ClientID = ""

			_, err := NewSpotifyService(cfg, nil)
			if !errors.Is(err, shared.ErrMissingConfig) {
				t.Errorf("expected ErrMissingConfig, got %v", err)
			}
		})

		t.Run("Missing Redirect URI", func(t *testing.T) {
			cfg := testConfig("http://example.com")
			cfg.RedirectURI = ""

			_, err := NewSpotifyService(cfg, nil)
			if !errors.Is(err, shared.ErrMissingConfig) {
				t.Errorf("expected ErrMissingConfig, got %v", err)
			}
		})

		t.Run("Defaults", func(t *testing.T) {
			srv, err := NewSpotifyService(shared.SpotifyConfig{ClientID: "id", RedirectURI: "http://x/cb"}, nil)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.config.Endpoint.AuthURL != spotifyAuthURL || srv.config.Endpoint.TokenURL != spotifyTokenURL {
				t.Errorf("expected spotify endpoints, got %+v", srv.config.Endpoint)
			}
			if srv.api.baseURL != defaultAPIURL {
				t.Errorf("expected default api url, got %s", srv.api.baseURL)
			}
			if strings.Join(srv.config.Scopes, " ") != strings.Join(DefaultScopes, " ") {
				t.Errorf("expected default scopes, got %v", srv.config.Scopes)
			}
		})
	})

	t.Run("AuthURL", func(t *testing.T) {
		srv, _ := NewSpotifyService(testConfig("http://accounts.test"), nil)
		verifier := GenerateVerifier()

		u, err := url.Parse(srv.AuthURL("test_state", verifier))
		if err != nil {
			t.Fatalf("invalid auth url: %v", err)
		}

		if u.Host != "accounts.test" || u.Path != "/authorize" {
			t.Errorf("unexpected authorize endpoint %s", u)
		}

		q := u.Query()
		for key, want := range map[string]string{
			"response_type":         "code",
			"client_id":             "test_client_id",
			"redirect_uri":          "http://localhost:8080/callback",
			"state":                 "test_state",
			"code_challenge_method": "S256",
			"code_challenge":        oauth2.S256ChallengeFromVerifier(verifier),
			"scope":                 strings.Join(DefaultScopes, " "),
		} {
			if got := q.Get(key); got != want {
				t.Errorf("%s = %q, want %q", key, got, want)
			}
		}
		if q.Has("code_verifier") {
			t.Error("verifier must never leave the server")
		}
	})

	t.Run("Exchange", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			fake := &fakeAccounts{
				status: http.StatusOK,
				body:   `{"access_token":"at","token_type":"Bearer","expires_in":3600,"refresh_token":"rt","scope":"streaming"}`,
			}
			ts := httptest.NewServer(fake.handler(t))
			defer ts.Close()

			srv, _ := NewSpotifyService(testConfig(ts.URL), ts.Client())
			tok, err := srv.Exchange(context.Background(), "the_code", "the_verifier")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if tok.AccessToken != "at" || tok.RefreshToken != "rt" {
				t.Errorf("unexpected token %+v", tok)
			}
			if d := TokenLifetime(tok); d < 59*time.Minute || d > time.Hour {
				t.Errorf("expected about an hour of lifetime, got %s", d)
			}

			for key, want := range map[string]string{
				"grant_type":    "authorization_code",
				"code":          "the_code",
				"redirect_uri":  "http://localhost:8080/callback",
				"client_id":     "test_client_id",
				"code_verifier": "the_verifier",
			} {
				if got := fake.form.Get(key); got != want {
					t.Errorf("form %s = %q, want %q", key, got, want)
				}
			}
			if fake.form.Has("client_secret") {
				t.Error("client_secret should not be sent")
			}
			if fake.auth != "" {
				t.Errorf("expected no Authorization header, got %q", fake.auth)
			}
		})

		t.Run("Rejected", func(t *testing.T) {
			fake := &fakeAccounts{status: http.StatusBadRequest, body: `{"error":"invalid_grant","error_description":"Invalid authorization code"}`}
			ts := httptest.NewServer(fake.handler(t))
			defer ts.Close()

			srv, _ := NewSpotifyService(testConfig(ts.URL), ts.Client())
			_, err := srv.Exchange(context.Background(), "bad", "v")

			if !errors.Is(err, shared.ErrTokenExchange) {
				t.Errorf("expected ErrTokenExchange, got %v", err)
			}

			var te *TokenError
			if !errors.As(err, &te) {
				t.Fatalf("expected *TokenError, got %T", err)
			}
			if te.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", te.StatusCode)
			}
			if !strings.Contains(string(te.Body), "invalid_grant") {
				t.Errorf("expected upstream body, got %s", te.Body)
			}
		})
	})

	t.Run("Refresh", func(t *testing.T) {
		t.Run("Keeps Refresh Token", func(t *testing.T) {
			fake := &fakeAccounts{status: http.StatusOK, body: `{"access_token":"new_at","token_type":"Bearer","expires_in":3600}`}
			ts := httptest.NewServer(fake.handler(t))
			defer ts.Close()

			srv, _ := NewSpotifyService(testConfig(ts.URL), ts.Client())
			tok, err := srv.Refresh(context.Background(), "old_rt")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if tok.AccessToken != "new_at" {
				t.Errorf("expected new access token, got %s", tok.AccessToken)
			}
			if tok.RefreshToken != "old_rt" {
				t.Errorf("expected refresh token to carry over, got %q", tok.RefreshToken)
			}
			if fake.form.Get("grant_type") != "refresh_token" || fake.form.Get("refresh_token") != "old_rt" {
				t.Errorf("unexpected refresh form %v", fake.form)
			}
			if fake.form.Get("client_id") != "test_client_id" {
				t.Error("expected client_id in refresh form")
			}
		})

		t.Run("Rotated Refresh Token", func(t *testing.T) {
			fake := &fakeAccounts{status: http.StatusOK, body: `{"access_token":"a","token_type":"Bearer","expires_in":60,"refresh_token":"rotated"}`}
			ts := httptest.NewServer(fake.handler(t))
			defer ts.Close()

			srv, _ := NewSpotifyService(testConfig(ts.URL), ts.Client())
			tok, err := srv.Refresh(context.Background(), "old_rt")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if tok.RefreshToken != "rotated" {
				t.Errorf("expected rotated refresh token, got %q", tok.RefreshToken)
			}
		})

		t.Run("Rejected", func(t *testing.T) {
			fake := &fakeAccounts{status: http.StatusBadRequest, body: `{"error":"invalid_grant","error_description":"Refresh token revoked"}`}
			ts := httptest.NewServer(fake.handler(t))
			defer ts.Close()

			srv, _ := NewSpotifyService(testConfig(ts.URL), ts.Client())
			_, err := srv.Refresh(context.Background(), "revoked")

			if !errors.Is(err, shared.ErrRefreshFailed) {
				t.Errorf("expected ErrRefreshFailed, got %v", err)
			}
			var te *TokenError
			if !errors.As(err, &te) || te.StatusCode != http.StatusBadRequest {
				t.Errorf("expected *TokenError with 400, got %v", err)
			}
		})

		t.Run("Without Refresh Token", func(t *testing.T) {
			srv, _ := NewSpotifyService(testConfig("http://example.com"), nil)
			_, err := srv.Refresh(context.Background(), "")
			if !errors.Is(err, shared.ErrNoRefreshToken) {
				t.Errorf("expected ErrNoRefreshToken, got %v", err)
			}
		})

		t.Run("Transport Failure Is Not A TokenError", func(t *testing.T) {
			ts := httptest.NewServer(http.NotFoundHandler())
			base := ts.URL
			ts.Close()

			srv, _ := NewSpotifyService(testConfig(base), nil)
			_, err := srv.Refresh(context.Background(), "rt")
			if err == nil {
				t.Fatal("expected error")
			}
			var te *TokenError
			if errors.As(err, &te) {
				t.Errorf("connection failure should not look like a rejection: %v", te)
			}
		})
	})

	t.Run("Player", func(t *testing.T) {
		type captured struct {
			method, path, query, auth string
			body                      map[string]any
		}
		var last captured

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			last = captured{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, auth: r.Header.Get("Authorization")}
			last.body = nil
			if data, _ := io.ReadAll(r.Body); len(data) > 0 {
				json.Unmarshal(data, &last.body)
			}

			switch r.URL.Path {
			case "/v1/me":
				w.Header().Set("Content-Type", "application/json")
				io.WriteString(w, `{"id":"user1","display_name":"Test"}`)
			default:
				w.WriteHeader(http.StatusNoContent)
			}
		}))
		defer ts.Close()

		srv, _ := NewSpotifyService(testConfig(ts.URL), ts.Client())
		ctx := context.Background()

		t.Run("Me", func(t *testing.T) {
			resp, err := srv.Me(ctx, "tok")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if last.method != http.MethodGet || last.path != "/v1/me" || last.auth != "Bearer tok" {
				t.Errorf("unexpected request %+v", last)
			}
			if !strings.Contains(string(resp.Body), "user1") {
				t.Errorf("expected profile body, got %s", resp.Body)
			}
		})

		t.Run("TransferPlayback", func(t *testing.T) {
			resp, err := srv.TransferPlayback(ctx, "tok", "dev1", false)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.StatusCode != http.StatusNoContent {
				t.Errorf("expected 204, got %d", resp.StatusCode)
			}
			if last.method != http.MethodPut || last.path != "/v1/me/player" {
				t.Errorf("unexpected request %+v", last)
			}
			ids, _ := last.body["device_ids"].([]any)
			if len(ids) != 1 || ids[0] != "dev1" {
				t.Errorf("expected device_ids [dev1], got %v", last.body["device_ids"])
			}
			if play, ok := last.body["play"].(bool); !ok || play {
				t.Errorf("expected play false to be sent explicitly, got %v", last.body["play"])
			}
		})

		t.Run("Play", func(t *testing.T) {
			_, err := srv.Play(ctx, "tok", "dev 1&x", []any{"spotify:track:a", "spotify:track:b"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if last.method != http.MethodPut || last.path != "/v1/me/player/play" {
				t.Errorf("unexpected request %+v", last)
			}
			if q, _ := url.ParseQuery(last.query); q.Get("device_id") != "dev 1&x" {
				t.Errorf("expected escaped device id, got %s", last.query)
			}
			uris, _ := last.body["uris"].([]any)
			if len(uris) != 2 || uris[0] != "spotify:track:a" {
				t.Errorf("unexpected uris %v", last.body["uris"])
			}
		})
	})
}

func TestGenerateState(t *testing.T) {
	a, err := GenerateState()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	b, _ := GenerateState()

	if a == b {
		t.Error("expected distinct states")
	}
	if len(a) != 22 {
		t.Errorf("expected 22 base64url chars for 16 bytes, got %d", len(a))
	}
	if strings.ContainsAny(a, "+/=") {
		t.Errorf("state should be URL safe: %s", a)
	}
}

func TestTokenLifetime(t *testing.T) {
	t.Run("Unknown Expiry Falls Back To An Hour", func(t *testing.T) {
		if d := TokenLifetime(&oauth2.Token{}); d != time.Hour {
			t.Errorf("expected 1h, got %s", d)
		}
		if d := TokenLifetime(nil); d != time.Hour {
			t.Errorf("expected 1h for nil, got %s", d)
		}
	})

	t.Run("Expired", func(t *testing.T) {
		if d := TokenLifetime(&oauth2.Token{Expiry: time.Now().Add(-time.Minute)}); d != 0 {
			t.Errorf("expected 0, got %s", d)
		}
	})

	t.Run("Future", func(t *testing.T) {
		d := TokenLifetime(&oauth2.Token{Expiry: time.Now().Add(10 * time.Minute)})
		if d <= 9*time.Minute || d > 10*time.Minute {
			t.Errorf("expected about 10m, got %s", d)
		}
	})
}
