package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/qrtune/internal/models"
	"github.com/desertthunder/qrtune/internal/services"
	"github.com/desertthunder/qrtune/internal/shared"
	tu "github.com/desertthunder/qrtune/internal/testing"
	"golang.org/x/oauth2"
)

const testOrigin = "http://localhost:5173"

func testConfig() *shared.Config {
	cfg := shared.DefaultConfig()
	cfg.Spotify.ClientID = "client"
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.FrontendOrigin = testOrigin
	cfg.Server.FrontendRedirectURL = ""
	return cfg
}

// memoryScans is an in-memory [ScanStore].
type memoryScans struct {
	scans     []*models.Scan
	lastLimit int
	err       error
}

func (m *memoryScans) Create(scan *models.Scan) error {
	if m.err != nil {
		return m.err
	}
	scan.SetID("scan-" + string(rune('a'+len(m.scans))))
	scan.SetSequence(len(m.scans) + 1)
	m.scans = append(m.scans, scan)
	return nil
}

func (m *memoryScans) Recent(limit int) ([]*models.Scan, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	out := []*models.Scan{}
	for i := len(m.scans) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.scans[i])
	}
	return out, nil
}

type fixture struct {
	cfg    *shared.Config
	auth   *tu.MockAuthorizer
	player *tu.MockPlayer
	scans  *memoryScans
	server *Server
}

func newFixture(t *testing.T, configure ...func(*shared.Config)) *fixture {
	t.Helper()

	cfg := testConfig()
	for _, fn := range configure {
		fn(cfg)
	}

	f := &fixture{
		cfg:  cfg,
		auth: &tu.MockAuthorizer{URL: "https://accounts.test/authorize"},
		player: &tu.MockPlayer{
			Response: &services.APIResponse{StatusCode: http.StatusNoContent, Headers: http.Header{}},
		},
		scans: &memoryScans{},
	}

	srv, err := New(Options{
		Config:     cfg,
		Authorizer: f.auth,
		Player:     f.player,
		Scans:      f.scans,
		Logger:     log.New(io.Discard),
	})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	f.server = srv
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func withCookies(req *http.Request, values map[string]string) *http.Request {
	for name, value := range values {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	return req
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, rec.Body.String())
	}
	return body
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Errorf("expected status %d, got %d (%s)", status, rec.Code, rec.Body.String())
	}
	if got := decodeJSON(t, rec)["error"]; got != code {
		t.Errorf("expected error %q, got %v", code, got)
	}
}

func TestNew(t *testing.T) {
	t.Run("Requires Config", func(t *testing.T) {
		_, err := New(Options{Authorizer: &tu.MockAuthorizer{}, Player: &tu.MockPlayer{}})
		if !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("Requires Services", func(t *testing.T) {
		_, err := New(Options{Config: testConfig()})
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Rejects Block Key Without Hash Key", func(t *testing.T) {
		cfg := testConfig()
		cfg.Cookies.BlockKey = strings.Repeat("b", 32)

		_, err := New(Options{Config: cfg, Authorizer: &tu.MockAuthorizer{}, Player: &tu.MockPlayer{}})
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestRouting(t *testing.T) {
	f := newFixture(t)

	t.Run("Health", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if decodeJSON(t, rec)["ok"] != true {
			t.Errorf("expected ok true, got %s", rec.Body.String())
		}
	})

	t.Run("Not Found", func(t *testing.T) {
		assertError(t, f.do(httptest.NewRequest(http.MethodGet, "/nope", nil)), http.StatusNotFound, "not_found")
	})

	t.Run("Method Not Allowed", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/refresh", nil))
		assertError(t, rec, http.StatusMethodNotAllowed, "method_not_allowed")
		if rec.Header().Get("Allow") != http.MethodPost {
			t.Errorf("expected Allow POST, got %q", rec.Header().Get("Allow"))
		}
	})

	t.Run("Handler Route Middleware Is Innermost", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mark("outer"))
		router.Handler(routeSet{{
			Method:     http.MethodGet,
			Path:       "/x",
			Handler:    func(w http.ResponseWriter, r *http.Request) { order = append(order, "handler") },
			Middleware: []Middleware{mark("route")},
		}})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
		if strings.Join(order, ",") != "outer,route,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})
}

type routeSet []Route

func (r routeSet) Routes() []Route { return r }

func TestMiddleware(t *testing.T) {
	f := newFixture(t)

	t.Run("Request ID Assigned", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
		if len(rec.Header().Get(RequestIDHeader)) != 36 {
			t.Errorf("expected uuid request id, got %q", rec.Header().Get(RequestIDHeader))
		}
	})

	t.Run("Request ID Reused", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "abc-123")

		if got := f.do(req).Header().Get(RequestIDHeader); got != "abc-123" {
			t.Errorf("expected caller's request id, got %q", got)
		}
	})

	t.Run("Security Headers", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Error("expected nosniff")
		}
		if rec.Header().Get("Referrer-Policy") == "" {
			t.Error("expected Referrer-Policy")
		}
	})

	t.Run("CORS Preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/play", nil)
		req.Header.Set("Origin", testOrigin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")

		rec := f.do(req)
		if rec.Code >= 300 {
			t.Fatalf("expected preflight success, got %d", rec.Code)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != testOrigin {
			t.Errorf("expected allowed origin, got %q", rec.Header().Get("Access-Control-Allow-Origin"))
		}
		if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
			t.Error("expected credentials to be allowed")
		}
		if f.player.CallCount() != 0 {
			t.Error("preflight must not reach the handler")
		}
	})

	t.Run("CORS Foreign Origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://evil.test")

		if got := f.do(req).Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("foreign origin should not be allowed, got %q", got)
		}
	})

	t.Run("Recover", func(t *testing.T) {
		h := Recover(log.New(io.Discard))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assertError(t, rec, http.StatusInternalServerError, "internal_error")
	})

	t.Run("Recover Is Logged", func(t *testing.T) {
		var buf strings.Builder
		logger := log.New(&buf)

		h := Logging(logger)(Recover(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		})))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/explode", nil))

		assertError(t, rec, http.StatusInternalServerError, "internal_error")
		out := buf.String()
		for _, want := range []string{"panic recovered", "http request", "path=/explode", "status=500"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in log output %q", want, out)
			}
		}
	})

	t.Run("Recover After Headers Written", func(t *testing.T) {
		h := Logging(log.New(io.Discard))(Recover(log.New(io.Discard))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte("partial"))
			panic("late")
		})))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusAccepted {
			t.Errorf("expected original status to stand, got %d", rec.Code)
		}
		if rec.Body.String() != "partial" {
			t.Errorf("expected no error body appended, got %q", rec.Body.String())
		}
	})

	t.Run("Logging Captures Status", func(t *testing.T) {
		var buf strings.Builder
		logger := log.New(&buf)

		h := RequestID()(Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
			w.Write([]byte("short"))
		})))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew", nil))

		out := buf.String()
		for _, want := range []string{"http request", "path=/brew", "status=418", "size=5", "request_id="} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in log line %q", want, out)
			}
		}
	})
}

func TestLoginLimiter(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		l := NewLoginLimiter(shared.RateLimitConfig{})
		for range 100 {
			if !l.Allow("a") {
				t.Fatal("disabled limiter should allow everything")
			}
		}
		if l.Len() != 0 {
			t.Error("disabled limiter should not track clients")
		}
	})

	t.Run("Per Client Burst", func(t *testing.T) {
		now := time.Unix(1000, 0)
		l := NewLoginLimiter(shared.RateLimitConfig{LoginPerMinute: 60, Burst: 2})
		l.now = func() time.Time { return now }

		if !l.Allow("a") || !l.Allow("a") {
			t.Fatal("burst should be allowed")
		}
		if l.Allow("a") {
			t.Error("third immediate request should be limited")
		}
		if !l.Allow("b") {
			t.Error("other clients have their own bucket")
		}

		now = now.Add(time.Second)
		if !l.Allow("a") {
			t.Error("one token per second should refill")
		}
	})

	t.Run("Prune", func(t *testing.T) {
		now := time.Unix(1000, 0)
		l := NewLoginLimiter(shared.RateLimitConfig{LoginPerMinute: 10})
		l.now = func() time.Time { return now }

		l.Allow("old")
		now = now.Add(5 * time.Minute)
		l.Allow("new")

		if removed := l.Prune(limiterIdle); removed != 1 {
			t.Errorf("expected 1 pruned, got %d", removed)
		}
		if l.Len() != 1 {
			t.Errorf("expected 1 tracked client, got %d", l.Len())
		}
	})
}

func TestServe(t *testing.T) {
	f := newFixture(t)

	var logs strings.Builder
	f.server.logger = log.New(&logs)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		cancel()
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	out := logs.String()
	if n := strings.Count(out, "relay listening"); n != 1 {
		t.Errorf("expected one listen line, got %d in %q", n, out)
	}
	for _, want := range []string{"addr=" + ln.Addr().String(), "frontend=" + testOrigin, "secure_cookies="} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in log output %q", want, out)
		}
	}
}

func testToken(access, refresh string, lifetime time.Duration) *oauth2.Token {
	return &oauth2.Token{AccessToken: access, RefreshToken: refresh, TokenType: "Bearer", Expiry: time.Now().Add(lifetime)}
}
