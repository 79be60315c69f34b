// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/qrtune/internal/services"
	"golang.org/x/oauth2"
)

// MockAuthorizer is a test double for [services.Authorizer]
type MockAuthorizer struct {
	mu sync.Mutex

	URL          string
	Token        *oauth2.Token
	ExchangeErr  error
	RefreshToken *oauth2.Token
	RefreshErr   error

	// Captured arguments
	Codes     []string
	Verifiers []string
	Refreshes []string
}

func (m *MockAuthorizer) AuthURL(state, verifier string) string {
	return m.URL + "?state=" + state + "&verifier=" + verifier
}

func (m *MockAuthorizer) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Codes = append(m.Codes, code)
	m.Verifiers = append(m.Verifiers, verifier)
	return m.Token, m.ExchangeErr
}

func (m *MockAuthorizer) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Refreshes = append(m.Refreshes, refreshToken)
	return m.RefreshToken, m.RefreshErr
}

// PlayerCall records one forwarded playback call.
type PlayerCall struct {
	Method   string
	Token    string
	DeviceID string
	Play     bool
	URIs     []any
}

// MockPlayer is a test double for [services.Player]. Every call returns Response and Err.
type MockPlayer struct {
	mu sync.Mutex

	Response *services.APIResponse
	Err      error
	Calls    []PlayerCall
}

func (m *MockPlayer) record(c PlayerCall) (*services.APIResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, c)
	return m.Response, m.Err
}

func (m *MockPlayer) Me(ctx context.Context, token string) (*services.APIResponse, error) {
	return m.record(PlayerCall{Method: "me", Token: token})
}

func (m *MockPlayer) TransferPlayback(ctx context.Context, token, deviceID string, play bool) (*services.APIResponse, error) {
	return m.record(PlayerCall{Method: "transfer", Token: token, DeviceID: deviceID, Play: play})
}

func (m *MockPlayer) Play(ctx context.Context, token, deviceID string, uris []any) (*services.APIResponse, error) {
	return m.record(PlayerCall{Method: "play", Token: token, DeviceID: deviceID, URIs: uris})
}

// LastCall returns the most recent call, or the zero value when none were made.
func (m *MockPlayer) LastCall() PlayerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return PlayerCall{}
	}
	return m.Calls[len(m.Calls)-1]
}

// CallCount returns how many calls were forwarded.
func (m *MockPlayer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
