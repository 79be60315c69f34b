// Spotify Accounts (PKCE) and Web API playback implementation of [Authorizer] and [Player]
//
// Endpoints based on https://developer.spotify.com/documentation/web-api/
package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/qrtune/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	defaultAPIURL   = "https://api.spotify.com/v1"
)

// DefaultScopes are the scopes the browser player needs: profile, Web Playback SDK streaming and playback control.
var DefaultScopes = []string{
	"user-read-email",
	"user-read-private",
	"streaming",
	"user-modify-playback-state",
	"user-read-playback-state",
}

// TokenError is returned when the token endpoint rejects a request.
// StatusCode and Body are Spotify's response, kept for passthrough.
type TokenError struct {
	StatusCode int
	Body       []byte
	err        error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("token endpoint returned %d: %s", e.StatusCode, strings.TrimSpace(string(e.Body)))
}

func (e *TokenError) Unwrap() error { return e.err }

// SpotifyService implements [Authorizer] and [Player] against Spotify.
//
// It is a public client: no secret is held, client_id travels in the token request form.
type SpotifyService struct {
	config     *oauth2.Config
	api        *APIService
	httpClient *http.Client
}

// NewSpotifyService creates a Spotify service from configuration.
//
// client may be nil, in which case [http.DefaultClient] is used for both accounts and API calls.
func NewSpotifyService(cfg shared.SpotifyConfig, client *http.Client) (*SpotifyService, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: missing spotify client_id", shared.ErrMissingConfig)
	}
	if cfg.RedirectURI == "" {
		return nil, fmt.Errorf("%w: missing spotify redirect_uri", shared.ErrMissingConfig)
	}
	if client == nil {
		client = http.DefaultClient
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	config := &oauth2.Config{
		ClientID:    cfg.ClientID,
		RedirectURL: cfg.RedirectURI,
		Scopes:      scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   orDefault(cfg.AuthURL, spotifyAuthURL),
			TokenURL:  orDefault(cfg.TokenURL, spotifyTokenURL),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	return &SpotifyService{
		config:     config,
		api:        NewAPIService(strings.TrimRight(orDefault(cfg.APIURL, defaultAPIURL), "/"), client),
		httpClient: client,
	}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Name returns the name of the service.
func (s *SpotifyService) Name() string {
	return "Spotify"
}

// AuthURL returns the authorize URL: response_type=code, client_id, scope, redirect_uri, state
// and an S256 code_challenge derived from verifier.
func (s *SpotifyService) AuthURL(state, verifier string) string {
	return s.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades an authorization code for tokens, proving possession of verifier.
func (s *SpotifyService) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(s.clientContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrTokenExchange, tokenError(err))
	}
	return token, nil
}

// Refresh uses refreshToken to obtain a new access token.
//
// Spotify may rotate the refresh token; the returned token carries the current one either way.
func (s *SpotifyService) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}

	token, err := s.config.TokenSource(s.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, tokenError(err))
	}
	return token, nil
}

// clientContext makes oauth2 use the service's HTTP client.
func (s *SpotifyService) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// tokenError converts oauth2's retrieve errors into [TokenError] so callers don't depend on oauth2 internals.
func tokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &TokenError{StatusCode: re.Response.StatusCode, Body: re.Body, err: err}
	}
	return err
}

// Me retrieves the current user's profile, GET /me.
func (s *SpotifyService) Me(ctx context.Context, token string) (*APIResponse, error) {
	return s.api.Get(ctx, "/me", token)
}

// TransferPlayback moves playback to deviceID, PUT /me/player.
func (s *SpotifyService) TransferPlayback(ctx context.Context, token, deviceID string, play bool) (*APIResponse, error) {
	return s.api.Put(ctx, "/me/player", token, TransferRequest{DeviceIDs: []string{deviceID}, Play: play})
}

// Play starts uris on deviceID, PUT /me/player/play?device_id=...
func (s *SpotifyService) Play(ctx context.Context, token, deviceID string, uris []any) (*APIResponse, error) {
	endpoint := "/me/player/play?device_id=" + url.QueryEscape(deviceID)
	return s.api.Put(ctx, endpoint, token, PlayRequest{URIs: uris})
}

// GenerateState returns a random base64url state nonce (16 bytes of entropy).
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateVerifier returns a new RFC 7636 code verifier.
func GenerateVerifier() string {
	return oauth2.GenerateVerifier()
}

// TokenLifetime returns how long token stays valid, falling back to an hour when the
// token endpoint did not say.
func TokenLifetime(token *oauth2.Token) time.Duration {
	if token == nil || token.Expiry.IsZero() {
		return time.Hour
	}
	if d := time.Until(token.Expiry); d > 0 {
		return d
	}
	return 0
}
