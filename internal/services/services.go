// package services defines the Spotify accounts and Web API clients used by the relay
package services

import (
	"context"

	"golang.org/x/oauth2"
)

// Authorizer runs the OAuth2 authorization code flow with PKCE.
type Authorizer interface {
	// AuthURL builds the provider authorize URL carrying state and the S256 challenge for verifier.
	AuthURL(state, verifier string) string

	// Exchange trades an authorization code and its verifier for tokens.
	Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error)

	// Refresh obtains a new access token from a refresh token.
	// Rejections by the token endpoint come back as *[TokenError].
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Player forwards bearer-authenticated playback calls and returns the upstream response verbatim.
type Player interface {
	// Me fetches the current user's profile.
	Me(ctx context.Context, token string) (*APIResponse, error)

	// TransferPlayback moves playback to deviceID, optionally starting it.
	TransferPlayback(ctx context.Context, token, deviceID string, play bool) (*APIResponse, error)

	// Play starts the given track URIs on deviceID. Elements are forwarded as the client sent them.
	Play(ctx context.Context, token, deviceID string, uris []any) (*APIResponse, error)
}

// TransferRequest is the Web API body for PUT /me/player.
type TransferRequest struct {
	DeviceIDs []string `json:"device_ids"`
	Play      bool     `json:"play"`
}

// PlayRequest is the Web API body for PUT /me/player/play.
type PlayRequest struct {
	URIs []any `json:"uris"`
}
