// Package services talks to Spotify on behalf of the relay.
//
// # Authorization
//
// [Authorizer] covers the authorization code flow with PKCE. [SpotifyService] configures
// [oauth2.Config] as a public client: no client secret, client_id sent in the token request
// form ([oauth2.AuthStyleInParams]), an S256 code challenge on the authorize URL and the
// matching code_verifier on exchange.
//
// Token endpoint rejections are returned as [*TokenError] carrying Spotify's status and body so
// the HTTP layer can pass them through. Transport failures are returned as plain errors.
//
// # Playback
//
// [Player] forwards the three Web API calls the browser player needs:
//   - GET /me
//   - PUT /me/player (transfer playback to a Web Playback SDK device)
//   - PUT /me/player/play?device_id=... (start a list of track URIs)
//
// Responses come back as [APIResponse] regardless of status. Only failures to reach Spotify are errors.
//
// # Error Handling
//
// Services wrap sentinel errors from the shared package:
//   - [shared.ErrTokenExchange] : authorization code exchange failed
//   - [shared.ErrRefreshFailed] : refresh token grant failed
//   - [shared.ErrNoRefreshToken] : refresh attempted without a token
//   - [shared.ErrMissingConfig] : client_id or redirect_uri not configured
package services
