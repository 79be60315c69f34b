// Package server provides the HTTP relay between the browser player and Spotify.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// The [BasicRouter] implementation uses [http.ServeMux] internally; middleware wraps the method filter
// so CORS preflight requests are answered before a 405 is decided.
//
// Handlers implement the [Handler] interface and return their [Route] set, letting a handler keep
// route definitions (and route-only middleware such as the /login rate limit) next to its methods.
//
// # Middleware Stack
//
// Outermost first: [RequestID], [Logging], [Recover], [CORS] and [SecurityHeaders].
//
// # OAuth Relay
//
// [AuthHandler] runs the authorization code flow with PKCE:
//   - GET /login stores a state nonce and code verifier in short-lived cookies and redirects to Spotify
//   - GET /callback checks the state, exchanges the code and stores access/refresh tokens as cookies
//   - POST /refresh swaps the refresh cookie for a new access token
//
// # Playback Relay
//
// [RelayHandler] forwards /me, /sdk-token, /transfer-playback and /play with the access cookie as bearer token,
// relaying Spotify's status. Spotify being unreachable yields 502.
//
// # Resolver
//
// [ResolveHandler] serves POST /resolve (QR text to media link) and GET /history when a [ScanStore] is configured.
package server
