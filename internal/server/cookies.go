package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/qrtune/internal/shared"
	"github.com/gorilla/securecookie"
)

const (
	CookieAccessToken  = "access_token"
	CookieRefreshToken = "refresh_token"
	CookieVerifier     = "pkce_verifier"
	CookieState        = "oauth_state"

	flowCookieAge    = 10 * time.Minute
	refreshCookieAge = 30 * 24 * time.Hour
)

// CookieJar sets and reads the relay's cookies.
//
// When sealing keys are configured values are signed (and encrypted with a block key) with securecookie,
// otherwise they are stored verbatim. A value that fails to decode reads as absent.
type CookieJar struct {
	secure bool
	codec  *securecookie.SecureCookie
}

// NewCookieJar builds a jar from cookie configuration.
func NewCookieJar(cfg shared.CookieConfig) (*CookieJar, error) {
	jar := &CookieJar{secure: cfg.Secure}
	if cfg.HashKey == "" {
		if cfg.BlockKey != "" {
			return nil, fmt.Errorf("%w: cookie block_key requires hash_key", shared.ErrInvalidConfig)
		}
		return jar, nil
	}

	var block []byte
	if cfg.BlockKey != "" {
		block = []byte(cfg.BlockKey)
	}

	codec := securecookie.New([]byte(cfg.HashKey), block)
	codec.MaxAge(int(refreshCookieAge.Seconds()))
	jar.codec = codec
	return jar, nil
}

// Sealed reports whether values are signed.
func (j *CookieJar) Sealed() bool {
	return j.codec != nil
}

// Set writes an HttpOnly cookie valid for maxAge.
func (j *CookieJar) Set(w http.ResponseWriter, name, value string, maxAge time.Duration) error {
	if j.codec != nil {
		encoded, err := j.codec.Encode(name, value)
		if err != nil {
			return fmt.Errorf("failed to seal cookie %s: %w", name, err)
		}
		value = encoded
	}

	c := j.base(name)
	c.Value = value
	c.MaxAge = int(maxAge.Seconds())
	if c.MaxAge <= 0 {
		c.MaxAge = -1
	}
	http.SetCookie(w, c)
	return nil
}

// Get returns the cookie value, or false when it is missing, empty or fails to decode.
func (j *CookieJar) Get(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	if j.codec == nil {
		return c.Value, true
	}

	var value string
	if err := j.codec.Decode(name, c.Value, &value); err != nil || value == "" {
		return "", false
	}
	return value, true
}

// Clear expires the cookie.
func (j *CookieJar) Clear(w http.ResponseWriter, name string) {
	c := j.base(name)
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	http.SetCookie(w, c)
}

// base carries the attributes shared by every cookie. Browsers drop SameSite=None cookies
// that are not Secure, so insecure (local http) mode falls back to Lax.
func (j *CookieJar) base(name string) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Path:     "/",
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteNoneMode,
	}
	if !j.secure {
		c.SameSite = http.SameSiteLaxMode
	}
	return c
}
