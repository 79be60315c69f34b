package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/qrtune/internal/services"
	"github.com/desertthunder/qrtune/internal/shared"
)

// AuthHandler runs the PKCE login, the callback exchange and token refresh.
// Tokens never reach the browser's scripts: they live in HttpOnly cookies.
type AuthHandler struct {
	auth     services.Authorizer
	cookies  *CookieJar
	limiter  *LoginLimiter
	redirect string
	logger   *log.Logger
}

// NewAuthHandler creates an auth handler. redirect is the frontend base URL the callback returns to.
func NewAuthHandler(auth services.Authorizer, cookies *CookieJar, limiter *LoginLimiter, redirect string, logger *log.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, cookies: cookies, limiter: limiter, redirect: redirect, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *AuthHandler) Routes() []Route {
	login := Route{Method: http.MethodGet, Path: "/login", Handler: h.Login}
	if h.limiter != nil {
		login.Middleware = []Middleware{h.limiter.Middleware()}
	}

	return []Route{
		login,
		{Method: http.MethodGet, Path: "/callback", Handler: h.Callback},
		{Method: http.MethodPost, Path: "/refresh", Handler: h.Refresh},
	}
}

// Login stores a fresh state and verifier and redirects to the authorize URL.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(h.logger, r)

	state, err := services.GenerateState()
	if err != nil {
		logger.Error("failed to generate state", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	verifier := services.GenerateVerifier()

	if err := h.setAll(w, map[string]string{CookieVerifier: verifier, CookieState: state}); err != nil {
		logger.Error("failed to set login cookies", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	http.Redirect(w, r, h.auth.AuthURL(state, verifier), http.StatusFound)
}

func (h *AuthHandler) setAll(w http.ResponseWriter, values map[string]string) error {
	for name, value := range values {
		if err := h.cookies.Set(w, name, value, flowCookieAge); err != nil {
			return err
		}
	}
	return nil
}

// Callback checks state, exchanges the code and stores the tokens.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(h.logger, r)

	query := r.URL.Query()
	code, state := query.Get("code"), query.Get("state")
	savedState, hasState := h.cookies.Get(r, CookieState)
	verifier, hasVerifier := h.cookies.Get(r, CookieVerifier)

	if code == "" || state == "" || !hasState || state != savedState || !hasVerifier {
		if reason := query.Get("error"); reason != "" {
			logger.Warn("authorization denied", "error", reason)
		}
		logger.Warn("callback rejected", "error", shared.ErrInvalidState)
		http.Error(w, "Invalid authorization state", http.StatusBadRequest)
		return
	}

	token, err := h.auth.Exchange(r.Context(), code, verifier)
	if err != nil {
		logger.Error("token exchange failed", "error", err)
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	if err := h.cookies.Set(w, CookieAccessToken, token.AccessToken, services.TokenLifetime(token)); err != nil {
		logger.Error("failed to set access cookie", "error", err)
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}
	if token.RefreshToken != "" {
		if err := h.cookies.Set(w, CookieRefreshToken, token.RefreshToken, refreshCookieAge); err != nil {
			logger.Error("failed to set refresh cookie", "error", err)
		}
	}

	h.cookies.Clear(w, CookieVerifier)
	h.cookies.Clear(w, CookieState)

	logger.Info("authorization complete")
	http.Redirect(w, r, h.redirect+"/#/auth/success", http.StatusFound)
}

// Refresh swaps the refresh cookie for a new access token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(h.logger, r)

	refreshToken, ok := h.cookies.Get(r, CookieRefreshToken)
	if !ok {
		writeError(w, http.StatusUnauthorized, "no_refresh_token")
		return
	}

	token, err := h.auth.Refresh(r.Context(), refreshToken)
	if err != nil {
		var te *services.TokenError
		if errors.As(err, &te) {
			logger.Warn("refresh rejected", "status", te.StatusCode)
			if json.Valid(te.Body) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write(te.Body)
				return
			}
			writeError(w, http.StatusUnauthorized, "refresh_rejected")
			return
		}

		logger.Error("refresh failed", "error", err)
		writeError(w, http.StatusInternalServerError, "refresh_failed")
		return
	}

	if err := h.cookies.Set(w, CookieAccessToken, token.AccessToken, services.TokenLifetime(token)); err != nil {
		logger.Error("failed to set access cookie", "error", err)
		writeError(w, http.StatusInternalServerError, "refresh_failed")
		return
	}
	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		if err := h.cookies.Set(w, CookieRefreshToken, token.RefreshToken, refreshCookieAge); err != nil {
			logger.Error("failed to set refresh cookie", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
