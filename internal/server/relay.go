package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/qrtune/internal/services"
)

// maxBodyBytes caps relay request bodies.
const maxBodyBytes = 64 << 10

var errInvalidJSON = errors.New("invalid_json")

// RelayHandler forwards the browser player's calls to the Web API using the access cookie.
type RelayHandler struct {
	player  services.Player
	cookies *CookieJar
	logger  *log.Logger
}

// NewRelayHandler creates a playback relay handler.
func NewRelayHandler(player services.Player, cookies *CookieJar, logger *log.Logger) *RelayHandler {
	return &RelayHandler{player: player, cookies: cookies, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *RelayHandler) Routes() []Route {
	return []Route{
		{Method: http.MethodGet, Path: "/me", Handler: h.Me},
		{Method: http.MethodGet, Path: "/sdk-token", Handler: h.SDKToken},
		{Method: http.MethodPost, Path: "/transfer-playback", Handler: h.TransferPlayback},
		{Method: http.MethodPost, Path: "/play", Handler: h.Play},
	}
}

func (h *RelayHandler) token(w http.ResponseWriter, r *http.Request) (string, bool) {
	token, ok := h.cookies.Get(r, CookieAccessToken)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
	}
	return token, ok
}

// Me relays the profile with Spotify's status and body.
func (h *RelayHandler) Me(w http.ResponseWriter, r *http.Request) {
	token, ok := h.token(w, r)
	if !ok {
		return
	}

	resp, err := h.player.Me(r.Context(), token)
	if err != nil {
		h.upstreamFailed(w, r, err)
		return
	}

	if ct := resp.ContentType(); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}

// SDKToken hands the access token to the Web Playback SDK.
func (h *RelayHandler) SDKToken(w http.ResponseWriter, r *http.Request) {
	token, ok := h.token(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token})
}

type transferBody struct {
	DeviceID any `json:"device_id"`
	Play     any `json:"play"`
}

// TransferPlayback moves playback to the browser device.
func (h *RelayHandler) TransferPlayback(w http.ResponseWriter, r *http.Request) {
	token, ok := h.token(w, r)
	if !ok {
		return
	}

	var body transferBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSON.Error())
		return
	}
	deviceID := stringField(body.DeviceID)
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "device_id_required")
		return
	}

	resp, err := h.player.TransferPlayback(r.Context(), token, deviceID, truthy(body.Play))
	if err != nil {
		h.upstreamFailed(w, r, err)
		return
	}

	w.WriteHeader(resp.StatusCode)
}

type playBody struct {
	DeviceID any `json:"device_id"`
	URIs     any `json:"uris"`
}

// uris returns the URI list when it is a non-empty JSON array.
func (b playBody) uris() ([]any, bool) {
	list, ok := b.URIs.([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	return list, true
}

// stringField returns v when it is a string, and "" for any other JSON value.
func stringField(v any) string {
	s, _ := v.(string)
	return s
}

// truthy maps a decoded JSON value onto a boolean: false, 0, "" and null are false.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		return t != ""
	}
	return true
}

// Play starts tracks on the browser device. Upstream failures are logged and their status relayed.
func (h *RelayHandler) Play(w http.ResponseWriter, r *http.Request) {
	token, ok := h.token(w, r)
	if !ok {
		return
	}

	var body playBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSON.Error())
		return
	}

	deviceID := stringField(body.DeviceID)
	uris, ok := body.uris()
	if deviceID == "" || !ok {
		writeError(w, http.StatusBadRequest, "device_id_and_uris_required")
		return
	}

	resp, err := h.player.Play(r.Context(), token, deviceID, uris)
	if err != nil {
		h.upstreamFailed(w, r, err)
		return
	}

	if !resp.OK() {
		requestLogger(h.logger, r).Warn("play rejected", "status", resp.StatusCode, "body", string(resp.Body))
	}
	w.WriteHeader(resp.StatusCode)
}

func (h *RelayHandler) upstreamFailed(w http.ResponseWriter, r *http.Request, err error) {
	requestLogger(h.logger, r).Error("spotify unreachable", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusBadGateway, "upstream_unavailable")
}

// decodeBody reads a JSON object body. An empty body decodes as {}.
func decodeBody(r *http.Request, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) > maxBodyBytes {
		return fmt.Errorf("body exceeds %d bytes", maxBodyBytes)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
