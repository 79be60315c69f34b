package server

import (
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/qrtune/internal/links"
	"github.com/desertthunder/qrtune/internal/models"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// ResolveHandler parses scanned QR text and serves the scan history.
type ResolveHandler struct {
	scans  ScanStore
	logger *log.Logger
}

// NewResolveHandler creates a resolver. scans may be nil, which disables history.
func NewResolveHandler(scans ScanStore, logger *log.Logger) *ResolveHandler {
	return &ResolveHandler{scans: scans, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *ResolveHandler) Routes() []Route {
	return []Route{
		{Method: http.MethodPost, Path: "/resolve", Handler: h.Resolve},
		{Method: http.MethodGet, Path: "/history", Handler: h.History},
	}
}

// ResolveResponse is a resolution plus the id of the recorded scan, when one was stored.
type ResolveResponse struct {
	links.Resolution
	ScanID string `json:"scan_id,omitempty"`
}

// Resolve accepts {"text": ...} or a form field text.
func (h *ResolveHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	text, err := resolveText(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSON.Error())
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "text_required")
		return
	}

	resp := ResolveResponse{Resolution: links.Resolve(text)}

	if h.scans != nil {
		scan := models.NewScan(text, clientIP(r))
		if err := h.scans.Create(scan); err != nil {
			requestLogger(h.logger, r).Warn("failed to record scan", "error", err)
		} else {
			resp.ScanID = scan.ID()
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func resolveText(w http.ResponseWriter, r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" || mediaType == "" {
		var body struct {
			Text string `json:"text"`
		}
		if err := decodeBody(r, &body); err != nil {
			return "", err
		}
		return body.Text, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return r.PostForm.Get("text"), nil
}

// History lists recent scans, newest first.
func (h *ResolveHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.scans == nil {
		writeError(w, http.StatusServiceUnavailable, "storage_disabled")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	scans, err := h.scans.Recent(limit)
	if err != nil {
		requestLogger(h.logger, r).Error("failed to load history", "error", err)
		writeError(w, http.StatusInternalServerError, "history_unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"scans": models.Views(scans),
		"count": len(scans),
	})
}
