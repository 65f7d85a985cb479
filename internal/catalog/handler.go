package catalog

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the Spotify session endpoints. The client may be nil when
// no credentials are configured; status then reports needs_credentials and
// the remaining endpoints answer 503.
type Handler struct {
	client *Client
	log    *slog.Logger

	mu    sync.Mutex
	state string
}

// NewHandler returns a Handler for client (which may be nil).
func NewHandler(client *Client, log *slog.Logger) *Handler {
	return &Handler{client: client, log: log}
}

// Mount registers the Spotify session routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/spotify", func(r chi.Router) {
		r.Get("/status", h.Status)
		r.Get("/auth-url", h.AuthURL)
		r.Post("/token", h.SetToken)
		r.Post("/cleanup", h.Cleanup)
	})
	r.Get("/callback", h.Callback)
}

// Status handles GET /spotify/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"has_credentials":   false,
			"is_authenticated":  false,
			"status":            "needs_credentials",
			"playlist_creation": "disabled",
		})
		return
	}

	resp := map[string]any{
		"has_credentials":   true,
		"is_authenticated":  false,
		"status":            "needs_auth",
		"playlist_creation": "disabled",
	}
	if h.client.Authenticated() {
		resp["is_authenticated"] = true
		resp["status"] = "ready"
		resp["playlist_creation"] = "enabled"
		if id, name, err := h.client.UserDisplayName(r.Context()); err == nil {
			resp["user"] = map[string]string{"id": id, "display_name": name}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// AuthURL handles GET /spotify/auth-url: it issues a fresh OAuth state and
// returns the authorization URL to visit.
func (h *Handler) AuthURL(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "spotify credentials not configured"})
		return
	}

	state, err := generateState()
	if err != nil {
		h.log.Error("generating oauth state", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h.mu.Lock()
	h.state = state
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{
		"auth_url": h.client.AuthURL(state),
	})
}

// Callback handles GET /callback, the OAuth redirect target.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "spotify credentials not configured"})
		return
	}

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   errParam,
			"message": "authorization was denied or failed",
		})
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no authorization code received"})
		return
	}

	h.mu.Lock()
	expected := h.state
	h.mu.Unlock()
	if expected == "" || r.URL.Query().Get("state") != expected {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "oauth state mismatch"})
		return
	}

	if err := h.client.Exchange(r.Context(), code); err != nil {
		h.log.Error("oauth exchange failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid or expired authorization code"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "authorization successful, real playlists will now be created",
	})
}

// SetToken handles POST /spotify/token?code=..., the manual alternative to
// the callback for clients that copy the code by hand.
func (h *Handler) SetToken(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "spotify credentials not configured"})
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing code parameter"})
		return
	}

	if err := h.client.Exchange(r.Context(), code); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid or expired authorization code"})
		return
	}

	id, name, err := h.client.UserDisplayName(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"user":   map[string]string{"id": id, "display_name": name},
	})
}

// Cleanup handles POST /spotify/cleanup: it unfollows every playlist this
// service created for the authenticated user.
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "spotify credentials not configured"})
		return
	}

	deleted, err := h.client.Cleanup(r.Context())
	if err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		h.log.Error("cleanup failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "success",
		"deleted_count":     len(deleted),
		"deleted_playlists": deleted,
	})
}

func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
