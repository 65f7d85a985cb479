package mood

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"moodtunes/internal/platform/metrics"
)

// moodOnlyTimeout bounds catalog resolution on the playlist-by-mood endpoint,
// which runs without a fresh capture and is expected to answer faster than
// the combined flow.
const moodOnlyTimeout = 15 * time.Second

// Handler exposes the pipeline HTTP endpoints using go-chi.
type Handler struct {
	ctrl       *Controller
	classifier Classifier
	resolver   *Resolver
	source     *PushSource
	store      ResultStore
	catalog    Catalog // may be nil
	log        *slog.Logger
	metrics    *metrics.Metrics // may be nil
}

// NewHandler returns a Handler wired to the pipeline components. catalog and
// m may be nil (no credentials / no metric recording, e.g. in tests).
func NewHandler(ctrl *Controller, classifier Classifier, resolver *Resolver, source *PushSource, store ResultStore, catalog Catalog, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		ctrl:       ctrl,
		classifier: classifier,
		resolver:   resolver,
		source:     source,
		store:      store,
		catalog:    catalog,
		log:        log,
		metrics:    m,
	}
}

type detectRequest struct {
	ImageBase64 string `json:"image_base64"`
}

type detectResponse struct {
	Mood            string  `json:"mood"`
	Confidence      float64 `json:"confidence"`
	PlaylistURL     string  `json:"playlist_url,omitempty"`
	Recommendations []Track `json:"recommendations"`
}

type playlistResponse struct {
	Mood        string  `json:"mood"`
	PlaylistURL string  `json:"playlist_url,omitempty"`
	Tracks      []Track `json:"tracks"`
}

// DetectMood handles POST /detect-mood: classify one frame, no catalog
// interaction.
func (h *Handler) DetectMood(w http.ResponseWriter, r *http.Request) {
	frame, ok := h.frameFromJSON(w, r)
	if !ok {
		return
	}

	result, err := h.classifier.Classify(r.Context(), frame)
	if err != nil {
		h.writeClassifyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// MoodAndPlaylist handles POST /mood-and-playlist: classify one frame, then
// resolve a playlist for the detected mood. Catalog failures degrade to a
// fallback result inside the resolver; only classifier failures error out.
func (h *Handler) MoodAndPlaylist(w http.ResponseWriter, r *http.Request) {
	frame, ok := h.frameFromJSON(w, r)
	if !ok {
		return
	}

	result, err := h.classifier.Classify(r.Context(), frame)
	if err != nil {
		h.writeClassifyError(w, err)
		return
	}

	playlist := h.resolver.ResolveN(r.Context(), result.Label, result.Confidence, nil, limitParam(r))

	writeJSON(w, http.StatusOK, detectResponse{
		Mood:            string(result.Label),
		Confidence:      result.Confidence,
		PlaylistURL:     playlist.URL,
		Recommendations: playlist.Tracks,
	})
}

// PlaylistByMood handles GET /playlist/{mood}: catalog resolution for a label
// independent of a fresh capture.
func (h *Handler) PlaylistByMood(w http.ResponseWriter, r *http.Request) {
	label, ok := ParseLabel(chi.URLParam(r, "mood"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown mood label"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), moodOnlyTimeout)
	defer cancel()

	playlist := h.resolver.ResolveN(ctx, label, 0, nil, limitParam(r))

	writeJSON(w, http.StatusOK, playlistResponse{
		Mood:        string(playlist.Mood),
		PlaylistURL: playlist.URL,
		Tracks:      playlist.Tracks,
	})
}

// UploadImage handles POST /upload-image, the multipart alternative to the
// base64 body.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing file upload"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid image data"})
		return
	}

	frame := h.source.Push(data)
	result, err := h.classifier.Classify(r.Context(), frame)
	if err != nil {
		h.writeClassifyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mood":       result.Label,
		"confidence": result.Confidence,
		"filename":   header.Filename,
	})
}

// Moods handles GET /moods.
func (h *Handler) Moods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"moods":             Labels,
		"mood_descriptions": Descriptions,
	})
}

// Artifact handles GET /artifact.png: the scannable code for the latest
// stored real playlist, or 404 when none exists.
func (h *Handler) Artifact(w http.ResponseWriter, r *http.Request) {
	_, art, ok := h.store.Result()
	if !ok || art == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(art.PNG)
}

// Loop handles GET /loop.
func (h *Handler) Loop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

// StartLoop handles POST /loop/start.
func (h *Handler) StartLoop(w http.ResponseWriter, r *http.Request) {
	h.ctrl.Start()
	h.writeLoopState(w)
}

// StopLoop handles POST /loop/stop.
func (h *Handler) StopLoop(w http.ResponseWriter, r *http.Request) {
	h.ctrl.Stop()
	h.writeLoopState(w)
}

// PauseLoop handles POST /loop/pause.
func (h *Handler) PauseLoop(w http.ResponseWriter, r *http.Request) {
	h.ctrl.Pause()
	h.writeLoopState(w)
}

// ResumeLoop handles POST /loop/resume.
func (h *Handler) ResumeLoop(w http.ResponseWriter, r *http.Request) {
	h.ctrl.Resume()
	h.writeLoopState(w)
}

// OpenDialog handles POST /dialog/open: the result view opened, suppress
// capture.
func (h *Handler) OpenDialog(w http.ResponseWriter, r *http.Request) {
	h.ctrl.OpenDialog()
	h.writeLoopState(w)
}

// CloseDialog handles POST /dialog/close: the result view closed, clear the
// stored result and resume with one immediate capture.
func (h *Handler) CloseDialog(w http.ResponseWriter, r *http.Request) {
	h.ctrl.CloseDialog()
	h.writeLoopState(w)
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                    "healthy",
		"loop_state":                h.ctrl.State().String(),
		"catalog_search_available":  h.catalog != nil,
		"catalog_playlist_creation": h.catalog != nil && h.catalog.Authenticated(),
	})
}

// frameFromJSON decodes the base64 image body, pushes the frame into the
// sample source, and reports client errors itself. ok is false when a
// response has already been written.
func (h *Handler) frameFromJSON(w http.ResponseWriter, r *http.Request) (Frame, bool) {
	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid request body", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return Frame{}, false
	}

	data, err := decodeImage(req.ImageBase64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid image data"})
		return Frame{}, false
	}

	return h.source.Push(data), true
}

// writeClassifyError maps classification failures onto HTTP statuses:
// no face is a client problem, everything else means the classifier service
// could not produce a valid answer.
func (h *Handler) writeClassifyError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNoFace) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no face detected in image"})
		return
	}
	h.log.Warn("classification failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "mood detection unavailable"})
}

func (h *Handler) writeLoopState(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"state": h.ctrl.State().String()})
}

// decodeImage decodes a base64 image payload, tolerating a data-URL prefix.
func decodeImage(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("empty image payload")
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty image payload")
	}
	return data, nil
}

func limitParam(r *http.Request) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
