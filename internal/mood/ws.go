package mood

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1 << 20, // frames arrive base64-encoded
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsRequest is one inbound message on the realtime stream: a base64 frame
// plus an opaque client timestamp that is echoed back.
type wsRequest struct {
	Image           string          `json:"image"`
	Timestamp       json.RawMessage `json:"timestamp,omitempty"`
	IncludePlaylist bool            `json:"include_playlist,omitempty"`
}

type wsResponse struct {
	Mood            string          `json:"mood"`
	Confidence      float64         `json:"confidence"`
	Timestamp       json.RawMessage `json:"timestamp,omitempty"`
	Recommendations []Track         `json:"recommendations,omitempty"`
}

type wsError struct {
	Error string `json:"error"`
}

// wsRecommendationLimit caps the track list sent per realtime frame.
const wsRecommendationLimit = 5

// VideoMoodSocket handles GET /ws/video-mood: the client streams frames,
// the server answers with a classification per frame. Every good frame also
// refreshes the capture loop's sample source.
func (h *Handler) VideoMoodSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.IncWSClients()
		defer h.metrics.DecWSClients()
	}
	h.log.Info("video mood client connected", slog.String("remote", conn.RemoteAddr().String()))

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read failed", slog.String("error", err.Error()))
			}
			h.log.Info("video mood client disconnected")
			return
		}

		if req.Image == "" {
			_ = conn.WriteJSON(wsError{Error: "no image data provided"})
			continue
		}

		data, err := decodeImage(req.Image)
		if err != nil {
			_ = conn.WriteJSON(wsError{Error: "invalid image data"})
			continue
		}

		frame := h.source.Push(data)
		result, err := h.classifier.Classify(r.Context(), frame)
		if err != nil {
			_ = conn.WriteJSON(wsError{Error: "failed to process frame"})
			continue
		}

		resp := wsResponse{
			Mood:       string(result.Label),
			Confidence: result.Confidence,
			Timestamp:  req.Timestamp,
		}
		if req.IncludePlaylist {
			playlist := h.resolver.ResolveN(r.Context(), result.Label, result.Confidence, nil, wsRecommendationLimit)
			resp.Recommendations = playlist.Tracks
		}

		if err := conn.WriteJSON(resp); err != nil {
			h.log.Debug("websocket write failed", slog.String("error", err.Error()))
			return
		}
	}
}
