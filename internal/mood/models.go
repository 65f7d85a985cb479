package mood

import (
	"strings"
	"time"
)

// Label is a closed-set mood category inferred from a face.
type Label string

const (
	Angry    Label = "angry"
	Disgust  Label = "disgust"
	Fear     Label = "fear"
	Happy    Label = "happy"
	Sad      Label = "sad"
	Surprise Label = "surprise"
	Neutral  Label = "neutral"
)

// Labels lists every recognized mood label in classifier output order.
var Labels = []Label{Angry, Disgust, Fear, Happy, Sad, Surprise, Neutral}

// Descriptions gives a short description of the music each mood maps to.
var Descriptions = map[Label]string{
	Angry:    "Aggressive, rock, metal music",
	Disgust:  "Alternative, rock music",
	Fear:     "Calming, ambient, soothing music",
	Happy:    "Upbeat, energetic, positive music",
	Sad:      "Melancholic, emotional, slow music",
	Surprise: "Experimental, electronic, dynamic music",
	Neutral:  "Balanced, popular, chill music",
}

// ParseLabel normalizes s to a known label. ok is false for anything
// outside the closed set.
func ParseLabel(s string) (Label, bool) {
	l := Label(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Labels {
		if l == known {
			return l, true
		}
	}
	return "", false
}

// Frame is one still image captured from the live feed. Frames are consumed
// by the classifier immediately and never persisted.
type Frame struct {
	Data       []byte
	CapturedAt time.Time
	TraceID    string
}

// Result is a normalized classification outcome. Confidence is always in [0,1];
// values outside that range are rejected by the adapter before a Result exists.
type Result struct {
	Label      Label   `json:"mood"`
	Confidence float64 `json:"confidence"`
}

// Track is a single catalog track recommendation.
type Track struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
	PreviewURL string `json:"preview_url,omitempty"`
	SpotifyURL string `json:"spotify_url,omitempty"`
	DurationMs int    `json:"duration_ms,omitempty"`
	Popularity int    `json:"popularity,omitempty"`
}

// PlaylistResult is the outcome of resolving a mood against the catalog.
// URL is set only when the catalog returned a real, externally shareable
// playlist; an empty URL is a valid "no playlist yet" state, not an error.
type PlaylistResult struct {
	Mood       Label   `json:"mood"`
	Confidence float64 `json:"confidence"`
	URL        string  `json:"playlist_url,omitempty"`
	Tracks     []Track `json:"tracks"`

	// Fallback marks a locally synthesized result (catalog unavailable).
	Fallback bool `json:"-"`
}

// Artifact is a scannable code rendering of a shareable playlist URL.
type Artifact struct {
	SourceURL string
	PNG       []byte
}

// LoopState is the capture loop's lifecycle state, owned exclusively by the
// Controller.
type LoopState int

const (
	Idle LoopState = iota
	Running
	Paused
)

func (s LoopState) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}
