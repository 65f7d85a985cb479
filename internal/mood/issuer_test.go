package mood

import (
	"bytes"
	"testing"
)

func TestIssuer_urlShapes(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"real playlist URL", "https://open.spotify.com/playlist/abc123", true},
		{"real playlist URL with query", "https://open.spotify.com/playlist/37i9dQZF1DXdPec7aLTmlC?si=x", true},
		{"search query URL", "https://open.spotify.com/search/happy%20music", false},
		{"empty string", "", false},
		{"plain http scheme", "http://open.spotify.com/playlist/abc123", false},
		{"wrong host", "https://example.com/playlist/abc123", false},
		{"missing playlist segment", "https://open.spotify.com/abc123", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuer := NewIssuer()
			art, err := issuer.Issue(PlaylistResult{Mood: Happy, URL: tt.url})
			if err != nil {
				t.Fatalf("Issue: %v", err)
			}
			if got := art != nil; got != tt.want {
				t.Errorf("issued=%v, want %v", got, tt.want)
			}
			if art != nil {
				if art.SourceURL != tt.url {
					t.Errorf("artifact source %q, want %q", art.SourceURL, tt.url)
				}
				if len(art.PNG) == 0 {
					t.Error("artifact has no rendered image")
				}
				// A PNG starts with the fixed signature.
				if !bytes.HasPrefix(art.PNG, []byte("\x89PNG")) {
					t.Error("rendered image is not a PNG")
				}
			}
		})
	}
}

func TestIssuer_cachesPerSourceURL(t *testing.T) {
	issuer := NewIssuer()
	res := PlaylistResult{Mood: Happy, URL: "https://open.spotify.com/playlist/abc123"}

	first, err := issuer.Issue(res)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	second, err := issuer.Issue(res)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if first != second {
		t.Error("same source URL should return the cached artifact")
	}
}

func TestIssuer_fallbackNeverIssued(t *testing.T) {
	issuer := NewIssuer()
	fallback := NewFallbackSource(1).Resolve(Sad)

	art, err := issuer.Issue(fallback)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if art != nil {
		t.Error("fallback results must never produce an artifact")
	}
}
