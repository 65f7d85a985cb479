package mood

import (
	"context"
	"errors"
	"testing"
)

func TestPushSource_emptyUntilPushed(t *testing.T) {
	s := NewPushSource()

	_, err := s.Capture(context.Background())
	if !errors.Is(err, ErrNoFrame) {
		t.Fatalf("expected ErrNoFrame, got %v", err)
	}

	s.Push([]byte("frame-1"))
	frame, err := s.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if string(frame.Data) != "frame-1" {
		t.Errorf("unexpected frame data %q", frame.Data)
	}
	if frame.TraceID == "" {
		t.Error("pushed frame must carry a trace id")
	}
	if frame.CapturedAt.IsZero() {
		t.Error("pushed frame must carry a capture time")
	}
}

func TestPushSource_capturesLatest(t *testing.T) {
	s := NewPushSource()

	first := s.Push([]byte("frame-1"))
	second := s.Push([]byte("frame-2"))
	if first.TraceID == second.TraceID {
		t.Error("each push must get its own trace id")
	}

	frame, err := s.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if string(frame.Data) != "frame-2" {
		t.Errorf("expected the latest frame, got %q", frame.Data)
	}
}

func TestInMemoryResultStore(t *testing.T) {
	store := NewInMemoryResultStore()

	if _, _, ok := store.Result(); ok {
		t.Fatal("fresh store must be empty")
	}

	res := PlaylistResult{Mood: Happy, Confidence: 0.9}
	art := &Artifact{SourceURL: "https://open.spotify.com/playlist/abc123", PNG: []byte("\x89PNG")}
	store.SetResult(res, art)

	got, gotArt, ok := store.Result()
	if !ok {
		t.Fatal("expected a stored result")
	}
	if got.Mood != Happy || gotArt != art {
		t.Errorf("unexpected stored values: %+v / %v", got, gotArt)
	}

	store.Clear()
	if _, _, ok := store.Result(); ok {
		t.Error("Clear must empty the store")
	}
}
