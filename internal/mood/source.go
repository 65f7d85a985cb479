package mood

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNoFrame is returned by a SampleSource that has nothing to capture yet.
var ErrNoFrame = errors.New("no frame available")

// SampleSource produces one still frame on demand. Only the Controller may
// capture from it.
type SampleSource interface {
	Capture(ctx context.Context) (Frame, error)
}

// PushSource is a SampleSource fed by the client: the websocket and upload
// endpoints push encoded frames into it, and each Capture returns the most
// recent one. Older frames are overwritten, never queued.
type PushSource struct {
	mu    sync.RWMutex
	frame Frame
	set   bool
}

// NewPushSource returns an empty PushSource.
func NewPushSource() *PushSource {
	return &PushSource{}
}

// Push stores data as the latest frame, stamping it with the capture time and
// a fresh trace ID, and returns the stored frame.
func (s *PushSource) Push(data []byte) Frame {
	f := Frame{
		Data:       data,
		CapturedAt: time.Now().UTC(),
		TraceID:    uuid.NewString(),
	}
	s.mu.Lock()
	s.frame = f
	s.set = true
	s.mu.Unlock()
	return f
}

// Capture implements SampleSource. It returns ErrNoFrame until the first Push.
func (s *PushSource) Capture(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.set {
		return Frame{}, ErrNoFrame
	}
	return s.frame, nil
}
