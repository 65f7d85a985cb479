package mood

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"moodtunes/internal/platform/logger"
)

// mutableSource is a SampleSource whose failure mode can be flipped mid-test.
type mutableSource struct {
	mu  sync.Mutex
	err error
}

func (s *mutableSource) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *mutableSource) Capture(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Frame{}, s.err
	}
	return Frame{Data: []byte("frame"), CapturedAt: time.Now(), TraceID: "trace"}, nil
}

// stubClassifier counts calls and can block to simulate a slow inference.
type stubClassifier struct {
	calls   atomic.Int64
	result  Result
	err     error
	block   chan struct{} // when non-nil, Classify waits until closed
	started chan struct{} // when non-nil, receives one value per call
}

func (c *stubClassifier) Classify(ctx context.Context, frame Frame) (Result, error) {
	c.calls.Add(1)
	if c.started != nil {
		select {
		case c.started <- struct{}{}:
		default:
		}
	}
	if c.block != nil {
		<-c.block
	}
	if c.err != nil {
		return Result{}, c.err
	}
	return c.result, nil
}

func newTestController(t *testing.T, source SampleSource, classifier Classifier, cat Catalog, interval time.Duration) (*Controller, ResultStore) {
	t.Helper()
	log := logger.Discard()
	resolver := NewResolver(cat, NewFallbackSource(1), time.Second, 5, log, nil)
	store := NewInMemoryResultStore()
	ctrl := NewController(source, classifier, resolver, NewIssuer(), store, interval, log, nil)
	t.Cleanup(ctrl.Stop)
	return ctrl, store
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func TestController_StartIdempotent(t *testing.T) {
	ctrl, _ := newTestController(t, &mutableSource{}, &stubClassifier{result: Result{Label: Happy, Confidence: 0.9}}, nil, time.Hour)

	ctrl.Start()
	ctrl.Start()
	if got := ctrl.State(); got != Running {
		t.Fatalf("expected Running, got %v", got)
	}
	ctrl.Stop()
	if got := ctrl.State(); got != Idle {
		t.Fatalf("expected Idle after Stop, got %v", got)
	}
}

func TestController_StopFromIdle_noop(t *testing.T) {
	ctrl, _ := newTestController(t, &mutableSource{}, &stubClassifier{}, nil, time.Hour)

	ctrl.Stop()
	if got := ctrl.State(); got != Idle {
		t.Fatalf("expected Idle, got %v", got)
	}
}

func TestController_PauseResume_guards(t *testing.T) {
	ctrl, _ := newTestController(t, &mutableSource{}, &stubClassifier{}, nil, time.Hour)

	// Pause and Resume from Idle are no-ops.
	ctrl.Pause()
	if got := ctrl.State(); got != Idle {
		t.Fatalf("Pause from Idle should be a no-op, got %v", got)
	}
	ctrl.Resume()
	if got := ctrl.State(); got != Idle {
		t.Fatalf("Resume from Idle should be a no-op, got %v", got)
	}

	ctrl.Start()
	// Resume from Running is a no-op.
	ctrl.Resume()
	if got := ctrl.State(); got != Running {
		t.Fatalf("Resume from Running should be a no-op, got %v", got)
	}
	ctrl.Pause()
	if got := ctrl.State(); got != Paused {
		t.Fatalf("expected Paused, got %v", got)
	}
	// Pause from Paused is a no-op.
	ctrl.Pause()
	if got := ctrl.State(); got != Paused {
		t.Fatalf("Pause from Paused should be a no-op, got %v", got)
	}
}

func TestController_TriggerOnce_runsPipeline(t *testing.T) {
	cls := &stubClassifier{result: Result{Label: Happy, Confidence: 0.9}}
	ctrl, store := newTestController(t, &mutableSource{}, cls, nil, time.Hour)

	ctrl.Start()
	ctrl.TriggerOnce()

	waitFor(t, time.Second, func() bool {
		_, _, ok := store.Result()
		return ok
	}, "pipeline result")

	res, art, _ := store.Result()
	if res.Mood != Happy {
		t.Errorf("expected happy, got %s", res.Mood)
	}
	if res.URL != "" {
		t.Errorf("fallback result must have no URL, got %q", res.URL)
	}
	if !res.Fallback {
		t.Error("no catalog configured, result should be a fallback")
	}
	if art != nil {
		t.Error("fallback result must not produce an artifact")
	}

	snap := ctrl.Snapshot()
	if snap.State != "running" || snap.Mood != "happy" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestController_PauseSuppressesCapture(t *testing.T) {
	cls := &stubClassifier{result: Result{Label: Happy, Confidence: 0.9}}
	ctrl, _ := newTestController(t, &mutableSource{}, cls, nil, 10*time.Millisecond)

	ctrl.Start()
	waitFor(t, time.Second, func() bool { return cls.calls.Load() >= 1 }, "first tick")

	ctrl.Pause()
	// Let any in-flight run drain, then check the count stays flat.
	time.Sleep(30 * time.Millisecond)
	before := cls.calls.Load()
	time.Sleep(100 * time.Millisecond)
	if after := cls.calls.Load(); after != before {
		t.Errorf("capture ran while paused: %d -> %d", before, after)
	}
}

func TestController_ResumeFiresImmediateTick(t *testing.T) {
	cls := &stubClassifier{result: Result{Label: Happy, Confidence: 0.9}}
	// Interval is an hour: any tick after Resume must be the out-of-band one.
	ctrl, _ := newTestController(t, &mutableSource{}, cls, nil, time.Hour)

	ctrl.Start()
	ctrl.Pause()
	before := cls.calls.Load()

	ctrl.Resume()
	waitFor(t, time.Second, func() bool { return cls.calls.Load() == before+1 }, "out-of-band tick")

	// Exactly one extra tick, not a burst.
	time.Sleep(50 * time.Millisecond)
	if got := cls.calls.Load(); got != before+1 {
		t.Errorf("expected exactly one out-of-band tick, got %d extra", got-before)
	}
}

func TestController_TickSkippedWhileInFlight(t *testing.T) {
	cls := &stubClassifier{
		result:  Result{Label: Happy, Confidence: 0.9},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	ctrl, _ := newTestController(t, &mutableSource{}, cls, nil, 10*time.Millisecond)

	ctrl.Start()
	<-cls.started

	// Several intervals pass while the first pipeline hangs; all ticks drop.
	time.Sleep(80 * time.Millisecond)
	if got := cls.calls.Load(); got != 1 {
		t.Fatalf("expected 1 in-flight pipeline, got %d", got)
	}

	close(cls.block)
	waitFor(t, time.Second, func() bool { return cls.calls.Load() >= 2 }, "loop to resume ticking")
}

func TestController_StaleResultDiscarded(t *testing.T) {
	cls := &stubClassifier{
		result:  Result{Label: Happy, Confidence: 0.9},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	ctrl, store := newTestController(t, &mutableSource{}, cls, nil, time.Hour)

	ctrl.Start()
	ctrl.TriggerOnce()
	<-cls.started

	// State moves on while the pipeline is still in flight.
	ctrl.Stop()
	close(cls.block)

	time.Sleep(50 * time.Millisecond)
	if _, _, ok := store.Result(); ok {
		t.Error("result completed after Stop must be discarded, not applied")
	}
}

func TestController_StopClearsStoredResult(t *testing.T) {
	cls := &stubClassifier{result: Result{Label: Sad, Confidence: 0.8}}
	ctrl, store := newTestController(t, &mutableSource{}, cls, nil, time.Hour)

	ctrl.Start()
	ctrl.TriggerOnce()
	waitFor(t, time.Second, func() bool {
		_, _, ok := store.Result()
		return ok
	}, "pipeline result")

	ctrl.Stop()
	if _, _, ok := store.Result(); ok {
		t.Error("Stop must clear the stored result")
	}
	if snap := ctrl.Snapshot(); snap.Mood != "" || snap.State != "idle" {
		t.Errorf("unexpected snapshot after Stop: %+v", snap)
	}
}

func TestController_DialogCoupling(t *testing.T) {
	cls := &stubClassifier{result: Result{Label: Happy, Confidence: 0.9}}
	ctrl, store := newTestController(t, &mutableSource{}, cls, nil, time.Hour)

	ctrl.Start()
	ctrl.TriggerOnce()
	waitFor(t, time.Second, func() bool {
		_, _, ok := store.Result()
		return ok
	}, "pipeline result")

	ctrl.OpenDialog()
	if got := ctrl.State(); got != Paused {
		t.Fatalf("open dialog should pause, got %v", got)
	}

	before := cls.calls.Load()
	ctrl.CloseDialog()
	if got := ctrl.State(); got != Running {
		t.Fatalf("close dialog should resume, got %v", got)
	}
	// One immediate tick repopulates the cleared result.
	waitFor(t, time.Second, func() bool { return cls.calls.Load() == before+1 }, "post-dialog tick")
	waitFor(t, time.Second, func() bool {
		_, _, ok := store.Result()
		return ok
	}, "fresh result after dialog close")
}

func TestController_CaptureFailureKeepsLoopEligible(t *testing.T) {
	src := &mutableSource{}
	src.setErr(errors.New("camera unplugged"))
	cls := &stubClassifier{result: Result{Label: Happy, Confidence: 0.9}}
	ctrl, store := newTestController(t, src, cls, nil, time.Hour)

	ctrl.Start()
	ctrl.TriggerOnce()
	waitFor(t, time.Second, func() bool { return ctrl.Snapshot().LastError != "" }, "visible capture error")

	if _, _, ok := store.Result(); ok {
		t.Fatal("failed tick must not store a result")
	}

	// The loop stays eligible: the next tick succeeds once the source recovers.
	src.setErr(nil)
	ctrl.TriggerOnce()
	waitFor(t, time.Second, func() bool {
		_, _, ok := store.Result()
		return ok
	}, "recovery tick")
	if ctrl.Snapshot().LastError != "" {
		t.Error("successful run should clear the visible error")
	}
}

func TestController_InferenceFailureSurfacedLoopContinues(t *testing.T) {
	cls := &stubClassifier{err: ErrInvalidClassification}
	ctrl, store := newTestController(t, &mutableSource{}, cls, nil, time.Hour)

	ctrl.Start()
	ctrl.TriggerOnce()
	waitFor(t, time.Second, func() bool { return ctrl.Snapshot().LastError != "" }, "visible inference error")

	if _, _, ok := store.Result(); ok {
		t.Fatal("failed inference must not store a result")
	}
	if got := ctrl.State(); got != Running {
		t.Fatalf("loop must keep running after a failed tick, got %v", got)
	}
}

func TestController_RealPlaylistProducesArtifact(t *testing.T) {
	cat := &fakeCatalog{
		tracks: []Track{{ID: "1", Name: "Happy", Artist: "Pharrell Williams"}},
		url:    "https://open.spotify.com/playlist/abc123",
	}
	cls := &stubClassifier{result: Result{Label: Happy, Confidence: 0.93}}
	ctrl, store := newTestController(t, &mutableSource{}, cls, cat, time.Hour)

	ctrl.Start()
	ctrl.TriggerOnce()
	waitFor(t, time.Second, func() bool {
		_, _, ok := store.Result()
		return ok
	}, "pipeline result")

	res, art, _ := store.Result()
	if res.URL != "https://open.spotify.com/playlist/abc123" {
		t.Errorf("stored URL must equal the catalog URL verbatim, got %q", res.URL)
	}
	if res.Confidence != 0.93 {
		t.Errorf("expected observed confidence 0.93, got %v", res.Confidence)
	}
	if art == nil || len(art.PNG) == 0 {
		t.Fatal("real playlist URL must produce a rendered artifact")
	}
	if !ctrl.Snapshot().HasArtifact {
		t.Error("snapshot should report the artifact")
	}
}
