package mood

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"moodtunes/internal/platform/metrics"
)

// DefaultCaptureInterval is the default capture cadence.
const DefaultCaptureInterval = 3 * time.Second

// Controller owns the capture loop: it samples the feed on a fixed cadence,
// routes each frame through classification, playlist resolution, and artifact
// issue, and exposes a pause/resume control surface. All state transitions go
// through guarded methods; calling a transition from a state that does not
// permit it is a no-op, never an error.
//
// At most one capture-to-resolution pipeline is in flight per Controller; a
// tick firing while one is outstanding is dropped, not queued. A pipeline
// completing after the state has moved on (stop, pause, restart) is
// discarded, never applied.
type Controller struct {
	source     SampleSource
	classifier Classifier
	resolver   *Resolver
	issuer     *Issuer
	store      ResultStore
	interval   time.Duration
	log        *slog.Logger
	metrics    *metrics.Metrics

	mu       sync.Mutex
	state    LoopState
	epoch    uint64 // bumped on every transition; stale pipeline results check it
	inFlight bool
	lastErr  string
	stopCh   chan struct{}

	kick  chan struct{} // out-of-band tick requests, capacity 1
	runWG sync.WaitGroup
}

// NewController wires the pipeline components. metrics may be nil.
func NewController(source SampleSource, classifier Classifier, resolver *Resolver, issuer *Issuer, store ResultStore, interval time.Duration, log *slog.Logger, m *metrics.Metrics) *Controller {
	if interval <= 0 {
		interval = DefaultCaptureInterval
	}
	return &Controller{
		source:     source,
		classifier: classifier,
		resolver:   resolver,
		issuer:     issuer,
		store:      store,
		interval:   interval,
		log:        log,
		metrics:    m,
		kick:       make(chan struct{}, 1),
	}
}

// State returns the current loop state.
func (c *Controller) State() LoopState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot is the externally observable loop state.
type Snapshot struct {
	State       string          `json:"state"`
	Mood        string          `json:"mood,omitempty"`
	Confidence  float64         `json:"confidence,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	Playlist    *PlaylistResult `json:"playlist,omitempty"`
	HasArtifact bool            `json:"has_artifact"`
}

// Snapshot returns the current state plus the latest completed result.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	snap := Snapshot{State: c.state.String(), LastError: c.lastErr}
	c.mu.Unlock()

	if res, art, ok := c.store.Result(); ok {
		snap.Mood = string(res.Mood)
		snap.Confidence = res.Confidence
		snap.Playlist = &res
		snap.HasArtifact = art != nil
	}
	return snap
}

// Start moves Idle -> Running and schedules the recurring tick. A no-op in
// any other state.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return
	}
	c.state = Running
	c.epoch++
	c.lastErr = ""
	c.stopCh = make(chan struct{})
	stop := c.stopCh
	c.mu.Unlock()

	c.setStateMetric(Running)
	c.log.Info("capture loop started", slog.Duration("interval", c.interval))

	c.runWG.Add(1)
	go c.run(stop)
}

// Stop moves Running|Paused -> Idle, cancels the recurring tick, and clears
// the stored mood, confidence, result, and artifact. A no-op from Idle.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == Idle {
		c.mu.Unlock()
		return
	}
	c.state = Idle
	c.epoch++
	c.lastErr = ""
	close(c.stopCh)
	c.mu.Unlock()

	c.runWG.Wait()
	c.store.Clear()
	c.setStateMetric(Idle)
	c.log.Info("capture loop stopped")
}

// Pause moves Running -> Paused. Capture is suppressed but the schedule and
// the feed handle stay alive. Any in-flight pipeline result is discarded.
func (c *Controller) Pause() {
	c.mu.Lock()
	if c.state != Running {
		c.mu.Unlock()
		return
	}
	c.state = Paused
	c.epoch++
	c.mu.Unlock()

	c.setStateMetric(Paused)
	c.log.Info("capture loop paused")
}

// Resume moves Paused -> Running and immediately requests one out-of-band
// tick so a fresh mood appears without waiting for the next interval.
func (c *Controller) Resume() {
	c.mu.Lock()
	if c.state != Paused {
		c.mu.Unlock()
		return
	}
	c.state = Running
	c.epoch++
	c.mu.Unlock()

	c.setStateMetric(Running)
	c.log.Info("capture loop resumed")
	c.TriggerOnce()
}

// TriggerOnce requests a single out-of-band tick, then the regular schedule
// continues. Coalesces with an already-pending request; a no-op unless
// Running.
func (c *Controller) TriggerOnce() {
	if c.State() != Running {
		return
	}
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// OpenDialog is the result-view coupling: opening the dialog pauses capture.
func (c *Controller) OpenDialog() {
	c.Pause()
}

// CloseDialog clears the stored result and resumes capture with one immediate
// tick.
func (c *Controller) CloseDialog() {
	c.store.Clear()
	c.Resume()
}

func (c *Controller) run(stop chan struct{}) {
	defer c.runWG.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.tick()
		case <-c.kick:
			c.tick()
		}
	}
}

// tick launches one pipeline run unless the loop is not Running or a run is
// already in flight (in which case the tick is dropped to bound latency).
func (c *Controller) tick() {
	c.mu.Lock()
	if c.state != Running {
		c.mu.Unlock()
		return
	}
	if c.inFlight {
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.IncTicksSkipped()
		}
		c.log.Debug("tick skipped, pipeline in flight")
		return
	}
	c.inFlight = true
	epoch := c.epoch
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.IncTicks()
	}
	go c.pipeline(epoch)
}

// pipeline runs one capture-to-artifact pass. Failures are converted at each
// stage boundary; nothing here can terminate the loop.
func (c *Controller) pipeline(epoch uint64) {
	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	ctx := context.Background()

	frame, err := c.source.Capture(ctx)
	if err != nil {
		c.failTick(epoch, "capture", err)
		return
	}

	result, err := c.classifier.Classify(ctx, frame)
	if err != nil {
		if c.metrics != nil {
			c.metrics.IncInferenceFailures()
		}
		c.failTick(epoch, "inference", err)
		return
	}

	playlist := c.resolver.Resolve(ctx, result.Label, result.Confidence, nil)

	artifact, err := c.issuer.Issue(playlist)
	if err != nil {
		c.log.Warn("artifact render failed", slog.String("error", err.Error()))
		artifact = nil
	}

	c.mu.Lock()
	if c.epoch != epoch || c.state != Running {
		c.mu.Unlock()
		c.log.Debug("discarding stale pipeline result",
			slog.String("mood", string(playlist.Mood)),
			slog.String("trace_id", frame.TraceID))
		return
	}
	c.lastErr = ""
	c.store.SetResult(playlist, artifact)
	c.mu.Unlock()

	c.log.Info("pipeline completed",
		slog.String("mood", string(playlist.Mood)),
		slog.Float64("confidence", playlist.Confidence),
		slog.Bool("fallback", playlist.Fallback),
		slog.Bool("artifact", artifact != nil),
		slog.String("trace_id", frame.TraceID))
}

// failTick records a transient failure and leaves the loop eligible for the
// next tick.
func (c *Controller) failTick(epoch uint64, stage string, err error) {
	c.mu.Lock()
	if c.epoch == epoch && c.state == Running {
		c.lastErr = stage + ": " + err.Error()
	}
	c.mu.Unlock()

	c.log.Warn("tick failed",
		slog.String("stage", stage),
		slog.String("error", err.Error()))
}

func (c *Controller) setStateMetric(s LoopState) {
	if c.metrics != nil {
		c.metrics.SetLoopState(int(s))
	}
}
