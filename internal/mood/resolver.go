package mood

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"moodtunes/internal/platform/metrics"
)

// DefaultPlaylistLimit is the default number of tracks per resolution.
const DefaultPlaylistLimit = 20

// Catalog is the external playlist catalog the resolver consults. It is an
// opaque collaborator: implementations live outside this package.
type Catalog interface {
	// SearchTracks returns up to limit tracks matching the mood, optionally
	// steered by seed track names.
	SearchTracks(ctx context.Context, label Label, seeds []string, limit int) ([]Track, error)

	// EnsurePlaylist creates (or reuses) a real, shareable playlist holding
	// tracks and returns its URL. Fails when no authenticated user session
	// exists.
	EnsurePlaylist(ctx context.Context, label Label, tracks []Track) (string, error)

	// Authenticated reports whether playlist creation is currently possible.
	Authenticated() bool
}

// Resolver turns a mood label into a PlaylistResult. The catalog is tried
// first under a bounded timeout; any catalog failure degrades to a local
// fallback instead of surfacing an error. Concurrent resolutions of the same
// mood are collapsed into a single catalog call, and created playlist URLs
// are reused per mood for the process lifetime.
type Resolver struct {
	catalog  Catalog
	fallback *FallbackSource
	timeout  time.Duration
	limit    int
	log      *slog.Logger
	metrics  *metrics.Metrics

	group singleflight.Group

	mu      sync.Mutex
	created map[Label]string
}

// NewResolver returns a Resolver. catalog may be nil (no credentials), in
// which case every resolution takes the fallback path. metrics may be nil.
func NewResolver(catalog Catalog, fallback *FallbackSource, timeout time.Duration, limit int, log *slog.Logger, m *metrics.Metrics) *Resolver {
	if limit <= 0 {
		limit = DefaultPlaylistLimit
	}
	return &Resolver{
		catalog:  catalog,
		fallback: fallback,
		timeout:  timeout,
		limit:    limit,
		log:      log,
		metrics:  m,
		created:  make(map[Label]string),
	}
}

// Resolve returns a PlaylistResult for label using the configured track
// limit. confidence, when > 0, is the observed classification confidence and
// is carried onto non-fallback results; fallback results keep their
// synthetic confidence.
func (r *Resolver) Resolve(ctx context.Context, label Label, confidence float64, seeds []string) PlaylistResult {
	return r.ResolveN(ctx, label, confidence, seeds, r.limit)
}

// ResolveN is Resolve with an explicit track limit. Concurrent calls for the
// same label and limit share one catalog round trip.
func (r *Resolver) ResolveN(ctx context.Context, label Label, confidence float64, seeds []string, limit int) PlaylistResult {
	if limit <= 0 {
		limit = r.limit
	}
	key := fmt.Sprintf("%s/%d", label, limit)
	v, _, _ := r.group.Do(key, func() (interface{}, error) {
		return r.resolve(ctx, label, seeds, limit), nil
	})
	res := v.(PlaylistResult)
	if !res.Fallback && confidence > 0 {
		res.Confidence = confidence
	}
	return res
}

func (r *Resolver) resolve(ctx context.Context, label Label, seeds []string, limit int) PlaylistResult {
	if r.catalog == nil {
		return r.degrade(label, "no catalog credentials", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tracks, err := r.catalog.SearchTracks(ctx, label, seeds, limit)
	if err != nil {
		return r.degrade(label, "catalog search failed", err)
	}
	if len(tracks) == 0 {
		return r.degrade(label, "catalog returned no tracks", nil)
	}

	url := r.createdURL(label)
	if url == "" {
		url, err = r.catalog.EnsurePlaylist(ctx, label, tracks)
		if err != nil {
			// Real tracks, no shareable playlist. Not a fallback: the track
			// list is authentic, only the URL is absent.
			r.log.Info("playlist creation unavailable",
				slog.String("mood", string(label)),
				slog.String("error", err.Error()))
			url = ""
		} else {
			r.rememberURL(label, url)
			if r.metrics != nil {
				r.metrics.IncPlaylistsCreated()
			}
		}
	}

	return PlaylistResult{Mood: label, URL: url, Tracks: tracks}
}

func (r *Resolver) degrade(label Label, reason string, err error) PlaylistResult {
	attrs := []any{slog.String("mood", string(label)), slog.String("reason", reason)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	r.log.Warn("resolving via fallback", attrs...)
	if r.metrics != nil {
		r.metrics.IncCatalogFallbacks()
	}
	return r.fallback.Resolve(label)
}

func (r *Resolver) createdURL(label Label) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created[label]
}

func (r *Resolver) rememberURL(label Label, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created[label] = url
}
