package mood

import "sync"

// ResultStore holds the most recent completed pipeline outcome. It always
// reflects the latest successful resolution; Clear drops everything.
// Implementations can be in-memory or remote; the Controller does not care.
type ResultStore interface {
	SetResult(res PlaylistResult, art *Artifact)
	Result() (res PlaylistResult, art *Artifact, ok bool)
	Clear()
}

// InMemoryResultStore is a concurrency-safe in-memory ResultStore.
type InMemoryResultStore struct {
	mu  sync.RWMutex
	res PlaylistResult
	art *Artifact
	set bool
}

// NewInMemoryResultStore returns an empty store.
func NewInMemoryResultStore() *InMemoryResultStore {
	return &InMemoryResultStore{}
}

// SetResult implements ResultStore.SetResult. A nil artifact replaces any
// previously stored one, so stale codes are never shown next to a new result.
func (s *InMemoryResultStore) SetResult(res PlaylistResult, art *Artifact) {
	s.mu.Lock()
	s.res = res
	s.art = art
	s.set = true
	s.mu.Unlock()
}

// Result implements ResultStore.Result.
func (s *InMemoryResultStore) Result() (PlaylistResult, *Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.res, s.art, s.set
}

// Clear implements ResultStore.Clear.
func (s *InMemoryResultStore) Clear() {
	s.mu.Lock()
	s.res = PlaylistResult{}
	s.art = nil
	s.set = false
	s.mu.Unlock()
}
