package screen

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrScreenNotFound is returned for unknown, expired or disposed screens.
var ErrScreenNotFound = errors.New("screen not found")

// Registry keeps live screens in memory. Screens are dropped when they expire,
// when capacity forces the least recently used one out, or on Dispose; the
// onDispose hook runs in every case.
type Registry struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, *Screen]
}

// NewRegistry holds at most size screens, each for ttl after its last use.
func NewRegistry(size int, ttl time.Duration, onDispose func(id string)) *Registry {
	onEvict := func(id string, s *Screen) {
		if s.markDisposed() && onDispose != nil {
			onDispose(id)
		}
	}
	return &Registry{cache: expirable.NewLRU[string, *Screen](size, onEvict, ttl)}
}

// NewID returns a fresh screen identifier.
func NewID() string {
	return uuid.New().String()
}

// Add stores s under its ID.
func (r *Registry) Add(s *Screen) {
	r.cache.Add(s.ID(), s)
}

// Get looks up a live screen and refreshes its TTL.
func (r *Registry) Get(id string) (*Screen, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrScreenNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.cache.Get(id)
	if !ok || s.Disposed() {
		return nil, ErrScreenNotFound
	}
	// expirable.LRU does not extend the TTL on Get; re-adding does.
	r.cache.Add(id, s)
	// Expiry runs on its own goroutine and may have fired since the Get.
	if s.Disposed() {
		r.cache.Remove(id)
		return nil, ErrScreenNotFound
	}
	return s, nil
}

// Dispose removes a screen. It reports whether the screen was live.
func (r *Registry) Dispose(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.Remove(id)
}

// Len returns the number of live screens.
func (r *Registry) Len() int {
	return r.cache.Len()
}
