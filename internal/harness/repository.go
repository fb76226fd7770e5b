package harness

import (
	"errors"
	"sort"
	"sync"
)

// Repository defines the concurrency-safe contract for tracking running
// playbacks.
type Repository interface {
	// Add registers p. It fails with ErrSessionExists if the id is taken.
	Add(p *Playback) error

	// Get returns the playback with the given id.
	Get(id string) (*Playback, bool)

	// Remove unregisters and returns the playback with the given id.
	// Removing an unknown id reports false.
	Remove(id string) (*Playback, bool)

	// IDs returns every registered id in ascending order.
	IDs() []string

	// ActiveSessionCount returns the number of registered playbacks whose
	// event loop is still running. Used for metrics.
	ActiveSessionCount() int
}

var (
	// ErrSessionNotFound is returned for ids that are not registered.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists is returned when registering an id twice.
	ErrSessionExists = errors.New("session already exists")
)

// InMemoryRepository is a concurrency-safe in-memory implementation of Repository.
// It uses a Store for persistence; by default that is an InMemoryStore.
type InMemoryRepository struct {
	mu    sync.RWMutex
	store Store
}

// NewInMemoryRepository constructs a new repository with a default in-memory store.
func NewInMemoryRepository() *InMemoryRepository {
	return NewInMemoryRepositoryWithStore(NewInMemoryStore())
}

// NewInMemoryRepositoryWithStore constructs a repository that uses the given Store.
func NewInMemoryRepositoryWithStore(store Store) *InMemoryRepository {
	return &InMemoryRepository{store: store}
}

// Add implements Repository.Add.
func (r *InMemoryRepository) Add(p *Playback) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.store.GetPlayback(p.ID); exists {
		return ErrSessionExists
	}
	r.store.SetPlayback(p)
	return nil
}

// Get implements Repository.Get.
func (r *InMemoryRepository) Get(id string) (*Playback, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.store.GetPlayback(id)
}

// Remove implements Repository.Remove.
func (r *InMemoryRepository) Remove(id string) (*Playback, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.store.GetPlayback(id)
	if !exists {
		return nil, false
	}
	r.store.DeletePlayback(id)
	return p, true
}

// IDs implements Repository.IDs.
func (r *InMemoryRepository) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.store.ListPlaybackIDs()
	sort.Strings(ids)
	return ids
}

// ActiveSessionCount implements Repository.ActiveSessionCount.
func (r *InMemoryRepository) ActiveSessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, id := range r.store.ListPlaybackIDs() {
		if p, ok := r.store.GetPlayback(id); ok && !p.Closed() {
			n++
		}
	}
	return n
}
