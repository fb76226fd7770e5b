package harness

// Store is the persistence abstraction for running playbacks.
// The Repository uses Store for all reads and writes; callers of Repository
// do not need to know which Store is used.
type Store interface {
	GetPlayback(id string) (*Playback, bool)
	SetPlayback(p *Playback)
	DeletePlayback(id string)
	ListPlaybackIDs() []string
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	playbacks map[string]*Playback
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		playbacks: make(map[string]*Playback),
	}
}

// GetPlayback implements Store.GetPlayback.
func (s *InMemoryStore) GetPlayback(id string) (*Playback, bool) {
	p, ok := s.playbacks[id]
	return p, ok
}

// SetPlayback implements Store.SetPlayback.
func (s *InMemoryStore) SetPlayback(p *Playback) {
	s.playbacks[p.ID] = p
}

// DeletePlayback implements Store.DeletePlayback.
func (s *InMemoryStore) DeletePlayback(id string) {
	delete(s.playbacks, id)
}

// ListPlaybackIDs implements Store.ListPlaybackIDs.
func (s *InMemoryStore) ListPlaybackIDs() []string {
	ids := make([]string, 0, len(s.playbacks))
	for id := range s.playbacks {
		ids = append(ids, id)
	}
	return ids
}
