package photo

import (
	"errors"
	"sync"
)

// ErrStagedOccupied is returned when staging a photo while one is already
// in the staged slot. At most one staged photo exists at a time.
var ErrStagedOccupied = errors.New("a staged photo already exists")

// Store is the in-memory booth state: one optional staged photo plus the
// placed collection. It is safe for concurrent use; handlers, the develop
// timer, and caption tasks all converge here. All accessors return copies.
type Store struct {
	mu     sync.RWMutex
	staged *Photo
	placed map[string]*Photo
	order  []string // placement order, for stable listings
}

// NewStore creates an empty booth store.
func NewStore() *Store {
	return &Store{
		placed: make(map[string]*Photo),
	}
}

// Stage puts a photo into the staged slot. Only allowed when the slot is
// empty; returns ErrStagedOccupied otherwise.
func (s *Store) Stage(p *Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.staged != nil {
		return ErrStagedOccupied
	}
	cp := *p
	cp.Staged = true
	s.staged = &cp
	return nil
}

// Develop clears the developing flag on the photo with the given id,
// wherever it currently lives. A photo placed before its develop delay
// elapses still develops in the placed collection. Idempotent; returns
// false only if the id is unknown.
func (s *Store) Develop(id string) (Photo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p := s.locate(id); p != nil {
		p.Developing = false
		return *p, true
	}
	return Photo{}, false
}

// Place moves the staged photo into the placed collection with the given
// position and rotation. A no-op returning false if id does not match the
// current staged photo.
func (s *Store) Place(id string, x, y, rotation float64) (Photo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.staged == nil || s.staged.ID != id {
		return Photo{}, false
	}
	p := s.staged
	s.staged = nil
	p.Staged = false
	p.X = x
	p.Y = y
	p.Rotation = rotation
	s.placed[p.ID] = p
	s.order = append(s.order, p.ID)
	return *p, true
}

// Update applies a partial patch by id, checking the staged slot first and
// the placed collection second. Returns false if the id is not found; a
// late caption resolving for a deleted photo lands here as a harmless no-op.
func (s *Store) Update(id string, patch Patch) (Photo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p := s.locate(id); p != nil {
		patch.apply(p)
		return *p, true
	}
	return Photo{}, false
}

// Delete removes the photo from whichever collection holds it. Returns
// false if the id is unknown.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.staged != nil && s.staged.ID == id {
		s.staged = nil
		return true
	}
	if _, ok := s.placed[id]; ok {
		delete(s.placed, id)
		for i, oid := range s.order {
			if oid == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		return true
	}
	return false
}

// Get retrieves a photo by id from either collection.
func (s *Store) Get(id string) (Photo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p := s.locate(id); p != nil {
		return *p, true
	}
	return Photo{}, false
}

// Staged returns the current staged photo, if any.
func (s *Store) Staged() (Photo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.staged == nil {
		return Photo{}, false
	}
	return *s.staged, true
}

// Placed returns the placed photos in placement order.
func (s *Store) Placed() []Photo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Photo, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, *s.placed[id])
	}
	return result
}

// Snapshot is a point-in-time view of the booth.
type Snapshot struct {
	Staged *Photo  `json:"staged"`
	Placed []Photo `json:"placed"`
}

// Snapshot returns a copy of the full booth state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snap Snapshot
	if s.staged != nil {
		cp := *s.staged
		snap.Staged = &cp
	}
	snap.Placed = make([]Photo, 0, len(s.order))
	for _, id := range s.order {
		snap.Placed = append(snap.Placed, *s.placed[id])
	}
	return snap
}

// locate finds the photo by id, staged slot first. Caller must hold the lock.
func (s *Store) locate(id string) *Photo {
	if s.staged != nil && s.staged.ID == id {
		return s.staged
	}
	return s.placed[id]
}
