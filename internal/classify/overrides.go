package classify

import (
	"sort"
	"sync"
	"time"
)

// Override is a manual per artist verdict that bypasses sources, cache and
// fallback entirely. Overrides are mutable, unlike decisions.
type Override struct {
	ArtistID     string
	ArtistName   string
	IsArtificial bool
	Reason       string
	UpdatedAt    time.Time
}

// Label returns the label an override resolves to. Overrides carry only an
// artificial bit, so the label is the most generic member of each class.
func (o *Override) Label() Label {
	if o.IsArtificial {
		return LabelAIGenerated
	}
	return LabelHuman
}

// OverrideStore is an in memory, concurrency safe map of manual overrides.
// It is hydrated from the datastore at startup and written through by the
// review API; the store itself does no I/O.
type OverrideStore struct {
	mu        sync.RWMutex
	overrides map[string]Override
}

// NewOverrideStore returns an empty override store.
func NewOverrideStore() *OverrideStore {
	return &OverrideStore{
		overrides: make(map[string]Override),
	}
}

// Hydrate replaces the store contents with the given overrides.
func (s *OverrideStore) Hydrate(overrides []Override) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides = make(map[string]Override, len(overrides))
	for _, o := range overrides {
		if o.ArtistID == "" {
			continue
		}
		s.overrides[o.ArtistID] = o
	}
}

// Get returns the override for an artist, if any.
func (s *OverrideStore) Get(artistID string) (Override, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.overrides[artistID]
	return o, ok
}

// Set stores or replaces the override for an artist.
func (s *OverrideStore) Set(override Override) {
	if override.ArtistID == "" {
		return
	}
	if override.UpdatedAt.IsZero() {
		override.UpdatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[override.ArtistID] = override
}

// Delete removes the override for an artist, reporting whether one existed.
func (s *OverrideStore) Delete(artistID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.overrides[artistID]
	delete(s.overrides, artistID)
	return ok
}

// List returns all overrides sorted by artist id.
func (s *OverrideStore) List() []Override {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Override, 0, len(s.overrides))
	for _, o := range s.overrides {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArtistID < out[j].ArtistID })
	return out
}
