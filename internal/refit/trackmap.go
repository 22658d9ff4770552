package refit

import (
	"fmt"
	"sort"
)

// TrackMap holds an event's tracks keyed by id and iterates in ascending id
// order.
type TrackMap struct {
	tracks map[uint32]*Track
	ids    []uint32 // sorted
}

// NewTrackMap returns an empty map.
func NewTrackMap() *TrackMap {
	return &TrackMap{tracks: make(map[uint32]*Track)}
}

// Len returns the number of tracks.
func (m *TrackMap) Len() int {
	return len(m.ids)
}

// Insert stores t under t.ID, replacing any track with that id.
func (m *TrackMap) Insert(t *Track) {
	if _, ok := m.tracks[t.ID]; !ok {
		i := sort.Search(len(m.ids), func(i int) bool { return m.ids[i] >= t.ID })
		m.ids = append(m.ids, 0)
		copy(m.ids[i+1:], m.ids[i:])
		m.ids[i] = t.ID
	}
	m.tracks[t.ID] = t
}

// Get returns the track stored under id.
func (m *TrackMap) Get(id uint32) (*Track, bool) {
	t, ok := m.tracks[id]
	return t, ok
}

// Replace swaps the track stored under id for t. t takes the id.
func (m *TrackMap) Replace(id uint32, t *Track) error {
	if _, ok := m.tracks[id]; !ok {
		return fmt.Errorf("track %d not found", id)
	}
	t.ID = id
	m.tracks[id] = t
	return nil
}

// Erase removes the track stored under id, if any.
func (m *TrackMap) Erase(id uint32) {
	if _, ok := m.tracks[id]; !ok {
		return
	}
	delete(m.tracks, id)
	i := sort.Search(len(m.ids), func(i int) bool { return m.ids[i] >= id })
	m.ids = append(m.ids[:i], m.ids[i+1:]...)
}

// IDs returns a snapshot of the ids in ascending order. The snapshot stays
// valid while tracks are replaced or erased.
func (m *TrackMap) IDs() []uint32 {
	return append([]uint32(nil), m.ids...)
}

// Tracks returns the tracks in id order.
func (m *TrackMap) Tracks() []*Track {
	out := make([]*Track, 0, len(m.ids))
	for _, id := range m.ids {
		out = append(out, m.tracks[id])
	}
	return out
}
