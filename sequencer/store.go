package sequencer

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"ambient-looper/debug"
)

var (
	ErrUnknownTrack   = errors.New("unknown track")
	ErrStepOutOfRange = errors.New("step index out of range")
	ErrManagerClosed  = errors.New("sequencer closed")
)

// Store holds the looper state. Readers take lock-free snapshots; writers
// serialize on mu and publish a fresh copy. The playhead is kept apart in
// atomics so the scheduler never takes the lock.
type Store struct {
	mu    sync.Mutex
	cur   atomic.Pointer[State]
	steps [NumTracks]atomic.Int32
}

// NewStore publishes s after clamping it the way patches are clamped
func NewStore(s State) *Store {
	s.normalize()
	st := &Store{}
	for i := range s.Tracks {
		st.steps[i].Store(int32(s.Tracks[i].CurrentStep))
	}
	st.cur.Store(&s)
	return st
}

// Snapshot returns an independent copy of the whole state
func (s *Store) Snapshot() State {
	snap := *s.cur.Load()
	for i := range snap.Tracks {
		snap.Tracks[i].CurrentStep = int(s.steps[i].Load())
	}
	return snap
}

// update runs fn on a private copy and publishes it unless fn fails
func (s *Store) update(fn func(*State) error) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := *s.cur.Load()
	if err := fn(&next); err != nil {
		return State{}, err
	}
	s.cur.Store(&next)
	return next, nil
}

func validTrack(id int) error {
	if id < 0 || id >= NumTracks {
		return fmt.Errorf("track %d: %w", id, ErrUnknownTrack)
	}
	return nil
}

// SetTransport merges bpm and swing. Playing is left to SetPlaying.
func (s *Store) SetTransport(p TransportPatch) (Transport, Changes) {
	var c Changes
	next, _ := s.update(func(st *State) error {
		c = st.Transport.apply(p)
		return nil
	})
	return next.Transport, c
}

// SetPlaying reports whether the value changed
func (s *Store) SetPlaying(on bool) bool {
	changed := false
	s.update(func(st *State) error {
		changed = st.Transport.Playing != on
		st.Transport.Playing = on
		return nil
	})
	return changed
}

func (s *Store) UpdateTrack(id int, p TrackPatch) (Track, Changes, error) {
	if err := validTrack(id); err != nil {
		return Track{}, Changes{}, err
	}
	var c Changes
	next, _ := s.update(func(st *State) error {
		c = st.Tracks[id].apply(p)
		return nil
	})
	debug.Log("store", "track %d patched (%d notices, audio=%v)", id, len(c.Notices), c.Audio)
	t := next.Tracks[id]
	t.CurrentStep = int(s.steps[id].Load())
	return t, c, nil
}

// ToggleStep flips one step and returns its new value
func (s *Store) ToggleStep(id, idx int) (bool, error) {
	if err := validTrack(id); err != nil {
		return false, err
	}
	if idx < 0 || idx >= MaxSteps {
		return false, fmt.Errorf("step %d: %w", idx, ErrStepOutOfRange)
	}
	var on bool
	_, err := s.update(func(st *State) error {
		st.Tracks[id].Steps[idx] = !st.Tracks[id].Steps[idx]
		on = st.Tracks[id].Steps[idx]
		return nil
	})
	return on, err
}

func (s *Store) setCurrentStep(id, step int) {
	s.steps[id].Store(int32(step))
}
