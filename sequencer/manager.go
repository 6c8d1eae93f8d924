package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ambient-looper/debug"
	"ambient-looper/engine"
	"ambient-looper/notegen"
	"ambient-looper/voice"
)

const noticeBuffer = 32

// Manager is the looper's control surface. It owns the state store, the
// engine and the four chains, and turns control changes into engine calls.
type Manager struct {
	eng   engine.Engine
	store *Store
	gen   *notegen.Generator

	mu      sync.Mutex // guards the lifecycle below
	started bool
	closed  bool
	chains  [NumTracks]voice.Chain
	sched   *Scheduler
	cancel  func()

	noticeMu   sync.Mutex
	notices    chan Notice
	noticesOff bool
	fb         feedback

	closeOnce sync.Once
	closeErr  error

	// Notify UI of updates
	UpdateChan chan struct{}
}

type Option func(*Manager)

// WithState boots from s instead of DefaultState
func WithState(s State) Option {
	return func(m *Manager) { m.store = NewStore(s) }
}

// WithGenerator sets the note generator, e.g. a seeded one
func WithGenerator(g *notegen.Generator) Option {
	return func(m *Manager) { m.gen = g }
}

// WithClock replaces the wall clock used for feedback expiry
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.fb.now = now }
}

// NewManager creates a manager over eng. Nothing touches the engine until
// Start or the first TogglePlay.
func NewManager(eng engine.Engine, opts ...Option) *Manager {
	m := &Manager{
		eng:        eng,
		notices:    make(chan Notice, noticeBuffer),
		UpdateChan: make(chan struct{}, 1),
	}
	m.fb.now = time.Now
	for _, o := range opts {
		o(m)
	}
	if m.store == nil {
		m.store = NewStore(DefaultState())
	}
	if m.gen == nil {
		m.gen = notegen.New(nil)
	}
	// a booted state is never playing; the engine has not started
	m.store.SetPlaying(false)
	return m
}

// Start starts the engine, builds every chain and subscribes the scheduler.
// Calling it again is a no-op.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	if m.started {
		return nil
	}
	if err := m.eng.Start(ctx); err != nil {
		return fmt.Errorf("cannot start engine: %w", err)
	}

	s := m.store.Snapshot()
	tr := m.eng.Transport()
	tr.SetBPM(s.Transport.BPM)
	tr.SetSwing(s.Transport.Swing)

	var chains [NumTracks]voice.Chain
	for i, t := range s.Tracks {
		c, err := voice.Build(m.eng, t.Archetype, t.Values())
		if err != nil {
			var errs []error
			for _, built := range chains[:i] {
				errs = append(errs, built.Dispose())
			}
			if derr := errors.Join(errs...); derr != nil {
				debug.Log("engine", "dispose after failed start: %v", derr)
			}
			return fmt.Errorf("cannot build track %d: %w", i, err)
		}
		c.Apply(t.Values())
		chains[i] = c
	}

	m.chains = chains
	m.sched = NewScheduler(m.store, m.gen, m.eng.Now, chains)
	m.sched.onStep = m.notifyUpdate
	m.cancel = tr.Repeat(engine.Sixteenth, m.sched.Tick)
	m.started = true
	debug.Log("engine", "started at %d bpm", s.Transport.BPM)
	return nil
}

// Started reports whether the engine and chains are live
func (m *Manager) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Snapshot returns a copy of the current state
func (m *Manager) Snapshot() State {
	return m.store.Snapshot()
}

// SetTransport merges p. Setting Playing behaves like TogglePlay towards
// that value; repeating the current value does nothing.
func (m *Manager) SetTransport(ctx context.Context, p TransportPatch) (Transport, error) {
	if m.isClosed() {
		return Transport{}, ErrManagerClosed
	}
	t, c := m.store.SetTransport(p)
	if c.Clock {
		m.mu.Lock()
		if m.started {
			tr := m.eng.Transport()
			tr.SetBPM(t.BPM)
			tr.SetSwing(t.Swing)
		}
		m.mu.Unlock()
	}
	m.emit(c.Notices)

	if p.Playing != nil {
		if err := m.setPlaying(ctx, *p.Playing); err != nil {
			return m.store.Snapshot().Transport, err
		}
	}
	m.notifyUpdate()
	return m.store.Snapshot().Transport, nil
}

// TogglePlay flips between playing and paused and returns the new value.
// The first play starts the engine.
func (m *Manager) TogglePlay(ctx context.Context) (bool, error) {
	on := !m.store.Snapshot().Transport.Playing
	if err := m.setPlaying(ctx, on); err != nil {
		return !on, err
	}
	m.notifyUpdate()
	return on, nil
}

func (m *Manager) setPlaying(ctx context.Context, on bool) error {
	if on {
		if err := m.Start(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	if !m.store.SetPlaying(on) || !m.started {
		return nil
	}

	tr := m.eng.Transport()
	if on {
		tr.Start()
		debug.Log("engine", "play")
		return nil
	}
	tr.Pause()
	now := m.eng.Now()
	for i, c := range m.chains {
		if err := c.Release(now); err != nil {
			debug.Log("engine", "track %d release: %v", i, err)
		}
	}
	debug.Log("engine", "pause")
	return nil
}

// UpdateTrack merges p into track id and re-applies the chain when an
// audio control changed
func (m *Manager) UpdateTrack(id int, p TrackPatch) (Track, error) {
	if m.isClosed() {
		return Track{}, ErrManagerClosed
	}
	t, c, err := m.store.UpdateTrack(id, p)
	if err != nil {
		return Track{}, err
	}
	if c.Audio {
		m.mu.Lock()
		if m.started {
			// latest state, so racing updates cannot apply stale values
			m.chains[id].Apply(m.store.Snapshot().Tracks[id].Values())
		}
		m.mu.Unlock()
	}
	m.emit(c.Notices)
	m.notifyUpdate()
	return t, nil
}

// ToggleStep flips step idx of track id and returns its new value
func (m *Manager) ToggleStep(id, idx int) (bool, error) {
	if m.isClosed() {
		return false, ErrManagerClosed
	}
	on, err := m.store.ToggleStep(id, idx)
	if err != nil {
		return false, err
	}
	m.notifyUpdate()
	return on, nil
}

// Notices delivers parameter-change notices. Notices are dropped while the
// buffer is full, so a frontend should keep draining it. The channel is
// closed by Close.
func (m *Manager) Notices() <-chan Notice {
	return m.notices
}

// Feedback returns the latest notice while it is still fresh
func (m *Manager) Feedback() (FeedbackMessage, bool) {
	return m.fb.current()
}

// Failures counts per-track tick failures
func (m *Manager) Failures() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sched == nil {
		return 0
	}
	return m.sched.Failures()
}

func (m *Manager) emit(ns []Notice) {
	if len(ns) == 0 {
		return
	}
	m.noticeMu.Lock()
	defer m.noticeMu.Unlock()
	for _, n := range ns {
		m.fb.show(n)
		if m.noticesOff {
			continue
		}
		select {
		case m.notices <- n:
		default:
			debug.Log("notice", "dropped %s %s", n.Label, n.Value)
		}
	}
}

// notifyUpdate wakes the UI without blocking
func (m *Manager) notifyUpdate() {
	select {
	case m.UpdateChan <- struct{}{}:
	default:
	}
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close stops the scheduler, disposes every chain once and closes the
// engine. Later calls return the first result.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		var errs []error
		if m.started {
			m.cancel()
			m.eng.Transport().Pause()
			for _, c := range m.chains {
				errs = append(errs, c.Dispose())
			}
			errs = append(errs, m.eng.Close())
		}
		m.mu.Unlock()

		m.noticeMu.Lock()
		close(m.notices)
		m.noticesOff = true
		m.noticeMu.Unlock()

		m.closeErr = errors.Join(errs...)
		debug.Log("engine", "closed")
	})
	return m.closeErr
}
