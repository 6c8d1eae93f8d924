package sequencer

import (
	"fmt"
	"sync/atomic"

	"ambient-looper/debug"
	"ambient-looper/engine"
	"ambient-looper/notegen"
	"ambient-looper/voice"
)

// TrackError is a failure confined to one track during a tick
type TrackError struct {
	Track int
	Op    string
	Err   error
}

func (e *TrackError) Error() string {
	return fmt.Sprintf("track %d %s: %v", e.Track, e.Op, e.Err)
}

func (e *TrackError) Unwrap() error { return e.Err }

// Scheduler turns sixteenth ticks into triggers on the track chains
type Scheduler struct {
	store  *Store
	gen    *notegen.Generator
	now    func() float64
	chains [NumTracks]voice.Chain

	failures atomic.Int64
	onError  func(*TrackError)
	onStep   func()
}

// NewScheduler drives chains from store. now is the engine clock that feeds
// the LFO phase used for note selection.
func NewScheduler(store *Store, gen *notegen.Generator, now func() float64, chains [NumTracks]voice.Chain) *Scheduler {
	return &Scheduler{store: store, gen: gen, now: now, chains: chains}
}

// Failures counts track errors since the scheduler was created
func (sc *Scheduler) Failures() int64 {
	return sc.failures.Load()
}

// Tick handles one sixteenth. A failing track never stops its siblings.
func (sc *Scheduler) Tick(t engine.Tick) {
	step := int(t.Index % MasterCycle)
	s := sc.store.Snapshot()
	solo := s.AnySoloed()

	for i, tr := range s.Tracks {
		local := tr.LocalStep(step)
		if s.Transport.Playing && tr.Active && tr.Audible(solo) && tr.Steps[local] {
			if err := sc.fire(tr, local, t.Time); err != nil {
				sc.fail(&TrackError{Track: i, Op: "trigger", Err: err})
			}
		}
	}
	for i, tr := range s.Tracks {
		sc.store.setCurrentStep(i, tr.LocalStep(step))
	}
	debug.LogEvery(MasterCycle, "tick", "step %d at %.3fs", step, t.Time)
	if sc.onStep != nil {
		sc.onStep()
	}
}

func (sc *Scheduler) fire(tr Track, local int, at float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	c := sc.chains[tr.ID]
	if c == nil {
		return nil
	}
	trig, ok := sc.gen.Select(tr.Archetype, tr.LFO, sc.now(), local)
	if !ok {
		return nil
	}
	return c.Trigger(trig, at)
}

func (sc *Scheduler) fail(err *TrackError) {
	sc.failures.Add(1)
	debug.Log("tick", "%v", err)
	if sc.onError != nil {
		sc.onError(err)
	}
}
