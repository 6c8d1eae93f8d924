// Package voice builds and drives the per-track audio chain:
//
//	voice -> gain -> filter -> feedback delay -> reverb -> destination
//
// with an LFO on the filter cutoff, or on the delay wet for crackles. Each
// archetype gets its own Chain type sharing the effect bus.
package voice

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"ambient-looper/debug"
	"ambient-looper/engine"
	"ambient-looper/notegen"
	"ambient-looper/params"
)

var ErrWrongTrigger = errors.New("trigger kind not playable on this chain")

const (
	delayTime     = engine.DottedEighth
	delayFeedback = 0.5
	reverbDecay   = 5
	chordVoices   = 3
	chordSpread   = 30
)

// Chain is one track's instrument plus its effect bus
type Chain interface {
	Archetype() params.Archetype
	// Trigger plays t at engine time at
	Trigger(t notegen.Trigger, at float64) error
	// Release ends a sustained sound. Only the wash sustains.
	Release(at float64) error
	// Apply ramps every control toward v and resets the envelope
	Apply(v params.Values)
	// Dispose releases every node once. Later calls do nothing.
	Dispose() error
}

type bus struct {
	archetype params.Archetype
	gain      engine.Gain
	filter    engine.Filter
	delay     engine.Delay
	reverb    engine.Reverb
	lfo       engine.LFO

	nodes    []engine.Node // build order
	once     sync.Once
	disposed atomic.Bool
}

func (b *bus) Archetype() params.Archetype { return b.archetype }

func (b *bus) Release(float64) error { return nil }

func (b *bus) add(n engine.Node) { b.nodes = append(b.nodes, n) }

// apply reports false once the chain is disposed
func (b *bus) apply(v params.Values) bool {
	if b.disposed.Load() {
		return false
	}
	b.gain.Gain().RampTo(v.Gain, params.RampSeconds)
	b.filter.Frequency().RampTo(v.Cutoff, params.RampSeconds)
	b.delay.Wet().RampTo(v.DelayWet, params.RampSeconds)
	b.reverb.Wet().RampTo(v.ReverbWet, params.RampSeconds)
	b.lfo.Frequency().RampTo(v.LFOHz, params.RampSeconds)
	b.lfo.Amplitude().RampTo(v.LFOAmplitude, params.RampSeconds)
	return true
}

func (b *bus) Dispose() error {
	var err error
	b.once.Do(func() {
		b.disposed.Store(true)
		err = disposeAll(b.nodes)
		debug.Log("chain", "%s disposed (%d nodes)", b.archetype, len(b.nodes))
	})
	return err
}

// disposeAll releases nodes sources-first and joins every failure
func disposeAll(nodes []engine.Node) error {
	var errs []error
	for i := len(nodes) - 1; i >= 0; i-- {
		if err := nodes[i].Dispose(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *bus) wrong(t notegen.Trigger) error {
	return fmt.Errorf("%s chain got %s: %w", b.archetype, t.Kind, ErrWrongTrigger)
}

func (b *bus) live() error {
	if b.disposed.Load() {
		return engine.ErrDisposed
	}
	return nil
}

// ChordsChain is a detuned saw pad
type ChordsChain struct {
	bus
	synth engine.Voice
}

func (c *ChordsChain) Trigger(t notegen.Trigger, at float64) error {
	if t.Kind != notegen.Notes {
		return c.wrong(t)
	}
	if err := c.live(); err != nil {
		return err
	}
	return c.synth.TriggerAttackRelease(t.Pitches, t.Duration, at)
}

func (c *ChordsChain) Apply(v params.Values) {
	if c.apply(v) {
		c.synth.SetEnvelope(v.Envelope)
	}
}

// PercussionChain is a plucked triangle
type PercussionChain struct {
	bus
	synth engine.Voice
}

func (c *PercussionChain) Trigger(t notegen.Trigger, at float64) error {
	if t.Kind != notegen.Notes {
		return c.wrong(t)
	}
	if err := c.live(); err != nil {
		return err
	}
	return c.synth.TriggerAttackRelease(t.Pitches, t.Duration, at)
}

func (c *PercussionChain) Apply(v params.Values) {
	if c.apply(v) {
		c.synth.SetEnvelope(v.Envelope)
	}
}

// CracklesChain is short pink noise bursts
type CracklesChain struct {
	bus
	synth engine.Voice
}

func (c *CracklesChain) Trigger(t notegen.Trigger, at float64) error {
	if t.Kind != notegen.Burst {
		return c.wrong(t)
	}
	if err := c.live(); err != nil {
		return err
	}
	return c.synth.TriggerAttackRelease(nil, t.Duration, at)
}

func (c *CracklesChain) Apply(v params.Values) {
	if c.apply(v) {
		c.synth.SetEnvelope(v.Envelope)
	}
}

// WashChain is free-running white noise gated by an amplitude envelope
type WashChain struct {
	bus
	noise engine.Source
	env   engine.AmpEnvelope
}

func (c *WashChain) Trigger(t notegen.Trigger, at float64) error {
	if t.Kind != notegen.Attack {
		return c.wrong(t)
	}
	if err := c.live(); err != nil {
		return err
	}
	return c.env.TriggerAttackRelease(t.Duration, at)
}

func (c *WashChain) Release(at float64) error {
	if err := c.live(); err != nil {
		return err
	}
	return c.env.TriggerRelease(at)
}

func (c *WashChain) Apply(v params.Values) {
	if c.apply(v) {
		c.env.SetEnvelope(v.Envelope)
	}
}
