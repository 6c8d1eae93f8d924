// Package engine describes the audio engine the looper drives: nodes with
// rampable parameters, triggerable voices and a quantized transport clock.
// The looper never synthesizes audio itself; backends live in the headless
// and synth subpackages.
package engine

import (
	"context"
	"errors"
)

var (
	ErrNotStarted       = errors.New("engine not started")
	ErrDisposed         = errors.New("node already disposed")
	ErrUnknownNotation  = errors.New("unknown note value")
	ErrUnknownPitch     = errors.New("unknown pitch name")
	ErrNotConnectable   = errors.New("node cannot be connected")
	ErrEngineClosed     = errors.New("engine closed")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// FilterType selects the filter response
type FilterType string

const (
	Lowpass  FilterType = "lowpass"
	Highpass FilterType = "highpass"
)

// NoiseColor selects the noise spectrum
type NoiseColor string

const (
	White NoiseColor = "white"
	Pink  NoiseColor = "pink"
)

// Waveform selects an oscillator shape
type Waveform string

const (
	Triangle    Waveform = "triangle"
	FatSawtooth Waveform = "fatsawtooth" // Count detuned saws spread over Spread cents
)

// Oscillator describes a pitched voice's oscillator
type Oscillator struct {
	Type   Waveform
	Count  int     // stacked oscillators (FatSawtooth only)
	Spread float64 // total detune in cents (FatSawtooth only)
}

// Envelope is an ADSR envelope. Times are seconds, Sustain is a level 0-1.
type Envelope struct {
	Attack  float64
	Decay   float64
	Sustain float64
	Release float64
}

// EnvelopePatch updates only the non-nil envelope fields
type EnvelopePatch struct {
	Attack  *float64
	Decay   *float64
	Sustain *float64
	Release *float64
}

// Apply returns e with the patch applied
func (p EnvelopePatch) Apply(e Envelope) Envelope {
	if p.Attack != nil {
		e.Attack = *p.Attack
	}
	if p.Decay != nil {
		e.Decay = *p.Decay
	}
	if p.Sustain != nil {
		e.Sustain = *p.Sustain
	}
	if p.Release != nil {
		e.Release = *p.Release
	}
	return e
}

// Param is a rampable audio parameter.
// A ramp started while another is running replaces its target; no ramp
// ever outlives its successor.
type Param interface {
	Value() float64
	RampTo(value, seconds float64)
}

// Node is anything that lives in the audio graph
type Node interface {
	// Connect routes this node's output into dst
	Connect(dst Node) error
	// Dispose releases the node. Disposing twice returns ErrDisposed.
	Dispose() error
}

type Gain interface {
	Node
	Gain() Param
}

type Filter interface {
	Node
	Frequency() Param
	Type() FilterType
}

// Delay is a feedback delay with a fixed time and a rampable wet mix
type Delay interface {
	Node
	Wet() Param
}

// Reverb is a fixed-decay reverb with a rampable wet mix
type Reverb interface {
	Node
	Wet() Param
}

// LFO is a sine modulator. Its output swings over [Min, Max] scaled by
// Amplitude and is added onto every param passed to Modulate.
type LFO interface {
	Node
	Frequency() Param
	Amplitude() Param
	Modulate(target Param) error
	Start() error
}

// Voice is a triggerable instrument. Unpitched voices ignore pitches.
type Voice interface {
	Node
	SetEnvelope(p EnvelopePatch)
	TriggerAttackRelease(pitches []Pitch, duration Notation, at float64) error
}

// Source is a free-running generator such as noise
type Source interface {
	Node
	Start() error
}

// AmpEnvelope gates whatever is connected into it
type AmpEnvelope interface {
	Node
	SetEnvelope(p EnvelopePatch)
	TriggerAttackRelease(duration Notation, at float64) error
	TriggerRelease(at float64) error
}

// Tick is one firing of a repeating transport callback
type Tick struct {
	Index int64   // monotonic count of callbacks since the subscription started
	Time  float64 // engine time in seconds at which the tick sounds (swing applied)
}

// TickFunc is called once per tick. It must not block.
type TickFunc func(Tick)

// Transport is the quantized clock
type Transport interface {
	SetBPM(bpm int)
	BPM() int
	SetSwing(amount float64)
	Start()
	Pause()
	Playing() bool
	// Seconds is the transport position in seconds
	Seconds() float64
	// Repeat calls fn every interval while playing. The returned func cancels.
	Repeat(interval Notation, fn TickFunc) (cancel func())
}

// Engine constructs nodes and owns the transport
type Engine interface {
	// Start initializes the audio context. Calling it again is a no-op.
	Start(ctx context.Context) error
	Started() bool
	// Now is the engine clock in seconds
	Now() float64
	Transport() Transport
	Destination() Node

	NewGain(gain float64) (Gain, error)
	NewFilter(frequency float64, typ FilterType) (Filter, error)
	NewFeedbackDelay(time Notation, feedback float64) (Delay, error)
	NewReverb(decay float64) (Reverb, error)
	NewLFO(frequency, min, max float64) (LFO, error)
	NewPolySynth(osc Oscillator, env Envelope) (Voice, error)
	NewSynth(osc Oscillator, env Envelope) (Voice, error)
	NewNoiseSynth(color NoiseColor, env Envelope) (Voice, error)
	NewNoise(color NoiseColor) (Source, error)
	NewAmpEnvelope(env Envelope) (AmpEnvelope, error)

	Close() error
}
