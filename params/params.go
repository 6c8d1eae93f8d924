// Package params maps the normalized 0-1 track controls onto engine units.
// Everything here is pure; the chain builder and the notices both go through
// it so each mapping lives in exactly one place.
package params

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"ambient-looper/engine"
)

// RampSeconds is how long every runtime parameter change takes to land
const RampSeconds = 0.1

var ErrUnknownArchetype = errors.New("unknown archetype")

// Archetype is one of the four fixed track kinds
type Archetype int

const (
	Chords Archetype = iota
	Percussion
	Crackles
	Wash
)

// Archetypes lists every archetype in track order
var Archetypes = [...]Archetype{Chords, Percussion, Crackles, Wash}

var archetypeNames = [...]string{"chords", "percussion", "crackles", "wash"}

func (a Archetype) Valid() bool { return a >= Chords && a <= Wash }

func (a Archetype) String() string {
	if !a.Valid() {
		return fmt.Sprintf("archetype(%d)", int(a))
	}
	return archetypeNames[a]
}

func ParseArchetype(s string) (Archetype, error) {
	for i, name := range archetypeNames {
		if strings.EqualFold(s, name) {
			return Archetype(i), nil
		}
	}
	return 0, fmt.Errorf("%q: %w", s, ErrUnknownArchetype)
}

func (a Archetype) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%d: %w", int(a), ErrUnknownArchetype)
	}
	return []byte(a.String()), nil
}

func (a *Archetype) UnmarshalText(b []byte) error {
	v, err := ParseArchetype(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// LFO holds the normalized modulation controls
type LFO struct {
	Rate      float64 `json:"rate"`
	Intensity float64 `json:"intensity"`
}

// Effects holds the normalized effect controls
type Effects struct {
	Delay  float64 `json:"delay"`
	Reverb float64 `json:"reverb"`
	Filter float64 `json:"filter"`
	Decay  float64 `json:"decay"`
	Attack float64 `json:"attack"`
}

// Controls is the audio-affecting part of a track
type Controls struct {
	Volume  float64
	LFO     LFO
	Effects Effects
}

// Cutoff is the filter frequency in Hz. Crackles sit on a highpass.
func Cutoff(a Archetype, filter float64) float64 {
	if a == Crackles {
		return filter*filter*5000 + 1000
	}
	return filter*filter*8000 + 200
}

func FilterType(a Archetype) engine.FilterType {
	if a == Crackles {
		return engine.Highpass
	}
	return engine.Lowpass
}

// LFOHz maps the rate control quadratically onto 0.01-5.01 Hz
func LFOHz(rate float64) float64 {
	return rate*rate*5 + 0.01
}

// Target is the parameter an LFO drives
type Target int

const (
	TargetFilterFrequency Target = iota
	TargetDelayWet
)

func (t Target) String() string {
	if t == TargetDelayWet {
		return "delay.wet"
	}
	return "filter.frequency"
}

// Range is where an archetype's LFO points and how far it swings
type Range struct {
	Target   Target
	Min, Max float64
}

func LFORange(a Archetype) Range {
	if a == Crackles {
		return Range{Target: TargetDelayWet, Min: 0, Max: 1}
	}
	return Range{Target: TargetFilterFrequency, Min: 0, Max: 4000}
}

// BaseEnvelope is the envelope a voice is built with
func BaseEnvelope(a Archetype) engine.Envelope {
	switch a {
	case Chords:
		return engine.Envelope{Attack: 2, Sustain: 0.5, Release: 10}
	case Percussion:
		return engine.Envelope{Attack: 0.001, Decay: 0.1}
	case Crackles:
		return engine.Envelope{Attack: 0.001, Decay: 0.05}
	default:
		return engine.Envelope{Attack: 4, Decay: 2, Sustain: 1, Release: 5}
	}
}

// Envelope is the runtime envelope update for the attack and decay controls.
// Fields it leaves nil keep their construction values.
func Envelope(a Archetype, attack, decay float64) engine.EnvelopePatch {
	switch a {
	case Chords:
		return patch(attack*5+0.1, math.NaN(), 0.6, decay*12+0.5)
	case Percussion, Crackles:
		return patch(math.Max(0.001, attack*0.5), decay*0.5+0.01, 0, math.NaN())
	default:
		return patch(attack*8+0.1, math.NaN(), math.NaN(), decay*15+1)
	}
}

// patch builds an EnvelopePatch, NaN meaning "leave alone"
func patch(attack, decay, sustain, release float64) engine.EnvelopePatch {
	ptr := func(v float64) *float64 {
		if math.IsNaN(v) {
			return nil
		}
		return &v
	}
	return engine.EnvelopePatch{
		Attack:  ptr(attack),
		Decay:   ptr(decay),
		Sustain: ptr(sustain),
		Release: ptr(release),
	}
}

// Values is a track's controls in engine units
type Values struct {
	Gain         float64
	Cutoff       float64
	FilterType   engine.FilterType
	DelayWet     float64
	ReverbWet    float64
	LFOHz        float64
	LFOAmplitude float64
	LFO          Range
	Envelope     engine.EnvelopePatch
}

func Derive(a Archetype, c Controls) Values {
	return Values{
		Gain:         c.Volume,
		Cutoff:       Cutoff(a, c.Effects.Filter),
		FilterType:   FilterType(a),
		DelayWet:     c.Effects.Delay,
		ReverbWet:    c.Effects.Reverb,
		LFOHz:        LFOHz(c.LFO.Rate),
		LFOAmplitude: c.LFO.Intensity,
		LFO:          LFORange(a),
		Envelope:     Envelope(a, c.Effects.Attack, c.Effects.Decay),
	}
}

// Percent renders a normalized value the way notices show it, e.g. "25%"
func Percent(v float64) string {
	return fmt.Sprintf("%d%%", int(math.Floor(v*100+0.5)))
}
