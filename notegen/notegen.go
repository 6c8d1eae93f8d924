// Package notegen picks what a track plays when its step fires. Pitched
// tracks read the phase of their own LFO at the moment of the step, so the
// melody drifts with the modulation; a small random nudge keeps it loose.
package notegen

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"ambient-looper/engine"
	"ambient-looper/params"
)

// Kind says which trigger call a chain should make
type Kind int

const (
	Notes  Kind = iota // pitched attack-release
	Burst              // unpitched attack-release
	Attack             // amplitude envelope attack on a running source
)

func (k Kind) String() string {
	switch k {
	case Notes:
		return "notes"
	case Burst:
		return "burst"
	case Attack:
		return "attack"
	}
	return "unknown"
}

// Trigger is one decision for one track on one step
type Trigger struct {
	Kind     Kind
	Pitches  []engine.Pitch
	Duration engine.Notation
}

var (
	minorChord = []engine.Pitch{"A2", "C3", "E3", "G3", "A3"}
	pentatonic = []engine.Pitch{"A3", "C4", "D4", "E4", "G4", "A4"}
)

const jitter = 0.5

// Source supplies uniform draws in [0,1)
type Source interface {
	Float64() float64
}

// Generator is safe for concurrent use
type Generator struct {
	mu  sync.Mutex
	src Source
}

// New returns a generator drawing from src, or from a time-seeded source
// when src is nil
func New(src Source) *Generator {
	if src == nil {
		src = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{src: src}
}

// NewSeeded is New with a reproducible math/rand source
func NewSeeded(seed int64) *Generator {
	return New(rand.New(rand.NewSource(seed)))
}

func (g *Generator) draw() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.src.Float64()
}

// Phase is the LFO phase in [0,1) at time t
func Phase(rate, t float64) float64 {
	p := math.Mod(t*params.LFOHz(rate), 1)
	if p < 0 {
		p++
	}
	return p
}

// index picks a scale degree from the phase, scaled by intensity
func (g *Generator) index(n int, phase, intensity float64) int {
	i := int(math.Floor(phase*float64(n)*intensity+g.draw()*jitter)) % n
	if i < 0 {
		i += n
	}
	return i
}

// Select decides the trigger for a firing step. seconds is the engine time
// used for the LFO phase; local is the track's own step. The bool is false
// when the track should stay silent on this step.
func (g *Generator) Select(a params.Archetype, lfo params.LFO, seconds float64, local int) (Trigger, bool) {
	phase := Phase(lfo.Rate, seconds)
	switch a {
	case params.Chords:
		i := g.index(len(minorChord), phase, lfo.Intensity)
		return Trigger{
			Kind:     Notes,
			Pitches:  []engine.Pitch{minorChord[i], minorChord[(i+2)%len(minorChord)]},
			Duration: engine.Whole,
		}, true
	case params.Percussion:
		i := g.index(len(pentatonic), phase, lfo.Intensity)
		return Trigger{
			Kind:     Notes,
			Pitches:  []engine.Pitch{pentatonic[i]},
			Duration: engine.ThirtySecond,
		}, true
	case params.Crackles:
		return Trigger{Kind: Burst, Duration: engine.SixtyFourth}, true
	case params.Wash:
		if local != 0 {
			return Trigger{}, false
		}
		return Trigger{Kind: Attack, Duration: engine.Whole}, true
	}
	return Trigger{}, false
}
