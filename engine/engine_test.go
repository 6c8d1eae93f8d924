package engine

import (
	"errors"
	"math"
	"testing"
)

func TestNotationSeconds(t *testing.T) {
	tests := []struct {
		n    Notation
		bpm  int
		want float64
	}{
		{Quarter, 60, 1},
		{Whole, 60, 4},
		{Sixteenth, 120, 0.125},
		{DottedEighth, 60, 0.75},
		{ThirtySecond, 75, 0.1},
		{SixtyFourth, 75, 0.05},
	}
	for _, tt := range tests {
		got, err := tt.n.Seconds(tt.bpm)
		if err != nil {
			t.Fatalf("%s: %v", tt.n, err)
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s at %d bpm = %v, want %v", tt.n, tt.bpm, got, tt.want)
		}
	}
}

func TestNotationRejectsGarbage(t *testing.T) {
	for _, n := range []Notation{"", "n", "3n", "0n", "4", "xn", "16t"} {
		if _, err := n.Beats(); !errors.Is(err, ErrUnknownNotation) {
			t.Errorf("%q: err = %v, want ErrUnknownNotation", n, err)
		}
	}
	if _, err := Quarter.Seconds(0); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("zero bpm: err = %v", err)
	}
}

func TestPitch(t *testing.T) {
	tests := []struct {
		p    Pitch
		midi int
		hz   float64
	}{
		{"A4", 69, 440},
		{"A3", 57, 220},
		{"A2", 45, 110},
		{"C4", 60, 261.6256},
		{"C#4", 61, 277.1826},
		{"Bb3", 58, 233.0819},
	}
	for _, tt := range tests {
		n, err := tt.p.MIDI()
		if err != nil {
			t.Fatalf("%s: %v", tt.p, err)
		}
		if n != tt.midi {
			t.Errorf("%s midi = %d, want %d", tt.p, n, tt.midi)
		}
		hz, _ := tt.p.Hz()
		if math.Abs(hz-tt.hz) > 1e-3 {
			t.Errorf("%s hz = %v, want %v", tt.p, hz, tt.hz)
		}
	}
	for _, p := range []Pitch{"", "H2", "A", "Ax"} {
		if _, err := p.MIDI(); !errors.Is(err, ErrUnknownPitch) {
			t.Errorf("%q: err = %v, want ErrUnknownPitch", p, err)
		}
	}
}

func TestEnvelopePatchApply(t *testing.T) {
	a, r := 0.5, 3.0
	got := EnvelopePatch{Attack: &a, Release: &r}.Apply(Envelope{Attack: 4, Decay: 2, Sustain: 1, Release: 5})
	want := Envelope{Attack: 0.5, Decay: 2, Sustain: 1, Release: 3}
	if got != want {
		t.Errorf("Apply = %+v, want %+v", got, want)
	}
}
