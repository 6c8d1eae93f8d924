package engine

import (
	"fmt"
	"math"
	"strconv"
)

// Pitch is a note name in scientific pitch notation, e.g. "A2" or "C#4"
type Pitch string

var semitones = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

// MIDI returns the MIDI note number (A4 = 69)
func (p Pitch) MIDI() (int, error) {
	s := string(p)
	if len(s) < 2 {
		return 0, fmt.Errorf("%q: %w", s, ErrUnknownPitch)
	}
	base, ok := semitones[s[0]]
	if !ok {
		return 0, fmt.Errorf("%q: %w", s, ErrUnknownPitch)
	}
	rest := s[1:]
	switch rest[0] {
	case '#':
		base++
		rest = rest[1:]
	case 'b':
		base--
		rest = rest[1:]
	}
	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, ErrUnknownPitch)
	}
	return (octave+1)*12 + base, nil
}

// Hz returns the equal-tempered frequency (A4 = 440 Hz)
func (p Pitch) Hz() (float64, error) {
	n, err := p.MIDI()
	if err != nil {
		return 0, err
	}
	return 440 * math.Pow(2, float64(n-69)/12), nil
}
