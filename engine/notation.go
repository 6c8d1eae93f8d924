package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// Notation is a tempo-relative note value such as "16n" or "8n."
type Notation string

const (
	Whole        Notation = "1n"
	Half         Notation = "2n"
	Quarter      Notation = "4n"
	Eighth       Notation = "8n"
	DottedEighth Notation = "8n."
	Sixteenth    Notation = "16n"
	ThirtySecond Notation = "32n"
	SixtyFourth  Notation = "64n"
)

const beatsPerWhole = 4.0

// Beats returns the length in quarter-note beats
func (n Notation) Beats() (float64, error) {
	s := string(n)
	dotted := strings.HasSuffix(s, ".")
	s = strings.TrimSuffix(s, ".")
	if !strings.HasSuffix(s, "n") {
		return 0, fmt.Errorf("%q: %w", string(n), ErrUnknownNotation)
	}
	div, err := strconv.Atoi(strings.TrimSuffix(s, "n"))
	if err != nil || div <= 0 || div&(div-1) != 0 {
		return 0, fmt.Errorf("%q: %w", string(n), ErrUnknownNotation)
	}
	beats := beatsPerWhole / float64(div)
	if dotted {
		beats *= 1.5
	}
	return beats, nil
}

// Seconds returns the length at bpm
func (n Notation) Seconds(bpm int) (float64, error) {
	beats, err := n.Beats()
	if err != nil {
		return 0, err
	}
	if bpm <= 0 {
		return 0, fmt.Errorf("bpm %d: %w", bpm, ErrInvalidParameter)
	}
	return beats * 60.0 / float64(bpm), nil
}

// MustSeconds is Seconds for the package's own constants
func (n Notation) MustSeconds(bpm int) float64 {
	s, err := n.Seconds(bpm)
	if err != nil {
		panic(err)
	}
	return s
}
