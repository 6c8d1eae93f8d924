package sequencer

import "ambient-looper/params"

const (
	NumTracks = 4
	MaxSteps  = 16

	// MasterCycle is the length in sixteenths of the shared step counter.
	// It is a multiple of every common track length.
	MasterCycle = 48

	MinBPM        = 40
	MaxBPM        = 180
	MinStepLength = 2

	DefaultBPM   = 75
	DefaultSwing = 0.2
)

// Transport is the global clock state
type Transport struct {
	BPM     int     `json:"bpm"`
	Swing   float64 `json:"swing"`
	Playing bool    `json:"playing"`
}

// Track is one of the four fixed tracks. Normalized controls are 0-1.
type Track struct {
	ID          int              `json:"id"`
	Archetype   params.Archetype `json:"archetype"`
	Active      bool             `json:"active"`
	Muted       bool             `json:"muted"`
	Soloed      bool             `json:"soloed"`
	Volume      float64          `json:"volume"`
	Steps       [MaxSteps]bool   `json:"steps"`
	StepLength  int              `json:"stepLength"`
	CurrentStep int              `json:"currentStep"`
	Color       string           `json:"color"`
	LFO         params.LFO       `json:"lfo"`
	Effects     params.Effects   `json:"effects"`
}

// Controls returns the audio-affecting part of the track
func (t Track) Controls() params.Controls {
	return params.Controls{Volume: t.Volume, LFO: t.LFO, Effects: t.Effects}
}

// Values maps the track's controls to engine units
func (t Track) Values() params.Values {
	return params.Derive(t.Archetype, t.Controls())
}

// Audible applies the solo rule: while anything is soloed only soloed
// tracks sound, otherwise everything unmuted does.
func (t Track) Audible(anySoloed bool) bool {
	if anySoloed {
		return t.Soloed
	}
	return !t.Muted
}

// LocalStep is the track's position for a master step
func (t Track) LocalStep(master int) int {
	return master % t.StepLength
}

// State is a complete value snapshot; copies share nothing
type State struct {
	Transport Transport         `json:"transport"`
	Tracks    [NumTracks]Track `json:"tracks"`
}

func (s State) AnySoloed() bool {
	for _, t := range s.Tracks {
		if t.Soloed {
			return true
		}
	}
	return false
}

// DefaultState is the state the looper boots with
func DefaultState() State {
	s := State{Transport: Transport{BPM: DefaultBPM, Swing: DefaultSwing}}
	s.Tracks[params.Chords] = Track{
		Volume:  0.6,
		Color:   "#3b82f6",
		LFO:     params.LFO{Rate: 0.1, Intensity: 0.5},
		Effects: params.Effects{Delay: 0.5, Reverb: 0.7, Filter: 0.25, Decay: 0.85, Attack: 0.5},
	}
	s.Tracks[params.Chords].Steps[0] = true

	s.Tracks[params.Percussion] = Track{
		Volume:  0.5,
		Color:   "#10b981",
		LFO:     params.LFO{Rate: 0.3, Intensity: 0.4},
		Effects: params.Effects{Delay: 0.4, Reverb: 0.6, Filter: 0.3, Decay: 0.5, Attack: 0.01},
	}
	s.Tracks[params.Percussion].Steps[4] = true
	s.Tracks[params.Percussion].Steps[12] = true

	s.Tracks[params.Crackles] = Track{
		Volume:  0.3,
		Color:   "#f59e0b",
		LFO:     params.LFO{Rate: 0.5, Intensity: 0.4},
		Effects: params.Effects{Delay: 0.2, Reverb: 0.5, Filter: 0.2, Decay: 0.15, Attack: 0.01},
	}
	for i := 0; i < MaxSteps; i += 7 {
		s.Tracks[params.Crackles].Steps[i] = true
	}

	s.Tracks[params.Wash] = Track{
		Volume:  0.25,
		Color:   "#8b5cf6",
		LFO:     params.LFO{Rate: 0.05, Intensity: 0.8},
		Effects: params.Effects{Delay: 0.6, Reverb: 0.9, Filter: 0.15, Decay: 0.95, Attack: 0.6},
	}
	for i := range s.Tracks[params.Wash].Steps {
		s.Tracks[params.Wash].Steps[i] = true
	}

	for i := range s.Tracks {
		t := &s.Tracks[i]
		t.ID = i
		t.Archetype = params.Archetypes[i]
		t.Active = true
		t.StepLength = MaxSteps
	}
	return s
}

// normalize clamps every field into range and pins each track to its slot
func (s *State) normalize() {
	s.Transport.BPM = ClampBPM(float64(s.Transport.BPM))
	s.Transport.Swing = Unit(s.Transport.Swing)
	for i := range s.Tracks {
		t := &s.Tracks[i]
		t.ID = i
		t.Archetype = params.Archetypes[i]
		t.Volume = Unit(t.Volume)
		t.StepLength = ClampStepLength(t.StepLength)
		if t.CurrentStep < 0 || t.CurrentStep >= t.StepLength {
			t.CurrentStep = 0
		}
		t.LFO.Rate = Unit(t.LFO.Rate)
		t.LFO.Intensity = Unit(t.LFO.Intensity)
		e := &t.Effects
		e.Delay, e.Reverb, e.Filter = Unit(e.Delay), Unit(e.Reverb), Unit(e.Filter)
		e.Decay, e.Attack = Unit(e.Decay), Unit(e.Attack)
	}
}
