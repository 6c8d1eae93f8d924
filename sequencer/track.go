package sequencer

import (
	"fmt"
	"math"

	"ambient-looper/params"
)

// TransportPatch is a partial transport update. Nil fields are left alone.
type TransportPatch struct {
	BPM     *float64 `json:"bpm,omitempty"`
	Swing   *float64 `json:"swing,omitempty"`
	Playing *bool    `json:"playing,omitempty"`
}

type LFOPatch struct {
	Rate      *float64 `json:"rate,omitempty"`
	Intensity *float64 `json:"intensity,omitempty"`
}

type EffectsPatch struct {
	Delay  *float64 `json:"delay,omitempty"`
	Reverb *float64 `json:"reverb,omitempty"`
	Filter *float64 `json:"filter,omitempty"`
	Decay  *float64 `json:"decay,omitempty"`
	Attack *float64 `json:"attack,omitempty"`
}

// TrackPatch is a partial track update. Steps are changed with ToggleStep.
type TrackPatch struct {
	Active     *bool         `json:"active,omitempty"`
	Muted      *bool         `json:"muted,omitempty"`
	Soloed     *bool         `json:"soloed,omitempty"`
	Volume     *float64      `json:"volume,omitempty"`
	StepLength *int          `json:"stepLength,omitempty"`
	LFO        *LFOPatch     `json:"lfo,omitempty"`
	Effects    *EffectsPatch `json:"effects,omitempty"`
}

// Changes describes what a patch touched
type Changes struct {
	Audio   bool // volume, lfo or effects: the chain needs re-applying
	Clock   bool // bpm or swing: the transport needs updating
	Notices []Notice
}

// Unit clamps v to [0,1]. NaN becomes 0.
func Unit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ClampBPM rounds v and clamps it to [MinBPM, MaxBPM]
func ClampBPM(v float64) int {
	if math.IsNaN(v) || v < MinBPM {
		return MinBPM
	}
	if v > MaxBPM {
		return MaxBPM
	}
	return int(math.Round(v))
}

func ClampStepLength(n int) int {
	if n < MinStepLength {
		return MinStepLength
	}
	if n > MaxSteps {
		return MaxSteps
	}
	return n
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

// apply merges p into t
func (t *Transport) apply(p TransportPatch) Changes {
	var c Changes
	if p.BPM != nil {
		t.BPM = ClampBPM(*p.BPM)
		c.Clock = true
		c.Notices = append(c.Notices, Notice{Label: "TEMPO", Value: fmt.Sprintf("%d BPM", t.BPM)})
	}
	if p.Swing != nil {
		t.Swing = Unit(*p.Swing)
		c.Clock = true
		c.Notices = append(c.Notices, Notice{Label: "SWING", Value: params.Percent(t.Swing)})
	}
	return c
}

// apply merges p into t. Every present field produces a notice, even if the
// value did not change, so repeated nudges at a limit still show feedback.
func (t *Track) apply(p TrackPatch) Changes {
	var c Changes
	unit := func(dst *float64, src *float64, label string) {
		if src == nil {
			return
		}
		*dst = Unit(*src)
		c.Audio = true
		c.Notices = append(c.Notices, Notice{Label: label, Value: params.Percent(*dst)})
	}

	if p.Active != nil {
		t.Active = *p.Active
	}
	if p.Soloed != nil {
		t.Soloed = *p.Soloed
		c.Notices = append(c.Notices, Notice{Label: "SOLO", Value: onOff(t.Soloed)})
	}
	if p.Muted != nil {
		t.Muted = *p.Muted
		c.Notices = append(c.Notices, Notice{Label: "MUTE", Value: onOff(t.Muted)})
	}
	unit(&t.Volume, p.Volume, "VOLUME")
	if p.StepLength != nil {
		t.StepLength = ClampStepLength(*p.StepLength)
		c.Notices = append(c.Notices, Notice{Label: "LENGTH", Value: fmt.Sprintf("%d STEPS", t.StepLength)})
	}
	if l := p.LFO; l != nil {
		unit(&t.LFO.Rate, l.Rate, "LFO SPEED")
		unit(&t.LFO.Intensity, l.Intensity, "LFO DEPTH")
	}
	if fx := p.Effects; fx != nil {
		unit(&t.Effects.Filter, fx.Filter, "FILTER")
		unit(&t.Effects.Attack, fx.Attack, "ATTACK")
		unit(&t.Effects.Decay, fx.Decay, "DECAY")
		unit(&t.Effects.Delay, fx.Delay, "DELAY")
		unit(&t.Effects.Reverb, fx.Reverb, "REVERB")
	}
	return c
}
