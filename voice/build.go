package voice

import (
	"fmt"

	"ambient-looper/debug"
	"ambient-looper/engine"
	"ambient-looper/params"
)

// Build wires a fresh chain for archetype a at values v. On failure every
// node created so far is disposed before the error is returned.
func Build(eng engine.Engine, a params.Archetype, v params.Values) (Chain, error) {
	var (
		c Chain
		b *bus
	)
	switch a {
	case params.Chords:
		ch := &ChordsChain{}
		c, b = ch, &ch.bus
	case params.Percussion:
		ch := &PercussionChain{}
		c, b = ch, &ch.bus
	case params.Crackles:
		ch := &CracklesChain{}
		c, b = ch, &ch.bus
	case params.Wash:
		ch := &WashChain{}
		c, b = ch, &ch.bus
	default:
		return nil, fmt.Errorf("build: %w", params.ErrUnknownArchetype)
	}
	b.archetype = a

	err := b.build(eng, v)
	if err == nil {
		err = attach(eng, c, params.BaseEnvelope(a))
	}
	if err != nil {
		if derr := disposeAll(b.nodes); derr != nil {
			debug.Log("chain", "%s partial dispose: %v", a, derr)
		}
		return nil, fmt.Errorf("build %s chain: %w", a, err)
	}
	debug.Log("chain", "%s built (%d nodes)", a, len(b.nodes))
	return c, nil
}

// build creates and wires the effect bus and its LFO
func (b *bus) build(eng engine.Engine, v params.Values) error {
	var err error
	if b.gain, err = eng.NewGain(v.Gain); err != nil {
		return err
	}
	b.add(b.gain)
	if b.filter, err = eng.NewFilter(v.Cutoff, v.FilterType); err != nil {
		return err
	}
	b.add(b.filter)
	if b.delay, err = eng.NewFeedbackDelay(delayTime, delayFeedback); err != nil {
		return err
	}
	b.add(b.delay)
	b.delay.Wet().RampTo(v.DelayWet, 0)
	if b.reverb, err = eng.NewReverb(reverbDecay); err != nil {
		return err
	}
	b.add(b.reverb)
	b.reverb.Wet().RampTo(v.ReverbWet, 0)

	links := []struct{ src, dst engine.Node }{
		{b.gain, b.filter},
		{b.filter, b.delay},
		{b.delay, b.reverb},
		{b.reverb, eng.Destination()},
	}
	for _, l := range links {
		if err := l.src.Connect(l.dst); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
	}

	if b.lfo, err = eng.NewLFO(v.LFOHz, v.LFO.Min, v.LFO.Max); err != nil {
		return err
	}
	b.add(b.lfo)
	b.lfo.Amplitude().RampTo(v.LFOAmplitude, 0)
	target := b.filter.Frequency()
	if v.LFO.Target == params.TargetDelayWet {
		target = b.delay.Wet()
	}
	if err := b.lfo.Modulate(target); err != nil {
		return fmt.Errorf("lfo: %w", err)
	}
	return b.lfo.Start()
}

// attach builds the archetype's sound source and feeds it into the bus
func attach(eng engine.Engine, c Chain, env engine.Envelope) error {
	var err error
	switch ch := c.(type) {
	case *ChordsChain:
		osc := engine.Oscillator{Type: engine.FatSawtooth, Count: chordVoices, Spread: chordSpread}
		ch.synth, err = ch.voice(eng.NewPolySynth(osc, env))
	case *PercussionChain:
		ch.synth, err = ch.voice(eng.NewSynth(engine.Oscillator{Type: engine.Triangle}, env))
	case *CracklesChain:
		ch.synth, err = ch.voice(eng.NewNoiseSynth(engine.Pink, env))
	case *WashChain:
		err = ch.attach(eng, env)
	}
	return err
}

// voice registers a freshly built voice and connects it to the gain
func (b *bus) voice(v engine.Voice, err error) (engine.Voice, error) {
	if err != nil {
		return nil, err
	}
	b.add(v)
	if err := v.Connect(b.gain); err != nil {
		return nil, fmt.Errorf("connect voice: %w", err)
	}
	return v, nil
}

func (c *WashChain) attach(eng engine.Engine, env engine.Envelope) error {
	var err error
	if c.noise, err = eng.NewNoise(engine.White); err != nil {
		return err
	}
	c.add(c.noise)
	if c.env, err = eng.NewAmpEnvelope(env); err != nil {
		return err
	}
	c.add(c.env)
	if err := c.noise.Connect(c.env); err != nil {
		return fmt.Errorf("connect noise: %w", err)
	}
	if err := c.env.Connect(c.gain); err != nil {
		return fmt.Errorf("connect envelope: %w", err)
	}
	return c.noise.Start()
}
