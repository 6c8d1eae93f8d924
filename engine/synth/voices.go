package synth

import (
	"fmt"
	"math"
	"math/rand"

	"ambient-looper/engine"
)

const (
	polyphony   = 8
	voiceGain   = 0.3
	fatSawCount = 3
	noiseScale  = 0.11 // brings pink noise back to roughly unit range
	noPending   = -1
)

type stage int

const (
	stageIdle stage = iota
	stageAttack
	stageDecay
	stageSustain
	stageRelease
)

// adsr is a linear envelope generator advanced once per sample
type adsr struct {
	env     engine.Envelope
	rate    float64
	stage   stage
	level   float64
	relStep float64
}

func newADSR(env engine.Envelope, rate float64) adsr {
	return adsr{env: env, rate: rate}
}

func (a *adsr) samples(sec float64) float64 {
	return math.Max(1, sec*a.rate)
}

func (a *adsr) gateOn() { a.stage = stageAttack }

func (a *adsr) gateOff() {
	if a.stage == stageIdle {
		return
	}
	a.stage = stageRelease
	a.relStep = a.level / a.samples(a.env.Release)
}

func (a *adsr) next() float64 {
	switch a.stage {
	case stageAttack:
		a.level += 1 / a.samples(a.env.Attack)
		if a.level >= 1 {
			a.level = 1
			a.stage = stageDecay
		}
	case stageDecay:
		a.level -= (1 - a.env.Sustain) / a.samples(a.env.Decay)
		if a.level <= a.env.Sustain {
			a.level = a.env.Sustain
			a.stage = stageSustain
		}
	case stageSustain:
		a.level = a.env.Sustain
	case stageRelease:
		a.level -= a.relStep
		if a.level <= 0 {
			a.level = 0
			a.stage = stageIdle
		}
	}
	return a.level
}

// gate holds the pending on/off sample indices for one envelope
type gate struct {
	on, off int64
}

func idleGate() gate { return gate{on: noPending, off: noPending} }

// step applies whatever is due at sample idx
func (g *gate) step(a *adsr, idx int64) {
	if g.on != noPending && idx >= g.on {
		a.gateOn()
		g.on = noPending
	}
	if g.off != noPending && g.on == noPending && idx >= g.off {
		a.gateOff()
		g.off = noPending
	}
}

type generator interface {
	next() float32
	setPitch(hz float64)
}

type sourceFactory func(rng *rand.Rand, rate float64) generator

type oscBank struct {
	wave   engine.Waveform
	ratios []float64
	phases []float64
	incs   []float64
	rate   float64
}

func oscillatorSource(osc engine.Oscillator) sourceFactory {
	return func(_ *rand.Rand, rate float64) generator {
		count := 1
		if osc.Type == engine.FatSawtooth {
			count = osc.Count
			if count < 1 {
				count = fatSawCount
			}
		}
		b := &oscBank{wave: osc.Type, rate: rate}
		for i := 0; i < count; i++ {
			cents := 0.0
			if count > 1 {
				cents = -osc.Spread/2 + osc.Spread*float64(i)/float64(count-1)
			}
			b.ratios = append(b.ratios, math.Pow(2, cents/1200))
		}
		b.phases = make([]float64, count)
		b.incs = make([]float64, count)
		return b
	}
}

func (b *oscBank) setPitch(hz float64) {
	for i, r := range b.ratios {
		b.incs[i] = hz * r / b.rate
	}
}

func (b *oscBank) next() float32 {
	var s float64
	for i, p := range b.phases {
		if b.wave == engine.Triangle {
			s += 1 - 4*math.Abs(p-0.5)
		} else {
			s += 2*p - 1
		}
		p += b.incs[i]
		if p >= 1 {
			p -= 1
		}
		b.phases[i] = p
	}
	return float32(s / float64(len(b.phases)))
}

type noiseGen struct {
	color engine.NoiseColor
	rng   *rand.Rand
	b     [7]float64
}

func newNoise(color engine.NoiseColor, rng *rand.Rand) *noiseGen {
	return &noiseGen{color: color, rng: rng}
}

func noiseSource(color engine.NoiseColor) sourceFactory {
	return func(rng *rand.Rand, _ float64) generator { return newNoise(color, rng) }
}

func (n *noiseGen) setPitch(float64) {}

// next is white noise, or pink via Paul Kellet's filter
func (n *noiseGen) next() float32 {
	w := n.rng.Float64()*2 - 1
	if n.color != engine.Pink {
		return float32(w)
	}
	b := &n.b
	b[0] = 0.99886*b[0] + w*0.0555179
	b[1] = 0.99332*b[1] + w*0.0750759
	b[2] = 0.96900*b[2] + w*0.1538520
	b[3] = 0.86650*b[3] + w*0.3104856
	b[4] = 0.55000*b[4] + w*0.5329522
	b[5] = -0.7616*b[5] - w*0.0168980
	pink := b[0] + b[1] + b[2] + b[3] + b[4] + b[5] + b[6] + w*0.5362
	b[6] = w * 0.115926
	return float32(pink * noiseScale)
}

type voice struct {
	src  generator
	env  adsr
	gate gate
	age  int64
}

func (v *voice) busy() bool {
	return v.env.stage != stageIdle || v.gate.on != noPending
}

// voices is a fixed pool; the oldest voice is stolen when all are busy
type voices struct {
	e    *Engine
	env  engine.Envelope
	pool []*voice
}

func newVoices(e *Engine, src sourceFactory, env engine.Envelope, n int) *voices {
	vs := &voices{e: e, env: env}
	for i := 0; i < n; i++ {
		vs.pool = append(vs.pool, &voice{
			src:  src(e.rng, float64(e.rate)),
			env:  newADSR(env, float64(e.rate)),
			gate: idleGate(),
		})
	}
	return vs
}

func (vs *voices) process(_, out []float32, start int64) {
	for i := range out {
		idx := start + int64(i)
		var s float32
		for _, v := range vs.pool {
			v.gate.step(&v.env, idx)
			if v.env.stage == stageIdle {
				continue
			}
			s += v.src.next() * float32(v.env.next())
		}
		out[i] = s * voiceGain
	}
}

func (vs *voices) allocate() *voice {
	var oldest *voice
	for _, v := range vs.pool {
		if !v.busy() {
			return v
		}
		if oldest == nil || v.age < oldest.age {
			oldest = v
		}
	}
	return oldest
}

type voiceNode struct {
	*node
	proc *voices
}

func (v *voiceNode) SetEnvelope(p engine.EnvelopePatch) {
	v.e.mu.Lock()
	defer v.e.mu.Unlock()
	v.proc.env = p.Apply(v.proc.env)
	for _, vc := range v.proc.pool {
		vc.env.env = v.proc.env
	}
}

func (v *voiceNode) TriggerAttackRelease(pitches []engine.Pitch, duration engine.Notation, at float64) error {
	hz := make([]float64, 0, len(pitches))
	for _, p := range pitches {
		f, err := p.Hz()
		if err != nil {
			return err
		}
		hz = append(hz, f)
	}
	if len(hz) == 0 {
		hz = append(hz, 0)
	}
	sec, err := duration.Seconds(v.e.transport.BPM())
	if err != nil {
		return fmt.Errorf("trigger: %w", err)
	}

	v.e.mu.Lock()
	defer v.e.mu.Unlock()
	if v.disposed {
		return engine.ErrDisposed
	}
	start := v.e.sampleAt(at)
	end := start + int64(sec*float64(v.e.rate))
	for _, f := range hz {
		vc := v.proc.allocate()
		vc.src.setPitch(f)
		vc.gate = gate{on: start, off: end}
		vc.age = start
	}
	return nil
}

type noiseProc struct {
	gen     *noiseGen
	running bool
}

func (n *noiseProc) process(_, out []float32, _ int64) {
	if !n.running {
		for i := range out {
			out[i] = 0
		}
		return
	}
	for i := range out {
		out[i] = n.gen.next()
	}
}

type sourceNode struct {
	*node
	proc *noiseProc
}

func (s *sourceNode) Start() error {
	s.e.mu.Lock()
	defer s.e.mu.Unlock()
	if s.disposed {
		return engine.ErrDisposed
	}
	s.proc.running = true
	return nil
}

type ampEnvProc struct {
	env  adsr
	gate gate
}

func (a *ampEnvProc) process(in, out []float32, start int64) {
	for i, x := range in {
		a.gate.step(&a.env, start+int64(i))
		out[i] = x * float32(a.env.next())
	}
}

type ampEnvNode struct {
	*node
	proc *ampEnvProc
}

func (a *ampEnvNode) SetEnvelope(p engine.EnvelopePatch) {
	a.e.mu.Lock()
	defer a.e.mu.Unlock()
	a.proc.env.env = p.Apply(a.proc.env.env)
}

func (a *ampEnvNode) TriggerAttackRelease(duration engine.Notation, at float64) error {
	sec, err := duration.Seconds(a.e.transport.BPM())
	if err != nil {
		return fmt.Errorf("trigger: %w", err)
	}
	a.e.mu.Lock()
	defer a.e.mu.Unlock()
	if a.disposed {
		return engine.ErrDisposed
	}
	start := a.e.sampleAt(at)
	a.proc.gate = gate{on: start, off: start + int64(sec*float64(a.e.rate))}
	return nil
}

func (a *ampEnvNode) TriggerRelease(at float64) error {
	a.e.mu.Lock()
	defer a.e.mu.Unlock()
	if a.disposed {
		return engine.ErrDisposed
	}
	a.proc.gate.on = noPending
	a.proc.gate.off = a.e.sampleAt(at)
	return nil
}
