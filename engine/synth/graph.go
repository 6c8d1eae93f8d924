package synth

import (
	"fmt"
	"math"

	"github.com/viterin/vek/vek32"

	"ambient-looper/engine"
)

// processor turns one block of summed input into one block of output.
// start is the absolute sample index of in[0].
type processor interface {
	process(in, out []float32, start int64)
}

type node struct {
	e        *Engine
	proc     processor
	inputs   []*node
	in, out  []float32
	serial   uint64
	visiting bool
	disposed bool
}

type graphNode interface{ graph() *node }

func (n *node) graph() *node { return n }

// newNode runs with mu held, or before the engine is shared
func (e *Engine) newNode(p processor) *node {
	return &node{
		e:    e,
		proc: p,
		in:   make([]float32, BlockSize),
		out:  make([]float32, BlockSize),
	}
}

// pull renders the node once per block. A cycle reads the previous block.
func (n *node) pull() []float32 {
	if n.serial == n.e.serial || n.visiting {
		return n.out
	}
	n.visiting = true
	vek32.Zeros_Into(n.in, BlockSize)
	live := n.inputs[:0]
	for _, src := range n.inputs {
		if src.disposed {
			continue
		}
		live = append(live, src)
		vek32.Add_Inplace(n.in, src.pull())
	}
	n.inputs = live
	n.proc.process(n.in, n.out, n.e.frame)
	n.serial = n.e.serial
	n.visiting = false
	return n.out
}

func (n *node) Connect(dst engine.Node) error {
	g, ok := dst.(graphNode)
	if !ok {
		return fmt.Errorf("connect to %T: %w", dst, engine.ErrNotConnectable)
	}
	target := g.graph()
	n.e.mu.Lock()
	defer n.e.mu.Unlock()
	if n.disposed || target.disposed {
		return engine.ErrDisposed
	}
	target.inputs = append(target.inputs, n)
	return nil
}

func (n *node) Dispose() error {
	n.e.mu.Lock()
	defer n.e.mu.Unlock()
	if n.disposed {
		return engine.ErrDisposed
	}
	n.disposed = true
	n.inputs = nil
	return nil
}

// param ramps linearly, one increment per block
type param struct {
	e         *Engine
	value     float64
	target    float64
	step      float64
	remaining int
	mods      []*lfo
}

// newParam runs with mu held
func (e *Engine) newParam(v float64) *param {
	p := &param{e: e, value: v, target: v}
	e.params = append(e.params, p)
	return p
}

func (p *param) Value() float64 {
	p.e.mu.Lock()
	defer p.e.mu.Unlock()
	return p.value
}

func (p *param) RampTo(value, seconds float64) {
	p.e.mu.Lock()
	defer p.e.mu.Unlock()
	blocks := int(math.Ceil(seconds * float64(p.e.rate) / BlockSize))
	if blocks <= 0 {
		p.value, p.target, p.remaining = value, value, 0
		return
	}
	p.target = value
	p.step = (value - p.value) / float64(blocks)
	p.remaining = blocks
}

func (p *param) advance() {
	if p.remaining == 0 {
		return
	}
	p.remaining--
	if p.remaining == 0 {
		p.value = p.target
		return
	}
	p.value += p.step
}

// current is the ramped value plus every live modulator
func (p *param) current() float64 {
	v := p.value
	for _, m := range p.mods {
		v += m.out
	}
	return v
}

type lfo struct {
	e        *Engine
	freq     *param
	amp      *param
	min, max float64
	phase    float64
	running  bool
	disposed bool
	out      float64
}

func (l *lfo) advance(dt float64) {
	if !l.running || l.disposed {
		l.out = 0
		return
	}
	s := 0.5 + 0.5*math.Sin(2*math.Pi*l.phase)
	l.out = l.amp.current() * (l.min + (l.max-l.min)*s)
	l.phase = math.Mod(l.phase+l.freq.current()*dt, 1)
}

func (l *lfo) Frequency() engine.Param { return l.freq }
func (l *lfo) Amplitude() engine.Param { return l.amp }

func (l *lfo) Modulate(target engine.Param) error {
	p, ok := target.(*param)
	if !ok || p.e != l.e {
		return fmt.Errorf("modulate %T: %w", target, engine.ErrNotConnectable)
	}
	l.e.mu.Lock()
	defer l.e.mu.Unlock()
	if l.disposed {
		return engine.ErrDisposed
	}
	p.mods = append(p.mods, l)
	return nil
}

func (l *lfo) Start() error {
	l.e.mu.Lock()
	defer l.e.mu.Unlock()
	if l.disposed {
		return engine.ErrDisposed
	}
	l.running = true
	return nil
}

func (l *lfo) Connect(engine.Node) error {
	return fmt.Errorf("lfo output is control rate, use Modulate: %w", engine.ErrNotConnectable)
}

func (l *lfo) Dispose() error {
	l.e.mu.Lock()
	defer l.e.mu.Unlock()
	if l.disposed {
		return engine.ErrDisposed
	}
	l.disposed = true
	l.out = 0
	for _, p := range l.e.params {
		p.mods = without(p.mods, l)
	}
	l.e.lfos = without(l.e.lfos, l)
	return nil
}

func without(ls []*lfo, x *lfo) []*lfo {
	out := ls[:0]
	for _, l := range ls {
		if l != x {
			out = append(out, l)
		}
	}
	return out
}

type passthrough struct{}

func (passthrough) process(in, out []float32, _ int64) { copy(out, in) }

type gainProc struct{ gain *param }

func (g *gainProc) process(in, out []float32, _ int64) {
	vek32.MulNumber_Into(out, in, float32(g.gain.current()))
}

type gainNode struct {
	*node
	proc *gainProc
}

func (g *gainNode) Gain() engine.Param { return g.proc.gain }

const filterQ = math.Sqrt2 / 2

// biquad is an RBJ cookbook low/high pass with fixed Q
type biquad struct {
	typ  engine.FilterType
	rate float64
	freq *param

	lastF              float64
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
}

func (f *biquad) coefficients(freq float64) {
	freq = math.Max(10, math.Min(freq, f.rate*0.45))
	if freq == f.lastF {
		return
	}
	f.lastF = freq
	w0 := 2 * math.Pi * freq / f.rate
	cos, alpha := math.Cos(w0), math.Sin(w0)/(2*filterQ)
	a0 := 1 + alpha
	if f.typ == engine.Highpass {
		f.b0 = (1 + cos) / 2 / a0
		f.b1 = -(1 + cos) / a0
	} else {
		f.b0 = (1 - cos) / 2 / a0
		f.b1 = (1 - cos) / a0
	}
	f.b2 = f.b0
	f.a1 = -2 * cos / a0
	f.a2 = (1 - alpha) / a0
}

func (f *biquad) process(in, out []float32, _ int64) {
	f.coefficients(f.freq.current())
	for i, s := range in {
		x := float64(s)
		y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
		f.x2, f.x1 = f.x1, x
		f.y2, f.y1 = f.y1, y
		out[i] = float32(y)
	}
}

type filterNode struct {
	*node
	proc *biquad
}

func (f *filterNode) Frequency() engine.Param  { return f.proc.freq }
func (f *filterNode) Type() engine.FilterType { return f.proc.typ }

type delayProc struct {
	buf      []float32
	pos      int
	feedback float32
	wet      *param
}

func newDelay(samples int, feedback float64, wet *param) *delayProc {
	if samples < 1 {
		samples = 1
	}
	return &delayProc{buf: make([]float32, samples), feedback: float32(feedback), wet: wet}
}

func (d *delayProc) process(in, out []float32, _ int64) {
	w := float32(clamp01(d.wet.current()))
	for i, x := range in {
		y := d.buf[d.pos]
		out[i] = x*(1-w) + y*w
		d.buf[d.pos] = x + y*d.feedback
		d.pos++
		if d.pos == len(d.buf) {
			d.pos = 0
		}
	}
}

// wetNode serves both the delay and the reverb
type wetNode struct {
	*node
	wet *param
}

func (w *wetNode) Wet() engine.Param { return w.wet }

// Schroeder reverb tunings at 44.1 kHz
var (
	combTunings    = []int{1116, 1188, 1277, 1356}
	allpassTunings = []int{556, 441}
)

type comb struct {
	buf  []float32
	pos  int
	gain float32
}

type allpass struct {
	buf []float32
	pos int
}

type reverbProc struct {
	combs     []comb
	allpasses []allpass
	wet       *param
}

// newReverb sizes each comb so its tail falls 60 dB over decay seconds
func newReverb(rate int, decay float64, wet *param) *reverbProc {
	scale := float64(rate) / 44100
	r := &reverbProc{wet: wet}
	for _, t := range combTunings {
		n := int(float64(t) * scale)
		g := math.Pow(10, -3*float64(n)/(decay*float64(rate)))
		r.combs = append(r.combs, comb{buf: make([]float32, n), gain: float32(g)})
	}
	for _, t := range allpassTunings {
		r.allpasses = append(r.allpasses, allpass{buf: make([]float32, int(float64(t)*scale))})
	}
	return r
}

func (r *reverbProc) process(in, out []float32, _ int64) {
	w := float32(clamp01(r.wet.current()))
	for i, x := range in {
		var sum float32
		for c := range r.combs {
			cb := &r.combs[c]
			y := cb.buf[cb.pos]
			cb.buf[cb.pos] = x + y*cb.gain
			cb.pos = (cb.pos + 1) % len(cb.buf)
			sum += y
		}
		y := sum / float32(len(r.combs))
		for a := range r.allpasses {
			ap := &r.allpasses[a]
			b := ap.buf[ap.pos]
			ap.buf[ap.pos] = y + b*0.5
			ap.pos = (ap.pos + 1) % len(ap.buf)
			y = b - y*0.5
		}
		out[i] = x*(1-w) + y*w
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
