// Package synth is a small software implementation of engine.Engine.
//
// The graph is pulled from the destination one block at a time. Parameters
// ramp linearly per block and LFOs are evaluated once per block, which is
// fine for the slow modulation the looper uses. Audio leaves through oto as
// interleaved float32 stereo.
package synth

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/viterin/vek/vek32"

	"ambient-looper/debug"
	"ambient-looper/engine"
)

const (
	DefaultSampleRate = 44100
	BlockSize         = 128

	// ticks are fired this far ahead of the audio so triggers land on time
	lookAhead = 0.1
	headroom  = 0.5
)

// Option configures an Engine
type Option func(*Engine)

// WithSampleRate overrides the 44.1 kHz default
func WithSampleRate(rate int) Option {
	return func(e *Engine) {
		if rate > 0 {
			e.rate = rate
		}
	}
}

// WithoutOutput keeps the engine off the sound card. Audio is only produced
// by calling Render.
func WithoutOutput() Option {
	return func(e *Engine) { e.open = nil }
}

// WithSeed seeds the noise generators
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.rng = rand.New(rand.NewSource(seed)) }
}

type opener func(ctx context.Context, e *Engine) (output, error)

type output interface {
	Close() error
}

// Engine renders the node graph. All graph state is guarded by mu; the
// transport has its own lock and never takes mu.
type Engine struct {
	mu      sync.Mutex
	rate    int
	rng     *rand.Rand
	open    opener
	out     output
	started bool
	closed  bool

	frame  int64 // samples rendered
	serial uint64
	dest   *node
	params []*param
	lfos   []*lfo

	block   []float32
	blockAt int
	scratch []float32

	transport *Transport
}

// New creates an engine that plays through oto once started
func New(opts ...Option) *Engine {
	e := &Engine{
		rate: DefaultSampleRate,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
		open: openOto,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.transport = newTransport()
	e.dest = e.newNode(passthrough{})
	e.block = make([]float32, BlockSize)
	e.blockAt = BlockSize
	return e
}

func (e *Engine) SampleRate() int { return e.rate }

func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	switch {
	case e.closed:
		e.mu.Unlock()
		return engine.ErrEngineClosed
	case e.started:
		e.mu.Unlock()
		return nil
	}
	open := e.open
	e.mu.Unlock()

	var out output
	if open != nil {
		o, err := open(ctx, e)
		if err != nil {
			return fmt.Errorf("cannot start audio output: %w", err)
		}
		out = o
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.out = out
	e.started = true
	debug.Log("engine", "started: %d Hz, output=%v", e.rate, out != nil)
	return nil
}

func (e *Engine) Started() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

// Now is the time of the next sample to be rendered
func (e *Engine) Now() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now()
}

func (e *Engine) now() float64 { return float64(e.frame) / float64(e.rate) }

func (e *Engine) Transport() engine.Transport { return e.transport }

func (e *Engine) Destination() engine.Node { return e.dest }

func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.started = false
	out := e.out
	e.out = nil
	e.mu.Unlock()

	if out != nil {
		if err := out.Close(); err != nil {
			return fmt.Errorf("cannot close audio output: %w", err)
		}
	}
	return nil
}

// Render fills buf with interleaved stereo samples. It must only be called
// from one goroutine; with an output attached that is the oto player.
func (e *Engine) Render(buf []float32) {
	frames := len(buf) / 2
	for i := 0; i < frames; i++ {
		if e.blockAt == BlockSize {
			e.nextBlock()
		}
		s := e.block[e.blockAt]
		e.blockAt++
		buf[2*i] = s
		buf[2*i+1] = s
	}
}

// Read implements io.Reader for the oto player
func (e *Engine) Read(p []byte) (int, error) {
	frames := len(p) / 8
	if cap(e.scratch) < frames*2 {
		e.scratch = make([]float32, frames*2)
	}
	buf := e.scratch[:frames*2]
	e.Render(buf)
	for i, s := range buf {
		binary.LittleEndian.PutUint32(p[4*i:], math.Float32bits(s))
	}
	return frames * 8, nil
}

// nextBlock fires due transport ticks, then renders one block
func (e *Engine) nextBlock() {
	e.mu.Lock()
	now := e.now()
	e.mu.Unlock()

	// callbacks trigger voices, which take mu
	for _, f := range e.transport.due(now, lookAhead) {
		f.fn(f.tick)
	}

	e.mu.Lock()
	e.renderBlock()
	e.frame += BlockSize
	e.mu.Unlock()

	e.transport.advance(float64(BlockSize) / float64(e.rate))
	e.blockAt = 0
}

// renderBlock runs with mu held
func (e *Engine) renderBlock() {
	e.serial++
	for _, p := range e.params {
		p.advance()
	}
	dt := float64(BlockSize) / float64(e.rate)
	for _, l := range e.lfos {
		l.advance(dt)
	}
	if !e.started {
		vek32.Zeros_Into(e.block, BlockSize)
		return
	}
	out := e.dest.pull()
	copy(e.block, out)
	vek32.MulNumber_Inplace(e.block, headroom)
	for i, s := range e.block {
		e.block[i] = clip(s)
	}
}

func clip(s float32) float32 {
	switch {
	case s > 1:
		return 1
	case s < -1:
		return -1
	}
	return s
}

func (e *Engine) checkReady() error {
	if e.closed {
		return engine.ErrEngineClosed
	}
	if !e.started {
		return engine.ErrNotStarted
	}
	return nil
}

func (e *Engine) NewGain(gain float64) (engine.Gain, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	g := &gainProc{}
	n := e.newNode(g)
	g.gain = e.newParam(gain)
	return &gainNode{node: n, proc: g}, nil
}

func (e *Engine) NewFilter(frequency float64, typ engine.FilterType) (engine.Filter, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	if typ != engine.Lowpass && typ != engine.Highpass {
		return nil, fmt.Errorf("filter type %q: %w", typ, engine.ErrInvalidParameter)
	}
	f := &biquad{typ: typ, rate: float64(e.rate), freq: e.newParam(frequency)}
	return &filterNode{node: e.newNode(f), proc: f}, nil
}

func (e *Engine) NewFeedbackDelay(t engine.Notation, feedback float64) (engine.Delay, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	sec, err := t.Seconds(e.transport.BPM())
	if err != nil {
		return nil, fmt.Errorf("feedback delay: %w", err)
	}
	d := newDelay(int(sec*float64(e.rate)), feedback, e.newParam(1))
	return &wetNode{node: e.newNode(d), wet: d.wet}, nil
}

func (e *Engine) NewReverb(decay float64) (engine.Reverb, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	if decay <= 0 {
		return nil, fmt.Errorf("reverb decay %v: %w", decay, engine.ErrInvalidParameter)
	}
	r := newReverb(e.rate, decay, e.newParam(1))
	return &wetNode{node: e.newNode(r), wet: r.wet}, nil
}

func (e *Engine) NewLFO(frequency, min, max float64) (engine.LFO, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	l := &lfo{
		e:    e,
		freq: e.newParam(frequency),
		amp:  e.newParam(1),
		min:  min,
		max:  max,
	}
	e.lfos = append(e.lfos, l)
	return l, nil
}

func (e *Engine) NewPolySynth(osc engine.Oscillator, env engine.Envelope) (engine.Voice, error) {
	return e.newVoice(oscillatorSource(osc), env, polyphony)
}

func (e *Engine) NewSynth(osc engine.Oscillator, env engine.Envelope) (engine.Voice, error) {
	return e.newVoice(oscillatorSource(osc), env, 1)
}

func (e *Engine) NewNoiseSynth(color engine.NoiseColor, env engine.Envelope) (engine.Voice, error) {
	return e.newVoice(noiseSource(color), env, 1)
}

func (e *Engine) newVoice(src sourceFactory, env engine.Envelope, voices int) (engine.Voice, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	v := newVoices(e, src, env, voices)
	return &voiceNode{node: e.newNode(v), proc: v}, nil
}

func (e *Engine) NewNoise(color engine.NoiseColor) (engine.Source, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	s := &noiseProc{gen: newNoise(color, e.rng)}
	return &sourceNode{node: e.newNode(s), proc: s}, nil
}

func (e *Engine) NewAmpEnvelope(env engine.Envelope) (engine.AmpEnvelope, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	a := &ampEnvProc{env: newADSR(env, float64(e.rate)), gate: idleGate()}
	return &ampEnvNode{node: e.newNode(a), proc: a}, nil
}

// sampleAt converts an engine time to a sample index, never in the past
func (e *Engine) sampleAt(at float64) int64 {
	s := int64(math.Round(at * float64(e.rate)))
	if s < e.frame {
		return e.frame
	}
	return s
}
