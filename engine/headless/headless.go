// Package headless is a silent engine.Engine. It records every call made
// against it so tests can assert on the exact graph and trigger stream, and
// its transport can be stepped by hand or driven from the wall clock.
package headless

import (
	"context"
	"fmt"
	"sync"

	"ambient-looper/engine"
)

// Kind names a node type
type Kind string

const (
	KindDestination Kind = "destination"
	KindGain        Kind = "gain"
	KindFilter      Kind = "filter"
	KindDelay       Kind = "delay"
	KindReverb      Kind = "reverb"
	KindLFO         Kind = "lfo"
	KindPolySynth   Kind = "polysynth"
	KindSynth       Kind = "synth"
	KindNoiseSynth  Kind = "noisesynth"
	KindNoise       Kind = "noise"
	KindAmpEnvelope Kind = "ampenvelope"
)

// Op names a recorded call
type Op string

const (
	OpConnect  Op = "connect"
	OpModulate Op = "modulate"
	OpRamp     Op = "ramp"
	OpEnvelope Op = "envelope"
	OpStart    Op = "start"
	OpTrigger  Op = "trigger"
	OpRelease  Op = "release"
	OpDispose  Op = "dispose"
)

// Event is one recorded engine call
type Event struct {
	Op       Op
	Node     int
	Kind     Kind
	Target   int    // connect/modulate destination node
	Param    string // ramp/modulate parameter name
	Value    float64
	Seconds  float64 // ramp length
	Pitches  []engine.Pitch
	Duration engine.Notation
	At       float64
}

// Option configures an Engine
type Option func(*Engine)

// WithStartError makes Start fail with err
func WithStartError(err error) Option {
	return func(e *Engine) { e.startErr = err }
}

// WithBPM sets the initial transport tempo
func WithBPM(bpm int) Option {
	return func(e *Engine) { e.transport.bpm = bpm }
}

// Engine records all calls. It is safe for concurrent use.
type Engine struct {
	mu        sync.Mutex
	started   bool
	closed    bool
	startErr  error
	nodes     []*Node
	events    []Event
	failures  map[Kind]error
	failNew   map[Kind]error
	panics    map[Kind]bool
	transport *Transport
	dest      *Node
}

// New creates a stopped engine
func New(opts ...Option) *Engine {
	e := &Engine{
		failures: make(map[Kind]error),
		failNew:  make(map[Kind]error),
		panics:   make(map[Kind]bool),
	}
	e.transport = newTransport()
	e.dest = e.newNode(KindDestination)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return engine.ErrEngineClosed
	}
	if e.started {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.startErr != nil {
		return e.startErr
	}
	e.started = true
	return nil
}

func (e *Engine) Started() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

// Now is the time of the last tick the transport fired
func (e *Engine) Now() float64 {
	return e.transport.Seconds()
}

func (e *Engine) Transport() engine.Transport { return e.transport }

// Clock returns the concrete transport for Step/Run
func (e *Engine) Clock() *Transport { return e.transport }

func (e *Engine) Destination() engine.Node { return e.dest }

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.started = false
	return nil
}

// FailTriggers makes every trigger on nodes of kind return err (nil clears)
func (e *Engine) FailTriggers(kind Kind, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err == nil {
		delete(e.failures, kind)
		return
	}
	e.failures[kind] = err
}

// FailConstruct makes every New* call for kind return err (nil clears)
func (e *Engine) FailConstruct(kind Kind, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err == nil {
		delete(e.failNew, kind)
		return
	}
	e.failNew[kind] = err
}

// PanicTriggers makes every trigger on nodes of kind panic
func (e *Engine) PanicTriggers(kind Kind, on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.panics[kind] = on
}

// Events returns a copy of the log, filtered by op when ops are given
func (e *Engine) Events(ops ...Op) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []Event
	for _, ev := range e.events {
		if len(ops) == 0 {
			out = append(out, ev)
			continue
		}
		for _, op := range ops {
			if ev.Op == op {
				out = append(out, ev)
				break
			}
		}
	}
	return out
}

// ResetEvents clears the log but keeps the nodes
func (e *Engine) ResetEvents() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = nil
}

// Nodes returns every node created, filtered by kind when kinds are given
func (e *Engine) Nodes(kinds ...Kind) []*Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*Node
	for _, n := range e.nodes {
		if len(kinds) == 0 {
			out = append(out, n)
			continue
		}
		for _, k := range kinds {
			if n.kind == k {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

// Node looks a node up by id
func (e *Engine) Node(id int) *Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id < 0 || id >= len(e.nodes) {
		return nil
	}
	return e.nodes[id]
}

// record appends to the log; caller holds e.mu
func (e *Engine) record(ev Event) {
	e.events = append(e.events, ev)
}

// newNode registers a node; caller must not hold e.mu
func (e *Engine) newNode(kind Kind) *Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := &Node{e: e, id: len(e.nodes), kind: kind, params: make(map[string]*Param)}
	e.nodes = append(e.nodes, n)
	return n
}

func (e *Engine) checkReady(kind Kind) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return engine.ErrEngineClosed
	}
	if !e.started {
		return engine.ErrNotStarted
	}
	return e.failNew[kind]
}

func (e *Engine) NewGain(gain float64) (engine.Gain, error) {
	if err := e.checkReady(KindGain); err != nil {
		return nil, err
	}
	n := e.newNode(KindGain)
	n.param("gain", gain)
	return gainNode{n}, nil
}

func (e *Engine) NewFilter(frequency float64, typ engine.FilterType) (engine.Filter, error) {
	if err := e.checkReady(KindFilter); err != nil {
		return nil, err
	}
	n := e.newNode(KindFilter)
	n.param("frequency", frequency)
	n.filterType = typ
	return filterNode{n}, nil
}

func (e *Engine) NewFeedbackDelay(time engine.Notation, feedback float64) (engine.Delay, error) {
	if err := e.checkReady(KindDelay); err != nil {
		return nil, err
	}
	if _, err := time.Beats(); err != nil {
		return nil, fmt.Errorf("feedback delay: %w", err)
	}
	n := e.newNode(KindDelay)
	n.param("wet", 1)
	n.param("feedback", feedback)
	n.delayTime = time
	return wetNode{n}, nil
}

func (e *Engine) NewReverb(decay float64) (engine.Reverb, error) {
	if err := e.checkReady(KindReverb); err != nil {
		return nil, err
	}
	n := e.newNode(KindReverb)
	n.param("wet", 1)
	n.param("decay", decay)
	return wetNode{n}, nil
}

func (e *Engine) NewLFO(frequency, min, max float64) (engine.LFO, error) {
	if err := e.checkReady(KindLFO); err != nil {
		return nil, err
	}
	n := e.newNode(KindLFO)
	n.param("frequency", frequency)
	n.param("amplitude", 1)
	n.param("min", min)
	n.param("max", max)
	return lfoNode{n}, nil
}

func (e *Engine) NewPolySynth(osc engine.Oscillator, env engine.Envelope) (engine.Voice, error) {
	v, err := e.newVoice(KindPolySynth, osc, env)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (e *Engine) NewSynth(osc engine.Oscillator, env engine.Envelope) (engine.Voice, error) {
	v, err := e.newVoice(KindSynth, osc, env)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (e *Engine) NewNoiseSynth(color engine.NoiseColor, env engine.Envelope) (engine.Voice, error) {
	v, err := e.newVoice(KindNoiseSynth, engine.Oscillator{}, env)
	if err != nil {
		return nil, err
	}
	v.Node.noise = color
	return v, nil
}

func (e *Engine) newVoice(kind Kind, osc engine.Oscillator, env engine.Envelope) (voiceNode, error) {
	if err := e.checkReady(kind); err != nil {
		return voiceNode{}, err
	}
	n := e.newNode(kind)
	n.osc = osc
	n.env = env
	return voiceNode{n}, nil
}

func (e *Engine) NewNoise(color engine.NoiseColor) (engine.Source, error) {
	if err := e.checkReady(KindNoise); err != nil {
		return nil, err
	}
	n := e.newNode(KindNoise)
	n.noise = color
	return sourceNode{n}, nil
}

func (e *Engine) NewAmpEnvelope(env engine.Envelope) (engine.AmpEnvelope, error) {
	if err := e.checkReady(KindAmpEnvelope); err != nil {
		return nil, err
	}
	n := e.newNode(KindAmpEnvelope)
	n.env = env
	return ampEnvNode{n}, nil
}
