package headless

import (
	"fmt"

	"ambient-looper/engine"
)

// Node is a recorded graph node
type Node struct {
	e          *Engine
	id         int
	kind       Kind
	params     map[string]*Param
	disposals  int
	running    bool
	filterType engine.FilterType
	delayTime  engine.Notation
	osc        engine.Oscillator
	env        engine.Envelope
	noise      engine.NoiseColor
	outputs    []int
}

type baser interface{ base() *Node }

func (n *Node) base() *Node { return n }

func (n *Node) ID() int    { return n.id }
func (n *Node) Kind() Kind { return n.kind }

// Disposals counts Dispose calls, including rejected repeats
func (n *Node) Disposals() int {
	n.e.mu.Lock()
	defer n.e.mu.Unlock()
	return n.disposals
}

// Running reports whether Start was called on a source or LFO
func (n *Node) Running() bool {
	n.e.mu.Lock()
	defer n.e.mu.Unlock()
	return n.running
}

// Outputs lists the ids this node is connected into
func (n *Node) Outputs() []int {
	n.e.mu.Lock()
	defer n.e.mu.Unlock()
	return append([]int(nil), n.outputs...)
}

// Param returns a named parameter, nil when the node has none by that name
func (n *Node) Param(name string) *Param {
	n.e.mu.Lock()
	defer n.e.mu.Unlock()
	return n.params[name]
}

func (n *Node) Envelope() engine.Envelope {
	n.e.mu.Lock()
	defer n.e.mu.Unlock()
	return n.env
}

func (n *Node) Oscillator() engine.Oscillator { return n.osc }
func (n *Node) Noise() engine.NoiseColor      { return n.noise }
func (n *Node) FilterType() engine.FilterType { return n.filterType }
func (n *Node) DelayTime() engine.Notation    { return n.delayTime }

// param registers a parameter at construction
func (n *Node) param(name string, value float64) *Param {
	n.e.mu.Lock()
	defer n.e.mu.Unlock()
	p := &Param{node: n, name: name, value: value}
	n.params[name] = p
	return p
}

func (n *Node) Connect(dst engine.Node) error {
	b, ok := dst.(baser)
	if !ok {
		return fmt.Errorf("connect %s -> %T: %w", n.kind, dst, engine.ErrNotConnectable)
	}
	target := b.base()
	n.e.mu.Lock()
	defer n.e.mu.Unlock()
	if n.disposals > 0 || target.disposals > 0 {
		return engine.ErrDisposed
	}
	n.outputs = append(n.outputs, target.id)
	n.e.record(Event{Op: OpConnect, Node: n.id, Kind: n.kind, Target: target.id})
	return nil
}

func (n *Node) Dispose() error {
	n.e.mu.Lock()
	defer n.e.mu.Unlock()
	n.disposals++
	if n.disposals > 1 {
		return fmt.Errorf("%s %d: %w", n.kind, n.id, engine.ErrDisposed)
	}
	n.running = false
	n.e.record(Event{Op: OpDispose, Node: n.id, Kind: n.kind})
	return nil
}

func (n *Node) start() error {
	n.e.mu.Lock()
	defer n.e.mu.Unlock()
	if n.disposals > 0 {
		return engine.ErrDisposed
	}
	n.running = true
	n.e.record(Event{Op: OpStart, Node: n.id, Kind: n.kind})
	return nil
}

func (n *Node) setEnvelope(p engine.EnvelopePatch) {
	n.e.mu.Lock()
	defer n.e.mu.Unlock()
	if n.disposals > 0 {
		return
	}
	n.env = p.Apply(n.env)
	n.e.record(Event{Op: OpEnvelope, Node: n.id, Kind: n.kind})
}

// trigger records a trigger or release, honouring injected failures
func (n *Node) trigger(op Op, pitches []engine.Pitch, duration engine.Notation, at float64) error {
	if duration != "" {
		if _, err := duration.Beats(); err != nil {
			return err
		}
	}
	for _, p := range pitches {
		if _, err := p.MIDI(); err != nil {
			return err
		}
	}

	n.e.mu.Lock()
	defer n.e.mu.Unlock()
	if n.disposals > 0 {
		return engine.ErrDisposed
	}
	if n.e.panics[n.kind] {
		panic(fmt.Sprintf("headless: injected panic on %s %d", n.kind, n.id))
	}
	if err := n.e.failures[n.kind]; err != nil {
		return err
	}
	n.e.record(Event{
		Op:       op,
		Node:     n.id,
		Kind:     n.kind,
		Pitches:  append([]engine.Pitch(nil), pitches...),
		Duration: duration,
		At:       at,
	})
	return nil
}

// Param is a recorded parameter. Ramps land instantly on their target.
type Param struct {
	node   *Node
	name   string
	value  float64
	ramps  int
	lastRS float64
	mods   []int
}

func (p *Param) Value() float64 {
	p.node.e.mu.Lock()
	defer p.node.e.mu.Unlock()
	return p.value
}

func (p *Param) RampTo(value, seconds float64) {
	e := p.node.e
	e.mu.Lock()
	defer e.mu.Unlock()
	if p.node.disposals > 0 {
		return
	}
	p.value = value
	p.ramps++
	p.lastRS = seconds
	e.record(Event{Op: OpRamp, Node: p.node.id, Kind: p.node.kind, Param: p.name, Value: value, Seconds: seconds})
}

// Ramps counts RampTo calls
func (p *Param) Ramps() int {
	p.node.e.mu.Lock()
	defer p.node.e.mu.Unlock()
	return p.ramps
}

// LastRampSeconds is the length of the most recent ramp
func (p *Param) LastRampSeconds() float64 {
	p.node.e.mu.Lock()
	defer p.node.e.mu.Unlock()
	return p.lastRS
}

// Modulators lists LFO node ids modulating this param
func (p *Param) Modulators() []int {
	p.node.e.mu.Lock()
	defer p.node.e.mu.Unlock()
	return append([]int(nil), p.mods...)
}

type gainNode struct{ *Node }

func (g gainNode) Gain() engine.Param { return g.Param("gain") }

type filterNode struct{ *Node }

func (f filterNode) Frequency() engine.Param  { return f.Param("frequency") }
func (f filterNode) Type() engine.FilterType { return f.filterType }

type wetNode struct{ *Node }

func (w wetNode) Wet() engine.Param { return w.Param("wet") }

type lfoNode struct{ *Node }

func (l lfoNode) Frequency() engine.Param { return l.Param("frequency") }
func (l lfoNode) Amplitude() engine.Param { return l.Param("amplitude") }
func (l lfoNode) Start() error            { return l.start() }

func (l lfoNode) Modulate(target engine.Param) error {
	p, ok := target.(*Param)
	if !ok {
		return fmt.Errorf("modulate %T: %w", target, engine.ErrNotConnectable)
	}
	e := l.e
	e.mu.Lock()
	defer e.mu.Unlock()
	if l.disposals > 0 || p.node.disposals > 0 {
		return engine.ErrDisposed
	}
	p.mods = append(p.mods, l.id)
	e.record(Event{Op: OpModulate, Node: l.id, Kind: l.kind, Target: p.node.id, Param: p.name})
	return nil
}

type voiceNode struct{ *Node }

func (v voiceNode) SetEnvelope(p engine.EnvelopePatch) { v.setEnvelope(p) }

func (v voiceNode) TriggerAttackRelease(pitches []engine.Pitch, duration engine.Notation, at float64) error {
	return v.trigger(OpTrigger, pitches, duration, at)
}

type sourceNode struct{ *Node }

func (s sourceNode) Start() error { return s.start() }

type ampEnvNode struct{ *Node }

func (a ampEnvNode) SetEnvelope(p engine.EnvelopePatch) { a.setEnvelope(p) }

func (a ampEnvNode) TriggerAttackRelease(duration engine.Notation, at float64) error {
	return a.trigger(OpTrigger, nil, duration, at)
}

func (a ampEnvNode) TriggerRelease(at float64) error {
	return a.trigger(OpRelease, nil, "", at)
}
