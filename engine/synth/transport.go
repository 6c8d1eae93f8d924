package synth

import (
	"sort"
	"sync"

	"ambient-looper/engine"
)

const defaultBPM = 120

type subscription struct {
	interval engine.Notation
	fn       engine.TickFunc
	index    int64
	next     float64 // transport seconds, unswung
}

type firing struct {
	fn   engine.TickFunc
	tick engine.Tick
}

// Transport counts transport seconds while playing. The render loop asks it
// for due ticks before every block.
type Transport struct {
	mu      sync.Mutex
	bpm     int
	swing   float64
	playing bool
	elapsed float64
	subs    map[int]*subscription
	nextID  int
}

func newTransport() *Transport {
	return &Transport{bpm: defaultBPM, subs: make(map[int]*subscription)}
}

func (t *Transport) SetBPM(bpm int) {
	if bpm <= 0 {
		return
	}
	t.mu.Lock()
	t.bpm = bpm
	t.mu.Unlock()
}

func (t *Transport) BPM() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bpm
}

func (t *Transport) SetSwing(amount float64) {
	t.mu.Lock()
	t.swing = clamp01(amount)
	t.mu.Unlock()
}

func (t *Transport) Start() {
	t.mu.Lock()
	t.playing = true
	t.mu.Unlock()
}

func (t *Transport) Pause() {
	t.mu.Lock()
	t.playing = false
	t.mu.Unlock()
}

func (t *Transport) Playing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing
}

func (t *Transport) Seconds() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsed
}

func (t *Transport) Repeat(interval engine.Notation, fn engine.TickFunc) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = &subscription{interval: interval, fn: fn, next: t.elapsed}
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, id)
			t.mu.Unlock()
		})
	}
}

// due collects every tick falling before elapsed+ahead and maps it onto the
// engine clock. A BPM change takes effect from the next uncollected tick.
func (t *Transport) due(now, ahead float64) []firing {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.playing {
		return nil
	}
	ids := make([]int, 0, len(t.subs))
	for id := range t.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var out []firing
	for _, id := range ids {
		s := t.subs[id]
		step, err := s.interval.Seconds(t.bpm)
		if err != nil || step <= 0 {
			continue
		}
		for s.next < t.elapsed+ahead {
			at := now + (s.next - t.elapsed)
			if s.index%2 == 1 {
				at += t.swing * step / 2
			}
			out = append(out, firing{fn: s.fn, tick: engine.Tick{Index: s.index, Time: at}})
			s.index++
			s.next += step
		}
	}
	return out
}

func (t *Transport) advance(dt float64) {
	t.mu.Lock()
	if t.playing {
		t.elapsed += dt
	}
	t.mu.Unlock()
}
