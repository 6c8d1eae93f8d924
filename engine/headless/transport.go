package headless

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"ambient-looper/engine"
)

const defaultBPM = 120

type subscription struct {
	interval engine.Notation
	fn       engine.TickFunc
	index    int64
	next     float64 // unswung grid time of the next tick
}

// Transport is a clock that only moves when told to. Step fires one tick on
// every subscription; Run does the same against the wall clock.
type Transport struct {
	mu       sync.Mutex
	bpm      int
	swing    float64
	playing  bool
	position float64
	subs     map[int]*subscription
	nextID   int
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

func (t *Transport) Swing() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.swing
}

func (t *Transport) SetSwing(amount float64) {
	if amount != amount || amount < 0 {
		amount = 0
	}
	if amount > 1 {
		amount = 1
	}
	t.mu.Lock()
	t.swing = amount
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
	return t.position
}

func (t *Transport) Repeat(interval engine.Notation, fn engine.TickFunc) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = &subscription{interval: interval, fn: fn, next: t.position}
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

// Subscriptions counts live Repeat callbacks
func (t *Transport) Subscriptions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

type firing struct {
	fn   engine.TickFunc
	tick engine.Tick
}

// Step fires the next tick of every subscription and returns how many fired.
// Nothing fires while paused.
func (t *Transport) Step() int {
	t.mu.Lock()
	if !t.playing {
		t.mu.Unlock()
		return 0
	}
	ids := make([]int, 0, len(t.subs))
	for id := range t.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	fire := make([]firing, 0, len(ids))
	position := math.Inf(1)
	for _, id := range ids {
		s := t.subs[id]
		step, err := s.interval.Seconds(t.bpm)
		if err != nil {
			continue
		}
		at := s.next
		if s.index%2 == 1 {
			at += t.swing * step / 2
		}
		fire = append(fire, firing{fn: s.fn, tick: engine.Tick{Index: s.index, Time: at}})
		position = math.Min(position, s.next)
		s.index++
		s.next += step
	}
	if len(fire) > 0 {
		t.position = position
	}
	t.mu.Unlock()

	for _, f := range fire {
		f.fn(f.tick)
	}
	return len(fire)
}

// Advance calls Step n times
func (t *Transport) Advance(n int) int {
	total := 0
	for i := 0; i < n; i++ {
		total += t.Step()
	}
	return total
}

// Run steps the transport in real time until ctx is done
func (t *Transport) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		t.Step()
		timer.Reset(t.wait())
	}
}

// wait is the shortest interval among subscriptions, or an idle poll
func (t *Transport) wait() time.Duration {
	const idle = 10 * time.Millisecond
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.playing || len(t.subs) == 0 {
		return idle
	}
	shortest := 0.0
	for _, s := range t.subs {
		sec, err := s.interval.Seconds(t.bpm)
		if err != nil {
			continue
		}
		if shortest == 0 || sec < shortest {
			shortest = sec
		}
	}
	if shortest == 0 {
		return idle
	}
	return time.Duration(shortest * float64(time.Second))
}
