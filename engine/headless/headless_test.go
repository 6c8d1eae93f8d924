package headless

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"ambient-looper/engine"
)

func started(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e := New(opts...)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return e
}

func TestNodesRequireStart(t *testing.T) {
	e := New()
	if _, err := e.NewGain(1); !errors.Is(err, engine.ErrNotStarted) {
		t.Fatalf("NewGain before Start: err = %v", err)
	}
	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if _, err := e.NewGain(1); err != nil {
		t.Fatalf("NewGain after Start: %v", err)
	}
	e.Close()
	if _, err := e.NewGain(1); !errors.Is(err, engine.ErrEngineClosed) {
		t.Fatalf("NewGain after Close: err = %v", err)
	}
	if err := e.Start(context.Background()); !errors.Is(err, engine.ErrEngineClosed) {
		t.Fatalf("Start after Close: err = %v", err)
	}
}

func TestStartError(t *testing.T) {
	boom := errors.New("no device")
	e := New(WithStartError(boom))
	if err := e.Start(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if e.Started() {
		t.Fatal("started after failure")
	}
}

func TestConnectAndDispose(t *testing.T) {
	e := started(t)
	g, _ := e.NewGain(0.5)
	f, _ := e.NewFilter(1000, engine.Lowpass)
	if err := f.Connect(g); err != nil {
		t.Fatal(err)
	}
	if err := g.Connect(e.Destination()); err != nil {
		t.Fatal(err)
	}

	fn := f.(filterNode).Node
	if out := fn.Outputs(); len(out) != 1 || out[0] != g.(gainNode).ID() {
		t.Errorf("filter outputs = %v", out)
	}
	if err := g.Dispose(); err != nil {
		t.Fatal(err)
	}
	if err := g.Dispose(); !errors.Is(err, engine.ErrDisposed) {
		t.Errorf("second Dispose: err = %v", err)
	}
	if n := g.(gainNode).Disposals(); n != 2 {
		t.Errorf("Disposals = %d, want 2", n)
	}
	if got := len(e.Events(OpDispose)); got != 1 {
		t.Errorf("dispose events = %d, want 1", got)
	}
	if err := f.Connect(g); !errors.Is(err, engine.ErrDisposed) {
		t.Errorf("connect into disposed: err = %v", err)
	}
}

func TestParamRamp(t *testing.T) {
	e := started(t)
	f, _ := e.NewFilter(1000, engine.Lowpass)
	f.Frequency().RampTo(2000, 0.1)
	f.Frequency().RampTo(500, 0.1)

	p := f.Frequency().(*Param)
	if v := p.Value(); v != 500 {
		t.Errorf("Value = %v, want 500", v)
	}
	if p.Ramps() != 2 || p.LastRampSeconds() != 0.1 {
		t.Errorf("ramps = %d seconds = %v", p.Ramps(), p.LastRampSeconds())
	}
}

func TestTriggerFailureAndPanic(t *testing.T) {
	e := started(t)
	v, _ := e.NewSynth(engine.Oscillator{Type: engine.Triangle}, engine.Envelope{})
	if err := v.TriggerAttackRelease([]engine.Pitch{"A3"}, engine.Eighth, 0); err != nil {
		t.Fatal(err)
	}
	if err := v.TriggerAttackRelease([]engine.Pitch{"Q9"}, engine.Eighth, 0); !errors.Is(err, engine.ErrUnknownPitch) {
		t.Errorf("bad pitch: err = %v", err)
	}

	boom := errors.New("boom")
	e.FailTriggers(KindSynth, boom)
	if err := v.TriggerAttackRelease([]engine.Pitch{"A3"}, engine.Eighth, 0); !errors.Is(err, boom) {
		t.Errorf("injected failure: err = %v", err)
	}
	e.FailTriggers(KindSynth, nil)

	e.PanicTriggers(KindSynth, true)
	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic")
			}
		}()
		v.TriggerAttackRelease([]engine.Pitch{"A3"}, engine.Eighth, 0)
	}()
	// the engine lock must have been released by the panic
	e.PanicTriggers(KindSynth, false)
	if got := len(e.Events(OpTrigger)); got != 1 {
		t.Errorf("trigger events = %d, want 1", got)
	}
}

func TestTransportStep(t *testing.T) {
	e := started(t, WithBPM(60))
	tr := e.Clock()
	tr.SetSwing(0.5)

	var ticks []engine.Tick
	cancel := tr.Repeat(engine.Sixteenth, func(tk engine.Tick) { ticks = append(ticks, tk) })

	if tr.Step() != 0 {
		t.Fatal("ticked while paused")
	}
	tr.Start()
	tr.Advance(4)
	if len(ticks) != 4 {
		t.Fatalf("ticks = %d, want 4", len(ticks))
	}
	// 16n at 60 bpm is 0.25s; odd ticks push back by swing*0.125
	want := []float64{0, 0.25 + 0.0625, 0.5, 0.75 + 0.0625}
	for i, tk := range ticks {
		if tk.Index != int64(i) {
			t.Errorf("tick %d index = %d", i, tk.Index)
		}
		if math.Abs(tk.Time-want[i]) > 1e-9 {
			t.Errorf("tick %d time = %v, want %v", i, tk.Time, want[i])
		}
	}
	if s := tr.Seconds(); math.Abs(s-0.75) > 1e-9 {
		t.Errorf("Seconds = %v, want 0.75", s)
	}

	cancel()
	cancel()
	if tr.Step() != 0 || tr.Subscriptions() != 0 {
		t.Error("cancelled subscription still fires")
	}
}

func TestTransportSecondsWithSeveralSubscriptions(t *testing.T) {
	e := started(t, WithBPM(60))
	tr := e.Clock()
	tr.Repeat(engine.Sixteenth, func(engine.Tick) {})
	tr.Repeat(engine.Quarter, func(engine.Tick) {})
	tr.Start()

	if n := tr.Advance(3); n != 6 {
		t.Fatalf("fired %d, want 6", n)
	}
	// the quarter note grid is at 2s, the sixteenth grid at 0.5s
	if s := tr.Seconds(); math.Abs(s-0.5) > 1e-9 {
		t.Errorf("Seconds = %v, want 0.5", s)
	}
}

func TestTransportRun(t *testing.T) {
	e := started(t, WithBPM(300))
	tr := e.Clock()
	fired := make(chan struct{}, 16)
	tr.Repeat(engine.SixtyFourth, func(engine.Tick) {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	tr.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	for i := 0; i < 3; i++ {
		select {
		case <-fired:
		case <-ctx.Done():
			t.Fatal("transport did not tick")
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v", err)
	}
}
