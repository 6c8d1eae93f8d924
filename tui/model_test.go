package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"ambient-looper/engine/headless"
	"ambient-looper/notegen"
	"ambient-looper/sequencer"
	"ambient-looper/theme"
)

func newModel(t *testing.T) (Model, *sequencer.Manager) {
	t.Helper()
	mgr := sequencer.NewManager(headless.New(), sequencer.WithGenerator(notegen.NewSeeded(1)))
	t.Cleanup(func() { mgr.Close() })
	return NewModel(context.Background(), mgr, theme.New(theme.DefaultPalette())), mgr
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "left":
			msg = tea.KeyMsg{Type: tea.KeyLeft}
		case "right":
			msg = tea.KeyMsg{Type: tea.KeyRight}
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestPlayPause(t *testing.T) {
	m, mgr := newModel(t)
	m = press(m, "p")
	if !mgr.Snapshot().Transport.Playing || m.err != nil {
		t.Fatalf("not playing, err = %v", m.err)
	}
	press(m, "p")
	if mgr.Snapshot().Transport.Playing {
		t.Error("still playing")
	}
}

func TestToggleStepAtCursor(t *testing.T) {
	m, mgr := newModel(t)
	m = press(m, "2", "l", "l", "l", "x")
	if !mgr.Snapshot().Tracks[1].Steps[3] {
		t.Error("step 3 of track 2 not toggled")
	}
	m = press(m, "h", "h", "h", "h", "enter")
	if !mgr.Snapshot().Tracks[1].Steps[15] {
		t.Error("cursor did not wrap to step 15")
	}
}

func TestAdjustControls(t *testing.T) {
	m, mgr := newModel(t)
	// volume starts at .6
	m = press(m, "1", "right", "right")
	if got := mgr.Snapshot().Tracks[0].Volume; got < 0.69 || got > 0.71 {
		t.Errorf("volume = %v, want .7", got)
	}
	// FILTER is the fourth control
	m = press(m, "j", "j", "j", "left")
	if got := mgr.Snapshot().Tracks[0].Effects.Filter; got < 0.19 || got > 0.21 {
		t.Errorf("filter = %v, want .2", got)
	}
	if fb, ok := mgr.Feedback(); !ok || fb.Label != "FILTER" {
		t.Errorf("feedback = %+v, %v", fb, ok)
	}
	press(m, "k", "k", "k", "k")
}

func TestTrackFlagsAndLength(t *testing.T) {
	m, mgr := newModel(t)
	press(m, "3", "s", "m", "a", "[", "[")
	tr := mgr.Snapshot().Tracks[2]
	if !tr.Soloed || !tr.Muted || tr.Active || tr.StepLength != 14 {
		t.Errorf("track = %+v", tr)
	}
}

func TestTempoAndSwing(t *testing.T) {
	m, mgr := newModel(t)
	press(m, "+", "+", ",")
	s := mgr.Snapshot().Transport
	if s.BPM != 85 {
		t.Errorf("bpm = %d", s.BPM)
	}
	if s.Swing < 0.14 || s.Swing > 0.16 {
		t.Errorf("swing = %v", s.Swing)
	}
}

func TestView(t *testing.T) {
	m, _ := newModel(t)
	m = press(m, "4", "right")
	v := m.View()
	for _, want := range []string{"ambient-looper", "75bpm", "CHORDS", "WASH", "REVERB", "VOLUME 30%"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil || next.(Model).View() != "" {
		t.Error("q did not quit")
	}
}

func TestHelpToggle(t *testing.T) {
	m, _ := newModel(t)
	if strings.Contains(m.View(), "select control") {
		t.Error("full help shown by default")
	}
	m = press(m, "?")
	v := m.View()
	for _, want := range []string{"TRANSPORT", "toggle step", "select control"} {
		if !strings.Contains(v, want) {
			t.Errorf("help missing %q", want)
		}
	}
	if strings.Contains(press(m, "?").View(), "select control") {
		t.Error("second ? did not hide help")
	}
}

func TestNoticesAreDrained(t *testing.T) {
	m, mgr := newModel(t)
	m = press(m, "1", "right")

	msg := ListenForNotices(mgr)()
	n, ok := msg.(NoticeMsg)
	if !ok || n.Label != "VOLUME" {
		t.Fatalf("msg = %#v", msg)
	}
	if _, cmd := m.Update(n); cmd == nil {
		t.Error("notice did not re-arm the listener")
	}

	mgr.Close()
	if msg := ListenForNotices(mgr)(); msg != nil {
		t.Errorf("msg after close = %#v", msg)
	}
}
