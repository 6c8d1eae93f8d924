package sequencer

import (
	"errors"
	"math"
	"testing"

	"ambient-looper/params"
)

func ptr[T any](v T) *T { return &v }

func TestDefaultState(t *testing.T) {
	s := DefaultState()
	if s.Transport.BPM != 75 || s.Transport.Swing != 0.2 || s.Transport.Playing {
		t.Errorf("transport = %+v", s.Transport)
	}
	for i, tr := range s.Tracks {
		if tr.ID != i || tr.Archetype != params.Archetypes[i] {
			t.Errorf("track %d = id %d %v", i, tr.ID, tr.Archetype)
		}
		if !tr.Active || tr.Muted || tr.Soloed || tr.StepLength != 16 {
			t.Errorf("track %d flags = %+v", i, tr)
		}
	}
	on := func(tr Track) []int {
		var idx []int
		for i, s := range tr.Steps {
			if s {
				idx = append(idx, i)
			}
		}
		return idx
	}
	if got := on(s.Tracks[1]); len(got) != 2 || got[0] != 4 || got[1] != 12 {
		t.Errorf("percussion steps = %v", got)
	}
	if got := on(s.Tracks[2]); len(got) != 3 || got[1] != 7 || got[2] != 14 {
		t.Errorf("crackles steps = %v", got)
	}
	if got := on(s.Tracks[3]); len(got) != 16 {
		t.Errorf("wash steps = %v", got)
	}
}

func TestToggleStepTwiceIsIdentity(t *testing.T) {
	st := NewStore(DefaultState())
	before := st.Snapshot()
	for idx := 0; idx < MaxSteps; idx++ {
		if _, err := st.ToggleStep(2, idx); err != nil {
			t.Fatal(err)
		}
		if _, err := st.ToggleStep(2, idx); err != nil {
			t.Fatal(err)
		}
	}
	if after := st.Snapshot(); after != before {
		t.Errorf("state changed after double toggles")
	}
}

func TestToggleStepErrors(t *testing.T) {
	st := NewStore(DefaultState())
	before := st.Snapshot()
	if _, err := st.ToggleStep(4, 0); !errors.Is(err, ErrUnknownTrack) {
		t.Errorf("track 4: err = %v", err)
	}
	if _, err := st.ToggleStep(-1, 0); !errors.Is(err, ErrUnknownTrack) {
		t.Errorf("track -1: err = %v", err)
	}
	if _, err := st.ToggleStep(0, 16); !errors.Is(err, ErrStepOutOfRange) {
		t.Errorf("step 16: err = %v", err)
	}
	if st.Snapshot() != before {
		t.Error("failed toggles changed state")
	}
}

func TestUpdateTrackClamps(t *testing.T) {
	tests := []struct {
		name  string
		patch TrackPatch
		check func(Track) bool
	}{
		{"volume high", TrackPatch{Volume: ptr(1.5)}, func(tr Track) bool { return tr.Volume == 1 }},
		{"volume NaN", TrackPatch{Volume: ptr(math.NaN())}, func(tr Track) bool { return tr.Volume == 0 }},
		{"length low", TrackPatch{StepLength: ptr(1)}, func(tr Track) bool { return tr.StepLength == 2 }},
		{"length high", TrackPatch{StepLength: ptr(40)}, func(tr Track) bool { return tr.StepLength == 16 }},
		{"lfo", TrackPatch{LFO: &LFOPatch{Rate: ptr(-3.0)}}, func(tr Track) bool { return tr.LFO.Rate == 0 && tr.LFO.Intensity == 0.5 }},
		{"filter", TrackPatch{Effects: &EffectsPatch{Filter: ptr(2.0)}}, func(tr Track) bool { return tr.Effects.Filter == 1 && tr.Effects.Reverb == 0.7 }},
		{"flags", TrackPatch{Muted: ptr(true), Active: ptr(false)}, func(tr Track) bool { return tr.Muted && !tr.Active && !tr.Soloed }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewStore(DefaultState())
			tr, _, err := st.UpdateTrack(0, tt.patch)
			if err != nil {
				t.Fatal(err)
			}
			if !tt.check(tr) {
				t.Errorf("track = %+v", tr)
			}
			if st.Snapshot().Tracks[0] != tr {
				t.Error("returned track differs from stored track")
			}
		})
	}
}

func TestUpdateTrackChanges(t *testing.T) {
	st := NewStore(DefaultState())
	_, c, _ := st.UpdateTrack(1, TrackPatch{Soloed: ptr(true), StepLength: ptr(8)})
	if c.Audio {
		t.Error("solo and length reported as audio changes")
	}
	want := []Notice{{"SOLO", "ON"}, {"LENGTH", "8 STEPS"}}
	if len(c.Notices) != len(want) || c.Notices[0] != want[0] || c.Notices[1] != want[1] {
		t.Errorf("notices = %v, want %v", c.Notices, want)
	}

	_, c, _ = st.UpdateTrack(1, TrackPatch{LFO: &LFOPatch{Intensity: ptr(0.255)}, Effects: &EffectsPatch{Decay: ptr(1.0)}})
	if !c.Audio {
		t.Error("lfo and decay not reported as audio changes")
	}
	want = []Notice{{"LFO DEPTH", "26%"}, {"DECAY", "100%"}}
	if len(c.Notices) != 2 || c.Notices[0] != want[0] || c.Notices[1] != want[1] {
		t.Errorf("notices = %v, want %v", c.Notices, want)
	}

	if _, _, err := st.UpdateTrack(7, TrackPatch{Volume: ptr(0.1)}); !errors.Is(err, ErrUnknownTrack) {
		t.Errorf("unknown track: err = %v", err)
	}
}

func TestSetTransportClamps(t *testing.T) {
	tests := []struct {
		bpm  float64
		want int
	}{
		{300, 180},
		{10, 40},
		{74.6, 75},
		{math.NaN(), 40},
		{120, 120},
	}
	for _, tt := range tests {
		st := NewStore(DefaultState())
		tr, c := st.SetTransport(TransportPatch{BPM: ptr(tt.bpm)})
		if tr.BPM != tt.want {
			t.Errorf("bpm %v -> %d, want %d", tt.bpm, tr.BPM, tt.want)
		}
		if !c.Clock || len(c.Notices) != 1 || c.Notices[0].Label != "TEMPO" {
			t.Errorf("changes = %+v", c)
		}
	}

	st := NewStore(DefaultState())
	tr, c := st.SetTransport(TransportPatch{Swing: ptr(-0.5)})
	if tr.Swing != 0 || tr.BPM != DefaultBPM {
		t.Errorf("transport = %+v", tr)
	}
	if c.Notices[0] != (Notice{"SWING", "0%"}) {
		t.Errorf("notice = %v", c.Notices[0])
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	st := NewStore(DefaultState())
	snap := st.Snapshot()
	snap.Tracks[0].Steps[5] = true
	snap.Tracks[0].Volume = 0
	snap.Transport.BPM = 1
	again := st.Snapshot()
	if again.Tracks[0].Steps[5] || again.Tracks[0].Volume != 0.6 || again.Transport.BPM != 75 {
		t.Error("mutating a snapshot leaked into the store")
	}
}

func TestAudible(t *testing.T) {
	tests := []struct {
		muted, soloed, anySolo, want bool
	}{
		{false, false, false, true},
		{true, false, false, false},
		{false, false, true, false},
		{true, true, true, true},
		{false, true, true, true},
	}
	for _, tt := range tests {
		tr := Track{Muted: tt.muted, Soloed: tt.soloed}
		if got := tr.Audible(tt.anySolo); got != tt.want {
			t.Errorf("muted=%v soloed=%v anySolo=%v: %v", tt.muted, tt.soloed, tt.anySolo, got)
		}
	}
}
