package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ambient-looper/engine/headless"
	"ambient-looper/notegen"
	"ambient-looper/sequencer"
)

func newTestServer(t *testing.T) (*httptest.Server, *sequencer.Manager, *headless.Engine) {
	t.Helper()
	e := headless.New()
	m := sequencer.NewManager(e, sequencer.WithGenerator(notegen.NewSeeded(1)))
	t.Cleanup(func() { m.Close() })
	s := New(Config{}, m, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, m, e
}

func do(t *testing.T, ts *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	ts, _, _ := newTestServer(t)
	resp := do(t, ts, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := decode[map[string]string](t, resp); got["status"] != "ok" {
		t.Errorf("body = %v", got)
	}
}

func TestState(t *testing.T) {
	ts, _, _ := newTestServer(t)
	resp := do(t, ts, http.MethodGet, "/state", "")
	s := decode[sequencer.State](t, resp)
	if s.Transport.BPM != sequencer.DefaultBPM || s.Tracks[3].Archetype.String() != "wash" {
		t.Errorf("state = %+v", s.Transport)
	}

	resp = do(t, ts, http.MethodGet, "/tracks/1", "")
	if tr := decode[sequencer.Track](t, resp); tr.ID != 1 || !tr.Steps[4] {
		t.Errorf("track = %+v", tr)
	}
}

func TestPatchTransport(t *testing.T) {
	ts, m, e := newTestServer(t)
	resp := do(t, ts, http.MethodPatch, "/transport", `{"bpm": 500, "swing": 0.5, "playing": true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	tr := decode[sequencer.Transport](t, resp)
	if tr.BPM != sequencer.MaxBPM || tr.Swing != 0.5 || !tr.Playing {
		t.Errorf("transport = %+v", tr)
	}
	if !m.Started() || !e.Clock().Playing() {
		t.Error("playing over HTTP did not start the engine")
	}

	resp = do(t, ts, http.MethodPost, "/transport/toggle", "")
	if tr := decode[sequencer.Transport](t, resp); tr.Playing {
		t.Errorf("toggle left it playing: %+v", tr)
	}
}

func TestPatchTrack(t *testing.T) {
	ts, m, _ := newTestServer(t)
	resp := do(t, ts, http.MethodPatch, "/tracks/2", `{"volume": 0.8, "effects": {"filter": 0.1}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	tr := decode[sequencer.Track](t, resp)
	if tr.Volume != 0.8 || tr.Effects.Filter != 0.1 || tr.Effects.Reverb != 0.5 {
		t.Errorf("track = %+v", tr)
	}
	if got := m.Snapshot().Tracks[2].Volume; got != 0.8 {
		t.Errorf("stored volume = %v", got)
	}

	resp = do(t, ts, http.MethodGet, "/feedback", "")
	fb := decode[sequencer.FeedbackMessage](t, resp)
	if fb.Label != "FILTER" || fb.Value != "10%" {
		t.Errorf("feedback = %+v", fb)
	}
}

func TestToggleStep(t *testing.T) {
	ts, m, _ := newTestServer(t)
	resp := do(t, ts, http.MethodPost, "/tracks/0/steps/5/toggle", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := decode[map[string]any](t, resp); got["on"] != true {
		t.Errorf("body = %v", got)
	}
	if !m.Snapshot().Tracks[0].Steps[5] {
		t.Error("step not toggled")
	}
}

func TestErrors(t *testing.T) {
	ts, _, _ := newTestServer(t)
	tests := []struct {
		name, method, path, body string
		want                     int
	}{
		{"bad json", http.MethodPatch, "/tracks/0", `{"volume":`, http.StatusBadRequest},
		{"unknown field", http.MethodPatch, "/transport", `{"tempo": 90}`, http.StatusBadRequest},
		{"unknown track", http.MethodPatch, "/tracks/9", `{"volume": 0.1}`, http.StatusNotFound},
		{"non-numeric track", http.MethodGet, "/tracks/wash", "", http.StatusNotFound},
		{"step out of range", http.MethodPost, "/tracks/0/steps/16/toggle", "", http.StatusNotFound},
		{"negative step", http.MethodPost, "/tracks/0/steps/-1/toggle", "", http.StatusNotFound},
		{"no feedback yet", http.MethodGet, "/feedback", "", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, ts, tt.method, tt.path, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestRunShutsDown(t *testing.T) {
	m := sequencer.NewManager(headless.New())
	defer m.Close()
	s := New(Config{Addr: "127.0.0.1:0"}, m, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLogNoticesDrainsManager(t *testing.T) {
	m := sequencer.NewManager(headless.New())
	var buf bytes.Buffer
	s := New(Config{}, m, slog.New(slog.NewTextHandler(&buf, nil)))

	f := 0.42
	if _, err := m.UpdateTrack(0, sequencer.TrackPatch{Effects: &sequencer.EffectsPatch{Filter: &f}}); err != nil {
		t.Fatal(err)
	}
	m.Close()
	s.logNotices(context.Background(), m.Notices())

	if out := buf.String(); !strings.Contains(out, "label=FILTER") || !strings.Contains(out, "value=42%") {
		t.Errorf("log = %q", out)
	}
}

