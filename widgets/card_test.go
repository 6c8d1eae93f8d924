package widgets

import (
	"strings"
	"testing"

	"ambient-looper/theme"
)

func TestRenderSteps(t *testing.T) {
	th := theme.New(theme.DefaultPalette())
	steps := make([]bool, 8)
	steps[0], steps[2] = true, true

	got := RenderSteps(th, steps, 6, 2, StepCursorNone, th.Accent())
	if want := "● · ▶ · · · - -"; got != want {
		t.Errorf("steps = %q, want %q", got, want)
	}
	got = RenderSteps(th, steps, 6, -1, 0, th.Accent())
	if !strings.HasPrefix(got, "◉") {
		t.Errorf("cursor on hit = %q", got)
	}
	got = RenderSteps(th, steps, 6, -1, 7, th.Accent())
	if !strings.HasSuffix(got, "□") {
		t.Errorf("cursor beyond length = %q", got)
	}
}

func TestRenderBar(t *testing.T) {
	th := theme.New(theme.DefaultPalette())
	got := RenderBar(th, "FILTER", 0.5, 10, th.Accent(), false)
	if !strings.Contains(got, "█████░░░░░") || !strings.HasSuffix(got, "50%") {
		t.Errorf("bar = %q", got)
	}
	if got := RenderBar(th, "VOLUME", 3, 4, th.Accent(), true); !strings.Contains(got, "████ ") {
		t.Errorf("over-range bar = %q", got)
	}
}
