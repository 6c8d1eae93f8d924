package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"ambient-looper/theme"
)

// StepCursorNone hides the step cursor
const StepCursorNone = -1

// RenderSteps renders a 16-step row. Steps past length are drawn as beyond,
// playhead marks the track's current step while playing.
func RenderSteps(th *theme.Theme, steps []bool, length, playhead, cursor int, color lipgloss.Color) string {
	sym := th.Symbols
	on := lipgloss.NewStyle().Foreground(color)
	off := lipgloss.NewStyle().Foreground(th.Muted())
	cur := lipgloss.NewStyle().Foreground(th.Cursor()).Bold(true)

	var out strings.Builder
	for i, hit := range steps {
		if i > 0 {
			out.WriteString(" ")
		}
		var r rune
		style := off
		switch {
		case i >= length:
			r = sym.StepBeyond
			if i == cursor {
				r = sym.CursorBeyond
			}
		case i == playhead:
			r = sym.StepPlayhead
			if i == cursor {
				r = sym.CursorPlayhead
			}
			style = on
		case hit:
			r = sym.StepActive
			if i == cursor {
				r = sym.CursorActive
			}
			style = on
		default:
			r = sym.StepEmpty
			if i == cursor {
				r = sym.CursorEmpty
			}
		}
		if i == cursor {
			style = cur
		}
		out.WriteString(style.Render(string(r)))
	}
	return out.String()
}

// RenderBar renders "LABEL  ████░░░░  42%" for a 0-1 value
func RenderBar(th *theme.Theme, label string, value float64, width int, color lipgloss.Color, selected bool) string {
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	full := int(value*float64(width) + 0.5)
	bar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat(string(th.Symbols.BarFull), full)) +
		lipgloss.NewStyle().Foreground(th.Surface()).Render(strings.Repeat(string(th.Symbols.BarEmpty), width-full))

	labelStyle := lipgloss.NewStyle().Foreground(th.Muted())
	if selected {
		labelStyle = lipgloss.NewStyle().Foreground(th.Cursor()).Bold(true)
	}
	return fmt.Sprintf("%s %s %4d%%", labelStyle.Render(fmt.Sprintf("%-10s", label)), bar, int(value*100+0.5))
}

// RenderFlag renders a short badge that is lit when on
func RenderFlag(th *theme.Theme, name string, on bool, color lipgloss.Color) string {
	if !on {
		return lipgloss.NewStyle().Foreground(th.Surface()).Render(name)
	}
	return lipgloss.NewStyle().Foreground(th.BG()).Background(color).Render(name)
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}
