package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ambient-looper/params"
	"ambient-looper/sequencer"
	"ambient-looper/theme"
	"ambient-looper/widgets"
)

const (
	paramStep = 0.05
	bpmStep   = 5
	swingStep = 0.05
	barWidth  = 20
	frameRate = 250 * time.Millisecond
)

// control is one adjustable 0-1 track parameter
type control struct {
	label string
	get   func(sequencer.Track) float64
	patch func(float64) sequencer.TrackPatch
}

var controls = []control{
	{"VOLUME", func(t sequencer.Track) float64 { return t.Volume },
		func(v float64) sequencer.TrackPatch { return sequencer.TrackPatch{Volume: &v} }},
	{"LFO SPEED", func(t sequencer.Track) float64 { return t.LFO.Rate },
		func(v float64) sequencer.TrackPatch { return sequencer.TrackPatch{LFO: &sequencer.LFOPatch{Rate: &v}} }},
	{"LFO DEPTH", func(t sequencer.Track) float64 { return t.LFO.Intensity },
		func(v float64) sequencer.TrackPatch { return sequencer.TrackPatch{LFO: &sequencer.LFOPatch{Intensity: &v}} }},
	{"FILTER", func(t sequencer.Track) float64 { return t.Effects.Filter },
		func(v float64) sequencer.TrackPatch { return sequencer.TrackPatch{Effects: &sequencer.EffectsPatch{Filter: &v}} }},
	{"ATTACK", func(t sequencer.Track) float64 { return t.Effects.Attack },
		func(v float64) sequencer.TrackPatch { return sequencer.TrackPatch{Effects: &sequencer.EffectsPatch{Attack: &v}} }},
	{"DECAY", func(t sequencer.Track) float64 { return t.Effects.Decay },
		func(v float64) sequencer.TrackPatch { return sequencer.TrackPatch{Effects: &sequencer.EffectsPatch{Decay: &v}} }},
	{"DELAY", func(t sequencer.Track) float64 { return t.Effects.Delay },
		func(v float64) sequencer.TrackPatch { return sequencer.TrackPatch{Effects: &sequencer.EffectsPatch{Delay: &v}} }},
	{"REVERB", func(t sequencer.Track) float64 { return t.Effects.Reverb },
		func(v float64) sequencer.TrackPatch { return sequencer.TrackPatch{Effects: &sequencer.EffectsPatch{Reverb: &v}} }},
}

var keyHelp = []widgets.KeySection{
	{Title: "TRANSPORT", Keys: []widgets.KeyBinding{
		{Key: "space / p", Desc: "play / pause"},
		{Key: "+ / -", Desc: "tempo"},
		{Key: ", / .", Desc: "swing"},
	}},
	{Title: "TRACK", Keys: []widgets.KeyBinding{
		{Key: "1-4", Desc: "select track"},
		{Key: "h / l", Desc: "move step cursor"},
		{Key: "x / enter", Desc: "toggle step"},
		{Key: "[ / ]", Desc: "step length"},
		{Key: "s m a", Desc: "solo, mute, active"},
	}},
	{Title: "SOUND", Keys: []widgets.KeyBinding{
		{Key: "j / k", Desc: "select control"},
		{Key: "← / →", Desc: "adjust control"},
	}},
	{Keys: []widgets.KeyBinding{
		{Key: "?", Desc: "toggle help"},
		{Key: "q", Desc: "quit"},
	}},
}

type Model struct {
	Manager  *sequencer.Manager
	Theme    *theme.Theme
	ctx      context.Context
	track    int // selected track
	cursor   int // step cursor
	param    int // selected control
	err      error
	help     bool
	quitting bool
}

type UpdateMsg struct{}

type frameMsg time.Time

// NoticeMsg carries one parameter-change notice from the manager
type NoticeMsg sequencer.Notice

func NewModel(ctx context.Context, manager *sequencer.Manager, th *theme.Theme) Model {
	return Model{
		Manager: manager,
		Theme:   th,
		ctx:     ctx,
	}
}

func ListenForUpdates(manager *sequencer.Manager) tea.Cmd {
	return func() tea.Msg {
		<-manager.UpdateChan
		return UpdateMsg{}
	}
}

// ListenForNotices drains the manager's notices so the buffer never fills.
// It returns nil once the manager is closed.
func ListenForNotices(manager *sequencer.Manager) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-manager.Notices()
		if !ok {
			return nil
		}
		return NoticeMsg(n)
	}
}

// frame redraws periodically so the feedback toast expires on screen
func frame() tea.Cmd {
	return tea.Tick(frameRate, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(ListenForUpdates(m.Manager), ListenForNotices(m.Manager), frame())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case UpdateMsg:
		return m, ListenForUpdates(m.Manager)

	case NoticeMsg:
		return m, ListenForNotices(m.Manager)

	case frameMsg:
		return m, frame()
	}
	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	s := m.Manager.Snapshot()
	tr := s.Tracks[m.track]
	m.err = nil

	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "?":
		m.help = !m.help

	case " ", "p":
		_, m.err = m.Manager.TogglePlay(m.ctx)

	case "1", "2", "3", "4":
		m.track = int(key[0] - '1')

	case "h":
		m.cursor = (m.cursor + sequencer.MaxSteps - 1) % sequencer.MaxSteps
	case "l":
		m.cursor = (m.cursor + 1) % sequencer.MaxSteps
	case "x", "enter":
		_, m.err = m.Manager.ToggleStep(m.track, m.cursor)

	case "[":
		m.update(sequencer.TrackPatch{StepLength: ptr(tr.StepLength - 1)})
	case "]":
		m.update(sequencer.TrackPatch{StepLength: ptr(tr.StepLength + 1)})

	case "k", "up":
		m.param = (m.param + len(controls) - 1) % len(controls)
	case "j", "down":
		m.param = (m.param + 1) % len(controls)
	case "left":
		c := controls[m.param]
		m.update(c.patch(c.get(tr) - paramStep))
	case "right":
		c := controls[m.param]
		m.update(c.patch(c.get(tr) + paramStep))

	case "+", "=":
		m.transport(sequencer.TransportPatch{BPM: ptr(float64(s.Transport.BPM + bpmStep))})
	case "-", "_":
		m.transport(sequencer.TransportPatch{BPM: ptr(float64(s.Transport.BPM - bpmStep))})
	case ".":
		m.transport(sequencer.TransportPatch{Swing: ptr(s.Transport.Swing + swingStep)})
	case ",":
		m.transport(sequencer.TransportPatch{Swing: ptr(s.Transport.Swing - swingStep)})

	case "s":
		m.update(sequencer.TrackPatch{Soloed: ptr(!tr.Soloed)})
	case "m":
		m.update(sequencer.TrackPatch{Muted: ptr(!tr.Muted)})
	case "a":
		m.update(sequencer.TrackPatch{Active: ptr(!tr.Active)})
	}
	return m, nil
}

func (m *Model) update(p sequencer.TrackPatch) {
	_, m.err = m.Manager.UpdateTrack(m.track, p)
}

func (m *Model) transport(p sequencer.TransportPatch) {
	_, m.err = m.Manager.SetTransport(m.ctx, p)
}

func ptr[T any](v T) *T { return &v }

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	s := m.Manager.Snapshot()
	th := m.Theme

	headerStyle := lipgloss.NewStyle().Foreground(th.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(th.Muted())

	playState := "PAUSE"
	if s.Transport.Playing {
		playState = "PLAY "
	}
	heat := float64(s.Transport.BPM-sequencer.MinBPM) / (sequencer.MaxBPM - sequencer.MinBPM)
	header := headerStyle.Render("ambient-looper  "+playState+"  ") +
		lipgloss.NewStyle().Foreground(th.Color(heat)).Render(fmt.Sprintf("%3dbpm", s.Transport.BPM)) +
		headerStyle.Render("  swing "+params.Percent(s.Transport.Swing))

	var cards []string
	for i, tr := range s.Tracks {
		cards = append(cards, m.card(tr, i == m.track, s.Transport.Playing, s.AnySoloed()))
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("  ")
	out.WriteString(m.toast())
	out.WriteString("\n\n")
	out.WriteString(strings.Join(cards, "\n\n"))
	out.WriteString("\n\n")
	if m.err != nil {
		out.WriteString(lipgloss.NewStyle().Foreground(th.Warning()).Render("error: " + m.err.Error()))
		out.WriteString("\n")
	}
	if m.help {
		out.WriteString(lipgloss.NewStyle().Foreground(th.FG()).Render(widgets.RenderKeyHelp(keyHelp)))
	} else {
		out.WriteString(dimStyle.Render("1-4:track  h/l:step  x:toggle  p:play  ?:help  q:quit"))
	}
	return out.String()
}

// card renders one track; the selected one also shows its controls
func (m Model) card(tr sequencer.Track, selected, playing, anySolo bool) string {
	th := m.Theme
	color := th.Track(tr.Color, tr.Active && tr.Audible(anySolo))

	title := lipgloss.NewStyle().Foreground(color).Bold(selected).
		Render(fmt.Sprintf("%d %-10s", tr.ID+1, strings.ToUpper(tr.Archetype.String())))
	flags := strings.Join([]string{
		widgets.RenderFlag(th, "S", tr.Soloed, th.Warning()),
		widgets.RenderFlag(th, "M", tr.Muted, th.Muted()),
		widgets.RenderFlag(th, "A", tr.Active, color),
	}, " ")

	playhead, cursor := -1, widgets.StepCursorNone
	if playing {
		playhead = tr.CurrentStep
	}
	if selected {
		cursor = m.cursor
	}
	steps := widgets.RenderSteps(th, tr.Steps[:], tr.StepLength, playhead, cursor, color)
	line := fmt.Sprintf("%s %s  %s  %2d", title, flags, steps, tr.StepLength)
	if !selected {
		return line
	}

	rows := []string{line}
	for i, c := range controls {
		rows = append(rows, "   "+widgets.RenderBar(th, c.label, c.get(tr), barWidth, color, i == m.param))
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Render(strings.Join(rows, "\n"))
}

func (m Model) toast() string {
	fb, ok := m.Manager.Feedback()
	if !ok {
		return ""
	}
	return lipgloss.NewStyle().
		Foreground(m.Theme.BG()).
		Background(m.Theme.Success()).
		Padding(0, 1).
		Render(fb.Label + " " + fb.Value)
}
