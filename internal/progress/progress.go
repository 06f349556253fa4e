// Package progress is a small bubbletea program that renders a live
// transfer progress bar for the fel CLI's write/multiwrite commands,
// generalized from the teacher's ProgressView (internal/cli/ui.ui.go):
// a styled header/footer frame around a single content pane, driven by
// messages sent over a channel rather than an interactive menu.
package progress

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(lipgloss.Color("#FFFF00")).
			Padding(0, 2).
			Bold(true)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#4B5563")).
			Padding(0, 2)

	barFilledStyle = lipgloss.NewStyle().Background(lipgloss.Color("#22C55E"))
	barEmptyStyle  = lipgloss.NewStyle().Background(lipgloss.Color("#374151"))
)

// TickMsg advances the transfer rate display; sent on a fixed interval so
// the footer's throughput figure keeps updating even between chunks.
type TickMsg time.Time

// AdvanceMsg reports that n additional bytes have completed transfer for
// the named label (matching fel.ProgressFunc's per-segment callback).
type AdvanceMsg struct {
	Label string
	N     int
}

// DoneMsg signals the program to exit, successfully or with an error.
type DoneMsg struct {
	Err error
}

// Model is the bubbletea model for a single multi-file transfer: Total is
// fixed up front (the sum of every file's size), Transferred accumulates
// across every AdvanceMsg, matching fel.c's shared multiwrite progress.
type Model struct {
	Label       string
	Total       int64
	Transferred int64
	Width       int
	started     time.Time
	lastTick    time.Time
	rateBps     float64
	err         error
	done        bool
}

// New creates a Model ready to track a transfer of totalBytes across one or
// more files, labeled for display (e.g. a filename or "u-boot-sunxi-with-spl.bin").
func New(label string, totalBytes int64) Model {
	now := time.Now()
	return Model{Label: label, Total: totalBytes, Width: 60, started: now, lastTick: now}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case AdvanceMsg:
		m.Label = msg.Label
		m.Transferred += int64(msg.N)
		return m, nil
	case TickMsg:
		now := time.Time(msg)
		elapsed := now.Sub(m.started).Seconds()
		if elapsed > 0 {
			m.rateBps = float64(m.Transferred) / elapsed
		}
		m.lastTick = now
		if m.done {
			return m, nil
		}
		return m, tick()
	case DoneMsg:
		m.err = msg.Err
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) View() string {
	header := headerStyle.Render(fmt.Sprintf(" fel: transferring %s", m.Label))

	pct := 0.0
	if m.Total > 0 {
		pct = float64(m.Transferred) / float64(m.Total)
		if pct > 1 {
			pct = 1
		}
	}
	filled := int(pct * float64(m.Width))
	bar := barFilledStyle.Render(strings.Repeat(" ", filled)) +
		barEmptyStyle.Render(strings.Repeat(" ", m.Width-filled))

	status := fmt.Sprintf("%d/%d bytes (%.0f%%)", m.Transferred, m.Total, pct*100)
	if m.err != nil {
		status = fmt.Sprintf("error: %v", m.err)
	} else if m.done {
		status = fmt.Sprintf("done: %d bytes", m.Transferred)
	}

	footer := footerStyle.Render(fmt.Sprintf(" %.1f KB/s | %s", m.rateBps/1024, status))

	return lipgloss.JoinVertical(lipgloss.Left, header, bar, footer)
}

// Reporter wraps a tea.Program so a fel.ProgressFunc can feed it advances
// without the caller depending on bubbletea directly.
type Reporter struct {
	program *tea.Program
	label   string
}

// NewReporter starts the bubbletea program for a transfer labeled label,
// with totalBytes known up front.
func NewReporter(label string, totalBytes int64) *Reporter {
	p := tea.NewProgram(New(label, totalBytes))
	r := &Reporter{program: p, label: label}
	go p.Run()
	return r
}

// Func returns a fel.ProgressFunc bound to this reporter.
func (r *Reporter) Func() func(int) {
	return func(n int) {
		r.program.Send(AdvanceMsg{Label: r.label, N: n})
	}
}

// Done stops the program, optionally reporting a terminal error.
func (r *Reporter) Done(err error) {
	r.program.Send(DoneMsg{Err: err})
}
