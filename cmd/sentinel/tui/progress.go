package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/sentinel/pkg/sentinel/sweep"
	"github.com/jamesainslie/sentinel/pkg/sentinel/types"
)

// ProgressMsg carries an engine progress report.
type ProgressMsg types.Progress

// PhaseMsg announces a sweep phase.
type PhaseMsg sweep.Phase

// DoneMsg is sent when the work has returned.
type DoneMsg struct{}

// phaseLabels are shown above the progress bar.
var phaseLabels = map[sweep.Phase]string{
	sweep.PhaseBuildManifest:  "Building manifest",
	sweep.PhaseVerifyManifest: "Verifying files",
	sweep.PhaseFreeSpace:      "Testing free space",
	sweep.PhaseCommit:         "Recording sweep",
}

// Model is the progress view. Quitting keys request cancellation; the
// view stays up until the work acknowledges it between batches or files.
type Model struct {
	title      string
	phase      string
	current    types.Progress
	spinner    spinner.Model
	bar        progress.Model
	start      time.Time
	cancel     context.CancelFunc
	cancelling bool
	done       bool
	width      int
}

// New returns a model titled title. cancel is called at most once, when
// the user asks to stop.
func New(title string, cancel context.CancelFunc) Model {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)

	bar := progress.New(progress.WithGradient("#7D56F4", "#00D9FF"))
	bar.Width = 50

	return Model{
		title:   title,
		spinner: s,
		bar:     bar,
		start:   time.Now(),
		cancel:  cancel,
		width:   80,
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles key presses and engine messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(10, min(60, msg.Width-10))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			if !m.cancelling && !m.done {
				m.cancelling = true
				if m.cancel != nil {
					m.cancel()
				}
			}
		}
		return m, nil

	case ProgressMsg:
		m.current = types.Progress(msg)
		return m, nil

	case PhaseMsg:
		m.phase = phaseLabels[sweep.Phase(msg)]
		return m, nil

	case DoneMsg:
		m.done = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the title, phase, current step, bar and hints.
func (m Model) View() string {
	width := max(40, m.width-4)
	var b strings.Builder

	hint := mutedTextStyle.Render("[q to stop]")
	title := titleStyle.Render(m.title)
	b.WriteString(title + strings.Repeat(" ", max(1, width-lipgloss.Width(title)-lipgloss.Width(hint))) + hint)
	b.WriteString("\n")
	b.WriteString(renderDivider(width))
	b.WriteString("\n\n")

	if m.phase != "" {
		b.WriteString("  " + phaseStyle.Render(m.phase) + "\n")
	}

	switch {
	case m.done:
		b.WriteString("  " + successTextStyle.Render("Done") + "\n")
	case m.cancelling:
		b.WriteString("  " + warningTextStyle.Render("Stopping after the current step…") + "\n")
	default:
		msg := m.current.Message
		if msg == "" {
			msg = "Starting…"
		}
		b.WriteString(fmt.Sprintf("  %s %s\n", m.spinner.View(), msg))
	}

	b.WriteString("\n  " + m.bar.ViewAs(m.current.Fraction()) + "\n\n")
	b.WriteString(mutedTextStyle.Render(fmt.Sprintf("  Elapsed %s", formatElapsed(time.Since(m.start)))))

	return outerBoxStyle.Render(b.String())
}

// Cancelling reports whether the user asked to stop.
func (m Model) Cancelling() bool { return m.cancelling }

// formatElapsed formats d as M:SS.
func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", d/time.Minute, (d%time.Minute)/time.Second)
}

// Work is the job shown by Run. It must honor ctx between steps.
type Work func(ctx context.Context, onProgress types.ProgressFunc, onPhase func(sweep.Phase)) error

// Run shows the progress view while work runs in the background and
// returns work's error. Quitting the view cancels work's context.
func Run(ctx context.Context, title string, work Work) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(New(title, cancel))

	var g errgroup.Group
	g.Go(func() error {
		defer p.Send(DoneMsg{})
		return work(ctx,
			func(pr types.Progress) { p.Send(ProgressMsg(pr)) },
			func(ph sweep.Phase) { p.Send(PhaseMsg(ph)) })
	})
	g.Go(func() error {
		_, err := p.Run()
		cancel()
		return err
	})
	return g.Wait()
}
