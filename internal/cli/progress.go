package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Theme holds the color scheme for terminal output.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
	User    lipgloss.Color
	Bot     lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
	User:    lipgloss.Color("#FFAF00"), // amber
	Bot:     lipgloss.Color("#AF87FF"), // violet
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) userStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.User).Bold(true)
}

func (t Theme) botStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Bot).Bold(true)
}

// progressMsg reports completed work.
type progressMsg struct {
	done, total int
}

// doneMsg ends the progress display.
type doneMsg struct {
	err error
}

// progressModel is the bubbletea model for a long-running batch.
type progressModel struct {
	label    string
	done     int
	total    int
	started  time.Time
	progress progress.Model
	theme    Theme
	cancel   context.CancelFunc
	finished bool
	quitting bool
	err      error
}

// newProgressModel creates a new progress model.
func newProgressModel(label string, total int, cancel context.CancelFunc) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		label:    label,
		total:    total,
		started:  time.Now(),
		progress: prog,
		theme:    defaultTheme,
		cancel:   cancel,
	}
}

// Init returns the initial command.
func (m progressModel) Init() tea.Cmd {
	return m.progress.Init()
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.finished = true
			m.cancel()
			return m, tea.Quit
		}

	case progressMsg:
		// batches finish out of order
		if msg.done > m.done {
			m.done = msg.done
		}
		m.total = msg.total
		return m, nil

	case doneMsg:
		m.err = msg.err
		m.finished = true
		if msg.err == nil {
			m.done = m.total
		}
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.finished {
		return m.finalView()
	}

	var pct float64
	if m.total > 0 {
		pct = float64(m.done) / float64(m.total)
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.label))
	bar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d", m.done, m.total)
	hint := m.theme.hintStyle().Render("Press Ctrl+C to cancel")

	return fmt.Sprintf("%s %s %s\n%s\n", status, bar, counts, hint)
}

func (m progressModel) finalView() string {
	if m.quitting {
		return m.theme.hintStyle().Render("\nCancelled.\n")
	}
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ %s failed: %s\n", m.label, m.err))
	}
	elapsed := time.Since(m.started).Round(time.Millisecond)
	return m.theme.completedStyle().Render(fmt.Sprintf("✓ %s: %d/%d in %s\n", m.label, m.done, m.total, elapsed))
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// runWithProgress runs work with a progress bar on a terminal, or plainly
// (progress is then only logged) when output is redirected.
func runWithProgress(ctx context.Context, label string, total int, work func(ctx context.Context, onProgress func(done, total int)) error) error {
	if !isTerminal() {
		return work(ctx, nil)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel(label, total, cancel))
	errc := make(chan error, 1)
	go func() {
		err := work(ctx, func(done, total int) {
			p.Send(progressMsg{done: done, total: total})
		})
		p.Send(doneMsg{err: err})
		errc <- err
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-errc
		return fmt.Errorf("progress UI error: %w", err)
	}
	return <-errc
}
