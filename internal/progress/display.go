// Package progress renders update progress on a terminal or into the log.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	primaryColor = lipgloss.Color("#0B5CAD")
	dimColor     = lipgloss.Color("#6272A4")
	textColor    = lipgloss.Color("#F8F8F2")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(primaryColor)

	statusStyle = lipgloss.NewStyle().
			Foreground(textColor)

	percentStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	containerStyle = lipgloss.NewStyle().
			Padding(1, 2)
)

const title = "MeMate Launcher"

type model struct {
	spinner  spinner.Model
	progress progress.Model

	label   string
	percent int
	done    bool

	mu      sync.Mutex
	updates chan update
}

type update struct {
	percent int
	label   string
	done    bool
}

type updateMsg update

func newModel() *model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return &model{
		spinner:  s,
		progress: p,
		label:    "Starting...",
		updates:  make(chan update, 1),
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.waitForUpdate(),
	)
}

func (m *model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		return updateMsg(<-m.updates)
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		m.percent = msg.percent
		if msg.label != "" {
			m.label = msg.label
		}
		if msg.done {
			m.done = true
			return m, tea.Quit
		}
		return m, tea.Batch(
			m.progress.SetPercent(float64(m.percent)/100),
			m.waitForUpdate(),
		)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m *model) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(m.progress.View())
	b.WriteString(percentStyle.Render(fmt.Sprintf(" %3d%%", m.percent)))
	b.WriteString("\n")
	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(statusStyle.Render(m.label))

	return containerStyle.Render(b.String())
}

// send delivers u without blocking. An update the program has not read yet is
// replaced, so the latest percent and label always arrive.
func (m *model) send(u update) {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case prev := <-m.updates:
		if u.label == "" {
			u.label = prev.label
		}
	default:
	}
	m.updates <- u
}

// Display is a terminal progress bar driven by a bubbletea program.
type Display struct {
	program *tea.Program
	model   *model
	done    chan struct{}
	mu      sync.Mutex
	stopped bool
	last    update
}

// NewDisplay starts a display that renders to w.
func NewDisplay(w io.Writer) *Display {
	m := newModel()

	program := tea.NewProgram(
		m,
		tea.WithOutput(w),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)

	d := &Display{
		program: program,
		model:   m,
		done:    make(chan struct{}),
	}

	go func() {
		_, _ = program.Run()
		close(d.done)
	}()

	return d
}

// Progress implements update.ProgressSink.
func (d *Display) Progress(percent int, label string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.last = update{percent: percent, label: label}
	d.model.send(d.last)
}

// Stop ends the program and waits briefly for it to restore the terminal.
func (d *Display) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	final := d.last
	d.mu.Unlock()

	final.done = true
	d.model.send(final)

	select {
	case <-d.done:
	case <-time.After(500 * time.Millisecond):
		d.program.Kill()
	}
}
