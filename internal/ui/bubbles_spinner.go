package ui

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SpinnerFrames defines the braille scan animation used while waiting on the server.
var SpinnerFrames = spinner.Spinner{
	Frames: []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"},
	FPS:    time.Second / 16,
}

type taskDoneMsg struct{ err error }

// spinnerModel shows a spinner until its task reports back.
type spinnerModel struct {
	spinner spinner.Model
	label   string
	task    func() error
	done    bool
	err     error
}

func newSpinnerModel(label string, task func() error) spinnerModel {
	sp := spinner.New()
	sp.Spinner = SpinnerFrames
	sp.Style = lipgloss.NewStyle().Foreground(ColorSecondary)
	return spinnerModel{spinner: sp, label: label, task: task}
}

func (m spinnerModel) Init() tea.Cmd {
	task := m.task
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		return taskDoneMsg{err: task()}
	})
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case taskDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinnerModel) View() string {
	if m.done {
		return ""
	}
	return m.spinner.View() + " " + m.label + "..."
}

// RunWithSpinner runs task while showing a spinner on out. When out is not a
// terminal, or plain output is active, the task simply runs.
// The spinner installs no signal handler; task should watch its own context.
func RunWithSpinner(out io.Writer, label string, task func() error) error {
	f, ok := out.(*os.File)
	if plain || !ok || !IsTerminal(f) {
		return task()
	}

	p := tea.NewProgram(newSpinnerModel(label, task),
		tea.WithOutput(out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	final, err := p.Run()
	if err != nil {
		return err
	}
	return final.(spinnerModel).err
}
