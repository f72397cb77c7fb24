package cli

import (
	"context"
	"fmt"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/packlens/packlens/internal/client"
	progressevents "github.com/packlens/packlens/internal/progress"
)

const pollInterval = time.Second

var watchStream bool

var watchCmd = &cobra.Command{
	Use:   "watch <job-id>",
	Short: "Watch a job's progress until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchStream {
			return streamJob(args[0])
		}
		return RunJobProgress(apiClient, args[0])
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchStream, "stream", false, "print raw events from the websocket stream instead of the TUI")
}

// streamJob tails the job's websocket event stream, one line per event.
func streamJob(jobID string) error {
	ctx := context.Background()
	return apiClient.Stream(ctx, jobID, func(ev progressevents.Event) {
		fmt.Printf("%s  %-20s %5.1f%%  %s\n",
			ev.Timestamp.Format("15:04:05"), ev.Step, ev.Percent, ev.Message)
	})
}

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
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

// tickMsg triggers polling the job status
type tickMsg time.Time

// eventMsg carries the latest progress event
type eventMsg struct {
	event *progressevents.Event
	err   error
}

// watchModel is the bubbletea model for job progress.
type watchModel struct {
	client   *client.Client
	jobID    string
	event    *progressevents.Event
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
	err      error
}

func newWatchModel(c *client.Client, jobID string) watchModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return watchModel{
		client:   c,
		jobID:    jobID,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command (start polling).
func (m watchModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.fetchEvent()

	case eventMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("failed to fetch job progress: %w", msg.err)
			m.done = true
			return m, tea.Quit
		}

		m.event = msg.event

		switch m.event.Step {
		case "completed", "cancelled":
			m.done = true
			return m, tea.Quit
		case "failed":
			m.done = true
			m.err = fmt.Errorf("%s", m.event.Message)
			return m, tea.Quit
		}

		return m, tickCmd()

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m watchModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m watchModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	if m.event == nil {
		return "Loading job progress...\n"
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.event.Step))
	progressBar := m.progress.ViewAs(m.event.Percent / 100)

	counts := ""
	if m.event.TotalChunks > 0 {
		counts = fmt.Sprintf("%d/%d chunks", m.event.CurrentChunk, m.event.TotalChunks)
	}

	hint := m.theme.hintStyle().Render("Press Ctrl+C to continue in background")

	return fmt.Sprintf("%s %s %s\n%s\n", status, progressBar, counts, hint)
}

func (m watchModel) finalView() string {
	if m.quitting {
		msg := fmt.Sprintf("\nJob %s continues in background.\nUse 'packlens jobs %s' to check status.\n",
			m.jobID, m.jobID)
		return m.theme.hintStyle().Render(msg)
	}

	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Job failed: %s\n", m.err))
	}

	if m.event != nil {
		switch m.event.Step {
		case "cancelled":
			return m.theme.errorStyle().Render(
				fmt.Sprintf("\n✗ Cancelled after %d/%d chunks\n", m.event.CurrentChunk, m.event.TotalChunks))
		case "completed":
			var output string
			output += m.theme.completedStyle().Render("✓ Completed") + "\n\n"
			output += fmt.Sprintf("  Chunks analyzed: %d\n", m.event.CurrentChunk)
			if m.event.Message != "" {
				output += fmt.Sprintf("  %s\n", m.event.Message)
			}
			return output
		}
	}

	return m.theme.completedStyle().Render("✓ Completed\n")
}

// fetchEvent fetches the latest progress event from the server.
// Runs in a separate goroutine (command) to avoid blocking Update().
func (m watchModel) fetchEvent() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		ev, err := m.client.Progress(ctx, m.jobID)
		return eventMsg{event: ev, err: err}
	}
}

// tickCmd returns a command that sends a tick after the poll interval.
func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// RunJobProgress runs the interactive progress UI for a job.
// Returns nil on success or Ctrl+C (background), error on job failure.
func RunJobProgress(c *client.Client, jobID string) error {
	model := newWatchModel(c, jobID)
	p := tea.NewProgram(model)

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(watchModel); ok {
		if m.quitting {
			return nil
		}
		if m.err != nil {
			return m.err
		}
	}

	return nil
}
