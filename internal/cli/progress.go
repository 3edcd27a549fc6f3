package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/circles/internal/client"
	"github.com/raphaelgruber/circles/internal/service"
)

const pollInterval = time.Second

// Theme holds the color scheme for terminal output.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
	Heading lipgloss.Color
}

var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
	Heading: lipgloss.Color("#D7AF5F"), // amber
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

func (t Theme) headingStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Heading).Bold(true)
}

// tickMsg triggers polling the job status
type tickMsg time.Time

// jobUpdateMsg carries the updated job data
type jobUpdateMsg struct {
	job *service.Job
	err error
}

// progressModel is the bubbletea model for import progress.
type progressModel struct {
	client   *client.Client
	jobID    string
	job      *service.Job
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
	err      error
}

func newProgressModel(c *client.Client, job *service.Job) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		client:   c,
		jobID:    job.ID,
		job:      job,
		progress: prog,
		theme:    defaultTheme,
	}
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.progress.Init(),
	)
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.fetchJob()

	case jobUpdateMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("failed to fetch job status: %w", msg.err)
			m.done = true
			return m, tea.Quit
		}

		m.job = msg.job
		if finished, err := jobOutcome(m.job); finished {
			m.err = err
			m.done = true
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

func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	if m.job == nil {
		return "Loading job status...\n"
	}

	var pct float64
	if m.job.Total > 0 {
		pct = float64(m.job.Progress) / float64(m.job.Total)
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.job.Status))
	progressBar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d notes", m.job.Progress, m.job.Total)
	hint := m.theme.hintStyle().Render("Press Ctrl+C to continue in background")

	return fmt.Sprintf("%s %s %s\n%s\n", status, progressBar, counts, hint)
}

func (m progressModel) finalView() string {
	if m.quitting {
		msg := fmt.Sprintf("\nJob %s continues in background.\nUse 'circles jobs %s' to check status.\n",
			m.jobID, m.jobID)
		return m.theme.hintStyle().Render(msg)
	}

	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Import failed: %s\n", m.err))
	}
	return renderImportResult(m.theme, m.job)
}

// fetchJob fetches the current job status from the server.
// Runs as a command so Update never blocks.
func (m progressModel) fetchJob() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		job, err := m.client.GetJob(ctx, m.jobID)
		return jobUpdateMsg{job: job, err: err}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// jobOutcome reports whether job reached a terminal state and, if it
// failed, why.
func jobOutcome(job *service.Job) (bool, error) {
	switch job.Status {
	case service.JobStatusCompleted:
		return true, nil
	case service.JobStatusFailed:
		if job.Error != nil {
			return true, fmt.Errorf("%s", *job.Error)
		}
		return true, fmt.Errorf("job failed with unknown error")
	}
	return false, nil
}

// renderImportResult formats the summary of a finished import.
func renderImportResult(theme Theme, job *service.Job) string {
	if job == nil || job.Result == nil {
		return theme.completedStyle().Render("✓ Completed") + "\n"
	}
	r := job.Result
	out := theme.completedStyle().Render("✓ Completed") + "\n\n"
	out += fmt.Sprintf("  Notes processed:  %d\n", r.FilesProcessed)
	out += fmt.Sprintf("  Persons created:  %d\n", r.Created)
	out += fmt.Sprintf("  Persons merged:   %d\n", r.Merged)
	if r.Skipped > 0 {
		out += fmt.Sprintf("  Skipped:          %d\n", r.Skipped)
	}
	if len(r.Errors) > 0 {
		out += theme.errorStyle().Render(fmt.Sprintf("\nWarnings (%d):", len(r.Errors))) + "\n"
		for _, e := range r.Errors {
			out += fmt.Sprintf("  • %s\n", e)
		}
	}
	return out
}

// RunJobProgress runs the interactive progress UI for a job.
// Returns nil on success or Ctrl+C (background), error on job failure.
func RunJobProgress(c *client.Client, job *service.Job) error {
	p := tea.NewProgram(newProgressModel(c, job))

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(progressModel); ok {
		if m.quitting {
			return nil
		}
		if m.err != nil {
			return m.err
		}
	}
	return nil
}

// waitForJob polls a job until it finishes and prints the result. Used
// when output is not a terminal.
func waitForJob(ctx context.Context, c *client.Client, job *service.Job, w io.Writer) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if finished, err := jobOutcome(job); finished {
			if err != nil {
				return err
			}
			fmt.Fprint(w, renderImportResult(defaultTheme, job))
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		next, err := c.GetJob(ctx, job.ID)
		if err != nil {
			return fmt.Errorf("get job: %w", err)
		}
		job = next
	}
}
