package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"

	"github.com/raphaelgruber/vaultbot/internal/client"
	"github.com/raphaelgruber/vaultbot/internal/service"
)

const pollInterval = 250 * time.Millisecond

// JobSource returns the current state of a job. The server client and the
// in-process job manager both satisfy it.
type JobSource interface {
	GetJob(ctx context.Context, id string) (*client.Job, error)
}

// localJobs adapts an in-process JobManager to JobSource.
type localJobs struct {
	jobs *service.JobManager
}

func (l localJobs) GetJob(_ context.Context, id string) (*client.Job, error) {
	job := l.jobs.GetJob(id)
	if job == nil {
		return nil, client.ErrNotFound
	}
	return toClientJob(job.Snapshot()), nil
}

func toClientJob(j *service.Job) *client.Job {
	out := &client.Job{
		ID:          j.ID,
		Type:        j.Type,
		Status:      string(j.Status),
		DirPath:     j.DirPath,
		Progress:    j.Progress,
		Total:       j.Total,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
	if r := j.Result; r != nil {
		out.Result = &client.IngestResult{
			FilesProcessed: r.FilesProcessed,
			NotesCreated:   r.NotesCreated,
			Notes:          r.Notes,
			Errors:         r.Errors,
		}
	}
	return out
}

// tickMsg triggers polling the job status
type tickMsg time.Time

// jobUpdateMsg carries the updated job data
type jobUpdateMsg struct {
	job *client.Job
	err error
}

// progressModel is the bubbletea model for job progress.
type progressModel struct {
	source     JobSource
	jobID      string
	job        *client.Job
	progress   progress.Model
	theme      Theme
	background bool
	done       bool
	quitting   bool
	err        error
}

// newProgressModel creates a new progress model. background reports
// whether the job survives the command (server jobs do, local ones don't).
func newProgressModel(src JobSource, job *client.Job, background bool) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		source:     src,
		jobID:      job.ID,
		job:        job,
		progress:   prog,
		theme:      defaultTheme,
		background: background,
	}
}

// Init returns the initial command (start polling).
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
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
		switch m.job.Status {
		case string(service.JobStatusCompleted):
			m.done = true
			return m, tea.Quit
		case string(service.JobStatusFailed):
			m.done = true
			m.err = fmt.Errorf("%s", m.job.Error)
			if m.job.Error == "" {
				m.err = fmt.Errorf("job failed with unknown error")
			}
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
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m progressModel) renderContent() string {
	if m.done || m.quitting {
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
	counts := fmt.Sprintf("%d/%d files", m.job.Progress, m.job.Total)

	hint := "Press Ctrl+C to stop waiting"
	if m.background {
		hint = "Press Ctrl+C to continue in background"
	}
	return fmt.Sprintf("%s %s %s\n%s\n", status, progressBar, counts, m.theme.hintStyle().Render(hint))
}

// finalView renders the completion message.
func (m progressModel) finalView() string {
	if m.quitting {
		if !m.background {
			return m.theme.hintStyle().Render("\nStopped waiting; remaining files are abandoned with the process.\n")
		}
		msg := fmt.Sprintf("\nJob %s continues in background.\nUse 'vaultbot --server ... jobs %s' to check status.\n",
			m.jobID, m.jobID)
		return m.theme.hintStyle().Render(msg)
	}
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Job failed: %s\n", m.err))
	}
	if m.job != nil && m.job.Result != nil {
		return m.theme.completedStyle().Render("✓ Completed") + "\n\n" + formatResult(m.theme, m.job.Result)
	}
	return m.theme.completedStyle().Render("✓ Completed\n")
}

func formatResult(t Theme, r *client.IngestResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  Files processed: %d\n", r.FilesProcessed)
	fmt.Fprintf(&b, "  Notes created:   %d\n", r.NotesCreated)
	if len(r.Errors) > 0 {
		b.WriteString(t.errorStyle().Render(fmt.Sprintf("\nWarnings (%d):", len(r.Errors))) + "\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "  • %s\n", e)
		}
	}
	return b.String()
}

// fetchJob fetches the current job status.
// Runs in a separate goroutine (command) to avoid blocking Update().
func (m progressModel) fetchJob() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		job, err := m.source.GetJob(ctx, m.jobID)
		return jobUpdateMsg{job: job, err: err}
	}
}

// tickCmd returns a command that sends a tick after the poll interval.
func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// RunJobProgress runs the interactive progress UI for a job.
// Returns nil on success or Ctrl+C, error on job failure.
func RunJobProgress(src JobSource, job *client.Job, background bool) error {
	model := newProgressModel(src, job, background)
	p := tea.NewProgram(model)

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
