package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/vaultbot/internal/client"
)

var jobsFollow bool

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List or inspect background jobs on a server",
	Long: `List all background jobs or inspect a specific job by ID.

Jobs run inside vaultbot-server, so this command needs --server.

Examples:
  vaultbot --server http://nas:8585 jobs           # List all jobs
  vaultbot --server http://nas:8585 jobs abc123    # Show details for job abc123
  vaultbot --server http://nas:8585 jobs abc123 -f # Stream updates until done`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

func init() {
	jobsCmd.Flags().BoolVarP(&jobsFollow, "follow", "f", false, "stream updates until the job finishes")
}

func runJobs(cmd *cobra.Command, args []string) error {
	c := remote()
	if c == nil {
		return errors.New("jobs run on a server; pass --server")
	}
	ctx := context.Background()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		return listJobs(ctx, out, c)
	}
	if jobsFollow {
		return c.WatchJob(ctx, args[0], func(j *client.Job) error {
			fmt.Fprintf(out, "[%s] %d/%d files\n", j.Status, j.Progress, j.Total)
			if j.Done() {
				showJob(out, j)
			}
			return nil
		})
	}

	job, err := c.GetJob(ctx, args[0])
	if errors.Is(err, client.ErrNotFound) {
		return fmt.Errorf("job not found: %s", args[0])
	}
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}
	showJob(out, job)
	return nil
}

func listJobs(ctx context.Context, out io.Writer, c *client.Client) error {
	jobs, err := c.ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found")
		return nil
	}

	fmt.Fprintf(out, "%-10s %-10s %-12s %-10s %s\n", "ID", "TYPE", "STATUS", "PROGRESS", "STARTED")
	fmt.Fprintln(out, "------------------------------------------------------------------------")
	for _, job := range jobs {
		progress := ""
		if job.Total > 0 {
			progress = fmt.Sprintf("%d/%d", job.Progress, job.Total)
		}
		started := job.StartedAt.Format("15:04:05")
		fmt.Fprintf(out, "%-10s %-10s %-12s %-10s %s\n", job.ID, job.Type, job.Status, progress, started)
	}
	return nil
}

func showJob(out io.Writer, job *client.Job) {
	fmt.Fprintf(out, "Job: %s\n", job.ID)
	fmt.Fprintf(out, "  Type: %s\n", job.Type)
	fmt.Fprintf(out, "  Status: %s\n", job.Status)
	fmt.Fprintf(out, "  Directory: %s\n", job.DirPath)
	if job.Total > 0 {
		fmt.Fprintf(out, "  Progress: %d/%d\n", job.Progress, job.Total)
	}
	fmt.Fprintf(out, "  Started: %s\n", job.StartedAt.Format(time.RFC3339))
	if job.CompletedAt != nil {
		fmt.Fprintf(out, "  Completed: %s\n", job.CompletedAt.Format(time.RFC3339))
		fmt.Fprintf(out, "  Duration: %s\n", job.CompletedAt.Sub(job.StartedAt).Round(time.Second))
	}
	if job.Error != "" {
		fmt.Fprintf(out, "  Error: %s\n", job.Error)
	}
	if job.Result != nil {
		fmt.Fprintln(out, "\nResult:")
		fmt.Fprint(out, formatResult(defaultTheme, job.Result))
	}
}
