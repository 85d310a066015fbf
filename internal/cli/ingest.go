package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/raphaelgruber/vaultbot/internal/client"
	"github.com/raphaelgruber/vaultbot/internal/service"
)

var (
	ingestRecursive   bool
	ingestDryRun      bool
	ingestNoProgress  bool
	ingestSubfolder   string
	ingestSource      string
	ingestConcurrency int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <directory>",
	Short: "Capture every supported file in a directory",
	Long: `Capture every supported file in a directory as its own note.

Text files (.md, .markdown, .txt) become text captures; images, PDFs and
audio files become attachments. Hidden files are skipped. Per-file
failures are reported at the end; an authentication or quota error from
the AI backend stops the run.

With --server the directory is read on the server host and the command
starts a background job there.

Examples:
  vaultbot ingest ~/Downloads/clippings
  vaultbot ingest ./notes -r --subfolder Imported
  vaultbot ingest ./notes --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestRecursive, "recursive", "r", false, "descend into subdirectories")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "list the files that would be captured")
	ingestCmd.Flags().BoolVar(&ingestNoProgress, "no-progress", false, "disable the progress display")
	ingestCmd.Flags().StringVarP(&ingestSubfolder, "subfolder", "s", "", "folder below the incoming folder")
	ingestCmd.Flags().StringVar(&ingestSource, "source", "import", "source label recorded in the notes")
	ingestCmd.Flags().IntVar(&ingestConcurrency, "concurrency", 0, "parallel captures (default from config)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	dir := args[0]
	opts := service.IngestOptions{
		Source:      ingestSource,
		Subfolder:   ingestSubfolder,
		Recursive:   ingestRecursive,
		Concurrency: ingestConcurrency,
	}

	if c := remote(); c != nil {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return err
		}
		job, err := c.IngestDirectoryAsync(ctx, abs, client.IngestOptions{
			Recursive: opts.Recursive,
			Source:    opts.Source,
			Subfolder: opts.Subfolder,
		})
		if err != nil {
			return fmt.Errorf("start ingest: %w", err)
		}
		if !showProgress(cmd) {
			fmt.Fprintf(cmd.OutOrStdout(), "Started job %s (%d files)\n", job.ID, job.Total)
			return nil
		}
		return RunJobProgress(c, job, true)
	}

	a, err := getApp()
	if err != nil {
		return err
	}

	if ingestDryRun {
		files, err := a.Ingest.CollectFiles(dir, opts.Recursive)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, f := range files {
			fmt.Fprintln(out, f)
		}
		fmt.Fprintf(out, "%d files would be captured\n", len(files))
		return nil
	}

	if showProgress(cmd) {
		job, err := a.Ingest.IngestDirectoryAsync(a.Jobs, dir, opts)
		if err != nil {
			return err
		}
		return RunJobProgress(localJobs{a.Jobs}, toClientJob(job.Snapshot()), false)
	}

	result, err := a.Ingest.IngestDirectory(ctx, dir, opts)
	if result != nil {
		fmt.Fprint(cmd.OutOrStdout(), formatResult(defaultTheme, &client.IngestResult{
			FilesProcessed: result.FilesProcessed,
			NotesCreated:   result.NotesCreated,
			Errors:         result.Errors,
		}))
	}
	return err
}

// showProgress reports whether the interactive progress display is wanted.
func showProgress(cmd *cobra.Command) bool {
	if ingestNoProgress {
		return false
	}
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
