package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/vaultbot/internal/models"
	"github.com/raphaelgruber/vaultbot/internal/service"
	"github.com/raphaelgruber/vaultbot/internal/watcher"
)

var (
	watchArchive   string
	watchSubfolder string
	watchSource    string
)

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Capture files dropped into a folder",
	Long: `Watch a drop folder and capture every supported file placed in it.

Captured files move to the archive folder (default: .processed inside the
drop folder); files that fail move to its failed/ subfolder. Runs until
interrupted.

Examples:
  vaultbot watch ~/Dropbox/inbox
  vaultbot watch --archive ~/Archive/inbox`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchArchive, "archive", "", "where processed files go (default from config)")
	watchCmd.Flags().StringVarP(&watchSubfolder, "subfolder", "s", "", "folder below the incoming folder")
	watchCmd.Flags().StringVar(&watchSource, "source", "watch", "source label recorded in the notes")
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := cfg.Watch.Dir
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		return errors.New("no drop folder: pass a directory or set watch.dir")
	}
	archive := cfg.Watch.ArchiveDir
	if watchArchive != "" {
		archive = watchArchive
	}

	a, err := getApp()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	w := watcher.New(dir, archive, a.Ingest,
		watcher.WithLogger(a.Logger),
		watcher.WithIngestOptions(service.IngestOptions{Source: watchSource, Subfolder: watchSubfolder}),
		watcher.WithResultFunc(func(path string, saved models.SavedNote, err error) {
			if err != nil {
				fmt.Fprintln(out, defaultTheme.errorStyle().Render(fmt.Sprintf("✗ %s: %v", path, err)))
				return
			}
			fmt.Fprintln(out, defaultTheme.completedStyle().Render("✓ "+saved.Path))
		}))

	fmt.Fprintln(out, defaultTheme.hintStyle().Render(fmt.Sprintf("Watching %s (Ctrl+C to stop)", dir)))
	return w.Run(ctx)
}
