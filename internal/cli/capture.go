package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/vaultbot/internal/client"
	"github.com/raphaelgruber/vaultbot/internal/models"
	"github.com/raphaelgruber/vaultbot/internal/service"
)

var (
	captureFile      string
	captureKind      string
	captureSubfolder string
	captureSource    string
	captureDuration  time.Duration
	captureJSON      bool
)

var captureCmd = &cobra.Command{
	Use:   "capture [text...]",
	Short: "Analyze content and save it as a note",
	Long: `Analyze content and save it as a note in the incoming folder.

Text is taken from the arguments or, when none are given, from stdin.
URLs in the text are fetched and summarized. With --file the file is
saved as an attachment (photo, document or voice) and the text becomes
its caption.

Examples:
  vaultbot capture "Idea: cache invalidation via event log"
  pbpaste | vaultbot capture --subfolder Reading
  vaultbot capture --file whiteboard.jpg "sprint planning"
  vaultbot capture --file memo.ogg --kind voice --duration 42s`,
	RunE: runCapture,
}

func init() {
	captureCmd.Flags().StringVarP(&captureFile, "file", "f", "", "attachment to capture")
	captureCmd.Flags().StringVarP(&captureKind, "kind", "k", "", "attachment kind: photo, document or voice (default from extension)")
	captureCmd.Flags().StringVarP(&captureSubfolder, "subfolder", "s", "", "folder below the incoming folder")
	captureCmd.Flags().StringVar(&captureSource, "source", "cli", "source label recorded in the note")
	captureCmd.Flags().DurationVar(&captureDuration, "duration", 0, "voice message length")
	captureCmd.Flags().BoolVar(&captureJSON, "json", false, "print the result as JSON")
}

func runCapture(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	var text string
	if captureFile == "" || len(args) > 0 {
		var err error
		if text, err = readText(args, cmd.InOrStdin()); err != nil {
			return err
		}
	}
	kind, err := attachmentKind(captureFile, captureKind)
	if err != nil {
		return err
	}

	var saved *models.SavedNote
	if c := remote(); c != nil {
		saved, err = captureRemote(ctx, c, text, kind)
	} else {
		saved, err = captureLocal(ctx, text, kind)
	}
	if err != nil {
		return err
	}

	if captureJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(saved)
	}
	printSaved(out, saved)
	return nil
}

func captureLocal(ctx context.Context, text string, kind models.ContentType) (*models.SavedNote, error) {
	a, err := getApp()
	if err != nil {
		return nil, err
	}
	msg := service.Message{
		Text:      text,
		Source:    captureSource,
		Subfolder: captureSubfolder,
	}
	if captureFile != "" {
		data, err := os.ReadFile(captureFile)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		msg.Media = &service.Media{
			Kind:     kind,
			Filename: filepath.Base(captureFile),
			Data:     data,
			Duration: captureDuration,
		}
	}
	saved, err := a.Pipeline.Capture(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("not saved: %w", err)
	}
	return &saved, nil
}

func captureRemote(ctx context.Context, c *client.Client, text string, kind models.ContentType) (*models.SavedNote, error) {
	if captureFile == "" {
		return c.Capture(ctx, client.Message{Text: text, Source: captureSource, Subfolder: captureSubfolder})
	}
	return c.UploadFile(ctx, client.Upload{
		Path:      captureFile,
		Kind:      string(kind),
		Text:      text,
		Source:    captureSource,
		Subfolder: captureSubfolder,
		Duration:  captureDuration,
	})
}

// attachmentKind resolves --kind, falling back to the file extension.
func attachmentKind(path, kind string) (models.ContentType, error) {
	if path == "" {
		return "", nil
	}
	if kind != "" {
		switch k := models.ContentType(strings.ToLower(kind)); k {
		case models.ContentPhoto, models.ContentDocument, models.ContentVoice:
			return k, nil
		default:
			return "", fmt.Errorf("invalid --kind %q: use photo, document or voice", kind)
		}
	}
	if k, ok := service.MediaKind(path); ok {
		return k, nil
	}
	return "", fmt.Errorf("cannot tell attachment kind of %s; pass --kind", filepath.Base(path))
}
