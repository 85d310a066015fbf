package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest <summary|tags|folder|connections> [text...]",
	Short: "Ask the AI backend for a single suggestion without saving",
	Long: `Ask the AI backend for a single suggestion without saving anything.

Text is taken from the arguments or stdin.

Examples:
  vaultbot suggest tags "Notes on the raft consensus algorithm"
  cat draft.md | vaultbot suggest folder
  cat draft.md | vaultbot suggest connections`,
	Args:      cobra.MinimumNArgs(1),
	ValidArgs: []string{"summary", "tags", "folder", "connections"},
	RunE:      runSuggest,
}

func runSuggest(cmd *cobra.Command, args []string) error {
	kind := args[0]
	text, err := readText(args[1:], cmd.InOrStdin())
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("no text to analyze")
	}

	a, err := getApp()
	if err != nil {
		return err
	}
	ctx := context.Background()
	out := cmd.OutOrStdout()
	p := a.Provider

	switch kind {
	case "summary":
		summary, err := p.Summarize(ctx, text, 50)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, summary)
	case "tags":
		tags, err := p.SuggestTags(ctx, text, cfg.AI.MaxTags)
		if err != nil {
			return err
		}
		for _, t := range tags {
			fmt.Fprintf(out, "#%s\n", t)
		}
	case "folder":
		folder, err := p.SuggestFolder(ctx, text, a.Writer.ListFolders(cfg.Vault.FolderDepth))
		if err != nil {
			return err
		}
		fmt.Fprintln(out, folder)
	case "connections":
		notes, err := a.Finder.Summaries(ctx, 50)
		if err != nil {
			return err
		}
		links, err := p.FindConnections(ctx, text, notes)
		if err != nil {
			return err
		}
		if len(links) == 0 {
			fmt.Fprintln(out, "No connections found")
		}
		for _, l := range links {
			fmt.Fprintf(out, "[[%s]]\n", l)
		}
	default:
		return fmt.Errorf("unknown suggestion %q: use summary, tags, folder or connections", kind)
	}
	return nil
}
