package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/vaultbot/internal/metrics"
	"github.com/raphaelgruber/vaultbot/internal/service"
)

var (
	statsSince time.Duration
	statsJSON  bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-provider analysis statistics",
	Long: `Show analysis statistics.

Locally this reads the SQLite evaluation store (audit.sqlite_path); with
--server it also includes the server's in-process timings.

Examples:
  vaultbot stats
  vaultbot stats --since 168h`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().DurationVar(&statsSince, "since", 24*time.Hour, "time window")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print raw JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	var st service.Stats
	if c := remote(); c != nil {
		raw, err := c.Stats(ctx, statsSince)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &st); err != nil {
			return fmt.Errorf("decode stats: %w", err)
		}
	} else {
		a, err := getApp()
		if err != nil {
			return err
		}
		if a.Store == nil && !statsJSON {
			fmt.Fprintln(out, defaultTheme.hintStyle().Render("audit.sqlite_path is not set; only this process is counted"))
		}
		if st, err = a.Stats(ctx, time.Now().Add(-statsSince)); err != nil {
			return err
		}
	}

	if statsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	printStats(out, st)
	return nil
}

func printStats(out io.Writer, st service.Stats) {
	fmt.Fprintf(out, "Provider: %s (%s)\n", st.Provider, st.Model)

	if len(st.Providers) > 0 {
		fmt.Fprintf(out, "\n%-10s %-16s %7s %7s %7s %8s %9s %9s %9s\n",
			"PROVIDER", "OPERATION", "CALLS", "ERRORS", "PARSE", "AVG S", "IN TOK", "OUT TOK", "COST $")
		fmt.Fprintln(out, "------------------------------------------------------------------------------------------")
		for _, p := range st.Providers {
			fmt.Fprintf(out, "%-10s %-16s %7d %7d %7d %8.2f %9d %9d %9.4f\n",
				p.Provider, p.Operation, p.Calls, p.Errors, p.ParseFails, p.AvgElapsed, p.InputTokens, p.OutputTokens, p.CostUSD)
		}
	}

	ops := []struct {
		name string
		op   *metrics.OperationSnapshot
	}{
		{"analyze", st.Metrics.Analyze},
		{"summarize", st.Metrics.Summarize},
		{"suggest_tags", st.Metrics.SuggestTags},
		{"suggest_folder", st.Metrics.SuggestFolder},
		{"find_connections", st.Metrics.FindConnections},
		{"vault_write", st.Metrics.VaultWrite},
		{"article_fetch", st.Metrics.ArticleFetch},
		{"ocr", st.Metrics.OCR},
	}
	header := false
	for _, o := range ops {
		if o.op == nil {
			continue
		}
		if !header {
			fmt.Fprintf(out, "\n%-18s %8s %8s %10s %10s\n", "OPERATION", "COUNT", "FAILED", "AVG MS", "MAX MS")
			header = true
		}
		fmt.Fprintf(out, "%-18s %8d %8d %10.1f %10d\n", o.name, o.op.Count, o.op.Failures, o.op.AvgTimeMs, o.op.MaxTimeMs)
	}
}
