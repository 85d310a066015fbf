package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/vaultbot/internal/models"
)

var (
	foldersDepth    int
	relatedTags     []string
	relatedEntities []string
	relatedLimit    int
	searchLimit     int
)

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "List vault folders",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var folders []string
		if c := remote(); c != nil {
			var err error
			if folders, err = c.ListFolders(context.Background(), foldersDepth); err != nil {
				return err
			}
		} else {
			a, err := getApp()
			if err != nil {
				return err
			}
			depth := foldersDepth
			if depth <= 0 {
				depth = cfg.Vault.FolderDepth
			}
			folders = a.Writer.ListFolders(depth)
		}

		out := cmd.OutOrStdout()
		if len(folders) == 0 {
			fmt.Fprintln(out, "No folders in vault")
			return nil
		}
		for _, f := range folders {
			indent := strings.Repeat("  ", strings.Count(f, "/"))
			fmt.Fprintf(out, "%s%s\n", indent, f[strings.LastIndex(f, "/")+1:])
		}
		return nil
	},
}

var relatedCmd = &cobra.Command{
	Use:   "related",
	Short: "Find notes that share tags or mention entities",
	Long: `Find notes that share tags or mention entities.

A tag scores 2 when a note contains it as "#tag" or "- tag". An entity
scores 0.5 per mention, at most 2.

Examples:
  vaultbot related --tag golang --tag concurrency
  vaultbot related --entity Redis --limit 10`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(relatedTags) == 0 && len(relatedEntities) == 0 {
			return fmt.Errorf("pass at least one --tag or --entity")
		}
		ctx := context.Background()

		var (
			notes []models.RelatedNote
			err   error
		)
		if c := remote(); c != nil {
			notes, err = c.Related(ctx, relatedTags, relatedEntities, relatedLimit)
		} else {
			a, aerr := getApp()
			if aerr != nil {
				return aerr
			}
			notes, err = a.Finder.Related(ctx, relatedTags, relatedEntities, relatedLimit)
		}
		if err != nil {
			return err
		}
		printNotes(cmd.OutOrStdout(), notes)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search note text",
	Long: `Search note text, ignoring case. Queries need at least three characters.

Examples:
  vaultbot search "event sourcing"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		if len([]rune(query)) < 3 {
			return fmt.Errorf("query must be at least 3 characters")
		}
		ctx := context.Background()

		var (
			notes []models.RelatedNote
			err   error
		)
		if c := remote(); c != nil {
			notes, err = c.Search(ctx, query, searchLimit)
		} else {
			a, aerr := getApp()
			if aerr != nil {
				return aerr
			}
			notes, err = a.Finder.Search(ctx, query, searchLimit)
		}
		if err != nil {
			return err
		}
		printNotes(cmd.OutOrStdout(), notes)
		return nil
	},
}

func init() {
	foldersCmd.Flags().IntVarP(&foldersDepth, "depth", "d", 0, "maximum depth (default from config)")

	relatedCmd.Flags().StringSliceVarP(&relatedTags, "tag", "t", nil, "tags to match")
	relatedCmd.Flags().StringSliceVarP(&relatedEntities, "entity", "e", nil, "entities to count")
	relatedCmd.Flags().IntVarP(&relatedLimit, "limit", "n", 5, "maximum number of notes")

	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "maximum number of notes")
}
