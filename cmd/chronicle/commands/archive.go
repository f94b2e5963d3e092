package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scrypster/chronicle/internal/engine"
)

func newArchiveCmd(a *app) *cobra.Command {
	var chapter int
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Archive entities that have been inactive for too long",
		Long: `Archive non-core entities that have not appeared for the configured
number of chapters. Archived entities stay resolvable and come back on
their next update.`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().IntVar(&chapter, "chapter", 0, "Current chapter (default: latest ingested)")

	cmd.RunE = a.withEngine(func(cmd *cobra.Command, args []string, eng *engine.Engine) error {
		if chapter <= 0 {
			rec, err := eng.Progress()
			if err != nil {
				return err
			}
			chapter = rec.CurrentChapter
		}
		if chapter <= 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No chapters ingested yet")
			return nil
		}
		n, err := eng.Archive(cmd.Context(), chapter)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Archived %d entities as of chapter %d\n", n, chapter)
		return nil
	})
	return cmd
}
