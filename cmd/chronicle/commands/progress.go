package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scrypster/chronicle/internal/engine"
)

func newProgressCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show the progress record and pacing alerts",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	cmd.RunE = a.withEngine(func(cmd *cobra.Command, args []string, eng *engine.Engine) error {
		rec, err := eng.Progress()
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), rec)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Chapter:     %d\n", rec.CurrentChapter)
		fmt.Fprintf(out, "Total words: %d\n", rec.TotalWords)
		if p := rec.Protagonist; p.ID != "" {
			fmt.Fprintf(out, "Protagonist: %s (%s)\n", p.Name, p.ID)
			if p.Realm != "" {
				fmt.Fprintf(out, "  realm:     %s %s\n", p.Realm, p.Layer)
			}
			if p.Location != "" {
				fmt.Fprintf(out, "  location:  %s\n", p.Location)
			}
		}
		fmt.Fprintf(out, "Pacing:      quest %d, fire %d, constellation %d\n",
			rec.Pacing.LastQuest, rec.Pacing.LastFire, rec.Pacing.LastConstellation)
		for _, al := range rec.Pacing.Alerts(rec.CurrentChapter + 1) {
			fmt.Fprintf(out, "  [%s] %s\n", al.Severity, al.Message)
		}
		return nil
	})
	return cmd
}
