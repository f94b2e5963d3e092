package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scrypster/chronicle/internal/engine"
	"github.com/scrypster/chronicle/internal/resolver"
)

func newResolveCmd(a *app) *cobra.Command {
	var (
		typ      string
		location string
		chapter  int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "resolve <mention>",
		Short: "Rank the entities a mention could refer to",
		Long: `Rank the entities a mention could refer to and show the action tier
ingestion would take for it.

Examples:
  chronicle resolve 林公子
  chronicle resolve 宗主 --type character --location 天云宗`,
		Args: cobra.ExactArgs(1),
	}
	cmd.Flags().StringVar(&typ, "type", "", "Restrict to one entity type")
	cmd.Flags().StringVar(&location, "location", "", "Scene location used as a proximity hint")
	cmd.Flags().IntVar(&chapter, "chapter", 0, "Chapter the mention occurs in (default: next chapter)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	cmd.RunE = a.withEngine(func(cmd *cobra.Command, args []string, eng *engine.Engine) error {
		t, err := parseEntityType(typ)
		if err != nil {
			return err
		}
		if chapter <= 0 {
			rec, err := eng.Progress()
			if err != nil {
				return err
			}
			chapter = rec.CurrentChapter + 1
		}

		d, err := eng.Resolve(cmd.Context(), args[0], resolver.Hints{Type: t, SceneLocation: location, Chapter: chapter})
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), d)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%q: %s", args[0], d.Tier)
		if !d.Chosen.IsZero() {
			fmt.Fprintf(out, " -> %s", d.Chosen)
		}
		fmt.Fprintln(out)
		if len(d.Resolution.Candidates) == 0 {
			return nil
		}
		tw := newTable(out)
		fmt.Fprintln(tw, "ENTITY\tNAME\tCONFIDENCE\tMATCH\tREASON")
		for _, c := range d.Resolution.Candidates {
			fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\n", c.Ref, c.Name, c.Confidence, c.Match, c.Reason)
		}
		return tw.Flush()
	})
	return cmd
}
