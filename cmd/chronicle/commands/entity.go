package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scrypster/chronicle/internal/engine"
	"github.com/scrypster/chronicle/pkg/types"
)

func newEntityCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entity",
		Short: "Inspect entities",
	}
	cmd.AddCommand(newEntityGetCmd(a), newEntityHistoryCmd(a))
	return cmd
}

func newEntityGetCmd(a *app) *cobra.Command {
	var (
		at     int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "get <type> <id>",
		Short: "Show an entity's current state, or its state as of a chapter",
		Long: `Show an entity's current state, or its state as of a chapter.

Examples:
  chronicle entity get character lintian
  chronicle entity get character:lintian --at 25`,
		Args: refArgs,
	}
	cmd.Flags().IntVar(&at, "at", 0, "Replay state as of this chapter")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	cmd.RunE = a.withEngine(func(cmd *cobra.Command, args []string, eng *engine.Engine) error {
		ref, err := parseRef(args)
		if err != nil {
			return err
		}
		var ent *types.Entity
		if at > 0 {
			ent, err = eng.EntityAt(cmd.Context(), ref, at)
		} else {
			ent, err = eng.Entity(cmd.Context(), ref)
		}
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), ent)
		}
		printEntity(cmd.OutOrStdout(), ent)
		return nil
	})
	return cmd
}

func newEntityHistoryCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history <type> <id>",
		Short: "List an entity's recorded changes",
		Args:  refArgs,
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	cmd.RunE = a.withEngine(func(cmd *cobra.Command, args []string, eng *engine.Engine) error {
		ref, err := parseRef(args)
		if err != nil {
			return err
		}
		history, err := eng.History(cmd.Context(), ref)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), history)
		}

		tw := newTable(cmd.OutOrStdout())
		fmt.Fprintln(tw, "CHAPTER\tFIELD\tOLD\tNEW\tREASON")
		for _, c := range history {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
				c.Chapter, c.Field, truncate(valueString(c.OldValue), 30), truncate(valueString(c.NewValue), 30), c.Reason)
		}
		return tw.Flush()
	})
	return cmd
}

func printEntity(w io.Writer, e *types.Entity) {
	fmt.Fprintf(w, "%s (%s)\n", e.CanonicalName, e.Ref())
	fmt.Fprintf(w, "  tier:        %s\n", e.Tier)
	if e.IsProtagonist {
		fmt.Fprintln(w, "  protagonist: yes")
	}
	if e.Description != "" {
		fmt.Fprintf(w, "  description: %s\n", e.Description)
	}
	if e.Status != "" {
		fmt.Fprintf(w, "  status:      %s\n", e.Status)
	}
	if len(e.Aliases) > 0 {
		fmt.Fprintf(w, "  aliases:     %s\n", strings.Join(e.Aliases, ", "))
	}
	fmt.Fprintf(w, "  appearances: %d-%d\n", e.FirstAppearance, e.LastAppearance)
	if e.Archived {
		fmt.Fprintln(w, "  archived:    yes")
	}
	keys := e.Current.Keys()
	if len(keys) == 0 {
		return
	}
	fmt.Fprintln(w, "  state:")
	for _, k := range keys {
		fmt.Fprintf(w, "    %s: %s\n", k, e.Current[k])
	}
}
