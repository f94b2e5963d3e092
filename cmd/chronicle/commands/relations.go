package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scrypster/chronicle/internal/engine"
	"github.com/scrypster/chronicle/internal/storage"
	"github.com/scrypster/chronicle/pkg/types"
)

func newRelationsCmd(a *app) *cobra.Command {
	var (
		direction string
		hops      int
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "relations <type> <id>",
		Short: "List an entity's relationships",
		Long: `List an entity's relationships. With --hops greater than one the
surrounding graph is walked instead, within the configured bounds.

Examples:
  chronicle relations character lintian
  chronicle relations character:lintian --direction outgoing
  chronicle relations character:lintian --hops 2 --json`,
		Args: refArgs,
	}
	cmd.Flags().StringVar(&direction, "direction", string(types.DirectionBoth), "both, outgoing or incoming")
	cmd.Flags().IntVar(&hops, "hops", 1, "Graph walk depth")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	cmd.RunE = a.withEngine(func(cmd *cobra.Command, args []string, eng *engine.Engine) error {
		ref, err := parseRef(args)
		if err != nil {
			return err
		}

		if hops > 1 {
			sub, err := eng.Neighborhood(cmd.Context(), ref, storage.GraphBounds{MaxHops: hops})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), sub)
			}
			if err := printRelationships(cmd, sub.Edges); err != nil {
				return err
			}
			if sub.Truncated {
				fmt.Fprintf(cmd.OutOrStdout(), "(truncated: %s)\n", sub.Reason)
			}
			return nil
		}

		dir := types.Direction(direction)
		switch dir {
		case types.DirectionBoth, types.DirectionOutgoing, types.DirectionIncoming:
		default:
			return fmt.Errorf("unknown direction %q", direction)
		}
		rels, err := eng.Relationships(cmd.Context(), ref, dir)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), rels)
		}
		return printRelationships(cmd, rels)
	})
	return cmd
}

func printRelationships(cmd *cobra.Command, rels []types.Relationship) error {
	if len(rels) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No relationships")
		return nil
	}
	tw := newTable(cmd.OutOrStdout())
	fmt.Fprintln(tw, "FROM\tTYPE\tTO\tCHAPTER\tDESCRIPTION")
	for _, r := range rels {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.From, r.Type, r.To, r.Chapter, truncate(r.Description, 40))
	}
	return tw.Flush()
}
