package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scrypster/chronicle/internal/engine"
	"github.com/scrypster/chronicle/pkg/types"
)

func newPendingCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Review uncertain mention resolutions",
		Long: `Review mention resolutions that were adopted with a warning or held for
review during ingestion.

Examples:
  chronicle pending list
  chronicle pending confirm 5f1c...            # accept the recorded pick
  chronicle pending confirm 5f1c... character:lintian
  chronicle pending dismiss 5f1c...`,
	}
	cmd.AddCommand(newPendingListCmd(a), newPendingConfirmCmd(a), newPendingDismissCmd(a))
	return cmd
}

func newPendingListCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open items",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	cmd.RunE = a.withEngine(func(cmd *cobra.Command, args []string, eng *engine.Engine) error {
		open, err := eng.Pending(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), open)
		}
		if len(open) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing pending")
			return nil
		}

		tw := newTable(cmd.OutOrStdout())
		fmt.Fprintln(tw, "ID\tCHAPTER\tMENTION\tTIER\tCHOSEN\tCONFIDENCE\tCONTEXT")
		for _, d := range open {
			chosen := "-"
			if !d.Chosen.IsZero() {
				chosen = d.Chosen.String()
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%.2f\t%s\n",
				d.ID, d.Chapter, d.Mention, d.Tier, chosen, d.Confidence, truncate(d.Context, 30))
		}
		return tw.Flush()
	})
	return cmd
}

func newPendingConfirmCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confirm <id> [type:id]",
		Short: "Confirm an item, optionally choosing a different entity",
		Args:  cobra.RangeArgs(1, 2),
	}
	cmd.RunE = a.withEngine(func(cmd *cobra.Command, args []string, eng *engine.Engine) error {
		id := args[0]
		var ref types.EntityRef
		if len(args) == 2 {
			var err error
			if ref, err = types.ParseEntityRef(args[1]); err != nil {
				return err
			}
		} else {
			rec, err := findPending(cmd, eng, id)
			if err != nil {
				return err
			}
			if rec.Chosen.IsZero() {
				return fmt.Errorf("item %s has no recorded pick; name the entity explicitly", id)
			}
			ref = rec.Chosen
		}

		if err := eng.ResolvePending(cmd.Context(), id, ref); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Confirmed %s as %s\n", id, ref)
		return nil
	})
	return cmd
}

func newPendingDismissCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dismiss <id>",
		Short: "Close an item without applying it",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = a.withEngine(func(cmd *cobra.Command, args []string, eng *engine.Engine) error {
		if err := eng.DismissPending(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Dismissed %s\n", args[0])
		return nil
	})
	return cmd
}

func findPending(cmd *cobra.Command, eng *engine.Engine, id string) (*types.DisambiguationRecord, error) {
	open, err := eng.Pending(cmd.Context())
	if err != nil {
		return nil, err
	}
	for i := range open {
		if open[i].ID == id {
			return &open[i], nil
		}
	}
	return nil, &types.NotFoundError{Kind: "disambiguation", Mention: id}
}
