package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scrypster/chronicle/internal/engine"
)

func newAliasCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alias",
		Short: "Look up or rebuild the alias index",
	}
	cmd.AddCommand(newAliasResolveCmd(a), newAliasRebuildCmd(a))
	return cmd
}

func newAliasResolveCmd(a *app) *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "resolve <alias>",
		Short: "List the entities registered under an alias",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().StringVar(&typ, "type", "", "Restrict to one entity type")

	cmd.RunE = a.withEngine(func(cmd *cobra.Command, args []string, eng *engine.Engine) error {
		t, err := parseEntityType(typ)
		if err != nil {
			return err
		}
		refs, err := eng.ResolveAlias(cmd.Context(), args[0], t)
		if err != nil {
			return err
		}
		if len(refs) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No entity is known as %q\n", args[0])
			return nil
		}
		for _, ref := range refs {
			fmt.Fprintln(cmd.OutOrStdout(), ref)
		}
		return nil
	})
	return cmd
}

func newAliasRebuildCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Regenerate the alias index from the entity records",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.withEngine(func(cmd *cobra.Command, args []string, eng *engine.Engine) error {
		n, err := eng.RebuildAliases(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Alias index rebuilt: %d entries\n", n)
		return nil
	})
	return cmd
}
