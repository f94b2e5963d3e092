package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scrypster/chronicle/internal/engine"
)

func newContextCmd(a *app) *cobra.Command {
	var (
		budget   int
		template string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "context <chapter>",
		Short: "Build the writing context for a chapter",
		Long: `Build the token-budgeted context package for writing a chapter. Only
chapters before it are used.

Templates: plot, battle, emotion, transition.

Examples:
  chronicle context 31
  chronicle context 31 --template battle --budget 4000
  chronicle context 31 --json > ctx.json`,
		Args: cobra.ExactArgs(1),
	}
	cmd.Flags().IntVar(&budget, "budget", 0, "Token budget (default from config)")
	cmd.Flags().StringVar(&template, "template", "", "Section template (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	cmd.RunE = a.withEngine(func(cmd *cobra.Command, args []string, eng *engine.Engine) error {
		chapter, err := parseChapter(args[0])
		if err != nil {
			return err
		}
		pkg, err := eng.BuildContext(cmd.Context(), chapter, engine.ContextOptions{Budget: budget, Template: template})
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), pkg)
		}
		fmt.Fprint(cmd.OutOrStdout(), pkg.Render())
		return nil
	})
	return cmd
}
