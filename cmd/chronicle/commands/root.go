// Package commands implements the chronicle CLI.
package commands

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/scrypster/chronicle/internal/config"
	"github.com/scrypster/chronicle/internal/engine"
)

// app carries the global flags to every subcommand.
type app struct {
	dataDir    string
	configPath string
	verbose    bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "chronicle",
		Short: "Story-state memory for long-form fiction",
		Long: `Chronicle tracks the entities of a serialized story chapter by chapter.

Each chapter's extraction batch is applied atomically: new entities,
state changes, relationships and mention resolutions either all land or
none do. The recorded state can be queried at any chapter and packed into
a token-budgeted context for writing the next one.

Configuration comes from CHRONICLE_* environment variables (a .env file
in the working directory is loaded first) and an optional YAML file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.dataDir, "data", "", "Data directory (overrides CHRONICLE_DATA_DIR)")
	flags.StringVar(&a.configPath, "config", "", "YAML config file")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(
		newIngestCmd(a),
		newEntityCmd(a),
		newAliasCmd(a),
		newResolveCmd(a),
		newRelationsCmd(a),
		newContextCmd(a),
		newPendingCmd(a),
		newArchiveCmd(a),
		newProgressCmd(a),
		NewVersionCmd(),
	)
	return cmd
}

// loadConfig layers .env, the config file, and the flags.
func (a *app) loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.dataDir != "" {
		cfg.DataDir = a.dataDir
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// withEngine opens the engine around fn and closes it afterwards.
func (a *app) withEngine(fn func(cmd *cobra.Command, args []string, eng *engine.Engine) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := a.loadConfig()
		if err != nil {
			return err
		}
		eng, err := engine.Open(cmd.Context(), cfg, engine.Options{})
		if err != nil {
			return fmt.Errorf("opening engine: %w", err)
		}
		defer func() { _ = eng.Close() }()
		return fn(cmd, args, eng)
	}
}
