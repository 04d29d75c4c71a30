package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/metaport/internal/catalog"
	"github.com/dbsmedya/metaport/internal/config"
	"github.com/dbsmedya/metaport/internal/graph"
	"github.com/dbsmedya/metaport/internal/schema"
)

var validateConnect bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Validate checks the configuration file for problems before a run.

Checks performed:
  - Endpoint URLs and credentials are present and well-formed
  - Processing, retry, and logging settings are in range
  - import_order does not contradict the dependency graph
  - With --connect, both catalog instances are reachable

Example:
  metaport validate --config metaport.yaml --connect`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateConnect, "connect", false,
		"Also verify that the source and target catalogs are reachable")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	reg := schema.Default()
	hint := make([]schema.Kind, 0, len(cfg.Import.ImportOrder))
	for _, name := range cfg.Import.ImportOrder {
		kind, err := reg.ParseKind(name)
		if err != nil {
			return fmt.Errorf("invalid import_order: %w", err)
		}
		hint = append(hint, kind)
	}
	if err := graph.ValidateOrderHint(reg, hint); err != nil {
		return fmt.Errorf("invalid import_order: %w", err)
	}

	if validateConnect {
		manager := catalog.NewManager(cfg)
		if err := manager.Connect(context.Background()); err != nil {
			return err
		}
		fmt.Fprintln(outputWriter, "Source and target catalogs are reachable")
	}

	fmt.Fprintf(outputWriter, "Configuration %s is valid\n", configFile)
	return nil
}
