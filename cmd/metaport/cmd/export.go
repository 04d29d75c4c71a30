package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/metaport/internal/catalog"
	"github.com/dbsmedya/metaport/internal/config"
	"github.com/dbsmedya/metaport/internal/lock"
	"github.com/dbsmedya/metaport/internal/logger"
	"github.com/dbsmedya/metaport/internal/migrate"
	"github.com/dbsmedya/metaport/internal/render"
	"github.com/dbsmedya/metaport/internal/schema"
)

var (
	exportOutputDir string
	exportEntities  []string
	exportNames     []string
	exportClear     bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export metadata from the source catalog to NDJSON files",
	Long: `Export reads the selected entities from the source catalog and writes
one NDJSON file per entity kind into the output directory, together with
a summary manifest.

The selection comes from the configuration: everything by default, only
the entities linked to the configured domains when selective.domains is
set, or an explicit name set via repeated --name flags.

Example:
  metaport export --config metaport.yaml --output-dir ./artifacts`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutputDir, "output-dir", "o", "",
		"Override output directory for artifact files")
	exportCmd.Flags().StringSliceVar(&exportEntities, "entity", nil,
		"Entity kind to export (repeatable, overrides entities config)")
	exportCmd.Flags().StringSliceVar(&exportNames, "name", nil,
		"Export only entities with this fully qualified name (repeatable)")
	exportCmd.Flags().BoolVar(&exportClear, "clear", false,
		"Remove existing artifact files from the output directory first")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat,
		overrides.BatchSize, overrides.MaxWorkers)
	if exportOutputDir != "" {
		cfg.Export.OutputDir = exportOutputDir
	}
	applyEntityFlags(cfg, exportEntities)

	if err := cfg.ValidateExport(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Warn("Received shutdown signal - stopping export...")
		cancel()
	}()

	runLock, err := lock.Acquire(cfg.Export.OutputDir)
	if err != nil {
		return err
	}
	defer runLock.Release()

	if exportClear {
		if err := migrate.ClearArtifacts(cfg.Export.OutputDir); err != nil {
			return err
		}
		log.Infow("Cleared existing artifacts", "output_dir", cfg.Export.OutputDir)
	}

	manager := catalog.NewManager(cfg)
	if err := manager.ConnectSource(ctx); err != nil {
		return err
	}

	exporter := migrate.NewExporter(cfg, schema.Default(), manager.Source, log)
	exporter.ExplicitNames = exportNames

	manifest, err := exporter.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("Export cancelled by user")
			return nil
		}
		return fmt.Errorf("export failed: %w", err)
	}

	render.ExportSummary(outputWriter, manifest)
	return nil
}

// applyEntityFlags replaces the configured entity set when --entity flags
// are given.
func applyEntityFlags(cfg *config.Config, entities []string) {
	if len(entities) == 0 {
		return
	}
	cfg.Entities = make(map[string]bool, len(entities))
	for _, name := range entities {
		cfg.Entities[name] = true
	}
}
