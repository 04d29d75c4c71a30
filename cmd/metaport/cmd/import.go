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
	importInputDir string
	importEntities []string
	importDryRun   bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import NDJSON artifact files into the target catalog",
	Long: `Import replays previously exported artifact files into the target
catalog. Entity kinds are processed in dependency order so referenced
entities exist before the entities that point at them.

Each record is created or updated by its fully qualified name, making
reruns of the same artifacts safe. With --dry-run the full outcome is
computed and reported without writing anything.

Example:
  metaport import --config metaport.yaml --input-dir ./artifacts --dry-run`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importInputDir, "input-dir", "i", "",
		"Override input directory containing artifact files")
	importCmd.Flags().StringSliceVar(&importEntities, "entity", nil,
		"Entity kind to import (repeatable, overrides entities config)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false,
		"Report what would happen without writing to the target")

	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat,
		overrides.BatchSize, overrides.MaxWorkers)
	if importInputDir != "" {
		cfg.Import.InputDir = importInputDir
	}
	applyEntityFlags(cfg, importEntities)

	if err := cfg.ValidateImport(); err != nil {
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
		log.Warn("Received shutdown signal - stopping after current batch...")
		cancel()
	}()

	if !importDryRun {
		runLock, err := lock.Acquire(cfg.Import.InputDir)
		if err != nil {
			return err
		}
		defer runLock.Release()
	}

	manager := catalog.NewManager(cfg)
	if err := manager.ConnectTarget(ctx); err != nil {
		return err
	}

	importer := migrate.NewImporter(cfg, schema.Default(), manager.Target, log)
	importer.DryRun = importDryRun

	manifest, err := importer.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("Import cancelled by user")
			return nil
		}
		if manifest != nil {
			render.ImportSummary(outputWriter, manifest)
		}
		return fmt.Errorf("import failed: %w", err)
	}

	render.ImportSummary(outputWriter, manifest)
	if manifest.Totals().Failed > 0 {
		return fmt.Errorf("import completed with %d failed records", manifest.Totals().Failed)
	}
	return nil
}
