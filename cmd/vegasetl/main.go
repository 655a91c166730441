package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/estateops/vegasetl/pkg/artifacts"
	"github.com/estateops/vegasetl/pkg/config"
	"github.com/estateops/vegasetl/pkg/extract"
	"github.com/estateops/vegasetl/pkg/load"
	"github.com/estateops/vegasetl/pkg/logger"
	"github.com/estateops/vegasetl/pkg/pipeline"
	"github.com/estateops/vegasetl/pkg/schema"
	"github.com/estateops/vegasetl/pkg/transform"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	root := &cobra.Command{
		Use:   "vegasetl",
		Short: "Las Vegas real-estate ETL pipeline",
		Long: `vegasetl fetches property listings from the search API, normalizes
them onto the canonical schema, and loads them into Postgres with
history semantics.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vegasetl v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	var configFile, logLevel string
	var timeout time.Duration

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full extract-transform-load pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSetup(configFile, logLevel, timeout, runPipeline)
		},
	}
	root.AddCommand(runCmd)

	transformCmd := &cobra.Command{
		Use:   "transform",
		Short: "Transform the latest raw artifact into the canonical form",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSetup(configFile, logLevel, timeout, runTransform)
		},
	}
	root.AddCommand(transformCmd)

	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Load the latest transformed artifact into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSetup(configFile, logLevel, timeout, runLoad)
		},
	}
	root.AddCommand(loadCmd)

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter pipeline configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(configFile); err == nil {
				return fmt.Errorf("%s already exists", configFile)
			}
			if err := config.Save(configFile, config.NewPipelineConfig("vegasetl")); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", configFile)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&configFile, "config", "c", "pipeline.yaml", "Path for the generated configuration file")
	root.AddCommand(initCmd)

	for _, cmd := range []*cobra.Command{runCmd, transformCmd, loadCmd} {
		cmd.Flags().StringVarP(&configFile, "config", "c", "pipeline.yaml", "Path to the pipeline YAML configuration")
		cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
		cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Overall command timeout")
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withSetup loads the configuration, initializes logging, and runs the
// command body under a timeout.
func withSetup(configFile, logLevel string, timeout time.Duration, body func(ctx context.Context, cfg *config.PipelineConfig, log *zap.Logger) error) error {
	cfg, err := config.LoadPipelineConfig(configFile)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	if err := logger.Init(logger.Config{
		Level:       level,
		Development: cfg.Logging.Development,
		Encoding:    cfg.Logging.Encoding,
	}); err != nil {
		return fmt.Errorf("logger error: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log := logger.Get().With(zap.String("pipeline", cfg.Name))
	return body(ctx, cfg, log)
}

// runPipeline executes the full extract-transform-load sequence.
func runPipeline(ctx context.Context, cfg *config.PipelineConfig, log *zap.Logger) error {
	store, err := artifacts.NewStore(cfg.Artifacts.Dir, log)
	if err != nil {
		return err
	}

	engine, err := load.NewEngine(ctx, cfg.Database.DSN(), log)
	if err != nil {
		return err
	}
	defer engine.Close()

	coordinator := pipeline.NewCoordinator(
		cfg,
		extract.NewClient(cfg.API, log),
		transform.NewTransformer(log),
		engine,
		store,
		log,
	)

	meta, err := coordinator.Run(ctx)
	if err != nil {
		return fmt.Errorf("pipeline run %s failed at %s: %w", meta.RunID, meta.FailedStep, err)
	}
	return nil
}

// runTransform reads the latest raw artifact and writes the transformed
// artifact, without touching the API or the database.
func runTransform(ctx context.Context, cfg *config.PipelineConfig, log *zap.Logger) error {
	store, err := artifacts.NewStore(cfg.Artifacts.Dir, log)
	if err != nil {
		return err
	}

	records, err := store.ReadRaw(artifacts.StageRaw)
	if err != nil {
		return err
	}

	result := transform.NewTransformer(log).TransformBatch(records)
	if len(result.Properties) == 0 {
		return fmt.Errorf("no records survived the quality filter")
	}

	_, err = store.WriteProperties(artifacts.StageTransformed, result.RunID, result.Properties)
	return err
}

// runLoad loads the latest transformed artifact into the destination
// table.
func runLoad(ctx context.Context, cfg *config.PipelineConfig, log *zap.Logger) error {
	store, err := artifacts.NewStore(cfg.Artifacts.Dir, log)
	if err != nil {
		return err
	}

	engine, err := load.NewEngine(ctx, cfg.Database.DSN(), log)
	if err != nil {
		return err
	}
	defer engine.Close()

	desc := schema.NewPropertyDescriptor(cfg.Target.Schema, cfg.Target.Table)
	report, err := engine.LoadFile(ctx, desc, cfg.Target.Mode, store.LatestPath(artifacts.StageTransformed))
	if err != nil {
		return err
	}

	log.Info("load completed",
		zap.Int64("inserted", report.Inserted),
		zap.Int64("duplicates_skipped", report.DuplicatesSkipped),
		zap.Int64("total_rows", report.TotalRows))
	return nil
}
