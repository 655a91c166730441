// Package pipeline sequences the three stages of a run: extract raw
// listings, transform them onto the canonical schema, and load the
// result into Postgres. Stage outputs are persisted through the
// artifacts store between stages, so each stage reads the previous
// stage's latest file rather than sharing memory with it.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/estateops/vegasetl/pkg/artifacts"
	"github.com/estateops/vegasetl/pkg/config"
	"github.com/estateops/vegasetl/pkg/etlerrors"
	"github.com/estateops/vegasetl/pkg/load"
	"github.com/estateops/vegasetl/pkg/logger"
	"github.com/estateops/vegasetl/pkg/metrics"
	"github.com/estateops/vegasetl/pkg/models"
	"github.com/estateops/vegasetl/pkg/schema"
	"github.com/estateops/vegasetl/pkg/transform"
)

// Stage names used for failure attribution in run metadata.
const (
	StepExtract   = "extract"
	StepTransform = "transform"
	StepLoad      = "load"
)

// Extractor produces the raw record batch for a run.
type Extractor interface {
	FetchAll(ctx context.Context) ([]models.RawRecord, error)
}

// Loader writes a canonical batch into the destination table.
type Loader interface {
	Load(ctx context.Context, desc schema.Descriptor, mode config.LoadMode, props []*models.Property) (*load.Report, error)
}

// Coordinator runs the extract-transform-load sequence and accumulates
// run metadata for the caller.
type Coordinator struct {
	cfg         *config.PipelineConfig
	extractor   Extractor
	transformer *transform.Transformer
	loader      Loader
	store       *artifacts.Store
	logger      *zap.Logger
}

// NewCoordinator wires a coordinator from its collaborators.
func NewCoordinator(cfg *config.PipelineConfig, extractor Extractor, transformer *transform.Transformer, loader Loader, store *artifacts.Store, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		cfg:         cfg,
		extractor:   extractor,
		transformer: transformer,
		loader:      loader,
		store:       store,
		logger:      logger,
	}
}

// Run executes one full pipeline run. The returned metadata is complete
// on both success and failure; on failure it names the failed step and
// the error is also returned.
func (c *Coordinator) Run(ctx context.Context) (*models.RunMetadata, error) {
	started := time.Now().UTC()
	recorder := metrics.NewRecorder(c.cfg.Name)
	meta := &models.RunMetadata{
		RunID:     transform.RunID(started),
		Pipeline:  c.cfg.Name,
		StartedAt: started,
	}

	ctx = context.WithValue(ctx, logger.RunIDKey, meta.RunID)
	log := logger.WithContext(ctx, c.logger)

	log.Info("pipeline run starting",
		zap.String("pipeline", c.cfg.Name),
		zap.String("mode", string(c.cfg.Target.Mode)))

	// Extract.
	records, err := c.extractor.FetchAll(context.WithValue(ctx, logger.StageKey, StepExtract))
	if err != nil {
		return c.fail(log, meta, recorder, StepExtract, err)
	}
	meta.Extracted = len(records)
	recorder.ObserveExtract(len(records))
	if _, err := c.store.WriteRaw(artifacts.StageRaw, meta.RunID, records); err != nil {
		return c.fail(log, meta, recorder, StepExtract, err)
	}

	// Transform reads the raw stage's latest artifact, not the
	// in-memory batch, so a standalone transform run behaves the same.
	rawRecords, err := c.store.ReadRaw(artifacts.StageRaw)
	if err != nil {
		return c.fail(log, meta, recorder, StepTransform, err)
	}
	result := c.transformer.TransformBatch(rawRecords)
	meta.Transformed = len(result.Properties)
	meta.Dropped = result.Dropped
	recorder.ObserveTransform(meta.Transformed, meta.Dropped)
	if len(result.Properties) == 0 {
		err := etlerrors.New(etlerrors.ErrorTypeData, "no records survived the quality filter")
		return c.fail(log, meta, recorder, StepTransform, err)
	}
	c.transformer.Validate(result.Properties)
	if _, err := c.store.WriteProperties(artifacts.StageTransformed, result.RunID, result.Properties); err != nil {
		return c.fail(log, meta, recorder, StepTransform, err)
	}

	// Load.
	desc := schema.NewPropertyDescriptor(c.cfg.Target.Schema, c.cfg.Target.Table)
	report, err := c.loader.Load(context.WithValue(ctx, logger.StageKey, StepLoad), desc, c.cfg.Target.Mode, result.Properties)
	if err != nil {
		return c.fail(log, meta, recorder, StepLoad, err)
	}
	meta.Loaded = int(report.Inserted)
	meta.Duplicates = report.BatchDuplicates + int(report.DuplicatesSkipped)
	meta.TotalRows = report.TotalRows
	recorder.ObserveLoad(meta.Loaded, meta.Duplicates, report.TotalRows)

	meta.Succeeded = true
	meta.Duration = recorder.Finish(true)
	meta.FinishedAt = meta.StartedAt.Add(meta.Duration)

	log.Info("pipeline run completed",
		zap.Int("extracted", meta.Extracted),
		zap.Int("transformed", meta.Transformed),
		zap.Int("dropped", meta.Dropped),
		zap.Int("loaded", meta.Loaded),
		zap.Int("duplicates", meta.Duplicates),
		zap.Int64("total_rows", meta.TotalRows),
		zap.Duration("duration", meta.Duration))

	return meta, nil
}

// fail finalizes the metadata for a failed run and returns the error.
func (c *Coordinator) fail(log *zap.Logger, meta *models.RunMetadata, recorder *metrics.Recorder, step string, err error) (*models.RunMetadata, error) {
	meta.Succeeded = false
	meta.FailedStep = step
	meta.Error = err.Error()
	meta.Duration = recorder.Finish(false)
	meta.FinishedAt = meta.StartedAt.Add(meta.Duration)

	log.Error("pipeline run failed",
		zap.String("step", step),
		zap.Bool("fatal", etlerrors.IsFatal(err)),
		zap.Error(err))

	return meta, err
}
