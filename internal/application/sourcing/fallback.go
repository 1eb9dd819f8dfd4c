package sourcing

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sourcing/backend/internal/domain/sourcing"
	"github.com/sourcing/backend/internal/infrastructure/telemetry"
)

// FallbackResult is the draft produced by the first successful stage
type FallbackResult struct {
	Draft *sourcing.ProductDraft
	Stage string
}

// FallbackChain runs retrieval strategies in order until one yields a product
type FallbackChain struct {
	stages     []sourcing.Extractor
	normalizer *sourcing.Normalizer
	metrics    *telemetry.SourcingMetrics
	logger     *zap.Logger
}

// NewFallbackChain creates a chain over the given stages, tried in order
func NewFallbackChain(
	normalizer *sourcing.Normalizer,
	metrics *telemetry.SourcingMetrics,
	logger *zap.Logger,
	stages ...sourcing.Extractor,
) (*FallbackChain, error) {
	if len(stages) == 0 {
		return nil, errors.New("sourcing: fallback chain needs at least one stage")
	}
	if normalizer == nil {
		return nil, errors.New("sourcing: fallback chain needs a normalizer")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackChain{
		stages:     stages,
		normalizer: normalizer,
		metrics:    metrics,
		logger:     logger.Named("fallback"),
	}, nil
}

// Stages returns the stage names in execution order
func (c *FallbackChain) Stages() []string {
	names := make([]string, len(c.stages))
	for i, s := range c.stages {
		names[i] = s.Name()
	}
	return names
}

// Run tries each stage once. A stage succeeds when it returns no error and
// a non-empty product name; anything else moves on to the next stage.
func (c *FallbackChain) Run(ctx context.Context, target sourcing.Target) (*FallbackResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "fallback", "run")
	defer span.End()

	var lastErr error
	for _, stage := range c.stages {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		raw, err := stage.Extract(ctx, target)
		switch {
		case err != nil:
			lastErr = fmt.Errorf("%s: %w", stage.Name(), err)
			c.metrics.RecordFallbackStage(ctx, stage.Name(), telemetry.OutcomeFailure)
			c.logger.Warn("Extraction stage failed",
				zap.String("stage", stage.Name()),
				zap.String("url", target.URL),
				zap.Error(err),
			)
			continue
		case !raw.Usable():
			lastErr = fmt.Errorf("%s: no product name found", stage.Name())
			c.metrics.RecordFallbackStage(ctx, stage.Name(), telemetry.OutcomeEmpty)
			c.logger.Warn("Extraction stage returned no product",
				zap.String("stage", stage.Name()),
				zap.String("url", target.URL),
			)
			continue
		}

		draft, err := c.normalizer.FromExtraction(raw, target)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", stage.Name(), err)
			c.metrics.RecordFallbackStage(ctx, stage.Name(), telemetry.OutcomeFailure)
			c.logger.Warn("Extraction stage produced an invalid draft",
				zap.String("stage", stage.Name()),
				zap.Error(err),
			)
			continue
		}

		c.metrics.RecordFallbackStage(ctx, stage.Name(), telemetry.OutcomeSuccess)
		telemetry.SetAttributes(span, telemetry.SpanAttrFallbackStage, stage.Name())
		c.logger.Info("Product extracted",
			zap.String("stage", stage.Name()),
			zap.String("url", target.URL),
		)
		return &FallbackResult{Draft: draft, Stage: stage.Name()}, nil
	}

	err := sourcing.ErrExtractionFailed
	if lastErr != nil {
		err = fmt.Errorf("%w: %w", sourcing.ErrExtractionFailed, lastErr)
	}
	telemetry.RecordError(span, err)
	return nil, err
}
