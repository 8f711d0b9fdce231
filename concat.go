package s3concat

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/internal/cleanup"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/internal/orchestrator"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/internal/pattern"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/s3types"
)

// Concat concatenates every object under prefix whose key matches source
// into the target its template expands to.
//
// The target may reference capture groups of source ($1, ${name}). Keys are
// grouped by expanded target and copied as parts in listing order. A key
// that expands to itself is skipped.
//
// The returned result is non-nil whenever the arguments were valid, including
// when the run failed, so the caller can report what was rolled back. The
// error is a ConfigurationError for invalid arguments, and a SizeConstraintError
// or TransportError when discovery or copying failed. Failures while completing
// a single target or deleting a source are recorded in the result instead.
func (c *Client) Concat(
	ctx context.Context,
	bucket, prefix, source, target string,
	opts ...s3types.ConcatOption,
) (*s3types.ConcatResult, error) {
	cfg := s3types.ConcatConfig{Concurrency: c.config.Concurrency}
	for _, opt := range opts {
		opt(&cfg)
	}

	pat, err := c.validate(bucket, prefix, source, target, &cfg)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	runID := uuid.NewString()
	logger := c.logger.With("run_id", runID, "bucket", bucket)
	logger.DebugContext(ctx, "starting run",
		"prefix", prefix, "source", pat.String(), "target", pat.Template(),
		"dry_run", cfg.DryRun, "cleanup", cfg.Cleanup)

	orch := orchestrator.New(c.gw, orchestrator.Config{
		Bucket:      bucket,
		Prefix:      prefix,
		Pattern:     pat,
		DryRun:      cfg.DryRun,
		VerifyParts: cfg.VerifyParts,
		Concurrency: cfg.Concurrency,
		Upload:      cfg.Upload,
	}, logger, c.metrics)

	outcome, runErr := orch.Run(ctx)

	result := &s3types.ConcatResult{
		RunID:  runID,
		Bucket: bucket,
		Prefix: prefix,
		DryRun: cfg.DryRun,
	}
	if outcome != nil {
		result.Listed = outcome.Listed
		result.Matched = outcome.Matched
		result.SelfTargets = outcome.SelfTargets
	}

	if runErr == nil && cfg.Cleanup && !cfg.DryRun {
		cleaned := cleanup.New(c.gw, bucket, cfg.Concurrency, logger, c.metrics).
			Run(ctx, orch.Registry().Sessions())
		result.Removed = cleaned.Removed
		result.CleanupErrors = cleaned.Failures
	}

	result.Sessions = orch.Registry().Reports()
	result.Duration = time.Since(start)
	c.metrics.ObserveRun(result.Duration)

	logger.DebugContext(ctx, "finished run",
		"completed", result.Count(s3types.StateCompleted),
		"aborted", result.Count(s3types.StateAborted),
		"removed", len(result.Removed),
		"duration", result.Duration)

	return result, runErr
}

func (c *Client) validate(
	bucket, prefix, source, target string,
	cfg *s3types.ConcatConfig,
) (*pattern.Pattern, error) {
	if err := validation.ValidateBucketName(bucket); err != nil {
		return nil, err
	}
	if err := validation.ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	pat, err := pattern.Compile(source, target)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateTarget(target); err != nil {
		return nil, err
	}
	if err := validation.ValidateUploadOptions(&cfg.Upload); err != nil {
		return nil, err
	}
	return pat, nil
}
