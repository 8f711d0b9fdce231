// Package cleanup removes the sources of completed upload sessions.
//
// Cleanup is best effort: a failed delete is reported for its key and never
// touches the completed target or any sibling session.
package cleanup

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/internal/session"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/s3types"
)

// Deleter is the delete half of gateway.Gateway.
type Deleter interface {
	DeleteObject(ctx context.Context, bucket, key string) error
}

// Result lists what cleanup did.
type Result struct {
	// Removed are the deleted keys in part order, session by session
	Removed []string

	// Failures are RollbackErrors, one per key that could not be deleted
	Failures []error
}

// Coordinator deletes consumed sources.
type Coordinator struct {
	deleter     Deleter
	bucket      string
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Recorder
}

// New creates a Coordinator. concurrency below 1 means sequential deletes.
func New(deleter Deleter, bucket string, concurrency int, logger *slog.Logger, rec *metrics.Recorder) *Coordinator {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{
		deleter:     deleter,
		bucket:      bucket,
		concurrency: concurrency,
		logger:      logger,
		metrics:     rec,
	}
}

// Run deletes the sources of every Completed session. Sessions in any other
// state are skipped.
func (c *Coordinator) Run(ctx context.Context, sessions []*session.Session) *Result {
	var keys []string
	for _, sess := range sessions {
		if sess.State() != s3types.StateCompleted {
			continue
		}
		for _, src := range sess.Sources() {
			keys = append(keys, src.Key)
		}
	}

	removed := make([]bool, len(keys))
	failures := make([]error, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	var mu sync.Mutex
	for i, key := range keys {
		g.Go(func() error {
			c.logger.InfoContext(gctx, "removing", "key", key)

			if err := c.deleter.DeleteObject(gctx, c.bucket, key); err != nil {
				rerr := errors.NewRollbackError("deleteObject", c.bucket, key, err)
				c.logger.ErrorContext(gctx, "unable to remove", "key", key, "error", rerr.Message)
				c.metrics.DeleteFailed()

				mu.Lock()
				failures[i] = rerr
				mu.Unlock()
				return nil
			}

			c.metrics.SourceDeleted()
			mu.Lock()
			removed[i] = true
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	result := &Result{}
	for i, key := range keys {
		if removed[i] {
			result.Removed = append(result.Removed, key)
		}
		if failures[i] != nil {
			result.Failures = append(result.Failures, failures[i])
		}
	}

	return result
}
