// Package orchestrator drives upload sessions through their lifecycle.
//
// A run has three phases:
//
//  1. Discovery lists the bucket once, resolves every key against the
//     pattern and reserves part numbers in listing order. Size violations
//     are found here, before any remote upload exists.
//  2. Execution opens each target's multipart upload and copies its parts.
//     Copies may run concurrently; part numbers were fixed in discovery.
//     Any failure cancels in-flight copies, waits for them to settle and
//     aborts every session that is not yet terminal.
//  3. Finalization completes each open session from the remote part
//     listing. Failures here abort only the affected session.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"sort"
	"sync"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/gateway"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/internal/operations/list"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/internal/pattern"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/internal/session"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/s3types"
)

// Config describes one run.
type Config struct {
	Bucket  string
	Prefix  string
	Pattern *pattern.Pattern

	// DryRun stops after discovery; no remote mutation is issued
	DryRun bool

	// VerifyParts aborts a session whose remote part listing disagrees
	// with the parts copied for it, instead of only warning
	VerifyParts bool

	// Concurrency bounds in-flight part copies (default 1)
	Concurrency int

	// Upload is applied to every target upload. An empty ContentType is
	// derived from the target key's extension.
	Upload s3types.UploadOptions
}

// Outcome counts what discovery saw.
type Outcome struct {
	Listed      int
	Matched     int
	SelfTargets int
}

// copyJob is one reserved part.
type copyJob struct {
	sess   *session.Session
	part   int32
	source s3types.Object
}

// Orchestrator runs a single concatenation. It is not reusable across runs.
type Orchestrator struct {
	gw       gateway.Gateway
	cfg      Config
	registry *session.Registry
	logger   *slog.Logger
	metrics  *metrics.Recorder
}

// New creates an Orchestrator with an empty session registry.
func New(gw gateway.Gateway, cfg Config, logger *slog.Logger, rec *metrics.Recorder) *Orchestrator {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{
		gw:       gw,
		cfg:      cfg,
		registry: session.NewRegistry(),
		logger:   logger,
		metrics:  rec,
	}
}

// Registry exposes the run's sessions.
func (o *Orchestrator) Registry() *session.Registry {
	return o.registry
}

// Run executes discovery, execution and finalization. The returned error is
// the fatal discovery or execution error, if any; finalization failures are
// recorded on their sessions instead.
func (o *Orchestrator) Run(ctx context.Context) (*Outcome, error) {
	if o.cfg.Pattern == nil {
		return nil, errors.NewConfigurationError("run", errors.ErrMissingArgument).WithMessage("pattern is required")
	}

	outcome, jobs, err := o.discover(ctx)
	if err != nil {
		o.abortAll(ctx, err)
		return outcome, err
	}

	if o.cfg.DryRun {
		return outcome, nil
	}

	if err := o.execute(ctx, jobs); err != nil {
		o.abortAll(ctx, err)
		return outcome, err
	}

	o.finalize(ctx)
	return outcome, nil
}

// discover lists the bucket and reserves a part for every matching source.
func (o *Orchestrator) discover(ctx context.Context) (*Outcome, []copyJob, error) {
	outcome := &Outcome{}
	var jobs []copyJob

	pager := list.NewPaginator(o.gw, o.cfg.Bucket, o.cfg.Prefix)
	listed, err := pager.Walk(ctx, func(obj s3types.Object) error {
		target, ok := o.cfg.Pattern.Resolve(obj.Key)
		if !ok {
			return nil
		}
		if err := validation.ValidateObjectKey(target); err != nil {
			return errors.NewConfigurationError("resolveTarget", err).
				WithKey(obj.Key).
				WithMessage(fmt.Sprintf("target %q expanded from %s", target, o.cfg.Pattern.Template()))
		}

		if obj.Size < s3types.MinPartSize {
			return errors.NewSizeConstraintError(o.cfg.Bucket, obj.Key, obj.Size, s3types.MinPartSize)
		}

		if target == obj.Key {
			outcome.SelfTargets++
			o.logger.DebugContext(ctx, "skipping self target", "source", obj.Key)
			return nil
		}

		sess, part, _, err := o.registry.Reserve(target, obj)
		if err != nil {
			return err
		}

		outcome.Matched++
		o.metrics.SourceMatched()
		o.logger.InfoContext(ctx, "concatenating",
			"source", obj.Key,
			"target", target,
			"part", part,
			"size", humanize.Bytes(uint64(obj.Size)),
		)

		jobs = append(jobs, copyJob{sess: sess, part: part, source: obj})
		return nil
	})
	outcome.Listed = listed
	o.logger.DebugContext(ctx, "listed bucket",
		"bucket", o.cfg.Bucket,
		"prefix", o.cfg.Prefix,
		"objects", listed,
		"pages", pager.Pages(),
	)

	return outcome, jobs, err
}

// execute opens uploads and copies parts in discovery order, bounded by
// the configured concurrency. It returns the first failure.
func (o *Orchestrator) execute(ctx context.Context, jobs []copyJob) error {
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var (
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel(err)
		})
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(o.cfg.Concurrency)

	// Opening runs inside the group so that, with a limit of 1, a create
	// never starts before the previous copy has returned.
	locks := make(map[*session.Session]*sync.Mutex)
	for _, job := range jobs {
		if _, ok := locks[job.sess]; !ok {
			locks[job.sess] = &sync.Mutex{}
		}
	}
	ensureOpen := func(sess *session.Session) error {
		mu := locks[sess]
		mu.Lock()
		defer mu.Unlock()

		if err := gctx.Err(); err != nil {
			return err
		}
		if sess.State() != s3types.StatePending {
			return nil
		}
		if err := o.open(gctx, sess); err != nil {
			fail(err)
			return err
		}
		return nil
	}

	for _, job := range jobs {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if err := ensureOpen(job.sess); err != nil {
				return err
			}
			if err := o.copyPart(gctx, job); err != nil {
				fail(err)
				return err
			}
			return nil
		})
	}

	// Copies must settle before anything is aborted.
	if err := g.Wait(); err != nil {
		fail(err)
	}
	if firstErr == nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return firstErr
}

// open creates the remote upload for a Pending session.
func (o *Orchestrator) open(ctx context.Context, sess *session.Session) error {
	opts := o.uploadOptions(sess.Target())

	uploadID, err := o.gw.CreateMultipartUpload(ctx, o.cfg.Bucket, sess.Target(), &opts)
	if err != nil {
		o.logger.ErrorContext(ctx, "unable to create upload",
			"target", sess.Target(), "error", errors.RemoteMessage(err))
		return err
	}

	if err := sess.Open(uploadID); err != nil {
		return err
	}

	o.logger.DebugContext(ctx, "opened upload", "target", sess.Target(), "upload_id", uploadID)
	return nil
}

// uploadOptions returns the options for target, deriving the content type
// from its extension when none is configured.
func (o *Orchestrator) uploadOptions(target string) s3types.UploadOptions {
	opts := o.cfg.Upload
	if opts.ContentType == "" {
		opts.ContentType = mime.TypeByExtension(path.Ext(target))
	}
	return opts
}

func (o *Orchestrator) copyPart(ctx context.Context, job copyJob) error {
	etag, err := o.gw.CopyObjectPart(ctx, o.cfg.Bucket, job.sess.Target(), job.sess.UploadID(), job.part, job.source)
	if err != nil {
		if ctx.Err() == nil {
			o.logger.ErrorContext(ctx, "unable to copy part",
				"source", job.source.Key,
				"target", job.sess.Target(),
				"part", job.part,
				"error", errors.RemoteMessage(err),
			)
		}
		return err
	}

	job.sess.RecordPart(job.part, etag)
	o.metrics.PartCopied(job.source.Size)
	o.logger.DebugContext(ctx, "copied part",
		"source", job.source.Key, "target", job.sess.Target(), "part", job.part)

	return nil
}

// abortAll moves every Pending or Open session to Aborted. Sessions with a
// remote upload get an abort request; its failure is logged and swallowed.
func (o *Orchestrator) abortAll(ctx context.Context, cause error) {
	ctx = context.WithoutCancel(ctx)

	for _, sess := range o.registry.InState(s3types.StatePending, s3types.StateOpen) {
		if sess.State() == s3types.StateOpen {
			o.abortRemote(ctx, sess)
		}
		if err := sess.Abort(cause); err != nil {
			o.logger.ErrorContext(ctx, "unable to mark session aborted", "target", sess.Target(), "error", err)
			continue
		}
		o.metrics.SessionFinished(s3types.StateAborted)
	}
}

func (o *Orchestrator) abortRemote(ctx context.Context, sess *session.Session) {
	uploadID := sess.UploadID()
	o.logger.WarnContext(ctx, "aborting", "target", sess.Target(), "upload_id", uploadID)

	if err := o.gw.AbortMultipartUpload(ctx, o.cfg.Bucket, sess.Target(), uploadID); err != nil {
		rerr := errors.NewRollbackError("abortMultipartUpload", o.cfg.Bucket, sess.Target(), err)
		o.logger.ErrorContext(ctx, "unable to abort",
			"target", sess.Target(), "upload_id", uploadID, "error", rerr.Message)
		o.metrics.AbortFailed()
	}
}

// finalize completes every Open session, one at a time, in discovery order.
func (o *Orchestrator) finalize(ctx context.Context) {
	for _, sess := range o.registry.InState(s3types.StateOpen) {
		if err := sess.BeginCompleting(); err != nil {
			o.logger.ErrorContext(ctx, "unable to finalize", "target", sess.Target(), "error", err)
			continue
		}
		if err := o.complete(ctx, sess); err != nil {
			o.abortSession(ctx, sess, err)
			continue
		}
		if err := sess.Complete(); err != nil {
			o.logger.ErrorContext(ctx, "unable to finalize", "target", sess.Target(), "error", err)
			continue
		}
		o.metrics.SessionFinished(s3types.StateCompleted)
		o.logger.InfoContext(ctx, "completed", "target", sess.Target(), "upload_id", sess.UploadID())
	}
}

// complete lists the remote parts and completes the upload from them.
func (o *Orchestrator) complete(ctx context.Context, sess *session.Session) error {
	uploadID := sess.UploadID()
	o.logger.InfoContext(ctx, "completing", "target", sess.Target(), "upload_id", uploadID, "parts", sess.Len())

	remote, err := o.gw.ListUploadParts(ctx, o.cfg.Bucket, sess.Target(), uploadID)
	if err != nil {
		o.logger.ErrorContext(ctx, "unable to list pending parts",
			"target", sess.Target(), "upload_id", uploadID, "error", errors.RemoteMessage(err))
		return err
	}
	sort.Slice(remote, func(i, j int) bool { return remote[i].PartNumber < remote[j].PartNumber })

	if mismatch := compareParts(sess.Parts(), remote); mismatch != "" {
		if o.cfg.VerifyParts {
			o.logger.ErrorContext(ctx, "remote parts do not match copied sources",
				"target", sess.Target(), "upload_id", uploadID, "detail", mismatch)
			return errors.NewTransportError("listParts", o.cfg.Bucket, sess.Target(), errors.ErrPartsMismatch).
				WithMessage(mismatch)
		}
		o.logger.WarnContext(ctx, "remote parts differ from copied sources",
			"target", sess.Target(), "upload_id", uploadID, "detail", mismatch)
	}

	if err := o.gw.CompleteMultipartUpload(ctx, o.cfg.Bucket, sess.Target(), uploadID, remote); err != nil {
		o.logger.ErrorContext(ctx, "unable to complete",
			"target", sess.Target(), "upload_id", uploadID, "error", errors.RemoteMessage(err))
		return err
	}

	return nil
}

// abortSession rolls back a single session during finalization.
func (o *Orchestrator) abortSession(ctx context.Context, sess *session.Session, cause error) {
	o.abortRemote(context.WithoutCancel(ctx), sess)
	if err := sess.Abort(cause); err != nil {
		o.logger.ErrorContext(ctx, "unable to mark session aborted", "target", sess.Target(), "error", err)
		return
	}
	o.metrics.SessionFinished(s3types.StateAborted)
}

// compareParts describes the first difference between the parts copied
// locally and the remote listing, or returns "" when they agree.
func compareParts(local, remote []s3types.Part) string {
	if len(local) != len(remote) {
		return fmt.Sprintf("copied %d parts, upload lists %d", len(local), len(remote))
	}
	for i := range local {
		l, r := local[i], remote[i]
		if l.PartNumber != r.PartNumber {
			return fmt.Sprintf("expected part %d, upload lists part %d", l.PartNumber, r.PartNumber)
		}
		if l.ETag != "" && r.ETag != "" && l.ETag != r.ETag {
			return fmt.Sprintf("part %d tag %s, upload lists %s", l.PartNumber, l.ETag, r.ETag)
		}
	}
	return ""
}
