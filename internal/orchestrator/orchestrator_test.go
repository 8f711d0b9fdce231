package orchestrator

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/internal/pattern"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/s3types"
)

const (
	mb6 = 6_000_000
	mb4 = 4_000_000

	dailyExpr     = `logs/(\d{4}-\d{2}-\d{2})\.part\d+`
	dailyTemplate = "logs/$1.merged"
)

func dailyLogs() []s3types.Object {
	return []s3types.Object{
		testutil.Obj("logs/2024-01-01.part1", mb6),
		testutil.Obj("logs/2024-01-01.part2", mb6),
		testutil.Obj("logs/2024-01-02.part1", mb6),
	}
}

func newRun(gw *testutil.FakeGateway, mutate ...func(*Config)) *Orchestrator {
	cfg := Config{
		Bucket:  "bucket",
		Pattern: pattern.MustCompile(dailyExpr, dailyTemplate),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return New(gw, cfg, nil, nil)
}

func states(o *Orchestrator) map[string]s3types.SessionState {
	out := make(map[string]s3types.SessionState)
	for _, r := range o.Registry().Reports() {
		out[r.Target] = r.State
	}
	return out
}

func TestRun_GroupsDailyLogs(t *testing.T) {
	gw := testutil.NewFakeGateway(dailyLogs()...)
	o := newRun(gw)

	outcome, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Outcome{Listed: 3, Matched: 3}, outcome)

	reports := o.Registry().Reports()
	require.Len(t, reports, 2)

	assert.Equal(t, "logs/2024-01-01.merged", reports[0].Target)
	assert.Equal(t, []string{"logs/2024-01-01.part1", "logs/2024-01-01.part2"}, reports[0].Sources)
	assert.Equal(t, s3types.StateCompleted, reports[0].State)
	assert.Equal(t, int64(2*mb6), reports[0].Bytes)

	assert.Equal(t, "logs/2024-01-02.merged", reports[1].Target)
	assert.Equal(t, []string{"logs/2024-01-02.part1"}, reports[1].Sources)
	assert.Equal(t, s3types.StateCompleted, reports[1].State)

	parts, ok := gw.Completed("logs/2024-01-01.merged")
	require.True(t, ok)
	require.Len(t, parts, 2)
	assert.Equal(t, int32(1), parts[0].PartNumber)
	assert.Equal(t, int32(2), parts[1].PartNumber)

	copies := gw.Calls(testutil.OpCopyPart)
	require.Len(t, copies, 3)
	assert.Equal(t, testutil.Call{
		Op: testutil.OpCopyPart, Key: "logs/2024-01-01.merged", UploadID: reports[0].UploadID,
		PartNumber: 1, Source: "logs/2024-01-01.part1",
	}, copies[0])
	assert.Equal(t, int32(2), copies[1].PartNumber)
	assert.Equal(t, "logs/2024-01-01.part2", copies[1].Source)
	assert.Equal(t, int32(1), copies[2].PartNumber)
	assert.Equal(t, "logs/2024-01-02.part1", copies[2].Source)

	assert.Zero(t, gw.OpenUploads())
	assert.Empty(t, gw.Calls(testutil.OpAbortUpload, testutil.OpDeleteObject))
	assert.Contains(t, gw.Keys(), "logs/2024-01-01.merged")
	assert.Contains(t, gw.Keys(), "logs/2024-01-01.part1", "sources stay without cleanup")
}

func TestRun_SequentialCallOrder(t *testing.T) {
	gw := testutil.NewFakeGateway(dailyLogs()...)

	_, err := newRun(gw).Run(context.Background())
	require.NoError(t, err)

	var ops []string
	for _, c := range gw.Mutations() {
		ops = append(ops, c.Op+" "+c.Key)
	}
	assert.Equal(t, []string{
		"createMultipartUpload logs/2024-01-01.merged",
		"uploadPartCopy logs/2024-01-01.merged",
		"uploadPartCopy logs/2024-01-01.merged",
		"createMultipartUpload logs/2024-01-02.merged",
		"uploadPartCopy logs/2024-01-02.merged",
		"completeMultipartUpload logs/2024-01-01.merged",
		"completeMultipartUpload logs/2024-01-02.merged",
	}, ops)
}

func TestRun_SkipsSelfTargets(t *testing.T) {
	gw := testutil.NewFakeGateway(
		testutil.Obj("data/a.bin", mb6),
		testutil.Obj("data/a.part1", mb6),
	)
	o := New(gw, Config{
		Bucket:  "bucket",
		Pattern: pattern.MustCompile(`^data/a\.(part\d+|bin)$`, "data/a.bin"),
	}, nil, nil)

	outcome, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.SelfTargets)
	assert.Equal(t, 1, outcome.Matched)

	reports := o.Registry().Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, []string{"data/a.part1"}, reports[0].Sources)
	for _, c := range gw.Calls(testutil.OpCopyPart) {
		assert.NotEqual(t, "data/a.bin", c.Source, "a key is never copied into itself")
	}
}

func TestRun_SizeConstraint(t *testing.T) {
	tests := []struct {
		name    string
		objects []s3types.Object
		small   string
	}{
		{
			name:    "single small match",
			objects: []s3types.Object{testutil.Obj("logs/2024-01-01.part1", mb4)},
			small:   "logs/2024-01-01.part1",
		},
		{
			name: "small match after valid ones",
			objects: []s3types.Object{
				testutil.Obj("logs/2024-01-01.part1", mb6),
				testutil.Obj("logs/2024-01-01.part2", mb6),
				testutil.Obj("logs/2024-01-02.part1", mb4),
			},
			small: "logs/2024-01-02.part1",
		},
		{
			name: "one byte below the minimum",
			objects: []s3types.Object{
				testutil.Obj("logs/2024-01-01.part1", s3types.MinPartSize-1),
			},
			small: "logs/2024-01-01.part1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := testutil.NewFakeGateway(tt.objects...)
			o := newRun(gw)

			_, err := o.Run(context.Background())
			require.Error(t, err)
			assert.True(t, errors.IsSizeConstraint(err))
			assert.Contains(t, err.Error(), tt.small)

			assert.Empty(t, gw.Mutations(), "nothing is created before the size check")
			for target, st := range states(o) {
				assert.Equal(t, s3types.StateAborted, st, target)
			}
		})
	}
}

func TestRun_SizeCheckedBeforeSelfTarget(t *testing.T) {
	gw := testutil.NewFakeGateway(testutil.Obj("same", 10))
	o := New(gw, Config{Bucket: "bucket", Pattern: pattern.MustCompile(`^same$`, "same")}, nil, nil)

	_, err := o.Run(context.Background())
	assert.True(t, errors.IsSizeConstraint(err))
}

func TestRun_InvalidResolvedTarget(t *testing.T) {
	tests := []struct {
		name     string
		expr     string
		template string
		objects  []s3types.Object
	}{
		{
			name:     "reference to a missing group",
			expr:     `^(a)\.p\d$`,
			template: "$2",
			objects:  []s3types.Object{testutil.Obj("a.p1", mb6), testutil.Obj("a.p2", mb6)},
		},
		{
			name:     "control character from the key",
			expr:     `^in/(.*)\.part$`,
			template: "out/$1",
			objects:  []s3types.Object{testutil.Obj("in/\x07bell.part", mb6)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := testutil.NewFakeGateway(tt.objects...)
			o := New(gw, Config{Bucket: "bucket", Pattern: pattern.MustCompile(tt.expr, tt.template)}, nil, nil)

			_, err := o.Run(context.Background())
			require.Error(t, err)
			assert.True(t, errors.IsConfiguration(err))
			assert.ErrorIs(t, err, errors.ErrInvalidObjectKey)

			assert.Empty(t, gw.Mutations())
			assert.Zero(t, o.Registry().Len())
		})
	}
}

func TestRun_ExactMinimumIsAllowed(t *testing.T) {
	gw := testutil.NewFakeGateway(testutil.Obj("logs/2024-01-01.part1", s3types.MinPartSize))

	_, err := newRun(gw).Run(context.Background())
	require.NoError(t, err)
	_, ok := gw.Completed("logs/2024-01-01.merged")
	assert.True(t, ok)
}

func TestRun_DryRun(t *testing.T) {
	live := testutil.NewFakeGateway(dailyLogs()...)
	liveRun := newRun(live)
	_, err := liveRun.Run(context.Background())
	require.NoError(t, err)

	dry := testutil.NewFakeGateway(dailyLogs()...)
	dryRun := newRun(dry, func(c *Config) { c.DryRun = true })
	outcome, err := dryRun.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, outcome.Matched)

	assert.Empty(t, dry.Mutations())
	assert.Equal(t, []string{testutil.OpListObjects}, opsOf(dry.Calls()))

	liveReports := liveRun.Registry().Reports()
	dryReports := dryRun.Registry().Reports()
	require.Len(t, dryReports, len(liveReports))
	for i := range liveReports {
		assert.Equal(t, liveReports[i].Target, dryReports[i].Target)
		assert.Equal(t, liveReports[i].Sources, dryReports[i].Sources)
		assert.Equal(t, s3types.StatePending, dryReports[i].State)
		assert.Empty(t, dryReports[i].UploadID)
	}
}

func opsOf(calls []testutil.Call) []string {
	var out []string
	for _, c := range calls {
		out = append(out, c.Op)
	}
	return out
}

func TestRun_CopyFailureAbortsEverything(t *testing.T) {
	gw := testutil.NewFakeGateway(dailyLogs()...)
	gw.CopyHook = func(_ context.Context, _ int32, source string) error {
		if source == "logs/2024-01-02.part1" {
			return testutil.APIError("NoSuchKey", "The specified key does not exist.")
		}
		return nil
	}
	o := newRun(gw)

	_, err := o.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
	assert.Contains(t, err.Error(), "The specified key does not exist.")

	for target, st := range states(o) {
		assert.Equal(t, s3types.StateAborted, st, target)
	}
	assert.Empty(t, gw.Calls(testutil.OpCompleteUpload, testutil.OpListParts, testutil.OpDeleteObject))
	assert.Len(t, gw.Calls(testutil.OpAbortUpload), 2, "both opened uploads are aborted")
	assert.Zero(t, gw.OpenUploads())

	for _, r := range o.Registry().Reports() {
		assert.ErrorIs(t, r.Err, err, "sessions carry the fatal error")
	}
}

func TestRun_CopyFailureStopsBeforeNextTarget(t *testing.T) {
	tests := []struct {
		name        string
		concurrency int
	}{
		{name: "default", concurrency: 0},
		{name: "explicit sequential", concurrency: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := testutil.NewFakeGateway(dailyLogs()...)
			gw.CopyHook = func(_ context.Context, _ int32, source string) error {
				if source == "logs/2024-01-01.part2" {
					return testutil.APIError("InternalError", "We encountered an internal error.")
				}
				return nil
			}
			o := newRun(gw, func(c *Config) { c.Concurrency = tt.concurrency })

			_, err := o.Run(context.Background())
			require.Error(t, err)

			var ops []string
			for _, c := range gw.Mutations() {
				ops = append(ops, c.Op+" "+c.Key)
			}
			assert.Equal(t, []string{
				"createMultipartUpload logs/2024-01-01.merged",
				"uploadPartCopy logs/2024-01-01.merged",
				"uploadPartCopy logs/2024-01-01.merged",
				"abortMultipartUpload logs/2024-01-01.merged",
			}, ops)

			assert.Equal(t, map[string]s3types.SessionState{
				"logs/2024-01-01.merged": s3types.StateAborted,
				"logs/2024-01-02.merged": s3types.StateAborted,
			}, states(o))
			assert.Zero(t, gw.OpenUploads())
		})
	}
}

func TestRun_CreateFailureAbortsOpenedSessions(t *testing.T) {
	gw := testutil.NewFakeGateway(dailyLogs()...)
	gw.FailOn = testutil.FailWith(testutil.OpCreateUpload, "logs/2024-01-02.merged",
		testutil.APIError("AccessDenied", "Access Denied"))
	o := newRun(gw)

	_, err := o.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeForbidden, err.(*errors.Error).Code())

	aborts := gw.Calls(testutil.OpAbortUpload)
	require.Len(t, aborts, 1, "the failed session never had an upload")
	assert.Equal(t, "logs/2024-01-01.merged", aborts[0].Key)

	assert.Equal(t, map[string]s3types.SessionState{
		"logs/2024-01-01.merged": s3types.StateAborted,
		"logs/2024-01-02.merged": s3types.StateAborted,
	}, states(o))
	assert.Len(t, gw.Calls(testutil.OpCopyPart), 2)
	assert.Empty(t, gw.Calls(testutil.OpCompleteUpload))
}

func TestRun_ListingFailureIsFatal(t *testing.T) {
	gw := testutil.NewFakeGateway(dailyLogs()...)
	gw.PageSize = 1
	calls := 0
	gw.FailOn = func(op, _ string) error {
		if op != testutil.OpListObjects {
			return nil
		}
		calls++
		if calls == 3 {
			return testutil.APIError("InternalError", "We encountered an internal error.")
		}
		return nil
	}
	o := newRun(gw)

	_, err := o.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
	assert.Empty(t, gw.Mutations())
	assert.Equal(t, map[string]s3types.SessionState{
		"logs/2024-01-01.merged": s3types.StateAborted,
	}, states(o))
}

func TestRun_CompletionFailureIsScoped(t *testing.T) {
	gw := testutil.NewFakeGateway(dailyLogs()...)
	gw.FailOn = testutil.FailWith(testutil.OpCompleteUpload, "logs/2024-01-01.merged",
		testutil.APIError("InvalidPart", "One or more of the specified parts could not be found."))
	o := newRun(gw)

	_, err := o.Run(context.Background())
	require.NoError(t, err, "finalization failures do not fail the run")

	assert.Equal(t, map[string]s3types.SessionState{
		"logs/2024-01-01.merged": s3types.StateAborted,
		"logs/2024-01-02.merged": s3types.StateCompleted,
	}, states(o))

	aborts := gw.Calls(testutil.OpAbortUpload)
	require.Len(t, aborts, 1)
	assert.Equal(t, "logs/2024-01-01.merged", aborts[0].Key)

	report := o.Registry().Reports()[0]
	require.Error(t, report.Err)
	assert.True(t, errors.IsTransport(report.Err))
}

func TestRun_ListPartsFailureIsScoped(t *testing.T) {
	gw := testutil.NewFakeGateway(dailyLogs()...)
	gw.FailOn = testutil.FailWith(testutil.OpListParts, "logs/2024-01-02.merged",
		testutil.APIError("NoSuchUpload", "The specified upload does not exist."))
	o := newRun(gw)

	_, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]s3types.SessionState{
		"logs/2024-01-01.merged": s3types.StateCompleted,
		"logs/2024-01-02.merged": s3types.StateAborted,
	}, states(o))
	_, completed := gw.Completed("logs/2024-01-02.merged")
	assert.False(t, completed)
}

func TestRun_AbortFailureStillAborts(t *testing.T) {
	gw := testutil.NewFakeGateway(dailyLogs()...)
	gw.FailOn = func(op, key string) error {
		if key != "logs/2024-01-01.merged" {
			return nil
		}
		switch op {
		case testutil.OpCompleteUpload:
			return testutil.APIError("InternalError", "boom")
		case testutil.OpAbortUpload:
			return testutil.APIError("NoSuchUpload", "gone already")
		}
		return nil
	}
	logger, logs := testutil.NewLogger()
	o := New(gw, Config{Bucket: "bucket", Pattern: pattern.MustCompile(dailyExpr, dailyTemplate)}, logger, nil)

	_, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, s3types.StateAborted, states(o)["logs/2024-01-01.merged"])
	assert.Equal(t, s3types.StateCompleted, states(o)["logs/2024-01-02.merged"])
	assert.Len(t, gw.Calls(testutil.OpAbortUpload), 1, "abort is never retried")

	failed := logs.Entries("unable to abort")
	require.Len(t, failed, 1)
	assert.Equal(t, "gone already", failed[0].Attrs["error"])
}

func TestRun_PartVerification(t *testing.T) {
	dropSecond := func(key string, parts []s3types.Part) []s3types.Part {
		if key == "logs/2024-01-01.merged" && len(parts) > 1 {
			return parts[:1]
		}
		return parts
	}

	t.Run("mismatch warns and completes from remote listing", func(t *testing.T) {
		gw := testutil.NewFakeGateway(dailyLogs()...)
		gw.PartsHook = dropSecond
		logger, logs := testutil.NewLogger()
		o := New(gw, Config{Bucket: "bucket", Pattern: pattern.MustCompile(dailyExpr, dailyTemplate)}, logger, nil)

		_, err := o.Run(context.Background())
		require.NoError(t, err)

		parts, ok := gw.Completed("logs/2024-01-01.merged")
		require.True(t, ok)
		assert.Len(t, parts, 1, "the remote listing is authoritative")
		assert.Len(t, logs.Entries("remote parts differ from copied sources"), 1)
	})

	t.Run("verify aborts the session", func(t *testing.T) {
		gw := testutil.NewFakeGateway(dailyLogs()...)
		gw.PartsHook = dropSecond
		o := newRun(gw, func(c *Config) { c.VerifyParts = true })

		_, err := o.Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, map[string]s3types.SessionState{
			"logs/2024-01-01.merged": s3types.StateAborted,
			"logs/2024-01-02.merged": s3types.StateCompleted,
		}, states(o))
		report := o.Registry().Reports()[0]
		assert.ErrorIs(t, report.Err, errors.ErrPartsMismatch)
	})
}

func TestRun_PaginatedListingKeepsOrder(t *testing.T) {
	var objects []s3types.Object
	for _, k := range []string{"a.part1", "a.part2", "a.part3", "a.part4", "a.part5"} {
		objects = append(objects, testutil.Obj(k, mb6))
	}
	gw := testutil.NewFakeGateway(objects...)
	gw.PageSize = 2
	o := New(gw, Config{Bucket: "bucket", Pattern: pattern.MustCompile(`^(\w)\.part\d+$`, "$1.all")}, nil, nil)

	_, err := o.Run(context.Background())
	require.NoError(t, err)

	parts, ok := gw.Completed("a.all")
	require.True(t, ok)
	for i, p := range parts {
		assert.Equal(t, int32(i+1), p.PartNumber)
	}
	assert.Len(t, gw.Calls(testutil.OpListObjects), 3)
}

func TestRun_ConcurrentCopies(t *testing.T) {
	var objects []s3types.Object
	for _, k := range []string{"a.p1", "a.p2", "a.p3", "b.p1", "b.p2", "b.p3", "c.p1", "c.p2"} {
		objects = append(objects, testutil.Obj(k, mb6))
	}

	var inFlight, peak int32
	gw := testutil.NewFakeGateway(objects...)
	gw.CopyHook = func(context.Context, int32, string) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		atomic.AddInt32(&inFlight, -1)
		return nil
	}

	o := New(gw, Config{
		Bucket:      "bucket",
		Pattern:     pattern.MustCompile(`^(\w)\.p\d$`, "$1.all"),
		Concurrency: 3,
	}, nil, nil)

	_, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))

	for _, target := range []string{"a.all", "b.all", "c.all"} {
		parts, ok := gw.Completed(target)
		require.True(t, ok, target)
		for i, p := range parts {
			assert.Equal(t, int32(i+1), p.PartNumber, target)
		}
	}

	for _, c := range gw.Calls(testutil.OpCopyPart) {
		want := int32(c.Source[len(c.Source)-1] - '0')
		assert.Equal(t, want, c.PartNumber, "part numbers are reserved at discovery")
	}
}

func TestRun_FatalWaitsForInFlightCopies(t *testing.T) {
	var objects []s3types.Object
	for _, k := range []string{"a.p1", "a.p2", "a.p3", "a.p4"} {
		objects = append(objects, testutil.Obj(k, mb6))
	}

	var inFlight int32
	gw := testutil.NewFakeGateway(objects...)
	gw.CopyHook = func(ctx context.Context, part int32, _ string) error {
		atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		if part == 2 {
			return testutil.APIError("SlowDown", "Please reduce your request rate.")
		}
		<-ctx.Done()
		return ctx.Err()
	}
	abortedWhileCopying := false
	gw.FailOn = func(op, _ string) error {
		if op == testutil.OpAbortUpload && atomic.LoadInt32(&inFlight) != 0 {
			abortedWhileCopying = true
		}
		return nil
	}

	o := New(gw, Config{
		Bucket:      "bucket",
		Pattern:     pattern.MustCompile(`^(\w)\.p\d$`, "$1.all"),
		Concurrency: 4,
	}, nil, nil)

	_, err := o.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeRateLimit, err.(*errors.Error).Code(), "the first failure is reported")
	assert.False(t, abortedWhileCopying)
	assert.Len(t, gw.Calls(testutil.OpAbortUpload), 1)
	assert.Equal(t, s3types.StateAborted, states(o)["a.all"])
}

func TestRun_UploadOptions(t *testing.T) {
	gw := testutil.NewFakeGateway(
		testutil.Obj("in/1.part", mb6),
		testutil.Obj("out/x", mb6),
	)
	o := New(gw, Config{
		Bucket:  "bucket",
		Pattern: pattern.MustCompile(`^in/\d\.part$`, "out/all.json"),
		Upload: s3types.UploadOptions{
			StorageClass: s3types.StorageClassStandardIA,
			SSE:          &s3types.SSEConfig{Type: s3types.SSEKMS, KMSKeyID: "key"},
		},
	}, nil, nil)

	// Keep the upload open so its options can be inspected.
	gw.FailOn = func(op, _ string) error {
		if op == testutil.OpAbortUpload {
			return testutil.APIError("InternalError", "keep")
		}
		if op == testutil.OpListParts {
			return testutil.APIError("InternalError", "x")
		}
		return nil
	}

	_, err := o.Run(context.Background())
	require.NoError(t, err)

	report := o.Registry().Reports()[0]
	up, ok := gw.Upload(report.UploadID)
	require.True(t, ok)
	assert.Equal(t, "application/json", up.Opts.ContentType)
	assert.Equal(t, s3types.StorageClassStandardIA, up.Opts.StorageClass)
	assert.Equal(t, "key", up.Opts.SSE.KMSKeyID)
}

func TestRun_Deterministic(t *testing.T) {
	run := func() []s3types.SessionReport {
		gw := testutil.NewFakeGateway(dailyLogs()...)
		gw.PageSize = 1
		o := newRun(gw, func(c *Config) { c.DryRun = true })
		_, err := o.Run(context.Background())
		require.NoError(t, err)
		return o.Registry().Reports()
	}

	assert.Equal(t, run(), run())
}

func TestRun_RequiresPattern(t *testing.T) {
	gw := testutil.NewFakeGateway()
	_, err := New(gw, Config{Bucket: "bucket"}, nil, nil).Run(context.Background())
	assert.True(t, errors.IsConfiguration(err))
	assert.Empty(t, gw.Calls())
}

func TestRun_LogsProgress(t *testing.T) {
	gw := testutil.NewFakeGateway(dailyLogs()...)
	logger, logs := testutil.NewLogger()
	o := New(gw, Config{Bucket: "bucket", Pattern: pattern.MustCompile(dailyExpr, dailyTemplate)}, logger, nil)

	_, err := o.Run(context.Background())
	require.NoError(t, err)

	concat := logs.Entries("concatenating")
	require.Len(t, concat, 3)
	assert.Equal(t, "logs/2024-01-01.part1", concat[0].Attrs["source"])
	assert.Equal(t, "logs/2024-01-01.merged", concat[0].Attrs["target"])
	assert.Equal(t, "6.0 MB", concat[0].Attrs["size"])
	assert.Len(t, logs.Entries("completing"), 2)
	assert.Empty(t, logs.Entries("aborting"))

	listed := logs.Entries("listed bucket")
	require.Len(t, listed, 1)
	assert.Equal(t, "3", listed[0].Attrs["objects"])
	assert.Equal(t, "1", listed[0].Attrs["pages"])
}

func TestCompareParts(t *testing.T) {
	local := []s3types.Part{{PartNumber: 1, ETag: "a"}, {PartNumber: 2, ETag: "b"}}

	tests := []struct {
		name   string
		remote []s3types.Part
		want   string
	}{
		{name: "equal", remote: local, want: ""},
		{name: "missing", remote: local[:1], want: "copied 2 parts, upload lists 1"},
		{
			name:   "gap",
			remote: []s3types.Part{{PartNumber: 1, ETag: "a"}, {PartNumber: 3, ETag: "b"}},
			want:   "expected part 2, upload lists part 3",
		},
		{
			name:   "tag",
			remote: []s3types.Part{{PartNumber: 1, ETag: "a"}, {PartNumber: 2, ETag: "z"}},
			want:   "part 2 tag b, upload lists z",
		},
		{
			name:   "remote without tags",
			remote: []s3types.Part{{PartNumber: 1}, {PartNumber: 2}},
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compareParts(local, tt.remote))
		})
	}
}
