package testutil

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/aws/smithy-go"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/gateway"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/s3types"
)

// Operation names recorded by FakeGateway.
const (
	OpListObjects    = "listObjects"
	OpCreateUpload   = "createMultipartUpload"
	OpCopyPart       = "uploadPartCopy"
	OpListParts      = "listParts"
	OpCompleteUpload = "completeMultipartUpload"
	OpAbortUpload    = "abortMultipartUpload"
	OpDeleteObject   = "deleteObject"
)

// Call is one recorded gateway invocation.
type Call struct {
	Op         string
	Key        string
	UploadID   string
	PartNumber int32
	Source     string
}

// FakeUpload is an in-progress multipart upload held by FakeGateway.
type FakeUpload struct {
	Key   string
	Opts  s3types.UploadOptions
	Parts map[int32]s3types.Part
}

// FakeGateway is an in-memory single-bucket gateway.Gateway that records
// every call and lets tests inject failures per operation and key.
type FakeGateway struct {
	// PageSize bounds the objects returned per listing page (default 1000)
	PageSize int

	// FailOn returns a non-nil error to fail the given operation on key.
	// The error is wrapped as a transport error, as the real gateways do.
	FailOn func(op, key string) error

	// CopyHook runs before each part copy is applied; a non-nil error fails the copy.
	CopyHook func(ctx context.Context, partNumber int32, source string) error

	// PartsHook rewrites the part listing returned for a key.
	PartsHook func(key string, parts []s3types.Part) []s3types.Part

	mu        sync.Mutex
	objects   map[string]s3types.Object
	uploads   map[string]*FakeUpload
	completed map[string][]s3types.Part
	calls     []Call
	nextID    int
}

var _ gateway.Gateway = (*FakeGateway)(nil)

// NewFakeGateway creates a FakeGateway holding objects.
func NewFakeGateway(objects ...s3types.Object) *FakeGateway {
	g := &FakeGateway{
		objects:   make(map[string]s3types.Object, len(objects)),
		uploads:   make(map[string]*FakeUpload),
		completed: make(map[string][]s3types.Part),
	}
	for _, obj := range objects {
		g.objects[obj.Key] = obj
	}
	return g
}

// Obj is shorthand for an s3types.Object with a key and size.
func Obj(key string, size int64) s3types.Object {
	return s3types.Object{Key: key, Size: size, ETag: fmt.Sprintf("%q", "etag-"+key)}
}

// FailWith returns a FailOn function failing op on key with err.
func FailWith(op, key string, err error) func(string, string) error {
	return func(o, k string) error {
		if o == op && (key == "" || k == key) {
			return err
		}
		return nil
	}
}

// APIError builds a backend error with the given code and message.
func APIError(code, message string) error {
	return &smithy.GenericAPIError{Code: code, Message: message}
}

func (g *FakeGateway) record(c Call) error {
	g.calls = append(g.calls, c)
	if g.FailOn != nil {
		if err := g.FailOn(c.Op, c.Key); err != nil {
			return err
		}
	}
	return nil
}

// ListObjects returns keys under prefix in lexical order; the token is the
// last key of the previous page.
func (g *FakeGateway) ListObjects(_ context.Context, bucket, prefix, token string) (*gateway.Page, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.record(Call{Op: OpListObjects, Key: prefix}); err != nil {
		return nil, errors.NewTransportError(OpListObjects, bucket, "", err)
	}

	size := g.PageSize
	if size <= 0 {
		size = 1000
	}

	keys := make([]string, 0, len(g.objects))
	for k := range g.objects {
		if strings.HasPrefix(k, prefix) && k > token {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	page := &gateway.Page{}
	for i, k := range keys {
		if i == size {
			page.NextToken = keys[i-1]
			break
		}
		page.Objects = append(page.Objects, g.objects[k])
	}

	return page, nil
}

// CreateMultipartUpload opens an upload with a sequential id.
func (g *FakeGateway) CreateMultipartUpload(
	_ context.Context,
	bucket, key string,
	opts *s3types.UploadOptions,
) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.record(Call{Op: OpCreateUpload, Key: key}); err != nil {
		return "", errors.NewTransportError(OpCreateUpload, bucket, key, err)
	}

	g.nextID++
	id := fmt.Sprintf("upload-%d", g.nextID)
	up := &FakeUpload{Key: key, Parts: make(map[int32]s3types.Part)}
	if opts != nil {
		up.Opts = *opts
	}
	g.uploads[id] = up

	return id, nil
}

// CopyObjectPart records source as part partNumber of the upload.
func (g *FakeGateway) CopyObjectPart(
	ctx context.Context,
	bucket, targetKey, uploadID string,
	partNumber int32,
	source s3types.Object,
) (string, error) {
	if g.CopyHook != nil {
		if err := g.CopyHook(ctx, partNumber, source.Key); err != nil {
			g.mu.Lock()
			g.calls = append(g.calls, Call{Op: OpCopyPart, Key: targetKey, UploadID: uploadID, PartNumber: partNumber, Source: source.Key})
			g.mu.Unlock()
			return "", errors.NewTransportError(OpCopyPart, bucket, targetKey, err)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	call := Call{Op: OpCopyPart, Key: targetKey, UploadID: uploadID, PartNumber: partNumber, Source: source.Key}
	if err := g.record(call); err != nil {
		return "", errors.NewTransportError(OpCopyPart, bucket, targetKey, err)
	}
	if err := ctx.Err(); err != nil {
		return "", errors.NewTransportError(OpCopyPart, bucket, targetKey, err)
	}

	up, ok := g.uploads[uploadID]
	if !ok {
		return "", errors.NewTransportError(OpCopyPart, bucket, targetKey,
			APIError("NoSuchUpload", "The specified upload does not exist."))
	}
	src, ok := g.objects[source.Key]
	if !ok {
		return "", errors.NewTransportError(OpCopyPart, bucket, targetKey,
			APIError("NoSuchKey", "The specified key does not exist."))
	}

	etag := fmt.Sprintf("%q", fmt.Sprintf("%s-%d", source.Key, partNumber))
	up.Parts[partNumber] = s3types.Part{PartNumber: partNumber, ETag: etag, Size: src.Size}

	return etag, nil
}

// ListUploadParts returns the recorded parts in part number order.
func (g *FakeGateway) ListUploadParts(_ context.Context, bucket, key, uploadID string) ([]s3types.Part, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.record(Call{Op: OpListParts, Key: key, UploadID: uploadID}); err != nil {
		return nil, errors.NewTransportError(OpListParts, bucket, key, err)
	}

	up, ok := g.uploads[uploadID]
	if !ok {
		return nil, errors.NewTransportError(OpListParts, bucket, key,
			APIError("NoSuchUpload", "The specified upload does not exist."))
	}

	parts := make([]s3types.Part, 0, len(up.Parts))
	for _, p := range up.Parts {
		parts = append(parts, p)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })

	if g.PartsHook != nil {
		parts = g.PartsHook(key, parts)
	}

	return parts, nil
}

// CompleteMultipartUpload materialises the target object.
func (g *FakeGateway) CompleteMultipartUpload(
	_ context.Context,
	bucket, key, uploadID string,
	parts []s3types.Part,
) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.record(Call{Op: OpCompleteUpload, Key: key, UploadID: uploadID}); err != nil {
		return errors.NewTransportError(OpCompleteUpload, bucket, key, err)
	}

	up, ok := g.uploads[uploadID]
	if !ok {
		return errors.NewTransportError(OpCompleteUpload, bucket, key,
			APIError("NoSuchUpload", "The specified upload does not exist."))
	}

	var size int64
	for _, p := range parts {
		recorded, ok := up.Parts[p.PartNumber]
		if !ok || recorded.ETag != p.ETag {
			return errors.NewTransportError(OpCompleteUpload, bucket, key,
				APIError("InvalidPart", "One or more of the specified parts could not be found."))
		}
		size += recorded.Size
	}

	delete(g.uploads, uploadID)
	g.completed[key] = append([]s3types.Part(nil), parts...)
	g.objects[key] = s3types.Object{Key: key, Size: size}

	return nil
}

// AbortMultipartUpload drops the upload.
func (g *FakeGateway) AbortMultipartUpload(_ context.Context, bucket, key, uploadID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.record(Call{Op: OpAbortUpload, Key: key, UploadID: uploadID}); err != nil {
		return errors.NewTransportError(OpAbortUpload, bucket, key, err)
	}

	if _, ok := g.uploads[uploadID]; !ok {
		return errors.NewTransportError(OpAbortUpload, bucket, key,
			APIError("NoSuchUpload", "The specified upload does not exist."))
	}
	delete(g.uploads, uploadID)

	return nil
}

// DeleteObject removes key; deleting a missing key succeeds.
func (g *FakeGateway) DeleteObject(_ context.Context, bucket, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.record(Call{Op: OpDeleteObject, Key: key}); err != nil {
		return errors.NewTransportError(OpDeleteObject, bucket, key, err)
	}
	delete(g.objects, key)

	return nil
}

// Calls returns a copy of the recorded calls, optionally filtered by op.
func (g *FakeGateway) Calls(ops ...string) []Call {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Call, 0, len(g.calls))
	for _, c := range g.calls {
		if len(ops) == 0 || slices.Contains(ops, c.Op) {
			out = append(out, c)
		}
	}
	return out
}

// Mutations returns the recorded calls that change remote state.
func (g *FakeGateway) Mutations() []Call {
	return g.Calls(OpCreateUpload, OpCopyPart, OpCompleteUpload, OpAbortUpload, OpDeleteObject)
}

// Keys returns the stored object keys in lexical order.
func (g *FakeGateway) Keys() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	keys := make([]string, 0, len(g.objects))
	for k := range g.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Completed returns the manifest a target was completed with.
func (g *FakeGateway) Completed(key string) ([]s3types.Part, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	parts, ok := g.completed[key]
	return parts, ok
}

// OpenUploads returns the number of uploads neither completed nor aborted.
func (g *FakeGateway) OpenUploads() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.uploads)
}

// Upload returns the in-progress upload with the given id.
func (g *FakeGateway) Upload(uploadID string) (*FakeUpload, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	up, ok := g.uploads[uploadID]
	return up, ok
}
