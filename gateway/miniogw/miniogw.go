// Package miniogw implements gateway.Gateway for S3-compatible endpoints
// using the minio-go low-level Core API.
package miniogw

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/smithy-go"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/encrypt"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/gateway"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/s3types"
)

const (
	maxKeys  = 1000
	maxParts = 1000
)

// Config holds connection settings for an S3-compatible endpoint.
type Config struct {
	// Endpoint is host[:port], without scheme. Defaults to the AWS endpoint for Region.
	Endpoint string

	// Region is sent with signed requests
	Region string

	// Insecure disables TLS
	Insecure bool

	// ForcePathStyle uses path-style bucket addressing
	ForcePathStyle bool

	// Creds overrides the default environment credential chain
	Creds *credentials.Credentials

	// Transport overrides the HTTP transport
	Transport http.RoundTripper
}

// Gateway issues concatenation calls through a minio Core client.
type Gateway struct {
	core   *minio.Core
	logger *slog.Logger
}

var _ gateway.Gateway = (*Gateway)(nil)

// New connects a Gateway using cfg. Credentials default to the AWS_* and
// MINIO_* environment variables followed by the shared AWS credentials file.
func New(cfg Config, logger *slog.Logger) (*Gateway, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	if endpoint == "" {
		if cfg.Region != "" {
			endpoint = fmt.Sprintf("s3.%s.amazonaws.com", cfg.Region)
		} else {
			endpoint = "s3.amazonaws.com"
		}
	}

	creds := cfg.Creds
	if creds == nil {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.EnvMinio{},
			&credentials.FileAWSCredentials{},
		})
	}

	options := &minio.Options{
		Creds:     creds,
		Secure:    !cfg.Insecure,
		Region:    cfg.Region,
		Transport: cfg.Transport,
	}
	if cfg.ForcePathStyle {
		options.BucketLookup = minio.BucketLookupPath
	}

	core, err := minio.NewCore(endpoint, options)
	if err != nil {
		return nil, errors.NewConfigurationError("newMinioClient", err).
			WithMessage("endpoint " + endpoint)
	}

	return NewWithCore(core, logger), nil
}

// NewWithCore wraps an existing Core client.
func NewWithCore(core *minio.Core, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gateway{core: core, logger: logger}
}

// ListObjects returns one page of the listing under prefix.
func (g *Gateway) ListObjects(ctx context.Context, bucket, prefix, token string) (*gateway.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewTransportError("listObjects", bucket, "", err)
	}

	result, err := g.core.ListObjectsV2(bucket, prefix, "", token, "", maxKeys)
	if err != nil {
		return nil, errors.NewTransportError("listObjects", bucket, "", translateError(err))
	}

	page := &gateway.Page{
		Objects: make([]s3types.Object, 0, len(result.Contents)),
	}
	for _, obj := range result.Contents {
		page.Objects = append(page.Objects, s3types.Object{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			ETag:         obj.ETag,
		})
	}
	if result.IsTruncated {
		page.NextToken = result.NextContinuationToken
	}

	g.logger.DebugContext(ctx, "listed page",
		"bucket", bucket, "prefix", prefix, "objects", len(page.Objects), "truncated", page.NextToken != "")

	return page, nil
}

// CreateMultipartUpload opens a multipart upload for key.
func (g *Gateway) CreateMultipartUpload(
	ctx context.Context,
	bucket, key string,
	opts *s3types.UploadOptions,
) (string, error) {
	putOpts, err := putObjectOptions(opts)
	if err != nil {
		return "", errors.NewConfigurationError("createMultipartUpload", err).WithBucket(bucket).WithKey(key)
	}

	uploadID, err := g.core.NewMultipartUpload(ctx, bucket, key, putOpts)
	if err != nil {
		return "", errors.NewTransportError("createMultipartUpload", bucket, key, translateError(err))
	}
	if uploadID == "" {
		return "", errors.NewTransportError("createMultipartUpload", bucket, key, errors.ErrMissingUploadID)
	}

	return uploadID, nil
}

// putObjectOptions maps upload options onto minio's request options.
// The canned ACL travels as an x-amz-acl header.
func putObjectOptions(opts *s3types.UploadOptions) (minio.PutObjectOptions, error) {
	var out minio.PutObjectOptions
	if opts == nil {
		return out, nil
	}

	out.ContentType = opts.ContentType
	out.StorageClass = string(opts.StorageClass)

	meta := make(map[string]string, len(opts.Metadata)+1)
	for k, v := range opts.Metadata {
		meta[k] = v
	}
	if opts.ACL != "" {
		meta["x-amz-acl"] = string(opts.ACL)
	}
	if len(meta) > 0 {
		out.UserMetadata = meta
	}

	if opts.SSE != nil {
		switch opts.SSE.Type {
		case s3types.SSES3:
			out.ServerSideEncryption = encrypt.NewSSE()
		case s3types.SSEKMS:
			sse, err := encrypt.NewSSEKMS(opts.SSE.KMSKeyID, nil)
			if err != nil {
				return out, err
			}
			out.ServerSideEncryption = sse
		default:
			return out, fmt.Errorf("%w: unsupported encryption %q", errors.ErrInvalidInput, opts.SSE.Type)
		}
	}

	return out, nil
}

// CopyObjectPart copies the whole source object into one part of the upload.
func (g *Gateway) CopyObjectPart(
	ctx context.Context,
	bucket, targetKey, uploadID string,
	partNumber int32,
	source s3types.Object,
) (string, error) {
	part, err := g.core.CopyObjectPart(ctx, bucket, source.Key, bucket, targetKey, uploadID, int(partNumber), 0, -1, nil)
	if err != nil {
		return "", errors.NewTransportError("uploadPartCopy", bucket, targetKey, translateError(err)).
			WithMessage(fmt.Sprintf("part %d from %s", partNumber, source.Key))
	}

	return part.ETag, nil
}

// ListUploadParts walks every page of the part listing.
func (g *Gateway) ListUploadParts(ctx context.Context, bucket, key, uploadID string) ([]s3types.Part, error) {
	var (
		parts  []s3types.Part
		marker int
	)

	for {
		result, err := g.core.ListObjectParts(ctx, bucket, key, uploadID, marker, maxParts)
		if err != nil {
			return nil, errors.NewTransportError("listParts", bucket, key, translateError(err))
		}

		for _, p := range result.ObjectParts {
			parts = append(parts, s3types.Part{
				PartNumber: int32(p.PartNumber),
				ETag:       p.ETag,
				Size:       p.Size,
			})
		}

		if !result.IsTruncated || result.NextPartNumberMarker <= marker {
			break
		}
		marker = result.NextPartNumberMarker
	}

	return parts, nil
}

// CompleteMultipartUpload assembles parts into the target object.
func (g *Gateway) CompleteMultipartUpload(
	ctx context.Context,
	bucket, key, uploadID string,
	parts []s3types.Part,
) error {
	completed := make([]minio.CompletePart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, minio.CompletePart{
			PartNumber: int(p.PartNumber),
			ETag:       p.ETag,
		})
	}

	if _, err := g.core.CompleteMultipartUpload(ctx, bucket, key, uploadID, completed, minio.PutObjectOptions{}); err != nil {
		return errors.NewTransportError("completeMultipartUpload", bucket, key, translateError(err))
	}

	return nil
}

// AbortMultipartUpload discards the upload.
func (g *Gateway) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	if err := g.core.AbortMultipartUpload(ctx, bucket, key, uploadID); err != nil {
		return errors.NewTransportError("abortMultipartUpload", bucket, key, translateError(err))
	}

	return nil
}

// DeleteObject removes a single object.
func (g *Gateway) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := g.core.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return errors.NewTransportError("deleteObject", bucket, key, translateError(err))
	}

	return nil
}

// translateError normalises a minio error response into a smithy API error
// so the envelope decoder treats both backends alike.
func translateError(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "" {
		return err
	}
	return &smithy.GenericAPIError{
		Code:    resp.Code,
		Message: resp.Message,
	}
}
