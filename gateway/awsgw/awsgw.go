// Package awsgw implements gateway.Gateway on top of aws-sdk-go-v2.
package awsgw

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/gateway"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/s3types"
)

// maxKeys is the largest page S3 returns for listings.
const maxKeys = 1000

// Gateway issues concatenation calls against an S3API client.
type Gateway struct {
	client s3api.S3API
	logger *slog.Logger
}

var _ gateway.Gateway = (*Gateway)(nil)

// New creates a Gateway. A nil logger discards debug output.
func New(client s3api.S3API, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gateway{client: client, logger: logger}
}

// ListObjects returns one page of the listing under prefix.
func (g *Gateway) ListObjects(ctx context.Context, bucket, prefix, token string) (*gateway.Page, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		MaxKeys: aws.Int32(maxKeys),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	if token != "" {
		input.ContinuationToken = aws.String(token)
	}

	output, err := g.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, errors.NewTransportError("listObjects", bucket, "", err)
	}

	page := &gateway.Page{
		Objects: make([]s3types.Object, 0, len(output.Contents)),
	}
	for _, obj := range output.Contents {
		page.Objects = append(page.Objects, s3types.Object{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified),
			ETag:         aws.ToString(obj.ETag),
		})
	}
	if aws.ToBool(output.IsTruncated) {
		page.NextToken = aws.ToString(output.NextContinuationToken)
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
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	applyUploadOptions(input, opts)

	output, err := g.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", errors.NewTransportError("createMultipartUpload", bucket, key, err)
	}

	uploadID := aws.ToString(output.UploadId)
	if uploadID == "" {
		return "", errors.NewTransportError("createMultipartUpload", bucket, key, errors.ErrMissingUploadID)
	}

	return uploadID, nil
}

// applyUploadOptions applies storage class, encryption, ACL and content type
// to the target upload.
func applyUploadOptions(input *s3.CreateMultipartUploadInput, opts *s3types.UploadOptions) {
	if opts == nil {
		return
	}

	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}

	if opts.StorageClass != "" {
		input.StorageClass = awstypes.StorageClass(opts.StorageClass)
	}

	if opts.SSE != nil {
		switch opts.SSE.Type {
		case s3types.SSES3:
			input.ServerSideEncryption = awstypes.ServerSideEncryptionAes256
		case s3types.SSEKMS:
			input.ServerSideEncryption = awstypes.ServerSideEncryptionAwsKms
			if opts.SSE.KMSKeyID != "" {
				input.SSEKMSKeyId = aws.String(opts.SSE.KMSKeyID)
			}
		}
	}

	if opts.ACL != "" {
		input.ACL = awstypes.ObjectCannedACL(opts.ACL)
	}

	if len(opts.Metadata) > 0 {
		input.Metadata = opts.Metadata
	}
}

// CopyObjectPart copies the whole source object into one part of the upload.
func (g *Gateway) CopyObjectPart(
	ctx context.Context,
	bucket, targetKey, uploadID string,
	partNumber int32,
	source s3types.Object,
) (string, error) {
	input := &s3.UploadPartCopyInput{
		Bucket:     aws.String(bucket),
		Key:        aws.String(targetKey),
		CopySource: aws.String(copySource(bucket, source.Key)),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(partNumber),
	}

	output, err := g.client.UploadPartCopy(ctx, input)
	if err != nil {
		return "", errors.NewTransportError("uploadPartCopy", bucket, targetKey, err).
			WithMessage("part " + strconv.Itoa(int(partNumber)) + " from " + source.Key)
	}

	var etag string
	if output.CopyPartResult != nil {
		etag = aws.ToString(output.CopyPartResult.ETag)
	}

	return etag, nil
}

// copySource builds the URL-encoded "bucket/key" copy source header value.
func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return bucket + "/" + strings.Join(segments, "/")
}

// ListUploadParts walks every page of the part listing.
func (g *Gateway) ListUploadParts(ctx context.Context, bucket, key, uploadID string) ([]s3types.Part, error) {
	var (
		parts  []s3types.Part
		marker *string
	)

	for {
		output, err := g.client.ListParts(ctx, &s3.ListPartsInput{
			Bucket:           aws.String(bucket),
			Key:              aws.String(key),
			UploadId:         aws.String(uploadID),
			PartNumberMarker: marker,
		})
		if err != nil {
			return nil, errors.NewTransportError("listParts", bucket, key, err)
		}

		for _, p := range output.Parts {
			parts = append(parts, s3types.Part{
				PartNumber: aws.ToInt32(p.PartNumber),
				ETag:       aws.ToString(p.ETag),
				Size:       aws.ToInt64(p.Size),
			})
		}

		next := aws.ToString(output.NextPartNumberMarker)
		if !aws.ToBool(output.IsTruncated) || next == "" || next == aws.ToString(marker) {
			break
		}
		marker = aws.String(next)
	}

	return parts, nil
}

// CompleteMultipartUpload assembles parts into the target object.
func (g *Gateway) CompleteMultipartUpload(
	ctx context.Context,
	bucket, key, uploadID string,
	parts []s3types.Part,
) error {
	completed := make([]awstypes.CompletedPart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, awstypes.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(p.PartNumber),
		})
	}

	_, err := g.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &awstypes.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return errors.NewTransportError("completeMultipartUpload", bucket, key, err)
	}

	return nil
}

// AbortMultipartUpload discards the upload.
func (g *Gateway) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	_, err := g.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return errors.NewTransportError("abortMultipartUpload", bucket, key, err)
	}

	return nil
}

// DeleteObject removes a single object.
func (g *Gateway) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.NewTransportError("deleteObject", bucket, key, err)
	}

	return nil
}
