// Package gateway defines the storage boundary used by the concatenation
// engine. Implementations live in the awsgw and miniogw subpackages; both
// wrap every failure in an *errors.Error of kind KindTransport.
package gateway

import (
	"context"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/s3types"
)

// Page is one page of a bucket listing.
type Page struct {
	// Objects are the listed objects, in the order the backend returned them
	Objects []s3types.Object

	// NextToken continues the listing; empty when the listing is exhausted
	NextToken string
}

// Gateway is the set of remote operations needed to concatenate objects
// without transferring their bytes through the client.
type Gateway interface {
	// ListObjects returns one page of objects under prefix, starting at token.
	ListObjects(ctx context.Context, bucket, prefix, token string) (*Page, error)

	// CreateMultipartUpload opens a multipart upload for key and returns its id.
	CreateMultipartUpload(ctx context.Context, bucket, key string, opts *s3types.UploadOptions) (string, error)

	// CopyObjectPart copies source, whole, into part partNumber of the upload.
	CopyObjectPart(
		ctx context.Context,
		bucket, targetKey, uploadID string,
		partNumber int32,
		source s3types.Object,
	) (string, error)

	// ListUploadParts returns every part recorded against the upload, across all pages.
	ListUploadParts(ctx context.Context, bucket, key, uploadID string) ([]s3types.Part, error)

	// CompleteMultipartUpload assembles parts into the target object.
	CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []s3types.Part) error

	// AbortMultipartUpload discards the upload and every part recorded against it.
	AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error

	// DeleteObject removes key from bucket.
	DeleteObject(ctx context.Context, bucket, key string) error
}
