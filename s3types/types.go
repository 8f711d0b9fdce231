// Package s3types provides shared type definitions for the s3concat module.
package s3types

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
)

// MinPartSize is the smallest object the backend accepts as a non-final
// multipart part. Every matched source must be at least this large.
const MinPartSize int64 = 5_000_000

// StorageClass represents the S3 storage class for objects.
type StorageClass string

// Predefined S3 storage classes
const (
	// StorageClassStandard is the default S3 storage class
	StorageClassStandard StorageClass = "STANDARD"

	// StorageClassReducedRedundancy provides reduced redundancy storage
	StorageClassReducedRedundancy StorageClass = "REDUCED_REDUNDANCY"

	// StorageClassStandardIA provides infrequent access storage
	StorageClassStandardIA StorageClass = "STANDARD_IA"

	// StorageClassOneZoneIA provides one zone infrequent access storage
	StorageClassOneZoneIA StorageClass = "ONEZONE_IA"

	// StorageClassIntelligentTiering provides intelligent tiering storage
	StorageClassIntelligentTiering StorageClass = "INTELLIGENT_TIERING"

	// StorageClassGlacier provides Glacier archival storage
	StorageClassGlacier StorageClass = "GLACIER"

	// StorageClassDeepArchive provides Deep Archive storage
	StorageClassDeepArchive StorageClass = "DEEP_ARCHIVE"

	// StorageClassGlacierIR provides Glacier Instant Retrieval storage
	StorageClassGlacierIR StorageClass = "GLACIER_IR"
)

// SSEType represents the server-side encryption type for objects.
type SSEType string

// Predefined server-side encryption types
const (
	// SSES3 uses S3-managed encryption keys
	SSES3 SSEType = "AES256"

	// SSEKMS uses AWS KMS-managed encryption keys
	SSEKMS SSEType = "aws:kms"
)

// ObjectACL represents the access control list for S3 objects.
type ObjectACL string

// Predefined object ACLs
const (
	// ACLPrivate grants private access (default)
	ACLPrivate ObjectACL = "private"

	// ACLPublicRead grants public read access
	ACLPublicRead ObjectACL = "public-read"

	// ACLAuthenticatedRead grants authenticated users read access
	ACLAuthenticatedRead ObjectACL = "authenticated-read"

	// ACLOwnerRead grants bucket owner read access
	ACLOwnerRead ObjectACL = "bucket-owner-read"

	// ACLOwnerFullControl grants bucket owner full control
	ACLOwnerFullControl ObjectACL = "bucket-owner-full-control"
)

// Backend selects the storage gateway implementation.
type Backend string

const (
	// BackendAWS talks to S3 through aws-sdk-go-v2 (default).
	BackendAWS Backend = "aws"

	// BackendMinio talks to any S3-compatible endpoint through minio-go.
	BackendMinio Backend = "minio"
)

// Object represents a listed object eligible for concatenation.
type Object struct {
	// Key is the object key (path)
	Key string

	// Size is the object size in bytes
	Size int64

	// LastModified is when the object was last modified
	LastModified time.Time

	// ETag is the entity tag for the object
	ETag string
}

// Part is one part recorded against a multipart upload.
type Part struct {
	// PartNumber is the 1-based slot of the part
	PartNumber int32

	// ETag is the tag returned for the part, required to complete the upload
	ETag string

	// Size is the part size in bytes, when the backend reports it
	Size int64
}

// SSEConfig contains server-side encryption configuration for target objects.
type SSEConfig struct {
	// Type is the encryption type (S3 or KMS)
	Type SSEType

	// KMSKeyID is the KMS key ID (optional for SSE-KMS)
	KMSKeyID string
}

// UploadOptions are applied when a target multipart upload is created.
type UploadOptions struct {
	ContentType  string
	StorageClass StorageClass
	SSE          *SSEConfig
	ACL          ObjectACL
	Metadata     map[string]string
}

// SessionState is the lifecycle state of one target upload.
type SessionState string

const (
	// StatePending means the target was resolved but no remote upload exists yet.
	StatePending SessionState = "pending"

	// StateOpen means the remote multipart upload exists and parts are being copied.
	StateOpen SessionState = "open"

	// StateCompleting means finalization was requested.
	StateCompleting SessionState = "completing"

	// StateCompleted is terminal: the target object exists.
	StateCompleted SessionState = "completed"

	// StateAborted is terminal: the upload was rolled back or never created.
	StateAborted SessionState = "aborted"
)

// Terminal reports whether no further transition is possible.
func (s SessionState) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}

// SessionReport describes the outcome for one target.
type SessionReport struct {
	// Target is the resolved target key
	Target string

	// UploadID is the multipart upload id, empty in dry runs or when creation failed
	UploadID string

	// Sources are the source keys in part order (part N is Sources[N-1])
	Sources []string

	// Bytes is the sum of the source sizes
	Bytes int64

	// State is the final lifecycle state
	State SessionState

	// Err is the error that aborted the session, if any
	Err error
}

// ConcatResult contains the result of a concatenation run.
type ConcatResult struct {
	// RunID correlates log lines of a single run
	RunID string

	// Bucket and Prefix describe the listed location
	Bucket string
	Prefix string

	// DryRun is true when no remote mutations were issued
	DryRun bool

	// Sessions are the targets in discovery order
	Sessions []SessionReport

	// Listed is the number of objects returned by the listing
	Listed int

	// Matched is the number of sources queued into sessions
	Matched int

	// SelfTargets is the number of matching keys skipped because they resolve to themselves
	SelfTargets int

	// Removed are the source keys deleted by cleanup
	Removed []string

	// CleanupErrors are the per-key failures reported by cleanup
	CleanupErrors []error

	// Duration is how long the run took
	Duration time.Duration
}

// Count returns the number of sessions in the given state.
func (r *ConcatResult) Count(state SessionState) int {
	n := 0
	for _, s := range r.Sessions {
		if s.State == state {
			n++
		}
	}
	return n
}

// Configuration types for functional options

// ClientConfig holds configuration for the concatenation client.
type ClientConfig struct {
	Backend          Backend
	Region           string
	Endpoint         string
	MaxRetries       int
	Timeout          time.Duration
	Concurrency      int
	ForcePathStyle   bool
	CustomAWSConfig  *aws.Config
	DisableSSL       bool
	RetryMode        string
	CustomHTTPClient *http.Client
	Logger           *slog.Logger
	Metrics          prometheus.Registerer
}

// ConcatConfig holds configuration for a single run via functional options.
type ConcatConfig struct {
	Cleanup     bool
	DryRun      bool
	VerifyParts bool
	Concurrency int
	Upload      UploadOptions
}

// Option is a functional option for configuring the client.
type (
	Option func(*ClientConfig)
	// ConcatOption is a functional option for configuring a concatenation run.
	ConcatOption func(*ConcatConfig)
)
