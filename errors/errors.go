// Package errors provides the error taxonomy for remote concatenation runs.
//
// Every failure surfaced by the module is an *Error carrying the storage
// operation that failed, the bucket and key involved, and a Kind that decides
// how far the failure propagates:
//
//   - KindConfiguration: reported before any remote call is made
//   - KindSizeConstraint: fatal to the run, no upload is created
//   - KindTransport: a storage API failure, fatal during discovery and scoped
//     to one session during finalization
//   - KindRollback: an abort or cleanup delete failed; logged, never escalated
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an Error by its propagation policy.
type Kind int

const (
	// KindUnknown is used for errors created without an explicit classification.
	KindUnknown Kind = iota

	// KindConfiguration marks invalid patterns, arguments or options.
	KindConfiguration

	// KindSizeConstraint marks a matched source below the minimum part size.
	KindSizeConstraint

	// KindTransport marks a failed storage API call.
	KindTransport

	// KindRollback marks a failed abort or cleanup delete.
	KindRollback
)

// String returns the taxonomy name of the kind.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "ConfigurationError"
	case KindSizeConstraint:
		return "SizeConstraintError"
	case KindTransport:
		return "TransportError"
	case KindRollback:
		return "RollbackError"
	default:
		return "Error"
	}
}

// Error represents a failed operation with context about where it failed.
// It wraps the underlying SDK error so errors.Is and errors.As keep working.
type Error struct {
	// Op is the operation that failed (e.g., "listObjects", "uploadPartCopy")
	Op string

	// Bucket is the bucket name (if applicable)
	Bucket string

	// Key is the object key (if applicable)
	Key string

	// Kind decides how the error propagates
	Kind Kind

	// Message is the human-readable detail; for transport errors it is the
	// message decoded from the backend's error envelope
	Message string

	// Err is the underlying error from the SDK or other source
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	detail := e.detail()
	if e.Bucket != "" && e.Key != "" {
		return fmt.Sprintf("s3.%s %s/%s: %s", e.Op, e.Bucket, e.Key, detail)
	}
	if e.Bucket != "" {
		return fmt.Sprintf("s3.%s bucket %s: %s", e.Op, e.Bucket, detail)
	}
	if e.Key != "" {
		return fmt.Sprintf("s3.%s object %s: %s", e.Op, e.Key, detail)
	}
	return fmt.Sprintf("s3.%s: %s", e.Op, detail)
}

func (e *Error) detail() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Code maps the error onto a stable ErrorCode.
func (e *Error) Code() ErrorCode {
	switch e.Kind {
	case KindConfiguration:
		if errors.Is(e.Err, ErrInvalidInput) ||
			errors.Is(e.Err, ErrInvalidBucketName) ||
			errors.Is(e.Err, ErrInvalidObjectKey) {
			return CodeInvalidInput
		}
		return CodeInvalidConfig
	case KindSizeConstraint:
		return CodeObjectTooSmall
	case KindRollback:
		return CodeRollbackFailed
	case KindTransport:
		return transportCode(e.Err)
	default:
		return CodeUnknown
	}
}

// WithBucket adds bucket context to an existing error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	if e.Message != "" {
		e.Message = message + ": " + e.Message
	}
	return e
}

// NewObjectError creates a new Error with bucket and key context.
func NewObjectError(op, bucket, key string, err error) *Error {
	return &Error{
		Op:     op,
		Bucket: bucket,
		Key:    key,
		Err:    err,
	}
}

// NewConfigurationError reports an invalid argument, pattern or option.
func NewConfigurationError(op string, err error) *Error {
	return &Error{
		Op:   op,
		Kind: KindConfiguration,
		Err:  err,
	}
}

// NewSizeConstraintError reports a matched source that cannot be used as a part.
func NewSizeConstraintError(bucket, key string, size, minimum int64) *Error {
	return &Error{
		Op:      "concat",
		Bucket:  bucket,
		Key:     key,
		Kind:    KindSizeConstraint,
		Message: fmt.Sprintf("unable to concat objects below %d bytes (object is %d bytes)", minimum, size),
		Err:     ErrObjectTooSmall,
	}
}

// NewTransportError wraps a failed storage call. The surfaced message is
// decoded from the backend error envelope when one is present.
func NewTransportError(op, bucket, key string, err error) *Error {
	return &Error{
		Op:      op,
		Bucket:  bucket,
		Key:     key,
		Kind:    KindTransport,
		Message: RemoteMessage(err),
		Err:     err,
	}
}

// NewRollbackError wraps a failed abort or cleanup delete.
func NewRollbackError(op, bucket, key string, err error) *Error {
	return &Error{
		Op:      op,
		Bucket:  bucket,
		Key:     key,
		Kind:    KindRollback,
		Message: RemoteMessage(err),
		Err:     err,
	}
}

// Sentinel errors for common failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("s3: invalid input")

	// ErrInvalidBucketName indicates that the bucket name is invalid
	ErrInvalidBucketName = errors.New("s3: invalid bucket name")

	// ErrInvalidObjectKey indicates that the object key is invalid
	ErrInvalidObjectKey = errors.New("s3: invalid object key")

	// ErrInvalidPattern indicates that the source pattern does not compile
	ErrInvalidPattern = errors.New("s3: invalid source pattern")

	// ErrMissingArgument indicates that a required argument was not supplied
	ErrMissingArgument = errors.New("s3: missing required argument")

	// ErrObjectTooSmall indicates that a source is below the minimum part size
	ErrObjectTooSmall = errors.New("s3: object below minimum part size")

	// ErrPartsMismatch indicates that the remote part listing disagrees with the session
	ErrPartsMismatch = errors.New("s3: remote parts do not match copied sources")

	// ErrDuplicateToken indicates that a listing returned the same continuation token twice
	ErrDuplicateToken = errors.New("s3: listing repeated continuation token")

	// ErrMissingUploadID indicates that the backend accepted an upload without returning an id
	ErrMissingUploadID = errors.New("s3: upload id missing from response")

	// ErrInvalidTransition indicates a session state change outside the upload lifecycle
	ErrInvalidTransition = errors.New("s3: invalid upload session transition")

	// ErrDuplicateSource indicates that a source key was queued twice
	ErrDuplicateSource = errors.New("s3: source already queued")
)

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	return KindOf(err) == KindConfiguration
}

// IsSizeConstraint reports whether err is a SizeConstraintError.
func IsSizeConstraint(err error) bool {
	return KindOf(err) == KindSizeConstraint
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	return KindOf(err) == KindTransport
}

// IsRollback reports whether err is a RollbackError.
func IsRollback(err error) bool {
	return KindOf(err) == KindRollback
}

func transportCode(err error) ErrorCode {
	if errors.Is(err, ErrPartsMismatch) {
		return CodeConflict
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	switch RemoteCode(err) {
	case "NoSuchBucket", "NoSuchKey", "NoSuchUpload", "NotFound":
		return CodeNotFound
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
		return CodeForbidden
	case "SlowDown", "Throttling", "ThrottlingException", "RequestLimitExceeded", "TooManyRequestsException":
		return CodeRateLimit
	case "RequestTimeout":
		return CodeTimeout
	}
	return CodeNetwork
}
