package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "bucket and key",
			err:  NewObjectError("uploadPartCopy", "logs", "a.merged", errors.New("boom")),
			want: "s3.uploadPartCopy logs/a.merged: boom",
		},
		{
			name: "bucket only",
			err:  &Error{Op: "listObjects", Bucket: "logs", Err: errors.New("boom")},
			want: "s3.listObjects bucket logs: boom",
		},
		{
			name: "key only",
			err:  (&Error{Op: "deleteObject", Err: errors.New("boom")}).WithKey("a"),
			want: "s3.deleteObject object a: boom",
		},
		{
			name: "no context",
			err:  &Error{Op: "concat", Err: errors.New("boom")},
			want: "s3.concat: boom",
		},
		{
			name: "message wins over wrapped error",
			err:  &Error{Op: "completeMultipartUpload", Message: "decoded", Err: errors.New("raw")},
			want: "s3.completeMultipartUpload: decoded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_WithMessage(t *testing.T) {
	err := NewConfigurationError("parseLocation", ErrInvalidBucketName).WithMessage("bucket is empty")

	assert.Equal(t, "s3.parseLocation: bucket is empty: s3: invalid bucket name", err.Error())
	assert.ErrorIs(t, err, ErrInvalidBucketName)
}

func TestSizeConstraintError(t *testing.T) {
	err := NewSizeConstraintError("logs", "logs/small.part1", 4_000_000, 5_000_000)

	assert.True(t, IsSizeConstraint(err))
	assert.ErrorIs(t, err, ErrObjectTooSmall)
	assert.Contains(t, err.Error(), "logs/small.part1")
	assert.Contains(t, err.Error(), "5000000")
	assert.Equal(t, CodeObjectTooSmall, err.Code())
}

func TestKindPredicates(t *testing.T) {
	base := errors.New("boom")
	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{"configuration", NewConfigurationError("compile", ErrInvalidPattern), KindConfiguration},
		{"size", NewSizeConstraintError("b", "k", 1, 2), KindSizeConstraint},
		{"transport", NewTransportError("listObjects", "b", "", base), KindTransport},
		{"rollback", NewRollbackError("abortMultipartUpload", "b", "k", base), KindRollback},
		{"wrapped transport", fmt.Errorf("run: %w", NewTransportError("op", "b", "k", base)), KindTransport},
		{"plain", base, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.Equal(t, tt.kind == KindConfiguration, IsConfiguration(tt.err))
			assert.Equal(t, tt.kind == KindSizeConstraint, IsSizeConstraint(tt.err))
			assert.Equal(t, tt.kind == KindTransport, IsTransport(tt.err))
			assert.Equal(t, tt.kind == KindRollback, IsRollback(tt.err))
		})
	}
}

func TestError_Code(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want ErrorCode
	}{
		{"invalid pattern", NewConfigurationError("compile", ErrInvalidPattern), CodeInvalidConfig},
		{"invalid bucket", NewConfigurationError("parseLocation", ErrInvalidBucketName), CodeInvalidInput},
		{"rollback", NewRollbackError("deleteObject", "b", "k", errors.New("x")), CodeRollbackFailed},
		{
			"missing key",
			NewTransportError("uploadPartCopy", "b", "k", &smithy.GenericAPIError{Code: "NoSuchKey", Message: "gone"}),
			CodeNotFound,
		},
		{
			"access denied",
			NewTransportError("listObjects", "b", "", &smithy.GenericAPIError{Code: "AccessDenied", Message: "no"}),
			CodeForbidden,
		},
		{
			"throttled",
			NewTransportError("listObjects", "b", "", &smithy.GenericAPIError{Code: "SlowDown", Message: "slow"}),
			CodeRateLimit,
		},
		{"deadline", NewTransportError("listObjects", "b", "", context.DeadlineExceeded), CodeTimeout},
		{"parts mismatch", NewTransportError("listParts", "b", "k", ErrPartsMismatch), CodeConflict},
		{"other transport", NewTransportError("listObjects", "b", "", errors.New("reset")), CodeNetwork},
		{"unclassified", &Error{Op: "x", Err: errors.New("y")}, CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Code())
		})
	}
}

func TestNewTransportError_DecodesEnvelope(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "InvalidAccessKeyId", Message: "My fake access key failed message"}
	err := NewTransportError("listObjects", "logs", "", fmt.Errorf("operation error S3: ListObjectsV2: %w", apiErr))

	require.True(t, IsTransport(err))
	assert.Equal(t, "s3.listObjects bucket logs: My fake access key failed message", err.Error())

	var got smithy.APIError
	assert.True(t, errors.As(err, &got), "underlying API error stays reachable")
}
