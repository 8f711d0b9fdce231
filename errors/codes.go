package errors

// ErrorCode is a stable, string-valued classification attached to every Error.
// Codes are string-based for debuggability and natural JSON serialization.
type ErrorCode string

const (
	// Validation errors.

	// CodeInvalidInput indicates the provided input is invalid or malformed.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeInvalidConfig indicates a configuration error prevents the run from starting.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"

	// CodeObjectTooSmall indicates a matched source is below the backend minimum part size.
	CodeObjectTooSmall ErrorCode = "OBJECT_TOO_SMALL"

	// Storage errors.

	// CodeNotFound indicates a bucket, object or upload does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeForbidden indicates the credentials lack permission for the operation.
	CodeForbidden ErrorCode = "FORBIDDEN"

	// CodeConflict indicates the remote upload state disagrees with the local session.
	CodeConflict ErrorCode = "CONFLICT"

	// CodeNetwork indicates a storage API call failed.
	CodeNetwork ErrorCode = "NETWORK_ERROR"

	// CodeRateLimit indicates the backend throttled the request.
	CodeRateLimit ErrorCode = "RATE_LIMIT_EXCEEDED"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// Rollback errors.

	// CodeRollbackFailed indicates an abort or cleanup delete did not succeed.
	CodeRollbackFailed ErrorCode = "ROLLBACK_FAILED"

	// Generic errors.

	// CodeUnknown indicates an unknown or unclassified error occurred.
	CodeUnknown ErrorCode = "UNKNOWN"
)
