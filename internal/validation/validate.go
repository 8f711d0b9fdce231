package validation

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/s3types"
)

var mimePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-+.]*/[a-zA-Z0-9][a-zA-Z0-9\-+.]*(\s*;.*)?$`)

var validACLs = []s3types.ObjectACL{
	s3types.ACLPrivate,
	s3types.ACLPublicRead,
	s3types.ACLAuthenticatedRead,
	s3types.ACLOwnerRead,
	s3types.ACLOwnerFullControl,
}

var validStorageClasses = []s3types.StorageClass{
	s3types.StorageClassStandard,
	s3types.StorageClassReducedRedundancy,
	s3types.StorageClassStandardIA,
	s3types.StorageClassOneZoneIA,
	s3types.StorageClassIntelligentTiering,
	s3types.StorageClassGlacier,
	s3types.StorageClassDeepArchive,
	s3types.StorageClassGlacierIR,
}

func bucketError(bucket, message string) error {
	return errors.NewConfigurationError("validateBucketName", errors.ErrInvalidBucketName).
		WithBucket(bucket).
		WithMessage(message)
}

func keyError(op, key, message string) error {
	return errors.NewConfigurationError(op, errors.ErrInvalidObjectKey).
		WithKey(key).
		WithMessage(message)
}

func inputError(op, message string) error {
	return errors.NewConfigurationError(op, errors.ErrInvalidInput).WithMessage(message)
}

// ValidateBucketName validates that a bucket name is DNS-compliant according to AWS S3 rules.
func ValidateBucketName(bucket string) error {
	if bucket == "" {
		return bucketError(bucket, "bucket name cannot be empty")
	}

	// Bucket names must be between 3 and 63 characters long
	if len(bucket) < 3 || len(bucket) > 63 {
		return bucketError(bucket, "bucket name must be between 3 and 63 characters long")
	}

	for _, char := range bucket {
		if !isValidBucketChar(char) {
			return bucketError(bucket, "bucket name can only contain lowercase letters, numbers, dots, and hyphens")
		}
	}

	first, last := bucket[0], bucket[len(bucket)-1]
	if first == '-' || first == '.' || last == '-' || last == '.' {
		return bucketError(bucket, "bucket name cannot start or end with a hyphen or dot")
	}

	if isIPAddress(bucket) {
		return bucketError(bucket, "bucket name cannot be formatted as an IP address")
	}

	if strings.Contains(bucket, "..") {
		return bucketError(bucket, "bucket name cannot contain two adjacent periods")
	}

	if bucket == "localhost" {
		return bucketError(bucket, "bucket name cannot be a reserved word")
	}

	return nil
}

// ValidateTarget validates a target template. Capture references such as
// $1 are allowed; every expanded key goes through ValidateObjectKey.
func ValidateTarget(template string) error {
	if template == "" {
		return keyError("validateTarget", template, "target cannot be empty")
	}
	return validateKeyText("validateTarget", template)
}

// ValidatePrefix validates a listing prefix. An empty prefix lists the
// whole bucket.
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return nil
	}
	return validateKeyText("validatePrefix", prefix)
}

// ValidateObjectKey validates that an object key is valid according to AWS S3 rules.
// Keys are opaque to S3, so "..", leading slashes and the like are accepted.
func ValidateObjectKey(key string) error {
	if key == "" {
		return keyError("validateObjectKey", key, "object key cannot be empty")
	}
	return validateKeyText("validateObjectKey", key)
}

func validateKeyText(op, key string) error {
	// S3 supports keys up to 1024 bytes
	if len(key) > 1024 {
		return keyError(op, key, "object key cannot exceed 1024 characters")
	}

	if hasControlCharacters(key) {
		return keyError(op, key, "object key cannot contain control characters")
	}

	return nil
}

// ValidateUploadOptions validates the options applied to every target upload.
func ValidateUploadOptions(opts *s3types.UploadOptions) error {
	if opts == nil {
		return nil
	}

	if err := ValidateContentType(opts.ContentType); err != nil {
		return err
	}
	if err := ValidateStorageClass(opts.StorageClass); err != nil {
		return err
	}
	if err := ValidateACL(opts.ACL); err != nil {
		return err
	}
	if err := ValidateSSE(opts.SSE); err != nil {
		return err
	}
	return ValidateMetadata(opts.Metadata)
}

// ValidateContentType validates that a content type is a well-formed MIME type.
func ValidateContentType(contentType string) error {
	if contentType == "" {
		return nil
	}

	if !mimePattern.MatchString(contentType) {
		return inputError("validateContentType", "content type must be a valid MIME type")
	}

	return nil
}

// ValidateStorageClass validates a storage class name.
func ValidateStorageClass(class s3types.StorageClass) error {
	if class == "" || slices.Contains(validStorageClasses, class) {
		return nil
	}
	return inputError("validateStorageClass", fmt.Sprintf("unknown storage class %q", class))
}

// ValidateACL validates a canned ACL name.
func ValidateACL(acl s3types.ObjectACL) error {
	if acl == "" || slices.Contains(validACLs, acl) {
		return nil
	}
	return inputError("validateACL",
		"ACL must be one of: private, public-read, authenticated-read, bucket-owner-read, bucket-owner-full-control")
}

// ValidateSSE validates server-side encryption settings.
func ValidateSSE(sse *s3types.SSEConfig) error {
	if sse == nil {
		return nil
	}

	switch sse.Type {
	case s3types.SSES3:
		if sse.KMSKeyID != "" {
			return inputError("validateSSE", "a KMS key id requires aws:kms encryption")
		}
	case s3types.SSEKMS:
	default:
		return inputError("validateSSE", fmt.Sprintf("unknown encryption type %q", sse.Type))
	}

	return nil
}

// ValidateMetadata validates metadata keys and values according to S3 rules.
func ValidateMetadata(metadata map[string]string) error {
	for key, value := range metadata {
		if err := validateMetadataKey(key); err != nil {
			return err
		}
		if err := validateMetadataValue(value); err != nil {
			return err
		}
	}
	return nil
}

func isValidBucketChar(char rune) bool {
	return (char >= '0' && char <= '9') || (char >= 'a' && char <= 'z') || char == '.' || char == '-'
}

// isIPAddress checks if a string is formatted as an IP address
func isIPAddress(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}

	for _, part := range parts {
		if part == "" {
			return true
		}
		num := 0
		for _, char := range part {
			if char < '0' || char > '9' {
				return false
			}
			num = num*10 + int(char-'0')
		}
		if num > 255 {
			return false
		}
	}

	return true
}

func hasControlCharacters(key string) bool {
	return strings.IndexFunc(key, unicode.IsControl) >= 0
}

func validateMetadataKey(key string) error {
	if key == "" {
		return inputError("validateMetadata", "metadata key cannot be empty")
	}

	if len(key) > 128 {
		return inputError("validateMetadata", "metadata key cannot exceed 128 characters")
	}

	lower := strings.ToLower(key)
	for _, prefix := range []string{"aws:", "x-amz-", "x-amz:"} {
		if strings.HasPrefix(lower, prefix) {
			return inputError("validateMetadata", "metadata key cannot start with reserved prefix: "+prefix)
		}
	}

	for _, char := range key {
		if char < 32 || char > 126 {
			return inputError("validateMetadata", "metadata key can only contain printable ASCII characters")
		}
	}

	return nil
}

func validateMetadataValue(value string) error {
	// S3 metadata values can be up to 2KB
	if len(value) > 2048 {
		return inputError("validateMetadata", "metadata value cannot exceed 2048 characters")
	}

	for _, char := range value {
		if !unicode.IsPrint(char) && char != '\t' {
			return inputError("validateMetadata", "metadata value can only contain printable characters")
		}
	}

	return nil
}
