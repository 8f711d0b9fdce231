package s3concat

import (
	"strings"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/errors"
)

// ParseLocation splits a bucket argument into bucket and prefix.
//
// Any scheme is dropped and everything after the first slash is the prefix,
// without trailing slashes:
//
//	s3://my-bucket/logs/2024/ -> "my-bucket", "logs/2024"
//	my-bucket                 -> "my-bucket", ""
func ParseLocation(location string) (bucket, prefix string, err error) {
	if i := strings.Index(location, "://"); i >= 0 {
		location = location[i+len("://"):]
	}

	bucket, prefix, _ = strings.Cut(location, "/")
	prefix = strings.TrimRight(prefix, "/")

	if bucket == "" {
		return "", "", errors.NewConfigurationError("parseLocation", errors.ErrMissingArgument).
			WithMessage("bucket is required")
	}

	return bucket, prefix, nil
}
