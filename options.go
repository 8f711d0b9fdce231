package s3concat

import (
	"log/slog"
	"maps"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/s3types"
)

// WithBackend selects the storage backend. Default is s3types.BackendAWS.
func WithBackend(backend s3types.Backend) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Backend = backend
	}
}

// WithRegion sets the AWS region for S3 operations.
// If not specified, uses the default AWS region from the credential chain.
func WithRegion(region string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Region = region
	}
}

// WithMaxRetries sets the maximum number of attempts for failed requests.
// Default is 3.
func WithMaxRetries(maxRetries int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.MaxRetries = maxRetries
	}
}

// WithTimeout sets the timeout for individual S3 requests.
// Default is no timeout (0).
func WithTimeout(timeout time.Duration) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Timeout = timeout
	}
}

// WithConcurrency sets the default number of concurrent part copies and
// cleanup deletes. Default is 1.
func WithConcurrency(concurrency int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithForcePathStyle forces the use of path-style URLs instead of virtual-hosted style.
// This is required for S3-compatible services that don't support virtual hosting.
func WithForcePathStyle(forcePathStyle bool) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.ForcePathStyle = forcePathStyle
	}
}

// WithAWSConfig allows providing a custom AWS configuration.
// This overrides the default configuration loading behavior.
func WithAWSConfig(config *aws.Config) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.CustomAWSConfig = config
	}
}

// WithEndpoint sets a custom S3 endpoint URL.
// This is useful for S3-compatible services or local testing with LocalStack.
func WithEndpoint(endpoint string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Endpoint = endpoint
	}
}

// WithDisableSSL uses plain HTTP for endpoints given without a scheme.
// Only use this for local testing.
func WithDisableSSL(disableSSL bool) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.DisableSSL = disableSSL
	}
}

// WithRetryMode sets the retry mode for AWS SDK operations.
// Options are "standard", "adaptive". Default is "standard".
func WithRetryMode(mode string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.RetryMode = mode
	}
}

// WithCustomHTTPClient allows providing a custom HTTP client.
// It takes precedence over WithTimeout.
func WithCustomHTTPClient(client *http.Client) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.CustomHTTPClient = client
	}
}

// WithLogger sets the logger for run progress. Default discards everything.
func WithLogger(logger *slog.Logger) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Logger = logger
	}
}

// WithMetrics registers run metrics with reg.
func WithMetrics(reg prometheus.Registerer) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Metrics = reg
	}
}

// WithCleanup deletes the sources of every completed target.
func WithCleanup(cleanup bool) s3types.ConcatOption {
	return func(c *s3types.ConcatConfig) {
		c.Cleanup = cleanup
	}
}

// WithDryRun lists and groups without issuing any mutation.
func WithDryRun(dryRun bool) s3types.ConcatOption {
	return func(c *s3types.ConcatConfig) {
		c.DryRun = dryRun
	}
}

// WithVerifyParts aborts a target whose remote part listing differs from
// the parts copied for it. By default the difference is only logged.
func WithVerifyParts(verify bool) s3types.ConcatOption {
	return func(c *s3types.ConcatConfig) {
		c.VerifyParts = verify
	}
}

// WithCopyConcurrency overrides the client concurrency for one run.
func WithCopyConcurrency(concurrency int) s3types.ConcatOption {
	return func(c *s3types.ConcatConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithContentType sets the content type of every target.
// By default it is derived from the target key's extension.
func WithContentType(contentType string) s3types.ConcatOption {
	return func(c *s3types.ConcatConfig) {
		c.Upload.ContentType = contentType
	}
}

// WithMetadata adds user metadata to every target.
func WithMetadata(metadata map[string]string) s3types.ConcatOption {
	return func(c *s3types.ConcatConfig) {
		if c.Upload.Metadata == nil {
			c.Upload.Metadata = make(map[string]string, len(metadata))
		}
		maps.Copy(c.Upload.Metadata, metadata)
	}
}

// WithStorageClass sets the storage class of every target.
func WithStorageClass(storageClass s3types.StorageClass) s3types.ConcatOption {
	return func(c *s3types.ConcatConfig) {
		c.Upload.StorageClass = storageClass
	}
}

// WithServerSideEncryption sets server-side encryption for every target.
func WithServerSideEncryption(sse *s3types.SSEConfig) s3types.ConcatOption {
	return func(c *s3types.ConcatConfig) {
		c.Upload.SSE = sse
	}
}

// WithACL sets the canned ACL of every target.
func WithACL(acl s3types.ObjectACL) s3types.ConcatOption {
	return func(c *s3types.ConcatConfig) {
		c.Upload.ACL = acl
	}
}
