package s3concat

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/gateway"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/gateway/awsgw"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/gateway/miniogw"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/s3types"
)

const defaultRegion = "us-east-1"

// Client runs concatenations against one storage backend.
// It is safe for concurrent use; every Concat call is an independent run.
type Client struct {
	// gw issues the storage calls
	gw gateway.Gateway

	// config holds the resolved client options
	config s3types.ClientConfig

	// awsConfig is the SDK configuration, zero for non-AWS backends
	awsConfig aws.Config

	logger  *slog.Logger
	metrics *metrics.Recorder
}

func defaultClientConfig() s3types.ClientConfig {
	return s3types.ClientConfig{
		Backend:     s3types.BackendAWS,
		MaxRetries:  3,
		Concurrency: 1,
	}
}

// New creates a client with the provided options.
// The AWS backend loads credentials using the default credential chain.
//
// Example:
//
//	client, err := s3concat.New(
//	    s3concat.WithRegion("us-west-2"),
//	    s3concat.WithMaxRetries(5),
//	)
func New(opts ...s3types.Option) (*Client, error) {
	clientCfg := defaultClientConfig()
	for _, opt := range opts {
		opt(&clientCfg)
	}

	client := &Client{config: clientCfg}
	client.init()

	switch clientCfg.Backend {
	case s3types.BackendAWS, "":
		awsCfg, s3Client, err := newAWSClient(&clientCfg)
		if err != nil {
			return nil, err
		}
		client.awsConfig = awsCfg
		client.gw = awsgw.New(s3Client, client.logger)
	case s3types.BackendMinio:
		gw, err := miniogw.New(minioConfig(&clientCfg), client.logger)
		if err != nil {
			return nil, err
		}
		client.gw = gw
	default:
		return nil, errors.NewConfigurationError("client initialization", errors.ErrInvalidInput).
			WithMessage("unknown backend " + string(clientCfg.Backend))
	}

	return client, nil
}

// NewWithGateway creates a client issuing its calls through gw.
// This is primarily used for testing and for custom storage backends.
func NewWithGateway(gw gateway.Gateway, opts ...s3types.Option) *Client {
	clientCfg := defaultClientConfig()
	for _, opt := range opts {
		opt(&clientCfg)
	}

	client := &Client{gw: gw, config: clientCfg}
	client.init()
	return client
}

func (c *Client) init() {
	c.logger = c.config.Logger
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	c.metrics = metrics.New(c.config.Metrics)
}

func newAWSClient(clientCfg *s3types.ClientConfig) (aws.Config, *s3.Client, error) {
	var cfg aws.Config
	var err error

	if clientCfg.CustomAWSConfig != nil {
		cfg = *clientCfg.CustomAWSConfig
	} else {
		cfg, err = config.LoadDefaultConfig(context.Background())
		if err != nil {
			return aws.Config{}, nil, errors.NewConfigurationError("client initialization", err)
		}
	}

	if clientCfg.Region != "" {
		cfg.Region = clientCfg.Region
	} else if cfg.Region == "" {
		cfg.Region = defaultRegion
	}

	if clientCfg.MaxRetries > 0 {
		cfg.RetryMaxAttempts = clientCfg.MaxRetries
	}

	if clientCfg.RetryMode != "" {
		mode, err := aws.ParseRetryMode(clientCfg.RetryMode)
		if err != nil {
			return aws.Config{}, nil, errors.NewConfigurationError("client initialization", errors.ErrInvalidInput).
				WithMessage(err.Error())
		}
		cfg.RetryMode = mode
	}

	var s3Opts []func(*s3.Options)

	if clientCfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	if endpoint := endpointURL(clientCfg.Endpoint, clientCfg.DisableSSL); endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}

	switch {
	case clientCfg.CustomHTTPClient != nil:
		httpClient := clientCfg.CustomHTTPClient
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	case clientCfg.Timeout > 0:
		httpClient := &http.Client{
			Timeout: clientCfg.Timeout,
		}
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	}

	return cfg, s3.NewFromConfig(cfg, s3Opts...), nil
}

// endpointURL adds a scheme to a bare host.
func endpointURL(endpoint string, disableSSL bool) string {
	if endpoint == "" || strings.Contains(endpoint, "://") {
		return endpoint
	}
	if disableSSL {
		return "http://" + endpoint
	}
	return "https://" + endpoint
}

func minioConfig(clientCfg *s3types.ClientConfig) miniogw.Config {
	cfg := miniogw.Config{
		Endpoint:       clientCfg.Endpoint,
		Region:         clientCfg.Region,
		Insecure:       clientCfg.DisableSSL || strings.HasPrefix(clientCfg.Endpoint, "http://"),
		ForcePathStyle: clientCfg.ForcePathStyle,
	}
	if clientCfg.CustomHTTPClient != nil {
		cfg.Transport = clientCfg.CustomHTTPClient.Transport
	}
	return cfg
}

// Close releases any resources held by the client.
func (c *Client) Close() error {
	return nil
}
