package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/internal/logging"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/s3types"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// concatenator is the part of *s3concat.Client the command uses.
type concatenator interface {
	Concat(ctx context.Context, bucket, prefix, source, target string, opts ...s3types.ConcatOption) (*s3types.ConcatResult, error)
}

type clientFactory func(opts ...s3types.Option) (concatenator, error)

func newClient(opts ...s3types.Option) (concatenator, error) {
	return s3concat.New(opts...)
}

// usageError marks an invocation the command cannot start with.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func submain(ctx context.Context, args []string, stdout, stderr io.Writer, factory clientFactory) int {
	cmd := newRootCommand(stdout, stderr, factory)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var uerr *usageError
	switch {
	case stderrors.As(err, &uerr):
		fmt.Fprintf(stderr, "Error: %s\n\n%s", err, cmd.UsageString())
		return exitUsage
	case errors.IsConfiguration(err):
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return exitUsage
	case stderrors.Is(err, context.Canceled):
		fmt.Fprintln(stderr, "Error: interrupted")
		return exitFailure
	default:
		fmt.Fprintf(stderr, "Error: %s\n", errors.RemoteMessage(err))
		return exitFailure
	}
}

func newRootCommand(stdout, stderr io.Writer, factory clientFactory) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "s3concat [flags] <bucket> <source> <target>",
		Short:         "Concatenate S3 objects server-side using multipart copies",
		SilenceErrors: true,
		SilenceUsage:  true,
		Example: `
  # Merge daily log parts into one object per day
  s3concat s3://my-bucket/logs 'logs/(\d{4}-\d{2}-\d{2})\.part\d+' 'logs/$1.merged'

  # Preview the grouping without touching the bucket
  s3concat --dry-run my-bucket '^exports/(\w+)-\d+\.csv$' 'exports/$1.csv'

  # Delete the sources of every completed target
  s3concat --cleanup my-bucket/exports '(\w+)-\d+\.csv$' 'exports/$1.csv'

  # S3-compatible endpoint (credentials from AWS_* or MINIO_* variables)
  S3CONCAT_BACKEND=minio S3CONCAT_ENDPOINT=http://localhost:9000 s3concat my-bucket 'a\.\d+' a.all
`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 3 {
				return &usageError{msg: fmt.Sprintf("expected <bucket> <source> <target>, got %d argument(s)", len(args))}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfigFile(v); err != nil {
				return err
			}
			return run(cmd.Context(), v, args, stdout, stderr, factory)
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{msg: err.Error()}
	})

	flags := cmd.Flags()
	flags.String("config", "", "path to a YAML, TOML or JSON config file")
	flags.BoolP("cleanup", "c", false, "delete the sources of every completed target")
	flags.BoolP("dry-run", "d", false, "list and group matching objects without changing the bucket")
	flags.BoolP("quiet", "q", false, "only print warnings and errors")
	flags.Bool("verify-parts", false, "abort a target whose uploaded parts differ from its sources")
	flags.Int("concurrency", 1, "maximum concurrent part copies and deletes")
	flags.String("backend", string(s3types.BackendAWS), "storage backend (aws, minio)")
	flags.String("region", "", "bucket region (defaults to the AWS configuration)")
	flags.String("endpoint", "", "custom S3 endpoint URL")
	flags.Bool("path-style", false, "use path-style bucket addressing")
	flags.Bool("insecure", false, "use plain HTTP for an endpoint given without a scheme")
	flags.Int("max-retries", 3, "maximum attempts per request")
	flags.String("retry-mode", "", "SDK retry mode (standard, adaptive)")
	flags.Duration("timeout", 0, "per-request timeout (0 disables)")
	flags.String("storage-class", "", "storage class of the targets")
	flags.String("sse", "", "server-side encryption of the targets (AES256, aws:kms)")
	flags.String("sse-kms-key-id", "", "KMS key for aws:kms encryption")
	flags.String("acl", "", "canned ACL of the targets")
	flags.String("content-type", "", "content type of the targets (derived from the target extension by default)")
	flags.StringToString("metadata", nil, "user metadata of the targets (key=value,...)")
	flags.String("log-format", string(logging.FormatText), "log format (text, json)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("metrics-file", "", "write run metrics to this file in the Prometheus text format")

	v.SetEnvPrefix("S3CONCAT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}

	return cmd
}

func loadConfigFile(v *viper.Viper) error {
	cfgPath := strings.TrimSpace(v.GetString("config"))
	if cfgPath == "" {
		return nil
	}

	expanded, err := expandPath(cfgPath)
	if err != nil {
		return errors.NewConfigurationError("loadConfig", err).WithMessage("expand config path " + cfgPath)
	}
	info, err := os.Stat(expanded)
	if err != nil {
		return errors.NewConfigurationError("loadConfig", err)
	}
	if info.IsDir() {
		return errors.NewConfigurationError("loadConfig", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("config file %q is a directory", expanded))
	}

	v.SetConfigFile(expanded)
	if err := v.ReadInConfig(); err != nil {
		return errors.NewConfigurationError("loadConfig", err).WithMessage("read config file " + expanded)
	}
	return nil
}

func expandPath(p string) (string, error) {
	if strings.HasPrefix(p, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if len(p) == 1 {
			p = home
		} else if p[1] == '/' || p[1] == '\\' {
			p = filepath.Join(home, p[2:])
		}
	}
	return filepath.Abs(p)
}

func run(ctx context.Context, v *viper.Viper, args []string, stdout, stderr io.Writer, factory clientFactory) error {
	format, err := logging.ParseFormat(v.GetString("log-format"))
	if err != nil {
		return errors.NewConfigurationError("parseFlags", errors.ErrInvalidInput).WithMessage(err.Error())
	}
	level, err := logging.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return errors.NewConfigurationError("parseFlags", errors.ErrInvalidInput).WithMessage(err.Error())
	}
	quiet := v.GetBool("quiet")
	logger := logging.New(logging.Options{
		Format: format,
		Level:  level,
		Quiet:  quiet,
		Out:    stdout,
		Err:    stderr,
	})

	bucket, prefix, err := s3concat.ParseLocation(args[0])
	if err != nil {
		return err
	}

	clientOpts := []s3types.Option{
		s3concat.WithBackend(s3types.Backend(v.GetString("backend"))),
		s3concat.WithRegion(v.GetString("region")),
		s3concat.WithEndpoint(v.GetString("endpoint")),
		s3concat.WithForcePathStyle(v.GetBool("path-style")),
		s3concat.WithDisableSSL(v.GetBool("insecure")),
		s3concat.WithMaxRetries(v.GetInt("max-retries")),
		s3concat.WithRetryMode(v.GetString("retry-mode")),
		s3concat.WithTimeout(v.GetDuration("timeout")),
		s3concat.WithConcurrency(v.GetInt("concurrency")),
		s3concat.WithLogger(logger),
	}

	metricsFile := v.GetString("metrics-file")
	var registry *prometheus.Registry
	if metricsFile != "" {
		registry = prometheus.NewRegistry()
		clientOpts = append(clientOpts, s3concat.WithMetrics(registry))
	}

	client, err := factory(clientOpts...)
	if err != nil {
		return err
	}

	concatOpts, err := concatOptions(v)
	if err != nil {
		return err
	}

	result, runErr := client.Concat(ctx, bucket, prefix, args[1], args[2], concatOpts...)
	if result != nil && !quiet {
		printSummary(stdout, result)
	}

	if registry != nil {
		if err := metrics.WriteTextfile(metricsFile, registry); err != nil {
			logger.ErrorContext(ctx, "unable to write metrics", "path", metricsFile, "error", err)
		}
	}

	return runErr
}

func concatOptions(v *viper.Viper) ([]s3types.ConcatOption, error) {
	opts := []s3types.ConcatOption{
		s3concat.WithCleanup(v.GetBool("cleanup")),
		s3concat.WithDryRun(v.GetBool("dry-run")),
		s3concat.WithVerifyParts(v.GetBool("verify-parts")),
		s3concat.WithStorageClass(s3types.StorageClass(strings.ToUpper(v.GetString("storage-class")))),
		s3concat.WithACL(s3types.ObjectACL(v.GetString("acl"))),
		s3concat.WithContentType(v.GetString("content-type")),
	}

	if md := v.GetStringMapString("metadata"); len(md) > 0 {
		opts = append(opts, s3concat.WithMetadata(md))
	}

	sse, keyID := v.GetString("sse"), v.GetString("sse-kms-key-id")
	switch {
	case sse != "":
		opts = append(opts, s3concat.WithServerSideEncryption(&s3types.SSEConfig{
			Type:     s3types.SSEType(sse),
			KMSKeyID: keyID,
		}))
	case keyID != "":
		return nil, errors.NewConfigurationError("parseFlags", errors.ErrInvalidInput).
			WithMessage("--sse-kms-key-id requires --sse aws:kms")
	}

	return opts, nil
}
