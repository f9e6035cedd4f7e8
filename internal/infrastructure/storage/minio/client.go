// Package minio archives original prescription scans in S3-compatible
// object storage.  The SDK client sits behind the narrow MinIOAPI interface
// so archive logic can be exercised against a mock, the scan bucket is
// provisioned on startup, and an optional lifecycle rule bounds how long
// archived scans are retained.
package minio

import (
	"context"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"

	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/MedRx-Intelligence/pkg/errors"
)

// connectTimeout bounds the startup probe and bucket provisioning.
const connectTimeout = 10 * time.Second

// MinIOAPI is the slice of the minio-go client the platform depends on.
// *minio.Client satisfies it; tests substitute a mock.
type MinIOAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	SetBucketLifecycle(ctx context.Context, bucketName string, config *lifecycle.Configuration) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
}

// MinIOConfig holds object-storage connection parameters.
type MinIOConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	Region          string        `mapstructure:"region"`
	Bucket          string        `mapstructure:"bucket"`
	PresignExpiry   time.Duration `mapstructure:"presign_expiry"`

	// RetentionDays expires archived scans after the given number of days
	// via a bucket lifecycle rule.  Zero retains scans indefinitely.
	RetentionDays int `mapstructure:"retention_days"`
}

func applyDefaults(cfg *MinIOConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:9000"
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "prescription-scans"
	}
	if cfg.PresignExpiry == 0 {
		cfg.PresignExpiry = 15 * time.Minute
	}
}

// Client wraps the minio-go SDK with bucket provisioning, retention setup
// and health probes for the scan bucket.
type Client struct {
	api    MinIOAPI
	config *MinIOConfig
	logger logging.Logger
}

// NewClient connects to the configured endpoint, verifies it is reachable
// and makes sure the scan bucket exists with its retention rule applied.
func NewClient(cfg *MinIOConfig, log logging.Logger) (*Client, error) {
	if cfg == nil {
		cfg = &MinIOConfig{}
	}
	applyDefaults(cfg)

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeInternal, "failed to create minio client")
	}

	c := &Client{api: mc, config: cfg, logger: log}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := c.ensureBucket(ctx); err != nil {
		return nil, err
	}
	if err := c.setupLifecycle(ctx); err != nil {
		return nil, err
	}

	log.Info("MinIO client connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
		logging.Bool("ssl", cfg.UseSSL),
	)
	return c, nil
}

// NewClientWithAPI wires the client over an existing API implementation.
// Tests use it to substitute a mock for the SDK client; no connection probe
// or bucket provisioning runs.
func NewClientWithAPI(api MinIOAPI, cfg *MinIOConfig, log logging.Logger) *Client {
	if cfg == nil {
		cfg = &MinIOConfig{}
	}
	applyDefaults(cfg)
	return &Client{api: api, config: cfg, logger: log}
}

// ensureBucket creates the scan bucket when it does not exist yet.  The
// existence probe doubles as the startup connectivity check.
func (c *Client) ensureBucket(ctx context.Context) error {
	exists, err := c.api.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeServiceUnavailable, "failed to connect to minio")
	}
	if exists {
		return nil
	}
	if err := c.api.MakeBucket(ctx, c.config.Bucket, minio.MakeBucketOptions{Region: c.config.Region}); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeInternal, "failed to create scan bucket")
	}
	c.logger.Info("Created scan bucket", logging.String("bucket", c.config.Bucket))
	return nil
}

// setupLifecycle applies the scan retention rule.  With no retention
// configured the bucket keeps scans indefinitely and any rule applied by an
// earlier configuration is left untouched.
func (c *Client) setupLifecycle(ctx context.Context) error {
	if c.config.RetentionDays <= 0 {
		return nil
	}

	lc := lifecycle.NewConfiguration()
	lc.Rules = []lifecycle.Rule{
		{
			ID:         "expire-archived-scans",
			Status:     "Enabled",
			RuleFilter: lifecycle.Filter{Prefix: scanObjectPrefix},
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(c.config.RetentionDays),
			},
		},
	}
	if err := c.api.SetBucketLifecycle(ctx, c.config.Bucket, lc); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeInternal, "failed to apply scan retention rule")
	}

	c.logger.Info("Scan retention rule applied",
		logging.String("bucket", c.config.Bucket),
		logging.Int("retention_days", c.config.RetentionDays),
	)
	return nil
}

// HealthStatus reports the outcome of a storage probe.
type HealthStatus struct {
	Healthy      bool          `json:"healthy"`
	BucketExists bool          `json:"bucket_exists"`
	Latency      time.Duration `json:"latency"`
	Error        string        `json:"error,omitempty"`
}

// HealthCheck probes the scan bucket and reports round-trip latency.  A
// reachable endpoint with a missing bucket is unhealthy: the archive cannot
// store anything into it.
func (c *Client) HealthCheck(ctx context.Context) *HealthStatus {
	start := time.Now()
	exists, err := c.api.BucketExists(ctx, c.config.Bucket)

	status := &HealthStatus{
		Healthy:      err == nil && exists,
		BucketExists: exists,
		Latency:      time.Since(start),
	}
	if err != nil {
		status.Error = err.Error()
	} else if !exists {
		status.Error = "scan bucket missing"
	}
	return status
}
