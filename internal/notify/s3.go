package notify

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"Mansoor88-6/session-replay/internal/archive"
	"Mansoor88-6/session-replay/internal/config"
	"Mansoor88-6/session-replay/internal/metrics"
	"Mansoor88-6/session-replay/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver copies every ingested batch to S3 as gzip JSON lines
type S3Archiver struct {
	cfg     config.ArchiveConfig
	client  objectPutter
	metrics *metrics.Metrics
	logger  *zap.Logger

	now          func() time.Time
	retryInitial time.Duration
}

// NewS3Archiver loads the default AWS credential chain for cfg.Region.
// SDK retries are disabled; Archive does its own.
func NewS3Archiver(ctx context.Context, cfg config.ArchiveConfig, m *metrics.Metrics, logger *zap.Logger) (*S3Archiver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.RetryMaxAttempts = 0
	})
	return newS3Archiver(cfg, client, m, logger), nil
}

func newS3Archiver(cfg config.ArchiveConfig, client objectPutter, m *metrics.Metrics, logger *zap.Logger) *S3Archiver {
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &S3Archiver{
		cfg:          cfg,
		client:       client,
		metrics:      m,
		logger:       logger,
		now:          time.Now,
		retryInitial: 200 * time.Millisecond,
	}
}

// ObjectKey is <prefix>/dt=YYYY-MM-DD/<session>/<ms>_<firstId>.jsonl.gz
func (a *S3Archiver) ObjectKey(events []*models.SessionEvent) string {
	first := events[0]
	day := a.now().UTC().Format("2006-01-02")
	return path.Join(
		a.cfg.Prefix,
		"dt="+day,
		first.SessionID,
		fmt.Sprintf("%d_%d.jsonl.gz", first.Timestamp, first.ID),
	)
}

// Archive uploads events with bounded retry. Each attempt has its own
// timeout; ctx cancellation stops the retries.
func (a *S3Archiver) Archive(ctx context.Context, events []*models.SessionEvent) error {
	if len(events) == 0 {
		return nil
	}

	body, err := archive.EncodeJSONLGZ(events)
	if err != nil {
		return fmt.Errorf("failed to encode archive batch: %w", err)
	}
	key := a.ObjectKey(events)

	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(a.retryInitial),
		backoff.WithMaxInterval(2*time.Second),
		backoff.WithMaxElapsedTime(0),
	)
	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(a.cfg.Retries-1)), ctx)

	err = backoff.RetryNotify(func() error {
		return a.put(ctx, key, body)
	}, b, func(err error, next time.Duration) {
		a.metrics.Inc(&a.metrics.ArchivePutErrorsTotal)
		a.logger.Warn("Archive upload failed, retrying",
			zap.String("key", key),
			zap.Duration("retry_in", next),
			zap.Error(err),
		)
	})
	if err != nil {
		a.metrics.Inc(&a.metrics.ArchivePutErrorsTotal)
		return fmt.Errorf("failed to archive %s: %w", key, err)
	}

	a.metrics.Inc(&a.metrics.ArchiveUploadsTotal)
	a.logger.Debug("Archived batch",
		zap.String("key", key),
		zap.Int("event_count", len(events)),
		zap.Int("bytes", len(body)),
	)
	return nil
}

func (a *S3Archiver) put(ctx context.Context, key string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(a.cfg.Bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(body),
		ContentLength:   aws.Int64(int64(len(body))),
		ContentType:     aws.String("application/x-ndjson"),
		ContentEncoding: aws.String("gzip"),
	})
	return err
}
