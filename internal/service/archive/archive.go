// Package archive ships audit records to object storage in periodic batches.
//
// Records are serialized as JSON lines, zstd-compressed and uploaded under a
// time-based key. The archiver tracks the highest record id it has shipped,
// so each record is uploaded at most once per process lifetime; the audit
// table itself is never mutated.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zstd"

	"github.com/repodash/repodash/internal/service/audit"
	"github.com/repodash/repodash/pkg/logger"
)

const batchSize = 500

// Uploader stores one archive object. Satisfied by S3Uploader in production
// and by fakes in tests.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte) error
}

// S3Uploader uploads archive objects to an S3-compatible bucket.
type S3Uploader struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// S3Config contains S3Uploader configuration.
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// NewS3Uploader creates an S3Uploader from config.
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		func(opts *awsconfig.LoadOptions) error {
			if cfg.Endpoint != "" {
				opts.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(
					func(service, region string, options ...interface{}) (aws.Endpoint, error) {
						return aws.Endpoint{URL: cfg.Endpoint, SigningRegion: cfg.Region}, nil
					},
				)
			}
			if cfg.AccessKey != "" && cfg.SecretKey != "" {
				opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
			}
			return nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &S3Uploader{
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
	}, nil
}

// Upload stores one object, letting the SDK pick single or multipart PUT.
func (u *S3Uploader) Upload(ctx context.Context, key string, data []byte) error {
	if u.prefix != "" {
		key = u.prefix + "/" + key
	}
	_, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// Archiver periodically ships unarchived audit records.
type Archiver struct {
	audit    *audit.Service
	uploader Uploader
	interval time.Duration
	log      logger.Logger

	lastID   uint
	ticker   *time.Ticker
	stopChan chan struct{}
}

// NewArchiver creates an Archiver. interval must be positive.
func NewArchiver(auditSvc *audit.Service, uploader Uploader, interval time.Duration, log logger.Logger) (*Archiver, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("archive interval must be positive")
	}
	if log == nil {
		log = logger.NewNoop()
	}
	return &Archiver{
		audit:    auditSvc,
		uploader: uploader,
		interval: interval,
		log:      log,
		stopChan: make(chan struct{}),
	}, nil
}

// Start launches the background archive loop.
func (a *Archiver) Start() {
	a.ticker = time.NewTicker(a.interval)
	go func() {
		for {
			select {
			case <-a.ticker.C:
				if err := a.RunOnce(context.Background()); err != nil {
					a.log.Error("audit archive run failed", logger.Field{Key: "error", Value: err.Error()})
				}
			case <-a.stopChan:
				a.ticker.Stop()
				return
			}
		}
	}()
}

// Stop terminates the background loop.
func (a *Archiver) Stop() {
	if a.ticker != nil {
		close(a.stopChan)
	}
}

// RunOnce ships all records newer than the last archived id, in batches.
// Returns nil when there is nothing to ship.
func (a *Archiver) RunOnce(ctx context.Context) error {
	for {
		records, err := a.audit.QuerySince(a.lastID, batchSize)
		if err != nil {
			return fmt.Errorf("query audit records: %w", err)
		}
		if len(records) == 0 {
			return nil
		}

		var buf bytes.Buffer
		zw, err := zstd.NewWriter(&buf)
		if err != nil {
			return fmt.Errorf("create zstd writer: %w", err)
		}
		enc := json.NewEncoder(zw)
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				zw.Close()
				return fmt.Errorf("encode audit record %d: %w", rec.ID, err)
			}
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("flush zstd writer: %w", err)
		}

		first := records[0].ID
		last := records[len(records)-1].ID
		key := fmt.Sprintf("audit/%s/%d-%d.jsonl.zst", time.Now().UTC().Format("2006/01/02"), first, last)
		if err := a.uploader.Upload(ctx, key, buf.Bytes()); err != nil {
			return fmt.Errorf("upload archive batch: %w", err)
		}

		a.lastID = last
		a.log.Info(
			"audit batch archived",
			logger.Field{Key: "key", Value: key},
			logger.Field{Key: "records", Value: len(records)},
		)
		if len(records) < batchSize {
			return nil
		}
	}
}
