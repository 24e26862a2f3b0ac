package archive

import (
	"bytes"
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"

	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/tasks"
)

// Archiver copies raw webhook payloads to an S3 bucket for audit. Uploads
// run as detached tasks; a failed upload is logged and otherwise invisible
// to the webhook response.
type Archiver struct {
	s3Client *s3.Client
	config   *Config
	runner   *tasks.Runner
}

// NewArchiver creates an archiver, or nil when archival is disabled.
func NewArchiver(cfg *Config, runner *tasks.Runner) (*Archiver, error) {
	if !cfg.IsEnabled() {
		return nil, nil
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			// S3-compatible providers (Backblaze B2) need path-style URLs.
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	})

	log.Infof("[Archive] Webhook payload archival enabled for bucket %s", cfg.BucketName)
	return &Archiver{s3Client: s3Client, config: cfg, runner: runner}, nil
}

// Archive schedules one payload upload. Safe on a nil receiver so callers
// need no enabled-check of their own.
func (a *Archiver) Archive(deliveryID string, payload []byte) {
	if a == nil {
		return
	}
	key := a.config.ObjectKey(deliveryID, time.Now().UTC())
	body := append([]byte(nil), payload...)

	a.runner.Spawn("webhook-archive", func(ctx context.Context) error {
		_, err := a.s3Client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.config.BucketName),
			Key:         aws.String(key),
			Body:        bytes.NewReader(body),
			ContentType: aws.String("application/json"),
		})
		return err
	})
}
