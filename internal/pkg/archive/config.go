package archive

import (
	"errors"
	"fmt"
	"time"

	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/env"
)

// Config holds webhook payload archival configuration.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadConfig loads archival configuration from environment variables.
// Archival is opt-in; a disabled config is valid and yields a nil archiver.
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-west-001"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("WEBHOOK_ARCHIVE_ENABLED", "false") == "true",
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when webhook archival is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when webhook archival is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when webhook archival is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if archival is enabled.
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// ObjectKey generates the S3 object key for one delivery.
// Format: webhooks/YYYY/MM/DD/<delivery-id>.json
func (c *Config) ObjectKey(deliveryID string, at time.Time) string {
	return fmt.Sprintf("webhooks/%04d/%02d/%02d/%s.json", at.Year(), at.Month(), at.Day(), deliveryID)
}
