package objectstore

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Config holds object store settings. The public CMIP6 bucket is readable
// anonymously; output buckets use the ambient AWS credential chain.
type Config struct {
	Region         string
	Bucket         string
	EndpointURL    string // for S3-compatible services (MinIO, LocalStack)
	Anonymous      bool
	ForcePathStyle bool // required for MinIO
	MaxRetries     int
}

// ConfigFromEnv builds a Config from the environment, with defaults that
// point at the public CMIP6 holdings.
func ConfigFromEnv() Config {
	return Config{
		Region:      envString("AWS_REGION", "us-west-2"),
		Bucket:      envString("CMIP6_BUCKET", "cmip6-pds"),
		EndpointURL: os.Getenv("S3_ENDPOINT_URL"),
		Anonymous:   os.Getenv("S3_ANONYMOUS") == "true",
		MaxRetries:  5,
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("bucket is required")
	}
	if strings.Contains(c.Bucket, "/") {
		return fmt.Errorf("bucket must be a bare name, got %q", c.Bucket)
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
