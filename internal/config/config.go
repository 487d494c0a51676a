package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Asset storage backends.
const (
	AssetBackendS3     = "s3"
	AssetBackendGridFS = "gridfs"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret string

	// Server
	ApiPort           string
	ServiceApiPort    string
	CorsAllowedOrigin string
	PublicBaseURL     string // Used to build GridFS asset URLs

	// Assets
	AssetBackend        string
	AwsAccessKeyID      string
	AwsSecretAccessKey  string
	AwsRegion           string
	AwsS3Bucket         string
	AwsS3PublicRead     bool
	ImageBaseS3URL      string
	ImageMaxDimension   int
	ImageMaxSizeMB      int
	UploadConcurrency   int
	MaxImagesPerListing int

	// Notifications
	NotifyChannel  string
	NotifyEventTTL time.Duration

	// Rate Limiting Defaults
	RateLimitBucketSize int
	RateLimitRefillRate int // tokens per second
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	godotenv.Load()

	cfg := &Config{
		RunMode: runMode,
	}

	var err error

	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "cartera")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	cfg.CorsAllowedOrigin = getEnv("CORS_ALLOWED_ORIGIN", "*")
	cfg.PublicBaseURL = getEnv("PUBLIC_BASE_URL", "http://localhost:"+cfg.ApiPort)
	cfg.AssetBackend = getEnv("ASSET_BACKEND", AssetBackendS3)
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.ImageBaseS3URL = getEnv("IMAGE_BASE_S3_URL", "")
	cfg.NotifyChannel = getEnv("NOTIFY_CHANNEL", "listing_events")

	switch cfg.AssetBackend {
	case AssetBackendS3, AssetBackendGridFS:
	default:
		return nil, fmt.Errorf("invalid ASSET_BACKEND: %q (expected %q or %q)", cfg.AssetBackend, AssetBackendS3, AssetBackendGridFS)
	}

	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg.AwsS3PublicRead, err = strconv.ParseBool(getEnv("AWS_S3_PUBLIC_READ", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid AWS_S3_PUBLIC_READ: %w", err)
	}

	cfg.ImageMaxDimension, err = strconv.Atoi(getEnv("IMAGE_MAX_DIMENSION", "2048"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_MAX_DIMENSION: %w", err)
	}

	cfg.ImageMaxSizeMB, err = strconv.Atoi(getEnv("IMAGE_MAX_SIZE_MB", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_MAX_SIZE_MB: %w", err)
	}

	cfg.UploadConcurrency, err = strconv.Atoi(getEnv("UPLOAD_CONCURRENCY", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid UPLOAD_CONCURRENCY: %w", err)
	}
	if cfg.UploadConcurrency < 1 {
		return nil, fmt.Errorf("invalid UPLOAD_CONCURRENCY: must be at least 1, got %d", cfg.UploadConcurrency)
	}

	cfg.MaxImagesPerListing, err = strconv.Atoi(getEnv("MAX_IMAGES_PER_LISTING", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_IMAGES_PER_LISTING: %w", err)
	}

	notifyTTLSeconds, err := strconv.ParseInt(getEnv("NOTIFY_EVENT_TTL_SECONDS", "86400"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_EVENT_TTL_SECONDS: %w", err)
	}
	cfg.NotifyEventTTL = time.Duration(notifyTTLSeconds) * time.Second

	cfg.RateLimitBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_BUCKET_SIZE", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_REFILL_RATE", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REFILL_RATE: %w", err)
	}

	return cfg, nil
}

// ImageMaxBytes is the upload size ceiling derived from ImageMaxSizeMB.
func (c *Config) ImageMaxBytes() int64 {
	return int64(c.ImageMaxSizeMB) * 1024 * 1024
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getRequiredEnv(key string) (string, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return "", fmt.Errorf("missing required environment variable: %s", key)
	}
	return value, nil
}
