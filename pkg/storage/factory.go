package storage

import (
	"fmt"

	"github.com/yi-nology/photo_vault/pkg/storage/local"
	"github.com/yi-nology/photo_vault/pkg/storage/minio"
	"github.com/yi-nology/photo_vault/pkg/storage/s3"
)

// Config holds storage configuration.
type Config struct {
	Type  string      `yaml:"type" env:"TYPE"`
	Local LocalConfig `yaml:"local" envPrefix:"LOCAL_"`
	S3    S3Config    `yaml:"s3" envPrefix:"S3_"`
	MinIO MinIOConfig `yaml:"minio" envPrefix:"MINIO_"`
}

// LocalConfig holds local storage configuration.
type LocalConfig struct {
	BasePath  string `yaml:"base_path" env:"BASE_PATH"`
	URLPrefix string `yaml:"url_prefix" env:"URL_PREFIX"`
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint     string `yaml:"endpoint" env:"ENDPOINT"`
	Region       string `yaml:"region" env:"REGION"`
	Bucket       string `yaml:"bucket" env:"BUCKET"`
	AccessKey    string `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey    string `yaml:"secret_key" env:"SECRET_KEY"`
	UseSSL       bool   `yaml:"use_ssl" env:"USE_SSL"`
	PathStyle    bool   `yaml:"path_style" env:"PATH_STYLE"`
	URLMode      string `yaml:"url_mode" env:"URL_MODE"`
	CacheControl string `yaml:"cache_control" env:"CACHE_CONTROL"`
}

// MinIOConfig holds configuration for the native MinIO client.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint" env:"ENDPOINT"`
	Bucket    string `yaml:"bucket" env:"BUCKET"`
	AccessKey string `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
	UseSSL    bool   `yaml:"use_ssl" env:"USE_SSL"`
	URLMode   string `yaml:"url_mode" env:"URL_MODE"`
}

// New creates a storage adapter based on configuration.
func New(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "", "local":
		return local.New(cfg.Local.BasePath, cfg.Local.URLPrefix)

	case "s3":
		return s3.New(s3.Config{
			Endpoint:     cfg.S3.Endpoint,
			Region:       cfg.S3.Region,
			Bucket:       cfg.S3.Bucket,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			UseSSL:       cfg.S3.UseSSL,
			PathStyle:    cfg.S3.PathStyle,
			URLMode:      cfg.S3.URLMode,
			CacheControl: cfg.S3.CacheControl,
		})

	case "minio":
		return minio.New(minio.Config{
			Endpoint:  cfg.MinIO.Endpoint,
			Bucket:    cfg.MinIO.Bucket,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			UseSSL:    cfg.MinIO.UseSSL,
			URLMode:   cfg.MinIO.URLMode,
		})

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// DefaultConfig returns the default storage configuration (local storage).
func DefaultConfig() Config {
	return Config{
		Type: "local",
		Local: LocalConfig{
			BasePath:  "data/uploads",
			URLPrefix: local.DefaultURLPrefix,
		},
		S3: S3Config{
			Region:       "us-east-1",
			URLMode:      "presigned",
			CacheControl: "max-age=604800",
		},
		MinIO: MinIOConfig{
			URLMode: "presigned",
		},
	}
}
