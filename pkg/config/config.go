package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yi-nology/photo_vault/pkg/storage"
)

// EnvPrefix is prepended to every environment override, e.g. PV_STORAGE_TYPE.
const EnvPrefix = "PV_"

// Config captures service level configuration loaded from config.yaml.
type Config struct {
	Server   ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Database DatabaseConfig `yaml:"database" envPrefix:"DATABASE_"`
	Storage  storage.Config `yaml:"storage" envPrefix:"STORAGE_"`
	CORS     CORSConfig     `yaml:"cors" envPrefix:"CORS_"`
	Redis    RedisConfig    `yaml:"redis" envPrefix:"REDIS_"`
	Upload   UploadConfig   `yaml:"upload" envPrefix:"UPLOAD_"`
	Pipeline PipelineConfig `yaml:"pipeline" envPrefix:"PIPELINE_"`
	Worker   WorkerConfig   `yaml:"worker" envPrefix:"WORKER_"`
	Batch    BatchConfig    `yaml:"batch" envPrefix:"BATCH_"`
	Log      LogConfig      `yaml:"log" envPrefix:"LOG_"`
}

// ServerConfig defines HTTP server options.
type ServerConfig struct {
	Address string `yaml:"address" env:"ADDRESS"`
	// PublicBaseURL is prefixed to relative blob URLs in API responses.
	PublicBaseURL string `yaml:"public_base_url" env:"PUBLIC_BASE_URL"`
	// ShutdownTimeout bounds graceful shutdown, including in-flight batches.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// DatabaseConfig defines the database backend configuration.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver" env:"DRIVER"`
	SQLite   SQLiteConfig   `yaml:"sqlite" envPrefix:"SQLITE_"`
	MySQL    MySQLConfig    `yaml:"mysql" envPrefix:"MYSQL_"`
	Postgres PostgresConfig `yaml:"postgres" envPrefix:"POSTGRES_"`
}

// SQLiteConfig contains SQLite specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// MySQLConfig contains MySQL specific connection details.
type MySQLConfig struct {
	DSN string `yaml:"dsn" env:"DSN"`
}

// PostgresConfig contains PostgreSQL specific connection details.
type PostgresConfig struct {
	DSN string `yaml:"dsn" env:"DSN"`
}

// CORSConfig defines CORS middleware settings.
type CORSConfig struct {
	AllowOrigin      string `yaml:"allow_origin" env:"ALLOW_ORIGIN"`
	AllowMethods     string `yaml:"allow_methods" env:"ALLOW_METHODS"`
	AllowHeaders     string `yaml:"allow_headers" env:"ALLOW_HEADERS"`
	AllowCredentials bool   `yaml:"allow_credentials" env:"ALLOW_CREDENTIALS"`
}

// RedisConfig defines Redis connection settings for the batch store and the
// backfill lock.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Address  string `yaml:"address" env:"ADDRESS"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
}

// UploadConfig defines file upload constraints.
type UploadConfig struct {
	MaxSize      int64    `yaml:"max_size" env:"MAX_SIZE"`
	MaxBulkFiles int      `yaml:"max_bulk_files" env:"MAX_BULK_FILES"`
	AllowedTypes []string `yaml:"allowed_types" env:"ALLOWED_TYPES" envSeparator:","`
}

// PipelineConfig controls admission and variant generation.
type PipelineConfig struct {
	QueueCapacity   int    `yaml:"queue_capacity" env:"QUEUE_CAPACITY"`
	QueuePolicy     string `yaml:"queue_policy" env:"QUEUE_POLICY"`
	InlineThumbnail *bool  `yaml:"inline_thumbnail" env:"INLINE_THUMBNAIL"`

	DisplayMaxSize     int    `yaml:"display_max_size" env:"DISPLAY_MAX_SIZE"`
	DisplayFormat      string `yaml:"display_format" env:"DISPLAY_FORMAT"`
	DisplayQuality     int    `yaml:"display_quality" env:"DISPLAY_QUALITY"`
	BulkDisplayFormat  string `yaml:"bulk_display_format" env:"BULK_DISPLAY_FORMAT"`
	BulkDisplayQuality int    `yaml:"bulk_display_quality" env:"BULK_DISPLAY_QUALITY"`
	ThumbnailMaxSize   int    `yaml:"thumbnail_max_size" env:"THUMBNAIL_MAX_SIZE"`
	ThumbnailFormat    string `yaml:"thumbnail_format" env:"THUMBNAIL_FORMAT"`
	ThumbnailQuality   int    `yaml:"thumbnail_quality" env:"THUMBNAIL_QUALITY"`
}

// InlineThumbnailEnabled reports whether the foreground upload renders the
// thumbnail itself. Unset means enabled.
func (p PipelineConfig) InlineThumbnailEnabled() bool {
	return p.InlineThumbnail == nil || *p.InlineThumbnail
}

// WorkerConfig tunes the thumbnail backfill worker.
type WorkerConfig struct {
	Enabled         *bool         `yaml:"enabled" env:"ENABLED"`
	LoadSignal      string        `yaml:"load_signal" env:"LOAD_SIGNAL"`
	CPUThreshold    float64       `yaml:"cpu_threshold" env:"CPU_THRESHOLD"`
	CPUSmoothing    float64       `yaml:"cpu_smoothing" env:"CPU_SMOOTHING"`
	BusyCooldown    time.Duration `yaml:"busy_cooldown" env:"BUSY_COOLDOWN"`
	IdleInterval    time.Duration `yaml:"idle_interval" env:"IDLE_INTERVAL"`
	ErrorCooldown   time.Duration `yaml:"error_cooldown" env:"ERROR_COOLDOWN"`
	RestartDelay    time.Duration `yaml:"restart_delay" env:"RESTART_DELAY"`
	RestartMaxDelay time.Duration `yaml:"restart_max_delay" env:"RESTART_MAX_DELAY"`
	LockTTL         time.Duration `yaml:"lock_ttl" env:"LOCK_TTL"`
}

// IsEnabled reports whether the worker should start. Unset means enabled.
func (w WorkerConfig) IsEnabled() bool {
	return w.Enabled == nil || *w.Enabled
}

// BatchConfig controls how long bulk upload progress stays queryable.
type BatchConfig struct {
	TTL time.Duration `yaml:"ttl" env:"TTL"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level" env:"LEVEL"`
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
}

// Load reads a YAML configuration file from the provided path, then applies
// a .env file (when present) and PV_* environment overrides.
// It searches in the current working directory first, then next to the binary executable.
func Load(name string) (*Config, error) {
	cfg := defaultConfig()

	configPath := findConfigFile(name)
	if configPath == "" {
		log.Printf("Warning: config file %q not found, using defaults", name)
	} else {
		log.Printf("Loading config from: %s", configPath)
		if err := decodeFile(configPath, cfg); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = f.Close() }()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Pipeline.QueuePolicy {
	case "block", "reject":
	default:
		return fmt.Errorf("pipeline.queue_policy must be block or reject, got %q", c.Pipeline.QueuePolicy)
	}
	switch c.Worker.LoadSignal {
	case "cpu", "queue", "both":
	default:
		return fmt.Errorf("worker.load_signal must be cpu, queue or both, got %q", c.Worker.LoadSignal)
	}
	if c.Upload.MaxSize <= 0 {
		return fmt.Errorf("upload.max_size must be positive")
	}
	if c.Upload.MaxBulkFiles <= 0 {
		return fmt.Errorf("upload.max_bulk_files must be positive")
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         ":8080",
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path: "data/photo_vault.db",
			},
		},
		Storage: storage.DefaultConfig(),
		CORS: CORSConfig{
			AllowOrigin:      "*",
			AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
			AllowHeaders:     "*",
			AllowCredentials: false,
		},
		Upload: UploadConfig{
			MaxSize:      100 * 1024 * 1024, // 100MB
			MaxBulkFiles: 20,
			AllowedTypes: []string{
				"image/jpeg",
				"image/png",
				"image/gif",
				"image/webp",
				"image/bmp",
				"image/x-ms-bmp",
				"image/tiff",
			},
		},
		Pipeline: PipelineConfig{
			QueueCapacity:      64,
			QueuePolicy:        "block",
			DisplayMaxSize:     2400,
			DisplayFormat:      "png",
			BulkDisplayFormat:  "jpeg",
			BulkDisplayQuality: 85,
			ThumbnailMaxSize:   300,
			ThumbnailFormat:    "jpeg",
			ThumbnailQuality:   70,
		},
		Worker: WorkerConfig{
			LoadSignal:      "both",
			CPUThreshold:    50,
			CPUSmoothing:    0.5,
			BusyCooldown:    60 * time.Second,
			IdleInterval:    30 * time.Second,
			ErrorCooldown:   10 * time.Second,
			RestartDelay:    30 * time.Second,
			RestartMaxDelay: 10 * time.Minute,
			LockTTL:         5 * time.Minute,
		},
		Batch: BatchConfig{
			TTL: 24 * time.Hour,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// applyDefaults fills values a partial YAML file or environment left empty.
func applyDefaults(cfg *Config) {
	def := defaultConfig()
	if cfg.Server.Address == "" {
		cfg.Server.Address = def.Server.Address
	}
	cfg.Server.PublicBaseURL = strings.TrimSuffix(cfg.Server.PublicBaseURL, "/")
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = def.Database.Driver
	}
	if cfg.Database.SQLite.Path == "" {
		cfg.Database.SQLite.Path = def.Database.SQLite.Path
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = def.Storage.Type
	}
	if cfg.Storage.Local.BasePath == "" {
		cfg.Storage.Local.BasePath = def.Storage.Local.BasePath
	}
	if cfg.Upload.MaxSize == 0 {
		cfg.Upload.MaxSize = def.Upload.MaxSize
	}
	if cfg.Upload.MaxBulkFiles == 0 {
		cfg.Upload.MaxBulkFiles = def.Upload.MaxBulkFiles
	}
	if len(cfg.Upload.AllowedTypes) == 0 {
		cfg.Upload.AllowedTypes = def.Upload.AllowedTypes
	}

	p, dp := &cfg.Pipeline, def.Pipeline
	if p.QueueCapacity <= 0 {
		p.QueueCapacity = dp.QueueCapacity
	}
	if p.QueuePolicy == "" {
		p.QueuePolicy = dp.QueuePolicy
	}
	if p.DisplayMaxSize <= 0 {
		p.DisplayMaxSize = dp.DisplayMaxSize
	}
	if p.DisplayFormat == "" {
		p.DisplayFormat = dp.DisplayFormat
	}
	if p.BulkDisplayFormat == "" {
		p.BulkDisplayFormat = dp.BulkDisplayFormat
	}
	if p.BulkDisplayQuality <= 0 {
		p.BulkDisplayQuality = dp.BulkDisplayQuality
	}
	if p.ThumbnailMaxSize <= 0 {
		p.ThumbnailMaxSize = dp.ThumbnailMaxSize
	}
	if p.ThumbnailFormat == "" {
		p.ThumbnailFormat = dp.ThumbnailFormat
	}
	if p.ThumbnailQuality <= 0 {
		p.ThumbnailQuality = dp.ThumbnailQuality
	}

	w, dw := &cfg.Worker, def.Worker
	if w.LoadSignal == "" {
		w.LoadSignal = dw.LoadSignal
	}
	if w.CPUThreshold <= 0 {
		w.CPUThreshold = dw.CPUThreshold
	}
	if w.CPUSmoothing <= 0 || w.CPUSmoothing > 1 {
		w.CPUSmoothing = dw.CPUSmoothing
	}
	if w.BusyCooldown <= 0 {
		w.BusyCooldown = dw.BusyCooldown
	}
	if w.IdleInterval <= 0 {
		w.IdleInterval = dw.IdleInterval
	}
	if w.ErrorCooldown <= 0 {
		w.ErrorCooldown = dw.ErrorCooldown
	}
	if w.RestartDelay <= 0 {
		w.RestartDelay = dw.RestartDelay
	}
	if w.RestartMaxDelay < w.RestartDelay {
		w.RestartMaxDelay = dw.RestartMaxDelay
	}
	if w.LockTTL <= 0 {
		w.LockTTL = dw.LockTTL
	}

	if cfg.Batch.TTL <= 0 {
		cfg.Batch.TTL = def.Batch.TTL
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
}

// findConfigFile searches for a config file in the current directory first,
// then next to the binary executable. Returns the full path or empty string.
func findConfigFile(name string) string {
	// 1. Current working directory
	if _, err := os.Stat(name); err == nil {
		abs, _ := filepath.Abs(name)
		return abs
	}

	// 2. Next to the binary executable
	exe, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exe)
		candidate := filepath.Join(exeDir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return ""
}
