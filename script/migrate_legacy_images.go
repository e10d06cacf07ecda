package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yi-nology/photo_vault/biz/dal/model"
	"github.com/yi-nology/photo_vault/pkg/config"
	"github.com/yi-nology/photo_vault/pkg/database"
	"github.com/yi-nology/photo_vault/pkg/logger"
)

// Migrates image rows written before per-variant keys existed: the primary
// file becomes the display key, original_filename (or the primary file)
// becomes the original key, and rows without a thumbnail are left pending
// for the backfill worker.
//
// Usage: go run script/migrate_legacy_images.go -config=config.yaml [-dry-run]

var (
	configFile = flag.String("config", "config.yaml", "config file name")
	dryRun     = flag.Bool("dry-run", false, "only report what would change")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	db, err := database.Open(cfg.Database, model.All()...)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}

	n, err := migrateLegacyImages(context.Background(), db, log, *dryRun)
	if err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
	log.Info("migration finished", zap.Int("migrated", n), zap.Bool("dry_run", *dryRun))
}

func migrateLegacyImages(ctx context.Context, db *gorm.DB, log *zap.Logger, dryRun bool) (int, error) {
	var images []model.Image
	if err := db.WithContext(ctx).
		Where("(original_key IS NULL OR original_key = '') AND (display_key IS NULL OR display_key = '')").
		Find(&images).Error; err != nil {
		return 0, err
	}
	if len(images) == 0 {
		log.Info("no legacy images to migrate")
		return 0, nil
	}

	for i, img := range images {
		originalKey := img.Filename
		if img.OriginalFilename != nil && *img.OriginalFilename != "" {
			originalKey = *img.OriginalFilename
		}
		status := model.StatusPending
		if img.HasThumbnail() {
			status = model.StatusCompleted
		}

		log.Info("migrate image",
			zap.Int("n", i+1),
			zap.Int("total", len(images)),
			zap.Uint("image_id", img.ID),
			zap.String("display_key", img.Filename),
			zap.String("original_key", originalKey),
		)
		if dryRun {
			continue
		}

		if err := db.WithContext(ctx).
			Model(&model.Image{}).
			Where("id = ?", img.ID).
			Updates(map[string]interface{}{
				"display_key":       img.Filename,
				"original_key":      originalKey,
				"processing_status": status,
			}).Error; err != nil {
			return i, fmt.Errorf("image %d: %w", img.ID, err)
		}
	}
	return len(images), nil
}
