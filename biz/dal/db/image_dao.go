package db

import (
	"context"
	"errors"
	"time"

	"github.com/yi-nology/photo_vault/biz/dal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const noThumbnail = "(thumbnail_key IS NULL OR thumbnail_key = '')"

func emptyColumn(column string) string {
	return "(" + column + " IS NULL OR " + column + " = '')"
}

// ImageWithFavorite is an image row joined with the caller's favourite flag.
type ImageWithFavorite struct {
	model.Image `gorm:"embedded"`
	IsFavorited bool `gorm:"column:is_favorited"`
}

// ThumbnailUpdate carries the fields written when a thumbnail is committed.
type ThumbnailUpdate struct {
	Key         string
	Size        int64
	Width       int
	Height      int
	GeneratedAt time.Time
	// SourceKey fills original_key and display_key where they are still
	// empty, so legacy rows are complete once they get a thumbnail.
	SourceKey string
}

// ImageDAO handles CRUD operations for images.
type ImageDAO struct{}

func NewImageDAO() *ImageDAO { return &ImageDAO{} }

func (dao *ImageDAO) Create(ctx context.Context, db *gorm.DB, image *model.Image) error {
	if image == nil {
		return errors.New("image must not be nil")
	}
	if image.Filename == "" {
		return errors.New("image filename must not be empty")
	}
	if image.UploadDate.IsZero() {
		image.UploadDate = time.Now()
	}
	if image.ProcessingStatus == "" {
		image.ProcessingStatus = model.StatusPending
	}
	return db.WithContext(ctx).Create(image).Error
}

func (dao *ImageDAO) GetByID(ctx context.Context, db *gorm.DB, id uint) (*model.Image, error) {
	var image model.Image
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&image).Error; err != nil {
		return nil, err
	}
	return &image, nil
}

// withFavorites selects images with the user's favourite flag, favourites
// first, then newest upload first.
func withFavorites(ctx context.Context, db *gorm.DB, userID uint) *gorm.DB {
	return db.WithContext(ctx).
		Table("image").
		Select("image.*, CASE WHEN image_favorite.user_id IS NULL THEN 0 ELSE 1 END AS is_favorited").
		Joins("LEFT JOIN image_favorite ON image_favorite.image_id = image.id AND image_favorite.user_id = ?", userID).
		Order("is_favorited DESC").
		Order("image.upload_date DESC").
		Order("image.id DESC")
}

// ListByFolder returns the folder's images with the user's favourites first,
// then newest upload first.
func (dao *ImageDAO) ListByFolder(ctx context.Context, db *gorm.DB, folderID, userID uint) ([]ImageWithFavorite, error) {
	var rows []ImageWithFavorite
	if err := withFavorites(ctx, db, userID).
		Where("image.folder_id = ?", folderID).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListAccessible returns the images of every folder userID can read, in the
// same order as ListByFolder. All images are returned when all is true.
func (dao *ImageDAO) ListAccessible(ctx context.Context, db *gorm.DB, userID uint, all bool) ([]ImageWithFavorite, error) {
	query := withFavorites(ctx, db, userID)
	if !all {
		query = query.Where("image.folder_id IN (?)", accessibleFolderIDs(db, userID))
	}
	var rows []ImageWithFavorite
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListAllByFolder returns every image of a folder without favourite data.
func (dao *ImageDAO) ListAllByFolder(ctx context.Context, db *gorm.DB, folderID uint) ([]model.Image, error) {
	var images []model.Image
	if err := db.WithContext(ctx).
		Where("folder_id = ?", folderID).
		Order("id ASC").
		Find(&images).Error; err != nil {
		return nil, err
	}
	return images, nil
}

// CountByFolders returns image counts keyed by folder id.
func (dao *ImageDAO) CountByFolders(ctx context.Context, db *gorm.DB, folderIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(folderIDs))
	if len(folderIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		FolderID uint
		Total    int64
	}
	if err := db.WithContext(ctx).
		Model(&model.Image{}).
		Select("folder_id, COUNT(*) AS total").
		Where("folder_id IN ?", folderIDs).
		Group("folder_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		counts[r.FolderID] = r.Total
	}
	return counts, nil
}

// FindOneNeedingThumbnail returns the oldest upload that has no thumbnail and
// has not been marked failed.
func (dao *ImageDAO) FindOneNeedingThumbnail(ctx context.Context, db *gorm.DB) (*model.Image, error) {
	var image model.Image
	err := db.WithContext(ctx).
		Where(noThumbnail).
		Where("processing_status <> ?", model.StatusFailed).
		Order("upload_date ASC").
		Order("id ASC").
		Limit(1).
		Take(&image).Error
	if err != nil {
		return nil, err
	}
	return &image, nil
}

// CompleteThumbnail records the thumbnail and marks the image completed.
// Without a SourceKey, rows still missing original_key or display_key stay
// in their current status.
func (dao *ImageDAO) CompleteThumbnail(ctx context.Context, db *gorm.DB, id uint, upd ThumbnailUpdate) error {
	updates := map[string]interface{}{
		"thumbnail_key":          upd.Key,
		"thumbnail_size":         upd.Size,
		"thumbnail_width":        upd.Width,
		"thumbnail_height":       upd.Height,
		"thumbnail_generated_at": upd.GeneratedAt,
		"processing_error":       "",
	}
	if upd.SourceKey != "" {
		updates["original_key"] = gorm.Expr("CASE WHEN "+emptyColumn("original_key")+" THEN ? ELSE original_key END", upd.SourceKey)
		updates["display_key"] = gorm.Expr("CASE WHEN "+emptyColumn("display_key")+" THEN ? ELSE display_key END", upd.SourceKey)
		updates["processing_status"] = model.StatusCompleted
	} else {
		updates["processing_status"] = gorm.Expr("CASE WHEN "+emptyColumn("original_key")+" OR "+emptyColumn("display_key")+" THEN processing_status ELSE ? END", model.StatusCompleted)
	}
	result := db.WithContext(ctx).
		Model(&model.Image{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkThumbnailFailed sets the image to failed unless a thumbnail has been
// committed meanwhile. It reports whether a row was changed.
func (dao *ImageDAO) MarkThumbnailFailed(ctx context.Context, db *gorm.DB, id uint, reason string) (bool, error) {
	result := db.WithContext(ctx).
		Model(&model.Image{}).
		Where("id = ?", id).
		Where(noThumbnail).
		Updates(map[string]interface{}{
			"processing_status": model.StatusFailed,
			"processing_error":  reason,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Delete removes an image and its favourites.
func (dao *ImageDAO) Delete(ctx context.Context, db *gorm.DB, id uint) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("image_id = ?", id).Delete(&model.ImageFavorite{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&model.Image{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// FavoriteDAO handles per-user image favourites.
type FavoriteDAO struct{}

func NewFavoriteDAO() *FavoriteDAO { return &FavoriteDAO{} }

func (dao *FavoriteDAO) Exists(ctx context.Context, db *gorm.DB, imageID, userID uint) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).
		Model(&model.ImageFavorite{}).
		Where("image_id = ? AND user_id = ?", imageID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (dao *FavoriteDAO) Add(ctx context.Context, db *gorm.DB, imageID, userID uint) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.ImageFavorite{ImageID: imageID, UserID: userID}).Error
}

func (dao *FavoriteDAO) Remove(ctx context.Context, db *gorm.DB, imageID, userID uint) error {
	return db.WithContext(ctx).
		Where("image_id = ? AND user_id = ?", imageID, userID).
		Delete(&model.ImageFavorite{}).Error
}
