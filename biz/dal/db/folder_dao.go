package db

import (
	"context"
	"errors"
	"strings"

	"github.com/yi-nology/photo_vault/biz/dal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FolderDAO handles CRUD operations for folders and their permissions.
type FolderDAO struct{}

func NewFolderDAO() *FolderDAO { return &FolderDAO{} }

func (dao *FolderDAO) Create(ctx context.Context, db *gorm.DB, folder *model.Folder) error {
	if folder == nil {
		return errors.New("folder must not be nil")
	}
	folder.Name = strings.TrimSpace(folder.Name)
	if folder.Name == "" {
		return errors.New("folder name must not be empty")
	}
	return db.WithContext(ctx).Omit("Permissions").Create(folder).Error
}

// ExistsByOwnerAndName checks the per-owner name uniqueness, ignoring excludeID.
func (dao *FolderDAO) ExistsByOwnerAndName(ctx context.Context, db *gorm.DB, ownerID uint, name string, excludeID uint) (bool, error) {
	var count int64
	query := db.WithContext(ctx).
		Model(&model.Folder{}).
		Where("owner_id = ? AND name = ?", ownerID, strings.TrimSpace(name))
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (dao *FolderDAO) GetByID(ctx context.Context, db *gorm.DB, id uint) (*model.Folder, error) {
	var folder model.Folder
	if err := db.WithContext(ctx).
		Preload("Permissions").
		Where("id = ?", id).
		Take(&folder).Error; err != nil {
		return nil, err
	}
	return &folder, nil
}

// ListAccessible returns the folders userID owns, has a permission on, or
// that are public. All folders are returned when all is true.
func (dao *FolderDAO) ListAccessible(ctx context.Context, db *gorm.DB, userID uint, all bool) ([]model.Folder, error) {
	var folders []model.Folder
	query := db.WithContext(ctx).Preload("Permissions").Order("name ASC").Order("id ASC")
	if !all {
		query = query.Where("id IN (?)", accessibleFolderIDs(db, userID))
	}
	if err := query.Find(&folders).Error; err != nil {
		return nil, err
	}
	return folders, nil
}

// accessibleFolderIDs selects the ids of folders userID owns, has a
// permission on, or that are public.
func accessibleFolderIDs(db *gorm.DB, userID uint) *gorm.DB {
	granted := db.Model(&model.FolderPermission{}).Select("folder_id").Where("user_id = ?", userID)
	return db.Model(&model.Folder{}).
		Select("id").
		Where("owner_id = ? OR is_public = ? OR id IN (?)", userID, true, granted)
}

func (dao *FolderDAO) Update(ctx context.Context, db *gorm.DB, id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	result := db.WithContext(ctx).
		Model(&model.Folder{}).
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

// Delete removes a folder with its permissions. Images must be removed first.
func (dao *FolderDAO) Delete(ctx context.Context, db *gorm.DB, id uint) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("folder_id = ?", id).Delete(&model.FolderPermission{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&model.Folder{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// UpsertPermission grants access, replacing any existing grant for the user.
func (dao *FolderDAO) UpsertPermission(ctx context.Context, db *gorm.DB, perm *model.FolderPermission) error {
	if perm == nil {
		return errors.New("permission must not be nil")
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "folder_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"access"}),
		}).
		Create(perm).Error
}

func (dao *FolderDAO) DeletePermission(ctx context.Context, db *gorm.DB, folderID, userID uint) error {
	result := db.WithContext(ctx).
		Where("folder_id = ? AND user_id = ?", folderID, userID).
		Delete(&model.FolderPermission{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
