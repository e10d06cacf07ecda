package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/yi-nology/photo_vault/biz/dal/db"
	"github.com/yi-nology/photo_vault/biz/dal/model"
	"gorm.io/gorm"
)

// Logic contains business rules on top of data persistence.
type Logic struct {
	db          *gorm.DB
	imageDAO    *db.ImageDAO
	folderDAO   *db.FolderDAO
	favoriteDAO *db.FavoriteDAO
}

func NewLogic(dbConn *gorm.DB) *Logic {
	return &Logic{
		db:          dbConn,
		imageDAO:    db.NewImageDAO(),
		folderDAO:   db.NewFolderDAO(),
		favoriteDAO: db.NewFavoriteDAO(),
	}
}

// --------------------- Image operations ---------------------

func (l *Logic) CreateImage(ctx context.Context, image *model.Image) error {
	if err := l.imageDAO.Create(ctx, l.db, image); err != nil {
		return fmt.Errorf("%w: %v", ErrRecordPersistence, err)
	}
	return nil
}

func (l *Logic) GetImage(ctx context.Context, id uint) (*model.Image, error) {
	image, err := l.imageDAO.GetByID(ctx, l.db, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrImageNotFound
	}
	return image, err
}

func (l *Logic) ListImages(ctx context.Context, folderID, userID uint) ([]db.ImageWithFavorite, error) {
	return l.imageDAO.ListByFolder(ctx, l.db, folderID, userID)
}

func (l *Logic) ListAccessibleImages(ctx context.Context, userID uint, all bool) ([]db.ImageWithFavorite, error) {
	return l.imageDAO.ListAccessible(ctx, l.db, userID, all)
}

func (l *Logic) ListFolderImages(ctx context.Context, folderID uint) ([]model.Image, error) {
	return l.imageDAO.ListAllByFolder(ctx, l.db, folderID)
}

func (l *Logic) DeleteImage(ctx context.Context, id uint) error {
	if err := l.imageDAO.Delete(ctx, l.db, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrImageNotFound
		}
		return err
	}
	return nil
}

// ToggleFavorite flips the favourite flag and returns the new state.
func (l *Logic) ToggleFavorite(ctx context.Context, imageID, userID uint) (bool, error) {
	exists, err := l.favoriteDAO.Exists(ctx, l.db, imageID, userID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, l.favoriteDAO.Remove(ctx, l.db, imageID, userID)
	}
	return true, l.favoriteDAO.Add(ctx, l.db, imageID, userID)
}

// --------------------- Thumbnail backfill ---------------------

// FindOneNeedingThumbnail returns nil, nil when nothing is waiting.
func (l *Logic) FindOneNeedingThumbnail(ctx context.Context) (*model.Image, error) {
	image, err := l.imageDAO.FindOneNeedingThumbnail(ctx, l.db)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return image, err
}

func (l *Logic) CompleteThumbnail(ctx context.Context, id uint, upd db.ThumbnailUpdate) error {
	if err := l.imageDAO.CompleteThumbnail(ctx, l.db, id, upd); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrImageNotFound
		}
		return fmt.Errorf("%w: %v", ErrRecordPersistence, err)
	}
	return nil
}

func (l *Logic) MarkThumbnailFailed(ctx context.Context, id uint, reason string) (bool, error) {
	return l.imageDAO.MarkThumbnailFailed(ctx, l.db, id, reason)
}

// --------------------- Folder operations ---------------------

func (l *Logic) GetFolder(ctx context.Context, id uint) (*model.Folder, error) {
	folder, err := l.folderDAO.GetByID(ctx, l.db, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFolderNotFound
	}
	return folder, err
}

func (l *Logic) CreateFolder(ctx context.Context, folder *model.Folder) error {
	exists, err := l.folderDAO.ExistsByOwnerAndName(ctx, l.db, folder.OwnerID, folder.Name, 0)
	if err != nil {
		return err
	}
	if exists {
		return ErrFolderNameExists
	}
	return l.folderDAO.Create(ctx, l.db, folder)
}

func (l *Logic) ListFolders(ctx context.Context, userID uint, all bool) ([]model.Folder, error) {
	return l.folderDAO.ListAccessible(ctx, l.db, userID, all)
}

func (l *Logic) CountImages(ctx context.Context, folderIDs []uint) (map[uint]int64, error) {
	return l.imageDAO.CountByFolders(ctx, l.db, folderIDs)
}

func (l *Logic) UpdateFolder(ctx context.Context, folder *model.Folder, updates map[string]interface{}) error {
	if name, ok := updates["name"].(string); ok {
		exists, err := l.folderDAO.ExistsByOwnerAndName(ctx, l.db, folder.OwnerID, name, folder.ID)
		if err != nil {
			return err
		}
		if exists {
			return ErrFolderNameExists
		}
	}
	if err := l.folderDAO.Update(ctx, l.db, folder.ID, updates); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFolderNotFound
		}
		return err
	}
	return nil
}

func (l *Logic) DeleteFolder(ctx context.Context, id uint) error {
	if err := l.folderDAO.Delete(ctx, l.db, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFolderNotFound
		}
		return err
	}
	return nil
}

func (l *Logic) GrantPermission(ctx context.Context, perm *model.FolderPermission) error {
	return l.folderDAO.UpsertPermission(ctx, l.db, perm)
}

func (l *Logic) RevokePermission(ctx context.Context, folderID, userID uint) error {
	if err := l.folderDAO.DeletePermission(ctx, l.db, folderID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPermissionNotFound
		}
		return err
	}
	return nil
}
