package service

import (
	"context"
	"fmt"
	"path"

	"go.uber.org/zap"

	"github.com/yi-nology/photo_vault/biz/dal/model"
	"github.com/yi-nology/photo_vault/biz/model/api"
)

// --------------------- Image operations ---------------------

// ListImages returns a folder's images, the caller's favourites first.
func (s *Service) ListImages(ctx context.Context, actor Actor, folderID uint) ([]*api.Image, error) {
	if _, err := s.CheckAccess(ctx, actor, folderID, model.AccessRead); err != nil {
		return nil, err
	}
	rows, err := s.logic.ListImages(ctx, folderID, actor.ID)
	if err != nil {
		return nil, err
	}
	return s.toImageViews(ctx, rows), nil
}

// ListAccessibleImages returns the images of every folder the caller can
// read: owned, public and granted folders, or all folders for admins.
func (s *Service) ListAccessibleImages(ctx context.Context, actor Actor) ([]*api.Image, error) {
	rows, err := s.logic.ListAccessibleImages(ctx, actor.ID, actor.Admin)
	if err != nil {
		return nil, err
	}
	return s.toImageViews(ctx, rows), nil
}

func (s *Service) ToggleFavorite(ctx context.Context, actor Actor, imageID uint) (*api.FavoriteResult, error) {
	image, err := s.logic.GetImage(ctx, imageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.CheckAccess(ctx, actor, image.FolderID, model.AccessRead); err != nil {
		return nil, err
	}
	favorited, err := s.logic.ToggleFavorite(ctx, image.ID, actor.ID)
	if err != nil {
		return nil, err
	}
	return &api.FavoriteResult{ImageID: image.ID, IsFavorited: favorited}, nil
}

// DeleteImage removes every variant blob best-effort and then the record.
// The uploader, folder owner, admins and users with write access may delete.
func (s *Service) DeleteImage(ctx context.Context, actor Actor, imageID uint) error {
	image, err := s.logic.GetImage(ctx, imageID)
	if err != nil {
		return err
	}
	if image.UploadedBy != actor.ID {
		if _, err := s.CheckAccess(ctx, actor, image.FolderID, model.AccessWrite); err != nil {
			return err
		}
	}
	return s.removeImage(ctx, image)
}

func (s *Service) removeImage(ctx context.Context, image *model.Image) error {
	if err := s.deleteBlobs(ctx, image.BlobKeys()); err != nil {
		s.log.Warn("image blobs partially deleted", zap.Uint("image_id", image.ID), zap.Error(err))
	}
	if err := s.logic.DeleteImage(ctx, image.ID); err != nil {
		return err
	}
	s.log.Info("image deleted", zap.Uint("image_id", image.ID), zap.Uint("folder_id", image.FolderID))
	return nil
}

// GetDownloadInfo points at the authoritative original.
func (s *Service) GetDownloadInfo(ctx context.Context, actor Actor, imageID uint) (*api.DownloadInfo, error) {
	image, err := s.logic.GetImage(ctx, imageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.CheckAccess(ctx, actor, image.FolderID, model.AccessRead); err != nil {
		return nil, err
	}

	url := s.resolveURL(ctx, image.OriginalKey)
	if url == "" {
		url = s.legacyURL(ctx, image)
	}
	if url == "" {
		return nil, fmt.Errorf("%w: image %d has no stored file", ErrStorageRead, image.ID)
	}

	filename := image.OriginalName
	if filename == "" && image.OriginalFilename != nil {
		filename = *image.OriginalFilename
	}
	if filename == "" {
		filename = path.Base(image.Filename)
	}
	return &api.DownloadInfo{URL: url, Filename: filename}, nil
}
