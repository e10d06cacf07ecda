package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yi-nology/photo_vault/biz/dal/model"
	"github.com/yi-nology/photo_vault/biz/model/api"
)

// --------------------- Folder operations ---------------------

func (s *Service) CreateFolder(ctx context.Context, actor Actor, req *api.FolderRequest) (*api.Folder, error) {
	if req == nil || req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	folder := &model.Folder{
		Name:    strings.TrimSpace(*req.Name),
		OwnerID: actor.ID,
	}
	if req.Description != nil {
		folder.Description = strings.TrimSpace(*req.Description)
	}
	if req.IsPublic != nil {
		folder.IsPublic = *req.IsPublic
	}
	if err := s.logic.CreateFolder(ctx, folder); err != nil {
		return nil, err
	}
	return toFolderView(folder, actor, 0), nil
}

// ListFolders returns every folder the caller can read.
func (s *Service) ListFolders(ctx context.Context, actor Actor) ([]*api.Folder, error) {
	folders, err := s.logic.ListFolders(ctx, actor.ID, actor.Admin)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, len(folders))
	for i := range folders {
		ids[i] = folders[i].ID
	}
	counts, err := s.logic.CountImages(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]*api.Folder, 0, len(folders))
	for i := range folders {
		views = append(views, toFolderView(&folders[i], actor, counts[folders[i].ID]))
	}
	return views, nil
}

func (s *Service) GetFolder(ctx context.Context, actor Actor, folderID uint) (*api.Folder, error) {
	folder, err := s.CheckAccess(ctx, actor, folderID, model.AccessRead)
	if err != nil {
		return nil, err
	}
	counts, err := s.logic.CountImages(ctx, []uint{folder.ID})
	if err != nil {
		return nil, err
	}
	return toFolderView(folder, actor, counts[folder.ID]), nil
}

func (s *Service) UpdateFolder(ctx context.Context, actor Actor, folderID uint, req *api.FolderRequest) (*api.Folder, error) {
	folder, err := s.CheckAccess(ctx, actor, folderID, model.AccessAdmin)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: empty request", ErrInvalidArgument)
	}
	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidArgument)
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	if req.IsPublic != nil {
		updates["is_public"] = *req.IsPublic
	}
	if err := s.logic.UpdateFolder(ctx, folder, updates); err != nil {
		return nil, err
	}
	return s.GetFolder(ctx, actor, folderID)
}

// DeleteFolder removes the folder, its images and their blobs.
func (s *Service) DeleteFolder(ctx context.Context, actor Actor, folderID uint) error {
	folder, err := s.CheckAccess(ctx, actor, folderID, model.AccessAdmin)
	if err != nil {
		return err
	}
	images, err := s.logic.ListFolderImages(ctx, folder.ID)
	if err != nil {
		return err
	}
	for i := range images {
		if err := s.removeImage(ctx, &images[i]); err != nil {
			return err
		}
	}
	if err := s.logic.DeleteFolder(ctx, folder.ID); err != nil {
		return err
	}
	s.log.Info("folder deleted", zap.Uint("folder_id", folder.ID), zap.Int("images", len(images)))
	return nil
}

func (s *Service) GrantPermission(ctx context.Context, actor Actor, folderID uint, req *api.PermissionRequest) (*api.Folder, error) {
	if req == nil || req.UserID == 0 {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidArgument)
	}
	access := model.Access(strings.ToLower(strings.TrimSpace(req.Access)))
	if !access.Valid() {
		return nil, fmt.Errorf("%w: access must be read, write or admin", ErrInvalidArgument)
	}
	folder, err := s.CheckAccess(ctx, actor, folderID, model.AccessAdmin)
	if err != nil {
		return nil, err
	}
	perm := &model.FolderPermission{FolderID: folder.ID, UserID: req.UserID, Access: access}
	if err := s.logic.GrantPermission(ctx, perm); err != nil {
		return nil, err
	}
	return s.GetFolder(ctx, actor, folderID)
}

func (s *Service) RevokePermission(ctx context.Context, actor Actor, folderID, userID uint) error {
	folder, err := s.CheckAccess(ctx, actor, folderID, model.AccessAdmin)
	if err != nil {
		return err
	}
	return s.logic.RevokePermission(ctx, folder.ID, userID)
}

func toFolderView(folder *model.Folder, actor Actor, imageCount int64) *api.Folder {
	access := effectiveAccess(folder, actor)
	view := &api.Folder{
		ID:          folder.ID,
		Name:        folder.Name,
		Description: folder.Description,
		OwnerID:     folder.OwnerID,
		IsPublic:    folder.IsPublic,
		ImageCount:  imageCount,
		Access:      string(access),
		CanWrite:    access.Level() >= model.AccessWrite.Level(),
		CanDelete:   access.Level() >= model.AccessAdmin.Level(),
		CreatedAt:   folder.CreatedAt,
	}
	if view.CanDelete {
		for _, p := range folder.Permissions {
			view.Permissions = append(view.Permissions, api.Permission{UserID: p.UserID, Access: string(p.Access)})
		}
	}
	return view
}
