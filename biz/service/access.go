package service

import (
	"context"

	"github.com/yi-nology/photo_vault/biz/dal/model"
)

// effectiveAccess is the highest level actor holds on folder, "" for none.
func effectiveAccess(folder *model.Folder, actor Actor) model.Access {
	if actor.Admin || folder.OwnerID == actor.ID {
		return model.AccessAdmin
	}
	if access, ok := folder.AccessFor(actor.ID); ok && access.Valid() {
		return access
	}
	if folder.IsPublic {
		return model.AccessRead
	}
	return ""
}

// CheckAccess loads the folder and verifies actor holds at least required.
func (s *Service) CheckAccess(ctx context.Context, actor Actor, folderID uint, required model.Access) (*model.Folder, error) {
	folder, err := s.logic.GetFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if effectiveAccess(folder, actor).Level() < required.Level() {
		return nil, ErrAccessDenied
	}
	return folder, nil
}
