package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/yi-nology/photo_vault/biz/model/api"
	"github.com/yi-nology/photo_vault/biz/service"
)

// FolderHandler exposes folder and permission endpoints.
type FolderHandler struct {
	svc *service.Service
}

func NewFolderHandler(svc *service.Service) *FolderHandler {
	return &FolderHandler{svc: svc}
}

func (h *FolderHandler) ListFolders(ctx context.Context, c *app.RequestContext) {
	actor, ok := actorFrom(ctx)
	if !ok {
		writeServiceError(c, errUnauthenticated)
		return
	}
	folders, err := h.svc.ListFolders(ctx, actor)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	respondOK(c, folders)
}

func (h *FolderHandler) CreateFolder(ctx context.Context, c *app.RequestContext) {
	actor, ok := actorFrom(ctx)
	if !ok {
		writeServiceError(c, errUnauthenticated)
		return
	}
	var req api.FolderRequest
	if err := c.BindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}
	folder, err := h.svc.CreateFolder(ctx, actor, &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	respondData(c, consts.StatusCreated, folder)
}

func (h *FolderHandler) GetFolder(ctx context.Context, c *app.RequestContext) {
	actor, folderID, ok := folderRequest(ctx, c)
	if !ok {
		return
	}
	folder, err := h.svc.GetFolder(ctx, actor, folderID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	respondOK(c, folder)
}

func (h *FolderHandler) UpdateFolder(ctx context.Context, c *app.RequestContext) {
	actor, folderID, ok := folderRequest(ctx, c)
	if !ok {
		return
	}
	var req api.FolderRequest
	if err := c.BindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}
	folder, err := h.svc.UpdateFolder(ctx, actor, folderID, &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	respondOK(c, folder)
}

func (h *FolderHandler) DeleteFolder(ctx context.Context, c *app.RequestContext) {
	actor, folderID, ok := folderRequest(ctx, c)
	if !ok {
		return
	}
	if err := h.svc.DeleteFolder(ctx, actor, folderID); err != nil {
		writeServiceError(c, err)
		return
	}
	respondOK(c, nil)
}

func (h *FolderHandler) GrantPermission(ctx context.Context, c *app.RequestContext) {
	actor, folderID, ok := folderRequest(ctx, c)
	if !ok {
		return
	}
	var req api.PermissionRequest
	if err := c.BindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}
	folder, err := h.svc.GrantPermission(ctx, actor, folderID, &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	respondOK(c, folder)
}

func (h *FolderHandler) RevokePermission(ctx context.Context, c *app.RequestContext) {
	actor, folderID, ok := folderRequest(ctx, c)
	if !ok {
		return
	}
	userID, err := parseID(c, "userID")
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	if err := h.svc.RevokePermission(ctx, actor, folderID, userID); err != nil {
		writeServiceError(c, err)
		return
	}
	respondOK(c, nil)
}

// folderRequest resolves the caller and the :folderID parameter, writing the
// error response itself when either is missing.
func folderRequest(ctx context.Context, c *app.RequestContext) (service.Actor, uint, bool) {
	actor, ok := actorFrom(ctx)
	if !ok {
		writeServiceError(c, errUnauthenticated)
		return service.Actor{}, 0, false
	}
	folderID, err := parseID(c, "folderID")
	if err != nil {
		writeBadRequest(c, err)
		return service.Actor{}, 0, false
	}
	return actor, folderID, true
}
