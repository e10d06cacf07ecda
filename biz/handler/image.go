package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/yi-nology/photo_vault/biz/service"
)

// Multipart field names.
const (
	fieldImage    = "image"
	fieldImages   = "images"
	fieldFolderID = "folderId"
)

// ImageHandler exposes the upload and image endpoints.
type ImageHandler struct {
	svc *service.Service
}

func NewImageHandler(svc *service.Service) *ImageHandler {
	return &ImageHandler{svc: svc}
}

// UploadImage handles POST /api/v1/images with one multipart file "image".
func (h *ImageHandler) UploadImage(ctx context.Context, c *app.RequestContext) {
	actor, ok := actorFrom(ctx)
	if !ok {
		writeServiceError(c, errUnauthenticated)
		return
	}
	folderID, err := parsePositive(fieldFolderID, string(c.FormValue(fieldFolderID)))
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	fileHeader, err := c.FormFile(fieldImage)
	if err != nil {
		writeBadRequest(c, fmt.Errorf("no %q file uploaded", fieldImage))
		return
	}
	in, err := readUpload(fileHeader)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	image, err := h.svc.UploadImage(ctx, actor, folderID, in)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	respondData(c, consts.StatusCreated, image)
}

// BulkUpload handles POST /api/v1/images/bulk with multipart files "images".
// The files are copied out of the request before the 202 is sent.
func (h *ImageHandler) BulkUpload(ctx context.Context, c *app.RequestContext) {
	actor, ok := actorFrom(ctx)
	if !ok {
		writeServiceError(c, errUnauthenticated)
		return
	}
	folderID, err := parsePositive(fieldFolderID, string(c.FormValue(fieldFolderID)))
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	headers := form.File[fieldImages]
	if len(headers) == 0 {
		writeServiceError(c, service.ErrNoFiles)
		return
	}

	files := make([]service.UploadInput, 0, len(headers))
	for _, fh := range headers {
		in, err := readUpload(fh)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		files = append(files, in)
	}

	result, err := h.svc.BulkUpload(ctx, actor, folderID, files)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	respondData(c, consts.StatusAccepted, result)
}

// GetBatch handles GET /api/v1/images/batches/:batchID.
func (h *ImageHandler) GetBatch(ctx context.Context, c *app.RequestContext) {
	actor, ok := actorFrom(ctx)
	if !ok {
		writeServiceError(c, errUnauthenticated)
		return
	}
	b, err := h.svc.GetBatch(ctx, actor, c.Param("batchID"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	respondOK(c, b)
}

// ListImages handles GET /api/v1/images.
func (h *ImageHandler) ListImages(ctx context.Context, c *app.RequestContext) {
	actor, ok := actorFrom(ctx)
	if !ok {
		writeServiceError(c, errUnauthenticated)
		return
	}
	images, err := h.svc.ListAccessibleImages(ctx, actor)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	respondOK(c, images)
}

// ListFolderImages handles GET /api/v1/folders/:folderID/images.
func (h *ImageHandler) ListFolderImages(ctx context.Context, c *app.RequestContext) {
	actor, ok := actorFrom(ctx)
	if !ok {
		writeServiceError(c, errUnauthenticated)
		return
	}
	folderID, err := parseID(c, "folderID")
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	images, err := h.svc.ListImages(ctx, actor, folderID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	respondOK(c, images)
}

func (h *ImageHandler) ToggleFavorite(ctx context.Context, c *app.RequestContext) {
	actor, ok := actorFrom(ctx)
	if !ok {
		writeServiceError(c, errUnauthenticated)
		return
	}
	imageID, err := parseID(c, "imageID")
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	result, err := h.svc.ToggleFavorite(ctx, actor, imageID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	respondOK(c, result)
}

func (h *ImageHandler) DeleteImage(ctx context.Context, c *app.RequestContext) {
	actor, ok := actorFrom(ctx)
	if !ok {
		writeServiceError(c, errUnauthenticated)
		return
	}
	imageID, err := parseID(c, "imageID")
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	if err := h.svc.DeleteImage(ctx, actor, imageID); err != nil {
		writeServiceError(c, err)
		return
	}
	respondOK(c, nil)
}

func (h *ImageHandler) Download(ctx context.Context, c *app.RequestContext) {
	actor, ok := actorFrom(ctx)
	if !ok {
		writeServiceError(c, errUnauthenticated)
		return
	}
	imageID, err := parseID(c, "imageID")
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	info, err := h.svc.GetDownloadInfo(ctx, actor, imageID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	respondOK(c, info)
}

func readUpload(fh *multipart.FileHeader) (service.UploadInput, error) {
	if fh == nil {
		return service.UploadInput{}, errors.New("missing file")
	}
	f, err := fh.Open()
	if err != nil {
		return service.UploadInput{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return service.UploadInput{}, err
	}
	return service.UploadInput{Filename: fh.Filename, Data: data}, nil
}
