package handler

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"mime"
	"path"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/yi-nology/photo_vault/pkg/storage"
)

// FileHandler serves blobs of the local storage backend under /uploads.
type FileHandler struct {
	storage storage.Storage
}

func NewFileHandler(s storage.Storage) *FileHandler {
	return &FileHandler{storage: s}
}

// GetFile streams the object named by the *key wildcard.
func (h *FileHandler) GetFile(ctx context.Context, c *app.RequestContext) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		respondError(c, consts.StatusNotFound, fs.ErrNotExist)
		return
	}

	rc, err := h.storage.GetObject(ctx, key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			respondError(c, consts.StatusNotFound, errors.New("file not found"))
			return
		}
		respondError(c, consts.StatusInternalServerError, err)
		return
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		respondError(c, consts.StatusInternalServerError, err)
		return
	}

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = consts.MIMEApplicationOctetStream
	}
	c.Response.Header.Set("Cache-Control", "public, max-age=31536000, immutable")
	c.Data(consts.StatusOK, contentType, content)
}
