package service

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yi-nology/photo_vault/biz/dal/model"
	"github.com/yi-nology/photo_vault/biz/model/api"
	"github.com/yi-nology/photo_vault/pkg/queue"
	"github.com/yi-nology/photo_vault/pkg/variant"
)

const keyPrefix = "images"

// storedVariant is an encoded output together with the key it was written to.
type storedVariant struct {
	variant.Output
	Key string
}

// UploadImage runs one image through the admission queue, stores every
// variant and creates the record. No record is created unless all blobs were
// written.
func (s *Service) UploadImage(ctx context.Context, actor Actor, folderID uint, in UploadInput) (*api.Image, error) {
	if _, err := s.CheckAccess(ctx, actor, folderID, model.AccessWrite); err != nil {
		return nil, err
	}
	if s.upload != nil {
		if err := s.upload.Validate(in.Data); err != nil {
			return nil, err
		}
	}

	specs := s.profile.Deferred()
	if s.inlineThumbnail {
		specs = s.profile.FullPipeline()
	}

	outputs, err := queue.Do(ctx, s.queue, func(context.Context) (variant.Outputs, error) {
		return variant.Encode(in.Data, specs)
	})
	if err != nil {
		return nil, err
	}

	image, err := s.persistUpload(ctx, actor.ID, folderID, in.Filename, outputs)
	if err != nil {
		return nil, err
	}
	return s.toImageView(ctx, image, false), nil
}

// persistUpload writes the outputs and creates the record, removing the blobs
// again when the record cannot be created.
func (s *Service) persistUpload(ctx context.Context, uploaderID, folderID uint, filename string, outputs variant.Outputs) (*model.Image, error) {
	id := uuid.NewString()
	stored, err := s.storeVariants(ctx, id, outputs)
	if err != nil {
		return nil, err
	}

	image := newImageRecord(uploaderID, folderID, filename, stored)
	if err := s.logic.CreateImage(ctx, image); err != nil {
		_ = s.deleteBlobs(context.WithoutCancel(ctx), storedKeys(stored))
		return nil, err
	}

	s.log.Info("image stored",
		zap.Uint("image_id", image.ID),
		zap.Uint("folder_id", folderID),
		zap.String("key", image.Filename),
		zap.String("status", string(image.ProcessingStatus)),
	)
	return image, nil
}

// storeVariants writes all outputs in parallel. On any failure the blobs that
// were written are deleted best-effort.
func (s *Service) storeVariants(ctx context.Context, id string, outputs variant.Outputs) (map[string]storedVariant, error) {
	stored := make(map[string]storedVariant, len(outputs))
	for _, out := range outputs {
		stored[out.Name] = storedVariant{Output: out, Key: variantKey(id, out)}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, v := range stored {
		v := v
		g.Go(func() error {
			if err := s.storage.PutObject(gctx, v.Key, bytes.NewReader(v.Data), v.ContentType, v.Size); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrStorageWrite, v.Key, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		_ = s.deleteBlobs(context.WithoutCancel(ctx), storedKeys(stored))
		return nil, err
	}
	return stored, nil
}

func newImageRecord(uploaderID, folderID uint, filename string, stored map[string]storedVariant) *model.Image {
	image := &model.Image{
		OriginalName:     cleanFilename(filename),
		FolderID:         folderID,
		UploadedBy:       uploaderID,
		UploadDate:       time.Now(),
		ProcessingStatus: model.StatusPending,
	}
	if v, ok := stored[variant.NameOriginal]; ok {
		image.OriginalKey = v.Key
		image.OriginalSize = v.Size
		image.OriginalWidth = v.Width
		image.OriginalHeight = v.Height
		image.ContentType = v.ContentType
	}
	if v, ok := stored[variant.NameDisplay]; ok {
		image.DisplayKey = v.Key
		image.DisplaySize = v.Size
		image.DisplayWidth = v.Width
		image.DisplayHeight = v.Height
	}
	if v, ok := stored[variant.NameThumbnail]; ok {
		generatedAt := image.UploadDate
		image.ThumbnailKey = v.Key
		image.ThumbnailSize = v.Size
		image.ThumbnailWidth = v.Width
		image.ThumbnailHeight = v.Height
		image.ThumbnailGeneratedAt = &generatedAt
	}

	image.Filename = image.DisplayKey
	if image.Filename == "" {
		image.Filename = image.OriginalKey
	}
	if image.OriginalKey != "" && image.DisplayKey != "" && image.ThumbnailKey != "" {
		image.ProcessingStatus = model.StatusCompleted
	}
	return image
}

func variantKey(id string, out variant.Output) string {
	return fmt.Sprintf("%s/%s/%s%s", keyPrefix, id, out.Name, out.Ext)
}

func storedKeys(stored map[string]storedVariant) []string {
	keys := make([]string, 0, len(stored))
	for _, v := range stored {
		keys = append(keys, v.Key)
	}
	return keys
}

func cleanFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}
