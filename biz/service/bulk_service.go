package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yi-nology/photo_vault/biz/dal/model"
	"github.com/yi-nology/photo_vault/biz/model/api"
	"github.com/yi-nology/photo_vault/pkg/batch"
	"github.com/yi-nology/photo_vault/pkg/queue"
	"github.com/yi-nology/photo_vault/pkg/variant"
)

// BulkUpload accepts up to maxBulkFiles files and processes them in the
// background, one at a time. It returns as soon as the batch is recorded.
func (s *Service) BulkUpload(ctx context.Context, actor Actor, folderID uint, files []UploadInput) (*api.BulkUploadResult, error) {
	if _, err := s.CheckAccess(ctx, actor, folderID, model.AccessWrite); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	if len(files) > s.maxBulkFiles {
		return nil, fmt.Errorf("%w: at most %d per request", ErrTooManyFiles, s.maxBulkFiles)
	}
	if !s.admitBatch() {
		return nil, ErrShuttingDown
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = cleanFilename(f.Filename)
	}
	b := batch.New(uuid.NewString(), actor.ID, folderID, names)
	if err := s.batches.Save(ctx, b); err != nil {
		s.bulkWG.Done()
		return nil, fmt.Errorf("save batch: %w", err)
	}

	go func() {
		defer s.bulkWG.Done()
		s.processBatch(s.bgCtx, b, files)
	}()

	s.log.Info("bulk upload accepted",
		zap.String("batch_id", b.ID),
		zap.Uint("folder_id", folderID),
		zap.Int("total_files", b.Total),
	)
	return &api.BulkUploadResult{BatchID: b.ID, TotalFiles: b.Total}, nil
}

// admitBatch registers a background batch unless Shutdown has started.
func (s *Service) admitBatch() bool {
	s.bulkMu.Lock()
	defer s.bulkMu.Unlock()
	if s.closing {
		return false
	}
	s.bulkWG.Add(1)
	return true
}

// processBatch handles the files sequentially. A failing file is recorded and
// never stops the batch.
func (s *Service) processBatch(ctx context.Context, b *batch.Batch, files []UploadInput) {
	for i, f := range files {
		image, err := s.ingestBulkFile(ctx, b.OwnerID, b.FolderID, f)
		if err != nil {
			b.Fail(i, err)
			s.log.Warn("bulk file failed",
				zap.String("batch_id", b.ID),
				zap.Int("index", i),
				zap.String("filename", f.Filename),
				zap.Error(err),
			)
		} else {
			b.Succeed(i, image.ID)
		}
		if err := s.batches.Save(ctx, b); err != nil {
			s.log.Warn("save batch progress failed", zap.String("batch_id", b.ID), zap.Error(err))
		}
	}

	s.log.Info("bulk upload finished",
		zap.String("batch_id", b.ID),
		zap.Int("succeeded", b.Succeeded),
		zap.Int("failed", b.Failed),
	)
}

// ingestBulkFile stores the uploaded bytes as the original plus a lossy
// display copy. The thumbnail is left to the backfill worker.
func (s *Service) ingestBulkFile(ctx context.Context, uploaderID, folderID uint, f UploadInput) (*model.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.upload != nil {
		if err := s.upload.ValidateFileSize(int64(len(f.Data))); err != nil {
			return nil, err
		}
	}

	specs := s.profile.Bulk()
	outputs, err := queue.Do(ctx, s.queue, func(context.Context) (variant.Outputs, error) {
		return variant.Encode(f.Data, specs)
	})
	if err != nil {
		return nil, err
	}
	return s.persistUpload(ctx, uploaderID, folderID, f.Filename, outputs)
}

// GetBatch returns the progress of a bulk upload. Batches of other users are
// reported as not found.
func (s *Service) GetBatch(ctx context.Context, actor Actor, batchID string) (*batch.Batch, error) {
	b, err := s.batches.Get(ctx, batchID)
	if err != nil {
		if errors.Is(err, batch.ErrNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}
	if b.OwnerID != actor.ID && !actor.Admin {
		return nil, ErrBatchNotFound
	}
	return b, nil
}
