// Package worker runs the thumbnail backfill loop.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yi-nology/photo_vault/biz/dal/db"
	"github.com/yi-nology/photo_vault/biz/dal/model"
	"github.com/yi-nology/photo_vault/biz/service"
	"github.com/yi-nology/photo_vault/pkg/lock"
	"github.com/yi-nology/photo_vault/pkg/logger"
	"github.com/yi-nology/photo_vault/pkg/storage"
	"github.com/yi-nology/photo_vault/pkg/sysload"
	"github.com/yi-nology/photo_vault/pkg/variant"
)

// Store is the part of the record store the worker needs. *service.Logic
// implements it.
type Store interface {
	FindOneNeedingThumbnail(ctx context.Context) (*model.Image, error)
	GetImage(ctx context.Context, id uint) (*model.Image, error)
	CompleteThumbnail(ctx context.Context, id uint, upd db.ThumbnailUpdate) error
	MarkThumbnailFailed(ctx context.Context, id uint, reason string) (bool, error)
}

// Locker serialises backfill cycles across replicas. *lock.DistributedLock
// implements it.
type Locker interface {
	TryAcquire(ctx context.Context) (string, error)
	Release(ctx context.Context, lockID string) error
}

// Options configures a ThumbnailWorker. Zero durations fall back to the
// defaults below.
type Options struct {
	Store   Store
	Storage storage.Storage
	Profile variant.Profile
	Load    sysload.Signal
	Locker  Locker

	BusyCooldown  time.Duration
	IdleInterval  time.Duration
	ErrorCooldown time.Duration

	Logger *zap.Logger
	Now    func() time.Time
}

const (
	DefaultBusyCooldown  = 60 * time.Second
	DefaultIdleInterval  = 30 * time.Second
	DefaultErrorCooldown = 10 * time.Second
)

// ThumbnailWorker produces a thumbnail for every image that lacks one, one
// image per cycle, backing off while the host is busy.
type ThumbnailWorker struct {
	store   Store
	storage storage.Storage
	specs   []variant.Spec
	load    sysload.Signal
	locker  Locker

	busyCooldown  time.Duration
	idleInterval  time.Duration
	errorCooldown time.Duration

	log *zap.Logger
	now func() time.Time
}

func NewThumbnailWorker(opts Options) *ThumbnailWorker {
	w := &ThumbnailWorker{
		store:         opts.Store,
		storage:       opts.Storage,
		specs:         opts.Profile.ThumbnailOnly(),
		load:          opts.Load,
		locker:        opts.Locker,
		busyCooldown:  opts.BusyCooldown,
		idleInterval:  opts.IdleInterval,
		errorCooldown: opts.ErrorCooldown,
		log:           logger.OrNop(opts.Logger).Named("thumbnail_worker"),
		now:           opts.Now,
	}
	if w.busyCooldown <= 0 {
		w.busyCooldown = DefaultBusyCooldown
	}
	if w.idleInterval <= 0 {
		w.idleInterval = DefaultIdleInterval
	}
	if w.errorCooldown <= 0 {
		w.errorCooldown = DefaultErrorCooldown
	}
	if w.now == nil {
		w.now = time.Now
	}
	return w
}

// Run loops until ctx is cancelled.
func (w *ThumbnailWorker) Run(ctx context.Context) error {
	w.log.Info("thumbnail worker started")
	for {
		delay := w.RunOnce(ctx)
		if err := sleep(ctx, delay); err != nil {
			w.log.Info("thumbnail worker stopped")
			return err
		}
	}
}

// RunOnce performs a single cycle and returns how long to wait before the
// next one.
func (w *ThumbnailWorker) RunOnce(ctx context.Context) time.Duration {
	if w.load != nil {
		busy, reason, err := w.load.Busy(ctx)
		if err != nil {
			w.log.Warn("load signal unavailable", zap.Error(err))
		}
		if busy {
			w.log.Debug("host busy, skipping cycle", zap.String("reason", reason), zap.Duration("cooldown", w.busyCooldown))
			return w.busyCooldown
		}
	}

	if w.locker != nil {
		lockID, err := w.locker.TryAcquire(ctx)
		if errors.Is(err, lock.ErrNotAcquired) {
			return w.idleInterval
		}
		if err != nil {
			w.log.Warn("acquire backfill lock failed", zap.Error(err))
			return w.errorCooldown
		}
		defer func() {
			if err := w.locker.Release(context.WithoutCancel(ctx), lockID); err != nil {
				w.log.Warn("release backfill lock failed", zap.Error(err))
			}
		}()
	}

	image, err := w.store.FindOneNeedingThumbnail(ctx)
	if err != nil {
		w.log.Error("select image needing thumbnail failed", zap.Error(err))
		return w.errorCooldown
	}
	if image == nil {
		return w.idleInterval
	}

	if err := w.backfill(ctx, image); err != nil {
		if ctx.Err() != nil {
			return 0
		}
		w.log.Error("thumbnail generation failed",
			zap.Uint("image_id", image.ID),
			zap.String("source", image.SourceKey()),
			zap.Error(err),
		)
		w.markFailed(ctx, image.ID, err)
		return w.errorCooldown
	}
	return 0
}

func (w *ThumbnailWorker) backfill(ctx context.Context, image *model.Image) error {
	source := image.SourceKey()
	if source == "" {
		return fmt.Errorf("%w: image has no stored file", service.ErrStorageRead)
	}

	data, err := storage.ReadAll(ctx, w.storage, source)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", service.ErrStorageRead, source, err)
	}

	outputs, err := variant.Encode(data, w.specs)
	if err != nil {
		return err
	}
	thumb, ok := outputs.Get(variant.NameThumbnail)
	if !ok {
		return fmt.Errorf("%w: no thumbnail produced", variant.ErrEncode)
	}

	key := thumbnailKey(source, thumb.Ext)
	if err := w.storage.PutObject(ctx, key, bytes.NewReader(thumb.Data), thumb.ContentType, thumb.Size); err != nil {
		return fmt.Errorf("%w: %s: %v", service.ErrStorageWrite, key, err)
	}

	err = w.store.CompleteThumbnail(ctx, image.ID, db.ThumbnailUpdate{
		Key:         key,
		Size:        thumb.Size,
		Width:       thumb.Width,
		Height:      thumb.Height,
		GeneratedAt: w.now(),
		SourceKey:   source,
	})
	if err != nil {
		if derr := w.storage.DeleteObject(context.WithoutCancel(ctx), key); derr != nil {
			w.log.Warn("remove orphaned thumbnail failed", zap.String("key", key), zap.Error(derr))
		}
		return err
	}

	w.log.Info("thumbnail generated",
		zap.Uint("image_id", image.ID),
		zap.String("key", key),
		zap.Int("width", thumb.Width),
		zap.Int("height", thumb.Height),
	)
	return nil
}

// markFailed re-reads the record before excluding it from selection, so a
// thumbnail committed meanwhile is left alone.
func (w *ThumbnailWorker) markFailed(ctx context.Context, id uint, cause error) {
	ctx = context.WithoutCancel(ctx)
	current, err := w.store.GetImage(ctx, id)
	if err != nil {
		if !errors.Is(err, service.ErrImageNotFound) {
			w.log.Warn("reload failed image", zap.Uint("image_id", id), zap.Error(err))
		}
		return
	}
	if current.HasThumbnail() {
		return
	}
	changed, err := w.store.MarkThumbnailFailed(ctx, current.ID, cause.Error())
	if err != nil {
		w.log.Warn("mark image failed", zap.Uint("image_id", id), zap.Error(err))
		return
	}
	if changed {
		w.log.Warn("image excluded from thumbnail backfill", zap.Uint("image_id", id))
	}
}

// thumbnailKey derives the thumbnail key from the source key. Keys of the
// images/{id}/{variant}{ext} layout get a sibling; flat legacy keys get a
// "-thumb" suffix.
func thumbnailKey(source, ext string) string {
	dir, file := path.Split(source)
	base := strings.TrimSuffix(file, path.Ext(file))
	if base == variant.NameOriginal || base == variant.NameDisplay {
		return dir + variant.NameThumbnail + ext
	}
	return dir + base + "-thumb" + ext
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
