package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yi-nology/photo_vault/biz/dal/db"
	"github.com/yi-nology/photo_vault/biz/dal/model"
	"github.com/yi-nology/photo_vault/biz/model/api"
	"github.com/yi-nology/photo_vault/pkg/batch"
	"github.com/yi-nology/photo_vault/pkg/logger"
	"github.com/yi-nology/photo_vault/pkg/queue"
	"github.com/yi-nology/photo_vault/pkg/storage"
	"github.com/yi-nology/photo_vault/pkg/validator"
	"github.com/yi-nology/photo_vault/pkg/variant"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID    uint
	Admin bool
}

// UploadInput is one uploaded file, already copied out of the request.
type UploadInput struct {
	Filename string
	Data     []byte
}

// Options wires the Service dependencies.
type Options struct {
	DB              *gorm.DB
	Storage         storage.Storage
	Queue           *queue.Queue
	Profile         variant.Profile
	InlineThumbnail bool
	Upload          *validator.UploadConfig
	MaxBulkFiles    int
	Batches         batch.Store
	PublicBaseURL   string
	Logger          *zap.Logger
}

// Service orchestrates uploads, image and folder operations using Logic.
type Service struct {
	logic           *Logic
	storage         storage.Storage
	queue           *queue.Queue
	profile         variant.Profile
	inlineThumbnail bool
	upload          *validator.UploadConfig
	maxBulkFiles    int
	batches         batch.Store
	publicBaseURL   string
	log             *zap.Logger

	// bulk processing outlives the request that started it
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bulkWG   sync.WaitGroup
	// bulkMu orders bulkWG.Add against Shutdown's Wait
	bulkMu  sync.Mutex
	closing bool
}

func NewService(opts Options) *Service {
	if opts.MaxBulkFiles <= 0 {
		opts.MaxBulkFiles = 20
	}
	if opts.Batches == nil {
		opts.Batches = batch.NewMemoryStore(24 * time.Hour)
	}
	bgCtx, bgCancel := context.WithCancel(context.Background())
	return &Service{
		logic:           NewLogic(opts.DB),
		storage:         opts.Storage,
		queue:           opts.Queue,
		profile:         opts.Profile,
		inlineThumbnail: opts.InlineThumbnail,
		upload:          opts.Upload,
		maxBulkFiles:    opts.MaxBulkFiles,
		batches:         opts.Batches,
		publicBaseURL:   strings.TrimSuffix(opts.PublicBaseURL, "/"),
		log:             logger.OrNop(opts.Logger),
		bgCtx:           bgCtx,
		bgCancel:        bgCancel,
	}
}

// Logic exposes the persistence rules, used by the backfill worker.
func (s *Service) Logic() *Logic {
	return s.logic
}

// Storage returns the blob backend.
func (s *Service) Storage() storage.Storage {
	return s.storage
}

// Shutdown stops accepting bulk uploads and waits for in-flight batches.
// When ctx expires first the remaining batches are cancelled.
func (s *Service) Shutdown(ctx context.Context) error {
	s.bulkMu.Lock()
	s.closing = true
	s.bulkMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.bulkWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.bgCancel()
		return nil
	case <-ctx.Done():
		s.bgCancel()
		<-done
		return ctx.Err()
	}
}

// --------------------- URL helpers ---------------------

// resolveURL turns a storage key into an absolute URL.
func (s *Service) resolveURL(ctx context.Context, key string) string {
	if key == "" {
		return ""
	}
	url, err := s.storage.GenerateURL(ctx, key)
	if err != nil {
		s.log.Warn("generate url failed", zap.String("key", key), zap.Error(err))
		return ""
	}
	return s.absolute(url)
}

func (s *Service) absolute(url string) string {
	if strings.HasPrefix(url, "/") {
		return s.publicBaseURL + url
	}
	return url
}

func (s *Service) legacyURL(ctx context.Context, image *model.Image) string {
	if image.URL != nil && *image.URL != "" {
		return s.absolute(*image.URL)
	}
	return s.resolveURL(ctx, image.Filename)
}

func (s *Service) toImageView(ctx context.Context, image *model.Image, favorited bool) *api.Image {
	view := &api.Image{
		ID:                   image.ID,
		Filename:             image.Filename,
		OriginalName:         image.OriginalName,
		FolderID:             image.FolderID,
		UploadedBy:           image.UploadedBy,
		UploadDate:           image.UploadDate,
		OriginalURL:          s.resolveURL(ctx, image.OriginalKey),
		OriginalSize:         image.OriginalSize,
		OriginalWidth:        image.OriginalWidth,
		OriginalHeight:       image.OriginalHeight,
		DisplayURL:           s.resolveURL(ctx, image.DisplayKey),
		DisplaySize:          image.DisplaySize,
		ThumbnailURL:         s.resolveURL(ctx, image.ThumbnailKey),
		ThumbnailSize:        image.ThumbnailSize,
		ThumbnailWidth:       image.ThumbnailWidth,
		ThumbnailHeight:      image.ThumbnailHeight,
		ThumbnailGeneratedAt: image.ThumbnailGeneratedAt,
		ProcessingStatus:     string(image.ProcessingStatus),
		IsFavorited:          favorited,
	}
	switch {
	case view.DisplayURL != "":
		view.URL = view.DisplayURL
	case view.OriginalURL != "":
		view.URL = view.OriginalURL
	default:
		view.URL = s.legacyURL(ctx, image)
	}
	return view
}

func (s *Service) toImageViews(ctx context.Context, rows []db.ImageWithFavorite) []*api.Image {
	views := make([]*api.Image, 0, len(rows))
	for i := range rows {
		views = append(views, s.toImageView(ctx, &rows[i].Image, rows[i].IsFavorited))
	}
	return views
}

// deleteBlobs removes every key best-effort and returns the first error.
func (s *Service) deleteBlobs(ctx context.Context, keys []string) error {
	var first error
	for _, key := range keys {
		if err := s.storage.DeleteObject(ctx, key); err != nil {
			s.log.Warn("delete blob failed", zap.String("key", key), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}
