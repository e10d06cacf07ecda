package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/cloudwego/hertz/pkg/app/server"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yi-nology/photo_vault/biz/dal/model"
	"github.com/yi-nology/photo_vault/biz/handler"
	"github.com/yi-nology/photo_vault/biz/middleware"
	"github.com/yi-nology/photo_vault/biz/router"
	"github.com/yi-nology/photo_vault/biz/service"
	"github.com/yi-nology/photo_vault/biz/worker"
	"github.com/yi-nology/photo_vault/pkg/batch"
	"github.com/yi-nology/photo_vault/pkg/config"
	"github.com/yi-nology/photo_vault/pkg/database"
	"github.com/yi-nology/photo_vault/pkg/lock"
	"github.com/yi-nology/photo_vault/pkg/logger"
	"github.com/yi-nology/photo_vault/pkg/queue"
	"github.com/yi-nology/photo_vault/pkg/redis"
	"github.com/yi-nology/photo_vault/pkg/storage"
	"github.com/yi-nology/photo_vault/pkg/sysload"
	"github.com/yi-nology/photo_vault/pkg/validator"
	"github.com/yi-nology/photo_vault/pkg/variant"
)

const backfillLockKey = "photo_vault:thumbnail_backfill"

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	db, err := database.Open(cfg.Database, model.All()...)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	store, err := storage.New(cfg.Storage)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	log.Info("storage ready", zap.String("type", store.Type()))

	rdb, err := redis.NewClient(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	var batches batch.Store = batch.NewMemoryStore(cfg.Batch.TTL)
	if rdb != nil {
		batches = batch.NewRedisStore(rdb, cfg.Batch.TTL)
	}

	q := queue.New(cfg.Pipeline.QueueCapacity, queue.Policy(cfg.Pipeline.QueuePolicy))
	profile := profileFrom(cfg.Pipeline)

	svc := service.NewService(service.Options{
		DB:              db,
		Storage:         store,
		Queue:           q,
		Profile:         profile,
		InlineThumbnail: cfg.Pipeline.InlineThumbnailEnabled(),
		Upload:          validator.NewUploadConfig(cfg.Upload),
		MaxBulkFiles:    cfg.Upload.MaxBulkFiles,
		Batches:         batches,
		PublicBaseURL:   cfg.Server.PublicBaseURL,
		Logger:          log,
	})

	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	if cfg.Worker.IsEnabled() {
		w, err := newThumbnailWorker(cfg, log, svc, profile, q, rdb)
		if err != nil {
			stopWorker()
			return err
		}
		go func() {
			defer close(workerDone)
			worker.Supervise(workerCtx, "thumbnail_backfill", worker.RestartPolicy{
				Delay:    cfg.Worker.RestartDelay,
				MaxDelay: cfg.Worker.RestartMaxDelay,
			}, log, w.Run)
		}()
	} else {
		close(workerDone)
		log.Info("thumbnail worker disabled")
	}

	h := server.Default(
		server.WithHostPorts(cfg.Server.Address),
		server.WithMaxRequestBodySize(maxBodySize(cfg.Upload)),
		server.WithExitWaitTime(cfg.Server.ShutdownTimeout),
	)
	h.Use(
		middleware.Recovery(log),
		middleware.Auth(),
		middleware.Logging(log),
		middleware.CORS(&cfg.CORS),
	)
	router.Register(h, router.Handlers{
		Images:  handler.NewImageHandler(svc),
		Folders: handler.NewFolderHandler(svc),
		Files:   handler.NewFileHandler(store),
	})

	h.OnShutdown = append(h.OnShutdown, func(ctx context.Context) {
		stopWorker()
		if err := svc.Shutdown(ctx); err != nil {
			log.Warn("bulk uploads cancelled on shutdown", zap.Error(err))
		}
		if err := q.Close(ctx); err != nil && !errors.Is(err, queue.ErrQueueClosed) {
			log.Warn("admission queue close", zap.Error(err))
		}
		<-workerDone
		if rdb != nil {
			_ = rdb.Close()
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	log.Info("photo vault listening", zap.String("address", cfg.Server.Address))
	h.Spin()
	return nil
}

func newThumbnailWorker(cfg *config.Config, log *zap.Logger, svc *service.Service, profile variant.Profile, q *queue.Queue, rdb *goredis.Client) (*worker.ThumbnailWorker, error) {
	cpu := sysload.NewCPU(cfg.Worker.CPUThreshold, cfg.Worker.CPUSmoothing, sysload.HostCPU)
	load, err := sysload.Build(cfg.Worker.LoadSignal, cpu, q)
	if err != nil {
		return nil, err
	}

	opts := worker.Options{
		Store:         svc.Logic(),
		Storage:       svc.Storage(),
		Profile:       profile,
		Load:          load,
		BusyCooldown:  cfg.Worker.BusyCooldown,
		IdleInterval:  cfg.Worker.IdleInterval,
		ErrorCooldown: cfg.Worker.ErrorCooldown,
		Logger:        log,
	}
	if rdb != nil {
		opts.Locker = lock.New(rdb, backfillLockKey, cfg.Worker.LockTTL)
	}
	return worker.NewThumbnailWorker(opts), nil
}

func profileFrom(p config.PipelineConfig) variant.Profile {
	return variant.Profile{
		DisplayMaxSize:     p.DisplayMaxSize,
		DisplayFormat:      variant.Format(p.DisplayFormat),
		DisplayQuality:     p.DisplayQuality,
		BulkDisplayFormat:  variant.Format(p.BulkDisplayFormat),
		BulkDisplayQuality: p.BulkDisplayQuality,
		ThumbnailMaxSize:   p.ThumbnailMaxSize,
		ThumbnailFormat:    variant.Format(p.ThumbnailFormat),
		ThumbnailQuality:   p.ThumbnailQuality,
	}
}

// maxBodySize admits a full bulk request plus multipart overhead.
func maxBodySize(u config.UploadConfig) int {
	size := u.MaxSize*int64(max(u.MaxBulkFiles, 1)) + 1<<20
	if size > 1<<31-1 {
		return 1<<31 - 1
	}
	return int(size)
}
