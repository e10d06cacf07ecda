package service_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
	"gorm.io/gorm"

	"github.com/yi-nology/photo_vault/biz/dal/db"
	"github.com/yi-nology/photo_vault/biz/dal/model"
	"github.com/yi-nology/photo_vault/biz/model/api"
	"github.com/yi-nology/photo_vault/biz/service"
	"github.com/yi-nology/photo_vault/pkg/batch"
	"github.com/yi-nology/photo_vault/pkg/config"
	"github.com/yi-nology/photo_vault/pkg/queue"
	"github.com/yi-nology/photo_vault/pkg/storage"
	"github.com/yi-nology/photo_vault/pkg/storage/local"
	"github.com/yi-nology/photo_vault/pkg/validator"
	"github.com/yi-nology/photo_vault/pkg/variant"
)

const baseURL = "http://img.test"

var (
	owner    = service.Actor{ID: 1}
	stranger = service.Actor{ID: 2}
	admin    = service.Actor{ID: 99, Admin: true}
)

// failingStorage fails PutObject for keys containing failOn.
type failingStorage struct {
	storage.Storage
	failOn string
}

func (f *failingStorage) PutObject(ctx context.Context, key string, data io.Reader, contentType string, size int64) error {
	if strings.Contains(key, f.failOn) {
		return errors.New("disk full")
	}
	return f.Storage.PutObject(ctx, key, data, contentType, size)
}

type testEnv struct {
	svc    *service.Service
	db     *gorm.DB
	store  storage.Storage
	folder *model.Folder
}

type envOption func(*service.Options)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	gdb := db.SetupTestDB(t)
	t.Cleanup(func() { db.CleanupTestDB(t, gdb) })

	store, err := local.New(t.TempDir(), "")
	require.NoError(t, err)

	q := queue.New(8, queue.PolicyBlock)
	t.Cleanup(func() { _ = q.Close(context.Background()) })

	o := service.Options{
		DB:              gdb,
		Storage:         store,
		Queue:           q,
		Profile:         variant.DefaultProfile(),
		InlineThumbnail: true,
		Upload: validator.NewUploadConfig(config.UploadConfig{
			MaxSize:      10 * 1024 * 1024,
			AllowedTypes: []string{"image/png", "image/jpeg"},
		}),
		MaxBulkFiles:  20,
		Batches:       batch.NewMemoryStore(time.Hour),
		PublicBaseURL: baseURL,
	}
	for _, opt := range opts {
		opt(&o)
	}
	svc := service.NewService(o)

	return &testEnv{
		svc:    svc,
		db:     gdb,
		store:  o.Storage,
		folder: db.CreateTestFolder(t, gdb, owner.ID, "album"),
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func countImages(t *testing.T, gdb *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, gdb.Model(&model.Image{}).Count(&n).Error)
	return n
}

func blobKeys(t *testing.T, gdb *gorm.DB, id uint) []string {
	t.Helper()
	var img model.Image
	require.NoError(t, gdb.First(&img, id).Error)
	return img.BlobKeys()
}

func TestUploadImage(t *testing.T) {
	ctx := context.Background()

	t.Run("inline thumbnail completes the record", func(t *testing.T) {
		env := newTestEnv(t)
		view, err := env.svc.UploadImage(ctx, owner, env.folder.ID, service.UploadInput{Filename: "C:\\pics\\cat.png", Data: pngBytes(t, 640, 480)})
		require.NoError(t, err)

		assert.Equal(t, string(model.StatusCompleted), view.ProcessingStatus)
		assert.Equal(t, "cat.png", view.OriginalName)
		assert.Equal(t, 640, view.OriginalWidth)
		assert.Equal(t, 300, view.ThumbnailWidth)
		assert.Equal(t, 225, view.ThumbnailHeight)
		assert.True(t, strings.HasPrefix(view.URL, baseURL+"/uploads/images/"), view.URL)
		assert.Equal(t, view.DisplayURL, view.URL)
		assert.NotEmpty(t, view.ThumbnailURL)

		for _, key := range blobKeys(t, env.db, view.ID) {
			ok, err := env.store.ObjectExists(ctx, key)
			require.NoError(t, err)
			assert.True(t, ok, key)
		}
	})

	t.Run("deferred thumbnail leaves record pending", func(t *testing.T) {
		env := newTestEnv(t, func(o *service.Options) { o.InlineThumbnail = false })
		view, err := env.svc.UploadImage(ctx, owner, env.folder.ID, service.UploadInput{Filename: "cat.png", Data: pngBytes(t, 64, 48)})
		require.NoError(t, err)
		assert.Equal(t, string(model.StatusPending), view.ProcessingStatus)
		assert.Empty(t, view.ThumbnailURL)
		assert.NotEmpty(t, view.OriginalURL)
	})

	t.Run("storage failure creates no record and leaves no blobs", func(t *testing.T) {
		base := t.TempDir()
		inner, err := local.New(base, "")
		require.NoError(t, err)
		env := newTestEnv(t, func(o *service.Options) {
			o.Storage = &failingStorage{Storage: inner, failOn: "thumbnail"}
		})
		_, err = env.svc.UploadImage(ctx, owner, env.folder.ID, service.UploadInput{Filename: "cat.png", Data: pngBytes(t, 64, 48)})
		require.ErrorIs(t, err, service.ErrStorageWrite)
		assert.Zero(t, countImages(t, env.db))
		assert.Zero(t, countFiles(t, base))
	})

	t.Run("tiff accepted", func(t *testing.T) {
		env := newTestEnv(t, func(o *service.Options) {
			o.Upload = validator.NewUploadConfig(config.UploadConfig{
				MaxSize:      10 * 1024 * 1024,
				AllowedTypes: []string{"image/png", "image/tiff"},
			})
		})
		var buf bytes.Buffer
		require.NoError(t, tiff.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 40, 30)), nil))

		view, err := env.svc.UploadImage(ctx, owner, env.folder.ID, service.UploadInput{Filename: "scan.tiff", Data: buf.Bytes()})
		require.NoError(t, err)
		assert.Equal(t, string(model.StatusCompleted), view.ProcessingStatus)
		assert.Equal(t, 40, view.OriginalWidth)
		assert.Equal(t, "scan.tiff", view.OriginalName)
	})

	t.Run("non image rejected", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.UploadImage(ctx, owner, env.folder.ID, service.UploadInput{Filename: "notes.txt", Data: []byte("plain text")})
		assert.ErrorIs(t, err, validator.ErrUnsupportedType)
	})

	t.Run("write access required", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.UploadImage(ctx, stranger, env.folder.ID, service.UploadInput{Filename: "cat.png", Data: pngBytes(t, 8, 8)})
		assert.ErrorIs(t, err, service.ErrAccessDenied)

		_, err = env.svc.UploadImage(ctx, owner, 4242, service.UploadInput{Filename: "cat.png", Data: pngBytes(t, 8, 8)})
		assert.ErrorIs(t, err, service.ErrFolderNotFound)
	})
}

func TestBulkUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("one bad file does not stop the batch", func(t *testing.T) {
		env := newTestEnv(t)
		files := []service.UploadInput{
			{Filename: "one.png", Data: pngBytes(t, 120, 80)},
			{Filename: "two.txt", Data: []byte("definitely not an image")},
			{Filename: "three.png", Data: pngBytes(t, 80, 120)},
		}
		res, err := env.svc.BulkUpload(ctx, owner, env.folder.ID, files)
		require.NoError(t, err)
		assert.Equal(t, 3, res.TotalFiles)
		assert.NotEmpty(t, res.BatchID)

		require.NoError(t, env.svc.Shutdown(ctx))

		b, err := env.svc.GetBatch(ctx, owner, res.BatchID)
		require.NoError(t, err)
		assert.Equal(t, batch.StatusCompleted, b.Status)
		failures := b.Failures()
		require.Len(t, failures, 1)
		assert.Equal(t, 1, failures[0].Index)
		assert.Contains(t, failures[0].Error, variant.ErrDecode.Error())

		var images []model.Image
		require.NoError(t, env.db.Order("id").Find(&images).Error)
		require.Len(t, images, 2)
		assert.Equal(t, "one.png", images[0].OriginalName)
		assert.Equal(t, "three.png", images[1].OriginalName)
		for _, img := range images {
			assert.Equal(t, model.StatusPending, img.ProcessingStatus)
			assert.Empty(t, img.ThumbnailKey)
			assert.True(t, strings.HasSuffix(img.OriginalKey, "original.png"), img.OriginalKey)
			assert.True(t, strings.HasSuffix(img.DisplayKey, "display.jpg"), img.DisplayKey)
		}
	})

	t.Run("limits", func(t *testing.T) {
		env := newTestEnv(t, func(o *service.Options) { o.MaxBulkFiles = 2 })
		_, err := env.svc.BulkUpload(ctx, owner, env.folder.ID, nil)
		assert.ErrorIs(t, err, service.ErrNoFiles)

		files := make([]service.UploadInput, 3)
		_, err = env.svc.BulkUpload(ctx, owner, env.folder.ID, files)
		assert.ErrorIs(t, err, service.ErrTooManyFiles)
	})

	t.Run("batch hidden from other users", func(t *testing.T) {
		env := newTestEnv(t)
		res, err := env.svc.BulkUpload(ctx, owner, env.folder.ID, []service.UploadInput{{Filename: "a.png", Data: pngBytes(t, 8, 8)}})
		require.NoError(t, err)
		require.NoError(t, env.svc.Shutdown(ctx))

		_, err = env.svc.GetBatch(ctx, stranger, res.BatchID)
		assert.ErrorIs(t, err, service.ErrBatchNotFound)
		_, err = env.svc.GetBatch(ctx, admin, res.BatchID)
		assert.NoError(t, err)
	})

	t.Run("batches accepted during shutdown finish before it returns", func(t *testing.T) {
		env := newTestEnv(t)
		data := pngBytes(t, 8, 8)

		const uploaders = 8
		accepted := make(chan string, uploaders)
		start := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < uploaders; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				res, err := env.svc.BulkUpload(ctx, owner, env.folder.ID, []service.UploadInput{{Filename: fmt.Sprintf("%d.png", i), Data: data}})
				if err == nil {
					accepted <- res.BatchID
					return
				}
				assert.ErrorIs(t, err, service.ErrShuttingDown)
			}(i)
		}
		close(start)
		require.NoError(t, env.svc.Shutdown(ctx))
		wg.Wait()
		close(accepted)

		for id := range accepted {
			b, err := env.svc.GetBatch(ctx, owner, id)
			require.NoError(t, err)
			assert.Equal(t, batch.StatusCompleted, b.Status, id)
			assert.Zero(t, b.Failed, id)
		}
	})

	t.Run("rejected after shutdown", func(t *testing.T) {
		env := newTestEnv(t)
		require.NoError(t, env.svc.Shutdown(ctx))
		_, err := env.svc.BulkUpload(ctx, owner, env.folder.ID, []service.UploadInput{{Filename: "a.png", Data: pngBytes(t, 8, 8)}})
		assert.ErrorIs(t, err, service.ErrShuttingDown)
	})
}

func TestCompletedRecordsHaveAllVariants(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		_, err := env.svc.UploadImage(ctx, owner, env.folder.ID, service.UploadInput{Filename: fmt.Sprintf("%d.png", i), Data: pngBytes(t, 50+i, 40)})
		require.NoError(t, err)
	}
	_, err := env.svc.BulkUpload(ctx, owner, env.folder.ID, []service.UploadInput{{Filename: "b.png", Data: pngBytes(t, 30, 30)}})
	require.NoError(t, err)
	require.NoError(t, env.svc.Shutdown(ctx))

	var images []model.Image
	require.NoError(t, env.db.Find(&images).Error)
	require.Len(t, images, 4)
	for _, img := range images {
		assert.NotEmpty(t, img.OriginalKey)
		if img.ProcessingStatus == model.StatusCompleted {
			assert.NotEmpty(t, img.DisplayKey)
			assert.NotEmpty(t, img.ThumbnailKey)
			assert.NotNil(t, img.ThumbnailGeneratedAt)
		}
	}
}

func TestDeleteImage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	view, err := env.svc.UploadImage(ctx, owner, env.folder.ID, service.UploadInput{Filename: "cat.png", Data: pngBytes(t, 32, 32)})
	require.NoError(t, err)
	keys := blobKeys(t, env.db, view.ID)
	require.Len(t, keys, 3)

	assert.ErrorIs(t, env.svc.DeleteImage(ctx, stranger, view.ID), service.ErrAccessDenied)

	require.NoError(t, env.svc.DeleteImage(ctx, owner, view.ID))
	for _, key := range keys {
		ok, err := env.store.ObjectExists(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}
	assert.Zero(t, countImages(t, env.db))
	assert.ErrorIs(t, env.svc.DeleteImage(ctx, owner, view.ID), service.ErrImageNotFound)
}

func TestFavoritesAndListing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	first, err := env.svc.UploadImage(ctx, owner, env.folder.ID, service.UploadInput{Filename: "first.png", Data: pngBytes(t, 16, 16)})
	require.NoError(t, err)
	second, err := env.svc.UploadImage(ctx, owner, env.folder.ID, service.UploadInput{Filename: "second.png", Data: pngBytes(t, 17, 16)})
	require.NoError(t, err)

	fav, err := env.svc.ToggleFavorite(ctx, owner, first.ID)
	require.NoError(t, err)
	assert.True(t, fav.IsFavorited)

	list, err := env.svc.ListImages(ctx, owner, env.folder.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.True(t, list[0].IsFavorited)
	assert.Equal(t, second.ID, list[1].ID)

	fav, err = env.svc.ToggleFavorite(ctx, owner, first.ID)
	require.NoError(t, err)
	assert.False(t, fav.IsFavorited)

	_, err = env.svc.ListImages(ctx, stranger, env.folder.ID)
	assert.ErrorIs(t, err, service.ErrAccessDenied)
}

func TestListAccessibleImages(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	theirs := db.CreateTestFolder(t, env.db, stranger.ID, "theirs")

	mine, err := env.svc.UploadImage(ctx, owner, env.folder.ID, service.UploadInput{Filename: "mine.png", Data: pngBytes(t, 16, 16)})
	require.NoError(t, err)
	other, err := env.svc.UploadImage(ctx, stranger, theirs.ID, service.UploadInput{Filename: "other.png", Data: pngBytes(t, 16, 16)})
	require.NoError(t, err)

	ids := func(list []*api.Image) []uint {
		out := make([]uint, 0, len(list))
		for _, img := range list {
			out = append(out, img.ID)
		}
		return out
	}

	list, err := env.svc.ListAccessibleImages(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, []uint{mine.ID}, ids(list))
	assert.True(t, strings.HasPrefix(list[0].URL, baseURL+"/uploads/"), list[0].URL)

	_, err = env.svc.GrantPermission(ctx, stranger, theirs.ID, &api.PermissionRequest{UserID: owner.ID, Access: "read"})
	require.NoError(t, err)
	_, err = env.svc.ToggleFavorite(ctx, owner, mine.ID)
	require.NoError(t, err)

	list, err = env.svc.ListAccessibleImages(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, []uint{mine.ID, other.ID}, ids(list), "favourites first")
	assert.True(t, list[0].IsFavorited)
	assert.False(t, list[1].IsFavorited)

	list, err = env.svc.ListAccessibleImages(ctx, stranger)
	require.NoError(t, err)
	assert.Equal(t, []uint{other.ID}, ids(list))

	list, err = env.svc.ListAccessibleImages(ctx, admin)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{mine.ID, other.ID}, ids(list))
}

func TestDownloadInfo(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	view, err := env.svc.UploadImage(ctx, owner, env.folder.ID, service.UploadInput{Filename: "holiday.png", Data: pngBytes(t, 16, 16)})
	require.NoError(t, err)

	info, err := env.svc.GetDownloadInfo(ctx, owner, view.ID)
	require.NoError(t, err)
	assert.Equal(t, "holiday.png", info.Filename)
	assert.Equal(t, view.OriginalURL, info.URL)

	t.Run("legacy record falls back to url", func(t *testing.T) {
		legacy := "/uploads/legacy.jpg"
		img := &model.Image{Filename: "legacy.jpg", FolderID: env.folder.ID, UploadedBy: owner.ID, URL: &legacy}
		require.NoError(t, db.NewImageDAO().Create(ctx, env.db, img))

		info, err := env.svc.GetDownloadInfo(ctx, owner, img.ID)
		require.NoError(t, err)
		assert.Equal(t, baseURL+"/uploads/legacy.jpg", info.URL)
		assert.Equal(t, "legacy.jpg", info.Filename)
	})
}

func TestFolderPermissions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.svc.CreateFolder(ctx, owner, &api.FolderRequest{Name: strPtr("album")})
	assert.ErrorIs(t, err, service.ErrFolderNameExists)

	_, err = env.svc.GrantPermission(ctx, stranger, env.folder.ID, &api.PermissionRequest{UserID: stranger.ID, Access: "admin"})
	assert.ErrorIs(t, err, service.ErrAccessDenied)

	_, err = env.svc.GrantPermission(ctx, owner, env.folder.ID, &api.PermissionRequest{UserID: stranger.ID, Access: "owner"})
	assert.ErrorIs(t, err, service.ErrInvalidArgument)

	folder, err := env.svc.GrantPermission(ctx, owner, env.folder.ID, &api.PermissionRequest{UserID: stranger.ID, Access: "write"})
	require.NoError(t, err)
	require.Len(t, folder.Permissions, 1)

	view, err := env.svc.GetFolder(ctx, stranger, env.folder.ID)
	require.NoError(t, err)
	assert.True(t, view.CanWrite)
	assert.False(t, view.CanDelete)

	_, err = env.svc.UploadImage(ctx, stranger, env.folder.ID, service.UploadInput{Filename: "x.png", Data: pngBytes(t, 8, 8)})
	require.NoError(t, err)
	assert.ErrorIs(t, env.svc.DeleteFolder(ctx, stranger, env.folder.ID), service.ErrAccessDenied)

	require.NoError(t, env.svc.RevokePermission(ctx, owner, env.folder.ID, stranger.ID))
	_, err = env.svc.GetFolder(ctx, stranger, env.folder.ID)
	assert.ErrorIs(t, err, service.ErrAccessDenied)

	public := true
	_, err = env.svc.UpdateFolder(ctx, owner, env.folder.ID, &api.FolderRequest{IsPublic: &public})
	require.NoError(t, err)
	view, err = env.svc.GetFolder(ctx, stranger, env.folder.ID)
	require.NoError(t, err)
	assert.Equal(t, "read", view.Access)
	assert.False(t, view.CanWrite)

	folders, err := env.svc.ListFolders(ctx, stranger)
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.EqualValues(t, 1, folders[0].ImageCount)
}

func TestDeleteFolderRemovesImages(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	view, err := env.svc.UploadImage(ctx, owner, env.folder.ID, service.UploadInput{Filename: "x.png", Data: pngBytes(t, 8, 8)})
	require.NoError(t, err)
	keys := blobKeys(t, env.db, view.ID)

	require.NoError(t, env.svc.DeleteFolder(ctx, admin, env.folder.ID))
	assert.Zero(t, countImages(t, env.db))
	for _, key := range keys {
		ok, err := env.store.ObjectExists(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	_, err = env.svc.GetFolder(ctx, owner, env.folder.ID)
	assert.ErrorIs(t, err, service.ErrFolderNotFound)
}

func strPtr(s string) *string { return &s }

func countFiles(t *testing.T, root string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}
