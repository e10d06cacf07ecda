package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yi-nology/photo_vault/biz/dal/model"
	"gorm.io/gorm"
)

func TestImageDAO_Create(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)
	dao := NewImageDAO()
	ctx := context.Background()

	t.Run("DefaultsApplied", func(t *testing.T) {
		image := &model.Image{Filename: "images/a/display.png", FolderID: 1, UploadedBy: 1}
		if err := dao.Create(ctx, db, image); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if image.ID == 0 {
			t.Error("Expected ID to be set after creation")
		}
		if image.ProcessingStatus != model.StatusPending {
			t.Errorf("Expected status pending, got %s", image.ProcessingStatus)
		}
		if image.UploadDate.IsZero() {
			t.Error("Expected upload date to be set")
		}
	})

	t.Run("DuplicateFilename", func(t *testing.T) {
		image := &model.Image{Filename: "images/a/display.png", FolderID: 1, UploadedBy: 1}
		if err := dao.Create(ctx, db, image); err == nil {
			t.Error("Expected error for duplicate filename")
		}
	})

	t.Run("NilEntity", func(t *testing.T) {
		if err := dao.Create(ctx, db, nil); err == nil {
			t.Error("Expected error for nil entity")
		}
	})
}

func TestImageDAO_FindOneNeedingThumbnail(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)
	dao := NewImageDAO()
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b := CreateTestImage(t, db, 1, 1, base.Add(2*time.Second))
	a := CreateTestImage(t, db, 1, 1, base.Add(1*time.Second))

	t.Run("OldestFirst", func(t *testing.T) {
		found, err := dao.FindOneNeedingThumbnail(ctx, db)
		if err != nil {
			t.Fatalf("FindOneNeedingThumbnail failed: %v", err)
		}
		if found.ID != a.ID {
			t.Fatalf("Expected image %d (oldest), got %d", a.ID, found.ID)
		}
	})

	t.Run("FailedExcluded", func(t *testing.T) {
		changed, err := dao.MarkThumbnailFailed(ctx, db, a.ID, "decode failed")
		if err != nil || !changed {
			t.Fatalf("MarkThumbnailFailed: changed=%v err=%v", changed, err)
		}
		for i := 0; i < 3; i++ {
			found, err := dao.FindOneNeedingThumbnail(ctx, db)
			if err != nil {
				t.Fatalf("FindOneNeedingThumbnail failed: %v", err)
			}
			if found.ID != b.ID {
				t.Fatalf("Expected image %d, got %d", b.ID, found.ID)
			}
		}
	})

	t.Run("NoneLeft", func(t *testing.T) {
		err := dao.CompleteThumbnail(ctx, db, b.ID, ThumbnailUpdate{Key: "images/b/thumbnail.jpg", Size: 10, Width: 300, Height: 225, GeneratedAt: time.Now()})
		if err != nil {
			t.Fatalf("CompleteThumbnail failed: %v", err)
		}
		_, err = dao.FindOneNeedingThumbnail(ctx, db)
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			t.Fatalf("Expected ErrRecordNotFound, got %v", err)
		}
	})
}

func TestImageDAO_MarkThumbnailFailedKeepsCompletion(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)
	dao := NewImageDAO()
	ctx := context.Background()

	image := CreateTestImage(t, db, 1, 1, time.Now())
	if err := dao.CompleteThumbnail(ctx, db, image.ID, ThumbnailUpdate{Key: "t.jpg", GeneratedAt: time.Now()}); err != nil {
		t.Fatalf("CompleteThumbnail failed: %v", err)
	}

	changed, err := dao.MarkThumbnailFailed(ctx, db, image.ID, "late failure")
	if err != nil {
		t.Fatalf("MarkThumbnailFailed failed: %v", err)
	}
	if changed {
		t.Fatal("Expected no row to change once a thumbnail is committed")
	}

	found, err := dao.GetByID(ctx, db, image.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if found.ProcessingStatus != model.StatusCompleted {
		t.Errorf("Expected status completed, got %s", found.ProcessingStatus)
	}
	if found.ThumbnailGeneratedAt == nil {
		t.Error("Expected thumbnail generation time to be set")
	}
}

func TestImageDAO_CompleteThumbnailLegacyRow(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)
	dao := NewImageDAO()
	ctx := context.Background()

	newLegacy := func(name string) *model.Image {
		image := &model.Image{Filename: name, FolderID: 1, UploadedBy: 1}
		if err := dao.Create(ctx, db, image); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		return image
	}

	t.Run("SourceKeyFillsLocators", func(t *testing.T) {
		image := newLegacy("old/a.png")
		if err := dao.CompleteThumbnail(ctx, db, image.ID, ThumbnailUpdate{Key: "old/a-thumb.jpg", GeneratedAt: time.Now(), SourceKey: "old/a.png"}); err != nil {
			t.Fatalf("CompleteThumbnail failed: %v", err)
		}
		found, err := dao.GetByID(ctx, db, image.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if found.ProcessingStatus != model.StatusCompleted {
			t.Errorf("Expected status completed, got %s", found.ProcessingStatus)
		}
		if found.OriginalKey != "old/a.png" || found.DisplayKey != "old/a.png" {
			t.Errorf("Expected locators filled from source, got %q / %q", found.OriginalKey, found.DisplayKey)
		}
	})

	t.Run("ExistingLocatorsKept", func(t *testing.T) {
		image := CreateTestImage(t, db, 1, 1, time.Now())
		if err := dao.CompleteThumbnail(ctx, db, image.ID, ThumbnailUpdate{Key: "t.jpg", GeneratedAt: time.Now(), SourceKey: image.DisplayKey}); err != nil {
			t.Fatalf("CompleteThumbnail failed: %v", err)
		}
		found, err := dao.GetByID(ctx, db, image.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if found.OriginalKey != image.OriginalKey {
			t.Errorf("Expected original key %q kept, got %q", image.OriginalKey, found.OriginalKey)
		}
	})

	t.Run("WithoutSourceKeyStaysPending", func(t *testing.T) {
		image := newLegacy("old/b.png")
		if err := dao.CompleteThumbnail(ctx, db, image.ID, ThumbnailUpdate{Key: "old/b-thumb.jpg", GeneratedAt: time.Now()}); err != nil {
			t.Fatalf("CompleteThumbnail failed: %v", err)
		}
		found, err := dao.GetByID(ctx, db, image.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if found.ProcessingStatus != model.StatusPending {
			t.Errorf("Expected status pending, got %s", found.ProcessingStatus)
		}
	})
}

func TestImageDAO_ListByFolder(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)
	dao := NewImageDAO()
	favs := NewFavoriteDAO()
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	oldest := CreateTestImage(t, db, 3, 1, base)
	middle := CreateTestImage(t, db, 3, 1, base.Add(time.Minute))
	newest := CreateTestImage(t, db, 3, 1, base.Add(2*time.Minute))
	CreateTestImage(t, db, 4, 1, base)

	if err := favs.Add(ctx, db, oldest.ID, 9); err != nil {
		t.Fatalf("Add favorite failed: %v", err)
	}
	if err := favs.Add(ctx, db, middle.ID, 10); err != nil {
		t.Fatalf("Add favorite failed: %v", err)
	}

	rows, err := dao.ListByFolder(ctx, db, 3, 9)
	if err != nil {
		t.Fatalf("ListByFolder failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected 3 images, got %d", len(rows))
	}
	wantOrder := []uint{oldest.ID, newest.ID, middle.ID}
	for i, id := range wantOrder {
		if rows[i].ID != id {
			t.Fatalf("Position %d: expected image %d, got %d", i, id, rows[i].ID)
		}
	}
	if !rows[0].IsFavorited || rows[1].IsFavorited || rows[2].IsFavorited {
		t.Errorf("Unexpected favourite flags: %v %v %v", rows[0].IsFavorited, rows[1].IsFavorited, rows[2].IsFavorited)
	}

	counts, err := dao.CountByFolders(ctx, db, []uint{3, 4, 5})
	if err != nil {
		t.Fatalf("CountByFolders failed: %v", err)
	}
	if counts[3] != 3 || counts[4] != 1 || counts[5] != 0 {
		t.Errorf("Unexpected counts: %v", counts)
	}
}

func TestImageDAO_Delete(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)
	dao := NewImageDAO()
	favs := NewFavoriteDAO()
	ctx := context.Background()

	image := CreateTestImage(t, db, 1, 1, time.Now())
	if err := favs.Add(ctx, db, image.ID, 1); err != nil {
		t.Fatalf("Add favorite failed: %v", err)
	}

	if err := dao.Delete(ctx, db, image.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := dao.GetByID(ctx, db, image.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("Expected ErrRecordNotFound, got %v", err)
	}
	exists, err := favs.Exists(ctx, db, image.ID, 1)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("Expected favourite to be removed with the image")
	}
	if err := dao.Delete(ctx, db, image.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("Expected ErrRecordNotFound on second delete, got %v", err)
	}
}

func TestImageDAO_ListAccessible(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)
	dao := NewImageDAO()
	folders := NewFolderDAO()
	ctx := context.Background()

	owned := CreateTestFolder(t, db, 1, "mine")
	shared := CreateTestFolder(t, db, 2, "shared")
	public := &model.Folder{Name: "public", OwnerID: 3, IsPublic: true}
	if err := folders.Create(ctx, db, public); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	hidden := CreateTestFolder(t, db, 4, "hidden")
	if err := folders.UpsertPermission(ctx, db, &model.FolderPermission{FolderID: shared.ID, UserID: 1, Access: model.AccessRead}); err != nil {
		t.Fatalf("UpsertPermission failed: %v", err)
	}

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	inOwned := CreateTestImage(t, db, owned.ID, 1, base)
	inShared := CreateTestImage(t, db, shared.ID, 2, base.Add(time.Minute))
	inPublic := CreateTestImage(t, db, public.ID, 3, base.Add(2*time.Minute))
	CreateTestImage(t, db, hidden.ID, 4, base.Add(3*time.Minute))

	if err := NewFavoriteDAO().Add(ctx, db, inShared.ID, 1); err != nil {
		t.Fatalf("Add favorite failed: %v", err)
	}

	t.Run("User", func(t *testing.T) {
		rows, err := dao.ListAccessible(ctx, db, 1, false)
		if err != nil {
			t.Fatalf("ListAccessible failed: %v", err)
		}
		wantOrder := []uint{inShared.ID, inPublic.ID, inOwned.ID}
		if len(rows) != len(wantOrder) {
			t.Fatalf("Expected %d images, got %d", len(wantOrder), len(rows))
		}
		for i, id := range wantOrder {
			if rows[i].ID != id {
				t.Fatalf("Position %d: expected image %d, got %d", i, id, rows[i].ID)
			}
		}
		if !rows[0].IsFavorited || rows[1].IsFavorited || rows[2].IsFavorited {
			t.Errorf("Unexpected favourite flags: %v %v %v", rows[0].IsFavorited, rows[1].IsFavorited, rows[2].IsFavorited)
		}
	})

	t.Run("All", func(t *testing.T) {
		rows, err := dao.ListAccessible(ctx, db, 1, true)
		if err != nil {
			t.Fatalf("ListAccessible failed: %v", err)
		}
		if len(rows) != 4 {
			t.Fatalf("Expected 4 images, got %d", len(rows))
		}
	})
}
