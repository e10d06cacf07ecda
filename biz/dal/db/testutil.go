package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/yi-nology/photo_vault/biz/dal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Reduce log noise in tests
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// every pooled connection would otherwise get its own empty database
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get underlying DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	// Auto migrate all tables
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("Failed to migrate tables: %v", err)
	}

	return db
}

// CleanupTestDB closes the database connection
func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Logf("Warning: Failed to get underlying DB: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		t.Logf("Warning: Failed to close DB: %v", err)
	}
}

// CreateTestFolder creates a private folder owned by ownerID
func CreateTestFolder(t *testing.T, db *gorm.DB, ownerID uint, name string) *model.Folder {
	t.Helper()
	folder := &model.Folder{Name: name, OwnerID: ownerID}
	if err := NewFolderDAO().Create(context.Background(), db, folder); err != nil {
		t.Fatalf("Failed to create test folder: %v", err)
	}
	return folder
}

// CreateTestImage creates a pending image without thumbnail uploaded at uploadDate
func CreateTestImage(t *testing.T, db *gorm.DB, folderID, uploaderID uint, uploadDate time.Time) *model.Image {
	t.Helper()
	name := fmt.Sprintf("images/%d-%d/display.png", folderID, uploadDate.UnixNano())
	image := &model.Image{
		Filename:     name,
		OriginalName: "photo.png",
		FolderID:     folderID,
		UploadedBy:   uploaderID,
		UploadDate:   uploadDate,
		DisplayKey:   name,
		OriginalKey:  name + ".orig",
	}
	if err := NewImageDAO().Create(context.Background(), db, image); err != nil {
		t.Fatalf("Failed to create test image: %v", err)
	}
	return image
}
