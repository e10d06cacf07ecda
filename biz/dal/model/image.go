package model

import (
	"time"
)

// ProcessingStatus tracks derivative generation for an image.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Image stores one uploaded image and the keys of its variants.
//
// Filename is the storage key of the primary (display) variant and is
// unique. URL and OriginalFilename belong to records written before variants
// existed; they are read for fallbacks and deletion only.
type Image struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Filename     string    `gorm:"column:filename;type:varchar(512);uniqueIndex:idx_image_filename" json:"filename"`
	OriginalName string    `gorm:"column:original_name;type:varchar(512)" json:"original_name"`
	ContentType  string    `gorm:"column:content_type;type:varchar(128)" json:"content_type"`
	FolderID     uint      `gorm:"column:folder_id;index:idx_image_folder" json:"folder_id"`
	UploadedBy   uint      `gorm:"column:uploaded_by;index:idx_image_uploader" json:"uploaded_by"`
	UploadDate   time.Time `gorm:"column:upload_date;index:idx_image_upload_date" json:"upload_date"`

	URL              *string `gorm:"column:url;type:text" json:"-"`
	OriginalFilename *string `gorm:"column:original_filename;type:varchar(512)" json:"-"`

	OriginalKey    string `gorm:"column:original_key;type:varchar(512)" json:"original_key,omitempty"`
	OriginalSize   int64  `gorm:"column:original_size" json:"original_size,omitempty"`
	OriginalWidth  int    `gorm:"column:original_width" json:"original_width,omitempty"`
	OriginalHeight int    `gorm:"column:original_height" json:"original_height,omitempty"`

	DisplayKey    string `gorm:"column:display_key;type:varchar(512)" json:"display_key,omitempty"`
	DisplaySize   int64  `gorm:"column:display_size" json:"display_size,omitempty"`
	DisplayWidth  int    `gorm:"column:display_width" json:"display_width,omitempty"`
	DisplayHeight int    `gorm:"column:display_height" json:"display_height,omitempty"`

	ThumbnailKey         string     `gorm:"column:thumbnail_key;type:varchar(512)" json:"thumbnail_key,omitempty"`
	ThumbnailSize        int64      `gorm:"column:thumbnail_size" json:"thumbnail_size,omitempty"`
	ThumbnailWidth       int        `gorm:"column:thumbnail_width" json:"thumbnail_width,omitempty"`
	ThumbnailHeight      int        `gorm:"column:thumbnail_height" json:"thumbnail_height,omitempty"`
	ThumbnailGeneratedAt *time.Time `gorm:"column:thumbnail_generated_at" json:"thumbnail_generated_at,omitempty"`

	ProcessingStatus ProcessingStatus `gorm:"column:processing_status;type:varchar(16);default:pending;index:idx_image_status" json:"processing_status"`
	ProcessingError  string           `gorm:"column:processing_error;type:text" json:"processing_error,omitempty"`
}

// TableName overrides gorm to use image table.
func (Image) TableName() string {
	return "image"
}

// HasThumbnail reports whether a thumbnail variant is recorded.
func (i *Image) HasThumbnail() bool {
	return i.ThumbnailKey != ""
}

// SourceKey returns the best blob to derive further variants from: display,
// then original, then the legacy primary file.
func (i *Image) SourceKey() string {
	switch {
	case i.DisplayKey != "":
		return i.DisplayKey
	case i.OriginalKey != "":
		return i.OriginalKey
	default:
		return i.Filename
	}
}

// BlobKeys lists every stored key of the image, deduplicated.
func (i *Image) BlobKeys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, k := range []string{i.DisplayKey, i.OriginalKey, i.ThumbnailKey, i.Filename, deref(i.OriginalFilename)} {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}

// ImageFavorite marks an image as favourite for one user.
type ImageFavorite struct {
	ImageID   uint      `gorm:"primaryKey;autoIncrement:false" json:"image_id"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides gorm to use image_favorite table.
func (ImageFavorite) TableName() string {
	return "image_favorite"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
