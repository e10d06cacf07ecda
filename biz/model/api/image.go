package api

import "time"

// Image is the API view of an image record with resolved absolute URLs.
type Image struct {
	ID           uint      `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	FolderID     uint      `json:"folder_id"`
	UploadedBy   uint      `json:"uploaded_by"`
	UploadDate   time.Time `json:"upload_date"`

	// URL is the best URL to show: display, then original, then legacy.
	URL string `json:"url"`

	OriginalURL    string `json:"original_url,omitempty"`
	OriginalSize   int64  `json:"original_size,omitempty"`
	OriginalWidth  int    `json:"original_width,omitempty"`
	OriginalHeight int    `json:"original_height,omitempty"`

	DisplayURL  string `json:"display_url,omitempty"`
	DisplaySize int64  `json:"display_size,omitempty"`

	ThumbnailURL         string     `json:"thumbnail_url,omitempty"`
	ThumbnailSize        int64      `json:"thumbnail_size,omitempty"`
	ThumbnailWidth       int        `json:"thumbnail_width,omitempty"`
	ThumbnailHeight      int        `json:"thumbnail_height,omitempty"`
	ThumbnailGeneratedAt *time.Time `json:"thumbnail_generated_at,omitempty"`

	ProcessingStatus string `json:"processing_status"`
	IsFavorited      bool   `json:"is_favorited"`
}

// BulkUploadResult is returned as soon as a bulk upload has been accepted.
type BulkUploadResult struct {
	BatchID    string `json:"batch_id"`
	TotalFiles int    `json:"total_files"`
}

// FavoriteResult reports the favourite state after a toggle.
type FavoriteResult struct {
	ImageID     uint `json:"image_id"`
	IsFavorited bool `json:"is_favorited"`
}

// DownloadInfo points at the authoritative original of an image.
type DownloadInfo struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}
