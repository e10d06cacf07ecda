// Package batch keeps the progress of bulk uploads so clients can poll it.
package batch

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a batch is unknown or expired.
var ErrNotFound = errors.New("batch not found")

// Status of a batch as a whole.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
)

// FileStatus of a single file within a batch.
type FileStatus string

const (
	FileQueued    FileStatus = "queued"
	FileSucceeded FileStatus = "succeeded"
	FileFailed    FileStatus = "failed"
)

// FileResult records the outcome for one file of a batch.
type FileResult struct {
	Index    int        `json:"index"`
	Filename string     `json:"filename"`
	Status   FileStatus `json:"status"`
	ImageID  uint       `json:"image_id,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// Batch is the pollable progress record of one bulk upload.
type Batch struct {
	ID        string       `json:"batch_id"`
	OwnerID   uint         `json:"owner_id"`
	FolderID  uint         `json:"folder_id"`
	Status    Status       `json:"status"`
	Total     int          `json:"total_files"`
	Processed int          `json:"processed"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Results   []FileResult `json:"results"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// New creates a batch with every file queued.
func New(id string, ownerID, folderID uint, filenames []string) *Batch {
	now := time.Now()
	results := make([]FileResult, len(filenames))
	for i, name := range filenames {
		results[i] = FileResult{Index: i, Filename: name, Status: FileQueued}
	}
	return &Batch{
		ID:        id,
		OwnerID:   ownerID,
		FolderID:  folderID,
		Status:    StatusProcessing,
		Total:     len(filenames),
		Results:   results,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Succeed marks file i as stored under imageID.
func (b *Batch) Succeed(i int, imageID uint) {
	b.Results[i].Status = FileSucceeded
	b.Results[i].ImageID = imageID
	b.Succeeded++
	b.advance()
}

// Fail marks file i as failed with err.
func (b *Batch) Fail(i int, err error) {
	b.Results[i].Status = FileFailed
	b.Results[i].Error = err.Error()
	b.Failed++
	b.advance()
}

// Failures returns the failed entries.
func (b *Batch) Failures() []FileResult {
	var out []FileResult
	for _, r := range b.Results {
		if r.Status == FileFailed {
			out = append(out, r)
		}
	}
	return out
}

func (b *Batch) advance() {
	b.Processed++
	b.UpdatedAt = time.Now()
	if b.Processed >= b.Total {
		b.Status = StatusCompleted
	}
}

// Clone returns a deep copy.
func (b *Batch) Clone() *Batch {
	c := *b
	c.Results = append([]FileResult(nil), b.Results...)
	return &c
}

// Store persists batches for a bounded time.
type Store interface {
	Save(ctx context.Context, b *Batch) error
	Get(ctx context.Context, id string) (*Batch, error)
}
