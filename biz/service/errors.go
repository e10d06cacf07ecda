package service

import "errors"

var (
	ErrFolderNotFound     = errors.New("folder not found")
	ErrImageNotFound      = errors.New("image not found")
	ErrBatchNotFound      = errors.New("batch not found")
	ErrPermissionNotFound = errors.New("permission not found")
	ErrAccessDenied       = errors.New("access denied")
	ErrFolderNameExists   = errors.New("a folder with this name already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNoFiles            = errors.New("no files uploaded")
	ErrTooManyFiles       = errors.New("too many files")
	ErrShuttingDown       = errors.New("service is shutting down")

	// ErrStorageWrite wraps failures writing a blob to the storage backend.
	ErrStorageWrite = errors.New("storage write failed")
	// ErrStorageRead wraps failures reading a blob from the storage backend.
	ErrStorageRead = errors.New("storage read failed")
	// ErrRecordPersistence wraps database failures after blobs were written.
	ErrRecordPersistence = errors.New("record persistence failed")
)
