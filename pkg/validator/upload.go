package validator

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/yi-nology/photo_vault/pkg/config"
)

var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
)

// UploadConfig defines constraints for image uploads.
type UploadConfig struct {
	MaxFileSize      int64
	AllowedMimeTypes map[string]bool
}

// NewUploadConfig builds the constraints from the upload section of the config.
func NewUploadConfig(cfg config.UploadConfig) *UploadConfig {
	allowed := make(map[string]bool, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		allowed[normalize(t)] = true
	}
	return &UploadConfig{
		MaxFileSize:      cfg.MaxSize,
		AllowedMimeTypes: allowed,
	}
}

// ValidateFileSize checks if the file size is within the allowed limit.
func (c *UploadConfig) ValidateFileSize(size int64) error {
	if size <= 0 {
		return ErrEmptyFile
	}
	if size > c.MaxFileSize {
		return ErrFileTooLarge
	}
	return nil
}

// ValidateMimeType checks if the MIME type is in the allowed whitelist.
func (c *UploadConfig) ValidateMimeType(mimeType string) error {
	normalized := normalize(mimeType)
	if normalized == "" || !c.AllowedMimeTypes[normalized] {
		return ErrUnsupportedType
	}
	return nil
}

// tiffSignatures are the little- and big-endian TIFF headers, which
// http.DetectContentType does not recognise.
var tiffSignatures = [][]byte{[]byte("II*\x00"), []byte("MM\x00*")}

// DetectMimeType sniffs the content type of data.
func DetectMimeType(data []byte) string {
	for _, sig := range tiffSignatures {
		if bytes.HasPrefix(data, sig) {
			return "image/tiff"
		}
	}
	return normalize(http.DetectContentType(data))
}

// DetectAndValidateMimeType sniffs the MIME type from file content and
// validates it. The declared type is not trusted.
func (c *UploadConfig) DetectAndValidateMimeType(data []byte) (string, error) {
	detected := DetectMimeType(data)
	if err := c.ValidateMimeType(detected); err != nil {
		return detected, err
	}
	return detected, nil
}

// Validate performs full validation on a single upload.
func (c *UploadConfig) Validate(data []byte) error {
	if err := c.ValidateFileSize(int64(len(data))); err != nil {
		return err
	}
	_, err := c.DetectAndValidateMimeType(data)
	return err
}

// Handle MIME types with parameters (e.g., "text/plain; charset=utf-8")
func normalize(mimeType string) string {
	normalized := strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(normalized, ";"); idx > 0 {
		normalized = strings.TrimSpace(normalized[:idx])
	}
	return normalized
}
