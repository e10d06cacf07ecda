package api

import "time"

// Folder is the API view of a folder for the calling user.
type Folder struct {
	ID          uint         `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	OwnerID     uint         `json:"owner_id"`
	IsPublic    bool         `json:"is_public"`
	ImageCount  int64        `json:"image_count"`
	Access      string       `json:"access"`
	CanWrite    bool         `json:"can_write"`
	CanDelete   bool         `json:"can_delete"`
	Permissions []Permission `json:"permissions,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Permission is one explicit grant on a folder.
type Permission struct {
	UserID uint   `json:"user_id"`
	Access string `json:"access"`
}

// FolderRequest creates or updates a folder. Nil fields are left unchanged
// on update.
type FolderRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsPublic    *bool   `json:"is_public"`
}

// PermissionRequest grants access on a folder.
type PermissionRequest struct {
	UserID uint   `json:"user_id"`
	Access string `json:"access"`
}
