package model

import (
	"time"
)

// Access is a folder permission level. Levels are ordered read < write < admin.
type Access string

const (
	AccessRead  Access = "read"
	AccessWrite Access = "write"
	AccessAdmin Access = "admin"
)

// Level returns the rank of the access level, 0 for unknown values.
func (a Access) Level() int {
	switch a {
	case AccessRead:
		return 1
	case AccessWrite:
		return 2
	case AccessAdmin:
		return 3
	default:
		return 0
	}
}

// Valid reports whether a is a known access level.
func (a Access) Valid() bool {
	return a.Level() > 0
}

// Folder groups images and carries their permissions.
type Folder struct {
	ID          uint               `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	Name        string             `gorm:"column:name;type:varchar(255);uniqueIndex:idx_folder_owner_name" json:"name"`
	Description string             `gorm:"column:description;type:varchar(1024)" json:"description,omitempty"`
	OwnerID     uint               `gorm:"column:owner_id;uniqueIndex:idx_folder_owner_name" json:"owner_id"`
	IsPublic    bool               `gorm:"column:is_public" json:"is_public"`
	Permissions []FolderPermission `gorm:"foreignKey:FolderID;constraint:OnDelete:CASCADE" json:"permissions,omitempty"`
}

// TableName overrides gorm to use folder table.
func (Folder) TableName() string {
	return "folder"
}

// FolderPermission grants one user an access level on a folder.
type FolderPermission struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	FolderID  uint      `gorm:"column:folder_id;uniqueIndex:idx_folder_user" json:"folder_id"`
	UserID    uint      `gorm:"column:user_id;uniqueIndex:idx_folder_user;index:idx_permission_user" json:"user_id"`
	Access    Access    `gorm:"column:access;type:varchar(16)" json:"access"`
}

// TableName overrides gorm to use folder_permission table.
func (FolderPermission) TableName() string {
	return "folder_permission"
}

// AccessFor returns the explicit permission of userID, if any.
func (f *Folder) AccessFor(userID uint) (Access, bool) {
	for _, p := range f.Permissions {
		if p.UserID == userID {
			return p.Access, true
		}
	}
	return "", false
}
