package model

// All returns every model that must be migrated at startup.
func All() []interface{} {
	return []interface{}{
		&Folder{},
		&FolderPermission{},
		&Image{},
		&ImageFavorite{},
	}
}
