package router

import (
	"github.com/cloudwego/hertz/pkg/app/server"

	"github.com/yi-nology/photo_vault/biz/handler"
	"github.com/yi-nology/photo_vault/biz/handler/version"
	"github.com/yi-nology/photo_vault/biz/middleware"
)

// Handlers groups everything Register wires.
type Handlers struct {
	Images  *handler.ImageHandler
	Folders *handler.FolderHandler
	// Files serves blobs for local storage and the proxy URL mode.
	Files *handler.FileHandler
}

// Register configures the HTTP routes.
func Register(r *server.Hertz, h Handlers) {
	r.GET("/ping", handler.Ping)
	r.GET("/api/v1/version", version.GetVersion)
	r.GET("/uploads/*key", h.Files.GetFile)

	v1 := r.Group("/api/v1", middleware.RequireAuth())

	images := v1.Group("/images")
	images.GET("", h.Images.ListImages)
	images.POST("", h.Images.UploadImage)
	images.POST("/bulk", h.Images.BulkUpload)
	images.GET("/batches/:batchID", h.Images.GetBatch)
	images.PATCH("/:imageID/favorite", h.Images.ToggleFavorite)
	images.DELETE("/:imageID", h.Images.DeleteImage)
	images.GET("/:imageID/download", h.Images.Download)

	folders := v1.Group("/folders")
	folders.GET("", h.Folders.ListFolders)
	folders.POST("", h.Folders.CreateFolder)
	folders.GET("/:folderID", h.Folders.GetFolder)
	folders.PUT("/:folderID", h.Folders.UpdateFolder)
	folders.DELETE("/:folderID", h.Folders.DeleteFolder)
	folders.GET("/:folderID/images", h.Images.ListFolderImages)
	folders.POST("/:folderID/permissions", h.Folders.GrantPermission)
	folders.DELETE("/:folderID/permissions/:userID", h.Folders.RevokePermission)
}
