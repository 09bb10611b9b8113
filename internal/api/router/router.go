package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/safe-uploader/internal/api/handlers/upload"
)

// Setup registers the upload routes.
func Setup(h *upload.Handler) *ginext.Engine {
	r := ginext.New()

	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())

	api := r.Group("/api")

	api.POST("/upload/:profile", h.Upload) // validating and placing a file with a profile

	return r
}
