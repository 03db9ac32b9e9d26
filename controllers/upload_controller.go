package controllers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"shop-service/config"
	"shop-service/middlewares"
)

var allowedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

type UploadController struct {
	cfg    *config.Config
	logger *zap.Logger
}

func NewUploadController(cfg *config.Config, logger *zap.Logger) *UploadController {
	return &UploadController{
		cfg:    cfg,
		logger: logger,
	}
}

// UploadImage stores a product image under the configured upload directory
// with a generated name, so a client-chosen filename never hits the disk.
func (ctl *UploadController) UploadImage(c *gin.Context) {
	defer func() {
		ok := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOperation("upload", ok)
	}()

	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image file provided"})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedImageExtensions[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Images only (jpg, jpeg, png, webp)"})
		return
	}

	name := uuid.New().String() + ext
	if err := c.SaveUploadedFile(file, filepath.Join(ctl.cfg.UploadDir, name)); err != nil {
		ctl.logger.Error("failed to save uploaded image", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save image"})
		return
	}

	// Served back through the /uploads static route.
	c.JSON(http.StatusCreated, gin.H{
		"message": "Image uploaded",
		"image":   "/uploads/" + name,
	})
}
