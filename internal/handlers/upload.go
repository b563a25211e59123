package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vladislav-moscow/Social/internal/errors"
	"github.com/vladislav-moscow/Social/internal/logger"
	"github.com/vladislav-moscow/Social/internal/storage"
	"github.com/vladislav-moscow/Social/internal/util"
)

// Upload stores an image sent as multipart fields "name" and "file".
// POST /upload
func (h *Handlers) Upload(c *gin.Context) {
	if h.uploader == nil {
		util.RespondWithAPIError(c, errors.ServiceUnavailable("upload storage"))
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+1<<20)
	header, err := c.FormFile("file")
	if err != nil {
		util.RespondValidationError(c, "file", "file is required")
		return
	}
	if header.Size > h.maxUpload {
		util.RespondWithAPIError(c, errors.PayloadTooLarge(h.maxUpload))
		return
	}

	name := c.PostForm("name")
	if name == "" {
		name = header.Filename
	}
	if !storage.IsImageName(name) {
		util.RespondValidationError(c, "name", "only jpg, png, gif and webp images are accepted")
		return
	}

	file, err := header.Open()
	if err != nil {
		util.RespondBadRequest(c, "unreadable upload")
		return
	}
	defer file.Close()

	res, err := h.uploader.UploadImage(c.Request.Context(), file, header.Size, name)
	if err != nil {
		util.RespondInternalError(c, "failed to store upload", err)
		return
	}

	logger.Log.Info("Image uploaded", zap.String("name", res.Name), zap.Int64("size", res.Size))
	c.JSON(http.StatusOK, res)
}
