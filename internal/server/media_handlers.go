package server

import (
	"io"

	"plantspack/internal/models"
	"plantspack/internal/storage"

	"github.com/gofiber/fiber/v2"
)

// UploadMedia handles POST /api/media/:bucket
// @Summary Upload a file
// @Description post-images: jpeg/png/webp/gif up to 5 MB, stored as WebP except GIF. media: images up to 10 MB, mp4/webm/quicktime up to 50 MB.
// @Tags media
// @Accept multipart/form-data
// @Produce json
// @Param bucket path string true "post-images or media"
// @Param file formData file true "File"
// @Success 201 {object} storage.UploadResult
// @Failure 400 {object} models.ErrorResponse
// @Router /media/{bucket} [post]
func (s *Server) UploadMedia(c *fiber.Ctx) error {
	bucket := c.Params("bucket")
	policy, ok := s.storage.Policy(bucket)
	if !ok {
		return mapServiceError(c, models.NewValidationError("Unknown bucket"))
	}

	file, err := c.FormFile("file")
	if err != nil {
		return mapServiceError(c, models.NewValidationError("No file uploaded"))
	}
	if file.Size > policy.MaxBytes() {
		return mapServiceError(c, models.NewValidationError("File is too large for this bucket"))
	}

	src, err := file.Open()
	if err != nil {
		return mapServiceError(c, models.NewValidationError("Unable to read uploaded file"))
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(io.LimitReader(src, policy.MaxBytes()+1))
	if err != nil {
		return mapServiceError(c, models.NewValidationError("Unable to read uploaded file"))
	}

	result, err := s.storage.Upload(c.UserContext(), storage.UploadInput{
		UserID:   currentUserID(c),
		Bucket:   bucket,
		Filename: file.Filename,
		Content:  content,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// DeleteMedia handles DELETE /api/media/:bucket/*
// @Summary Delete an uploaded file
// @Description The path is the object key without the bucket, i.e. <user>/<file>
// @Tags media
// @Param bucket path string true "Bucket"
// @Param key path string true "Object key"
// @Success 200 {object} object{message=string}
// @Failure 403 {object} models.ErrorResponse
// @Router /media/{bucket}/{key} [delete]
func (s *Server) DeleteMedia(c *fiber.Ctx) error {
	if err := s.storage.Delete(c.UserContext(), currentUserID(c), c.Params("bucket"), c.Params("*")); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "File deleted"})
}
