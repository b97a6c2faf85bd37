package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/makeanavatar/api/internal/service"
	"github.com/makeanavatar/api/pkg/response"
)

const maxUploadSize = 20 * 1024 * 1024 // 20MB

type UploadHandler struct {
	service   *service.UploadService
	validator *validator.Validate
}

func NewUploadHandler(svc *service.UploadService, v *validator.Validate) *UploadHandler {
	return &UploadHandler{
		service:   svc,
		validator: v,
	}
}

// Reference handles POST /api/upload/reference
// @Summary      Upload reference image
// @Description  Upload an avatar identity reference image for a project
// @Tags         Upload
// @Accept       multipart/form-data
// @Produce      json
// @Param        projectId formData string true "Project ID"
// @Param        file formData file true "Image file (png, jpeg, webp)"
// @Success      201 {object} model.UploadReferenceResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/upload/reference [post]
func (h *UploadHandler) Reference(c *fiber.Ctx) error {
	projectID := c.FormValue("projectId")
	if projectID == "" {
		return response.ValidationError(c, "projectId is required", nil)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File size exceeds 20MB limit", map[string]interface{}{
			"maxSize":  maxUploadSize,
			"fileSize": file.Size,
		})
	}

	contentType := file.Header.Get("Content-Type")
	validTypes := map[string]bool{
		"image/png":  true,
		"image/jpeg": true,
		"image/jpg":  true,
		"image/webp": true,
	}

	if !validTypes[contentType] {
		return response.ValidationError(c, "Invalid file type. Supported: PNG, JPEG, WebP", map[string]interface{}{
			"contentType": contentType,
		})
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	result, err := h.service.UploadReference(c.Context(), projectID, contentType, f, file.Size)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, result)
}

// DeleteReference handles DELETE /api/upload/reference/:projectId/:referenceId
// @Summary      Delete reference image
// @Tags         Upload
// @Param        projectId path string true "Project ID"
// @Param        referenceId path string true "Reference ID"
// @Success      204
// @Failure      401 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/upload/reference/{projectId}/{referenceId} [delete]
func (h *UploadHandler) DeleteReference(c *fiber.Ctx) error {
	projectID := c.Params("projectId")
	referenceID := c.Params("referenceId")
	if projectID == "" || referenceID == "" {
		return response.ValidationError(c, "Project ID and reference ID are required", nil)
	}

	if err := h.service.DeleteReference(c.Context(), projectID, referenceID); err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.NoContent(c)
}
