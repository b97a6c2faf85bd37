package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/makeanavatar/api/internal/model"
	"github.com/makeanavatar/api/internal/service"
	"github.com/makeanavatar/api/pkg/response"
)

type ScriptHandler struct {
	service   service.ScriptSegmenter
	validator *validator.Validate
}

func NewScriptHandler(svc service.ScriptSegmenter, v *validator.Validate) *ScriptHandler {
	return &ScriptHandler{
		service:   svc,
		validator: v,
	}
}

// Segment handles POST /api/script/segment
// @Summary      Segment script into scenes
// @Description  Split a narration script into ordered scenes of roughly equal spoken length
// @Tags         Script
// @Accept       json
// @Produce      json
// @Param        request body model.ScriptSegmentRequest true "Script segment request"
// @Success      200 {object} model.ScriptSegmentResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/script/segment [post]
func (h *ScriptHandler) Segment(c *fiber.Ctx) error {
	var req model.ScriptSegmentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Segment(c.Context(), &req)
	if err != nil {
		return response.AIError(c, err.Error())
	}

	return response.OK(c, result)
}

// formatValidationErrors converts validator errors to a field → tag map
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
