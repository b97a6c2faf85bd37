package handler

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/makeanavatar/api/internal/service"
	"github.com/makeanavatar/api/pkg/response"
)

type MergeHandler struct {
	service   *service.MergeService
	validator *validator.Validate
}

func NewMergeHandler(svc *service.MergeService, v *validator.Validate) *MergeHandler {
	return &MergeHandler{
		service:   svc,
		validator: v,
	}
}

// Start handles POST /api/merge/start/:renderJobId
// @Summary      Start merge job
// @Description  Concatenate every completed clip of a render session into one video
// @Tags         Merge
// @Produce      json
// @Param        renderJobId path string true "Render job ID"
// @Success      202 {object} model.MergeStartResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/merge/start/{renderJobId} [post]
func (h *MergeHandler) Start(c *fiber.Ctx) error {
	renderJobID := c.Params("renderJobId")
	if renderJobID == "" {
		return response.ValidationError(c, "Render job ID is required", nil)
	}

	result, err := h.service.StartMerge(c.Context(), renderJobID)
	if err != nil {
		if err.Error() == "job not found" {
			return response.NotFound(c, "Render job not found")
		}
		if strings.Contains(err.Error(), "must be completed") {
			return response.ValidationError(c, err.Error(), nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/merge/status/:jobId
// @Summary      Get merge job status
// @Tags         Merge
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.MergeStatusResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/merge/status/{jobId} [get]
func (h *MergeHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetStatus(c.Context(), jobID)
	if err != nil {
		if err.Error() == "job not found" {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Result handles GET /api/merge/result/:jobId
// @Summary      Get merge job result
// @Tags         Merge
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.MergeResultResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/merge/result/{jobId} [get]
func (h *MergeHandler) Result(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetResult(c.Context(), jobID)
	if err != nil {
		if err.Error() == "job not found" {
			return response.NotFound(c, "Job not found")
		}
		if err.Error() == "job not completed" {
			return response.ValidationError(c, "Job not completed yet", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}
