package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seio-edu/quiz-service/internal/services"
	"github.com/seio-edu/quiz-service/internal/utils"
	"github.com/seio-edu/quiz-service/internal/validator"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ReportHandler struct {
	BaseHandler
	reportService services.ReportService
	validator     *validator.Validator
}

func NewReportHandler(reportService services.ReportService, v *validator.Validator, logger utils.Logger) *ReportHandler {
	return &ReportHandler{
		BaseHandler:   NewBaseHandler(logger),
		reportService: reportService,
		validator:     v,
	}
}

// ExportPhaseAverages downloads the phase averages as a spreadsheet
// @Summary Export phase averages
// @Tags reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param phase query int true "Phase 1-4"
// @Param year query int false "Academic year"
// @Success 200 {file} file
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /quiz/reports/phase-averages [get]
func (h *ReportHandler) ExportPhaseAverages(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var query validator.PhaseReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid query parameters",
			Code:    "VALIDATION_FAILED",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.Validate(&query); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Code:    "VALIDATION_FAILED",
			Details: err,
		})
		return
	}

	h.LogRequest(c, "Exporting phase averages", "phase", query.Phase, "year", query.Year)

	data, err := h.reportService.ExportPhaseAverages(c.Request.Context(), user, query.Phase, query.Year)
	if err != nil {
		var permissionError *services.PermissionError
		switch {
		case errors.As(err, &permissionError):
			c.JSON(http.StatusForbidden, ErrorResponse{Message: "Access denied", Code: services.ErrorCode(err)})
		case errors.Is(err, services.ErrInvalidPhase):
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error(), Code: services.ErrorCode(err)})
		default:
			h.LogError(c, err, "Failed to export phase averages")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal server error", Code: services.ErrorCode(err)})
		}
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=phase-%d-averages.xlsx", query.Phase))
	c.Data(http.StatusOK, xlsxContentType, data)
}
