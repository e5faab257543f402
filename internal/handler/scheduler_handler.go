package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mediconnect/telemed-api/internal/dto"
	"github.com/mediconnect/telemed-api/internal/models"
	"github.com/mediconnect/telemed-api/internal/service"
	"github.com/mediconnect/telemed-api/pkg/response"
)

// SchedulerHandler exposes calendar optimization endpoints.
type SchedulerHandler struct {
	scheduler *service.SchedulerService
	exports   *service.DayPlanExportService
}

// NewSchedulerHandler constructs SchedulerHandler.
func NewSchedulerHandler(scheduler *service.SchedulerService, exports *service.DayPlanExportService) *SchedulerHandler {
	return &SchedulerHandler{scheduler: scheduler, exports: exports}
}

// Optimize godoc
// @Summary Optimize a doctor's daily schedule
// @Description Resolves overlaps, enforces breaks and redistributes overbooked days, then notifies affected patients.
// @Tags Scheduler
// @Produce json
// @Param id path string true "Doctor ID"
// @Param date query string true "Calendar date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /doctors/{id}/schedule/optimize [post]
func (h *SchedulerHandler) Optimize(c *gin.Context) {
	doctorID := c.Param("id")
	date := c.Query("date")

	changes, err := h.scheduler.OptimizeSchedule(c.Request.Context(), doctorID, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, optimizeResponse(doctorID, date, changes), nil)
}

// EnforceBreaks godoc
// @Summary Enforce minimum breaks on a doctor's daily schedule
// @Tags Scheduler
// @Produce json
// @Param id path string true "Doctor ID"
// @Param date query string true "Calendar date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /doctors/{id}/schedule/enforce-breaks [post]
func (h *SchedulerHandler) EnforceBreaks(c *gin.Context) {
	doctorID := c.Param("id")
	date := c.Query("date")

	changes, err := h.scheduler.EnforceBreaks(c.Request.Context(), doctorID, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, optimizeResponse(doctorID, date, changes), nil)
}

// Export godoc
// @Summary Export a doctor's day plan
// @Tags Scheduler
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Doctor ID"
// @Param date query string true "Calendar date (YYYY-MM-DD)"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /doctors/{id}/schedule/export [get]
func (h *SchedulerHandler) Export(c *gin.Context) {
	doctorID := c.Param("id")
	date := c.Query("date")
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))

	result, err := h.exports.Export(c.Request.Context(), doctorID, date, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

func optimizeResponse(doctorID, date string, changes []models.ScheduleChange) dto.OptimizeScheduleResponse {
	if changes == nil {
		changes = []models.ScheduleChange{}
	}
	return dto.OptimizeScheduleResponse{
		DoctorID:     doctorID,
		Date:         date,
		TotalChanges: len(changes),
		Changes:      changes,
	}
}
