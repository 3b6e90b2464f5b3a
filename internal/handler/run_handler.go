// internal/handler/run_handler.go
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"uart-assist/internal/model"
	"uart-assist/internal/observe"
	"uart-assist/internal/repository"
	"uart-assist/internal/utils"
)

// RunHandler exposes the current run and the run history
type RunHandler struct {
	tracker *observe.Tracker
	runs    repository.RunRepository
	logger  *utils.ServiceLogger
}

// NewRunHandler creates a new run handler
func NewRunHandler(tracker *observe.Tracker, runs repository.RunRepository, logger *zap.Logger) *RunHandler {
	return &RunHandler{
		tracker: tracker,
		runs:    runs,
		logger:  utils.NewServiceLogger(logger, "run-handler"),
	}
}

// CurrentRun returns the live snapshot of the run in progress, or of the
// last finished one
// @Summary Current run
// @Description Live snapshot of the run in progress, or of the last finished one
// @Tags Runs
// @Produce json
// @Success 200 {object} utils.APIResponse "Current run retrieved"
// @Failure 404 {object} utils.APIResponse "No run started"
// @Router /api/v1/run [get]
func (h *RunHandler) CurrentRun(c *gin.Context) {
	snap := h.tracker.Snapshot()
	if snap.Record == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "No run started", nil)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Current run retrieved", gin.H{
		"run":        snap.Record,
		"stats":      snap.Stats,
		"throughput": snap.Stats.Throughput().String(),
		"last_line":  snap.LastLine,
		"events":     snap.Events,
	})
}

// ListRuns returns recorded runs, newest first
// @Summary List runs
// @Description Recorded runs, newest first, with filtering and pagination
// @Tags Runs
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param mode query string false "Filter by mode" Enums(loopback, send, recv, file)
// @Param status query string false "Filter by status" Enums(RUNNING, PASSED, FAILED, CANCELLED)
// @Param device query string false "Filter by device path"
// @Success 200 {object} utils.APIResponse "Runs retrieved"
// @Failure 400 {object} utils.APIResponse "Invalid filter"
// @Failure 500 {object} utils.APIResponse "Internal server error"
// @Router /api/v1/runs [get]
func (h *RunHandler) ListRuns(c *gin.Context) {
	filter := &repository.RunFilter{
		Page:    queryInt(c, "page", 1),
		PerPage: queryInt(c, "per_page", 20),
	}

	if raw := c.Query("mode"); raw != "" {
		m, err := model.ParseTestMode(raw)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid mode filter", err)
			return
		}
		filter.Mode = &m
	}
	if raw := c.Query("status"); raw != "" {
		status := model.RunStatus(raw)
		switch status {
		case model.RunStatusRunning, model.RunStatusPassed, model.RunStatusFailed, model.RunStatusCancelled:
		default:
			utils.ValidationErrorResponse(c, map[string]string{"status": "must be RUNNING, PASSED, FAILED or CANCELLED"})
			return
		}
		filter.Status = &status
	}
	if device := c.Query("device"); device != "" {
		filter.Device = &device
	}

	runs, total, err := h.runs.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list runs", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Runs retrieved", gin.H{
		"runs":     runs,
		"total":    total,
		"page":     filter.Page,
		"per_page": filter.PerPage,
	})
}

// GetRun returns one recorded run
// @Summary Get run
// @Description One recorded run by ID
// @Tags Runs
// @Produce json
// @Param run_id path string true "Run ID"
// @Success 200 {object} utils.APIResponse{data=model.RunRecord} "Run retrieved"
// @Failure 400 {object} utils.APIResponse "Invalid run ID"
// @Failure 404 {object} utils.APIResponse "Run not found"
// @Router /api/v1/runs/{run_id} [get]
func (h *RunHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("run_id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid run ID", err)
		return
	}

	run, err := h.runs.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "Run not found", err)
			return
		}
		h.logger.Error("Failed to get run", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get run", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Run retrieved", run)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	value, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	return value
}
