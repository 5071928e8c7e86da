package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/liberta/backend/internal/domain/order"
	"github.com/liberta/backend/internal/infrastructure/scheduler"
	"github.com/liberta/backend/internal/interfaces/http/dto"
)

// SyncHandler exposes sync run records and manual job triggers
type SyncHandler struct {
	scheduler *scheduler.SyncScheduler
	runs      order.SyncRunRepository
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(sched *scheduler.SyncScheduler, runs order.SyncRunRepository) *SyncHandler {
	return &SyncHandler{scheduler: sched, runs: runs}
}

// syncRunResponse is the API shape of one sync run record
type syncRunResponse struct {
	ID         string     `json:"id"`
	JobType    string     `json:"job_type"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Result     string     `json:"result"`
	Created    int        `json:"created"`
	Updated    int        `json:"updated"`
	Skipped    int        `json:"skipped"`
	Errors     int        `json:"errors"`
	Error      string     `json:"error,omitempty"`
}

// ListRuns returns recent sync runs, newest first. Supports ?job_type= and
// ?limit= query parameters.
func (h *SyncHandler) ListRuns(c *gin.Context) {
	jobType := c.Query("job_type")
	if jobType != "" && !scheduler.JobType(jobType).IsValid() {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("INVALID_JOB_TYPE", "job_type must be INGEST or RECONCILE"))
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			c.JSON(http.StatusBadRequest, dto.NewErrorResponse("INVALID_LIMIT", "limit must be between 1 and 200"))
			return
		}
		limit = parsed
	}

	runs, err := h.runs.FindRecent(c.Request.Context(), jobType, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("QUERY_FAILED", "Failed to load sync runs"))
		return
	}

	out := make([]syncRunResponse, len(runs))
	for i, run := range runs {
		out[i] = syncRunResponse{
			ID:         run.ID.String(),
			JobType:    run.JobType,
			StartedAt:  run.StartedAt,
			FinishedAt: run.FinishedAt,
			Result:     string(run.Result),
			Created:    run.Created,
			Updated:    run.Updated,
			Skipped:    run.Skipped,
			Errors:     run.Errors,
			Error:      run.Error,
		}
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(out))
}

// TriggerIngest starts a manual ingestion run
func (h *SyncHandler) TriggerIngest(c *gin.Context) {
	h.trigger(c, scheduler.JobTypeIngest)
}

// TriggerReconcile starts a manual reconciliation run
func (h *SyncHandler) TriggerReconcile(c *gin.Context) {
	h.trigger(c, scheduler.JobTypeReconcile)
}

func (h *SyncHandler) trigger(c *gin.Context, jobType scheduler.JobType) {
	err := h.scheduler.TriggerAsync(c.Request.Context(), jobType)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, dto.NewSuccessResponse(gin.H{
			"job_type": string(jobType),
			"status":   "started",
		}))
	case errors.Is(err, scheduler.ErrJobAlreadyRunning):
		c.JSON(http.StatusConflict, dto.NewErrorResponse("ALREADY_RUNNING", "A run of this job type is already in progress"))
	case errors.Is(err, scheduler.ErrSchedulerNotRunning):
		c.JSON(http.StatusServiceUnavailable, dto.NewErrorResponse("SCHEDULER_STOPPED", "The scheduler is not running"))
	default:
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("TRIGGER_FAILED", err.Error()))
	}
}
