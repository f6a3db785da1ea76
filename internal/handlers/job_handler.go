package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/schoolledger/ledger-api/internal/models"
	"github.com/schoolledger/ledger-api/internal/services"
)

type JobHandler struct {
	jobService *services.JobService
}

func NewJobHandler(jobSvc *services.JobService) *JobHandler {
	return &JobHandler{
		jobService: jobSvc,
	}
}

// Status returns the current worker status
// @Summary Get background job status
// @Description Statistics about background jobs (active, completed, failed, queue length, scheduled)
// @Tags Jobs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} jobs.WorkerStats
// @Router /jobs/status [get]
func (h *JobHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.jobService.GetStatus())
}

// Backup writes a snapshot to the backup archive now
// @Summary Archive a snapshot
// @Tags Jobs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string
// @Router /jobs/backup [post]
func (h *JobHandler) Backup(c *gin.Context) {
	path, err := h.jobService.RunBackup(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path})
}

// Reconcile runs the balance drift sweep now
// @Summary Reconcile every bank account
// @Tags Jobs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /jobs/reconcile [post]
func (h *JobHandler) Reconcile(c *gin.Context) {
	drifted, err := h.jobService.RunReconciliation(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if drifted == nil {
		drifted = []models.ReconciliationReport{}
	}
	c.JSON(http.StatusOK, gin.H{"drifted": drifted})
}
