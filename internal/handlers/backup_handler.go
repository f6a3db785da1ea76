package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/schoolledger/ledger-api/internal/services"
)

// maxSnapshotBytes bounds the size of an uploaded restore document
const maxSnapshotBytes = 256 << 20

type BackupHandler struct {
	backupSvc *services.BackupService
}

func NewBackupHandler(backupSvc *services.BackupService) *BackupHandler {
	return &BackupHandler{backupSvc: backupSvc}
}

// @Summary Export a snapshot
// @Description Streams every known table (or the ones named in tables) as a snapshot document
// @Tags Backup
// @Produce json
// @Param tables query string false "Comma-separated table names"
// @Success 200 {object} models.Snapshot
// @Security BearerAuth
// @Router /backup/export [get]
func (h *BackupHandler) Export(c *gin.Context) {
	snapshot, err := h.backupSvc.Export(c.Request.Context(), splitQuery(c, "tables"))
	if err != nil {
		respondError(c, err)
		return
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		respondError(c, err)
		return
	}

	filename := services.SnapshotFilename(snapshot.Metadata.CreatedAt)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/json", data)
}

// @Summary Restore a snapshot
// @Description Replaces the contents of the snapshot's known tables in one transaction. Unknown tables are ignored.
// @Tags Backup
// @Accept json
// @Produce json
// @Param tables query string false "Restore only these tables"
// @Param request body models.Snapshot true "Snapshot document"
// @Success 200 {object} models.RestoreSummary
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Security BearerAuth
// @Router /backup/restore [post]
func (h *BackupHandler) Restore(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxSnapshotBytes)
	snapshot, err := services.DecodeSnapshot(body)
	if err != nil {
		respondError(c, err)
		return
	}

	summary, err := h.backupSvc.Restore(c.Request.Context(), snapshot, services.RestoreOptions{
		Tables: splitQuery(c, "tables"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
