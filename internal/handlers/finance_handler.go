package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/schoolledger/ledger-api/internal/models"
	"github.com/schoolledger/ledger-api/internal/services"
)

type FinanceHandler struct {
	ledgerSvc *services.LedgerService
	exportSvc *services.ExportService
}

func NewFinanceHandler(ledgerSvc *services.LedgerService, exportSvc *services.ExportService) *FinanceHandler {
	return &FinanceHandler{ledgerSvc: ledgerSvc, exportSvc: exportSvc}
}

// @Summary List ledger entries
// @Description Ledger entries newest first, optionally filtered
// @Tags Finance
// @Produce json
// @Param category query string false "income, expense, salary or banks"
// @Param from query string false "First date (YYYY-MM-DD)"
// @Param to query string false "Last date (YYYY-MM-DD)"
// @Param account_id query int false "Linked bank account"
// @Success 200 {array} models.LedgerEntryResponse
// @Failure 400 {object} map[string]interface{}
// @Security BearerAuth
// @Router /finance [get]
func (h *FinanceHandler) Index(c *gin.Context) {
	query, err := ledgerQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}

	entries, err := h.ledgerSvc.List(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]models.LedgerEntryResponse, len(entries))
	for i := range entries {
		responses[i] = entries[i].ToResponse()
	}
	c.JSON(http.StatusOK, responses)
}

// @Summary Record a ledger entry
// @Description Stores the entry and, when account_id is set, applies its balance effect in the same transaction
// @Tags Finance
// @Accept json
// @Produce json
// @Param request body services.LedgerEntryInput true "Entry"
// @Success 201 {object} models.LedgerEntryResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Security BearerAuth
// @Router /finance [post]
func (h *FinanceHandler) Create(c *gin.Context) {
	var in services.LedgerEntryInput
	if err := BindNestedOrFlat(c, "entry", &in); err != nil {
		respondError(c, err)
		return
	}

	entry, err := h.ledgerSvc.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry.ToResponse())
}

// @Summary Update a ledger entry
// @Description Partial update. The linked account balance is not recomputed.
// @Tags Finance
// @Accept json
// @Produce json
// @Param id path int true "Entry ID"
// @Param request body services.LedgerEntryPatch true "Fields to change"
// @Success 200 {object} models.LedgerEntryResponse
// @Failure 404 {object} map[string]interface{}
// @Security BearerAuth
// @Router /finance/{id} [put]
func (h *FinanceHandler) Update(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	var patch services.LedgerEntryPatch
	if err := BindNestedOrFlat(c, "entry", &patch); err != nil {
		respondError(c, err)
		return
	}

	entry, err := h.ledgerSvc.Update(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry.ToResponse())
}

// @Summary Delete a ledger entry
// @Tags Finance
// @Param id path int true "Entry ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]interface{}
// @Security BearerAuth
// @Router /finance/{id} [delete]
func (h *FinanceHandler) Delete(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.ledgerSvc.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "entry deleted"})
}

// @Summary Delete every ledger entry
// @Description Wipes the ledger and restarts entry ids. Bank balances are untouched.
// @Tags Finance
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /finance/reset-all [delete]
func (h *FinanceHandler) ResetAll(c *gin.Context) {
	if err := h.ledgerSvc.ResetAll(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ledger reset"})
}

// @Summary Download a ledger statement
// @Tags Finance
// @Produce octet-stream
// @Param format query string false "csv (default), xlsx or pdf"
// @Param category query string false "Category filter"
// @Param from query string false "First date (YYYY-MM-DD)"
// @Param to query string false "Last date (YYYY-MM-DD)"
// @Success 200 {file} file
// @Failure 400 {object} map[string]interface{}
// @Security BearerAuth
// @Router /finance/export [get]
func (h *FinanceHandler) Export(c *gin.Context) {
	query, err := ledgerQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}

	statement, err := h.exportSvc.BuildStatement(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	rendered, err := h.exportSvc.Render(statement, c.Query("format"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", rendered.Filename))
	c.Data(http.StatusOK, rendered.ContentType, rendered.Data)
}

func ledgerQuery(c *gin.Context) (services.LedgerQuery, error) {
	accountID, err := parseOptionalID(c, "account_id")
	if err != nil {
		return services.LedgerQuery{}, err
	}
	return services.LedgerQuery{
		Category:  c.Query("category"),
		From:      c.Query("from"),
		To:        c.Query("to"),
		AccountID: accountID,
	}, nil
}
