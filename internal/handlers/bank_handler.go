package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/schoolledger/ledger-api/internal/middleware"
	"github.com/schoolledger/ledger-api/internal/models"
	"github.com/schoolledger/ledger-api/internal/services"
	"github.com/schoolledger/ledger-api/pkg/logger"
)

// IdempotencyKeyHeader lets clients retry a bank transaction safely
const IdempotencyKeyHeader = "Idempotency-Key"

const transactionScope = "banks-transaction"

type BankHandler struct {
	bankSvc *services.BankService
	idem    *services.IdempotencyStore
}

func NewBankHandler(bankSvc *services.BankService, idem *services.IdempotencyStore) *BankHandler {
	return &BankHandler{bankSvc: bankSvc, idem: idem}
}

// @Summary List bank accounts
// @Tags Banks
// @Produce json
// @Success 200 {array} models.BankAccount
// @Security BearerAuth
// @Router /banks [get]
func (h *BankHandler) Index(c *gin.Context) {
	accounts, err := h.bankSvc.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

// @Summary Get a bank account
// @Tags Banks
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {object} models.BankAccount
// @Failure 404 {object} map[string]interface{}
// @Security BearerAuth
// @Router /banks/{id} [get]
func (h *BankHandler) Show(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	account, err := h.bankSvc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// @Summary Create a bank account
// @Tags Banks
// @Accept json
// @Produce json
// @Param request body services.BankAccountInput true "Account"
// @Success 201 {object} models.BankAccount
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Security BearerAuth
// @Router /banks [post]
func (h *BankHandler) Create(c *gin.Context) {
	var in services.BankAccountInput
	if err := BindNestedOrFlat(c, "account", &in); err != nil {
		respondError(c, err)
		return
	}
	account, err := h.bankSvc.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

// @Summary Update a bank account
// @Description Replaces the account fields. A supplied balance overrides the cached balance without a ledger entry.
// @Tags Banks
// @Accept json
// @Produce json
// @Param id path int true "Account ID"
// @Param request body services.BankAccountInput true "Account"
// @Success 200 {object} models.BankAccount
// @Failure 404 {object} map[string]interface{}
// @Security BearerAuth
// @Router /banks/{id} [put]
func (h *BankHandler) Update(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var in services.BankAccountInput
	if err := BindNestedOrFlat(c, "account", &in); err != nil {
		respondError(c, err)
		return
	}
	account, err := h.bankSvc.Update(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// @Summary Delete a bank account
// @Description Historical ledger entries keep their account id.
// @Tags Banks
// @Param id path int true "Account ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]interface{}
// @Security BearerAuth
// @Router /banks/{id} [delete]
func (h *BankHandler) Delete(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.bankSvc.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "bank account deleted"})
}

// @Summary Activate a bank account
// @Tags Banks
// @Param id path int true "Account ID"
// @Success 200 {object} models.BankAccount
// @Failure 409 {object} map[string]interface{}
// @Security BearerAuth
// @Router /banks/{id}/activate [post]
func (h *BankHandler) Activate(c *gin.Context) {
	h.changeStatus(c, h.bankSvc.Activate)
}

// @Summary Deactivate a bank account
// @Tags Banks
// @Param id path int true "Account ID"
// @Success 200 {object} models.BankAccount
// @Failure 409 {object} map[string]interface{}
// @Security BearerAuth
// @Router /banks/{id}/deactivate [post]
func (h *BankHandler) Deactivate(c *gin.Context) {
	h.changeStatus(c, h.bankSvc.Deactivate)
}

func (h *BankHandler) changeStatus(c *gin.Context, change func(context.Context, uint) (*models.BankAccount, error)) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	account, err := change(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// @Summary Reconcile a bank account
// @Description Compares the cached balance with the net of the ledger entries that reference the account. Read-only.
// @Tags Banks
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {object} models.ReconciliationReport
// @Failure 404 {object} map[string]interface{}
// @Security BearerAuth
// @Router /banks/{id}/reconciliation [get]
func (h *BankHandler) Reconciliation(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	report, err := h.bankSvc.Reconcile(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// @Summary Deposit, withdraw or transfer
// @Description Moves money and records the matching ledger entry in one transaction. Send an Idempotency-Key header to make retries safe.
// @Tags Banks
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Client-chosen retry key"
// @Param request body services.BankOperationInput true "Operation"
// @Success 200 {object} services.BankOperationResult
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Security BearerAuth
// @Router /banks/transaction [post]
func (h *BankHandler) Transaction(c *gin.Context) {
	ctx := c.Request.Context()
	key := c.GetHeader(IdempotencyKeyHeader)
	scope := transactionKeyScope(c)

	var in services.BankOperationInput
	if err := BindNestedOrFlat(c, "transaction", &in); err != nil {
		respondError(c, err)
		return
	}
	fingerprint, err := services.RequestFingerprint(in)
	if err != nil {
		respondError(c, err)
		return
	}

	stored, err := h.idem.Begin(ctx, scope, key, fingerprint)
	if err != nil {
		respondError(c, err)
		return
	}
	if stored != nil {
		c.Header("Idempotent-Replayed", "true")
		c.Data(stored.Status, "application/json; charset=utf-8", stored.Body)
		return
	}

	result, err := h.bankSvc.Execute(ctx, in)
	if err != nil {
		h.release(c, scope, key)
		respondError(c, err)
		return
	}

	body, err := json.Marshal(result)
	if err != nil {
		h.release(c, scope, key)
		respondError(c, err)
		return
	}
	resp := services.StoredResponse{Fingerprint: fingerprint, Status: http.StatusOK, Body: body}
	if err := h.idem.Complete(ctx, scope, key, resp); err != nil {
		logger.Warn("[BankHandler] failed to record idempotent response", "error", err)
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// transactionKeyScope keeps idempotency keys private to the calling user
func transactionKeyScope(c *gin.Context) string {
	return fmt.Sprintf("%s:user-%d", transactionScope, middleware.GetUserID(c))
}

func (h *BankHandler) release(c *gin.Context, scope, key string) {
	if err := h.idem.Release(c.Request.Context(), scope, key); err != nil {
		logger.Warn("[BankHandler] failed to release idempotency key", "error", err)
	}
}
