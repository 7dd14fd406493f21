package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tally/internal/services"
)

// OperatorHandler exposes maintenance operations behind the operator key.
type OperatorHandler struct {
	reconcileService   services.ReconcileServicer
	defaultConcurrency int
}

// NewOperatorHandler creates a new OperatorHandler.
func NewOperatorHandler(reconcileService services.ReconcileServicer, defaultConcurrency int) *OperatorHandler {
	return &OperatorHandler{reconcileService: reconcileService, defaultConcurrency: defaultConcurrency}
}

// ReconcileRequest tunes a reconciliation sweep.
type ReconcileRequest struct {
	Fix         bool `json:"fix"`
	Concurrency int  `json:"concurrency" binding:"omitempty,min=1,max=64"`
}

// Reconcile runs a sweep over all stored accounts and budgets. The response is
// 200 when nothing is left broken and 409 otherwise.
func (h *OperatorHandler) Reconcile(c *gin.Context) {
	var req ReconcileRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, bindError(err))
			return
		}
	}
	if req.Concurrency == 0 {
		req.Concurrency = h.defaultConcurrency
	}

	report, err := h.reconcileService.Reconcile(c.Request.Context(), services.ReconcileOptions{
		Fix:         req.Fix,
		Concurrency: req.Concurrency,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	status := http.StatusOK
	if !report.Clean() {
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"report": report, "clean": report.Clean()})
}
