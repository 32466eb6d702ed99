package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	agrdomain "github.com/craftlink/marketplace-backend/internal/agreements/domain"
	"github.com/craftlink/marketplace-backend/internal/payments/domain"
	"github.com/craftlink/marketplace-backend/internal/payments/service"
	projdomain "github.com/craftlink/marketplace-backend/internal/projects/domain"
)

type Handler struct {
	gate *service.Gate
}

func Register(rg *gin.RouterGroup, gate *service.Gate) {
	h := &Handler{gate: gate}

	rg.POST("/confirm", h.confirm)
}

type confirmReq struct {
	ProjectID string `json:"project_id"`
	Phase     string `json:"phase"`
	Reference string `json:"reference"`
}

// confirm is the gateway callback: it verifies the charge server-side and
// advances the project. Replayed callbacks get the same answer.
func (h *Handler) confirm(c *gin.Context) {
	var req confirmReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	if req.ProjectID == "" || req.Reference == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "project_id and reference required"})
		return
	}

	status, err := h.gate.Confirm(c.Request.Context(), req.ProjectID, domain.Phase(req.Phase), req.Reference)
	if err != nil {
		switch {
		case errors.Is(err, projdomain.ErrProjectNotFound):
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "project not found"})
		case errors.Is(err, domain.ErrReferenceReused):
			c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
		case errors.Is(err, domain.ErrPhaseOrderViolation),
			errors.Is(err, projdomain.ErrInvalidTransition),
			errors.Is(err, agrdomain.ErrNoActiveAgreement):
			c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
		case errors.Is(err, domain.ErrVerificationFailed):
			c.JSON(http.StatusPaymentRequired, gin.H{"ok": false, "error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "status": status})
}
