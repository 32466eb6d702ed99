package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/craftlink/marketplace-backend/internal/payouts/domain"
	"github.com/craftlink/marketplace-backend/internal/payouts/service"
	projdomain "github.com/craftlink/marketplace-backend/internal/projects/domain"
)

type Handler struct {
	engine *service.Engine
	store  service.PayoutStore
}

func Register(rg *gin.RouterGroup, engine *service.Engine, store service.PayoutStore) {
	h := &Handler{engine: engine, store: store}

	rg.GET("/:project_id", h.get)
	rg.POST("/:project_id/retry", h.retry)
}

func (h *Handler) get(c *gin.Context) {
	p, err := h.store.GetByProject(c.Request.Context(), c.Param("project_id"))
	if err != nil {
		if errors.Is(err, domain.ErrPayoutNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "payout not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "payout": p})
}

// retry re-runs a failed or deferred disbursement on demand, without waiting
// for the sweeper.
func (h *Handler) retry(c *gin.Context) {
	projectID := c.Param("project_id")
	if err := h.engine.Payout(c.Request.Context(), projectID); err != nil {
		switch {
		case errors.Is(err, projdomain.ErrProjectNotFound):
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "project not found"})
		case errors.Is(err, projdomain.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
		case errors.Is(err, domain.ErrDestinationMissing):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"ok": false, "error": err.Error()})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error()})
		}
		return
	}

	p, err := h.store.GetByProject(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "payout": p})
}
