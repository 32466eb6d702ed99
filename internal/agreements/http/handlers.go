package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/craftlink/marketplace-backend/internal/agreements/domain"
	"github.com/craftlink/marketplace-backend/internal/agreements/service"
	projdomain "github.com/craftlink/marketplace-backend/internal/projects/domain"
)

type Handler struct {
	svc *service.Negotiator
}

// Register wires the negotiation endpoints. Proposals hang off the project,
// accept/reject off the agreement itself.
func Register(projects, agreements *gin.RouterGroup, svc *service.Negotiator) {
	h := &Handler{svc: svc}

	projects.POST("/:id/agreements", h.propose)
	agreements.POST("/:id/accept", h.accept)
	agreements.POST("/:id/reject", h.reject)
}

type proposeReq struct {
	WorkerID     string `json:"worker_id"`
	Amount       int64  `json:"amount"`
	Deliverables string `json:"deliverables"`
	Timeline     string `json:"timeline"`
}

func (h *Handler) propose(c *gin.Context) {
	var req proposeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	if req.WorkerID == "" || req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "worker_id and positive amount required"})
		return
	}

	a, err := h.svc.Propose(c.Request.Context(), c.Param("id"), req.WorkerID,
		req.Amount, req.Deliverables, req.Timeline)
	if err != nil {
		writeNegotiationError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "agreement": a})
}

type acceptReq struct {
	Role string `json:"role"`
}

func (h *Handler) accept(c *gin.Context) {
	var req acceptReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	role := projdomain.Role(req.Role)
	if role != projdomain.RoleClient && role != projdomain.RoleFreelancer {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "role must be client or freelancer"})
		return
	}

	a, err := h.svc.Accept(c.Request.Context(), c.Param("id"), role)
	if err != nil {
		writeNegotiationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "agreement": a})
}

type rejectReq struct {
	Reason string `json:"reason"`
}

func (h *Handler) reject(c *gin.Context) {
	var req rejectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	if err := h.svc.RejectByID(c.Request.Context(), c.Param("id"), req.Reason); err != nil {
		writeNegotiationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func writeNegotiationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrAgreementNotFound),
		errors.Is(err, projdomain.ErrProjectNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, domain.ErrNotAssignedWorker),
		errors.Is(err, domain.ErrInvalidRole):
		c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, domain.ErrAgreementLocked),
		errors.Is(err, domain.ErrNoActiveAgreement),
		errors.Is(err, projdomain.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
	}
}
