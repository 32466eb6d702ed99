package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/craftlink/marketplace-backend/internal/audit"
	"github.com/craftlink/marketplace-backend/internal/matcher"
	"github.com/craftlink/marketplace-backend/internal/projects/domain"
	"github.com/craftlink/marketplace-backend/internal/projects/service"
)

// AuditReader exposes a project's recorded history.
type AuditReader interface {
	ListByProject(ctx context.Context, projectID string) ([]audit.Entry, error)
}

type Handler struct {
	svc      *service.Service
	auditLog AuditReader
}

func Register(rg *gin.RouterGroup, svc *service.Service, auditLog AuditReader) {
	h := &Handler{svc: svc, auditLog: auditLog}

	rg.POST("", h.create)
	rg.GET("", h.list)
	rg.GET("/:id", h.get)
	rg.GET("/:id/audit", h.auditTrail)
	rg.POST("/:id/match", h.match)
	rg.POST("/:id/deliver", h.deliver)
	rg.POST("/:id/approve", h.approve)
}

type createReq struct {
	ClientID    string `json:"client_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ProjectType string `json:"project_type"`
	Budget      string `json:"budget"`
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	if strings.TrimSpace(req.ClientID) == "" || strings.TrimSpace(req.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "client_id and title required"})
		return
	}

	p, err := h.svc.Create(c.Request.Context(), &domain.CreateProjectRequest{
		ClientID:    req.ClientID,
		Title:       req.Title,
		Description: req.Description,
		ProjectType: req.ProjectType,
		Budget:      req.Budget,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ok": true, "project": p})
}

func (h *Handler) list(c *gin.Context) {
	status := domain.Status(c.Query("status"))
	items, err := h.svc.ListByStatus(c.Request.Context(), status)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidStatus) {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "projects": items})
}

func (h *Handler) get(c *gin.Context) {
	p, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

func (h *Handler) auditTrail(c *gin.Context) {
	if _, err := h.svc.Get(c.Request.Context(), c.Param("id")); err != nil {
		writeLifecycleError(c, err)
		return
	}

	entries, err := h.auditLog.ListByProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "entries": entries})
}

// match re-runs worker selection for a queued or stranded project.
func (h *Handler) match(c *gin.Context) {
	sel, err := h.svc.Requeue(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrProjectNotFound):
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "project not found"})
		case errors.Is(err, domain.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
		case errors.Is(err, matcher.ErrNoEligibleWorker):
			c.JSON(http.StatusOK, gin.H{"ok": true, "assigned": false, "reason": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "assigned": true, "selection": sel})
}

type deliverReq struct {
	WorkerID string `json:"worker_id"`
}

func (h *Handler) deliver(c *gin.Context) {
	var req deliverReq
	if err := c.ShouldBindJSON(&req); err != nil || req.WorkerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "worker_id required"})
		return
	}

	p, err := h.svc.Deliver(c.Request.Context(), c.Param("id"), req.WorkerID)
	if err != nil {
		writeLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

type approveReq struct {
	ClientID string `json:"client_id"`
}

func (h *Handler) approve(c *gin.Context) {
	var req approveReq
	if err := c.ShouldBindJSON(&req); err != nil || req.ClientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "client_id required"})
		return
	}

	p, err := h.svc.Approve(c.Request.Context(), c.Param("id"), req.ClientID)
	if err != nil {
		writeLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

func writeLifecycleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrProjectNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "project not found"})
	case errors.Is(err, domain.ErrNotProjectWorker), errors.Is(err, domain.ErrNotProjectClient):
		c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
	}
}
