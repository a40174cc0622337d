package notify

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"shoplens-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the notification service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches notification routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/notifications", h.list)
	rg.GET("/notifications/unread-count", h.unreadCount)
	rg.POST("/notifications/:id/read", h.markRead)
	rg.POST("/notifications/read-all", h.markAllRead)
	rg.DELETE("/notifications/:id", h.remove)
}

func (h *Handler) list(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true"
	limit := 20
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	items, unread, err := h.Svc.List(c.Request.Context(), unreadOnly, limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list notifications", nil)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{
		"notifications": items,
		"unreadCount":   unread,
	})
}

func (h *Handler) unreadCount(c *gin.Context) {
	count, err := h.Svc.UnreadCount(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to count notifications", nil)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"unreadCount": count})
}

func (h *Handler) markRead(c *gin.Context) {
	n, err := h.Svc.MarkRead(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "notification not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to update notification", nil)
		}
		return
	}
	respond.JSON(c, http.StatusOK, n)
}

func (h *Handler) markAllRead(c *gin.Context) {
	updated, err := h.Svc.MarkAllRead(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to update notifications", nil)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"updated": updated})
}

func (h *Handler) remove(c *gin.Context) {
	if err := h.Svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "notification not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to delete notification", nil)
		}
		return
	}
	c.Status(http.StatusNoContent)
}
