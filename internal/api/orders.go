package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context(), callerFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, orders, "")
}

func (h *Handler) getOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(c.Request.Context(), id, callerFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, order, "")
}

func (h *Handler) listNotifications(c *gin.Context) {
	notifications, err := h.notifications.ListNotifications(c.Request.Context(), callerFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, notifications, "")
}

func (h *Handler) markNotificationRead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.notifications.MarkNotificationRead(c.Request.Context(), id, callerFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, nil, "notification marked as read")
}
