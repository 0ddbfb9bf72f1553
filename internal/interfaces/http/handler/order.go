package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/omkarjtg/ecomm/internal/application/notice"
	"github.com/omkarjtg/ecomm/internal/application/order"
)

// OrderHandler serves the order history view
type OrderHandler struct {
	BaseHandler
	history *order.HistoryService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(history *order.HistoryService, notices *notice.Center) *OrderHandler {
	return &OrderHandler{BaseHandler: NewBaseHandler(notices), history: history}
}

// History handles GET /orders
func (h *OrderHandler) History(c *gin.Context) {
	orders, err := h.history.History(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if orders == nil {
		orders = []order.Summary{}
	}
	h.Success(c, orders)
}
