package handler

import (
	"github.com/gin-gonic/gin"
	appcheckout "github.com/omkarjtg/ecomm/internal/application/checkout"
	"github.com/omkarjtg/ecomm/internal/application/notice"
	"github.com/omkarjtg/ecomm/internal/domain/checkout"
)

// CheckoutHandler drives the checkout flow
type CheckoutHandler struct {
	BaseHandler
	flow *appcheckout.Flow
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(flow *appcheckout.Flow, notices *notice.Center) *CheckoutHandler {
	return &CheckoutHandler{BaseHandler: NewBaseHandler(notices), flow: flow}
}

// Current handles GET /cart/checkout
func (h *CheckoutHandler) Current(c *gin.Context) {
	h.Success(c, h.flow.Current())
}

// Begin handles POST /cart/checkout
func (h *CheckoutHandler) Begin(c *gin.Context) {
	view, err := h.flow.Begin(c.Request.Context())
	h.answer(c, view, err)
}

// Payment handles POST /cart/checkout/payment with the widget outcome
func (h *CheckoutHandler) Payment(c *gin.Context) {
	var outcome checkout.WidgetOutcome
	if err := c.ShouldBindJSON(&outcome); err != nil {
		h.HandleBindError(c, err)
		return
	}
	view, err := h.flow.CompletePayment(c.Request.Context(), outcome)
	h.answer(c, view, err)
}

// Sandbox handles POST /cart/checkout/sandbox
func (h *CheckoutHandler) Sandbox(c *gin.Context) {
	view, err := h.flow.PaySandbox(c.Request.Context())
	h.answer(c, view, err)
}

// Dismiss handles POST /cart/checkout/dismiss
func (h *CheckoutHandler) Dismiss(c *gin.Context) {
	view, err := h.flow.Dismiss(c.Request.Context())
	h.answer(c, view, err)
}

// Resume handles POST /cart/checkout/resume
func (h *CheckoutHandler) Resume(c *gin.Context) {
	view, err := h.flow.Resume(c.Request.Context())
	h.answer(c, view, err)
}

// answer renders the view; a failed operation sends the error with the view
// as data so the page can show the failed step and the resume action
func (h *CheckoutHandler) answer(c *gin.Context, view appcheckout.View, err error) {
	if err != nil {
		h.ErrorWithData(c, err, view)
		return
	}
	h.Success(c, view)
}
