package handler

import (
	"github.com/gin-gonic/gin"
	appcatalog "github.com/omkarjtg/ecomm/internal/application/catalog"
	"github.com/omkarjtg/ecomm/internal/application/notice"
)

// AddToCartRequest is the body of POST /cart/items
type AddToCartRequest struct {
	ProductID int64 `json:"productId" binding:"required,gt=0"`
}

// QuantityRequest is the body of PUT /cart/items/:id
type QuantityRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

// CartHandler serves the cart view and its mutations
type CartHandler struct {
	BaseHandler
	store    *appcatalog.Store
	products *appcatalog.ProductService
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(store *appcatalog.Store, products *appcatalog.ProductService, notices *notice.Center) *CartHandler {
	return &CartHandler{BaseHandler: NewBaseHandler(notices), store: store, products: products}
}

// View handles GET /cart
func (h *CartHandler) View(c *gin.Context) {
	h.Success(c, h.products.CartView(c.Request.Context()))
}

// CartCount is returned by mutations that do not re-render the cart
type CartCount struct {
	ItemCount int `json:"itemCount"`
}

// AddItem handles POST /cart/items
func (h *CartHandler) AddItem(c *gin.Context) {
	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}
	if err := h.store.AddProduct(c.Request.Context(), req.ProductID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, CartCount{ItemCount: h.store.ItemCount()})
}

// SetQuantity handles PUT /cart/items/:id
func (h *CartHandler) SetQuantity(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		h.BadRequest(c, "Invalid product ID")
		return
	}
	var req QuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}
	h.mutate(c, h.store.SetQuantity(c.Request.Context(), id, req.Quantity))
}

// Remove handles DELETE /cart/items/:id
func (h *CartHandler) Remove(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		h.BadRequest(c, "Invalid product ID")
		return
	}
	h.mutate(c, h.store.RemoveFromCart(c.Request.Context(), id))
}

// Increment handles POST /cart/items/:id/increment
func (h *CartHandler) Increment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		h.BadRequest(c, "Invalid product ID")
		return
	}
	h.mutate(c, h.store.Increment(c.Request.Context(), id))
}

// Decrement handles POST /cart/items/:id/decrement
func (h *CartHandler) Decrement(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		h.BadRequest(c, "Invalid product ID")
		return
	}
	h.mutate(c, h.store.Decrement(c.Request.Context(), id))
}

// mutate answers a cart mutation with the re-rendered cart
func (h *CartHandler) mutate(c *gin.Context, err error) {
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.View(c)
}
