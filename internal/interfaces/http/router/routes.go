package router

import (
	"github.com/omkarjtg/ecomm/internal/application/guard"
	"github.com/omkarjtg/ecomm/internal/interfaces/http/handler"
	"github.com/omkarjtg/ecomm/internal/interfaces/http/middleware"
)

// Handlers are the view handlers mounted by Storefront
type Handlers struct {
	Catalog  *handler.CatalogHandler
	Cart     *handler.CartHandler
	Checkout *handler.CheckoutHandler
	Account  *handler.AccountHandler
	Orders   *handler.OrderHandler
	System   *handler.SystemHandler
}

// Storefront builds the route groups of the storefront. Every non-public
// group is gated by the guard.
func Storefront(h Handlers, g *guard.Guard) []RouteRegistrar {
	authenticated := middleware.RequireRoute(g, guard.Authenticated)
	admin := middleware.RequireRoute(g, guard.Admin)
	traced := middleware.TracingAttributeInjector()

	catalog := NewDomainGroup("catalog", "")
	catalog.GET("/", h.Catalog.List).
		GET("/search", h.Catalog.Search).
		GET("/product/:id", h.Catalog.Detail).
		GET("/product/:id/image", h.Catalog.Image)
	catalog.Group("catalog-admin", "").
		Use(admin, traced).
		DELETE("/product/:id", h.Catalog.Delete).
		POST("/product/:id/generate-description", h.Catalog.GenerateDescription).
		GET("/product/update/:id", h.Catalog.EditForm).
		PUT("/product/update/:id", h.Catalog.Update).
		GET("/add_product", h.Catalog.AddForm).
		POST("/add_product", h.Catalog.Create)

	cart := NewDomainGroup("cart", "/cart").Use(authenticated, traced)
	cart.GET("", h.Cart.View).
		POST("/items", h.Cart.AddItem).
		PUT("/items/:id", h.Cart.SetQuantity).
		DELETE("/items/:id", h.Cart.Remove).
		POST("/items/:id/increment", h.Cart.Increment).
		POST("/items/:id/decrement", h.Cart.Decrement)
	cart.Group("checkout", "/checkout").
		GET("", h.Checkout.Current).
		POST("", h.Checkout.Begin).
		POST("/payment", h.Checkout.Payment).
		POST("/sandbox", h.Checkout.Sandbox).
		POST("/dismiss", h.Checkout.Dismiss).
		POST("/resume", h.Checkout.Resume)

	account := NewDomainGroup("account", "")
	account.GET("/login", h.Account.Session).
		POST("/login", h.Account.Login).
		POST("/signup", h.Account.Signup).
		POST("/forgot-password", h.Account.ForgotPassword).
		POST("/reset-password", h.Account.ResetPassword).
		POST("/logout", h.Account.Logout).
		GET("/oauth2/redirect", h.Account.OAuthRedirect)
	account.Group("account-private", "").
		Use(authenticated, traced).
		GET("/profile", h.Account.Profile).
		GET("/orders", h.Orders.History)

	system := NewDomainGroup("system", "")
	system.GET("/healthz", h.System.Health).
		GET("/forbidden", h.System.Forbidden).
		GET("/theme", h.System.Theme).
		PUT("/theme", h.System.SetTheme)

	return []RouteRegistrar{catalog, cart, account, system}
}
