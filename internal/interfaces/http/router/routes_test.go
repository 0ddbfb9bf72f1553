package router

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/omkarjtg/ecomm/internal/application/guard"
	"github.com/omkarjtg/ecomm/internal/application/notice"
	"github.com/omkarjtg/ecomm/internal/application/preference"
	"github.com/omkarjtg/ecomm/internal/domain/identity"
	"github.com/omkarjtg/ecomm/internal/infrastructure/localstore"
	"github.com/omkarjtg/ecomm/internal/interfaces/http/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSession struct {
	sess  identity.Session
	ready chan struct{}
}

func newFixedSession(sess identity.Session) *fixedSession {
	f := &fixedSession{sess: sess, ready: make(chan struct{})}
	if sess.Resolved {
		close(f.ready)
	}
	return f
}

func (f *fixedSession) Session() identity.Session { return f.sess }
func (f *fixedSession) Ready() <-chan struct{}    { return f.ready }

// storefrontEngine mounts the storefront routes. Only the system handler has
// live services; guarded routes are expected to stop before their handler.
func storefrontEngine(sess identity.Session) *gin.Engine {
	notices := notice.NewCenter()
	theme := preference.NewThemeService(localstore.NewMemory(), nil)
	system := handler.NewSystemHandler("storefront", "test", theme, notices)

	h := Handlers{
		Catalog:  handler.NewCatalogHandler(nil, notices),
		Cart:     handler.NewCartHandler(nil, nil, notices),
		Checkout: handler.NewCheckoutHandler(nil, notices),
		Account:  handler.NewAccountHandler(nil, nil, notices),
		Orders:   handler.NewOrderHandler(nil, notices),
		System:   system,
	}
	g := guard.New(newFixedSession(sess), notices, nil, guard.WithWait(0))

	engine := gin.New()
	NewRouter(engine, WithNoRoute(system.NotFound)).Register(Storefront(h, g)...).Setup()
	return engine
}

func TestStorefront_RegistersViewRoutes(t *testing.T) {
	engine := storefrontEngine(identity.Session{Resolved: true})

	registered := map[string]bool{}
	for _, r := range engine.Routes() {
		registered[r.Method+" "+r.Path] = true
	}

	for _, route := range []string{
		"GET /", "GET /search", "GET /product/:id", "GET /product/:id/image",
		"DELETE /product/:id", "POST /product/:id/generate-description",
		"GET /product/update/:id", "PUT /product/update/:id",
		"GET /add_product", "POST /add_product",
		"GET /cart", "POST /cart/items", "PUT /cart/items/:id", "DELETE /cart/items/:id",
		"POST /cart/items/:id/increment", "POST /cart/items/:id/decrement",
		"GET /cart/checkout", "POST /cart/checkout", "POST /cart/checkout/payment",
		"POST /cart/checkout/sandbox", "POST /cart/checkout/dismiss", "POST /cart/checkout/resume",
		"GET /profile", "GET /orders",
		"GET /login", "POST /login", "POST /signup", "POST /forgot-password",
		"POST /reset-password", "POST /logout", "GET /oauth2/redirect",
		"GET /forbidden", "GET /theme", "PUT /theme", "GET /healthz",
	} {
		assert.True(t, registered[route], "missing route %s", route)
	}
}

func TestStorefront_GuardsPrivateRoutes(t *testing.T) {
	user := &identity.User{ID: 5, Username: "jane", Roles: []string{identity.RoleUser}}

	tests := []struct {
		name     string
		sess     identity.Session
		method   string
		path     string
		status   int
		location string
	}{
		{"cart logged out", identity.Session{Resolved: true}, http.MethodGet, "/cart", http.StatusFound, guard.LoginPath},
		{"checkout logged out", identity.Session{Resolved: true}, http.MethodPost, "/cart/checkout", http.StatusFound, guard.LoginPath},
		{"orders logged out", identity.Session{Resolved: true}, http.MethodGet, "/orders", http.StatusFound, guard.LoginPath},
		{"profile unresolved", identity.Session{}, http.MethodGet, "/profile", http.StatusAccepted, ""},
		{"add product as user", identity.Session{Resolved: true, LoggedIn: true, User: user}, http.MethodGet, "/add_product", http.StatusFound, guard.ForbiddenPath},
		{"delete as user", identity.Session{Resolved: true, LoggedIn: true, User: user}, http.MethodDelete, "/product/1", http.StatusFound, guard.ForbiddenPath},
		{"edit logged out", identity.Session{Resolved: true}, http.MethodGet, "/product/update/1", http.StatusFound, guard.LoginPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(storefrontEngine(tt.sess), tt.method, tt.path)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.location, w.Header().Get("Location"))
		})
	}
}

func TestStorefront_PublicRoutes(t *testing.T) {
	engine := storefrontEngine(identity.Session{})

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusForbidden, serve(engine, http.MethodGet, "/forbidden").Code)

	w := serve(engine, http.MethodGet, "/theme")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"theme":"light"`)
}

func TestStorefront_UnknownRoute(t *testing.T) {
	w := serve(storefrontEngine(identity.Session{}), http.MethodGet, "/no/such/view")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), handler.MsgNotFound)
}
