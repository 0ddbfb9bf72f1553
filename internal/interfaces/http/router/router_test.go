package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())

	assert.NotNil(t, r)
	assert.Empty(t, r.prefix)
	assert.Empty(t, r.registrars)
}

func TestRouterWithPrefix(t *testing.T) {
	engine := gin.New()
	group := NewDomainGroup("test", "/test")
	group.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	NewRouter(engine, WithPrefix("/shop")).Register(group).Setup()

	w := serve(engine, http.MethodGet, "/shop/test/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodGet, "/test/ping").Code)
}

func TestRouterWithNoRoute(t *testing.T) {
	engine := gin.New()
	NewRouter(engine, WithNoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "missing")
	})).Setup()

	w := serve(engine, http.MethodGet, "/nowhere")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "missing", w.Body.String())
}

func TestDomainGroup(t *testing.T) {
	t.Run("creates group with name and prefix", func(t *testing.T) {
		g := NewDomainGroup("cart", "/cart")
		assert.Equal(t, "cart", g.Name())
		assert.Equal(t, "/cart", g.Prefix())
	})

	t.Run("registers every method", func(t *testing.T) {
		engine := gin.New()
		ok := func(c *gin.Context) { c.String(http.StatusOK, c.Request.Method) }

		g := NewDomainGroup("cart", "/cart")
		g.GET("", ok).
			POST("/items", ok).
			PUT("/items/:id", ok).
			DELETE("/items/:id", ok)
		g.RegisterRoutes(engine.Group(""))

		tests := []struct {
			method string
			path   string
		}{
			{http.MethodGet, "/cart"},
			{http.MethodPost, "/cart/items"},
			{http.MethodPut, "/cart/items/3"},
			{http.MethodDelete, "/cart/items/3"},
		}
		for _, tt := range tests {
			w := serve(engine, tt.method, tt.path)
			assert.Equal(t, http.StatusOK, w.Code, "route %s %s", tt.method, tt.path)
			assert.Equal(t, tt.method, w.Body.String())
		}
	})

	t.Run("middleware stays inside its group", func(t *testing.T) {
		engine := gin.New()
		ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }

		g := NewDomainGroup("catalog", "")
		g.GET("/product/:id", ok)
		g.Group("admin", "").
			Use(func(c *gin.Context) {
				c.Header("X-Guarded", "yes")
				c.Next()
			}).
			DELETE("/product/:id", ok)
		g.RegisterRoutes(engine.Group(""))

		assert.Empty(t, serve(engine, http.MethodGet, "/product/1").Header().Get("X-Guarded"))
		assert.Equal(t, "yes", serve(engine, http.MethodDelete, "/product/1").Header().Get("X-Guarded"))
	})

	t.Run("creates subgroups", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("cart", "/cart")
		g.Group("checkout", "/checkout").POST("/resume", func(c *gin.Context) {
			c.String(http.StatusOK, "resumed")
		})
		g.RegisterRoutes(engine.Group(""))

		w := serve(engine, http.MethodPost, "/cart/checkout/resume")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "resumed", w.Body.String())
	})
}
