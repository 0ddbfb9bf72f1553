package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/omkarjtg/ecomm/internal/application/preference"
	"github.com/omkarjtg/ecomm/internal/infrastructure/localstore"
	"github.com/omkarjtg/ecomm/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSystemEngine(t *testing.T) *gin.Engine {
	t.Helper()
	mem := localstore.NewMemory()
	t.Cleanup(func() { _ = mem.Close() })
	h := NewSystemHandler("storefront", "1.0.0", preference.NewThemeService(mem, nil), nil)

	r := gin.New()
	r.GET("/healthz", h.Health)
	r.GET("/theme", h.Theme)
	r.PUT("/theme", h.SetTheme)
	r.GET("/forbidden", h.Forbidden)
	r.NoRoute(h.NotFound)
	return r
}

func serve(r *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSystemHandler_Health(t *testing.T) {
	w := serve(newSystemEngine(t), http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.(map[string]any)
	assert.Equal(t, "storefront", data["name"])
	assert.Equal(t, "ok", data["status"])
	assert.NotEmpty(t, data["go_version"])
}

func TestSystemHandler_Theme(t *testing.T) {
	r := newSystemEngine(t)

	w := serve(r, http.MethodGet, "/theme", "")
	assert.Equal(t, "light", decodeResponse(t, w).Data.(map[string]any)["theme"])

	w = serve(r, http.MethodPut, "/theme", `{"theme":"dark"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodGet, "/theme", "")
	assert.Equal(t, "dark", decodeResponse(t, w).Data.(map[string]any)["theme"])

	w = serve(r, http.MethodPut, "/theme", `{"theme":"sepia"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "theme", decodeResponse(t, w).Error.Details[0].Field)
}

func TestSystemHandler_FallbackViews(t *testing.T) {
	r := newSystemEngine(t)

	w := serve(r, http.MethodGet, "/forbidden", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, dto.ErrCodeForbidden, decodeResponse(t, w).Error.Code)

	w = serve(r, http.MethodGet, "/no/such/page", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, MsgNotFound, decodeResponse(t, w).Error.Message)
}
