package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	appcatalog "github.com/omkarjtg/ecomm/internal/application/catalog"
	"github.com/omkarjtg/ecomm/internal/application/notice"
	"github.com/omkarjtg/ecomm/internal/domain/catalog"
	"github.com/omkarjtg/ecomm/internal/infrastructure/apiclient"
	"github.com/omkarjtg/ecomm/internal/infrastructure/localstore"
	"github.com/omkarjtg/ecomm/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProductAPI serves a fixed product list
type stubProductAPI struct {
	mu       sync.Mutex
	products []catalog.Product
	images   map[int64]catalog.Image
	created  []catalog.ProductInput
	deleted  []int64
	listErr  error
}

func newStubProductAPI(products ...catalog.Product) *stubProductAPI {
	return &stubProductAPI{products: products, images: map[int64]catalog.Image{}}
}

func (s *stubProductAPI) Products(context.Context) ([]catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]catalog.Product(nil), s.products...), nil
}

func (s *stubProductAPI) Product(_ context.Context, id int64) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.ID == id {
			return p, nil
		}
	}
	return catalog.Product{}, &apiclient.APIError{StatusCode: http.StatusNotFound, Message: "Product not found"}
}

func (s *stubProductAPI) Image(_ context.Context, id int64) (catalog.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if img, ok := s.images[id]; ok {
		return img, nil
	}
	return catalog.Image{}, &apiclient.APIError{StatusCode: http.StatusNotFound, Message: "Image not found"}
}

func (s *stubProductAPI) Search(_ context.Context, keyword string) ([]catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []catalog.Product
	for _, p := range s.products {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(keyword)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubProductAPI) Create(_ context.Context, in catalog.ProductInput, _ *catalog.ImageUpload) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, in)
	p := catalog.Product{
		ID: int64(len(s.products) + 1), Name: in.Name, Brand: in.Brand, Category: in.Category,
		Price: in.Price, StockQuantity: in.StockQuantity, ProductAvailable: in.ProductAvailable,
	}
	s.products = append(s.products, p)
	return p, nil
}

func (s *stubProductAPI) Update(context.Context, int64, catalog.ProductInput, *catalog.ImageUpload) error {
	return nil
}

func (s *stubProductAPI) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubProductAPI) GenerateDescription(ctx context.Context, id int64) (catalog.Product, error) {
	p, err := s.Product(ctx, id)
	p.Description = "Generated"
	return p, err
}

func testProduct(id int64, name string, stock int) catalog.Product {
	return catalog.Product{
		ID: id, Name: name, Brand: "Acme", Category: catalog.CategoryMobile,
		Price: decimal.NewFromInt(100), StockQuantity: stock, ProductAvailable: stock > 0,
	}
}

type catalogFixture struct {
	api      *stubProductAPI
	store    *appcatalog.Store
	products *appcatalog.ProductService
	notices  *notice.Center
	engine   *gin.Engine
}

func newCatalogFixture(t *testing.T) *catalogFixture {
	t.Helper()
	api := newStubProductAPI(testProduct(1, "Phone", 3), testProduct(2, "Laptop", 0))
	api.images[1] = catalog.Image{Data: []byte("\x89PNG\r\n\x1a\n"), ContentType: "image/png"}

	mem := localstore.NewMemory()
	t.Cleanup(func() { _ = mem.Close() })
	notices := notice.NewCenter()
	store := appcatalog.NewStore(context.Background(), api, mem, notices, nil)
	products := appcatalog.NewProductService(api, store, notices, nil)

	ch := NewCatalogHandler(products, notices)
	cart := NewCartHandler(store, products, notices)

	r := gin.New()
	r.GET("/", ch.List)
	r.GET("/search", ch.Search)
	r.GET("/product/:id", ch.Detail)
	r.GET("/product/:id/image", ch.Image)
	r.DELETE("/product/:id", ch.Delete)
	r.POST("/add_product", ch.Create)
	r.GET("/cart", cart.View)
	r.POST("/cart/items", cart.AddItem)
	r.PUT("/cart/items/:id", cart.SetQuantity)
	r.POST("/cart/items/:id/increment", cart.Increment)
	r.DELETE("/cart/items/:id", cart.Remove)

	return &catalogFixture{api: api, store: store, products: products, notices: notices, engine: r}
}

func (f *catalogFixture) do(method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestCatalogHandler_List(t *testing.T) {
	f := newCatalogFixture(t)

	w := f.do(http.MethodGet, "/?category=mobile", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data CatalogResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data.Products, 2)
	assert.Equal(t, catalog.Categories, body.Data.Categories)
	assert.False(t, body.Data.Failed)
	assert.NotNil(t, body.Data.FetchedAt)
}

func TestCatalogHandler_ListRendersErrorState(t *testing.T) {
	f := newCatalogFixture(t)
	f.api.listErr = &apiclient.APIError{StatusCode: http.StatusBadGateway, Message: "upstream down"}

	var body struct {
		Success bool            `json:"success"`
		Data    CatalogResponse `json:"data"`
	}
	w := f.do(http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.True(t, body.Data.Failed)
	assert.Equal(t, MsgCatalogUnavailable, body.Data.Message)
	assert.Empty(t, body.Data.Products)
	assert.NotNil(t, body.Data.Products)
	assert.Nil(t, body.Data.FetchedAt)

	f.api.mu.Lock()
	f.api.listErr = nil
	f.api.mu.Unlock()
	w = f.do(http.MethodGet, "/", nil, "")
	var recovered struct {
		Data CatalogResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recovered))
	assert.False(t, recovered.Data.Failed)
	assert.Empty(t, recovered.Data.Message)
	assert.Len(t, recovered.Data.Products, 2)
}

func TestCatalogHandler_SearchRequiresKeyword(t *testing.T) {
	f := newCatalogFixture(t)

	w := f.do(http.MethodGet, "/search", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "keyword", resp.Error.Details[0].Field)

	w = f.do(http.MethodGet, "/search?keyword=lap", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeResponse(t, w).Data, 1)
}

func TestCatalogHandler_Detail(t *testing.T) {
	f := newCatalogFixture(t)

	w := f.do(http.MethodGet, "/product/1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.(map[string]any)
	assert.Equal(t, appcatalog.ImagePath(1), data["imageUrl"])
	assert.Equal(t, false, data["imageFailed"])

	w = f.do(http.MethodGet, "/product/99", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodGet, "/product/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCatalogHandler_Image(t *testing.T) {
	f := newCatalogFixture(t)

	w := f.do(http.MethodGet, "/product/1/image", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, f.api.images[1].Data, w.Body.Bytes())

	w = f.do(http.MethodGet, "/product/2/image", nil, "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, appcatalog.DefaultPlaceholderURL, w.Header().Get("Location"))
}

func TestCatalogHandler_Create(t *testing.T) {
	f := newCatalogFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField(FormProduct,
		`{"name":"Tablet","brand":"Acme","category":"Electronics","price":"250.00","stockQuantity":4,"productAvailable":true,"releaseDate":"2024-05-01"}`))
	fw, err := mw.CreateFormFile(FormImageFile, "tablet.png")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("png-bytes"))
	require.NoError(t, mw.Close())

	w := f.do(http.MethodPost, "/add_product", buf.Bytes(), mw.FormDataContentType())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decodeResponse(t, w)
	require.Len(t, resp.Notices, 1)
	assert.Equal(t, "Product added successfully", resp.Notices[0].Message)
	require.Len(t, f.api.created, 1)
	assert.Equal(t, "Tablet", f.api.created[0].Name)
	assert.True(t, f.api.created[0].Price.Equal(decimal.NewFromInt(250)))
}

func TestCatalogHandler_CreateRequiresImage(t *testing.T) {
	f := newCatalogFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField(FormProduct, `{"name":"Tablet","brand":"Acme","category":"Electronics","price":"250"}`))
	require.NoError(t, mw.Close())

	w := f.do(http.MethodPost, "/add_product", buf.Bytes(), mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, FormImageFile, decodeResponse(t, w).Error.Details[0].Field)
	assert.Empty(t, f.api.created)
}

func TestCatalogHandler_DeleteNeedsConfirmation(t *testing.T) {
	f := newCatalogFixture(t)

	w := f.do(http.MethodDelete, "/product/1", nil, "")
	assert.Equal(t, http.StatusPreconditionRequired, w.Code)
	assert.Equal(t, dto.ErrCodeConfirmationRequired, decodeResponse(t, w).Error.Code)
	assert.Empty(t, f.api.deleted)

	w = f.do(http.MethodDelete, "/product/1?confirm=true", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{1}, f.api.deleted)
	assert.Equal(t, "/", decodeResponse(t, w).Data.(map[string]any)["location"])
}

func TestCartHandler_AddAndAdjust(t *testing.T) {
	f := newCatalogFixture(t)

	w := f.do(http.MethodPost, "/cart/items", []byte(`{"productId":1}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(1), decodeResponse(t, w).Data.(map[string]any)["itemCount"])

	w = f.do(http.MethodPut, "/cart/items/1", []byte(`{"quantity":10}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, float64(3), resp.Data.(map[string]any)["itemCount"], "clamped to stock")
	require.Len(t, resp.Notices, 1)
	assert.Equal(t, appcatalog.MsgStockLimit, resp.Notices[0].Message)

	w = f.do(http.MethodDelete, "/cart/items/1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decodeResponse(t, w).Data.(map[string]any)["itemCount"])
}

func TestCartHandler_AddRejectsBadInput(t *testing.T) {
	f := newCatalogFixture(t)

	w := f.do(http.MethodPost, "/cart/items", []byte(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/cart/items", []byte(`{"productId":2}`), "application/json")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dto.ErrCodeOutOfStock, decodeResponse(t, w).Error.Code)

	w = f.do(http.MethodPost, "/cart/items/9/increment", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
