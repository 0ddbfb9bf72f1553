package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	appcatalog "github.com/omkarjtg/ecomm/internal/application/catalog"
	"github.com/omkarjtg/ecomm/internal/application/notice"
	"github.com/omkarjtg/ecomm/internal/application/validation"
	"github.com/omkarjtg/ecomm/internal/domain/catalog"
)

// Multipart field names of the add/update product forms
const (
	FormProduct   = "product"
	FormImageFile = "imageFile"
)

// MsgCatalogUnavailable is shown on the home view when the catalog could not
// be fetched
const MsgCatalogUnavailable = "Failed to load products. Please try again."

// maxImageBytes bounds an uploaded product image
const maxImageBytes = 5 << 20

// CatalogHandler serves the catalog, product detail and admin product views
type CatalogHandler struct {
	BaseHandler
	products *appcatalog.ProductService
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(products *appcatalog.ProductService, notices *notice.Center) *CatalogHandler {
	return &CatalogHandler{BaseHandler: NewBaseHandler(notices), products: products}
}

// CatalogResponse is the home view
type CatalogResponse struct {
	Products   []catalog.Product `json:"products"`
	Category   string            `json:"category,omitempty"`
	Categories []string          `json:"categories"`
	// Failed is set when the last refresh failed and products may be stale
	Failed    bool       `json:"failed"`
	Message   string     `json:"message,omitempty"`
	FetchedAt *time.Time `json:"fetchedAt,omitempty"`
}

// List handles GET /. A failed refresh still renders the view, flagged as
// failed, with whatever products were cached before.
func (h *CatalogHandler) List(c *gin.Context) {
	category := c.Query("category")
	snap, err := h.products.List(c.Request.Context(), category)
	if err != nil {
		snap.Failed = true
	}

	resp := CatalogResponse{
		Products:   snap.Products,
		Category:   category,
		Categories: catalog.Categories,
		Failed:     snap.Failed,
	}
	if resp.Products == nil {
		resp.Products = []catalog.Product{}
	}
	if resp.Failed {
		resp.Message = MsgCatalogUnavailable
	}
	if !snap.FetchedAt.IsZero() {
		resp.FetchedAt = &snap.FetchedAt
	}
	h.Success(c, resp)
}

// Search handles GET /search?keyword=
func (h *CatalogHandler) Search(c *gin.Context) {
	results, err := h.products.Search(c.Request.Context(), c.Query("keyword"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if results == nil {
		results = []catalog.Product{}
	}
	h.Success(c, results)
}

// Detail handles GET /product/:id
func (h *CatalogHandler) Detail(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		h.BadRequest(c, "Invalid product ID")
		return
	}
	detail, err := h.products.Detail(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, detail)
}

// Image handles GET /product/:id/image. A missing image redirects to the
// placeholder.
func (h *CatalogHandler) Image(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		h.BadRequest(c, "Invalid product ID")
		return
	}
	img, found := h.products.Image(c.Request.Context(), id)
	if !found {
		c.Redirect(http.StatusFound, h.products.PlaceholderURL())
		return
	}
	contentType := img.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(img.Data)
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, contentType, img.Data)
}

// ProductFormResponse is the add/edit form
type ProductFormResponse struct {
	Product    *catalog.Product `json:"product,omitempty"`
	ImageURL   string           `json:"imageUrl,omitempty"`
	Categories []string         `json:"categories"`
}

// AddForm handles GET /add_product
func (h *CatalogHandler) AddForm(c *gin.Context) {
	h.Success(c, ProductFormResponse{Categories: catalog.Categories})
}

// EditForm handles GET /product/update/:id
func (h *CatalogHandler) EditForm(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		h.BadRequest(c, "Invalid product ID")
		return
	}
	detail, err := h.products.Detail(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ProductFormResponse{
		Product:    &detail.Product,
		ImageURL:   detail.ImageURL,
		Categories: catalog.Categories,
	})
}

// Create handles POST /add_product
func (h *CatalogHandler) Create(c *gin.Context) {
	in, img, err := readProductForm(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	p, err := h.products.Create(c.Request.Context(), in, img)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, p)
}

// Update handles PUT /product/update/:id
func (h *CatalogHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		h.BadRequest(c, "Invalid product ID")
		return
	}
	in, img, err := readProductForm(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	in.ID = id
	if err := h.products.Update(c.Request.Context(), id, in, img); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Navigate(c, "/product/"+strconv.FormatInt(id, 10))
}

// Delete handles DELETE /product/:id?confirm=true
func (h *CatalogHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		h.BadRequest(c, "Invalid product ID")
		return
	}
	confirmed, _ := strconv.ParseBool(c.Query("confirm"))
	if err := h.products.Delete(c.Request.Context(), id, confirmed); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Navigate(c, "/")
}

// GenerateDescription handles POST /product/:id/generate-description
func (h *CatalogHandler) GenerateDescription(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		h.BadRequest(c, "Invalid product ID")
		return
	}
	p, err := h.products.GenerateDescription(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, p)
}

// readProductForm reads the multipart product form: a JSON "product" part and
// an optional "imageFile" file.
func readProductForm(c *gin.Context) (catalog.ProductInput, *catalog.ImageUpload, error) {
	var in catalog.ProductInput
	raw := c.PostForm(FormProduct)
	if raw == "" {
		return in, nil, validation.Field(FormProduct, "This field is required")
	}
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return in, nil, validation.Field(FormProduct, "Invalid product data")
	}

	fh, err := c.FormFile(FormImageFile)
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil, nil
	}
	if err != nil {
		return in, nil, validation.Field(FormImageFile, "Invalid image upload")
	}
	if fh.Size > maxImageBytes {
		return in, nil, validation.Field(FormImageFile, "Image must be at most 5 MB")
	}
	f, err := fh.Open()
	if err != nil {
		return in, nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return in, nil, err
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return in, &catalog.ImageUpload{Filename: fh.Filename, ContentType: contentType, Data: data}, nil
}
