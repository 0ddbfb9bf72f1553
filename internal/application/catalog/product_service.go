package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/omkarjtg/ecomm/internal/application/inflight"
	"github.com/omkarjtg/ecomm/internal/application/notice"
	"github.com/omkarjtg/ecomm/internal/application/validation"
	"github.com/omkarjtg/ecomm/internal/domain/catalog"
	"github.com/omkarjtg/ecomm/internal/domain/shared"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ProductAPI is the remote product API used by the product views
type ProductAPI interface {
	Product(ctx context.Context, id int64) (catalog.Product, error)
	Image(ctx context.Context, id int64) (catalog.Image, error)
	Search(ctx context.Context, keyword string) ([]catalog.Product, error)
	Create(ctx context.Context, in catalog.ProductInput, img *catalog.ImageUpload) (catalog.Product, error)
	Update(ctx context.Context, id int64, in catalog.ProductInput, img *catalog.ImageUpload) error
	Delete(ctx context.Context, id int64) error
	GenerateDescription(ctx context.Context, id int64) (catalog.Product, error)
}

// imageFetchTimeout bounds a shared image fetch once its callers are gone
const imageFetchTimeout = 15 * time.Second

// Placeholder image used when none is configured
const DefaultPlaceholderURL = "/static/placeholder.png"

// ProductDetail is a product together with the image URL to render
type ProductDetail struct {
	Product  catalog.Product `json:"product"`
	ImageURL string          `json:"imageUrl"`
	// ImageFailed is set when the placeholder stands in for the real image
	ImageFailed bool `json:"imageFailed"`
}

// ProductService serves the product detail, search and admin views
type ProductService struct {
	api         ProductAPI
	store       *Store
	notices     *notice.Center
	flags       *inflight.Flags
	logger      *zap.Logger
	placeholder string

	images *imageCache
	group  singleflight.Group
}

// ProductServiceOption configures a ProductService
type ProductServiceOption func(*ProductService)

// WithPlaceholderURL sets the image shown when a product image cannot be loaded
func WithPlaceholderURL(u string) ProductServiceOption {
	return func(s *ProductService) {
		if u != "" {
			s.placeholder = u
		}
	}
}

// WithImageCacheSize bounds the number of cached product images
func WithImageCacheSize(n int) ProductServiceOption {
	return func(s *ProductService) {
		s.images = newImageCache(n)
	}
}

// NewProductService creates a new ProductService
func NewProductService(api ProductAPI, store *Store, notices *notice.Center, logger *zap.Logger, opts ...ProductServiceOption) *ProductService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notices == nil {
		notices = notice.NewCenter()
	}
	s := &ProductService{
		api:         api,
		store:       store,
		notices:     notices,
		flags:       inflight.New(),
		logger:      logger,
		placeholder: DefaultPlaceholderURL,
		images:      newImageCache(defaultImageCacheSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceholderURL returns the fallback image URL
func (s *ProductService) PlaceholderURL() string {
	return s.placeholder
}

// ImagePath is the storefront route serving a product image
func ImagePath(id int64) string {
	return "/product/" + strconv.FormatInt(id, 10) + "/image"
}

// List returns the cached catalog filtered by category, refreshing it first
func (s *ProductService) List(ctx context.Context, category string) (Snapshot, error) {
	err := s.store.Refresh(ctx)
	snap := s.store.Catalog()
	snap.Products = catalog.FilterByCategory(snap.Products, category)
	return snap, err
}

// Detail fetches a product and its image together. The image call never
// fails the view; a failed image degrades to the placeholder.
func (s *ProductService) Detail(ctx context.Context, id int64) (ProductDetail, error) {
	var (
		g       errgroup.Group
		product catalog.Product
		imgOK   bool
	)
	g.Go(func() error {
		p, err := s.api.Product(ctx, id)
		if err != nil {
			return err
		}
		product = p
		return nil
	})
	g.Go(func() error {
		_, imgOK = s.Image(ctx, id)
		return nil
	})
	if err := g.Wait(); err != nil {
		return ProductDetail{}, err
	}

	d := ProductDetail{Product: product, ImageURL: ImagePath(id)}
	if !imgOK {
		d.ImageURL = s.placeholder
		d.ImageFailed = true
	}
	return d, nil
}

// Image returns the product image, from cache when possible. It reports false
// when the image could not be loaded. Concurrent callers share one fetch,
// which outlives any single caller and is bounded by imageFetchTimeout.
func (s *ProductService) Image(ctx context.Context, id int64) (catalog.Image, bool) {
	if img, ok := s.images.get(id); ok {
		return img, true
	}
	ch := s.group.DoChan(strconv.FormatInt(id, 10), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), imageFetchTimeout)
		defer cancel()
		img, err := s.api.Image(fetchCtx, id)
		if err != nil {
			return nil, err
		}
		s.images.put(id, img)
		return img, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return catalog.Image{}, false
	}
	if res.Err != nil {
		s.logger.Debug("Product image unavailable, using placeholder",
			zap.Int64("product_id", id), zap.Error(res.Err))
		return catalog.Image{}, false
	}
	return res.Val.(catalog.Image), true
}

// ImageURLs resolves the image URL of every product, fetching the images
// together. Products whose image fails get the placeholder.
func (s *ProductService) ImageURLs(ctx context.Context, ids []int64) map[int64]string {
	ok := make([]bool, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			_, ok[i] = s.Image(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[int64]string, len(ids))
	for i, id := range ids {
		if ok[i] {
			out[id] = ImagePath(id)
		} else {
			out[id] = s.placeholder
		}
	}
	return out
}

// Search runs the keyword search
func (s *ProductService) Search(ctx context.Context, keyword string) ([]catalog.Product, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, validation.Field("keyword", "Enter a keyword to search")
	}
	return s.api.Search(ctx, keyword)
}

// Create adds a product. An image is required for new products.
func (s *ProductService) Create(ctx context.Context, in catalog.ProductInput, img *catalog.ImageUpload) (catalog.Product, error) {
	if err := validateInput(in); err != nil {
		return catalog.Product{}, err
	}
	if img == nil || len(img.Data) == 0 {
		return catalog.Product{}, validation.Field("imageFile", "Image is required")
	}

	release, err := s.flags.Acquire("product:create")
	if err != nil {
		return catalog.Product{}, err
	}
	defer release()

	p, err := s.api.Create(ctx, in, img)
	if err != nil {
		s.logger.Warn("Failed to add product", zap.String("name", in.Name), zap.Error(err))
		return catalog.Product{}, err
	}
	s.notices.Success("Product added successfully")
	s.refreshQuietly(ctx)
	return p, nil
}

// Update replaces a product. A nil image keeps the current image.
func (s *ProductService) Update(ctx context.Context, id int64, in catalog.ProductInput, img *catalog.ImageUpload) error {
	if err := validateInput(in); err != nil {
		return err
	}

	release, err := s.flags.Acquire(fmt.Sprintf("product:update:%d", id))
	if err != nil {
		return err
	}
	defer release()

	if err := s.api.Update(ctx, id, in, img); err != nil {
		s.logger.Warn("Failed to update product", zap.Int64("product_id", id), zap.Error(err))
		return err
	}
	if img != nil {
		s.images.remove(id)
	}
	s.notices.Success("Product updated successfully")
	s.refreshQuietly(ctx)
	return nil
}

// ErrConfirmationRequired is returned by Delete until the admin confirms
var ErrConfirmationRequired = shared.NewDomainError("CONFIRMATION_REQUIRED", "Are you sure you want to delete this product?")

// Delete removes a product after confirmation and drops it from the cart
func (s *ProductService) Delete(ctx context.Context, id int64, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}

	release, err := s.flags.Acquire(fmt.Sprintf("product:delete:%d", id))
	if err != nil {
		return err
	}
	defer release()

	if err := s.api.Delete(ctx, id); err != nil {
		s.logger.Warn("Failed to delete product", zap.Int64("product_id", id), zap.Error(err))
		return err
	}
	s.images.remove(id)
	if err := s.store.RemoveFromCart(ctx, id); err != nil {
		s.logger.Warn("Failed to drop deleted product from cart", zap.Int64("product_id", id), zap.Error(err))
	}
	s.notices.Success("Product deleted successfully")
	s.refreshQuietly(ctx)
	return nil
}

// GenerateDescription asks the server to write the product description
func (s *ProductService) GenerateDescription(ctx context.Context, id int64) (catalog.Product, error) {
	release, err := s.flags.Acquire(fmt.Sprintf("product:describe:%d", id))
	if err != nil {
		return catalog.Product{}, err
	}
	defer release()

	p, err := s.api.GenerateDescription(ctx, id)
	if err != nil {
		return catalog.Product{}, err
	}
	if p.Description == "" {
		return catalog.Product{}, shared.NewDomainError("REMOTE_ERROR", "No description was generated")
	}
	s.notices.Success("Description generated")
	s.refreshQuietly(ctx)
	return p, nil
}

// refreshQuietly updates the catalog after an admin change. A failure only
// raises the catalog error flag.
func (s *ProductService) refreshQuietly(ctx context.Context) {
	if err := s.store.Refresh(ctx); err != nil {
		s.logger.Debug("Catalog refresh after admin change failed", zap.Error(err))
	}
}

func validateInput(in catalog.ProductInput) error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	if err := in.Validate(); err != nil {
		var de *shared.DomainError
		if errors.As(err, &de) {
			return err
		}
		return validation.Field("product", err.Error())
	}
	return nil
}
