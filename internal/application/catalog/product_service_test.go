package catalog

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/omkarjtg/ecomm/internal/application/notice"
	"github.com/omkarjtg/ecomm/internal/domain/catalog"
	"github.com/omkarjtg/ecomm/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*ProductService, *Store, *MockProductAPI, *notice.Center) {
	t.Helper()
	store, api, _, notices := newTestStore(t)
	return NewProductService(api, store, notices, nil, WithPlaceholderURL("/img/none.png")), store, api, notices
}

func validInput() catalog.ProductInput {
	return catalog.ProductInput{
		Name: "Phone", Brand: "Acme", Category: catalog.CategoryMobile,
		Price: decimal.NewFromInt(100), StockQuantity: 3, ProductAvailable: true,
	}
}

func TestProductService_DetailFetchesImageAlongside(t *testing.T) {
	svc, _, api, _ := newTestService(t)
	ctx := context.Background()

	api.On("Product", mock.Anything, int64(1)).Return(phone(), nil).Once()
	api.On("Image", mock.Anything, int64(1)).Return(catalog.Image{Data: []byte("png"), ContentType: "image/png"}, nil).Once()

	d, err := svc.Detail(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Phone", d.Product.Name)
	assert.Equal(t, "/product/1/image", d.ImageURL)
	assert.False(t, d.ImageFailed)

	// second image read is served from cache
	img, ok := svc.Image(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, "image/png", img.ContentType)
	api.AssertExpectations(t)
}

func TestProductService_DetailImageFailureUsesPlaceholder(t *testing.T) {
	svc, _, api, _ := newTestService(t)

	api.On("Product", mock.Anything, int64(1)).Return(phone(), nil)
	api.On("Image", mock.Anything, int64(1)).Return(catalog.Image{}, errors.New("404"))

	d, err := svc.Detail(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "/img/none.png", d.ImageURL)
	assert.True(t, d.ImageFailed)
}

func TestProductService_DetailProductFailureWaitsForImage(t *testing.T) {
	svc, _, api, _ := newTestService(t)

	var imageDone atomic.Bool
	api.On("Product", mock.Anything, int64(5)).Return(catalog.Product{}, errors.New("Product not found"))
	api.On("Image", mock.Anything, int64(5)).
		Run(func(mock.Arguments) {
			time.Sleep(20 * time.Millisecond)
			imageDone.Store(true)
		}).
		Return(catalog.Image{Data: []byte("x")}, nil)

	_, err := svc.Detail(context.Background(), 5)
	require.Error(t, err)
	assert.True(t, imageDone.Load(), "sibling call is not cancelled")
}

func TestProductService_Search(t *testing.T) {
	svc, _, api, _ := newTestService(t)

	_, err := svc.Search(context.Background(), "   ")
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)

	api.On("Search", mock.Anything, "phone").Return([]catalog.Product{phone()}, nil)
	got, err := svc.Search(context.Background(), " phone ")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestProductService_CreateRequiresImage(t *testing.T) {
	svc, _, api, _ := newTestService(t)

	_, err := svc.Create(context.Background(), validInput(), nil)
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "imageFile", ve.Fields[0].Field)
	api.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestProductService_CreateValidatesFields(t *testing.T) {
	svc, _, api, _ := newTestService(t)

	in := validInput()
	in.Name = ""
	in.Brand = ""
	_, err := svc.Create(context.Background(), in, &catalog.ImageUpload{Data: []byte("x")})
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Fields, 2)

	in = validInput()
	in.Price = decimal.NewFromInt(-1)
	_, err = svc.Create(context.Background(), in, &catalog.ImageUpload{Data: []byte("x")})
	assert.Equal(t, "Price cannot be negative", shared.MessageOf(err, ""))
	api.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestProductService_CreateRefreshesCatalog(t *testing.T) {
	svc, store, api, notices := newTestService(t)
	img := &catalog.ImageUpload{Filename: "p.png", Data: []byte("x")}

	api.On("Create", mock.Anything, validInput(), img).Return(phone(), nil).Once()
	api.On("Products", mock.Anything).Return([]catalog.Product{phone()}, nil).Once()

	p, err := svc.Create(context.Background(), validInput(), img)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)
	assert.Len(t, store.Catalog().Products, 1)
	assert.Equal(t, "Product added successfully", notices.Drain()[0].Message)
	api.AssertExpectations(t)
}

func TestProductService_UpdateDropsCachedImage(t *testing.T) {
	svc, _, api, _ := newTestService(t)
	ctx := context.Background()
	svc.images.put(1, catalog.Image{Data: []byte("old")})
	img := &catalog.ImageUpload{Data: []byte("new")}

	api.On("Update", mock.Anything, int64(1), validInput(), img).Return(nil).Once()
	api.On("Products", mock.Anything).Return(nil, errors.New("down")).Once()

	require.NoError(t, svc.Update(ctx, 1, validInput(), img))
	_, cached := svc.images.get(1)
	assert.False(t, cached)
}

func TestProductService_DeleteNeedsConfirmation(t *testing.T) {
	svc, store, api, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.AddToCart(ctx, phone()))

	err := svc.Delete(ctx, 1, false)
	assert.ErrorIs(t, err, ErrConfirmationRequired)
	api.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)

	api.On("Delete", mock.Anything, int64(1)).Return(nil).Once()
	api.On("Products", mock.Anything).Return([]catalog.Product{}, nil).Once()
	require.NoError(t, svc.Delete(ctx, 1, true))
	assert.Empty(t, store.Lines())
}

func TestProductService_GenerateDescription(t *testing.T) {
	svc, _, api, _ := newTestService(t)
	ctx := context.Background()

	described := phone()
	described.Description = "A fine phone."
	api.On("GenerateDescription", mock.Anything, int64(1)).Return(described, nil).Once()
	api.On("Products", mock.Anything).Return([]catalog.Product{described}, nil).Once()

	p, err := svc.GenerateDescription(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "A fine phone.", p.Description)

	api.On("GenerateDescription", mock.Anything, int64(2)).Return(catalog.Product{ID: 2}, nil).Once()
	_, err = svc.GenerateDescription(ctx, 2)
	assert.Error(t, err)
}

func TestProductService_CartView(t *testing.T) {
	svc, store, api, _ := newTestService(t)
	ctx := context.Background()

	p := phone()
	require.NoError(t, store.AddToCart(ctx, p))
	require.NoError(t, store.AddToCart(ctx, p))
	require.NoError(t, store.AddToCart(ctx, catalog.Product{ID: 9, Name: "Gone", StockQuantity: 5}))

	p.StockQuantity = 1
	api.On("Products", mock.Anything).Return([]catalog.Product{p}, nil).Once()
	api.On("Image", mock.Anything, int64(1)).Return(catalog.Image{}, errors.New("no image")).Once()

	view := svc.CartView(ctx)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "/img/none.png", view.Lines[0].ImageURL)
	assert.Equal(t, 1, view.Lines[0].Available)
	assert.True(t, decimal.NewFromInt(200).Equal(view.Total))
	assert.Equal(t, 2, view.ItemCount)
	require.Len(t, view.Violations, 1)
	assert.Equal(t, 2, view.Violations[0].Requested)
	assert.False(t, view.CatalogFailed)
}

func TestImageCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newImageCache(2)
	c.put(1, catalog.Image{})
	c.put(2, catalog.Image{})
	_, _ = c.get(1)
	c.put(3, catalog.Image{})

	_, ok := c.get(2)
	assert.False(t, ok)
	_, ok = c.get(1)
	assert.True(t, ok)
}

func TestProductService_ImageFetchOutlivesCancelledCaller(t *testing.T) {
	s, _, api, _ := newTestService(t)
	started := make(chan struct{})
	release := make(chan struct{})
	fetchErr := make(chan error, 1)
	api.On("Image", mock.Anything, int64(1)).Run(func(args mock.Arguments) {
		close(started)
		<-release
		fetchErr <- args.Get(0).(context.Context).Err()
	}).Return(catalog.Image{Data: []byte("png"), ContentType: "image/png"}, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	firstDone := make(chan bool, 1)
	go func() {
		_, ok := s.Image(ctx, 1)
		firstDone <- ok
	}()
	<-started
	cancel()
	assert.False(t, <-firstDone, "cancelled caller returns without waiting")

	close(release)
	assert.NoError(t, <-fetchErr, "shared fetch keeps running")
	assert.Eventually(t, func() bool {
		_, ok := s.images.get(1)
		return ok
	}, time.Second, 5*time.Millisecond)

	img, ok := s.Image(context.Background(), 1)
	require.True(t, ok)
	assert.Equal(t, []byte("png"), img.Data)
	api.AssertNumberOfCalls(t, "Image", 1)
}
