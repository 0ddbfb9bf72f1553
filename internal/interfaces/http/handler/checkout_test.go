package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	appcatalog "github.com/omkarjtg/ecomm/internal/application/catalog"
	appcheckout "github.com/omkarjtg/ecomm/internal/application/checkout"
	"github.com/omkarjtg/ecomm/internal/application/notice"
	"github.com/omkarjtg/ecomm/internal/domain/catalog"
	"github.com/omkarjtg/ecomm/internal/domain/checkout"
	"github.com/omkarjtg/ecomm/internal/domain/identity"
	"github.com/omkarjtg/ecomm/internal/domain/trade"
	"github.com/omkarjtg/ecomm/internal/infrastructure/config"
	"github.com/omkarjtg/ecomm/internal/infrastructure/localstore"
	"github.com/omkarjtg/ecomm/internal/infrastructure/payment"
	"github.com/omkarjtg/ecomm/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signedIn struct{}

func (signedIn) CurrentUser() (identity.User, bool) {
	return identity.User{ID: 42, Username: "jane", Email: "jane@example.com"}, true
}

type stubGateway struct {
	sessions int
}

func (g *stubGateway) CreateSession(_ context.Context, amount int64, currency, receipt string) (checkout.Session, error) {
	g.sessions++
	return checkout.Session{GatewayOrderID: "order_1", Amount: amount, Currency: currency, Receipt: receipt}, nil
}

func (g *stubGateway) Verify(context.Context, checkout.WidgetOutcome) (bool, error) {
	return true, nil
}

type unusedOrders struct{}

func (unusedOrders) Create(context.Context, trade.CreateOrderRequest, string) (trade.Order, error) {
	return trade.Order{OrderID: 1}, nil
}

func (unusedOrders) DecrementStock(context.Context, int64, int) error { return nil }

type checkoutFixture struct {
	api     *stubProductAPI
	store   *appcatalog.Store
	gateway *stubGateway
	engine  *gin.Engine
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	mem := localstore.NewMemory()
	t.Cleanup(func() { _ = mem.Close() })

	api := newStubProductAPI(testProduct(1, "Phone", 3))
	notices := notice.NewCenter()
	store := appcatalog.NewStore(context.Background(), api, mem, notices, nil)
	gateway := &stubGateway{}
	flow := appcheckout.NewFlow(appcheckout.Deps{
		Cart:     store,
		Buyer:    signedIn{},
		Payments: gateway,
		Orders:   unusedOrders{},
		Stock:    unusedOrders{},
		Storage:  mem,
		Widget: payment.NewWidget(payment.NewGatewayConfig(config.PaymentConfig{
			KeyID: "rzp_test_key", Currency: "INR", MerchantName: "Storefront",
		})),
		Notices: notices,
	})
	h := NewCheckoutHandler(flow, notices)

	r := gin.New()
	r.GET("/cart/checkout", h.Current)
	r.POST("/cart/checkout", h.Begin)
	r.POST("/cart/checkout/payment", h.Payment)
	r.POST("/cart/checkout/sandbox", h.Sandbox)
	r.POST("/cart/checkout/resume", h.Resume)

	return &checkoutFixture{api: api, store: store, gateway: gateway, engine: r}
}

func dataMap(t *testing.T, resp dto.Response) map[string]any {
	t.Helper()
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data is %T", resp.Data)
	return data
}

func TestCheckoutHandler_CurrentWithoutIntent(t *testing.T) {
	f := newCheckoutFixture(t)

	w := serve(f.engine, http.MethodGet, "/cart/checkout", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(checkout.StateViewingCart), dataMap(t, decodeResponse(t, w))["state"])
}

func TestCheckoutHandler_BeginEmptyCart(t *testing.T) {
	f := newCheckoutFixture(t)

	w := serve(f.engine, http.MethodPost, "/cart/checkout", "")

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeEmptyCart, resp.Error.Code)
	assert.Equal(t, string(checkout.StateViewingCart), dataMap(t, resp)["state"])
	assert.Zero(t, f.gateway.sessions)
}

func TestCheckoutHandler_BeginStockViolation(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, f.store.AddToCart(ctx, testProduct(1, "Phone", 3)))
	}
	f.api.mu.Lock()
	f.api.products = []catalog.Product{testProduct(1, "Phone", 1)}
	f.api.mu.Unlock()
	require.NoError(t, f.store.Refresh(ctx))

	w := serve(f.engine, http.MethodPost, "/cart/checkout", "")

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeInsufficientStock, resp.Error.Code)
	data := dataMap(t, resp)
	assert.Equal(t, string(checkout.StateError), data["state"])
	violations, ok := data["violations"].([]any)
	require.True(t, ok)
	require.Len(t, violations, 1)
	v := violations[0].(map[string]any)
	assert.EqualValues(t, 1, v["productId"])
	assert.EqualValues(t, 3, v["requested"])
	assert.EqualValues(t, 1, v["available"])
	assert.Zero(t, f.gateway.sessions)
}

func TestCheckoutHandler_BeginOpensWidget(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.AddToCart(ctx, testProduct(1, "Phone", 3)))
	require.NoError(t, f.store.Refresh(ctx))

	w := serve(f.engine, http.MethodPost, "/cart/checkout", "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := dataMap(t, decodeResponse(t, w))
	assert.Equal(t, string(checkout.StateAwaitingPayment), data["state"])
	widget, ok := data["widget"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "order_1", widget["order_id"])
	assert.Equal(t, 1, f.gateway.sessions)
}

func TestCheckoutHandler_PaymentRejectsIncompleteOutcome(t *testing.T) {
	f := newCheckoutFixture(t)

	w := serve(f.engine, http.MethodPost, "/cart/checkout/payment", `{"kind":"success","paymentId":"pay_1"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidInput, decodeResponse(t, w).Error.Code)
}

func TestCheckoutHandler_SandboxDisabled(t *testing.T) {
	f := newCheckoutFixture(t)

	w := serve(f.engine, http.MethodPost, "/cart/checkout/sandbox", "")

	require.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, appcheckout.ErrSandboxDisabled.Message, resp.Error.Message)
}

func TestCheckoutHandler_ResumeWithoutFailure(t *testing.T) {
	f := newCheckoutFixture(t)

	w := serve(f.engine, http.MethodPost, "/cart/checkout/resume", "")

	require.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, appcheckout.ErrNoCheckout.Message, resp.Error.Message)
	assert.Equal(t, string(checkout.StateViewingCart), dataMap(t, resp)["state"])
}
