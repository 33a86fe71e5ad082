package payement

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cedra_storefront/internal/auth"
	"cedra_storefront/internal/cart"
	"cedra_storefront/internal/checkout"
	"cedra_storefront/internal/middleware"
	"cedra_storefront/internal/orders"
	"cedra_storefront/internal/payment"
	"cedra_storefront/internal/profile"
	"cedra_storefront/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

// stubBackend répond comme les endpoints de confiance.
type stubBackend struct {
	mu      sync.Mutex
	intents []payment.IntentRequest
	valid   bool
}

func (s *stubBackend) CreateIntent(_ context.Context, req payment.IntentRequest) (payment.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents = append(s.intents, req)
	return payment.Intent{ID: "order_" + req.Receipt, Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt}, nil
}

func (s *stubBackend) Verify(context.Context, payment.VerifyRequest) error {
	if !s.valid {
		return assert.AnError
	}
	return nil
}

type testEnv struct {
	router  *gin.Engine
	backend *stubBackend
	carts   *cart.Registry
	orders  *orders.Repository
}

type response struct {
	Status           string                     `json:"status"`
	Code             string                     `json:"code"`
	Error            string                     `json:"error"`
	PaymentReference string                     `json:"payment_reference"`
	Widget           payment.WidgetSession      `json:"widget"`
	Order            orders.Order               `json:"order"`
	Checkout         checkout.View              `json:"checkout"`
	Fields           []checkout.ValidationError `json:"fields"`
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	docs := repository.New(repository.NewMemoryBackend())
	orderRepo := orders.NewRepository(docs)
	profiles := profile.NewDefaultService(profile.NewStore(docs), orderRepo)
	carts := cart.NewRegistry(cart.NewMemoryPersistence())
	backend := &stubBackend{valid: true}
	adapter := payment.NewAdapter(backend, payment.NewLocalHost(), nil, "rzp_test")

	sessions := checkout.NewSessions(func(ctx context.Context, identityID string) (*checkout.Machine, error) {
		store, err := carts.For(ctx, identityID)
		if err != nil {
			return nil, err
		}
		return checkout.New(checkout.Deps{Cart: store, Payments: adapter, Orders: orderRepo, Profiles: profiles}), nil
	})
	h := NewCheckoutHandler(sessions, payment.NewBroker(), time.Minute)

	r := gin.New()
	api := r.Group("/api", middleware.AuthRequired(testSecret))
	api.GET("/checkout", h.GetCheckout)
	api.POST("/checkout/identify", h.Identify)
	api.POST("/checkout/shipping", h.SubmitShipping)
	api.POST("/checkout/shipping/edit", h.EditShipping)
	api.POST("/checkout/buy-now", h.BuyNow)
	api.POST("/checkout/pay", h.Pay)
	api.POST("/checkout/pay/callback", h.PayCallback)
	api.POST("/checkout/continue", h.ContinueShopping)
	api.DELETE("/checkout", h.Reset)

	return &testEnv{router: r, backend: backend, carts: carts, orders: orderRepo}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	token, err := auth.GenerateToken(testSecret, auth.Identity{ID: "user-1", Email: "asha@example.com", Name: "Asha"}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func (e *testEnv) fillCart(t *testing.T) {
	t.Helper()
	store, err := e.carts.For(context.Background(), "user-1")
	require.NoError(t, err)
	_, err = store.Add(context.Background(), cart.Item{ProductID: "p1", Name: "Kurta", UnitPrice: 150000, Quantity: 2})
	require.NoError(t, err)
}

func shipping() checkout.ShippingDetails {
	return checkout.ShippingDetails{
		FullName:    "Asha Rao",
		Email:       "asha@example.com",
		Phone:       "9876543210",
		AddressLine: "12 MG Road, Indiranagar",
		City:        "Bengaluru",
		State:       "Karnataka",
		Pincode:     "560038",
	}
}

func (e *testEnv) toPayment(t *testing.T) {
	t.Helper()
	w, _ := e.do(t, http.MethodPost, "/api/checkout/identify", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, resp := e.do(t, http.MethodPost, "/api/checkout/shipping", shipping())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, checkout.StepPayment, resp.Checkout.Step)
}

func TestCheckout_FullFlow(t *testing.T) {
	env := setup(t)
	env.fillCart(t)
	env.toPayment(t)

	w, resp := env.do(t, http.MethodPost, "/api/checkout/pay", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, "awaiting_payment", resp.Status)
	assert.Equal(t, int64(300000), resp.Widget.Amount)
	assert.Equal(t, "rzp_test", resp.Widget.KeyID)
	assert.Equal(t, "9876543210", resp.Widget.Prefill.Contact)
	assert.True(t, resp.Checkout.Paying)

	w, resp = env.do(t, http.MethodPost, "/api/checkout/pay/callback", payment.WidgetResult{
		Outcome:        payment.OutcomeSuccess,
		GatewayOrderID: resp.Widget.GatewayOrderID,
		PaymentID:      "pay_1",
		Signature:      "sig",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "confirmed", resp.Status)
	assert.Equal(t, int64(300000), resp.Order.Total)
	assert.Equal(t, "pay_1", resp.Order.PaymentReference)
	assert.Equal(t, checkout.StepConfirmed, resp.Checkout.Step)

	store, err := env.carts.For(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, store.Items())

	mine, err := env.orders.FindByEmail(context.Background(), "asha@example.com")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	w, resp = env.do(t, http.MethodPost, "/api/checkout/continue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, checkout.StepIdentify, resp.Checkout.Step)
}

func TestCheckout_InvalidShipping(t *testing.T) {
	env := setup(t)
	env.do(t, http.MethodPost, "/api/checkout/identify", nil)

	bad := shipping()
	bad.Pincode = "1234"
	w, resp := env.do(t, http.MethodPost, "/api/checkout/shipping", bad)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "invalid_shipping", resp.Code)
	require.Len(t, resp.Fields, 1)
	assert.Equal(t, "pincode", resp.Fields[0].Field)
	assert.Equal(t, checkout.StepShippingDetails, resp.Checkout.Step)
}

func TestCheckout_CancelThenRetryKeepsOrderNumber(t *testing.T) {
	env := setup(t)
	env.fillCart(t)
	env.toPayment(t)

	w, first := env.do(t, http.MethodPost, "/api/checkout/pay", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	w, resp := env.do(t, http.MethodPost, "/api/checkout/pay/callback", payment.WidgetResult{Outcome: payment.OutcomeDismissed})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "cancelled", resp.Status)
	assert.Equal(t, checkout.StepPayment, resp.Checkout.Step)
	assert.Equal(t, shipping(), resp.Checkout.Shipping)

	w, second := env.do(t, http.MethodPost, "/api/checkout/pay", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, first.Widget.Receipt, second.Widget.Receipt)
}

func TestCheckout_VerificationFailure(t *testing.T) {
	env := setup(t)
	env.backend.valid = false
	env.fillCart(t)
	env.toPayment(t)

	w, resp := env.do(t, http.MethodPost, "/api/checkout/pay", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	w, resp = env.do(t, http.MethodPost, "/api/checkout/pay/callback", payment.WidgetResult{
		Outcome:        payment.OutcomeSuccess,
		GatewayOrderID: resp.Widget.GatewayOrderID,
		PaymentID:      "pay_9",
		Signature:      "forged",
	})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "verification_failed", resp.Code)
	assert.Equal(t, "pay_9", resp.PaymentReference)

	all, err := env.orders.ListAll(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCheckout_PayFailsFastOnEmptyCart(t *testing.T) {
	env := setup(t)
	env.toPayment(t)

	w, resp := env.do(t, http.MethodPost, "/api/checkout/pay", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "invalid_order", resp.Code)
	assert.Equal(t, checkout.StepShippingDetails, resp.Checkout.Step)
	assert.Empty(t, env.backend.intents)
}

func TestCheckout_SecondPayWhileWidgetOpen(t *testing.T) {
	env := setup(t)
	env.fillCart(t)
	env.toPayment(t)

	w, _ := env.do(t, http.MethodPost, "/api/checkout/pay", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	w, resp := env.do(t, http.MethodPost, "/api/checkout/pay", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "payment_in_progress", resp.Code)

	w, resp = env.do(t, http.MethodDelete, "/api/checkout", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "payment_in_progress", resp.Code)
}

func TestCheckout_CallbackWithoutPendingPayment(t *testing.T) {
	env := setup(t)
	env.toPayment(t)

	w, resp := env.do(t, http.MethodPost, "/api/checkout/pay/callback", payment.WidgetResult{Outcome: payment.OutcomeSuccess})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "no_pending_payment", resp.Code)

	w, _ = env.do(t, http.MethodPost, "/api/checkout/pay/callback", gin.H{"outcome": "maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckout_BuyNowLeavesCart(t *testing.T) {
	env := setup(t)
	env.fillCart(t)
	env.toPayment(t)

	w, resp := env.do(t, http.MethodPost, "/api/checkout/buy-now", cart.Item{ProductID: "p9", Name: "Saree", UnitPrice: 99900, Quantity: 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, resp.Checkout.BuyNow)
	assert.Equal(t, int64(99900), resp.Checkout.Total)

	w, resp = env.do(t, http.MethodPost, "/api/checkout/pay", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	w, resp = env.do(t, http.MethodPost, "/api/checkout/pay/callback", payment.WidgetResult{
		Outcome:        payment.OutcomeSuccess,
		GatewayOrderID: resp.Widget.GatewayOrderID,
		PaymentID:      "pay_2",
		Signature:      "sig",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(99900), resp.Order.Total)

	store, err := env.carts.For(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, store.Items(), 1)
}

func TestCheckout_ResetAndUnauthenticated(t *testing.T) {
	env := setup(t)
	env.toPayment(t)

	w, _ := env.do(t, http.MethodDelete, "/api/checkout", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := env.do(t, http.MethodGet, "/api/checkout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, checkout.StepIdentify, resp.Checkout.Step)

	req := httptest.NewRequest(http.MethodGet, "/api/checkout", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
