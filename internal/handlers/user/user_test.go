package user

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cedra_storefront/internal/auth"
	"cedra_storefront/internal/cart"
	"cedra_storefront/internal/middleware"
	"cedra_storefront/internal/orders"
	"cedra_storefront/internal/profile"
	"cedra_storefront/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

type testEnv struct {
	router *gin.Engine
	orders *orders.Repository
	carts  *cart.Registry
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	docs := repository.New(repository.NewMemoryBackend())
	orderRepo := orders.NewRepository(docs)
	carts := cart.NewRegistry(cart.NewMemoryPersistence())

	cartH := NewCartHandler(carts, nil)
	orderH := NewOrderHandler(orderRepo)
	profileH := NewProfileHandler(profile.NewDefaultService(profile.NewStore(docs), orderRepo))

	r := gin.New()
	api := r.Group("/api", middleware.AuthRequired(testSecret))
	api.GET("/cart", cartH.GetCart)
	api.POST("/cart/add", cartH.AddToCart)
	api.PATCH("/cart/items/:id", cartH.UpdateQuantity)
	api.DELETE("/cart/items/:id", cartH.RemoveFromCart)
	api.DELETE("/cart", cartH.ClearCart)
	api.GET("/cart/ws", cartH.CartWebSocket)
	api.GET("/orders/mine", orderH.GetMyOrders)
	api.GET("/orders/:number", orderH.GetOrderByNumber)
	api.GET("/profile", profileH.GetProfile)
	api.PUT("/profile", profileH.UpdateProfile)

	return &testEnv{router: r, orders: orderRepo, carts: carts}
}

func (e *testEnv) do(t *testing.T, id auth.Identity, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	token, err := auth.GenerateToken(testSecret, id, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	if out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w
}

var (
	asha  = auth.Identity{ID: "user-1", Email: "asha@example.com", Name: "Asha"}
	ravi  = auth.Identity{ID: "user-2", Email: "ravi@example.com", Name: "Ravi"}
	staff = auth.Identity{ID: "admin-1", Email: "ops@cedra.shop", Role: "admin"}
)

type cartResponse struct {
	Items []cart.Item `json:"items"`
	Count int         `json:"count"`
	Total int64       `json:"total"`
	Item  cart.Item   `json:"item"`
}

func TestCart_CRUD(t *testing.T) {
	env := setup(t)

	var resp cartResponse
	w := env.do(t, asha, http.MethodGet, "/api/cart", nil, &resp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp.Items)

	w = env.do(t, asha, http.MethodPost, "/api/cart/add", cart.Item{ProductID: "p1", Name: "Kurta", UnitPrice: 150000, Quantity: 1, Size: "M"}, &resp)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, asha, http.MethodPost, "/api/cart/add", cart.Item{ProductID: "p1", Name: "Kurta", UnitPrice: 150000, Quantity: 1, Size: "M"}, &resp)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, int64(300000), resp.Total)
	lineID := resp.Item.ID

	w = env.do(t, asha, http.MethodPatch, "/api/cart/items/"+lineID, gin.H{"quantity": 5}, &resp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, resp.Count)

	w = env.do(t, asha, http.MethodPatch, "/api/cart/items/unknown", gin.H{"quantity": 1}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, asha, http.MethodDelete, "/api/cart/items/"+lineID, nil, &resp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp.Items)

	// Le panier d'un autre utilisateur reste séparé
	env.do(t, asha, http.MethodPost, "/api/cart/add", cart.Item{ProductID: "p2", UnitPrice: 100, Quantity: 1}, nil)
	env.do(t, ravi, http.MethodGet, "/api/cart", nil, &resp)
	assert.Empty(t, resp.Items)

	w = env.do(t, asha, http.MethodDelete, "/api/cart", nil, &resp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp.Items)
}

func TestCart_AddInvalidItem(t *testing.T) {
	env := setup(t)
	w := env.do(t, asha, http.MethodPost, "/api/cart/add", cart.Item{ProductID: "p1", Quantity: 0}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCartWebSocket_WithoutSubscriber(t *testing.T) {
	env := setup(t)
	w := env.do(t, asha, http.MethodGet, "/api/cart/ws", nil, nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func createOrder(t *testing.T, repo *orders.Repository, number string, id auth.Identity) orders.Order {
	t.Helper()
	o, err := repo.Create(context.Background(), orders.NewOrder(orders.Draft{
		OrderNumber: number,
		IdentityID:  id.ID,
		Email:       id.Email,
		Items:       []orders.Item{{ProductID: "p1", Name: "Kurta", UnitPrice: 150000, Quantity: 1}},
		ShippingAddress: orders.ShippingAddress{
			FullName: "Asha Rao", Email: id.Email, Phone: "9876543210",
			AddressLine: "12 MG Road, Indiranagar", City: "Bengaluru", State: "Karnataka", Pincode: "560038",
		},
		Currency:         "INR",
		PaymentMethod:    "razorpay",
		PaymentReference: "pay_" + number,
	}))
	require.NoError(t, err)
	return o
}

func TestOrders_MineAndOwnership(t *testing.T) {
	env := setup(t)
	createOrder(t, env.orders, "ORD-1", asha)
	createOrder(t, env.orders, "ORD-2", ravi)

	var mine struct {
		Orders []orders.Order `json:"orders"`
	}
	w := env.do(t, asha, http.MethodGet, "/api/orders/mine", nil, &mine)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, mine.Orders, 1)
	assert.Equal(t, "ORD-1", mine.Orders[0].OrderNumber)

	var one orders.Order
	w = env.do(t, asha, http.MethodGet, "/api/orders/ORD-1", nil, &one)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pay_ORD-1", one.PaymentReference)

	w = env.do(t, asha, http.MethodGet, "/api/orders/ORD-2", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, staff, http.MethodGet, "/api/orders/ORD-2", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, asha, http.MethodGet, "/api/orders/ORD-404", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrders_MineEmpty(t *testing.T) {
	env := setup(t)
	var mine struct {
		Orders []orders.Order `json:"orders"`
	}
	w := env.do(t, ravi, http.MethodGet, "/api/orders/mine", nil, &mine)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, mine.Orders)
	assert.Empty(t, mine.Orders)
}

type profileResponse struct {
	Shipping orders.ShippingAddress `json:"shipping"`
	Source   profile.Source         `json:"source"`
	Code     string                 `json:"code"`
}

func TestProfile_GetAndUpdate(t *testing.T) {
	env := setup(t)

	var resp profileResponse
	w := env.do(t, asha, http.MethodGet, "/api/profile", nil, &resp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, profile.SourceIdentityFields, resp.Source)
	assert.Equal(t, "Asha", resp.Shipping.FullName)

	input := orders.ShippingAddress{
		FullName: "Asha Rao", Email: "Asha@Example.com ", Phone: "9876543210",
		AddressLine: "12 MG Road, Indiranagar", City: "Bengaluru", State: "Karnataka", Pincode: "560038",
	}
	w = env.do(t, asha, http.MethodPut, "/api/profile", input, &resp)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "asha@example.com", resp.Shipping.Email)

	w = env.do(t, asha, http.MethodGet, "/api/profile", nil, &resp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, profile.SourceSavedProfile, resp.Source)
	assert.Equal(t, "560038", resp.Shipping.Pincode)

	input.Phone = "12345"
	w = env.do(t, asha, http.MethodPut, "/api/profile", input, &resp)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "invalid_shipping", resp.Code)
}
