package routes

import (
	"net/http"

	"cedra_storefront/internal/gateway"
	"cedra_storefront/internal/handlers/admin"
	"cedra_storefront/internal/handlers/payement"
	"cedra_storefront/internal/handlers/user"
	"cedra_storefront/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Handlers regroupe les handlers montés par RegisterRoutes.
type Handlers struct {
	Cart        *user.CartHandler
	Orders      *user.OrderHandler
	Profile     *user.ProfileHandler
	Checkout    *payement.CheckoutHandler
	Gateway     *gateway.Handler
	AdminOrders *admin.OrdersHandler
}

// RegisterRoutes monte l'API. Sans client Redis, aucune limite de débit n'est appliquée.
func RegisterRoutes(r *gin.Engine, secret []byte, rdb *redis.Client, h Handlers) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Endpoints de confiance de la passerelle : limités par identité, hors limite par IP
	trusted := r.Group("/api", middleware.AuthRequired(secret))
	if rdb != nil {
		trusted.Use(middleware.GatewayRateLimit(rdb))
	}
	trusted.POST("/create-razorpay-order", h.Gateway.CreateOrder)
	trusted.POST("/verify-razorpay-signature", h.Gateway.VerifySignature)

	api := r.Group("/api")
	if rdb != nil {
		api.Use(middleware.APIRateLimit(rdb))
	}
	api.Use(middleware.AuthRequired(secret))

	// Panier
	cartGroup := api.Group("/cart")
	{
		cartGroup.GET("", h.Cart.GetCart)
		cartGroup.POST("/add", h.Cart.AddToCart)
		cartGroup.PATCH("/items/:id", h.Cart.UpdateQuantity)
		cartGroup.DELETE("/items/:id", h.Cart.RemoveFromCart)
		cartGroup.DELETE("", h.Cart.ClearCart)
		cartGroup.GET("/ws", h.Cart.CartWebSocket)
	}

	// Profil de livraison
	api.GET("/profile", h.Profile.GetProfile)
	api.PUT("/profile", h.Profile.UpdateProfile)

	// Tunnel de commande
	checkoutGroup := api.Group("/checkout")
	{
		checkoutGroup.GET("", h.Checkout.GetCheckout)
		checkoutGroup.POST("/identify", h.Checkout.Identify)
		checkoutGroup.POST("/shipping", h.Checkout.SubmitShipping)
		checkoutGroup.POST("/shipping/edit", h.Checkout.EditShipping)
		checkoutGroup.POST("/buy-now", h.Checkout.BuyNow)
		if rdb != nil {
			checkoutGroup.POST("/pay", middleware.PaymentRateLimit(rdb), h.Checkout.Pay)
		} else {
			checkoutGroup.POST("/pay", h.Checkout.Pay)
		}
		checkoutGroup.POST("/pay/callback", h.Checkout.PayCallback)
		checkoutGroup.POST("/continue", h.Checkout.ContinueShopping)
		checkoutGroup.DELETE("", h.Checkout.Reset)
	}

	// Commandes
	api.GET("/orders/mine", h.Orders.GetMyOrders)
	api.GET("/orders/:number", h.Orders.GetOrderByNumber)

	// Back-office
	adminGroup := api.Group("/admin", middleware.RequireAdmin)
	{
		adminGroup.GET("/orders", h.AdminOrders.ListOrders)
		adminGroup.PATCH("/orders/:id/status", h.AdminOrders.UpdateOrderStatus)
		adminGroup.GET("/payment-attempts", h.Gateway.PendingAttempts)
	}
}
