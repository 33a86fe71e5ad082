package main

import (
	"context"
	"log"
	"strings"
	"time"

	"cedra_storefront/internal/cart"
	"cedra_storefront/internal/checkout"
	"cedra_storefront/internal/config"
	"cedra_storefront/internal/database"
	"cedra_storefront/internal/gateway"
	"cedra_storefront/internal/handlers/admin"
	"cedra_storefront/internal/handlers/payement"
	"cedra_storefront/internal/handlers/user"
	"cedra_storefront/internal/orders"
	"cedra_storefront/internal/payment"
	"cedra_storefront/internal/profile"
	"cedra_storefront/internal/repository"
	"cedra_storefront/internal/routes"
	"cedra_storefront/internal/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Configuration invalide: %v", err)
	}

	ctx := context.Background()

	rdb, err := database.ConnectRedis(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer rdb.Close()

	backend, closeStore := openDocumentStore(cfg)
	defer closeStore()
	docs := repository.New(backend)

	provider := newProvider(cfg)
	log.Printf("✅ Passerelle de paiement: %s", provider.Name())

	orderRepo := orders.NewRepository(docs)
	profiles := profile.NewDefaultService(profile.NewStore(docs), orderRepo)
	cartPersistence := cart.NewRedisPersistence(rdb)
	carts := cart.NewRegistry(cartPersistence)
	mailer := utils.NewMailer(cfg)
	if !mailer.Enabled() {
		log.Println("⚠️ SMTP non configuré : aucun e-mail de confirmation ne sera envoyé")
	}

	// Le tunnel appelle les endpoints de confiance en HTTP, comme le navigateur
	adapter := payment.NewAdapter(
		payment.NewBackendClient(cfg.BaseURL, nil),
		payment.NewRedisHost(rdb, payement.DefaultWidgetTimeout+time.Minute),
		payment.NewScriptProbe(cfg.GatewayScriptURL, nil),
		cfg.PublicKeyID(),
	)

	sessions := checkout.NewSessions(func(ctx context.Context, identityID string) (*checkout.Machine, error) {
		store, err := carts.For(ctx, identityID)
		if err != nil {
			return nil, err
		}
		return checkout.New(checkout.Deps{
			Cart:          store,
			Payments:      adapter,
			Orders:        orderRepo,
			Profiles:      profiles,
			Notifier:      mailer,
			Shipping:      checkout.ShippingPolicy{FlatCost: cfg.ShippingFlatCost, FreeThreshold: cfg.ShippingFreeThreshold},
			Currency:      cfg.Currency,
			PaymentMethod: provider.Name(),
		}), nil
	})

	handlers := routes.Handlers{
		Cart:        user.NewCartHandler(carts, cartPersistence),
		Orders:      user.NewOrderHandler(orderRepo),
		Profile:     user.NewProfileHandler(profiles),
		Checkout:    payement.NewCheckoutHandler(sessions, payment.NewBroker(), payement.DefaultWidgetTimeout),
		Gateway:     gateway.NewHandler(provider, gateway.NewReceiptCache(rdb), gateway.NewLedger(docs), cfg.Currency),
		AdminOrders: admin.NewOrdersHandler(orderRepo, mailer),
	}

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	routes.RegisterRoutes(r, []byte(cfg.JWTSecret), rdb, handlers)

	log.Println("🚀 Serveur Cedra lancé sur le port", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Arrêt du serveur: %v", err)
	}
}

// openDocumentStore choisit le stockage des documents selon STORE_DRIVER.
func openDocumentStore(cfg *config.Config) (repository.Backend, func()) {
	if strings.ToLower(cfg.StoreDriver) == "memory" {
		log.Println("⚠️ Stockage en mémoire : les commandes seront perdues au redémarrage")
		return repository.NewMemoryBackend(), func() {}
	}

	manager := database.NewScyllaManager(cfg)
	session, err := manager.GetSession(cfg.ScyllaKeyspace)
	if err != nil {
		log.Fatalf("❌ Connexion ScyllaDB: %v", err)
	}
	if err := database.EnsureDocumentSchema(session); err != nil {
		log.Fatalf("❌ %v", err)
	}

	backend := repository.NewScyllaBackend(func() (*gocql.Session, error) {
		return manager.GetSession(cfg.ScyllaKeyspace)
	})
	return backend, manager.Close
}

func newProvider(cfg *config.Config) gateway.Provider {
	switch strings.ToLower(cfg.GatewayProvider) {
	case "stripe":
		return gateway.NewStripeProvider(cfg.StripeSecretKey)
	default:
		return gateway.NewRazorpayProvider(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
	}
}
