package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config regroupe toute la configuration du serveur, lue depuis l'environnement.
type Config struct {
	Port        string   `env:"PORT" envDefault:"8080"`
	BaseURL     string   `env:"BASE_URL" envDefault:"http://localhost:8080"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	JWTSecret   string   `env:"JWT_SECRET,required,notEmpty"`

	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	// memory | scylla
	StoreDriver    string   `env:"STORE_DRIVER" envDefault:"scylla"`
	ScyllaHosts    []string `env:"SCYLLA_HOSTS" envSeparator:"," envDefault:"127.0.0.1"`
	ScyllaKeyspace string   `env:"SCYLLA_KS_STOREFRONT_KEYSPACE" envDefault:"ks_storefront"`
	ScyllaUsername string   `env:"SCYLLA_KS_STOREFRONT_ROLE"`
	ScyllaPassword string   `env:"SCYLLA_KS_STOREFRONT_PASSWORD"`

	// razorpay | stripe
	GatewayProvider   string `env:"GATEWAY_PROVIDER" envDefault:"razorpay"`
	RazorpayKeyID     string `env:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret string `env:"RAZORPAY_KEY_SECRET"`
	StripeSecretKey   string `env:"STRIPE_SECRET_KEY"`
	GatewayScriptURL  string `env:"GATEWAY_SCRIPT_URL" envDefault:"https://checkout.razorpay.com/v1/checkout.js"`
	Currency          string `env:"CHECKOUT_CURRENCY" envDefault:"INR"`

	// Montants en unités mineures (paise)
	ShippingFlatCost      int64 `env:"SHIPPING_FLAT_COST" envDefault:"0"`
	ShippingFreeThreshold int64 `env:"SHIPPING_FREE_THRESHOLD" envDefault:"0"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM" envDefault:"noreply@cedra.shop"`
}

// Load charge le fichier .env (s'il existe) puis parse l'environnement.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  Aucun fichier .env trouvé — on continue avec les variables d'environnement du système")
	} else {
		log.Println("✅ Fichier .env chargé avec succès")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.StoreDriver) {
	case "memory", "scylla":
	default:
		return fmt.Errorf("STORE_DRIVER inconnu: %q", c.StoreDriver)
	}

	switch strings.ToLower(c.GatewayProvider) {
	case "razorpay":
		if c.RazorpayKeyID == "" || c.RazorpayKeySecret == "" {
			return fmt.Errorf("RAZORPAY_KEY_ID et RAZORPAY_KEY_SECRET sont requis")
		}
	case "stripe":
		if c.StripeSecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY est requis")
		}
	default:
		return fmt.Errorf("GATEWAY_PROVIDER inconnu: %q", c.GatewayProvider)
	}

	if c.ShippingFlatCost < 0 || c.ShippingFreeThreshold < 0 {
		return fmt.Errorf("les montants de livraison doivent être positifs")
	}
	return nil
}

// PublicKeyID retourne l'identifiant de clé exposé au widget côté navigateur.
func (c *Config) PublicKeyID() string {
	if strings.ToLower(c.GatewayProvider) == "razorpay" {
		return c.RazorpayKeyID
	}
	return ""
}
