package config

import (
	"os"
	"strings"
)

// Config carries everything the checkout service reads from the
// environment. Provider credentials are secrets and must never be logged.
type Config struct {
	HTTPAddr    string
	DatabaseURL string
	RedisAddr   string
	JWTSecret   string

	KafkaBrokers []string
	KafkaTopic   string

	StripeSecretKey string
	StripeBaseURL   string
	PayPalClientID  string
	PayPalSecret    string
	PayPalBaseURL   string

	// CardCurrency is charged in minor units, WalletCurrency as a
	// two-decimal string.
	CardCurrency   string
	WalletCurrency string

	// ShippingFee is a flat display-only fee on the checkout summary,
	// in major units.
	ShippingFee int64

	// AppBaseURL is where providers send the browser back to.
	// FrontendBaseURL is where this service sends the browser after a
	// terminal result.
	AppBaseURL      string
	FrontendBaseURL string
}

func Load() Config {
	return Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   getenv("REDIS_ADDR", "localhost:6379"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		KafkaBrokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getenv("KAFKA_TOPIC", "checkout.events"),

		StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),
		StripeBaseURL:   getenv("STRIPE_BASE_URL", "https://api.stripe.com"),
		PayPalClientID:  os.Getenv("PAYPAL_CLIENT_ID"),
		PayPalSecret:    os.Getenv("PAYPAL_SECRET"),
		PayPalBaseURL:   getenv("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"),

		CardCurrency:   getenv("CARD_CURRENCY", "mad"),
		WalletCurrency: getenv("WALLET_CURRENCY", "USD"),
		ShippingFee:    50,

		AppBaseURL:      getenv("APP_BASE_URL", "http://localhost:8080"),
		FrontendBaseURL: getenv("FRONTEND_BASE_URL", "http://localhost:3000"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
