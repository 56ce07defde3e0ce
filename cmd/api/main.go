package main

import (
	"context"
	"database/sql"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/medinashop/checkout-backend/internal/auth"
	"github.com/medinashop/checkout-backend/internal/cart"
	"github.com/medinashop/checkout-backend/internal/checkout"
	"github.com/medinashop/checkout-backend/internal/config"
	"github.com/medinashop/checkout-backend/internal/events"
	"github.com/medinashop/checkout-backend/internal/logging"
	"github.com/medinashop/checkout-backend/internal/order"
	"github.com/medinashop/checkout-backend/internal/payment"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logging.New()

	app := fiber.New()
	setupCORS(app)

	db := mustOpenDB(cfg.DatabaseURL)
	defer db.Close()
	ensureSchema(db)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	sessions := checkout.NewRedisSessionStore(rdb)

	// event publishing is optional; without brokers the nil producer is a
	// no-op
	var producer *events.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, "checkout-api", 256, log)
	}
	producer.Start(context.Background())
	defer producer.Close()

	cartService := cart.NewService(cart.NewPostgresRepository(db))
	orderService := order.NewService(order.NewPostgresRepository(db))

	checkoutService := checkout.NewService(checkout.Deps{
		Log:      log,
		Carts:    cartService,
		Orders:   orderService,
		Sessions: sessions,
		Card:     payment.NewStripeClient(cfg.StripeSecretKey, cfg.StripeBaseURL),
		Wallet:   payment.NewPayPalClient(cfg.PayPalClientID, cfg.PayPalSecret, cfg.PayPalBaseURL),
		Producer: producer,
		Config:   cfg,
	})
	checkoutHandler := checkout.NewHandler(checkoutService, orderService, log)

	// provider callbacks and terminal views come back without a bearer
	// token, so they are registered ahead of the JWT middleware
	checkoutHandler.RegisterPublicRoutes(app)

	auth.RegisterJWT(app, cfg.JWTSecret)
	checkoutHandler.RegisterProtectedRoutes(app)

	log.Info("starting server", "addr", cfg.HTTPAddr)
	if err := app.Listen(cfg.HTTPAddr); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func setupCORS(app *fiber.App) {
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
}

func mustOpenDB(dbURL string) *sql.DB {
	if dbURL == "" {
		panic("DATABASE_URL is not set")
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		panic(err)
	}
	if err := db.Ping(); err != nil {
		panic(err)
	}
	return db
}

func ensureSchema(db *sql.DB) {
	// orders table storing the payment lifecycle; amounts in minor units
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS orders (
        "orderID" SERIAL PRIMARY KEY,
        "userID" INT NOT NULL,
        "providerRef" TEXT,
        "amountMinor" BIGINT NOT NULL DEFAULT 0,
        currency TEXT NOT NULL DEFAULT '',
        status TEXT NOT NULL,
        "createdAt" TEXT,
        "updatedAt" TEXT
    )`); err != nil {
		panic(err)
	}
	// the provider transaction id doubles as an idempotency key, so
	// duplicate callbacks collapse to one row
	if _, err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS orders_provider_ref_idx
        ON orders ("providerRef")`); err != nil {
		panic(err)
	}
	// the cart lives as a jsonb product->quantity map on the user row
	if _, err := db.Exec(`ALTER TABLE users ADD COLUMN IF NOT EXISTS cart jsonb NOT NULL DEFAULT '{}'`); err != nil {
		panic(err)
	}
}
