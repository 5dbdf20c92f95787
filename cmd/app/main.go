package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/wichananm65/vendor-supply-backend/internal/address"
	"github.com/wichananm65/vendor-supply-backend/internal/apperr"
	"github.com/wichananm65/vendor-supply-backend/internal/cart"
	"github.com/wichananm65/vendor-supply-backend/internal/config"
	"github.com/wichananm65/vendor-supply-backend/internal/database"
	"github.com/wichananm65/vendor-supply-backend/internal/location"
	"github.com/wichananm65/vendor-supply-backend/internal/material"
	"github.com/wichananm65/vendor-supply-backend/internal/metrics"
	"github.com/wichananm65/vendor-supply-backend/internal/middleware"
	"github.com/wichananm65/vendor-supply-backend/internal/order"
	"github.com/wichananm65/vendor-supply-backend/internal/supplier"
	"github.com/wichananm65/vendor-supply-backend/internal/user"
)

func main() {
	cfg := config.Load()
	middleware.SetupLogging(cfg.LogLevel, cfg.LogFormat)

	if cfg.JWTSecret == "" {
		logrus.Fatal("JWT_SECRET is not set")
	}

	db := mustOpenDB(cfg.DatabaseURL)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logrus.WithError(err).Fatal("migrate database")
	}

	app := fiber.New(fiber.Config{ErrorHandler: apperr.ErrorHandler})
	setupCORS(app, cfg.CORSOrigins)
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	userService := user.NewService(user.NewPostgresRepository(db), cfg.JWTSecret)
	materialService := material.NewService(material.NewPostgresRepository(db), userService)
	cartService := cart.NewService(cart.NewPostgresRepository(db), materialService)
	addressService := address.NewService(address.NewPostgresRepository(db))
	orderService := order.NewService(order.Deps{
		Repo:        order.NewPostgresRepository(db),
		Catalog:     materialService,
		Carts:       cartService,
		Addresses:   addressService,
		Sequencer:   newSequencer(cfg.RedisURL, db),
		DeliveryFee: cfg.DeliveryFee,
	})
	supplierService := supplier.NewService(userService, materialService)

	var geocoder location.Geocoder = location.NewStaticGeocoder()
	if cfg.GeocoderURL != "" {
		geocoder = location.NewRemoteGeocoder(cfg.GeocoderURL, geocoder)
	}

	userHandler := user.NewHandler(userService)
	materialHandler := material.NewHandler(materialService)
	cartHandler := cart.NewHandler(cartService)
	orderHandler := order.NewHandler(orderService)
	addressHandler := address.NewHandler(addressService)

	userHandler.RegisterPublicRoutes(app)
	materialHandler.RegisterPublicRoutes(app)
	supplier.NewHandler(supplierService, geocoder).RegisterPublicRoutes(app)
	location.NewHandler(geocoder).RegisterPublicRoutes(app)

	app.Use(jwtware.New(jwtware.Config{
		SigningKey: []byte(cfg.JWTSecret),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return apperr.Write(c, apperr.Unauthorized("invalid or missing token"))
		},
	}))

	userHandler.RegisterProtectedRoutes(app)
	materialHandler.RegisterProtectedRoutes(app)
	cartHandler.RegisterProtectedRoutes(app)
	orderHandler.RegisterProtectedRoutes(app)
	addressHandler.RegisterProtectedRoutes(app)

	logrus.WithField("addr", cfg.Addr).Info("listening")
	if err := app.Listen(cfg.Addr); err != nil {
		logrus.WithError(err).Fatal("server stopped")
	}
}

func setupCORS(app *fiber.App, origins string) {
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
}

func mustOpenDB(dsn string) *sql.DB {
	if dsn == "" {
		logrus.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Open(ctx, dsn)
	if err != nil {
		logrus.WithError(err).Fatal("open database")
	}
	return db
}

// newSequencer prefers Redis for order numbers and falls back to the
// order_sequences table.
func newSequencer(redisURL string, db *sql.DB) order.Sequencer {
	if redisURL == "" {
		return order.NewPostgresSequencer(db)
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logrus.WithError(err).Fatal("parse REDIS_URL")
	}
	return order.NewRedisSequencer(redis.NewClient(opts))
}
