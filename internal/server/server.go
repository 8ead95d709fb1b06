// Package server assembles the Fiber application: middleware, services,
// handlers and routes.
package server

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/thishamdi/digital-store-api/internal/cache"
	"github.com/thishamdi/digital-store-api/internal/config"
	"github.com/thishamdi/digital-store-api/internal/handlers"
	"github.com/thishamdi/digital-store-api/internal/metrics"
	"github.com/thishamdi/digital-store-api/internal/middleware"
	"github.com/thishamdi/digital-store-api/internal/models"
	"github.com/thishamdi/digital-store-api/internal/realtime"
	"github.com/thishamdi/digital-store-api/internal/services/account"
	"github.com/thishamdi/digital-store-api/internal/services/catalog"
	"github.com/thishamdi/digital-store-api/internal/services/events"
	"github.com/thishamdi/digital-store-api/internal/services/mailer"
	"github.com/thishamdi/digital-store-api/internal/services/order"
	"github.com/thishamdi/digital-store-api/internal/utils"
)

// Deps are the long-lived handles built in main. Redis and Hub may be nil.
type Deps struct {
	Config    config.Config
	DB        *gorm.DB
	Redis     *redis.Client
	Hub       *realtime.Hub
	Publisher events.Publisher
	Mailer    mailer.Mailer
}

// Services exposes what New built, for callers that need to reach past HTTP.
type Services struct {
	Accounts   *account.AccountService
	Categories *catalog.CategoryService
	Products   *catalog.ProductService
	Orders     *order.OrderService
}

func New(d Deps) (*fiber.App, *Services) {
	cfg := d.Config
	tokens := utils.NewTokenIssuer(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL(), cfg.RefreshTTL())

	svc := &Services{
		Accounts:   account.NewAccountService(d.DB, tokens, d.Mailer),
		Categories: catalog.NewCategoryService(d.DB),
		Products:   catalog.NewProductService(d.DB),
		Orders:     order.NewOrderService(d.DB, d.Publisher),
	}

	app := fiber.New(fiber.Config{
		AppName:      "digital-store-api",
		ErrorHandler: middleware.ErrorHandler,
		BodyLimit:    1 << 20,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.Middleware())
	app.Use(middleware.RequestLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     normalizeOrigins(cfg.CORSOrigin),
		AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length, X-Request-ID",
		AllowCredentials: true,
	}))

	app.Get("/healthz", healthz(d.DB, d.Redis))
	app.Get("/metrics", metrics.Handler())

	authH := handlers.NewAuthHandler(svc.Accounts, cfg.IsProduction())
	googleH := handlers.NewGoogleOAuthHandler(authH, cfg.GoogleClientID, cfg.GoogleSecret, cfg.GoogleRedirect, cfg.FrontendBaseURL)
	categoryH := handlers.NewCategoryHandler(svc.Categories)
	productH := handlers.NewProductHandler(svc.Products)
	orderH := handlers.NewOrderHandler(svc.Orders, cache.New(d.Redis, "order"))

	var limiterStore fiber.Storage
	if d.Redis != nil {
		limiterStore = middleware.NewRedisStorage(d.Redis, "limiter:")
	}
	otpLimit := middleware.OTPLimiter(limiterStore)

	jwt := middleware.JWTFromCookie(tokens)
	locals := middleware.AttachJWTLocals(svc.Accounts)
	isAdmin := middleware.RequireRoles(string(models.RoleAdmin))
	verified := middleware.RequireVerifiedEmail(cfg.RequireVerifiedEmail)

	authed := func(hs ...fiber.Handler) []fiber.Handler {
		return append([]fiber.Handler{jwt, locals}, hs...)
	}
	admin := func(hs ...fiber.Handler) []fiber.Handler {
		return authed(append([]fiber.Handler{isAdmin, verified}, hs...)...)
	}

	api := app.Group("/api/v1")

	auth := api.Group("/auth")
	auth.Post("/register", authH.Register)
	auth.Post("/login", authH.Login)
	auth.Post("/logout", authed(authH.Logout)...)
	auth.Post("/refresh-token", authH.RefreshToken)
	auth.Post("/forgot-password", otpLimit, authH.ForgotPassword)
	auth.Post("/reset-password", authH.ResetPassword)
	auth.Post("/send-verification", authed(otpLimit, authH.SendVerification)...)
	auth.Post("/verify-email", authed(authH.VerifyEmail)...)
	auth.Get("/me", authed(authH.Me)...)
	auth.Get("/google/start", googleH.GoogleStart)
	auth.Get("/google/callback", googleH.GoogleCallback)

	api.Get("/categories", categoryH.GetCategories)
	api.Get("/categories/:slug", categoryH.GetCategoryBySlug)
	api.Post("/categories", admin(categoryH.CreateCategory)...)

	api.Get("/products", productH.ListProducts)
	api.Get("/products/filters", productH.GetFilters)
	api.Get("/products/:slug", productH.GetProductBySlug)
	api.Post("/products", admin(productH.CreateProduct)...)
	api.Patch("/products/:id", admin(productH.UpdateProduct)...)
	api.Delete("/products/:id", admin(productH.DeleteProduct)...)

	api.Post("/orders", orderH.CreateOrder)
	api.Get("/orders/:code", orderH.GetOrder)
	api.Patch("/orders/:code", admin(orderH.UpdateOrder)...)

	if d.Hub != nil {
		app.Get("/ws/orders", admin(requireUpgrade, websocket.New(realtime.Handler(d.Hub)))...)
	}

	return app, svc
}

func requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func healthz(gdb *gorm.DB, rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		checks := fiber.Map{"database": "ok"}
		healthy := true

		if sqlDB, err := gdb.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			checks["database"] = "down"
			healthy = false
		}
		if rdb != nil {
			checks["redis"] = "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				checks["redis"] = "down"
				healthy = false
			}
		}

		if !healthy {
			return utils.Respond(c, fiber.StatusServiceUnavailable, "Unhealthy", checks)
		}
		return utils.OK(c, "OK", checks)
	}
}

// normalizeOrigins accepts "a,b" or "a, b" and returns what cors expects.
// Credentials are allowed, so a wildcard is never produced.
func normalizeOrigins(raw string) string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return "http://localhost:3000"
	}
	return strings.Join(out, ",")
}
