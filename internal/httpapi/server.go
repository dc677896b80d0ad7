// Package httpapi exposes the storefront and admin JSON API over fiber.
package httpapi

import (
	"context"
	"io"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kalakari/storefront/internal/auth"
	"github.com/kalakari/storefront/internal/checkout"
	"github.com/kalakari/storefront/internal/importer"
	"github.com/kalakari/storefront/internal/media"
	"github.com/kalakari/storefront/internal/store"
)

// Deps are the components the handlers call.
type Deps struct {
	Products   *store.ProductStore
	Orders     *store.OrderStore
	Analytics  *store.AnalyticsStore
	Categories *store.CategoryStore
	Users      *store.UserStore
	Wishlists  *store.WishlistStore
	Checkout   *checkout.Service
	Importer   *importer.Importer
	Media      *media.Store
	Tokens     *auth.Tokens
	// Ping reports database health for /healthz. Optional.
	Ping   func(ctx context.Context) error
	Logger *slog.Logger
}

// Options tune the fiber app.
type Options struct {
	CORSOrigins string
	UploadURL   string
	// BodyLimit caps request bodies in bytes; uploads and CSV files count.
	BodyLimit int
	// AccessLog receives one line per request. nil disables the access log.
	AccessLog io.Writer
	// ExposeInternal adds the cause of a 500 to the response body.
	ExposeInternal bool
}

type handlers struct {
	Deps
}

// New builds the fiber app with every route registered.
func New(deps Deps, opts Options) *fiber.App {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	deps.Logger = deps.Logger.With("component", "http")
	if opts.UploadURL == "" {
		opts.UploadURL = "/uploads"
	}

	app := fiber.New(fiber.Config{
		AppName:               "storefront",
		ErrorHandler:          ErrorHandler(deps.Logger, opts.ExposeInternal),
		BodyLimit:             opts.BodyLimit,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	if opts.AccessLog != nil {
		app.Use(logger.New(logger.Config{
			Output: opts.AccessLog,
			Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: opts.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	if deps.Media != nil {
		app.Static(opts.UploadURL, deps.Media.Dir())
	}

	h := &handlers{Deps: deps}
	h.routes(app)
	return app
}

func (h *handlers) routes(app *fiber.App) {
	app.Get("/healthz", h.health)

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", h.register)
	authGroup.Post("/login", h.login)

	api.Get("/categories", h.listCategories)
	api.Get("/categories/:slug", h.categoryBySlug)
	api.Get("/products", h.listProducts)
	api.Get("/products/:id", h.getProduct)
	api.Post("/orders", OptionalAuth(h.Tokens), h.placeOrder)
	api.Get("/orders/customer/:phone", h.ordersByPhone)

	me := api.Group("/me", RequireAuth(h.Tokens))
	me.Get("/", h.profile)
	me.Put("/", h.updateProfile)
	me.Get("/orders", h.myOrders)
	me.Get("/wishlist", h.wishlist)
	me.Post("/wishlist/:productId", h.addToWishlist)
	me.Delete("/wishlist/:productId", h.removeFromWishlist)

	admin := api.Group("/admin", RequireAuth(h.Tokens), RequireAdmin())

	admin.Get("/products", h.adminListProducts)
	admin.Post("/products", h.createProduct)
	admin.Get("/products/stats", h.productStats)
	admin.Post("/products/import-csv", h.importProducts)
	admin.Get("/products/export-csv", h.exportProducts)
	admin.Get("/products/:id", h.adminGetProduct)
	admin.Put("/products/:id", h.updateProduct)
	admin.Put("/products/:id/stock", h.setStock)
	admin.Delete("/products/:id", h.deactivateProduct)
	admin.Post("/products/:id/restore", h.restoreProduct)

	admin.Get("/categories", h.adminListCategories)
	admin.Post("/categories", h.createCategory)
	admin.Put("/categories/:id", h.updateCategory)
	admin.Delete("/categories/:id", h.deleteCategory)

	admin.Get("/orders", h.listOrders)
	admin.Get("/orders/:id", h.getOrder)
	admin.Put("/orders/:id/status", h.updateOrderStatus)

	admin.Get("/users", h.listUsers)
	admin.Post("/uploads", h.upload)

	analytics := admin.Group("/analytics")
	analytics.Get("/dashboard", h.dashboard)
	analytics.Get("/sales", h.sales)
	analytics.Get("/revenue", h.revenue)
	analytics.Get("/products", h.topProducts)
	analytics.Get("/inventory", h.inventory)
	analytics.Get("/customers", h.customers)
}

func (h *handlers) health(c *fiber.Ctx) error {
	if h.Ping != nil {
		if err := h.Ping(c.UserContext()); err != nil {
			h.Logger.WarnContext(c.UserContext(), "health check failed", slog.Any("error", err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
