// Package di builds the storefront object graph from a config.Config.
package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/kalakari/storefront/cache"
	"github.com/kalakari/storefront/internal/auth"
	"github.com/kalakari/storefront/internal/checkout"
	"github.com/kalakari/storefront/internal/config"
	"github.com/kalakari/storefront/internal/events"
	"github.com/kalakari/storefront/internal/httpapi"
	"github.com/kalakari/storefront/internal/importer"
	"github.com/kalakari/storefront/internal/media"
	"github.com/kalakari/storefront/internal/storage"
	"github.com/kalakari/storefront/internal/store"
	"github.com/uptrace/bun"
)

// Container owns the singletons of a running storefront: the database, the cache,
// the event publisher, the stores and the HTTP app built over them.
type Container struct {
	config       config.Config
	logger       *slog.Logger
	db           *bun.DB
	cacheService cache.CacheService
	publisher    events.Publisher

	products   *store.ProductStore
	orders     *store.OrderStore
	analytics  *store.AnalyticsStore
	categories *store.CategoryStore
	users      *store.UserStore
	wishlists  *store.WishlistStore
	checkout   *checkout.Service
	importer   *importer.Importer
	media      *media.Store
	tokens     *auth.Tokens
	app        *fiber.App
}

type options struct {
	logger     *slog.Logger
	publisher  events.Publisher
	hashParams auth.Params
	accessLog  io.Writer
}

// Option customises NewContainer.
type Option func(*options)

// WithLogger replaces the logger built from the config.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithPublisher replaces the publisher selected by the config's events backend.
func WithPublisher(p events.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithHashParams overrides the argon2id cost factors.
func WithHashParams(p auth.Params) Option {
	return func(o *options) { o.hashParams = p }
}

// WithAccessLog writes one line per HTTP request to w.
func WithAccessLog(w io.Writer) Option {
	return func(o *options) { o.accessLog = w }
}

// NewContainer connects to the database, migrates the schema and wires every
// component. The caller must Close the container.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (*Container, error) {
	o := options{hashParams: auth.DefaultParams}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = cfg.NewLogger()
	}

	cacheService, err := cache.NewCacheService(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("di: cache: %w", err)
	}

	db, err := storage.Open(ctx, storage.Options{
		Driver:   cfg.DBDriver,
		DSN:      cfg.DBDSN,
		DebugSQL: cfg.DebugSQL,
		Logger:   o.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("di: %w", err)
	}
	if err := storage.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("di: %w", err)
	}

	publisher := o.publisher
	if publisher == nil {
		publisher, err = events.New(events.Options{
			Backend:        cfg.EventsBackend,
			KafkaBrokers:   cfg.KafkaBrokers,
			KafkaTopic:     cfg.KafkaTopic,
			RabbitURL:      cfg.RabbitURL,
			RabbitExchange: cfg.RabbitExchange,
		}, o.logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("di: %w", err)
		}
	}

	mediaStore, err := media.NewStore(cfg.UploadDir, cfg.UploadURL, cfg.MaxUploadBytes, o.logger)
	if err != nil {
		publisher.Close()
		db.Close()
		return nil, fmt.Errorf("di: %w", err)
	}

	c := &Container{
		config:       cfg,
		logger:       o.logger,
		db:           db,
		cacheService: cacheService,
		publisher:    publisher,
		media:        mediaStore,
		tokens:       auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
	}

	slugs := store.NewSlugIndex(db, cacheService)
	c.products = store.NewProductStore(db, cacheService, slugs, o.logger)
	c.orders = store.NewOrderStore(db, storage.NewTxManager(db), cacheService, o.logger)
	c.analytics = store.NewAnalyticsStore(db, cacheService, o.logger)
	c.categories = store.NewCategoryStore(db, cacheService, slugs, o.logger)
	c.users = store.NewUserStore(db, cacheService, auth.NewHasher(o.hashParams), o.logger)
	c.wishlists = store.NewWishlistStore(db, cacheService, o.logger)
	c.checkout = checkout.NewService(c.orders, publisher, o.logger)
	c.importer = importer.New(c.products, c.categories, o.logger, importer.WithMaxRows(cfg.ImportMaxRows))

	c.app = httpapi.New(httpapi.Deps{
		Products:   c.products,
		Orders:     c.orders,
		Analytics:  c.analytics,
		Categories: c.categories,
		Users:      c.users,
		Wishlists:  c.wishlists,
		Checkout:   c.checkout,
		Importer:   c.importer,
		Media:      c.media,
		Tokens:     c.tokens,
		Ping:       db.PingContext,
		Logger:     o.logger,
	}, httpapi.Options{
		CORSOrigins:    cfg.CORSOrigins,
		UploadURL:      cfg.UploadURL,
		BodyLimit:      int(cfg.MaxUploadBytes) + 1<<20,
		AccessLog:      o.accessLog,
		ExposeInternal: !cfg.Production(),
	})

	return c, nil
}

// EnsureAdmin seeds the configured admin account. It is a no-op without an admin email.
func (c *Container) EnsureAdmin(ctx context.Context) error {
	if c.config.AdminEmail == "" {
		return nil
	}
	_, err := c.users.EnsureAdmin(ctx, c.config.AdminEmail, c.config.AdminPassword, c.config.AdminName)
	return err
}

// Close releases the publisher and the database.
func (c *Container) Close() error {
	return errors.Join(c.publisher.Close(), c.db.Close())
}

func (c *Container) Config() config.Config { return c.config }
func (c *Container) Logger() *slog.Logger { return c.logger }
func (c *Container) DB() *bun.DB { return c.db }
func (c *Container) CacheService() cache.CacheService { return c.cacheService }
func (c *Container) Publisher() events.Publisher { return c.publisher }
func (c *Container) Products() *store.ProductStore { return c.products }
func (c *Container) Orders() *store.OrderStore { return c.orders }
func (c *Container) Analytics() *store.AnalyticsStore { return c.analytics }
func (c *Container) Categories() *store.CategoryStore { return c.categories }
func (c *Container) Users() *store.UserStore { return c.users }
func (c *Container) Wishlists() *store.WishlistStore { return c.wishlists }
func (c *Container) Checkout() *checkout.Service { return c.checkout }
func (c *Container) Importer() *importer.Importer { return c.importer }
func (c *Container) Media() *media.Store { return c.media }
func (c *Container) Tokens() *auth.Tokens { return c.tokens }
func (c *Container) App() *fiber.App { return c.app }
