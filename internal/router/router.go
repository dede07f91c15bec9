package router

import (
	"time"

	"priceops/internal/batch"
	"priceops/internal/catalog"
	"priceops/internal/config"
	"priceops/internal/handler"
	"priceops/internal/infra"
	"priceops/internal/middleware"
	"priceops/internal/repository"
	"priceops/internal/service"
	"priceops/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the long-lived components main builds once and the router
// shares with the worker pool.
type Deps struct {
	Shopify  *infra.ShopifyClient
	Catalog  *catalog.Service
	History  repository.HistoryRepository
	Registry *batch.Registry
	Runner   *batch.Runner
}

// Build wires the full dependency graph from config and the two stores.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func Build(cfg *config.Config, db *gorm.DB, rdb *redis.Client, shopifyCB *infra.CircuitBreaker) *Deps {
	shopify := infra.NewShopifyClient(
		cfg.ShopifyShopURL,
		cfg.ShopifyAccessToken,
		cfg.ShopifyAPIVersion,
		time.Duration(cfg.ShopifyMinRequestIntervalMS)*time.Millisecond,
		shopifyCB,
	)
	cat := catalog.NewService(shopify, rdb)
	history := repository.NewHistoryRepository(db)
	registry := batch.NewRegistry(time.Duration(cfg.JobRetentionMinutes) * time.Minute)
	runner := batch.NewRunner(cat, shopify, history, registry)

	return &Deps{
		Shopify:  shopify,
		Catalog:  cat,
		History:  history,
		Registry: registry,
		Runner:   runner,
	}
}

// New returns a configured Gin engine over the shared dependencies.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, shopifyCB *infra.CircuitBreaker, deps *Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Services ─────────────────────────────────────────────────────────────
	dispatcher := worker.NewDispatcher(rdb)
	discountSvc := service.NewDiscountService(deps.Catalog, deps.History, deps.Registry, dispatcher)

	// ── Handlers ─────────────────────────────────────────────────────────────
	discountH := handler.NewDiscountHandler(discountSvc)
	historyH := handler.NewHistoryHandler(discountSvc)
	catalogH := handler.NewCatalogHandler(deps.Catalog)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, shopifyCB))

	// Operator routes — static admin token
	v1 := r.Group("/v1", middleware.AdminAuth(cfg.AdminToken))
	{
		v1.GET("/collections", catalogH.Collections)
		v1.GET("/products/sample", catalogH.ProductsSample)

		v1.POST("/preview", discountH.Preview)
		v1.POST("/jobs", discountH.StartJob)
		v1.GET("/jobs/:id/progress", discountH.Progress)
		v1.POST("/jobs/:id/cancel", discountH.CancelJob)

		v1.GET("/changes", historyH.RecentChanges)
		v1.GET("/sessions", historyH.Sessions)
		v1.POST("/sessions/:id/rollback", historyH.Rollback)
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
