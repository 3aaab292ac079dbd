package router

import (
	"time"

	"tallerfranco/internal/config"
	"tallerfranco/internal/handler"
	"tallerfranco/internal/infra"
	"tallerfranco/internal/middleware"
	"tallerfranco/internal/repository"
	"tallerfranco/internal/service"
	"tallerfranco/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
// dispatcher may be nil (no Redis): sales still work, alerts are not queued.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, dispatcher *worker.Dispatcher) *gin.Engine {
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
	r.Use(middleware.RateLimiter(cfg.RateLimit, time.Minute))

	// ── Repositories ─────────────────────────────────────────────────────────
	productoRepo := repository.NewProductoRepository(db)
	serialRepo := repository.NewSerialRepository(db)
	parcialRepo := repository.NewParcialRepository(db)
	ventaRepo := repository.NewVentaRepository(db)
	movimientoStockRepo := repository.NewMovimientoStockRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	conciliador := service.NewConciliador(productoRepo, serialRepo, parcialRepo, movimientoStockRepo, cfg.CostoCatalogoEnServicios())

	var alertas service.AlertaDispatcher
	if dispatcher != nil {
		alertas = dispatcher
	}
	ventaSvc := service.NewVentaService(ventaRepo, productoRepo, conciliador, alertas)
	inventarioSvc := service.NewInventarioService(productoRepo, serialRepo, parcialRepo, movimientoStockRepo, rdb)

	// ── Handlers ─────────────────────────────────────────────────────────────
	ventasH := handler.NewVentasHandler(ventaSvc)
	inventarioH := handler.NewInventarioHandler(inventarioSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	var queueCB *infra.CircuitBreaker
	if dispatcher != nil {
		queueCB = dispatcher.Breaker()
	}
	r.GET("/health", handler.Health(db, rdb, queueCB))

	// Protected routes
	todos := middleware.RequireRole(middleware.RolVendedor, middleware.RolEncargado, middleware.RolAdministrador)
	encargados := middleware.RequireRole(middleware.RolEncargado, middleware.RolAdministrador)

	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		ventas := v1.Group("/ventas")
		{
			ventas.POST("", todos, ventasH.RegistrarVenta)
			ventas.GET("", todos, ventasH.ListarVentas)
			ventas.GET("/:id", todos, ventasH.ObtenerVenta)
			ventas.PUT("/:id", encargados, ventasH.EditarVenta)
			ventas.DELETE("/:id", encargados, ventasH.AnularVenta)
		}

		inv := v1.Group("/inventario")
		{
			inv.POST("/seriales", encargados, inventarioH.IngresarSeriales)
			inv.GET("/seriales", todos, inventarioH.ListarSeriales)
			inv.GET("/parciales", todos, inventarioH.ListarParciales)
			inv.GET("/movimientos", encargados, inventarioH.ListarMovimientos)
			inv.GET("/alertas", encargados, inventarioH.ObtenerAlertas)
		}
	}

	// Swagger UI, outside production only
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
