package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	_ "github.com/jhoicas/traslados-api/docs"
	"github.com/jhoicas/traslados-api/internal/application/inventory"
	"github.com/jhoicas/traslados-api/internal/application/ports"
	"github.com/jhoicas/traslados-api/internal/application/transfer"
	"github.com/jhoicas/traslados-api/internal/infrastructure/cache"
	infrapdf "github.com/jhoicas/traslados-api/internal/infrastructure/pdf"
	"github.com/jhoicas/traslados-api/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/traslados-api/internal/interfaces/http"
	"github.com/jhoicas/traslados-api/pkg/config"
	"github.com/jhoicas/traslados-api/pkg/logger"
)

// @title                       Traslados API
// @version                     1.0
// @description                 Traslados de inventario entre departamentos con libro de lotes FIFO.
// @BasePath                    /
// @securityDefinitions.apikey  Bearer
// @in                          header
// @name                        Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.Log.Level,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	departmentRepo := postgres.NewDepartmentRepository(pool)
	productRepo := postgres.NewProductRepository(pool)
	stockRepo := postgres.NewStockRepository(pool)
	batchRepo := postgres.NewStockBatchRepository(pool)
	transferRepo := postgres.NewTransferRepository(pool)
	auditRepo := postgres.NewAuditRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// Caché de resúmenes: opcional. Sin REDIS_ADDR la interfaz queda en nil.
	var summaryCache ports.StockSummaryCache
	if cfg.Redis.Enabled() {
		rdb, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis no disponible, se continúa sin caché")
		} else {
			defer rdb.Close()
			summaryCache = cache.NewRedisSummaryCache(rdb, cfg.Redis.SummaryTTL)
			log.Info().Str("addr", cfg.Redis.Addr).Msg("caché de resúmenes activa")
		}
	}

	engine := inventory.NewAllocationEngine()
	stockUC := inventory.NewStockUseCase(
		txRunner, engine, stockRepo, batchRepo, departmentRepo, productRepo, summaryCache, auditRepo,
	)
	workflowUC := transfer.NewWorkflowUseCase(
		txRunner, engine, transferRepo, departmentRepo, productRepo, summaryCache, auditRepo,
	)
	queryUC := transfer.NewQueryUseCase(transferRepo, departmentRepo, productRepo, batchRepo)
	dispatchUC := transfer.NewDispatchNoteUseCase(queryUC, infrapdf.NewMarotoDispatchNoteGenerator())

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Traslados API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		StockUC:    stockUC,
		WorkflowUC: workflowUC,
		QueryUC:    queryUC,
		DispatchUC: dispatchUC,
		JWTSecret:  cfg.JWT.Secret,
		JWTIssuer:  cfg.JWT.Issuer,
	})

	httpLog := log.Component("http")
	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			httpLog.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		httpLog.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
