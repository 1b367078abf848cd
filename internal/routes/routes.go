package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/bazaarhq/wallet/internal/audit"
	"github.com/bazaarhq/wallet/internal/config"
	"github.com/bazaarhq/wallet/internal/ledger"
	"github.com/bazaarhq/wallet/internal/middleware"
	"github.com/bazaarhq/wallet/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// adminRoles may settle withdrawals, adjust balances and freeze accounts.
var adminRoles = []string{"admin", "super_admin", "finance_admin"}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.Dev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))

	RegisterHealthRoutes(app)

	var (
		store ledger.Store
		sink  audit.Sink
		err   error
	)
	if d.DB != nil {
		store, err = ledger.NewPostgresStore(context.Background(), d.DB)
		if err != nil {
			return err
		}
		sink, err = audit.NewPostgresSink(context.Background(), d.DB)
		if err != nil {
			return err
		}
	} else {
		store = ledger.NewInMemory()
		sink = audit.NewLoggerSink(d.Logger)
	}

	walletSvc := wallet.NewService(store, sink, d.Logger)
	walletHandler := wallet.NewHandler(walletSvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	protected := api.Group("", middleware.BearerAuth([]byte(d.Cfg.JWTSecret)))
	protected.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
		protected.Use(middleware.WalletRateLimit(d.Cache, d.Cfg.RateLimitPerMin))
	}

	RegisterWalletRoutes(protected, walletHandler)

	return nil
}
