package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/harbor-trust/harbor_core/internal/account"
	"github.com/harbor-trust/harbor_core/internal/config"
	"github.com/harbor-trust/harbor_core/internal/customer"
	"github.com/harbor-trust/harbor_core/internal/interbank"
	"github.com/harbor-trust/harbor_core/internal/ledger"
	"github.com/harbor-trust/harbor_core/internal/middleware"
	"github.com/harbor-trust/harbor_core/internal/notification"
	"github.com/harbor-trust/harbor_core/internal/posting"
	"github.com/harbor-trust/harbor_core/internal/refnum"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	// Health
	RegisterHealthRoutes(app, d)

	// Storage backends: Postgres in real deployments, in-memory for dev.
	var (
		customerRepo customer.Repository
		accountRepo  account.Repository
		ledgerStore  ledger.Ledger
		transferRepo interbank.Repository
		refGenerator refnum.Generator
	)
	if d.DB != nil {
		customerRepo = customer.NewPostgresRepository(d.DB)
		accountRepo = account.NewPostgresRepository(d.DB)
		ledgerStore = ledger.NewPostgresLedger(d.DB)
		transferRepo = interbank.NewPostgresRepository(d.DB)
		refGenerator = refnum.NewPostgresGenerator(d.DB)
	} else {
		customerRepo = customer.NewMemoryRepository()
		memAccounts := account.NewMemoryRepository()
		memAccounts.SeedBranch("MNL", "Manila Main")
		accountRepo = memAccounts
		ledgerStore = ledger.NewInMemory()
		transferRepo = interbank.NewMemoryRepository()
		refGenerator = refnum.NewMemory()
	}

	notifier := notification.NewLoggerNotifier(d.Logger)
	gateway := interbank.NewLoggerGateway(d.Logger)

	customerSvc := customer.NewService(customerRepo, accountRepo)
	accountSvc := account.NewService(accountRepo, customerRepo)
	engine := posting.NewEngine(accountRepo, ledgerStore, refGenerator,
		transferRepo, notifier, d.Cfg.InterbankCeiling)

	customerHandler := customer.NewHandler(customerSvc)
	accountHandler := account.NewHandler(accountSvc)
	postingHandler := posting.NewHandler(engine, ledgerStore, gateway)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterCustomerRoutes(api, customerHandler)
	RegisterAccountRoutes(api, accountHandler, postingHandler)
	RegisterInterbankRoutes(api, postingHandler, middleware.CallbackRateLimit(d.Cache, d.Cfg.CallbackPerMin))

	return nil
}
