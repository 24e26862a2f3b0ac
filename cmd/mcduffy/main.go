package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/mcduffy-co/mcduffy-backend/app/controllers"
	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/archive"
	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/cache"
	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/database"
	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/env"
	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/paymongo"
	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/profiles"
	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/reconcile"
	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/router"
	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/shopify"
	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/tasks"
)

func main() {
	app, runner := NewApplication()

	// graceful shutdown: stop accepting, then drain detached tasks
	shutdownDone := make(chan struct{})
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("[App] Shutting down")
		if err := app.ShutdownWithTimeout(15 * time.Second); err != nil {
			log.Errorf("[App] shutdown error: %v", err)
		}
		close(shutdownDone)
	}()

	addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "0.0.0.0"), env.GetEnv("APP_PORT", "4000"))
	if err := app.Listen(addr); err != nil {
		log.Errorf("[App] listener stopped: %v", err)
	}
	<-shutdownDone
	runner.Drain()
}

// NewApplication wires the full service: database, cache, payment and shop
// clients, the webhook reconciler and the HTTP surface.
func NewApplication() (*fiber.App, *tasks.Runner) {
	env.SetupEnvFile()
	database.SetupDatabase()

	webhookSecret, err := env.RequireEnv("PAYMONGO_WEBHOOK_SECRET")
	if err != nil {
		log.Fatalf("[App] %v", err)
	}

	shopClient, err := shopify.NewClientFromEnv()
	if err != nil {
		log.Fatalf("[App] %v", err)
	}
	paymongoClient := paymongo.NewClientFromEnv()

	store := reconcile.NewStore(database.GetDB())
	reconciler := reconcile.New(store, shopClient, webhookSecret)

	runner := tasks.NewRunner(30 * time.Second)

	archiveCfg, err := archive.LoadConfig()
	if err != nil {
		log.Fatalf("[App] %v", err)
	}
	archiver, err := archive.NewArchiver(archiveCfg, runner)
	if err != nil {
		log.Fatalf("[App] %v", err)
	}

	profileCache := cache.NewFromEnv(profiles.CacheTTL)
	profileService := profiles.NewService(profileCache, shopClient, runner)

	app := fiber.New(fiber.Config{
		AppName:   "mcduffy-backend",
		BodyLimit: 1 << 20,
	})

	app.Use(recover.New(), logger.New())

	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "admin"),
		},
	}), monitor.New())

	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
	}))

	router.InstallRouter(app, router.NewApiRouter(
		controllers.NewWebhookController(reconciler, archiver),
		controllers.NewSubscribeController(paymongoClient, store),
		controllers.NewOrderController(paymongoClient, reconciler),
		controllers.NewSubscriptionsController(shopClient, paymongoClient),
		controllers.NewProfileController(profileService),
	))

	return app, runner
}
