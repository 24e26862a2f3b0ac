package router

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/mcduffy-co/mcduffy-backend/app/controllers"
	"github.com/mcduffy-co/mcduffy-backend/internal/pkg/env"
)

// ApiRouter registers the storefront API and the PayMongo webhook.
type ApiRouter struct {
	Webhook       *controllers.WebhookController
	Subscribe     *controllers.SubscribeController
	Orders        *controllers.OrderController
	Subscriptions *controllers.SubscriptionsController
	Profiles      *controllers.ProfileController
}

func NewApiRouter(
	webhook *controllers.WebhookController,
	subscribe *controllers.SubscribeController,
	orders *controllers.OrderController,
	subscriptions *controllers.SubscriptionsController,
	profiles *controllers.ProfileController,
) *ApiRouter {
	return &ApiRouter{
		Webhook:       webhook,
		Subscribe:     subscribe,
		Orders:        orders,
		Subscriptions: subscriptions,
		Profiles:      profiles,
	}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	app.Use(corsMiddleware())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// The webhook stays outside the rate limited group: PayMongo's retry
	// bursts must never be throttled into extra redeliveries.
	app.Post("/api/paymongo/webhook", h.Webhook.HandlePayMongoWebhook)

	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        60,
		Expiration: 1 * time.Minute,
		Storage:    limiterStorage(),
	}))

	api.Post("/paymongo/subscribe", h.Subscribe.HandleSubscribe)
	api.Post("/shopify/create-order", h.Orders.HandleCreateOrder)

	api.Get("/subscriptions", h.Subscriptions.HandleListSubscriptions)
	api.Post("/subscriptions/:id/pause", h.Subscriptions.HandlePause)
	api.Post("/subscriptions/:id/resume", h.Subscriptions.HandleResume)
	api.Post("/subscriptions/:id/skip", h.Subscriptions.HandleSkip)
	api.Post("/subscriptions/:id/cancel", h.Subscriptions.HandleCancel)

	api.Get("/dog-profiles", h.Profiles.HandleGetProfile)
	api.Post("/dog-profiles", h.Profiles.HandleSaveProfile)
}

// corsMiddleware allows the storefront origins listed in CORS_ORIGIN
// (comma separated) plus webhook posts, which carry no Origin header.
func corsMiddleware() fiber.Handler {
	allowed := strings.Split(env.GetEnv("CORS_ORIGIN", "https://mcduffy.co"), ",")
	for i := range allowed {
		allowed[i] = strings.TrimSpace(allowed[i])
	}

	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)
		for _, candidate := range allowed {
			if candidate != "" && (candidate == "*" || candidate == origin) {
				c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
				c.Set(fiber.HeaderAccessControlAllowMethods, "GET, POST, OPTIONS")
				c.Set(fiber.HeaderAccessControlAllowHeaders, "Content-Type, Paymongo-Signature")
				break
			}
		}
		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}

// limiterStorage backs the rate limiter with redis so counters survive
// restarts and are shared across replicas. Falls back to in-memory when
// redis is not configured.
func limiterStorage() fiber.Storage {
	host := env.GetEnv("CACHE_HOST", "")
	if host == "" {
		return nil
	}
	port, err := strconv.Atoi(env.GetEnv("CACHE_PORT", "6379"))
	if err != nil {
		port = 6379
	}
	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Database: 1,
	})
}
