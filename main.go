package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/gofiber/utils"

	"tutorhub_backend/internals/configs"
	database "tutorhub_backend/internals/databases"
	subscriptionScheduler "tutorhub_backend/internals/features/finance/subscriptions/scheduler"
	subscriptionService "tutorhub_backend/internals/features/finance/subscriptions/service"
	notifService "tutorhub_backend/internals/features/home/notifications/service"
	sessionScheduler "tutorhub_backend/internals/features/school/sessions/scheduler"
	sessionService "tutorhub_backend/internals/features/school/sessions/service"
	middlewares "tutorhub_backend/internals/middlewares"
	routes "tutorhub_backend/internals/route"
)

func main() {
	configs.LoadEnv()

	app := fiber.New(fiber.Config{
		// 🚀 JSON super cepat
		JSONEncoder:             sonic.Marshal,
		JSONDecoder:             sonic.Unmarshal,
		DisableStartupMessage:   true,
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          []string{"0.0.0.0/0"},
	})

	// ⚙️ middleware dasar + performa
	app.Use(compress.New(compress.Config{Level: compress.LevelDefault}))
	app.Use(etag.New())

	// 🔎 Request-ID + timing
	app.Use(func(c *fiber.Ctx) error {
		id := c.Get("X-Request-ID")
		if id == "" {
			id = utils.UUID()
		}
		c.Set("X-Request-ID", id)
		c.Locals("reqid", id)
		start := time.Now()
		ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
		defer cancel()
		c.SetUserContext(ctx)
		err := c.Next()
		dur := time.Since(start)
		log.Printf("[REQ] id=%s %s %s status=%d dur=%s", id, c.Method(), c.OriginalURL(), c.Response().StatusCode(), dur)
		return err
	})

	middlewares.SetupMiddlewares(app)

	// 🔌 DB connect + pool + warm-up
	database.ConnectDB()
	database.TunePool()
	if configs.GetEnv("RUN_MIGRATIONS", "false") == "true" {
		if err := database.Migrate(database.DB); err != nil {
			log.Fatalf("migrasi gagal: %v", err)
		}
	}
	database.WarmUpQueries()

	// ⚙️ kebijakan lifecycle & billing dari env
	policy := configs.LoadPolicy()

	// 🔔 notifier + integrasi eksternal
	notifier := notifService.NewDBNotifier(database.DB)
	gateway := subscriptionService.NewMidtransGateway(configs.GetEnv("MIDTRANS_SERVER_KEY", ""))

	var rooms sessionService.MeetingProvider = sessionService.NoopMeetingProvider{}
	if base := configs.GetEnv("MEETING_PROVIDER_BASE_URL", ""); base != "" {
		rooms = sessionService.NewHTTPMeetingProvider(base, configs.GetEnv("MEETING_PROVIDER_API_KEY", ""))
	}

	sessions := sessionService.NewSessionService(database.DB, rooms, notifier, policy)
	renewal := subscriptionService.NewRenewalService(database.DB, gateway, notifier, policy)

	// ⏱ scheduler setelah DB siap
	sessionScheduler.StartSessionTickScheduler(database.DB, sessions, policy)
	subscriptionScheduler.StartRenewalScheduler(renewal)

	// ❤️ Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	// ✅ Routes
	routes.SetupRoutes(app, routes.Deps{
		DB:       database.DB,
		Sessions: sessions,
		Renewal:  renewal,
		Notifier: notifier,
		Policy:   policy,
	})

	// 🔒 Keep-Alive & timeout koneksi server
	app.Server().ReadTimeout = 15 * time.Second
	app.Server().WriteTimeout = 30 * time.Second
	app.Server().IdleTimeout = 90 * time.Second

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	go func() {
		log.Printf("✅ Listening on :%s", port)
		if err := app.Listen("0.0.0.0:" + port); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown + tutup pool DB
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)

	if sqlDB, err := database.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
