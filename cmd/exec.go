package cmd

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go/v7"

	"ticket-gate/config"
	"ticket-gate/internal/handlers"
	"ticket-gate/internal/security"
	"ticket-gate/internal/services"
	_ "ticket-gate/migrations"
	"ticket-gate/monitoring"
	"ticket-gate/utils"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Initialize PubNub (optional: empty keys disable the payment
	// subscription and delivery publishing)
	var pn *pubnub.PubNub
	if cfg.PubNubSubscribeKey != "" {
		pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId("ticket-gate-server"))
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey
		pn = pubnub.NewPubNub(pnConfig)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	inventoryService := services.NewInventoryService(app)
	ticketService := services.NewTicketService(app, cfg.BaseURL)
	delivery := services.NewPubNubDelivery(pn, cfg.DeliveryChannel)
	orderService := services.NewOrderService(app, redisClient, inventoryService, ticketService, delivery, cfg)
	paymentService := services.NewPaymentService(pn, orderService, cfg.PaymentChannel)

	// Initialize security helpers
	rateLimiter := security.NewRateLimiter(redisClient, cfg.ScanRateLimit, cfg.ScanRateWindow)
	deviceAuth := security.NewDeviceAuth(app)

	// Initialize handlers
	scanHandler := handlers.NewScanHandler(app, ticketService, rateLimiter, deviceAuth, cfg.RequireDeviceAuth)
	checkoutHandler := handlers.NewCheckoutHandler(app, orderService, inventoryService)
	paymentHandler := handlers.NewPaymentHandler(app, paymentService, cfg.WebhookHMACKey)
	adminHandler := handlers.NewAdminHandler(app, ticketService, inventoryService)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Background tasks
		go paymentService.Subscribe(ctx)
		go ticketService.RunExpirySweeper(ctx, cfg.SweepInterval, cfg.TicketTTL)

		if cfg.EnableMetrics {
			monitoring.NewMonitor(app, cfg.SampleInterval)
			go func() {
				if err := http.ListenAndServe(":"+cfg.MetricsPort, promhttp.Handler()); err != nil {
					slog.Error("metrics server stopped", "error", err)
				}
			}()
		}

		// Checkout endpoints
		e.Router.POST("/api/orders", checkoutHandler.CreateOrder)
		e.Router.GET("/api/orders/{id}", checkoutHandler.GetOrder)
		e.Router.GET("/api/ticket-types", checkoutHandler.ListTicketTypes)
		e.Router.GET("/api/ticket-types/{id}", checkoutHandler.GetTicketType)

		// Scan endpoints
		e.Router.POST("/api/tickets/validate", scanHandler.Validate)
		e.Router.GET("/api/tickets/show", scanHandler.Show)

		// Payment confirmation webhook
		e.Router.POST("/api/payments/webhook", paymentHandler.Webhook)

		// Admin endpoints
		e.Router.POST("/api/admin/tickets/{id}/revoke", adminHandler.RevokeTicket)
		e.Router.PATCH("/api/admin/ticket-types/{id}", adminHandler.UpdateTicketType)
		e.Router.GET("/api/admin/validations", adminHandler.ListValidations)
		e.Router.POST("/api/admin/devices", adminHandler.RegisterDevice)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			if _, err := app.DB().NewQuery("SELECT 1").Execute(); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  "database unreachable",
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	return app.Start()
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
