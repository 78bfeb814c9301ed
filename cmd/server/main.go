package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/campreserv/ledger/docs"
	"github.com/campreserv/ledger/internal/config"
	"github.com/campreserv/ledger/internal/database"
	"github.com/campreserv/ledger/internal/handlers"
	mW "github.com/campreserv/ledger/internal/middleware"
	"github.com/campreserv/ledger/internal/services"
)

// @title Campreserv Ledger API
// @version 1.0
// @description Financial ledger and payment reconciliation service for the Campreserv platform
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("gateway.base_url", "GATEWAY_BASE_URL")
	viper.BindEnv("gateway.api_key", "GATEWAY_API_KEY")
	viper.BindEnv("gateway.webhook_secret", "GATEWAY_WEBHOOK_SECRET")
	viper.BindEnv("reconciliation.drift_threshold_cents", "RECONCILIATION_DRIFT_THRESHOLD_CENTS")
	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("paylink.base_url", "PAYLINK_BASE_URL")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	docs.SwaggerInfo.Title = "Campreserv Ledger API"
	docs.SwaggerInfo.Description = "Financial ledger and payment reconciliation service"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	viper.SetDefault("gateway.base_url", "https://api.gateway.example.com")
	viper.SetDefault("reconciliation.drift_threshold_cents", 100)

	gatewayClient := services.NewGatewayClient(
		viper.GetString("gateway.base_url"),
		viper.GetString("gateway.api_key"),
		viper.GetString("gateway.webhook_secret"),
	)

	feeConfig := config.LoadFeeConfig()
	periodService := services.NewGLPeriodService(db, redisClient)
	postingService := services.NewPostingService(db, periodService)
	balanceService := services.NewBalanceService(db)
	notifyService := services.NewNotifyService(redisClient)
	tenantService := services.NewTenantService(db, redisClient)
	paymentService := services.NewPaymentService(db, postingService, balanceService, notifyService, feeConfig)
	eventService := services.NewPaymentEventService(db, postingService, balanceService, tenantService, notifyService)
	reconService := services.NewReconciliationService(db, gatewayClient, postingService,
		viper.GetInt64("reconciliation.drift_threshold_cents"))
	paylinkService := services.NewPaylinkService(balanceService)

	webhookHandler := handlers.NewWebhookHandler(gatewayClient, eventService)
	reconHandler := handlers.NewReconciliationHandler(reconService, services.NewSettlementExportService())
	paylinkHandler := handlers.NewPaylinkHandler(paylinkService)

	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Gateway-Signature"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy", "service": "campreserv-ledger"})
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		// Webhook ingestion authenticates by signature, not bearer token.
		r.Post("/webhooks/gateway", webhookHandler.HandleGatewayEvent)

		r.Group(func(r chi.Router) {
			r.Use(mW.TenantAuth)

			r.Post("/payments", paymentService.RecordPayment)
			r.Post("/refunds", paymentService.RecordRefund)
			r.Get("/reservations/{reservationId}/balance", paymentService.GetReservationBalance)
			r.Get("/reservations/{reservationId}/paylink", paylinkHandler.GetPaylink)
			r.Get("/reservations/{reservationId}/paylink/qr", paylinkHandler.GetPaylinkQR)
			r.Get("/ledger/entries", paymentService.ListLedgerEntries)

			r.Post("/reconciliation/payouts/{payoutId}", reconHandler.ReconcilePayout)
			r.Post("/reconciliation/payouts/{payoutId}/advice", reconHandler.ExportPayoutAdvice)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
