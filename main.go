package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"purescan-service/config"
	"purescan-service/database"
	"purescan-service/gemini"
	"purescan-service/handlers"
	"purescan-service/history"
	"purescan-service/llm"
	"purescan-service/metrics"
	"purescan-service/middleware"
	"purescan-service/openai"
	"purescan-service/rabbitmq"
	"purescan-service/service"
	"purescan-service/stubllm"
)

func main() {
	// Load configuration
	cfg := config.Load()

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}

	client := buildClient(cfg)
	log.Infof("Using %s analysis provider", client.SourceName())

	// The fallback absorbs remote failures with the fixed simulation result.
	var fallback llm.Client
	if cfg.DemoFallback {
		fallback = stubllm.NewClient()
	}

	// Initialize database
	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.CreateUsersTable(); err != nil {
		log.Fatalf("Failed to create users table: %v", err)
	}

	// Scan-completed events are optional; an empty AMQP URL disables them.
	var publisher service.Publisher
	if cfg.AMQPURL != "" {
		p, err := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPScanRoutingKey)
		if err != nil {
			log.Warnf("RabbitMQ unavailable, scan events disabled: %v", err)
		} else {
			defer p.Close()
			publisher = p
		}
	}

	metrics.Register()

	store := history.NewStore()
	scanner := service.NewScanner(client, fallback, store, publisher, cfg.AnalysisTimeout)
	auth := database.NewAuthService(db, cfg.JWTSecret, cfg.TokenExpiry)
	h := handlers.NewHandlers(cfg, scanner, auth, db, store)

	// Setup HTTP server
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute, time.Minute))

	router.GET("/health", h.HealthCheck)
	router.GET("/version", h.Version)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.POST("/auth/register", h.Register)
		api.POST("/auth/login", h.Login)

		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(auth))
		{
			protected.POST("/scan", h.Scan)
			protected.DELETE("/scan", h.AbandonScan)
			protected.GET("/history", h.ListHistory)
			protected.GET("/history/:id", h.GetHistoryItem)
			protected.GET("/profile", h.GetProfile)
			protected.PUT("/profile", h.UpdateProfile)
			protected.POST("/subscription/upgrade", h.Upgrade)
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Infof("Starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

// buildClient selects the analysis provider from configuration. An
// unknown provider or a missing API key falls back to the simulation
// client so the service stays usable in demo environments.
func buildClient(cfg *config.Config) llm.Client {
	switch cfg.LLMProvider {
	case "gemini":
		if cfg.GeminiAPIKey != "" {
			return gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel)
		}
		log.Warn("GEMINI_API_KEY not set, using simulation provider")
	case "openai":
		if cfg.OpenAIAPIKey != "" {
			return openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		}
		log.Warn("OPENAI_API_KEY not set, using simulation provider")
	case "stub":
	default:
		log.Warnf("Unknown LLM provider %q, using simulation provider", cfg.LLMProvider)
	}
	return stubllm.NewClient()
}
