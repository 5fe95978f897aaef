package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"settlement-service/airtable"
	"settlement-service/config"
	"settlement-service/controllers"
	"settlement-service/database"
	"settlement-service/repository"
	"settlement-service/routes"
	"settlement-service/scheduler"
	"settlement-service/sender"
	"settlement-service/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Config load failed", zap.Error(err))
	}

	// Database (settlement audit log)
	if err := database.Connect(cfg, logger); err != nil {
		logger.Fatal("DB connection failed", zap.Error(err))
	}

	// Collaborator clients
	store := airtable.NewClient(
		cfg.AirtableAPIKey,
		cfg.AirtableBaseID,
		cfg.RequestsTable,
		cfg.GigsTable,
		cfg.AcceptedView,
	)
	stripeSvc := services.NewStripeService(cfg.StripeSecretKey)
	smsSender, err := sender.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	if err != nil {
		logger.Fatal("Failed to init Twilio sender", zap.Error(err))
	}

	// Dependency injection
	logRepo := repository.NewSettlementLogRepository(database.DB)
	reconciler := services.NewReconciler(store, stripeSvc, smsSender, logRepo, logger)
	sched := scheduler.New(cfg.PollInterval, reconciler, logger)

	rc := &controllers.RequestController{
		Stripe:          stripeSvc,
		Store:           store,
		Logs:            logRepo,
		Logger:          logger,
		RequestFeeCents: cfg.RequestFeeCents,
	}

	// Router
	r := gin.New()
	r.Use(gin.Recovery())

	// Request logging
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http_request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	})

	// Request timeout
	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	routes.RegisterRoutes(r, rc)

	// Start the settlement scheduler
	schedCtx, schedCancel := context.WithCancel(context.Background())
	defer schedCancel()
	go sched.Start(schedCtx)

	// HTTP server
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		logger.Info("Settlement service started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Initiating graceful shutdown...")
	schedCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	if err := database.Close(); err != nil {
		logger.Error("Database close error", zap.Error(err))
	}

	logger.Info("Settlement service stopped gracefully")
}
