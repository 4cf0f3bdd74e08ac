package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/photobooth/agent/internal/config"
	"github.com/photobooth/agent/internal/handlers"
	custommw "github.com/photobooth/agent/internal/middleware"
	"github.com/photobooth/agent/internal/observability"
	"github.com/photobooth/agent/internal/repository"
	"github.com/photobooth/agent/internal/services"
	"github.com/photobooth/agent/internal/uploader"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize telemetry
	ctx := context.Background()
	telemetry, err := observability.Initialize(ctx, observability.NewConfig("photobooth-agent", version))
	if err != nil {
		log.Printf("Warning: failed to initialize telemetry: %v", err)
	}

	// Initialize database and queue repository
	var queueRepo repository.QueueRepo
	if cfg.UsePostgres() {
		log.Println("Using PostgreSQL queue store")
		db, err := repository.NewPostgresDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL database: %v", err)
		}
		defer db.Close()
		queueRepo = repository.NewQueueRepositoryPostgres(db)
	} else {
		log.Println("Using SQLite queue store")
		db, err := repository.NewSQLiteDB(cfg.DatabasePath)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite database: %v", err)
		}
		defer db.Close()
		queueRepo = repository.NewQueueRepository(db)
	}

	// Initialize upload client; it doubles as the connectivity prober
	uploadClient := uploader.NewClient(
		cfg.Server.BaseURL,
		cfg.Server.APIKey,
		cfg.Server.APIKeyHeader,
		time.Duration(cfg.Server.TimeoutSeconds)*time.Second,
	)

	// Initialize services
	connectivity := services.NewConnectivityService(
		uploadClient,
		time.Duration(cfg.Connectivity.ProbeIntervalSeconds)*time.Second,
		time.Duration(cfg.Connectivity.ProbeTimeoutSeconds)*time.Second,
	)
	syncService := services.NewSyncService(
		queueRepo,
		uploadClient,
		connectivity,
		cfg.Sync.RetryCeiling,
		time.Duration(cfg.Sync.IntervalSeconds)*time.Second,
	)
	intakeService := services.NewIntakeService(queueRepo, uploadClient, connectivity, cfg.Sync.RetryCeiling)

	// WebSocket hub for the booth UI's pending-count badge
	wsHub := services.NewWebSocketHub()
	go wsHub.Run()
	syncService.SetWebSocketHub(wsHub)
	intakeService.SetWebSocketHub(wsHub)

	if queueMetrics, err := observability.NewQueueMetrics(); err == nil {
		syncService.SetMetrics(queueMetrics)
		intakeService.SetMetrics(queueMetrics)
	} else {
		log.Printf("Warning: failed to create queue metrics: %v", err)
	}

	// Forward connectivity transitions to the UI
	connectivityFeed := connectivity.Subscribe()
	go func() {
		for transition := range connectivityFeed {
			wsHub.BroadcastToTopic(services.TopicConnectivity, services.WSMessage{
				Type:    services.WSTypeConnectivity,
				Payload: transition,
			})
		}
	}()

	// Initialize handlers
	captureHandler := handlers.NewCaptureHandler(intakeService)
	queueHandler := handlers.NewQueueHandler(intakeService, syncService, connectivity)
	wsHandler := handlers.NewWebSocketHandler(wsHub)
	healthHandler := handlers.NewHealthHandler()

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TracingMiddleware("photobooth-agent"))
	if httpMetrics, err := observability.NewHTTPMetrics(); err == nil {
		r.Use(observability.MetricsMiddleware(httpMetrics))
	}
	r.Use(custommw.APIKeyAuth(cfg.Security.APIKey, cfg.Security.APIKeyHeader))

	// Routes
	r.Get("/health", healthHandler.HealthCheck)
	r.Get("/api/health", healthHandler.HealthCheck)

	// Browsers cannot attach headers to WebSocket upgrades, so the badge
	// feed lives outside the authenticated /api tree
	r.Get("/ws", wsHandler.HandleConnection)

	r.Route("/api", func(r chi.Router) {
		r.Post("/captures", captureHandler.Submit)
		r.Route("/queue", func(r chi.Router) {
			r.Get("/", queueHandler.Status)
			r.Delete("/", queueHandler.Clear)
			r.Post("/sync", queueHandler.SyncNow)
		})
	})

	// Start background services
	connectivity.Start()
	syncService.Start()

	// Create server
	srv := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Photo-booth agent starting on %s", cfg.ListenAddress)
		log.Printf("Booth server: %s", cfg.Server.BaseURL)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down agent...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Stop waits for an in-flight upload to finish so a confirmed capture
	// is never double-submitted after restart
	syncService.Stop()
	connectivity.Stop()

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down telemetry: %v", err)
		}
	}

	log.Println("Agent stopped")
}
