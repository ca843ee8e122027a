// Package main provides the main entry point for the Waxal campaign dispatch service
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/waxal-io/waxal/app/dispatcher"
	"github.com/waxal-io/waxal/app/handlers"
	"github.com/waxal-io/waxal/app/middleware"
	"github.com/waxal-io/waxal/app/router"
	"github.com/waxal-io/waxal/app/services"
	businessflow "github.com/waxal-io/waxal/business_flow"
	"github.com/waxal-io/waxal/config"
	"github.com/waxal-io/waxal/repository"
)

// Application represents the main application structure
type Application struct {
	router router.Router
	config *config.Config
	engine dispatcher.Engine
	server *fiber.App
}

func main() {
	log.Println("Starting Waxal dispatch service...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop accepting requests first, then drain the dispatch engine so
	// in-flight batches finish recording their results.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}

	engineCtx, engineCancel := context.WithTimeout(context.Background(), cfg.Dispatcher.StopTimeout)
	defer engineCancel()

	if err := app.engine.Shutdown(engineCtx); err != nil {
		log.Printf("Error during dispatch engine shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseDSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity.
// A disabled cache returns a nil client; the engine and the progress flow
// degrade to single-node behavior without it.
func initializeCache(cfg config.CacheConfig) (redis.UniversalClient, error) {
	if !cfg.Enabled {
		log.Println("Redis cache disabled, running single-node")
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB and password if provided in config
	opt.DB = cfg.RedisDB
	if cfg.Password != "" {
		opt.Password = cfg.Password
	}

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// initializeTransport selects the transport clients based on configuration
func initializeTransport(cfg *config.Config) services.TransportAdapter {
	if cfg.SMS.ProviderDomain == "mock" {
		log.Println("Using mock transport, no external sends will happen")
		return services.NewMockTransport()
	}

	return services.NewTransportMux(
		services.NewSMSGatewayClient(&cfg.SMS),
		services.NewWhatsAppClient(&cfg.WhatsApp),
	)
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.Config) (*Application, error) {
	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	customerRepo := repository.NewCustomerRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	contactRepo := repository.NewContactRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	historyRepo := repository.NewCampaignHistoryRepository(db)

	// Initialize token service
	tokenService, err := services.NewTokenService(cfg.JWT.SecretKey, cfg.JWT.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	// Initialize transports and the dispatch engine
	transport := initializeTransport(cfg)
	engineLogger := dispatcher.NewLogger(cfg.Logging)
	engine := dispatcher.NewEngine(
		campaignRepo,
		messageRepo,
		subscriptionRepo,
		transport,
		rc,
		cfg.Dispatcher,
		cfg.Cache.RedisPrefix,
		engineLogger,
	)

	// Initialize flows
	ownerResolver := businessflow.NewOwnerResolver(customerRepo)
	quotaFlow := businessflow.NewQuotaFlow(subscriptionRepo)
	txManager := repository.NewTxManager(db)

	creationFlow := businessflow.NewCampaignCreationFlow(
		campaignRepo,
		messageRepo,
		templateRepo,
		contactRepo,
		ownerResolver,
		txManager,
	)

	dispatchFlow := businessflow.NewCampaignDispatchFlow(
		campaignRepo,
		messageRepo,
		templateRepo,
		historyRepo,
		quotaFlow,
		ownerResolver,
		engine,
	)

	resetFlow := businessflow.NewResetFlow(
		campaignRepo,
		messageRepo,
		historyRepo,
		ownerResolver,
		txManager,
	)

	progressFlow := businessflow.NewProgressFlow(
		campaignRepo,
		historyRepo,
		ownerResolver,
		rc,
		cfg.Cache.RedisPrefix,
		cfg.Cache.ProgressTTL,
	)

	recipientFlow := businessflow.NewRecipientFlow(
		campaignRepo,
		messageRepo,
		ownerResolver,
		txManager,
	)

	// Initialize handlers and middleware
	campaignHandler := handlers.NewCampaignHandler(
		creationFlow,
		dispatchFlow,
		resetFlow,
		progressFlow,
		recipientFlow,
	)
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	// Initialize router
	appRouter := router.NewFiberRouter(campaignHandler, authMiddleware, cfg.Server.AllowedOrigins)

	return &Application{
		router: appRouter,
		config: cfg,
		engine: engine,
		server: appRouter.GetApp(),
	}, nil
}
