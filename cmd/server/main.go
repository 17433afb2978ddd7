package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"villagelink/internal/app"
	"villagelink/internal/config"
	"villagelink/internal/fleet"
	"villagelink/internal/handler"
	"villagelink/internal/metrics"
	"villagelink/internal/network"
	"villagelink/internal/osrm"
	"villagelink/internal/publisher"
	internalRedis "villagelink/internal/redis"
	"villagelink/internal/repository"
	"villagelink/internal/repository/memory"
	"villagelink/internal/repository/postgres"
	"villagelink/internal/service"
	"villagelink/internal/stops"
)

func main() {
	// Load configuration.
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s", cfg.NewRelic.AppName)
		}
	}

	// Initialize the database when the postgres backend is selected.
	var db *sql.DB
	if cfg.Storage.Backend == config.StoragePostgres {
		db, err = app.NewDatabase(ctx, cfg.Database, nrApp)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer db.Close()
		log.Printf("Connected to PostgreSQL via %s", cfg.Database.Driver)

		if cfg.Database.Migrate {
			if err := app.RunMigrations(db, cfg.Database.MigrationsPath); err != nil {
				log.Fatalf("failed to migrate database: %v", err)
			}
		}
	} else {
		log.Println("Using in-memory storage")
	}

	// Initialize Redis with New Relic instrumentation.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = app.NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		log.Println("Connected to Redis")
	}

	collector := metrics.NewCollector()
	var metricsServer *http.Server
	if cfg.Metrics.Addr != "" {
		metricsServer = collector.Serve(cfg.Metrics.Addr)
	}

	// Connect to NATS when configured.
	var natsPublisher *publisher.NATSPublisher
	if cfg.NATS.URL != "" {
		natsPublisher, err = publisher.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, cfg.NATS.LogSubjects, collector)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsPublisher.Close()
		log.Printf("Connected to NATS at %s", cfg.NATS.URL)
	}

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	// Wire dependencies.
	server, hub := wireServer(runCtx, db, redisClient, natsPublisher, collector, nrApp, cfg)

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Stop telemetry ingestion and end every live stream before draining HTTP.
	stopRun()
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	log.Println("Server exited")
}

// repositories groups the storage backend.
type repositories struct {
	wallets repository.WalletRepository
	ledger  repository.LedgerRepository
	passes  repository.PassRepository
	tickets repository.TicketRepository
}

func newRepositories(db *sql.DB) repositories {
	if db == nil {
		return repositories{
			wallets: memory.NewWalletRepository(),
			ledger:  memory.NewLedgerRepository(),
			passes:  memory.NewPassRepository(),
			tickets: memory.NewTicketRepository(),
		}
	}
	return repositories{
		wallets: postgres.NewWalletRepository(db),
		ledger:  postgres.NewLedgerRepository(db),
		passes:  postgres.NewPassRepository(db),
		tickets: postgres.NewTicketRepository(db),
	}
}

// wireServer wires all dependencies and returns the HTTP server and the hub
// it serves.
func wireServer(
	ctx context.Context,
	db *sql.DB,
	redisClient *redis.Client,
	natsPublisher *publisher.NATSPublisher,
	collector *metrics.Collector,
	nrApp *newrelic.Application,
	cfg *config.Config,
) (*http.Server, *fleet.Hub) {
	// Load the stop directory and network.
	dataset, err := stops.LoadDataset(cfg.Routing.StopsFile)
	if err != nil {
		log.Fatalf("failed to load stops: %v", err)
	}
	directory, err := stops.NewDirectory(dataset.DomainStops())
	if err != nil {
		log.Fatalf("failed to index stops: %v", err)
	}
	graph := network.NewGraph(dataset.DomainNodes())
	log.Printf("Loaded %d stops and %d network nodes", directory.Len(), graph.Len())

	// Initialize Redis stores. Interfaces stay nil when Redis is disabled.
	var locationStore internalRedis.LocationStoreInterface
	var lockStore internalRedis.LockStoreInterface
	var routeCache internalRedis.RouteCacheInterface
	if redisClient != nil {
		locationStore = internalRedis.NewLocationStore(redisClient)
		lockStore = internalRedis.NewLockStore(redisClient)
		routeCache = internalRedis.NewCacheStore(redisClient, cfg.Routing.CacheTTL)
	}

	// Initialize the live hub.
	hubOpts := fleet.Options{
		SubscriberBuffer: cfg.Fleet.SubscriberBuffer,
		MaxOpenTickets:   cfg.Fleet.MaxOpenTickets,
		Metrics:          collector,
	}
	if natsPublisher != nil {
		hubOpts.Relay = natsPublisher
	}
	hub := fleet.NewHub(hubOpts)

	repos := newRepositories(db)

	// Initialize services.
	var provider service.GeometryProvider
	if cfg.Routing.OSRMURL != "" {
		provider = osrm.NewClient(cfg.Routing.OSRMURL)
	}
	resolver := service.NewRouteResolver(provider, directory, graph, routeCache, collector, service.RouteResolverConfig{
		Timeout:         cfg.Routing.Timeout,
		CorridorWidthSq: cfg.Routing.CorridorWidthSq,
	})
	fares := service.NewFareEngine(service.DefaultFareConfig(), cfg.Location)
	ledger := service.NewLedgerChain(repos.ledger, cfg.Ledger.ValidatorID, collector)
	walletService := service.NewWalletService(repos.wallets, ledger, lockStore, collector, service.WalletConfig{
		StartingBalance: cfg.Wallet.StartingBalance,
		LockTTL:         cfg.Wallet.LockTTL,
	})
	passService := service.NewPassService(repos.passes, ledger, walletService, cfg.Location)
	ticketService := service.NewTicketService(repos.tickets, resolver, fares, walletService, hub, cfg.Wallet.TreasuryID)
	vehicleService := service.NewVehicleService(hub, locationStore, directory, resolver)

	if natsPublisher != nil {
		if err := natsPublisher.SubscribeTelemetry(ctx, vehicleService); err != nil {
			log.Fatalf("failed to subscribe to telemetry: %v", err)
		}
	}

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		StopHandler:    handler.NewStopHandler(directory),
		RouteHandler:   handler.NewRouteHandler(resolver, fares),
		VehicleHandler: handler.NewVehicleHandler(vehicleService),
		StreamHandler:  handler.NewStreamHandler(hub),
		TicketHandler:  handler.NewTicketHandler(ticketService),
		WalletHandler:  handler.NewWalletHandler(walletService),
		LedgerHandler:  handler.NewLedgerHandler(ledger),
		PassHandler:    handler.NewPassHandler(passService),
		FeedHandler:    handler.NewFeedHandler(hub),
		MetricsHandler: collector.Handler(),
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
	})

	// Create HTTP server. WriteTimeout stays 0 by default so SSE streams live.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app.NewHTTPHandler(router, cfg.Server.CORSOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, hub
}
