package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/handlers"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"villagelink/internal/handler"
	"villagelink/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	StopHandler    *handler.StopHandler
	RouteHandler   *handler.RouteHandler
	VehicleHandler *handler.VehicleHandler
	StreamHandler  *handler.StreamHandler
	TicketHandler  *handler.TicketHandler
	WalletHandler  *handler.WalletHandler
	LedgerHandler  *handler.LedgerHandler
	PassHandler    *handler.PassHandler
	FeedHandler    *handler.FeedHandler
	MetricsHandler http.Handler
	RedisClient    *redis.Client
	NewRelicApp    *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if deps.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Stop routes.
		stops := v1.Group("/stops")
		{
			stops.GET("", deps.StopHandler.List)
			stops.GET("/nearby", deps.StopHandler.Nearby)
		}

		// Route and fare routes.
		v1.GET("/routes/resolve", deps.RouteHandler.Resolve)
		v1.GET("/fares/quote", deps.RouteHandler.Quote)

		// Vehicle routes.
		vehicles := v1.Group("/vehicles")
		{
			vehicles.POST("/register", deps.VehicleHandler.Register)
			vehicles.GET("", deps.VehicleHandler.GetAll)
			vehicles.GET("/nearby", deps.VehicleHandler.Nearby)
			vehicles.POST("/:id/location", deps.VehicleHandler.UpdateLocation)
			vehicles.POST("/:id/disconnect", deps.VehicleHandler.Disconnect)
		}

		// Live stream.
		v1.GET("/stream", deps.StreamHandler.Stream)

		// Ticket routes.
		tickets := v1.Group("/tickets")
		{
			tickets.POST("", deps.TicketHandler.Book)
			tickets.GET("", deps.TicketHandler.ListByPassenger)
			tickets.GET("/:id", deps.TicketHandler.GetTicket)
			tickets.POST("/:id/status", deps.TicketHandler.UpdateStatus)
		}

		// Wallet routes.
		wallets := v1.Group("/wallets")
		{
			wallets.POST("/transfer", deps.WalletHandler.Transfer)
			wallets.POST("/:id", deps.WalletHandler.Open)
			wallets.GET("/:id", deps.WalletHandler.GetWallet)
			wallets.POST("/:id/earn", deps.WalletHandler.Earn)
			wallets.POST("/:id/spend", deps.WalletHandler.Spend)
		}

		// Ledger routes.
		ledger := v1.Group("/ledger")
		{
			ledger.POST("/blocks", deps.LedgerHandler.AddBlock)
			ledger.GET("/blocks", deps.LedgerHandler.ListBlocks)
			ledger.GET("/verify", deps.LedgerHandler.Verify)
		}

		// Pass routes.
		passes := v1.Group("/passes")
		{
			passes.POST("", deps.PassHandler.Purchase)
			passes.GET("", deps.PassHandler.ListByUser)
			passes.GET("/:id", deps.PassHandler.GetPass)
			passes.POST("/:id/verify", deps.PassHandler.Verify)
		}

		// Realtime feed.
		v1.GET("/feed/vehicle-positions", deps.FeedHandler.VehiclePositions)
	}

	return router
}

// NewHTTPHandler wraps the router with CORS handling for the given origins.
func NewHTTPHandler(router http.Handler, origins []string) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Idempotency-Key"}),
	)(router)
}
