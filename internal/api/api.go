package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"supplytrack/internal/cooking"
	"supplytrack/internal/database"
	"supplytrack/internal/feed"
	"supplytrack/internal/logging"
	"supplytrack/internal/monitoring"
	"supplytrack/internal/transit"
)

// Deps are the collaborators the API serves from. Hub, Metrics and Monitor
// are optional.
type Deps struct {
	Store    *database.Store
	Cooking  *cooking.Service
	Transits *transit.Service
	Hub      *feed.Hub
	Metrics  *monitoring.MetricsCollector
	Monitor  *monitoring.Monitor
	Logger   *zap.Logger
}

// API represents the HTTP surface of the supply tracker
type API struct {
	Router   *gin.Engine
	store    *database.Store
	cooking  *cooking.Service
	transits *transit.Service
	hub      *feed.Hub
	metrics  *monitoring.MetricsCollector
	monitor  *monitoring.Monitor
	logger   *zap.Logger
}

// New creates the API and registers every route.
func New(deps Deps) *API {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(logging.GinLogger(logger), gin.Recovery())

	a := &API{
		Router:   router,
		store:    deps.Store,
		cooking:  deps.Cooking,
		transits: deps.Transits,
		hub:      deps.Hub,
		metrics:  deps.Metrics,
		monitor:  deps.Monitor,
		logger:   logger,
	}
	if a.metrics != nil {
		router.Use(a.recordRequests)
	}

	a.setupRoutes()
	return a
}

// setupRoutes configures all API endpoints
func (a *API) setupRoutes() {
	a.Router.GET("/health", a.Health)

	v1 := a.Router.Group("/api/v1")
	{
		// Nodes
		v1.GET("/nodes", a.ListNodes)
		v1.POST("/nodes", a.CreateNode)
		v1.GET("/nodes/:id", a.GetNode)
		v1.PUT("/nodes/:id", a.UpdateNode)
		v1.DELETE("/nodes/:id", a.DeleteNode)
		v1.GET("/nodes/:id/inventory", a.GetNodeInventory)

		// Item types
		v1.GET("/item-types", a.ListItemTypes)
		v1.POST("/item-types", a.CreateItemType)
		v1.GET("/item-types/:id", a.GetItemType)
		v1.PUT("/item-types/:id", a.UpdateItemType)
		v1.DELETE("/item-types/:id", a.DeleteItemType)

		// Batches
		v1.GET("/item-instances", a.ListBatches)
		v1.POST("/item-instances", a.CreateBatch)
		v1.GET("/item-instances/:id", a.GetBatch)
		v1.PUT("/item-instances/:id", a.UpdateBatch)
		v1.DELETE("/item-instances/:id", a.DeleteBatch)

		// Recipes and cooking
		v1.GET("/recipes", a.ListRecipes)
		v1.POST("/recipes", a.CreateRecipe)
		v1.GET("/recipes/:id", a.GetRecipe)
		v1.PUT("/recipes/:id", a.UpdateRecipe)
		v1.DELETE("/recipes/:id", a.DeleteRecipe)
		v1.POST("/recipes/:id/approve", a.ApproveRecipe)
		v1.POST("/cook", a.Cook)

		// Transits and QR hand-off
		v1.GET("/transits", a.ListTransits)
		v1.POST("/transits", a.DispatchTransit)
		v1.GET("/transits/:id", a.GetTransit)
		v1.POST("/transits/:id/complete", a.CompleteTransit)
		v1.POST("/qr", a.CreateQR)
		v1.POST("/qr/scan/:token", a.ScanQR)

		// Reports
		v1.GET("/reports", a.ListReports)
		v1.POST("/reports", a.CreateReport)
		v1.GET("/reports/:id", a.GetReport)
		v1.PATCH("/reports/:id/status", a.UpdateReportStatus)

		// Live state
		v1.GET("/stats", a.Stats)
		if a.hub != nil {
			v1.GET("/ws", a.hub.ServeWS)
		}
	}
}

// Health reports that the API is serving and the database answers.
func (a *API) Health(c *gin.Context) {
	if err := a.store.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "supplytrack API is running"})
}

// Stats returns live counters kept by the monitor.
func (a *API) Stats(c *gin.Context) {
	stats := map[string]interface{}{}
	if a.monitor != nil {
		stats = a.monitor.GetMetrics()
	}
	if a.hub != nil {
		stats["feed_clients"] = a.hub.ClientCount()
	}
	ok(c, http.StatusOK, "", stats)
}

func (a *API) recordRequests(c *gin.Context) {
	c.Next()
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	a.metrics.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status())
}
