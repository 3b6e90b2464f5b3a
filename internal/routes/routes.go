// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"uart-assist/docs"
	"uart-assist/internal/config"
	"uart-assist/internal/database"
	"uart-assist/internal/discovery"
	"uart-assist/internal/handler"
	"uart-assist/internal/middleware"
	"uart-assist/internal/observe"
	"uart-assist/internal/repository"
	"uart-assist/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config  *config.Config
	logger  *zap.Logger
	db      *database.DB
	tracker *observe.Tracker
	bus     *observe.EventBus
	runs    repository.RunRepository
	scanner discovery.PortScanner
}

// NewRouter creates a new router instance; db may be nil
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	db *database.DB,
	tracker *observe.Tracker,
	bus *observe.EventBus,
	runs repository.RunRepository,
	scanner discovery.PortScanner,
) *Router {
	return &Router{
		config:  config,
		logger:  logger,
		db:      db,
		tracker: tracker,
		bus:     bus,
		runs:    runs,
		scanner: scanner,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	// gin's debug output would interleave with the observation lines
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "monitor-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Monitor))

	r.logger.Debug("Middleware configured")
}

// addRoutes sets up all monitor routes
func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.db, r.tracker, r.config, r.logger)
	runHandler := handler.NewRunHandler(r.tracker, r.runs, r.logger)
	discoveryHandler := handler.NewDiscoveryHandler(r.scanner, r.logger)
	wsHandler := handler.NewWebSocketHandler(r.bus, r.tracker, r.config.Monitor.AllowedOrigins, r.logger)

	healthHandler.RegisterRoutes(router.Group(""))

	apiV1 := router.Group("/api/v1")
	r.addRunRoutes(apiV1, runHandler)
	apiV1.GET("/ports", discoveryHandler.ListPorts)

	ws := router.Group("/ws")
	{
		ws.GET("/events", wsHandler.HandleEventConnection)
	}

	r.addDocumentationRoutes(router)

	r.logger.Debug("All routes configured successfully")
}

// addRunRoutes sets up current run and history routes
func (r *Router) addRunRoutes(api *gin.RouterGroup, runHandler *handler.RunHandler) {
	api.GET("/run", runHandler.CurrentRun)

	runs := api.Group("/runs")
	{
		runs.GET("", runHandler.ListRuns)
		runs.GET("/:run_id", runHandler.GetRun)
	}
}

// addDocumentationRoutes sets up documentation routes
func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	docs.SwaggerInfo.Version = r.config.App.Version

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	// Swagger redirect for convenience
	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}
