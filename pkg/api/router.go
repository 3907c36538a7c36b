package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/urmzd/peerlobby/pkg/api/handlers"
	"github.com/urmzd/peerlobby/pkg/lobby"
)

// Router holds the Gin engine and dependencies
type Router struct {
	engine    *gin.Engine
	svc       lobby.Service
	lobbyName string
}

// NewRouter creates a new API router over svc. lobbyName is advertised in
// the join descriptor.
func NewRouter(svc lobby.Service, lobbyName string) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	SetupMiddleware(engine)

	router := &Router{
		engine:    engine,
		svc:       svc,
		lobbyName: lobbyName,
	}

	router.setupRoutes()

	return router
}

// setupRoutes configures all API routes
func (r *Router) setupRoutes() {
	// Swagger UI
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.engine.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})

	healthHandler := handlers.NewHealthHandler(r.svc)
	r.engine.GET("/health", healthHandler.Health)

	v1 := r.engine.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.Health)

		lobbyHandler := handlers.NewLobbyHandler(r.svc)
		eventsHandler := handlers.NewEventsHandler(r.svc)
		qrHandler := handlers.NewQRHandler(r.svc, r.lobbyName)
		lg := v1.Group("/lobby")
		{
			lg.GET("", lobbyHandler.GetState)
			lg.GET("/identity", lobbyHandler.GetIdentity)
			lg.GET("/devices", lobbyHandler.ListDevices)
			lg.POST("/join", lobbyHandler.Join)
			lg.POST("/leave", lobbyHandler.Leave)
			lg.PUT("/role", lobbyHandler.SetRole)
			lg.PUT("/mode", lobbyHandler.SetMode)
			lg.DELETE("/error", lobbyHandler.ClearError)
			lg.GET("/events", eventsHandler.Events)
			lg.GET("/join-info", qrHandler.Join)
			lg.GET("/qr", qrHandler.QR)
		}

		gameHandler := handlers.NewGameHandler(r.svc)
		v1.POST("/game/start", gameHandler.Start)
		v1.POST("/game/stop", gameHandler.Stop)
		v1.POST("/commands", gameHandler.SendCommand)
		v1.POST("/settings", gameHandler.SendSettings)

		v1.GET("/ws", handlers.NewSocketHandler(r.svc).Serve)
	}
}

// Handler exposes the engine as an http.Handler.
func (r *Router) Handler() http.Handler {
	return r.engine
}

// Run starts the HTTP server
func (r *Router) Run(addr string) error {
	return r.engine.Run(addr)
}
