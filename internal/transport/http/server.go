package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/channelchat/internal/auth"
	"github.com/vovakirdan/channelchat/internal/config"
	"github.com/vovakirdan/channelchat/internal/core"
)

// NewServer builds the HTTP server: the JSON control API, the WebSocket
// endpoint and the diagnostics routes. gatherer may be nil, which leaves
// /metrics unregistered.
func NewServer(hub *core.Hub, authService *auth.Service, gatherer prometheus.Gatherer, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(hub, authService, gatherer, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter registers every route on a fresh gin engine.
func NewRouter(hub *core.Hub, authService *auth.Service, gatherer prometheus.Gatherer, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	apiHandlers := NewAPIHandlers(hub, authService, logger)
	channelHandlers := NewChannelHandlers(hub, logger)

	api := router.Group("/api")
	api.POST("/login", apiHandlers.Login)
	api.POST("/guest", apiHandlers.GuestLogin)

	authed := api.Group("")
	authed.Use(AuthMiddleware(authService, logger))
	authed.POST("/hello", apiHandlers.Hello)
	authed.GET("/channels", channelHandlers.ListChannels)
	authed.GET("/channels/:name", channelHandlers.ChannelInfo)
	authed.POST("/channels/:name/join", channelHandlers.Join)
	authed.POST("/channels/:name/join-or-create", channelHandlers.JoinOrCreate)
	authed.POST("/channels/:name/leave", channelHandlers.Leave)

	admin := api.Group("/admin")
	admin.Use(AdminMiddleware(cfg.AdminKeyHash, logger))
	admin.POST("/channels", channelHandlers.CreateChannel)
	admin.DELETE("/channels/:name", channelHandlers.CloseChannel)
	admin.GET("/stats", apiHandlers.Stats)

	// The socket authenticates with ?token= since browsers cannot set
	// headers on the upgrade request.
	ws := NewWSHandler(hub, authService, logger).WithFrameLimit(cfg.MaxFrameBytes)
	router.GET("/ws", gin.WrapH(ws))

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
