// Package httpapi assembles the gin.Engine serving every proxy servlet
// named in spec.md §4.H. It wires no global state: every collaborator is
// constructed in the composition root and passed in via Deps.
package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/DimazzzZ/openrouter-proxy-core/internal/health"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/httpapi/handlers"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/httpapi/middleware"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/modelcache"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/settings"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/upstream"
)

// Deps bundles the components the servlets are built from.
type Deps struct {
	Client   *upstream.Client
	Cache    *modelcache.Cache
	Settings *settings.Settings
	Tracker  *health.Tracker
	Logger   *zap.Logger
	Service  string
	Version  string
	Mode     string // "production" selects gin's release mode; anything else selects debug
}

// NewRouter builds the gin.Engine serving /health, /v1/models (+/models),
// /v1/engines (+/engines), and /v1/chat/completions (+/chat/completions).
func NewRouter(d Deps) *gin.Engine {
	if d.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(requestLogger(d.Logger))

	healthHandler := handlers.NewHealthHandler(d.Tracker, d.Service, d.Version)
	modelsHandler := handlers.NewModelsHandler(d.Cache)
	chatHandler := handlers.NewChatHandler(d.Client, d.Cache, d.Settings, d.Tracker, d.Logger)

	router.GET("/health", healthHandler.Health)

	for _, prefix := range []string{"/v1", ""} {
		router.GET(prefix+"/models", modelsHandler.List)
		router.GET(prefix+"/engines", modelsHandler.Engines)
		router.POST(prefix+"/chat/completions", chatHandler.Complete)
	}

	return router
}

// requestLogger mirrors the teacher's ginLogger middleware shape.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.Writer.Header().Get(middleware.RequestIDHeader)),
		)
	}
}
