package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RegisterRoutes registers the control API on a /v1 group.
func RegisterRoutes(v1 *gin.RouterGroup, h *Handlers) {
	v1.GET("/status", h.HandleStatus)
	v1.GET("/status/stream", h.HandleStatusStream)
	v1.POST("/lock", h.HandleLock)
	v1.POST("/unlock", h.HandleUnlock)

	signals := v1.Group("/signals")
	signals.POST("/intrusion", h.HandleIntrusion)
	signals.POST("/notification", h.HandleNotification)

	input := v1.Group("/input")
	input.POST("/heartbeat", h.HandleHeartbeat)
	input.GET("/blocked", h.HandleBlocked)
	input.POST("/key", h.HandleKey)
	input.POST("/window", h.HandleWindow)
}

// NewRouter builds the gin engine. A nil gatherer disables /metrics.
func NewRouter(h *Handlers, gatherer prometheus.Gatherer, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	RegisterRoutes(router.Group("/v1"), h)
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return router
}

// requestLogger logs each request at debug level.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("api request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// Server is the control API HTTP server.
type Server struct {
	httpServer *http.Server
	cancel     context.CancelFunc
	logger     *zap.Logger
}

// NewServer creates a server for router on addr.
func NewServer(addr string, router http.Handler, logger *zap.Logger) *Server {
	base, cancel := context.WithCancel(context.Background())
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return base },
		},
		cancel: cancel,
		logger: logger,
	}
}

// Serve listens and serves until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Serve() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("control api listening", zap.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown ends open status streams and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.httpServer.Shutdown(ctx)
}
