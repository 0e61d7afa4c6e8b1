package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "covenbot"

// AliveText is served on the root path for uptime checks.
const AliveText = "🧚 Web Fairy: alive. Bot running."

const shutdownTimeout = 10 * time.Second

// Server is the HTTP listener shared by all modules.
type Server struct {
	engine  *gin.Engine
	httpSrv *http.Server
}

// New creates a Server listening on port. Metrics from gatherer are
// exposed on /metrics when it is non-nil.
func New(port int, gatherer prometheus.Gatherer) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/", handleAlive)
	engine.GET("/health", handleHealth)
	if gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return &Server{
		engine: engine,
		httpSrv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Router returns the engine modules add their routes to.
func (s *Server) Router() *gin.Engine {
	return s.engine
}

// Listen binds the listen address. The returned listener is passed to Serve.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.httpSrv.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.httpSrv.Addr, err)
	}
	return ln, nil
}

// Serve accepts connections on ln until the server is shut down.
func (s *Server) Serve(ln net.Listener) error {
	slog.Info("started HTTP server", "addr", ln.Addr().String())
	if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

func handleAlive(c *gin.Context) {
	c.String(http.StatusOK, AliveText)
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"service": ServiceName,
	})
}
