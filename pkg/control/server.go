// Package control serves the operational HTTP endpoints of a running bot:
// liveness, readiness and Prometheus metrics.
package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/physum/physbot/pkg/log"
)

// ReadyFunc reports whether the bot finished its startup work.
type ReadyFunc func() bool

// Server exposes operational controls for a running bot instance.
type Server struct {
	addr       string
	ready      ReadyFunc
	engine     *gin.Engine
	httpServer *http.Server
	listener   net.Listener
}

// NewServer returns nil if addr is empty.
func NewServer(addr string, ready ReadyFunc) *Server {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil
	}

	s := &Server{addr: addr, ready: ready}
	s.engine = NewRouter(ready)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// NewRouter builds the gin engine behind the server.
func NewRouter(ready ReadyFunc) *gin.Engine {
	if ready == nil {
		ready = func() bool { return true }
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(Metrics())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if !ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// Addr returns the bound address once started, the configured one before.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Start opens the control server listening socket.
func (s *Server) Start() error {
	if s == nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("bind control server: %w", err)
	}
	s.listener = ln

	log.ApplicationLogger().Info("Control server listening", "addr", ln.Addr().String())

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.ApplicationLogger().Error("Control server stopped unexpectedly", "err", err)
		}
	}()

	return nil
}

// Stop shuts down the control server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown control server: %w", err)
	}

	log.ApplicationLogger().Info("Control server stopped", "addr", s.addr)
	return nil
}
