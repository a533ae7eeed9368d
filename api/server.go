package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/johnnyeric/docker-run/config"
	"github.com/johnnyeric/docker-run/daemon"
	"github.com/johnnyeric/docker-run/sandbox"
)

// maxBodySize bounds the request body read from clients
const maxBodySize = 8 << 20

// Server serves the HTTP run API
type Server struct {
	config     *config.Config
	logger     *zap.Logger
	runner     sandbox.Runner
	defaults   daemon.Defaults
	httpServer *http.Server
}

// New creates the HTTP API server
func New(cfg *config.Config, logger *zap.Logger, runner sandbox.Runner) (*Server, error) {
	defaults, err := sandbox.ContainerDefaults(cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:   cfg,
		logger:   logger,
		runner:   runner,
		defaults: defaults,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Server.APIAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Handler builds the gin router
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST("/run", s.handleRun)

	return router
}

func (s *Server) handleRun(c *gin.Context) {
	data, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorBody{Error: CodeParse, Message: err.Error()})
		return
	}

	body, errBody := ParseRunBody(data)
	if errBody != nil {
		c.JSON(http.StatusBadRequest, errBody)
		return
	}

	result, err := s.runner.Run(c.Request.Context(), body.RunRequest(s.defaults))
	if err != nil {
		resp := RunErrorBody(err)
		if resp.Error == "" {
			s.logger.Error("run returned an uncoded error", zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorBody{Error: "internal", Message: err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, resp)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		s.logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// Start listens on the configured address and serves in the background.
// Listen errors are returned synchronously.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}

	s.logger.Info("starting HTTP API", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", zap.Error(err))
		}
	}()

	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("stopping HTTP API")
	return s.httpServer.Shutdown(ctx)
}
