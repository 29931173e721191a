// Package rest exposes the workflow service over HTTP: execution
// submission and lookup, workflow definition registration, metrics and
// health. Responses use the shared envelope from internal/response.
package rest

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/engine"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/logger"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/metrics"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/response"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// Config holds the HTTP server settings.
type Config struct {
	// Address is the listen address, e.g. ":8080".
	Address string

	// ReadTimeout is the maximum duration for reading a request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration for writing a response.
	WriteTimeout time.Duration

	// EnableCORS enables permissive cross-origin headers.
	EnableCORS bool

	// MaxConcurrent bounds the number of workflow executions running on
	// behalf of this server at any one time. Submissions beyond the
	// bound are refused with 429 rather than queued.
	MaxConcurrent int
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:       ":8080",
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  30 * time.Second,
		EnableCORS:    false,
		MaxConcurrent: 64,
	}
}

// Server is the REST front end of the workflow engine.
type Server struct {
	app    *fiber.App
	engine *engine.Engine
	coll   *metrics.Collector
	cfg    *Config

	// sem bounds concurrent submissions; a slot is held for the whole
	// lifetime of the spawned execution, not just the request.
	sem chan struct{}

	mu          sync.RWMutex
	definitions map[string]*types.WorkflowDefinition
}

// NewServer creates a REST server around the given engine. The metrics
// collector may be nil, in which case GET /api/v1/metrics returns an
// empty snapshot.
func NewServer(eng *engine.Engine, coll *metrics.Collector, cfg *Config) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultConfig().MaxConcurrent
	}

	s := &Server{
		engine:      eng,
		coll:        coll,
		cfg:         cfg,
		sem:         make(chan struct{}, cfg.MaxConcurrent),
		definitions: make(map[string]*types.WorkflowDefinition),
	}

	s.app = fiber.New(fiber.Config{
		AppName:      "workflow-service",
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		ErrorHandler: errorHandler,
		JSONEncoder:  sonic.Marshal,
		JSONDecoder:  sonic.Unmarshal,
	})

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.app.Use(fiberrecover.New(fiberrecover.Config{
		EnableStackTrace: true,
	}))
	s.app.Use(requestLogger())
	if s.cfg.EnableCORS {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: "*",
			AllowMethods: "GET,POST,OPTIONS",
			AllowHeaders: "Origin, Content-Type, Accept",
		}))
	}
}

func (s *Server) setupRoutes() {
	s.app.Get("/healthz", s.handleHealth)

	v1 := s.app.Group("/api/v1")
	v1.Post("/executions", s.handleSubmit)
	v1.Get("/executions/:id", s.handleGetExecution)
	v1.Get("/metrics", s.handleMetrics)
	v1.Post("/workflows", s.handleRegisterWorkflow)
	v1.Get("/workflows/:id", s.handleGetWorkflow)
}

// requestLogger logs one line per request at debug level, errors at
// warn.
func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
			logger.Warn("http request failed", fields...)
			return err
		}
		logger.Debug("http request", fields...)
		return nil
	}
}

// errorHandler converts errors escaping handlers (including recovered
// panics) into the shared envelope.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	logger.Error("unhandled request error",
		zap.String("path", c.Path()),
		zap.Int("status", code),
		zap.Error(err))
	return response.ErrorWithCode(c, code, err.Error())
}

// Start begins listening on the configured address and blocks until
// the server is shut down.
func (s *Server) Start() error {
	logger.Info("http server starting", zap.String("address", s.cfg.Address))
	return s.app.Listen(s.cfg.Address)
}

// StartWithContext starts the server and shuts it down when the
// context is cancelled.
func (s *Server) StartWithContext(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		if err := s.Shutdown(); err != nil {
			logger.Error("http server shutdown", zap.Error(err))
		}
	}()
	return s.Start()
}

// Shutdown gracefully stops the server, letting in-flight requests
// finish.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// ShutdownWithTimeout gracefully stops the server, forcing the issue
// after the given timeout.
func (s *Server) ShutdownWithTimeout(timeout time.Duration) error {
	return s.app.ShutdownWithTimeout(timeout)
}

// App exposes the underlying fiber application for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
