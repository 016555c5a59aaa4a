// Package api exposes migrations over HTTP.
package api

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/TFMV/kirby/metrics"
	"github.com/TFMV/kirby/migration"
	"github.com/TFMV/kirby/pkg/core"
	"github.com/TFMV/kirby/version"
)

// Migrator runs one migration from a raw request body.
type Migrator interface {
	MigratePayload(ctx context.Context, body []byte) (core.MigrationResult, error)
}

// ServerOptions configures the HTTP listener.
type ServerOptions struct {
	Port    string
	Prefork bool
	// Timeout bounds reads and writes. Migrations of large row sets need more
	// than the idle default.
	Timeout time.Duration
}

// Server holds the Fiber app instance.
type Server struct {
	app     *fiber.App
	opts    ServerOptions
	migr    Migrator
	metrics *metrics.Collector
	logger  *zap.Logger
}

// errorResponse is the body of every failed /migrate call.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Changed bool   `json:"changed"`
}

var statusByKind = map[migration.Kind]int{
	migration.KindRequest:       fiber.StatusBadRequest,
	migration.KindTableMissing:  fiber.StatusNotFound,
	migration.KindCountMismatch: fiber.StatusUnprocessableEntity,
	migration.KindConflict:      fiber.StatusConflict,
	migration.KindConnection:    fiber.StatusServiceUnavailable,
	migration.KindMove:          fiber.StatusInternalServerError,
}

// NewServer wires the routes. collector and logger may be nil.
func NewServer(opts ServerOptions, migr Migrator, collector *metrics.Collector, log *zap.Logger) *Server {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	if log == nil {
		log = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "Kirby",
		IdleTimeout:           10 * time.Second,
		ReadTimeout:           opts.Timeout,
		WriteTimeout:          opts.Timeout,
		Prefork:               opts.Prefork,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{app: app, opts: opts, migr: migr, metrics: collector, logger: log}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	app.Get("/version", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "Kirby",
			"version": version.Version,
			"build":   version.BuildDate,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})
	app.Get("/metrics", func(c *fiber.Ctx) error {
		return c.JSON(s.metrics.Snapshot())
	})
	app.Post("/migrate", s.handleMigrate)

	return s
}

func (s *Server) handleMigrate(c *fiber.Ctx) error {
	if s.migr == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(errorResponse{
			Error:   string(migration.KindConnection),
			Message: "no databases configured",
		})
	}

	// The body buffer is reused by fasthttp after the handler returns.
	body := append([]byte(nil), c.Body()...)
	result, err := s.migr.MigratePayload(c.UserContext(), body)
	if err != nil {
		status, resp := errorFor(err)
		return c.Status(status).JSON(resp)
	}
	return c.JSON(result)
}

func errorFor(err error) (int, errorResponse) {
	resp := errorResponse{Message: err.Error()}
	var me *migration.Error
	if !errors.As(err, &me) {
		resp.Error = "InternalError"
		return fiber.StatusInternalServerError, resp
	}
	resp.Error = string(me.Kind)
	resp.Changed = me.Changed()
	status, ok := statusByKind[me.Kind]
	if !ok {
		status = fiber.StatusInternalServerError
	}
	return status, resp
}

// GetApp returns the underlying Fiber app.
func (s *Server) GetApp() *fiber.App {
	return s.app
}

// Start listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	port := s.opts.Port
	if port == "" {
		port = "8080"
	}
	if _, err := strconv.Atoi(port); err != nil {
		return errors.New("invalid port: " + port)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Kirby API listening", zap.String("port", port))
		errCh <- s.app.Listen(net.JoinHostPort("", port))
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down Kirby API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
