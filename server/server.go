// Package server wires the HTTP surface of the librarian.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/smartlibrarian/ai/librarian"
	"github.com/hrygo/smartlibrarian/ai/metrics"
	"github.com/hrygo/smartlibrarian/ai/observability/logging"
	"github.com/hrygo/smartlibrarian/internal/profile"
	apiv1 "github.com/hrygo/smartlibrarian/server/router/api/v1"
)

// maxBodySize covers a 25MB voice recording plus multipart overhead.
const maxBodySize = "32M"

type Server struct {
	Profile *profile.Profile

	echoServer *echo.Echo
}

// NewServer builds the echo instance with middleware and the static route
// table. exporter may be nil, which disables /metrics.
func NewServer(_ context.Context, profile *profile.Profile, lib *librarian.Librarian, exporter *metrics.PrometheusExporter) (*Server, error) {
	if lib == nil {
		return nil, fmt.Errorf("librarian is required")
	}

	echoServer := echo.New()
	echoServer.Debug = profile.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			ctx := logging.With(c.Request().Context(), "request_id", id)
			c.SetRequest(c.Request().WithContext(ctx))
		},
	}))
	echoServer.Use(middleware.BodyLimit(maxBodySize))
	echoServer.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				slog.Warn("HTTP request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			slog.Debug("HTTP request", attrs...)
			return nil
		},
	}))

	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": profile.Version})
	})
	if exporter != nil {
		echoServer.GET("/metrics", echo.WrapHandler(exporter.Handler()))
	}

	apiv1.NewAPIV1Service(profile, lib).RegisterRoutes(echoServer)

	return &Server{Profile: profile, echoServer: echoServer}, nil
}

// Addr returns the bound listener address, empty before Start.
func (s *Server) Addr() string {
	if s.echoServer.Listener == nil {
		return ""
	}
	return s.echoServer.Listener.Addr().String()
}

// ServeHTTP lets the server be exercised without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echoServer.ServeHTTP(w, r)
}

// Start binds the listener and serves in the background. Bind errors, such
// as a port already in use, are returned to the caller.
func (s *Server) Start(_ context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	s.echoServer.Listener = listener
	go func() {
		if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slog.Info("server shutting down")
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}
	slog.Info("server stopped properly")
}
