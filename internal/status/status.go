// Package status serves liveness and the last poll cycle report over HTTP.
package status

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"ticketwatch/internal/scheduler"
)

const shutdownTimeout = 5 * time.Second

// ReportSource exposes the most recent cycle report.
type ReportSource interface {
	LastReport() (scheduler.Report, bool)
}

// Server is the status HTTP server.
type Server struct {
	addr string
	e    *echo.Echo
	log  *slog.Logger
}

// New builds a Server listening on addr.
func New(addr string, src ReportSource, log *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET("/healthz", health)
	e.GET("/report", func(c echo.Context) error {
		r, ok := src.LastReport()
		if !ok {
			return c.NoContent(http.StatusNoContent)
		}
		return c.JSON(http.StatusOK, r)
	})

	return &Server{addr: addr, e: e, log: log}
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("status server listening", "addr", s.addr)
		errCh <- s.e.Start(s.addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("status server stopped")
	return nil
}

func health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
