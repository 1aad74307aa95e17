package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/livetranslate/internal/domain"
	"github.com/pscheid92/livetranslate/internal/platform/version"
)

const readinessProbeTimeout = 5 * time.Second

// HealthCheck is a named readiness check.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type transcriptionReporter interface {
	TranscriptionStatus() domain.TranscriptionStatus
}

// TranscriptionCheck fails while the transcription source reports an error.
// A stopped source is still ready: subscribers can connect once it starts.
func TranscriptionCheck(r transcriptionReporter) HealthCheck {
	return HealthCheck{
		Name: "transcriber",
		Check: func(context.Context) error {
			status := r.TranscriptionStatus()
			if status.Status != domain.TranscriptionError {
				return nil
			}
			if status.Message == "" {
				return errors.New("transcription source failed")
			}
			return errors.New(status.Message)
		},
	}
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

func (s *Server) handleLiveness(c echo.Context) error {
	return respond(c, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": s.clock.Since(s.startTime).Seconds(),
	})
}

// handleReadiness runs every check and reports each result, so one failing
// check does not hide another.
func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessProbeTimeout)
	defer cancel()

	code, overall := http.StatusOK, "ready"
	results := make(map[string]string, len(s.healthChecks))
	for _, hc := range s.healthChecks {
		if err := hc.Check(ctx); err != nil {
			results[hc.Name] = err.Error()
			code, overall = http.StatusServiceUnavailable, "unhealthy"
			continue
		}
		results[hc.Name] = "ok"
	}

	return respond(c, code, map[string]any{
		"status":        overall,
		"checks":        results,
		"transcription": s.app.TranscriptionStatus(),
	})
}

func (s *Server) handleVersion(c echo.Context) error {
	return respond(c, http.StatusOK, version.Get())
}

func respond(c echo.Context, code int, body any) error {
	if err := c.JSON(code, body); err != nil {
		return fmt.Errorf("failed to write %s response: %w", c.Path(), err)
	}
	return nil
}
