package httpserver

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	ws "github.com/pscheid92/livetranslate/internal/adapter/websocket"
	"github.com/pscheid92/livetranslate/internal/app"
	"github.com/pscheid92/livetranslate/internal/broadcast"
	"github.com/pscheid92/livetranslate/internal/domain"
	"github.com/pscheid92/livetranslate/internal/platform/config"
	"github.com/pscheid92/livetranslate/web"
)

type orchestrator interface {
	StartWorkingTasks(ctx context.Context)
	StopWorkingTasks(ctx context.Context)
	AddLanguage(code string) error
	HandleConnectionRequest(ctx context.Context, lang string, transport broadcast.Transport) error
	State() app.State
	Languages() []string
	ClientCount() int
	TranscriptionStatus() domain.TranscriptionStatus
	SupportedLanguages() []domain.Language
}

type connectionLimits interface {
	Acquire(ip string) (bool, ws.LimitReason)
	Release(ip string)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	clock  clockwork.Clock

	app      orchestrator
	upgrader *websocket.Upgrader
	limits   connectionLimits

	templates    *template.Template
	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, app orchestrator, upgrader *websocket.Upgrader, limits connectionLimits, healthChecks []HealthCheck, clock clockwork.Clock) (*Server, error) {
	templates, err := template.ParseFS(web.TemplateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		config:       cfg,
		clock:        clock,
		app:          app,
		upgrader:     upgrader,
		limits:       limits,
		templates:    templates,
		healthChecks: healthChecks,
		startTime:    clock.Now(),
	}

	srv.registerRoutes()

	return srv, nil
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func (s *Server) renderTemplate(c echo.Context, name string, data any) error {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("Template execution failed", "path", c.Request().URL.Path, "error", err)
		if err := c.String(http.StatusInternalServerError, "Failed to render page"); err != nil {
			return fmt.Errorf("failed to send error response: %w", err)
		}
		return nil
	}
	if err := c.HTMLBlob(http.StatusOK, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to send HTML response: %w", err)
	}
	return nil
}
