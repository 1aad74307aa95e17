package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	ws "github.com/pscheid92/livetranslate/internal/adapter/websocket"
	"github.com/pscheid92/livetranslate/internal/domain"
	"github.com/pscheid92/livetranslate/internal/metrics"
	apperrors "github.com/pscheid92/livetranslate/internal/platform/errors"
)

const addLangPrefix = "addLang:"

func (s *Server) registerWebSocketRoutes() {
	s.echo.GET("/ws/transcribe", s.handleSubscribe)
	s.echo.GET("/ws/transcribe/:lang", s.handleSubscribe)
	s.echo.GET("/ws/api", s.handleControl)
}

// handleSubscribe upgrades a subscriber socket and attaches it to the
// channel for :lang until the peer leaves.
func (s *Server) handleSubscribe(c echo.Context) error {
	ip := c.RealIP()
	if ok, reason := s.limits.Acquire(ip); !ok {
		slog.WarnContext(c.Request().Context(), "Subscriber rejected", "remote_addr", ip, "reason", reason)
		return c.JSON(http.StatusTooManyRequests, apperrors.ErrorResponse{
			Status:  apperrors.StatusError,
			Message: "too many connections",
			Type:    apperrors.ErrorType(reason),
		})
	}
	defer s.limits.Release(ip)

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already replied with an HTTP error
		metrics.WebSocketConnectionsTotal.WithLabelValues("upgrade_failed").Inc()
		slog.InfoContext(c.Request().Context(), "WebSocket upgrade failed", "remote_addr", ip, "error", err)
		return nil
	}
	metrics.WebSocketConnectionsTotal.WithLabelValues("upgraded").Inc()

	s.serveSubscriber(c, conn, c.Param("lang"))
	return nil
}

func (s *Server) serveSubscriber(c echo.Context, conn *websocket.Conn, lang string) {
	ctx := c.Request().Context()

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Subscriber handler panic recovered", "lang", lang, "panic", r)
			ws.CloseWith(conn, websocket.CloseInternalServerErr, "internal error")
		}
	}()

	if lang == "" {
		ws.CloseWith(conn, websocket.CloseUnsupportedData, "language not specified")
		return
	}

	err := s.app.HandleConnectionRequest(ctx, lang, conn)
	switch {
	case err == nil, errors.Is(err, domain.ErrManagerClosed):
		// closed by the manager
	case errors.Is(err, domain.ErrUnknownLanguage):
		slog.InfoContext(ctx, "Subscriber requested unknown language", "lang", lang)
		ws.CloseWith(conn, websocket.CloseUnsupportedData, "unknown language")
	default:
		slog.ErrorContext(ctx, "Subscriber handler failed", "lang", lang, "error", err)
		ws.CloseWith(conn, websocket.CloseInternalServerErr, "internal error")
	}
}

// handleControl serves the settings page socket. Each text frame is one
// command: start, stop, state or addLang:<code>.
func (s *Server) handleControl(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.InfoContext(c.Request().Context(), "Control socket upgrade failed", "error", err)
		return nil
	}
	ws.LimitControlReads(conn)
	defer conn.Close()

	ctx := c.Request().Context()
	slog.InfoContext(ctx, "Settings client connected", "remote_addr", c.RealIP())

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			slog.InfoContext(ctx, "Settings client disconnected", "remote_addr", c.RealIP())
			return nil
		}
		if msgType != websocket.TextMessage {
			continue
		}

		reply, err := s.runCommand(c, strings.TrimSpace(string(data)))
		if err != nil {
			slog.ErrorContext(ctx, "Control command failed", "error", err)
			reply = []byte("Command failed")
		}
		if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
			return nil
		}
	}
}

func (s *Server) runCommand(c echo.Context, command string) ([]byte, error) {
	ctx := c.Request().Context()

	switch {
	case command == "start":
		slog.InfoContext(ctx, "Starting transcription task")
		s.app.StartWorkingTasks(ctx)
		return []byte("Worker started!"), nil
	case command == "stop":
		slog.InfoContext(ctx, "Stopping transcription task")
		s.app.StopWorkingTasks(ctx)
		return []byte("Worker stopped!"), nil
	case command == "state":
		data, err := json.Marshal(s.state())
		if err != nil {
			return nil, fmt.Errorf("marshal state: %w", err)
		}
		return data, nil
	case strings.HasPrefix(command, addLangPrefix):
		resp, err := s.addLanguage(strings.TrimPrefix(command, addLangPrefix))
		if err != nil {
			return []byte(apperrors.AsStructuredError(err).Message), nil
		}
		return []byte(resp.Message), nil
	default:
		return []byte("Invalid command"), nil
	}
}
