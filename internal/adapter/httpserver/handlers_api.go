package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/livetranslate/internal/domain"
	apperrors "github.com/pscheid92/livetranslate/internal/platform/errors"
)

const statusSuccess = "success"

type addLanguageRequest struct {
	Lang string `json:"lang"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type stateResponse struct {
	Status            string                    `json:"status"`
	TranscriberStatus domain.TranscriptionState `json:"transcriber_status"`
	Message           string                    `json:"message"`
	State             string                    `json:"state"`
	Languages         []string                  `json:"languages"`
	Clients           int                       `json:"clients"`
}

func (s *Server) registerAPIRoutes(rateLimiter echo.MiddlewareFunc) {
	api := s.echo.Group("/api", rateLimiter)
	api.POST("/addLang", s.handleAddLanguage)
	api.POST("/start", s.handleStart)
	api.POST("/stop", s.handleStop)
	api.GET("/state_json", s.handleState)
	api.GET("/languages", s.handleLanguages)
}

func (s *Server) handleAddLanguage(c echo.Context) error {
	var req addLanguageRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	msg, err := s.addLanguage(req.Lang)
	if err != nil {
		return err
	}
	return writeJSON(c, msg)
}

// addLanguage maps AddLanguage outcomes onto the reply shared by the HTTP and
// control socket surfaces. A duplicate language is reported in the body, the
// way the control page expects, instead of as an HTTP error.
func (s *Server) addLanguage(lang string) (statusResponse, error) {
	err := s.app.AddLanguage(lang)
	switch {
	case err == nil:
		return statusResponse{Status: statusSuccess, Message: fmt.Sprintf("Language %s added.", lang)}, nil
	case errors.Is(err, domain.ErrChannelExists):
		return statusResponse{Status: apperrors.StatusError, Message: fmt.Sprintf("Error adding Language %s: already exists", lang)}, nil
	case errors.Is(err, domain.ErrEmptyLanguage):
		return statusResponse{}, apperrors.ValidationError("lang is required").WithField("lang", lang)
	case errors.Is(err, domain.ErrInvalidLanguageCode):
		return statusResponse{}, apperrors.ValidationError("lang must not contain surrounding whitespace").WithField("lang", lang)
	default:
		return statusResponse{}, apperrors.InternalError("failed to add language", err).WithField("lang", lang)
	}
}

func (s *Server) handleStart(c echo.Context) error {
	s.app.StartWorkingTasks(c.Request().Context())
	return writeJSON(c, statusResponse{Status: statusSuccess, Message: "Worker started!"})
}

func (s *Server) handleStop(c echo.Context) error {
	s.app.StopWorkingTasks(c.Request().Context())
	return writeJSON(c, statusResponse{Status: statusSuccess, Message: "Worker stopped!"})
}

func (s *Server) handleState(c echo.Context) error {
	return writeJSON(c, s.state())
}

func (s *Server) state() stateResponse {
	status := s.app.TranscriptionStatus()
	languages := s.app.Languages()
	if languages == nil {
		languages = []string{}
	}
	return stateResponse{
		Status:            statusSuccess,
		TranscriberStatus: status.Status,
		Message:           status.Message,
		State:             s.app.State().String(),
		Languages:         languages,
		Clients:           s.app.ClientCount(),
	}
}

func (s *Server) handleLanguages(c echo.Context) error {
	return writeJSON(c, s.app.SupportedLanguages())
}

func writeJSON(c echo.Context, body any) error {
	return respond(c, http.StatusOK, body)
}
