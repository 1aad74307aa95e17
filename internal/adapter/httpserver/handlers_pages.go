package httpserver

import (
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/livetranslate/internal/domain"
)

type pageData struct {
	Languages []domain.Language
	Active    []string
	State     string
}

func (s *Server) pageData() pageData {
	return pageData{
		Languages: s.app.SupportedLanguages(),
		Active:    s.app.Languages(),
		State:     s.app.State().String(),
	}
}

func (s *Server) handleIndex(c echo.Context) error {
	return s.renderTemplate(c, "index.html", s.pageData())
}

func (s *Server) handleSettings(c echo.Context) error {
	return s.renderTemplate(c, "settings.html", s.pageData())
}
