package httpserver

import (
	"context"
	"html/template"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	ws "github.com/pscheid92/livetranslate/internal/adapter/websocket"
	"github.com/pscheid92/livetranslate/internal/app"
	"github.com/pscheid92/livetranslate/internal/broadcast"
	"github.com/pscheid92/livetranslate/internal/domain"
	"github.com/pscheid92/livetranslate/internal/platform/config"
)

// --- Mock implementations ---

type mockOrchestrator struct {
	addLanguageFn func(code string) error
	connectFn     func(ctx context.Context, lang string, transport broadcast.Transport) error
	state         app.State
	languages     []string
	clients       int
	status        domain.TranscriptionStatus

	mu     sync.Mutex
	starts int
	stops  int
	added  []string
}

func (m *mockOrchestrator) StartWorkingTasks(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	m.state = app.StateRunning
}

func (m *mockOrchestrator) StopWorkingTasks(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	m.state = app.StateStopped
}

func (m *mockOrchestrator) AddLanguage(code string) error {
	m.mu.Lock()
	m.added = append(m.added, code)
	m.mu.Unlock()
	if m.addLanguageFn != nil {
		return m.addLanguageFn(code)
	}
	return nil
}

func (m *mockOrchestrator) HandleConnectionRequest(ctx context.Context, lang string, transport broadcast.Transport) error {
	if m.connectFn != nil {
		return m.connectFn(ctx, lang, transport)
	}
	return domain.ErrUnknownLanguage
}

func (m *mockOrchestrator) State() app.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mockOrchestrator) Languages() []string { return m.languages }

func (m *mockOrchestrator) ClientCount() int { return m.clients }

func (m *mockOrchestrator) TranscriptionStatus() domain.TranscriptionStatus { return m.status }

func (m *mockOrchestrator) SupportedLanguages() []domain.Language {
	return []domain.Language{{Code: "fr", Name: "French"}, {Code: "es", Name: "Spanish"}}
}

func (m *mockOrchestrator) counts() (starts, stops int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts, m.stops
}

type allowAll struct{}

func (allowAll) Acquire(string) (bool, ws.LimitReason) { return true, "" }
func (allowAll) Release(string)                        {}

type denyAll struct{ reason ws.LimitReason }

func (d denyAll) Acquire(string) (bool, ws.LimitReason) { return false, d.reason }
func (denyAll) Release(string)                          {}

// --- Test helpers ---

func newTestServer(t *testing.T, orch orchestrator, opts ...func(*Server)) *Server {
	t.Helper()

	tmpl := template.Must(template.New("index.html").Parse(`Index {{range .Languages}}{{.Code}} {{end}}`))
	template.Must(tmpl.New("settings.html").Parse(`Settings {{.State}}`))

	clock := clockwork.NewFakeClock()
	srv := &Server{
		echo:      echo.New(),
		config:    &config.Config{Port: "0", AppEnv: "development"},
		clock:     clock,
		app:       orch,
		upgrader:  &websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		limits:    allowAll{},
		templates: tmpl,
		startTime: clock.Now(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()
	return srv
}

func callHandler(handler echo.HandlerFunc, c echo.Context) error {
	return ErrorHandlingMiddleware()(handler)(c)
}

const readTimeout = 2 * time.Second
