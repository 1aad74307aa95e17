package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
)

// originPolicy decides which browser pages may open subscriber and control
// sockets. Requests without an Origin header come from non-browser clients
// and are always allowed.
type originPolicy struct {
	public     string // scheme://host of the configured public URL
	localhosts bool
}

// NewCheckOrigin returns the upgrader's CheckOrigin for the public URL appURL.
// Pages served by the requested host pass as well. Development mode also
// admits localhost pages on any port.
func NewCheckOrigin(appURL string, isDevelopment bool) func(r *http.Request) bool {
	p := originPolicy{public: extractOrigin(appURL), localhosts: isDevelopment}
	return p.allow
}

func (p originPolicy) allow(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == p.public {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		slog.Warn("WebSocket origin unparsable", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
	if u.Host == r.Host {
		return true
	}
	if p.localhosts && isLoopbackHost(u.Hostname()) {
		return true
	}

	slog.Warn("WebSocket origin rejected", "origin", origin, "host", r.Host, "remote_addr", r.RemoteAddr)
	return false
}

func extractOrigin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func isLoopbackHost(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
