// Package middleware holds the cross-origin policy shared by the REST API
// and the websocket upgrader.
package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/cors"
)

// Origins is a normalized allow-list of browser origins.
type Origins struct {
	list     []string
	allowed  map[string]struct{}
	allowAll bool
	logger   *slog.Logger
}

// NewOrigins normalizes origins to scheme://host. "*" allows any origin;
// invalid entries are logged and skipped.
func NewOrigins(origins []string, logger *slog.Logger) *Origins {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Origins{allowed: make(map[string]struct{}), logger: logger}

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		switch {
		case trimmed == "":
			continue
		case trimmed == "*":
			o.allowAll = true
			continue
		}

		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			logger.Warn("ignoring invalid origin", "origin", origin)
			continue
		}
		if _, dup := o.allowed[normalized]; dup {
			continue
		}
		o.allowed[normalized] = struct{}{}
		o.list = append(o.list, normalized)
	}
	return o
}

// List returns the allowed origins, or ["*"] when any origin is accepted.
func (o *Origins) List() []string {
	if o.allowAll {
		return []string{"*"}
	}
	return append([]string(nil), o.list...)
}

// Allowed reports whether origin may talk to the server.
func (o *Origins) Allowed(origin string) bool {
	if o.allowAll {
		return true
	}
	normalized, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}
	_, exists := o.allowed[normalized]
	return exists
}

// CheckOrigin is the websocket upgrader hook. Requests without an Origin
// header come from non-browser clients and are accepted.
func (o *Origins) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || o.Allowed(origin) {
		return true
	}
	o.logger.Warn("blocked websocket from disallowed origin", "origin", origin)
	return false
}

// CORS returns the REST middleware for the same allow-list.
func (o *Origins) CORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: o.List(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
