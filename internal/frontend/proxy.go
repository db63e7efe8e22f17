package frontend

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Path prefixes the backend services are reachable under.
const (
	energyServicePrefix = "/energy-service"
	waterServicePrefix  = "/water-service"
)

type baseURLer interface {
	BaseURL() string
}

// mountProxies forwards /energy-service/* and /water-service/* to the
// backends unchanged. The upstream is the configured proxy target or, when
// unset, the origin the client talks to.
func (s *Server) mountProxies(r chi.Router) error {
	for _, p := range []struct {
		prefix   string
		explicit string
		client   any
	}{
		{energyServicePrefix, s.config.EnergyProxy, s.config.Energy},
		{waterServicePrefix, s.config.WaterProxy, s.config.Water},
	} {
		target, err := proxyTarget(p.explicit, p.client)
		if err != nil {
			return fmt.Errorf("proxy %s: %w", p.prefix, err)
		}
		if target == nil {
			continue
		}
		r.Handle(p.prefix+"/*", s.withCORS(s.reverseProxy(p.prefix, target)))
		s.logger.Debug("backend proxy mounted", "prefix", p.prefix, "upstream", target.String())
	}
	return nil
}

func proxyTarget(explicit string, client any) (*url.URL, error) {
	raw := explicit
	if raw == "" {
		c, ok := client.(baseURLer)
		if !ok {
			return nil, nil
		}
		raw = c.BaseURL()
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("upstream %q must be an absolute URL", raw)
	}
	if explicit == "" {
		// Requests already carry the service path.
		return &url.URL{Scheme: u.Scheme, Host: u.Host}, nil
	}
	return u, nil
}

func (s *Server) reverseProxy(prefix string, target *url.URL) http.Handler {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			s.logger.Warn("backend proxy failed", "prefix", prefix, "path", r.URL.Path, "error", err)
			http.Error(w, "Bad Gateway", http.StatusBadGateway)
		},
	}
}

// withCORS lets the configured origins call the proxied services from the
// browser. Without origins only same-origin pages can.
func (s *Server) withCORS(next http.Handler) http.Handler {
	if len(s.config.ProxyCORSOrigins) == 0 {
		return next
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: s.config.ProxyCORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})(next)
}
