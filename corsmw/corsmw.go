package corsmw

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Config mirrors the source's CorsConfig: an allow-list of origins
// ("*" allows any), the methods and headers advertised to preflight
// requests, whether credentialed requests are allowed, and how long a
// preflight result may be cached by the browser.
type Config struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// DefaultConfig allows any origin for GET/POST/PUT/DELETE/OPTIONS with
// the common Content-Type/Authorization headers, no credentials, and a
// one-hour preflight cache, matching the source test's fixture values
// apart from the wildcard origin.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           time.Hour,
	}
}

// Wrap returns an http.Handler middleware applying cfg to every request
// passing through next. An OPTIONS preflight request never reaches
// next: it is answered directly with 204 (origin allowed) or 403
// (origin rejected).
func Wrap(cfg Config, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if r.Method == http.MethodOptions {
			if origin == "" || !cfg.originAllowed(origin) {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			cfg.addHeaders(w.Header(), origin)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)

		if len(cfg.AllowedOrigins) == 0 {
			return
		}
		allowOrigin := origin
		if cfg.hasWildcard() || allowOrigin == "" {
			allowOrigin = "*"
		} else if !cfg.originAllowed(origin) {
			return
		}
		cfg.addHeaders(w.Header(), allowOrigin)
	})
}

func (c Config) hasWildcard() bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

func (c Config) originAllowed(origin string) bool {
	if len(c.AllowedOrigins) == 0 || c.hasWildcard() {
		return true
	}
	for _, o := range c.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

func (c Config) addHeaders(h http.Header, origin string) {
	h.Set("Access-Control-Allow-Origin", origin)
	if c.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if len(c.AllowedMethods) > 0 {
		h.Set("Access-Control-Allow-Methods", strings.Join(c.AllowedMethods, ", "))
	}
	if len(c.AllowedHeaders) > 0 {
		h.Set("Access-Control-Allow-Headers", strings.Join(c.AllowedHeaders, ", "))
	}
	h.Set("Access-Control-Max-Age", strconv.FormatInt(int64(c.MaxAge.Seconds()), 10))
}
