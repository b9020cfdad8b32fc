package middleware

import (
	"net/http"
	"strings"
)

// Browsers only need the surface the chat widget uses.
const (
	corsMethods        = "GET, POST, OPTIONS"
	corsDefaultHeaders = "Authorization, Content-Type, X-Tenant-Id"
	corsExposeHeaders  = "X-Request-Id, Retry-After"
	corsMaxAge         = "600"
)

// corsPolicy is the precomputed origin allowlist. Origins compare
// case-insensitively on the scheme+host form browsers send.
type corsPolicy struct {
	allowAny bool
	origins  map[string]struct{}
}

func newCORSPolicy(allowed []string) corsPolicy {
	p := corsPolicy{origins: make(map[string]struct{})}
	for _, origin := range allowed {
		origin = strings.ToLower(strings.TrimSpace(origin))
		switch origin {
		case "":
		case "*":
			p.allowAny = true
		default:
			p.origins[origin] = struct{}{}
		}
	}
	return p
}

func (p corsPolicy) permits(origin string) bool {
	if p.allowAny {
		return true
	}
	_, ok := p.origins[strings.ToLower(origin)]
	return ok
}

// CORS applies the allowlist and answers preflights for permitted origins,
// echoing whichever request headers the browser asked about.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := newCORSPolicy(allowedOrigins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" || !policy.permits(origin) {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Expose-Headers", corsExposeHeaders)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				requested := r.Header.Get("Access-Control-Request-Headers")
				if requested == "" {
					requested = corsDefaultHeaders
				}
				h.Set("Access-Control-Allow-Methods", corsMethods)
				h.Set("Access-Control-Allow-Headers", requested)
				h.Set("Access-Control-Max-Age", corsMaxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
