package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/pandochealth/triage/internal/http/middleware"
	"github.com/pandochealth/triage/internal/triage"
	"github.com/pandochealth/triage/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	TriageHandler      *triage.Handler
	IngestHandler      *triage.IngestHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	AdminAuthSecret    string

	// ChatRatePerSecond limits /ai/chat per client IP. Zero disables limiting.
	ChatRatePerSecond float64
	ChatRateBurst     int
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/ai", func(ai chi.Router) {
		ai.Get("/health", cfg.TriageHandler.Health)

		chat := ai.With()
		if cfg.ChatRatePerSecond > 0 {
			burst := cfg.ChatRateBurst
			if burst < 1 {
				burst = 1
			}
			chat = ai.With(httpmiddleware.ChatRateLimit(cfg.ChatRatePerSecond, burst))
		}
		chat.Post("/chat", cfg.TriageHandler.Chat)
		chat.Post("/reset", cfg.TriageHandler.Reset)

		if cfg.IngestHandler != nil {
			ai.With(httpmiddleware.AdminJWT(cfg.AdminAuthSecret)).
				Post("/ingest", cfg.IngestHandler.Ingest)
		}
	})

	return r
}
