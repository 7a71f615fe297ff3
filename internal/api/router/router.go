package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/uootd-quotes/internal/assets"
	"github.com/wolfman30/uootd-quotes/internal/auth"
	httpmiddleware "github.com/wolfman30/uootd-quotes/internal/http/middleware"
	"github.com/wolfman30/uootd-quotes/internal/leads"
	"github.com/wolfman30/uootd-quotes/internal/quote"
	"github.com/wolfman30/uootd-quotes/internal/ratelimit"
	"github.com/wolfman30/uootd-quotes/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	QuoteHandler       *quote.Handler
	LeadsHandler       *leads.Handler
	AssetsHandler      *assets.Handler
	AuthHandler        *auth.Handler
	Sessions           auth.Gate
	QuoteLimiter       *ratelimit.Limiter
	RateLimitObserver  httpmiddleware.RejectionObserver
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		if cfg.QuoteHandler != nil {
			api.With(httpmiddleware.QuoteRateLimit(cfg.QuoteLimiter, cfg.RateLimitObserver)).
				Post("/quote", cfg.QuoteHandler.Create)
			api.Post("/composite", cfg.QuoteHandler.Composite)
		}

		requireSession := httpmiddleware.RequireSession(cfg.Sessions)

		if cfg.LeadsHandler != nil {
			api.Route("/leads", func(r chi.Router) {
				// Creation is public; the handler itself gates the manual channel.
				r.Post("/", cfg.LeadsHandler.Create)
				r.With(requireSession).Get("/", cfg.LeadsHandler.List)
				r.With(requireSession).Delete("/", cfg.LeadsHandler.Delete)
			})
		}
		if cfg.AssetsHandler != nil {
			api.With(requireSession).Get("/assets/{id}", cfg.AssetsHandler.Serve)
		}
		if cfg.AuthHandler != nil {
			api.Route("/auth", func(r chi.Router) {
				r.Post("/login", cfg.AuthHandler.Login)
				r.Post("/logout", cfg.AuthHandler.Logout)
			})
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
