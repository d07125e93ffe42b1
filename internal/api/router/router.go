package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/crystalcare-intake/internal/analytics"
	"github.com/wolfman30/crystalcare-intake/internal/booking"
	"github.com/wolfman30/crystalcare-intake/internal/conversation"
	httpmiddleware "github.com/wolfman30/crystalcare-intake/internal/http/middleware"
	"github.com/wolfman30/crystalcare-intake/internal/leads"
	"github.com/wolfman30/crystalcare-intake/internal/webchat"
	"github.com/wolfman30/crystalcare-intake/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	BookingHandler      *booking.Handler
	ConversationHandler *conversation.Handler
	WebChatHandler      *webchat.Handler
	LeadsHandler        *leads.Handler
	AnalyticsHandler    *analytics.Handler
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string

	// Admin gate
	Admin httpmiddleware.AdminConfig

	// ChatLimiter caps chat turns per IP; nil disables it. Hand the same
	// limiter to the web chat handler so WebSocket turns share the budget.
	ChatLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.BookingHandler != nil {
			public.Mount("/booking", cfg.BookingHandler.Routes())
		}
		public.Route("/chat", func(chat chi.Router) {
			if cfg.ConversationHandler != nil {
				chat.Post("/sessions", cfg.ConversationHandler.Start)
				chat.Get("/sessions/{id}", cfg.ConversationHandler.Get)
				turn := http.Handler(http.HandlerFunc(cfg.ConversationHandler.Message))
				if cfg.ChatLimiter != nil {
					turn = cfg.ChatLimiter.Middleware(turn)
				}
				chat.Method(http.MethodPost, "/sessions/{id}/messages", turn)
			}
			if cfg.WebChatHandler != nil {
				chat.Get("/ws", cfg.WebChatHandler.HandleWebSocket)
			}
		})
	})

	// Admin routes (shared password header or login token)
	r.Route("/admin", func(admin chi.Router) {
		admin.Post("/login", httpmiddleware.AdminLogin(cfg.Admin, cfg.Logger))
		admin.Group(func(gated chi.Router) {
			gated.Use(httpmiddleware.AdminGate(cfg.Admin))
			if cfg.LeadsHandler != nil {
				gated.Get("/leads", cfg.LeadsHandler.ListLeads)
				gated.Patch("/leads/{id}/status", cfg.LeadsHandler.UpdateStatus)
			}
			if cfg.AnalyticsHandler != nil {
				gated.Get("/analytics", cfg.AnalyticsHandler.GetAnalytics)
			}
		})
	})

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
