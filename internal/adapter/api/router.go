package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/cors"

	"github.com/V4T54L/safewatch/internal/adapter/api/handler"
	"github.com/V4T54L/safewatch/internal/adapter/api/middleware"
	"github.com/V4T54L/safewatch/internal/domain"
)

// RouterDeps are the handlers and policies the dashboard API is built from.
type RouterDeps struct {
	Broker   *handler.SSEBroker
	Notify   *handler.NotifyHandler
	Analysis *handler.AnalysisHandler
	// NotifyAuth guards POST /api/notify. Nil leaves it open.
	NotifyAuth  domain.APIKeyValidator
	CORSOrigins []string
}

// NewRouter creates and configures the HTTP router for the dashboard server.
func NewRouter(deps RouterDeps, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	var notify http.Handler = deps.Notify
	if deps.NotifyAuth != nil {
		notify = middleware.Auth(deps.NotifyAuth, logger)(notify)
	}

	// Routes
	mux.Handle("POST /api/notify", notify)
	mux.Handle("GET /api/notifications", deps.Broker)
	mux.HandleFunc("GET /api/analyzed-data", deps.Analysis.List)
	mux.HandleFunc("GET /api/analyzed-data/{filename}", deps.Analysis.Get)
	mux.HandleFunc("GET /api/files", deps.Analysis.Files)
	mux.HandleFunc("GET /api/health", deps.Analysis.Health)

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Cache-Control", middleware.APIKeyHeader},
		AllowCredentials: true,
		MaxAge:           300,
	})

	return corsHandler(middleware.Logging(logger)(mux))
}
