package api

import (
	"ai-chat/internal/api/handlers"
	"ai-chat/internal/app"
	"ai-chat/internal/logger"
	"ai-chat/internal/metrics"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// NewRouter builds the HTTP surface of the application
func NewRouter(cfg *app.Config) http.Handler {
	ch := handlers.NewChatHandlers(cfg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	// Public routes
	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Post("/api/login", cfg.Auth.LoginHandler)
	r.Get("/api/share/{id}", ch.GetSharedHandler)
	r.Get("/share/{id}", ch.SharePageHandler)
	r.Handle("/metrics", metrics.Handler())

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(cfg.Auth.Middleware)

		r.Get("/api/models", ch.GetModelsHandler)
		r.Get("/api/keys/missing", ch.MissingKeysHandler)

		r.Route("/api/conversations", func(r chi.Router) {
			r.Post("/", ch.CreateConversationHandler)
			r.Get("/", ch.GetConversationsHandler)
			r.Delete("/", ch.ClearConversationsHandler)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", ch.GetConversationHandler)
				r.Delete("/", ch.DeleteConversationHandler)
				r.Put("/model", ch.SetModelHandler)
				r.Post("/share", ch.ShareConversationHandler)
				r.Post("/regenerate", ch.RegenerateHandler)
				r.Post("/messages", ch.SubmitMessageHandler)
				r.Patch("/messages/{messageID}", ch.EditMessageHandler)
				r.Delete("/messages/{messageID}", ch.DeleteMessageHandler)
			})
		})
	})

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		logger.Log.WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"elapsed_ms": time.Since(start).Milliseconds(),
		}).Debug("HTTP request")
	})
}
