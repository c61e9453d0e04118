package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// routes mounts the v1 API:
//
//	GET /api/v1/health   liveness plus dependency checks
//	GET /api/v1/status   current accessory status
//	PUT /api/v1/status   request on or off
//	GET /api/v1/history  recent transitions
//	GET /api/v1/ws       live event stream
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(withRequestID, s.logRequests, s.recoverPanics, middleware.RequestSize(maxRequestBodySize))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		fail(w, r, http.StatusNotFound, "no route for %s %s", r.Method, r.URL.Path)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleGetStatus)
		r.Put("/status", s.handleSetStatus)
		r.Get("/history", s.handleHistory)
		r.Get("/ws", s.handleWebSocket)
	})
	return r
}
