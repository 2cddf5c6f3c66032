package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/agentstation/inkwell/internal/metrics"
	"github.com/agentstation/inkwell/internal/server/middleware"
	"github.com/agentstation/inkwell/internal/server/response"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Recovery(s.logger))
	r.Use(middleware.Logger(s.logger))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.NotFound(w, "Not found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusMethodNotAllowed, response.Fail(
			"METHOD_NOT_ALLOWED",
			"Method not allowed",
			"Method "+r.Method+" is not supported for this endpoint",
		))
	})

	metrics.Mount(r, s.client.Connectivity().IsOnline)

	r.Route(s.config.PathPrefix, func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Get("/drafts", s.handleListDrafts)
		r.Get("/drafts/{id}", s.handleGetDraft)
		r.Delete("/drafts/{id}", s.handleDiscardDraft)
		r.Post("/sync", s.handleSync)

		r.Get("/notifications", s.handleListNotifications)
		r.Post("/notifications/{id}/read", s.handleMarkRead)

		r.Handle("/events", s.stream)
	})

	return r
}
