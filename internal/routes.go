package portfolio_contact

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes wires the HTTP surface:
//
//	GET     /health
//	GET     /api/contact   status of the contact protections
//	POST    /api/contact   submit the contact form
//	OPTIONS /api/contact   CORS preflight
func (s *Server) Routes(logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(LoggingMiddleware(logger))
	r.Use(SecHeaders)

	r.Get("/health", HandleHealth)
	r.Route("/api/contact", func(r chi.Router) {
		r.Get("/", s.HandleStatus)
		r.Post("/", s.HandleContact)
		r.Options("/", s.HandlePreflight)
	})
	return r
}
