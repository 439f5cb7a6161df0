package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/jotter/internal/imagecodec"
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/noteservice"
)

// RouterConfig holds the knobs of the API router.
type RouterConfig struct {
	AuthEnabled bool
	Token       string
	Palette     models.Palette
	// Images bounds decoded and stored images.
	Images         imagecodec.Limits
	MaxUploadBytes int64
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc *noteservice.Service, cfg RouterConfig) chi.Router {
	h := NewHandler(svc, cfg.Palette, cfg.Images)
	ih := NewImageHandler(h, cfg.MaxUploadBytes)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Route("/notes/{id}", func(r chi.Router) {
		r.Get("/", h.GetNote)
		r.Delete("/", h.DeleteNote)

		r.Put("/image", ih.Upload)
		r.Get("/image", ih.Serve)
		r.Delete("/image", ih.Remove)
	})

	r.Get("/search", h.Search)
	r.Get("/palette", h.Palette)
	r.Get("/views/stream", h.StreamView)

	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}

	return r
}
