package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quillpost/quillpost-go/internal/auth"
)

// Routes holds everything the HTTP API is assembled from.
type Routes struct {
	Auth  *AuthHandler
	Users *UserHandler
	Posts *PostHandler
	Guard *auth.Guard

	// Middleware wraps every request, outermost first.
	Middleware []func(http.Handler) http.Handler
	// CredentialLimit, if set, wraps the endpoints that accept passwords.
	CredentialLimit func(http.Handler) http.Handler
	// Metrics, if set, is served at /metrics.
	Metrics http.Handler
}

// NewRouter builds the chi router for the API.
func NewRouter(rt Routes) http.Handler {
	r := chi.NewRouter()
	for _, mw := range rt.Middleware {
		r.Use(mw)
	}
	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)

	r.Get("/health", Health)
	if rt.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if rt.CredentialLimit != nil {
				r.Use(rt.CredentialLimit)
			}
			r.Post("/auth/register", rt.Auth.HandleRegister)
			r.Post("/auth/login", rt.Auth.HandleLogin)
			r.Post("/auth/session", rt.Auth.HandleCreateSession)
		})

		r.Group(func(r chi.Router) {
			r.Use(rt.Guard.Optional)
			r.Get("/users", rt.Users.HandleList)
			r.Get("/users/{id}", rt.Users.HandleGet)
			r.Get("/posts", rt.Posts.HandleList)
			r.Get("/posts/{id}", rt.Posts.HandleGet)
		})

		r.Group(func(r chi.Router) {
			r.Use(rt.Guard.Require)
			r.Delete("/auth/session", rt.Auth.HandleDeleteSession)
			r.Get("/auth/me", rt.Auth.HandleMe)
			r.Delete("/auth/me", rt.Auth.HandleDeleteMe)
			r.Post("/posts", rt.Posts.HandleCreate)
			r.Put("/posts/{id}", rt.Posts.HandleUpdate)
			r.Delete("/posts/{id}", rt.Posts.HandleDelete)
		})
	})

	return r
}
