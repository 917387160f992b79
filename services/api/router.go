package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	chirender "github.com/go-chi/render"
	"github.com/jmoiron/sqlx"
	"github.com/trackline/trackline/pkg/events"
	"github.com/trackline/trackline/pkg/storage"
	"github.com/trackline/trackline/services/api/handlers"
	mw "github.com/trackline/trackline/services/api/middleware"
	"github.com/trackline/trackline/services/api/render"
	issuecore "github.com/trackline/trackline/services/issue/core"
	sprintcore "github.com/trackline/trackline/services/sprint/core"
)

// NewRouter instantiates the chi Router and wires middleware.
func NewRouter(db *sqlx.DB, files storage.Store, bus events.Publisher, jwtSecret string) *chi.Mux {
	r := chi.NewRouter()

	// Base Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.URLFormat)
	r.Use(chirender.SetContentType(chirender.ContentTypeJSON))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	auth := mw.NewAuth(db, jwtSecret)

	issues := issuecore.NewService(db, files, bus)
	sprints := sprintcore.NewService(db, bus)

	companies := handlers.NewCompaniesResource(db)
	users := handlers.NewUsersResource(db, auth)
	projects := handlers.NewProjectsResource(db, files)

	// API v1 Routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			render.JSON(w, r, map[string]string{"status": "pong"})
		})

		// Public: company signup/lookup; user registration/login (the user
		// resource guards its session endpoints itself).
		r.Mount("/companies", companies.Routes())
		r.Mount("/users", users.Routes())

		// Everything else requires a session token.
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)

			r.Mount("/projects", projects.Routes())
			r.Mount("/issues", handlers.NewIssuesResource(issues).Routes())
			r.Mount("/sprints", handlers.NewSprintsResource(sprints).Routes())
		})
	})

	return r
}
