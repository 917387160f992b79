package middleware

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/trackline/trackline/pkg/apperr"
	"github.com/trackline/trackline/pkg/models"
	"github.com/trackline/trackline/services/api/render"
)

type projectContextKey struct{}

// ProjectAccess guards /projects/{id} subtrees: the project must exist, must
// belong to the actor's company, and non-admin actors must be team members.
// The loaded project (with members) is placed on the context.
func ProjectAccess(db *sqlx.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				render.ErrUnauthorized(w, r, "Please authenticate")
				return
			}

			projectID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				render.Err(w, r, apperr.NewNotFound("Project not found",
					"The requested project could not be found"))
				return
			}

			project, err := LoadProject(r.Context(), db, projectID)
			if err != nil {
				render.Err(w, r, err)
				return
			}

			if project.CompanyID != actor.CompanyID {
				render.Err(w, r, apperr.NewPermissionDenied("Access denied",
					"You do not have permission to access this project"))
				return
			}

			if !actor.IsAdmin() {
				member := false
				for _, m := range project.TeamMembers {
					if m == actor.ID {
						member = true
						break
					}
				}
				if !member && project.ProjectLead != actor.ID {
					render.Err(w, r, apperr.NewPermissionDenied("Access denied",
						"You do not have permission to access this project"))
					return
				}
			}

			ctx := context.WithValue(r.Context(), projectContextKey{}, project)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoadProject fetches a project row plus its team member set.
func LoadProject(ctx context.Context, db *sqlx.DB, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	err := db.GetContext(ctx, &project, `SELECT * FROM projects WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NewNotFound("Project not found",
			"The requested project could not be found")
	}
	if err != nil {
		return nil, apperr.NewInternal("Project retrieval failed", "could not load project", err)
	}

	project.TeamMembers = []uuid.UUID{}
	err = db.SelectContext(ctx, &project.TeamMembers,
		`SELECT user_id FROM project_members WHERE project_id = $1`, id)
	if err != nil {
		return nil, apperr.NewInternal("Project retrieval failed", "could not load team members", err)
	}
	return &project, nil
}

// ProjectFromContext returns the project loaded by ProjectAccess.
func ProjectFromContext(ctx context.Context) (*models.Project, bool) {
	project, ok := ctx.Value(projectContextKey{}).(*models.Project)
	return project, ok
}
