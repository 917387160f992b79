package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/trackline/trackline/pkg/apperr"
	mw "github.com/trackline/trackline/services/api/middleware"
	"github.com/trackline/trackline/services/api/render"
	sprintcore "github.com/trackline/trackline/services/sprint/core"
)

// SprintsResource is the HTTP surface of the sprint lifecycle engine.
type SprintsResource struct {
	Sprints *sprintcore.Service
}

func NewSprintsResource(svc *sprintcore.Service) *SprintsResource {
	return &SprintsResource{Sprints: svc}
}

func (rs *SprintsResource) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", rs.CreateSprint)
	r.Get("/project/{projectId}", rs.ListByProject)
	r.Patch("/{id}/start", rs.StartSprint)
	r.Patch("/{id}/complete", rs.CompleteSprint)
	return r
}

// CreateSprint POST /api/v1/sprints
func (rs *SprintsResource) CreateSprint(w http.ResponseWriter, r *http.Request) {
	actor, _ := mw.ActorFromContext(r.Context())

	var input struct {
		ProjectID string `json:"project_id"`
		Name      string `json:"name"`
		Goal      string `json:"goal"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		render.Err(w, r, apperr.NewInvalidInput("Creation Failed", "Invalid request body"))
		return
	}

	sprint, err := rs.Sprints.CreateSprint(r.Context(), actor, sprintcore.CreateInput{
		ProjectID: input.ProjectID,
		Name:      input.Name,
		Goal:      input.Goal,
		StartDate: input.StartDate,
		EndDate:   input.EndDate,
	})
	if err != nil {
		render.Err(w, r, err)
		return
	}
	render.Created(w, r, "Sprint created", "Sprint has been successfully created",
		map[string]interface{}{"sprint_id": sprint.ID}, sprint)
}

// ListByProject GET /api/v1/sprints/project/{projectId}
func (rs *SprintsResource) ListByProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectId"))
	if err != nil {
		render.Err(w, r, apperr.NewNotFound("Not Found", "Project not found"))
		return
	}

	sprints, err := rs.Sprints.ListByProject(r.Context(), projectID)
	if err != nil {
		render.Err(w, r, err)
		return
	}
	render.OK(w, r, "Sprints retrieved", "Sprints retrieved successfully",
		map[string]interface{}{"total_sprints": len(sprints)}, sprints)
}

// StartSprint PATCH /api/v1/sprints/{id}/start
func (rs *SprintsResource) StartSprint(w http.ResponseWriter, r *http.Request) {
	actor, _ := mw.ActorFromContext(r.Context())
	id, err := parseSprintID(r)
	if err != nil {
		render.Err(w, r, err)
		return
	}

	var input struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			render.Err(w, r, apperr.NewInvalidInput("Validation Error", "Invalid request body"))
			return
		}
	}

	sprint, err := rs.Sprints.StartSprint(r.Context(), actor, id, sprintcore.StartInput{
		StartDate: input.StartDate,
		EndDate:   input.EndDate,
	})
	if err != nil {
		render.Err(w, r, err)
		return
	}
	render.OK(w, r, "Sprint started", "Sprint is now active",
		map[string]interface{}{"sprint_id": sprint.ID}, sprint)
}

// CompleteSprint PATCH /api/v1/sprints/{id}/complete
// Unfinished issues move to the destination sprint, or back to the backlog
// when none is given.
func (rs *SprintsResource) CompleteSprint(w http.ResponseWriter, r *http.Request) {
	actor, _ := mw.ActorFromContext(r.Context())
	id, err := parseSprintID(r)
	if err != nil {
		render.Err(w, r, err)
		return
	}

	var input struct {
		MoveToSprintID string `json:"move_to_sprint_id"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			render.Err(w, r, apperr.NewInvalidInput("Validation Error", "Invalid request body"))
			return
		}
	}

	var moveTo *uuid.UUID
	if input.MoveToSprintID != "" {
		dest, err := uuid.Parse(input.MoveToSprintID)
		if err != nil {
			render.Err(w, r, apperr.NewNotFound("Not Found", "Destination sprint not found"))
			return
		}
		moveTo = &dest
	}

	sprint, err := rs.Sprints.CompleteSprint(r.Context(), actor, id, moveTo)
	if err != nil {
		render.Err(w, r, err)
		return
	}
	render.OK(w, r, "Sprint completed", "Sprint has been completed",
		map[string]interface{}{"sprint_id": sprint.ID}, sprint)
}

func parseSprintID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, apperr.NewNotFound("Not Found", "Sprint not found")
	}
	return id, nil
}
