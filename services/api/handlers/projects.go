package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/trackline/trackline/pkg/apperr"
	"github.com/trackline/trackline/pkg/models"
	"github.com/trackline/trackline/pkg/storage"
	mw "github.com/trackline/trackline/services/api/middleware"
	"github.com/trackline/trackline/services/api/render"
	issuecore "github.com/trackline/trackline/services/issue/core"
)

// ProjectsResource handles the project directory: CRUD, team membership and
// per-project stats.
type ProjectsResource struct {
	DB    *sqlx.DB
	Files storage.Store
}

func NewProjectsResource(db *sqlx.DB, files storage.Store) *ProjectsResource {
	return &ProjectsResource{DB: db, Files: files}
}

func (rs *ProjectsResource) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", rs.ListProjects)
	r.Post("/", rs.CreateProject)

	r.Route("/{id}", func(r chi.Router) {
		r.Use(mw.ProjectAccess(rs.DB))
		r.Get("/", rs.GetProject)
		r.Patch("/", rs.UpdateProject)
		r.Delete("/", rs.DeleteProject)
		r.Get("/stats", rs.GetProjectStats)
		r.Post("/members", rs.AddTeamMember)
		r.Delete("/members/{userId}", rs.RemoveTeamMember)
		r.Post("/avatar", rs.UploadAvatar)
	})
	return r
}

// allowedProjectUpdates mirrors the issue engine's allow-list approach.
var allowedProjectUpdates = []string{
	"name", "key", "description", "project_lead", "team_members",
	"start_date", "end_date", "status", "categories",
}

// ListProjects GET /api/v1/projects
func (rs *ProjectsResource) ListProjects(w http.ResponseWriter, r *http.Request) {
	actor, _ := mw.ActorFromContext(r.Context())
	pg := render.ParsePagination(r)

	where := []string{"company_id = $1"}
	args := []interface{}{actor.CompanyID}

	if status := r.URL.Query().Get("status"); status != "" {
		args = append(args, status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if search := r.URL.Query().Get("search"); search != "" {
		args = append(args, "%"+search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(name ILIKE $%d OR key ILIKE $%d OR description ILIKE $%d)", n, n, n))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := rs.DB.GetContext(r.Context(), &total,
		"SELECT count(*) FROM projects WHERE "+cond, args...); err != nil {
		render.Err(w, r, err)
		return
	}

	args = append(args, pg.Limit, (pg.Page-1)*pg.Limit)
	var projects []models.Project
	query := fmt.Sprintf(
		"SELECT * FROM projects WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		cond, len(args)-1, len(args))
	if err := rs.DB.SelectContext(r.Context(), &projects, query, args...); err != nil {
		render.Err(w, r, err)
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	for i := range projects {
		if err := rs.fillTeamMembers(r.Context(), &projects[i]); err != nil {
			render.Err(w, r, err)
			return
		}
	}

	render.OK(w, r, "Projects retrieved", "Projects list retrieved successfully",
		map[string]interface{}{"total_projects": total, "current_page": pg.Page},
		render.NewPaginated(projects, total, pg.Page, pg.Limit))
}

// CreateProject POST /api/v1/projects
func (rs *ProjectsResource) CreateProject(w http.ResponseWriter, r *http.Request) {
	actor, _ := mw.ActorFromContext(r.Context())

	var input struct {
		Name        string          `json:"name"`
		Key         string          `json:"key"`
		Description string          `json:"description"`
		ProjectLead string          `json:"project_lead"`
		TeamMembers []string        `json:"team_members"`
		StartDate   string          `json:"start_date"`
		EndDate     string          `json:"end_date"`
		Status      string          `json:"status"`
		Categories  json.RawMessage `json:"categories"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		render.Err(w, r, apperr.NewInvalidInput("Project creation failed", "Invalid request body"))
		return
	}

	var missing []string
	for field, val := range map[string]string{
		"name": input.Name, "key": input.Key, "project_lead": input.ProjectLead,
	} {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		render.Err(w, r, apperr.NewInvalidInput("Missing required fields",
			"Project creation requires essential information").
			WithDetails(map[string]interface{}{"missing_fields": missing}))
		return
	}

	key := strings.ToUpper(strings.TrimSpace(input.Key))
	if len(key) > models.ProjectKeyMaxLen {
		render.Err(w, r, apperr.NewInvalidInput("Invalid project key",
			fmt.Sprintf("Project key must be at most %d characters", models.ProjectKeyMaxLen)))
		return
	}

	lead, invalid, err := rs.resolveCompanyUsers(r.Context(), actor.CompanyID,
		input.ProjectLead, input.TeamMembers)
	if err != nil {
		render.Err(w, r, err)
		return
	}
	if lead == nil {
		render.Err(w, r, apperr.NewInvalidInput("Invalid project lead",
			"The selected project lead is not valid for your company"))
		return
	}
	if len(invalid) > 0 {
		render.Err(w, r, apperr.NewInvalidInput("Invalid team members",
			"One or more selected team members are not valid for your company").
			WithDetails(map[string]interface{}{"invalid_members": invalid}))
		return
	}

	status := input.Status
	if status == "" {
		status = models.ProjectActive
	}
	if !models.ValidProjectStatus(status) {
		render.Err(w, r, apperr.NewInvalidInput("Project creation failed",
			"status must be one of active, inactive, completed, archived"))
		return
	}

	categories, err := issuecore.NormalizeLabelsJSON(input.Categories)
	if err != nil {
		render.Err(w, r, apperr.NewInvalidInput("Invalid categories",
			"Provide categories as an array of strings or a comma-separated string"))
		return
	}

	var startDate, endDate *time.Time
	if input.StartDate != "" {
		t, err := issuecore.ParseDate(input.StartDate)
		if err != nil {
			render.Err(w, r, apperr.NewInvalidInput("Project creation failed", "start_date is not a valid date"))
			return
		}
		startDate = &t
	}
	if input.EndDate != "" {
		t, err := issuecore.ParseDate(input.EndDate)
		if err != nil {
			render.Err(w, r, apperr.NewInvalidInput("Project creation failed", "end_date is not a valid date"))
			return
		}
		endDate = &t
	}

	settings, err := json.Marshal(models.DefaultProjectSettings())
	if err != nil {
		render.Err(w, r, err)
		return
	}

	var description *string
	if d := strings.TrimSpace(input.Description); d != "" {
		description = &d
	}

	tx, err := rs.DB.BeginTxx(r.Context(), nil)
	if err != nil {
		render.Err(w, r, err)
		return
	}
	defer tx.Rollback()

	var project models.Project
	err = tx.GetContext(r.Context(), &project, `
		INSERT INTO projects (company_id, name, key, description, project_lead,
			created_by, start_date, end_date, status, categories, settings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING *`,
		actor.CompanyID, strings.TrimSpace(input.Name), key, description, *lead,
		actor.ID, startDate, endDate, status, pq.Array(categories), settings)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			render.Err(w, r, apperr.NewConflict("Duplicate project key",
				"A project with this key already exists in your company").
				WithDetails(map[string]interface{}{"provided_key": key}))
			return
		}
		render.Err(w, r, apperr.NewInternal("Project creation failed", "could not insert project", err))
		return
	}

	members := append([]string{}, input.TeamMembers...)
	for _, raw := range members {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		if _, err := tx.ExecContext(r.Context(), `
			INSERT INTO project_members (project_id, user_id)
			VALUES ($1, $2) ON CONFLICT DO NOTHING`, project.ID, id); err != nil {
			render.Err(w, r, err)
			return
		}
	}
	if err := ensureLeadMembership(r.Context(), tx, project.ID, project.ProjectLead); err != nil {
		render.Err(w, r, err)
		return
	}

	if err := tx.Commit(); err != nil {
		render.Err(w, r, err)
		return
	}

	if err := rs.fillTeamMembers(r.Context(), &project); err != nil {
		render.Err(w, r, err)
		return
	}

	render.Created(w, r, "Project created", "Project has been successfully created",
		map[string]interface{}{"project_id": project.ID, "project_key": project.Key},
		project)
}

// ensureLeadMembership keeps the invariant that the project lead is always a
// team member.
func ensureLeadMembership(ctx context.Context, tx *sqlx.Tx, projectID, leadID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO project_members (project_id, user_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`, projectID, leadID)
	return err
}

// GetProject GET /api/v1/projects/{id}
func (rs *ProjectsResource) GetProject(w http.ResponseWriter, r *http.Request) {
	project, _ := mw.ProjectFromContext(r.Context())
	render.OK(w, r, "Project retrieved", "Project details retrieved successfully",
		map[string]interface{}{"project_id": project.ID, "project_key": project.Key},
		project)
}

// UpdateProject PATCH /api/v1/projects/{id}
func (rs *ProjectsResource) UpdateProject(w http.ResponseWriter, r *http.Request) {
	actor, _ := mw.ActorFromContext(r.Context())
	project, _ := mw.ProjectFromContext(r.Context())

	var req map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Err(w, r, apperr.NewInvalidInput("Project update failed", "Invalid request body"))
		return
	}

	allowed := map[string]bool{}
	for _, f := range allowedProjectUpdates {
		allowed[f] = true
	}
	var disallowed []string
	for field := range req {
		if !allowed[field] {
			disallowed = append(disallowed, field)
		}
	}
	if len(disallowed) > 0 {
		render.Err(w, r, apperr.NewInvalidInput("Invalid updates",
			"One or more update fields are not allowed").
			WithDetails(map[string]interface{}{
				"disallowed_fields": disallowed,
				"allowed_updates":   allowedProjectUpdates,
			}))
		return
	}

	working := *project
	working.TeamMembers = append([]uuid.UUID{}, project.TeamMembers...)
	membersChanged := false

	if raw, ok := req["team_members"]; ok {
		var members []string
		if err := json.Unmarshal(raw, &members); err != nil {
			render.Err(w, r, apperr.NewInvalidInput("Invalid team members format",
				"Team members should be provided as an array"))
			return
		}
		ids, invalid, err := rs.checkCompanyUsers(r.Context(), actor.CompanyID, members)
		if err != nil {
			render.Err(w, r, err)
			return
		}
		if len(invalid) > 0 {
			render.Err(w, r, apperr.NewInvalidInput("Invalid team members",
				"One or more team members are not valid for your company").
				WithDetails(map[string]interface{}{"invalid_members": invalid}))
			return
		}
		working.TeamMembers = ids
		membersChanged = true
	}

	if raw, ok := req["project_lead"]; ok {
		var leadRaw string
		if err := json.Unmarshal(raw, &leadRaw); err != nil {
			render.Err(w, r, apperr.NewInvalidInput("Invalid project lead",
				"The selected project lead is not valid for your company"))
			return
		}
		ids, invalid, err := rs.checkCompanyUsers(r.Context(), actor.CompanyID, []string{leadRaw})
		if err != nil {
			render.Err(w, r, err)
			return
		}
		if len(invalid) > 0 || len(ids) != 1 {
			render.Err(w, r, apperr.NewInvalidInput("Invalid project lead",
				"The selected project lead is not valid for your company"))
			return
		}
		working.ProjectLead = ids[0]
		membersChanged = true
	}

	if raw, ok := req["categories"]; ok {
		categories, err := issuecore.NormalizeLabelsJSON(raw)
		if err != nil {
			render.Err(w, r, apperr.NewInvalidInput("Invalid categories",
				"Provide categories as an array of strings or a comma-separated string"))
			return
		}
		working.Categories = categories
	}

	if err := applyProjectScalars(&working, req); err != nil {
		render.Err(w, r, err)
		return
	}

	tx, err := rs.DB.BeginTxx(r.Context(), nil)
	if err != nil {
		render.Err(w, r, err)
		return
	}
	defer tx.Rollback()

	var updated models.Project
	err = tx.GetContext(r.Context(), &updated, `
		UPDATE projects SET
			name = $2, key = $3, description = $4, project_lead = $5,
			start_date = $6, end_date = $7, status = $8, categories = $9,
			updated_at = now()
		WHERE id = $1
		RETURNING *`,
		working.ID, working.Name, working.Key, working.Description,
		working.ProjectLead, working.StartDate, working.EndDate, working.Status,
		pq.Array([]string(working.Categories)))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			render.Err(w, r, apperr.NewConflict("Duplicate project key",
				"A project with this key already exists in your company"))
			return
		}
		render.Err(w, r, apperr.NewInternal("Project update failed", "could not persist project", err))
		return
	}

	if membersChanged {
		if _, err := tx.ExecContext(r.Context(),
			`DELETE FROM project_members WHERE project_id = $1`, working.ID); err != nil {
			render.Err(w, r, err)
			return
		}
		for _, id := range working.TeamMembers {
			if _, err := tx.ExecContext(r.Context(), `
				INSERT INTO project_members (project_id, user_id)
				VALUES ($1, $2) ON CONFLICT DO NOTHING`, working.ID, id); err != nil {
				render.Err(w, r, err)
				return
			}
		}
		if err := ensureLeadMembership(r.Context(), tx, working.ID, working.ProjectLead); err != nil {
			render.Err(w, r, err)
			return
		}
	}

	if err := tx.Commit(); err != nil {
		render.Err(w, r, err)
		return
	}

	if err := rs.fillTeamMembers(r.Context(), &updated); err != nil {
		render.Err(w, r, err)
		return
	}

	render.OK(w, r, "Project updated", "Project has been successfully updated",
		map[string]interface{}{"project_id": updated.ID, "project_key": updated.Key},
		updated)
}

func applyProjectScalars(project *models.Project, req map[string]json.RawMessage) error {
	invalid := func(msg string) error {
		return apperr.NewInvalidInput("Project update failed", msg)
	}

	if raw, ok := req["name"]; ok {
		var v string
		if err := json.Unmarshal(raw, &v); err != nil || strings.TrimSpace(v) == "" {
			return invalid("name must be a non-empty string")
		}
		project.Name = strings.TrimSpace(v)
	}
	if raw, ok := req["key"]; ok {
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return invalid("key must be a string")
		}
		v = strings.ToUpper(strings.TrimSpace(v))
		if v == "" || len(v) > models.ProjectKeyMaxLen {
			return invalid(fmt.Sprintf("key must be 1-%d characters", models.ProjectKeyMaxLen))
		}
		project.Key = v
	}
	if raw, ok := req["description"]; ok {
		if err := json.Unmarshal(raw, &project.Description); err != nil {
			return invalid("description must be a string")
		}
	}
	if raw, ok := req["status"]; ok {
		var v string
		if err := json.Unmarshal(raw, &v); err != nil || !models.ValidProjectStatus(v) {
			return invalid("status must be one of active, inactive, completed, archived")
		}
		project.Status = v
	}
	for _, field := range []string{"start_date", "end_date"} {
		raw, ok := req[field]
		if !ok {
			continue
		}
		var v string
		if err := json.Unmarshal(raw, &v); err != nil || v == "" {
			return invalid(field + " must be a date string")
		}
		t, err := issuecore.ParseDate(v)
		if err != nil {
			return invalid(field + " is not a valid date")
		}
		if field == "start_date" {
			project.StartDate = &t
		} else {
			project.EndDate = &t
		}
	}
	return nil
}

// DeleteProject DELETE /api/v1/projects/{id}
// Hard delete: attachment files are removed first, then the project row;
// issues, sprints and the rest cascade with it.
func (rs *ProjectsResource) DeleteProject(w http.ResponseWriter, r *http.Request) {
	actor, _ := mw.ActorFromContext(r.Context())
	project, _ := mw.ProjectFromContext(r.Context())

	if !actor.IsAdmin() && project.CreatedBy != actor.ID {
		render.Err(w, r, apperr.NewPermissionDenied("Delete permission denied",
			"You are not authorized to delete this project"))
		return
	}

	var paths []string
	err := rs.DB.SelectContext(r.Context(), &paths, `
		SELECT a.file_path FROM attachments a
		JOIN issues i ON i.id = a.issue_id
		WHERE i.project_id = $1`, project.ID)
	if err != nil {
		render.Err(w, r, err)
		return
	}
	for _, p := range paths {
		if err := rs.Files.Remove(p); err != nil {
			render.Err(w, r, apperr.NewInternal("Project deletion failed",
				"could not remove attachment file", err))
			return
		}
	}
	if project.Avatar != nil {
		if err := rs.Files.Remove(*project.Avatar); err != nil {
			render.Err(w, r, apperr.NewInternal("Project deletion failed",
				"could not remove project avatar", err))
			return
		}
	}

	if _, err := rs.DB.ExecContext(r.Context(),
		`DELETE FROM projects WHERE id = $1`, project.ID); err != nil {
		render.Err(w, r, apperr.NewInternal("Project deletion failed", "could not delete project", err))
		return
	}

	render.OK(w, r, "Project deleted", "Project has been successfully deleted",
		map[string]interface{}{
			"project_id":  project.ID,
			"project_key": project.Key,
			"note":        "This action is permanent and cannot be undone",
		}, nil)
}

// GetProjectStats GET /api/v1/projects/{id}/stats
func (rs *ProjectsResource) GetProjectStats(w http.ResponseWriter, r *http.Request) {
	project, _ := mw.ProjectFromContext(r.Context())

	var stats struct {
		TotalIssues          int64 `json:"total_issues" db:"total_issues"`
		OpenIssues           int64 `json:"open_issues" db:"open_issues"`
		InProgressIssues     int64 `json:"in_progress_issues" db:"in_progress_issues"`
		ResolvedIssues       int64 `json:"resolved_issues" db:"resolved_issues"`
		ClosedIssues         int64 `json:"closed_issues" db:"closed_issues"`
		TotalStoryPoints     int64 `json:"total_story_points" db:"total_story_points"`
		CompletedStoryPoints int64 `json:"completed_story_points" db:"completed_story_points"`
	}
	err := rs.DB.GetContext(r.Context(), &stats, `
		SELECT
			count(*) AS total_issues,
			count(*) FILTER (WHERE status = 'open') AS open_issues,
			count(*) FILTER (WHERE status = 'in_progress') AS in_progress_issues,
			count(*) FILTER (WHERE status = 'resolved') AS resolved_issues,
			count(*) FILTER (WHERE status = 'closed') AS closed_issues,
			COALESCE(sum(story_points), 0) AS total_story_points,
			COALESCE(sum(story_points) FILTER (WHERE status IN ('resolved', 'closed')), 0) AS completed_story_points
		FROM issues WHERE project_id = $1`, project.ID)
	if err != nil {
		render.Err(w, r, err)
		return
	}

	completion := 0.0
	if stats.TotalStoryPoints > 0 {
		completion = float64(stats.CompletedStoryPoints) / float64(stats.TotalStoryPoints) * 100
	}

	render.OK(w, r, "Project stats retrieved", "Project statistics retrieved successfully",
		map[string]interface{}{"project_id": project.ID, "project_key": project.Key},
		map[string]interface{}{
			"total_issues":           stats.TotalIssues,
			"open_issues":            stats.OpenIssues,
			"in_progress_issues":     stats.InProgressIssues,
			"resolved_issues":        stats.ResolvedIssues,
			"closed_issues":          stats.ClosedIssues,
			"total_story_points":     stats.TotalStoryPoints,
			"completed_story_points": stats.CompletedStoryPoints,
			"completion_percentage":  completion,
		})
}

// AddTeamMember POST /api/v1/projects/{id}/members
func (rs *ProjectsResource) AddTeamMember(w http.ResponseWriter, r *http.Request) {
	actor, _ := mw.ActorFromContext(r.Context())
	project, _ := mw.ProjectFromContext(r.Context())

	var input struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.UserID == "" {
		render.Err(w, r, apperr.NewInvalidInput("Missing user ID",
			"User ID is required to add a team member"))
		return
	}

	ids, invalid, err := rs.checkCompanyUsers(r.Context(), actor.CompanyID, []string{input.UserID})
	if err != nil {
		render.Err(w, r, err)
		return
	}
	if len(invalid) > 0 || len(ids) != 1 {
		render.Err(w, r, apperr.NewInvalidInput("Invalid user",
			"The specified user does not exist in your company"))
		return
	}
	userID := ids[0]

	for _, m := range project.TeamMembers {
		if m == userID {
			render.Err(w, r, apperr.NewInvalidInput("Duplicate team member",
				"This user is already a team member of the project"))
			return
		}
	}

	if _, err := rs.DB.ExecContext(r.Context(), `
		INSERT INTO project_members (project_id, user_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`, project.ID, userID); err != nil {
		render.Err(w, r, err)
		return
	}

	if err := rs.fillTeamMembers(r.Context(), project); err != nil {
		render.Err(w, r, err)
		return
	}

	render.Created(w, r, "Team member added",
		"Team member has been successfully added to the project",
		map[string]interface{}{"project_id": project.ID, "user_id": userID},
		project)
}

// RemoveTeamMember DELETE /api/v1/projects/{id}/members/{userId}
// Removing a member also clears that user's issue assignments in the project.
func (rs *ProjectsResource) RemoveTeamMember(w http.ResponseWriter, r *http.Request) {
	actor, _ := mw.ActorFromContext(r.Context())
	project, _ := mw.ProjectFromContext(r.Context())

	ids, invalid, err := rs.checkCompanyUsers(r.Context(), actor.CompanyID,
		[]string{chi.URLParam(r, "userId")})
	if err != nil {
		render.Err(w, r, err)
		return
	}
	if len(invalid) > 0 || len(ids) != 1 {
		render.Err(w, r, apperr.NewInvalidInput("Invalid user",
			"The specified user does not exist in your company"))
		return
	}
	userID := ids[0]

	if project.ProjectLead == userID {
		render.Err(w, r, apperr.NewInvalidInput("Cannot remove project lead",
			"You cannot remove the project lead from the team"))
		return
	}

	member := false
	for _, m := range project.TeamMembers {
		if m == userID {
			member = true
			break
		}
	}
	if !member {
		render.Err(w, r, apperr.NewInvalidInput("User not in team",
			"The specified user is not a member of this project team"))
		return
	}

	tx, err := rs.DB.BeginTxx(r.Context(), nil)
	if err != nil {
		render.Err(w, r, err)
		return
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(r.Context(), `
		DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`,
		project.ID, userID); err != nil {
		render.Err(w, r, err)
		return
	}
	if _, err := tx.ExecContext(r.Context(), `
		UPDATE issues SET assignee_id = NULL, updated_at = now()
		WHERE project_id = $1 AND assignee_id = $2`,
		project.ID, userID); err != nil {
		render.Err(w, r, err)
		return
	}

	if err := tx.Commit(); err != nil {
		render.Err(w, r, err)
		return
	}

	if err := rs.fillTeamMembers(r.Context(), project); err != nil {
		render.Err(w, r, err)
		return
	}

	render.OK(w, r, "Team member removed",
		"Team member has been successfully removed from the project",
		map[string]interface{}{
			"project_id": project.ID,
			"user_id":    userID,
			"note":       "Assigned issues have been unassigned from this user",
		}, project)
}

// UploadAvatar POST /api/v1/projects/{id}/avatar
// Avatars carry their own upload policy, separate from issue attachments.
func (rs *ProjectsResource) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	project, _ := mw.ProjectFromContext(r.Context())

	if err := r.ParseMultipartForm(4 << 20); err != nil {
		render.Err(w, r, apperr.NewInvalidInput("File upload failed", "Invalid multipart request"))
		return
	}
	f, fh, err := r.FormFile("avatar")
	if err != nil {
		render.Err(w, r, apperr.NewInvalidInput("File upload failed", "Avatar file is required"))
		return
	}
	defer f.Close()

	saved, err := rs.Files.Save(storage.ProjectAvatarPolicy(), "projects", fh)
	if err != nil {
		render.Err(w, r, err)
		return
	}

	old := project.Avatar
	var updated models.Project
	err = rs.DB.GetContext(r.Context(), &updated, `
		UPDATE projects SET avatar = $2, updated_at = now()
		WHERE id = $1 RETURNING *`, project.ID, saved.FilePath)
	if err != nil {
		_ = rs.Files.Remove(saved.FilePath)
		render.Err(w, r, apperr.NewInternal("File upload failed", "could not persist avatar", err))
		return
	}
	if old != nil {
		_ = rs.Files.Remove(*old)
	}

	if err := rs.fillTeamMembers(r.Context(), &updated); err != nil {
		render.Err(w, r, err)
		return
	}

	render.OK(w, r, "Avatar uploaded", "Project avatar has been updated successfully",
		nil, updated)
}

func (rs *ProjectsResource) fillTeamMembers(ctx context.Context, project *models.Project) error {
	project.TeamMembers = []uuid.UUID{}
	return rs.DB.SelectContext(ctx, &project.TeamMembers,
		`SELECT user_id FROM project_members WHERE project_id = $1`, project.ID)
}

// resolveCompanyUsers validates the lead and member ids against the company.
func (rs *ProjectsResource) resolveCompanyUsers(ctx context.Context, companyID uuid.UUID, leadRaw string, memberRaw []string) (*uuid.UUID, []string, error) {
	leadIDs, invalidLead, err := rs.checkCompanyUsers(ctx, companyID, []string{leadRaw})
	if err != nil {
		return nil, nil, err
	}
	if len(invalidLead) > 0 || len(leadIDs) != 1 {
		return nil, nil, nil
	}
	_, invalidMembers, err := rs.checkCompanyUsers(ctx, companyID, memberRaw)
	if err != nil {
		return nil, nil, err
	}
	return &leadIDs[0], invalidMembers, nil
}

// checkCompanyUsers resolves raw ids to users of the company, reporting the
// ones that do not belong.
func (rs *ProjectsResource) checkCompanyUsers(ctx context.Context, companyID uuid.UUID, raw []string) ([]uuid.UUID, []string, error) {
	var ids []uuid.UUID
	var invalid []string
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			invalid = append(invalid, s)
			continue
		}
		var ok bool
		err = rs.DB.GetContext(ctx, &ok, `
			SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND company_id = $2)`,
			id, companyID)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			invalid = append(invalid, s)
			continue
		}
		ids = append(ids, id)
	}
	return ids, invalid, nil
}
