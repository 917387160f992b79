package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/trackline/trackline/pkg/apperr"
	mw "github.com/trackline/trackline/services/api/middleware"
	"github.com/trackline/trackline/services/api/render"
	issuecore "github.com/trackline/trackline/services/issue/core"
)

// maxIssueFormMemory bounds the in-memory portion of multipart parsing.
const maxIssueFormMemory = 16 << 20

// IssuesResource is the HTTP surface of the issue lifecycle engine.
type IssuesResource struct {
	Issues *issuecore.Service
}

func NewIssuesResource(svc *issuecore.Service) *IssuesResource {
	return &IssuesResource{Issues: svc}
}

func (rs *IssuesResource) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", rs.ListIssues)
	r.Post("/", rs.CreateIssue)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", rs.GetIssue)
		r.Patch("/", rs.UpdateIssue)
		r.Delete("/", rs.DeleteIssue)
		r.Post("/comments", rs.AddComment)
		r.Post("/subtasks", rs.AddSubtask)
		r.Post("/attachments", rs.AddAttachment)
		r.Delete("/attachments/{attachmentId}", rs.DeleteAttachment)
	})
	return r
}

// CreateIssue POST /api/v1/issues (multipart: fields + up to 5 attachments)
func (rs *IssuesResource) CreateIssue(w http.ResponseWriter, r *http.Request) {
	actor, _ := mw.ActorFromContext(r.Context())

	if err := r.ParseMultipartForm(maxIssueFormMemory); err != nil {
		render.Err(w, r, apperr.NewInvalidInput("Issue creation failed",
			"Request must be multipart/form-data"))
		return
	}

	in := issuecore.CreateInput{
		ProjectID:     r.FormValue("project_id"),
		Title:         r.FormValue("title"),
		Summary:       r.FormValue("summary"),
		Description:   r.FormValue("description"),
		IssueType:     r.FormValue("issue_type"),
		Priority:      r.FormValue("priority"),
		AssigneeID:    r.FormValue("assignee_id"),
		DueDate:       r.FormValue("due_date"),
		EstimatedTime: r.FormValue("estimated_time"),
		Labels:        r.Form["labels"],
	}
	files := r.MultipartForm.File["attachments"]

	issue, err := rs.Issues.CreateIssue(r.Context(), actor, in, files)
	if err != nil {
		render.Err(w, r, err)
		return
	}

	render.Created(w, r, "Issue created", "Issue has been successfully created",
		map[string]interface{}{"issue_id": issue.ID, "attachments": len(issue.Attachments)},
		issue)
}

// ListIssues GET /api/v1/issues
func (rs *IssuesResource) ListIssues(w http.ResponseWriter, r *http.Request) {
	pg := render.ParsePagination(r)
	q := r.URL.Query()

	f := issuecore.ListFilter{
		Status:    q.Get("status"),
		Priority:  q.Get("priority"),
		IssueType: q.Get("issue_type"),
		Search:    q.Get("search"),
		Page:      pg.Page,
		Limit:     pg.Limit,
	}
	for param, dst := range map[string]**uuid.UUID{
		"project_id":  &f.ProjectID,
		"assignee_id": &f.AssigneeID,
		"reporter_id": &f.ReporterID,
		"sprint_id":   &f.SprintID,
	} {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			render.Err(w, r, apperr.NewInvalidInput("Issues retrieval failed",
				param+" is not a valid id"))
			return
		}
		*dst = &id
	}
	if raw := q.Get("is_blocked"); raw != "" {
		blocked, err := strconv.ParseBool(raw)
		if err != nil {
			render.Err(w, r, apperr.NewInvalidInput("Issues retrieval failed",
				"is_blocked must be true or false"))
			return
		}
		f.IsBlocked = &blocked
	}

	issues, total, err := rs.Issues.ListIssues(r.Context(), f)
	if err != nil {
		render.Err(w, r, err)
		return
	}

	render.OK(w, r, "Issues retrieved", "Issues list retrieved successfully",
		map[string]interface{}{"total_issues": total, "current_page": pg.Page},
		render.NewPaginated(issues, total, pg.Page, pg.Limit))
}

// GetIssue GET /api/v1/issues/{id}
func (rs *IssuesResource) GetIssue(w http.ResponseWriter, r *http.Request) {
	id, err := parseIssueID(r)
	if err != nil {
		render.Err(w, r, err)
		return
	}
	issue, err := rs.Issues.GetIssue(r.Context(), id)
	if err != nil {
		render.Err(w, r, err)
		return
	}
	render.OK(w, r, "Issue retrieved", "Issue details retrieved successfully",
		map[string]interface{}{"issue_id": issue.ID}, issue)
}

// UpdateIssue PATCH /api/v1/issues/{id}
func (rs *IssuesResource) UpdateIssue(w http.ResponseWriter, r *http.Request) {
	actor, _ := mw.ActorFromContext(r.Context())
	id, err := parseIssueID(r)
	if err != nil {
		render.Err(w, r, err)
		return
	}

	var req issuecore.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Err(w, r, apperr.NewInvalidInput("Issue update failed", "Invalid request body"))
		return
	}

	issue, err := rs.Issues.UpdateIssue(r.Context(), actor, id, req)
	if err != nil {
		render.Err(w, r, err)
		return
	}
	render.OK(w, r, "Issue updated", "Issue has been successfully updated",
		map[string]interface{}{"issue_id": issue.ID}, issue)
}

// DeleteIssue DELETE /api/v1/issues/{id}
func (rs *IssuesResource) DeleteIssue(w http.ResponseWriter, r *http.Request) {
	actor, _ := mw.ActorFromContext(r.Context())
	id, err := parseIssueID(r)
	if err != nil {
		render.Err(w, r, err)
		return
	}
	if err := rs.Issues.DeleteIssue(r.Context(), actor, id); err != nil {
		render.Err(w, r, err)
		return
	}
	render.OK(w, r, "Issue deleted", "Issue has been successfully deleted",
		map[string]interface{}{"issue_id": id}, nil)
}

// AddComment POST /api/v1/issues/{id}/comments
func (rs *IssuesResource) AddComment(w http.ResponseWriter, r *http.Request) {
	actor, _ := mw.ActorFromContext(r.Context())
	id, err := parseIssueID(r)
	if err != nil {
		render.Err(w, r, err)
		return
	}

	var input struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		render.Err(w, r, apperr.NewInvalidInput("Invalid comment", "Invalid request body"))
		return
	}

	issue, err := rs.Issues.AddComment(r.Context(), actor, id, input.Content)
	if err != nil {
		render.Err(w, r, err)
		return
	}
	render.Created(w, r, "Comment added", "Comment has been added to the issue",
		map[string]interface{}{"issue_id": issue.ID}, issue)
}

// AddSubtask POST /api/v1/issues/{id}/subtasks
func (rs *IssuesResource) AddSubtask(w http.ResponseWriter, r *http.Request) {
	actor, _ := mw.ActorFromContext(r.Context())
	id, err := parseIssueID(r)
	if err != nil {
		render.Err(w, r, err)
		return
	}

	var input struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Status      string `json:"status"`
		AssigneeID  string `json:"assignee_id"`
		DueDate     string `json:"due_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		render.Err(w, r, apperr.NewInvalidInput("Invalid subtask", "Invalid request body"))
		return
	}

	issue, err := rs.Issues.AddSubtask(r.Context(), actor, id, issuecore.SubtaskInput{
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
		AssigneeID:  input.AssigneeID,
		DueDate:     input.DueDate,
	})
	if err != nil {
		render.Err(w, r, err)
		return
	}
	render.Created(w, r, "Subtask added", "Subtask has been added to the issue",
		map[string]interface{}{"issue_id": issue.ID}, issue)
}

// AddAttachment POST /api/v1/issues/{id}/attachments (multipart, field "attachment")
func (rs *IssuesResource) AddAttachment(w http.ResponseWriter, r *http.Request) {
	actor, _ := mw.ActorFromContext(r.Context())
	id, err := parseIssueID(r)
	if err != nil {
		render.Err(w, r, err)
		return
	}

	if err := r.ParseMultipartForm(maxIssueFormMemory); err != nil {
		render.Err(w, r, apperr.NewInvalidInput("Attachment required",
			"Request must be multipart/form-data"))
		return
	}
	f, fh, err := r.FormFile("attachment")
	if err != nil {
		render.Err(w, r, apperr.NewInvalidInput("Attachment required", "Attachment file is required"))
		return
	}
	defer f.Close()

	issue, err := rs.Issues.AddAttachment(r.Context(), actor, id, fh)
	if err != nil {
		render.Err(w, r, err)
		return
	}
	render.Created(w, r, "Attachment added", "Attachment has been uploaded to the issue",
		map[string]interface{}{"issue_id": issue.ID, "attachments": len(issue.Attachments)},
		issue)
}

// DeleteAttachment DELETE /api/v1/issues/{id}/attachments/{attachmentId}
func (rs *IssuesResource) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	actor, _ := mw.ActorFromContext(r.Context())
	id, err := parseIssueID(r)
	if err != nil {
		render.Err(w, r, err)
		return
	}
	attachmentID, err := uuid.Parse(chi.URLParam(r, "attachmentId"))
	if err != nil {
		render.Err(w, r, apperr.NewNotFound("Attachment not found",
			"The requested attachment does not exist"))
		return
	}

	issue, err := rs.Issues.DeleteAttachment(r.Context(), actor, id, attachmentID)
	if err != nil {
		render.Err(w, r, err)
		return
	}
	render.OK(w, r, "Attachment deleted", "Attachment has been removed from the issue",
		map[string]interface{}{"issue_id": issue.ID, "attachment_id": attachmentID},
		issue)
}

func parseIssueID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, apperr.NewNotFound("Issue not found", "The requested issue does not exist")
	}
	return id, nil
}
