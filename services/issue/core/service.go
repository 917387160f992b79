package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/trackline/trackline/pkg/apperr"
	"github.com/trackline/trackline/pkg/events"
	"github.com/trackline/trackline/pkg/models"
	"github.com/trackline/trackline/pkg/storage"
)

// Service is the issue lifecycle engine. It owns creation, allow-listed field
// updates with history tracking, nested sub-resource mutation and deletion.
type Service struct {
	DB    *sqlx.DB
	Files storage.Store
	Bus   events.Publisher
}

func NewService(db *sqlx.DB, files storage.Store, bus events.Publisher) *Service {
	if bus == nil {
		bus = events.NopPublisher{}
	}
	return &Service{DB: db, Files: files, Bus: bus}
}

var errIssueNotFound = apperr.NewNotFound("Issue not found", "The requested issue does not exist")

// GetIssue loads an issue with all of its sub-resources.
func (s *Service) GetIssue(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	return s.loadIssue(ctx, id)
}

func (s *Service) loadIssue(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	var issue models.Issue
	err := s.DB.GetContext(ctx, &issue, `SELECT * FROM issues WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errIssueNotFound
	}
	if err != nil {
		return nil, apperr.NewInternal("Issue retrieval failed", "could not load issue", err)
	}
	if err := s.loadSubresources(ctx, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

func (s *Service) loadSubresources(ctx context.Context, issue *models.Issue) error {
	issue.Attachments = []models.Attachment{}
	issue.Comments = []models.Comment{}
	issue.Subtasks = []models.Subtask{}
	issue.History = []models.HistoryEntry{}

	if err := s.DB.SelectContext(ctx, &issue.Attachments,
		`SELECT * FROM attachments WHERE issue_id = $1 ORDER BY uploaded_at`, issue.ID); err != nil {
		return apperr.NewInternal("Issue retrieval failed", "could not load attachments", err)
	}
	if err := s.DB.SelectContext(ctx, &issue.Comments,
		`SELECT * FROM comments WHERE issue_id = $1 ORDER BY created_at`, issue.ID); err != nil {
		return apperr.NewInternal("Issue retrieval failed", "could not load comments", err)
	}
	if err := s.DB.SelectContext(ctx, &issue.Subtasks,
		`SELECT * FROM subtasks WHERE issue_id = $1 ORDER BY created_at`, issue.ID); err != nil {
		return apperr.NewInternal("Issue retrieval failed", "could not load subtasks", err)
	}
	for i := range issue.Subtasks {
		issue.Subtasks[i].Comments = []models.Comment{}
		if err := s.DB.SelectContext(ctx, &issue.Subtasks[i].Comments,
			`SELECT * FROM comments WHERE subtask_id = $1 ORDER BY created_at`, issue.Subtasks[i].ID); err != nil {
			return apperr.NewInternal("Issue retrieval failed", "could not load subtask comments", err)
		}
	}
	if err := s.DB.SelectContext(ctx, &issue.History,
		`SELECT * FROM issue_history WHERE issue_id = $1 ORDER BY changed_at`, issue.ID); err != nil {
		return apperr.NewInternal("Issue retrieval failed", "could not load history", err)
	}
	return nil
}

// ListFilter narrows ListIssues. Zero values mean "no filter".
type ListFilter struct {
	ProjectID  *uuid.UUID
	AssigneeID *uuid.UUID
	ReporterID *uuid.UUID
	SprintID   *uuid.UUID
	Status     string
	Priority   string
	IssueType  string
	IsBlocked  *bool
	Search     string
	Page       int
	Limit      int
}

// listConditions builds the WHERE clause and its arguments for a filter.
func listConditions(f ListFilter) (string, []interface{}) {
	where := []string{"1=1"}
	args := []interface{}{}

	add := func(clause string, val interface{}) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.ProjectID != nil {
		add("project_id = $%d", *f.ProjectID)
	}
	if f.AssigneeID != nil {
		add("assignee_id = $%d", *f.AssigneeID)
	}
	if f.ReporterID != nil {
		add("reporter_id = $%d", *f.ReporterID)
	}
	if f.SprintID != nil {
		add("sprint_id = $%d", *f.SprintID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Priority != "" {
		add("priority = $%d", f.Priority)
	}
	if f.IssueType != "" {
		add("issue_type = $%d", f.IssueType)
	}
	if f.IsBlocked != nil {
		add("is_blocked = $%d", *f.IsBlocked)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(title ILIKE $%d OR summary ILIKE $%d OR description ILIKE $%d)", n, n, n))
	}

	return strings.Join(where, " AND "), args
}

// ListIssues returns a page of issues (newest first) and the total match count.
func (s *Service) ListIssues(ctx context.Context, f ListFilter) ([]models.Issue, int64, error) {
	cond, args := listConditions(f)

	var total int64
	if err := s.DB.GetContext(ctx, &total,
		"SELECT count(*) FROM issues WHERE "+cond, args...); err != nil {
		return nil, 0, apperr.NewInternal("Issues retrieval failed", "could not count issues", err)
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 {
		limit = 10
	}
	args = append(args, limit, (page-1)*limit)

	var issues []models.Issue
	query := fmt.Sprintf(
		"SELECT * FROM issues WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		cond, len(args)-1, len(args))
	if err := s.DB.SelectContext(ctx, &issues, query, args...); err != nil {
		return nil, 0, apperr.NewInternal("Issues retrieval failed", "could not list issues", err)
	}
	if issues == nil {
		issues = []models.Issue{}
	}
	return issues, total, nil
}

func (s *Service) publishIssueEvent(ev *events.IssueEvent) {
	if err := s.Bus.PublishIssueEvent(ev); err != nil {
		log.Printf("issue event publish failed: %v", err)
	}
}
