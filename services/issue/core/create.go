package core

import (
	"context"
	"database/sql"
	"errors"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/trackline/trackline/pkg/apperr"
	"github.com/trackline/trackline/pkg/events"
	"github.com/trackline/trackline/pkg/models"
	"github.com/trackline/trackline/pkg/storage"
)

// MaxCreateAttachments caps the files accepted on issue creation.
const MaxCreateAttachments = 5

// CreateInput carries the issue creation form. Values arrive as strings
// because creation is a multipart request; the engine parses and validates.
type CreateInput struct {
	ProjectID     string
	Title         string
	Summary       string
	Description   string
	IssueType     string
	Priority      string
	AssigneeID    string
	DueDate       string
	EstimatedTime string
	Labels        []string
}

// CreateIssue validates the input, stores the attachment payloads and inserts
// the issue with its attachment metadata in one transaction. A new issue
// starts with an empty history.
func (s *Service) CreateIssue(ctx context.Context, actor models.Actor, in CreateInput, files []*multipart.FileHeader) (*models.Issue, error) {
	invalid := func(typ, msg string) error {
		return apperr.NewInvalidInput(typ, msg)
	}

	if strings.TrimSpace(in.Title) == "" {
		return nil, invalid("Issue creation failed", "Title is required")
	}
	if len(files) > MaxCreateAttachments {
		return nil, invalid("File upload failed",
			"At most "+strconv.Itoa(MaxCreateAttachments)+" attachments are allowed")
	}

	projectID, err := uuid.Parse(in.ProjectID)
	if err != nil {
		return nil, invalid("Issue creation failed", "project_id is not a valid id")
	}
	var exists bool
	err = s.DB.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)`, projectID)
	if err != nil {
		return nil, apperr.NewInternal("Issue creation failed", "could not check project", err)
	}
	if !exists {
		return nil, apperr.NewNotFound("Project not found", "The specified project does not exist")
	}

	var assigneeID *uuid.UUID
	if in.AssigneeID != "" {
		id, err := s.resolveAssignee(ctx, actor, in.AssigneeID)
		if err != nil {
			return nil, err
		}
		assigneeID = id
	}

	issue := models.Issue{
		ID:        uuid.New(),
		ProjectID: projectID,
		Title:     strings.TrimSpace(in.Title),
		Summary:   in.Summary,
		IssueType: models.IssueTypeTask,
		Status:    models.StatusOpen,
		Priority:  models.PriorityMedium,
		// The acting user becomes the reporter.
		ReporterID: actor.ID,
		AssigneeID: assigneeID,
		Labels:     NormalizeLabels(in.Labels),
	}
	if issue.Summary == "" {
		issue.Summary = issue.Title
	}
	if in.Description != "" {
		issue.Description = &in.Description
	}
	if in.IssueType != "" {
		if !models.ValidIssueType(in.IssueType) {
			return nil, invalid("Issue creation failed", "issue_type must be one of bug, task, story, epic")
		}
		issue.IssueType = in.IssueType
	}
	if in.Priority != "" {
		if !models.ValidPriority(in.Priority) {
			return nil, invalid("Issue creation failed", "priority must be one of lowest, low, medium, high, highest, critical")
		}
		issue.Priority = in.Priority
	}
	if in.DueDate != "" {
		t, err := ParseDate(in.DueDate)
		if err != nil {
			return nil, invalid("Issue creation failed", "due_date is not a valid date")
		}
		issue.DueDate = &t
	}
	if in.EstimatedTime != "" {
		v, err := strconv.ParseFloat(in.EstimatedTime, 64)
		if err != nil || v < 0 {
			return nil, invalid("Issue creation failed", "estimated_time must be a non-negative number of hours")
		}
		issue.EstimatedTime = &v
	}

	// All constraints are checked; now store the payloads. A failed insert
	// removes them again so no orphan files are left behind.
	policy := storage.IssueAttachmentPolicy()
	var saved []storage.SavedFile
	cleanup := func() {
		for _, f := range saved {
			_ = s.Files.Remove(f.FilePath)
		}
	}
	for _, fh := range files {
		sf, err := s.Files.Save(policy, "issues", fh)
		if err != nil {
			cleanup()
			return nil, err
		}
		saved = append(saved, sf)
	}

	now := time.Now()
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		cleanup()
		return nil, apperr.NewInternal("Issue creation failed", "could not begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO issues (
			id, project_id, title, summary, description, issue_type, status,
			priority, reporter_id, assignee_id, due_date, estimated_time,
			labels, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)`,
		issue.ID, issue.ProjectID, issue.Title, issue.Summary, issue.Description,
		issue.IssueType, issue.Status, issue.Priority, issue.ReporterID,
		issue.AssigneeID, issue.DueDate, issue.EstimatedTime,
		pq.Array([]string(issue.Labels)), now)
	if err != nil {
		cleanup()
		return nil, apperr.NewInternal("Issue creation failed", "could not insert issue", err)
	}

	for _, f := range saved {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO attachments (issue_id, file_name, file_path, file_type, file_size, uploaded_by, uploaded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			issue.ID, f.FileName, f.FilePath, f.FileType, f.FileSize, actor.ID, now)
		if err != nil {
			cleanup()
			return nil, apperr.NewInternal("Issue creation failed", "could not insert attachment", err)
		}
	}

	if err := tx.Commit(); err != nil {
		cleanup()
		return nil, apperr.NewInternal("Issue creation failed", "could not commit issue", err)
	}

	s.publishIssueEvent(&events.IssueEvent{
		Action:    events.IssueCreated,
		IssueID:   issue.ID,
		ProjectID: issue.ProjectID,
		ActorID:   actor.ID,
		Status:    issue.Status,
		Timestamp: now,
	})

	return s.loadIssue(ctx, issue.ID)
}

// resolveAssignee checks the assignee exists and belongs to the actor's
// company.
func (s *Service) resolveAssignee(ctx context.Context, actor models.Actor, raw string) (*uuid.UUID, error) {
	badAssignee := apperr.NewInvalidInput("Invalid assignee",
		"The assigned user is not valid or does not belong to your company")

	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, badAssignee
	}
	var companyID uuid.UUID
	err = s.DB.GetContext(ctx, &companyID, `SELECT company_id FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, badAssignee
	}
	if err != nil {
		return nil, apperr.NewInternal("Issue creation failed", "could not check assignee", err)
	}
	if companyID != actor.CompanyID {
		return nil, badAssignee
	}
	return &id, nil
}
