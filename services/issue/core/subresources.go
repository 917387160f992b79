package core

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/trackline/trackline/pkg/apperr"
	"github.com/trackline/trackline/pkg/events"
	"github.com/trackline/trackline/pkg/models"
)

// AddComment appends a comment under the issue. Comments never enter the
// history ledger.
func (s *Service) AddComment(ctx context.Context, actor models.Actor, issueID uuid.UUID, content string) (*models.Issue, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.NewInvalidInput("Invalid comment", "Comment content is required")
	}

	issue, err := s.loadIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO comments (issue_id, user_id, content) VALUES ($1, $2, $3)`,
		issue.ID, actor.ID, content)
	if err != nil {
		return nil, apperr.NewInternal("Comment addition failed", "could not insert comment", err)
	}

	s.publishIssueEvent(&events.IssueEvent{
		Action:    events.IssueCommentAdded,
		IssueID:   issue.ID,
		ProjectID: issue.ProjectID,
		ActorID:   actor.ID,
		Timestamp: time.Now(),
	})

	return s.loadIssue(ctx, issueID)
}

// SubtaskInput carries a new subtask. AssigneeID is the raw form value.
type SubtaskInput struct {
	Title       string
	Description string
	Status      string
	AssigneeID  string
	DueDate     string
}

// AddSubtask appends a subtask defaulting to status open with the acting user
// as reporter. Subtasks cannot be reopened, so that status is rejected here.
func (s *Service) AddSubtask(ctx context.Context, actor models.Actor, issueID uuid.UUID, in SubtaskInput) (*models.Issue, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.NewInvalidInput("Invalid subtask", "Subtask title is required")
	}
	status := models.StatusOpen
	if in.Status != "" {
		if !models.ValidSubtaskStatus(in.Status) {
			return nil, apperr.NewInvalidInput("Invalid subtask",
				"status must be one of open, in_progress, resolved, closed")
		}
		status = in.Status
	}

	issue, err := s.loadIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}

	var assigneeID *uuid.UUID
	if in.AssigneeID != "" {
		assigneeID, err = s.resolveAssignee(ctx, actor, in.AssigneeID)
		if err != nil {
			return nil, err
		}
	}

	var dueDate *time.Time
	if in.DueDate != "" {
		t, err := ParseDate(in.DueDate)
		if err != nil {
			return nil, apperr.NewInvalidInput("Invalid subtask", "due_date is not a valid date")
		}
		dueDate = &t
	}

	var description *string
	if d := strings.TrimSpace(in.Description); d != "" {
		description = &d
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO subtasks (issue_id, title, description, status, reporter_id, assignee_id, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		issue.ID, title, description, status, actor.ID, assigneeID, dueDate)
	if err != nil {
		return nil, apperr.NewInternal("Subtask addition failed", "could not insert subtask", err)
	}

	s.publishIssueEvent(&events.IssueEvent{
		Action:    events.IssueSubtaskAdded,
		IssueID:   issue.ID,
		ProjectID: issue.ProjectID,
		ActorID:   actor.ID,
		Timestamp: time.Now(),
	})

	return s.loadIssue(ctx, issueID)
}
