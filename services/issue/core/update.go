package core

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/trackline/trackline/pkg/apperr"
	"github.com/trackline/trackline/pkg/events"
	"github.com/trackline/trackline/pkg/models"
)

// allowedUpdates is the fixed set of fields an issue update may touch. Any
// other key rejects the whole request with no partial apply.
var allowedUpdates = []string{
	"title", "summary", "description", "issue_type", "status", "story_points",
	"priority", "assignee_id", "due_date", "estimated_time", "actual_time",
	"environment", "labels", "sprint_id", "is_blocked", "blocked_reason",
}

var allowedUpdateSet = func() map[string]bool {
	m := make(map[string]bool, len(allowedUpdates))
	for _, f := range allowedUpdates {
		m[f] = true
	}
	return m
}()

// UpdateRequest is the decoded PATCH body. Keys are field names; values stay
// raw until the allow-list check passes.
type UpdateRequest map[string]json.RawMessage

// Validate rejects any field outside the allow-list.
func (r UpdateRequest) Validate() error {
	var disallowed []string
	for field := range r {
		if !allowedUpdateSet[field] {
			disallowed = append(disallowed, field)
		}
	}
	if len(disallowed) > 0 {
		return apperr.NewInvalidInput("Invalid updates",
			"One or more update fields are not allowed").
			WithDetails(map[string]interface{}{
				"disallowed_fields": disallowed,
				"allowed_updates":   allowedUpdates,
			})
	}
	return nil
}

// ApplyTo mutates the working copy with the requested fields. The caller holds
// the pristine snapshot for diffing.
func (r UpdateRequest) ApplyTo(issue *models.Issue) error {
	if err := r.Validate(); err != nil {
		return err
	}

	for field, raw := range r {
		if err := applyField(issue, field, raw); err != nil {
			return err
		}
	}
	return nil
}

func applyField(issue *models.Issue, field string, raw json.RawMessage) error {
	invalid := func(msg string) error {
		return apperr.NewInvalidInput("Issue update failed", msg)
	}

	switch field {
	case "title":
		var v string
		if err := json.Unmarshal(raw, &v); err != nil || v == "" {
			return invalid("title must be a non-empty string")
		}
		issue.Title = v
	case "summary":
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return invalid("summary must be a string")
		}
		issue.Summary = v
	case "description":
		if err := json.Unmarshal(raw, &issue.Description); err != nil {
			return invalid("description must be a string")
		}
	case "issue_type":
		var v string
		if err := json.Unmarshal(raw, &v); err != nil || !models.ValidIssueType(v) {
			return invalid("issue_type must be one of bug, task, story, epic")
		}
		issue.IssueType = v
	case "status":
		var v string
		if err := json.Unmarshal(raw, &v); err != nil || !models.ValidIssueStatus(v) {
			return invalid("status must be one of open, in_progress, resolved, closed, reopened")
		}
		issue.Status = v
	case "story_points":
		var v *int
		if err := json.Unmarshal(raw, &v); err != nil {
			return invalid("story_points must be a number")
		}
		if v != nil && (*v < models.StoryPointsMin || *v > models.StoryPointsMax) {
			return invalid(fmt.Sprintf("story_points must be between %d and %d",
				models.StoryPointsMin, models.StoryPointsMax))
		}
		issue.StoryPoints = v
	case "priority":
		var v string
		if err := json.Unmarshal(raw, &v); err != nil || !models.ValidPriority(v) {
			return invalid("priority must be one of lowest, low, medium, high, highest, critical")
		}
		issue.Priority = v
	case "assignee_id":
		id, err := unmarshalUUIDPtr(raw)
		if err != nil {
			return invalid("assignee_id must be a user id or null")
		}
		issue.AssigneeID = id
	case "due_date":
		var v *string
		if err := json.Unmarshal(raw, &v); err != nil {
			return invalid("due_date must be a date string")
		}
		// Empty or null leaves the existing due date untouched.
		if v == nil || *v == "" {
			return nil
		}
		t, err := ParseDate(*v)
		if err != nil {
			return invalid("due_date is not a valid date")
		}
		issue.DueDate = &t
	case "estimated_time":
		v, err := unmarshalNonNegative(raw)
		if err != nil {
			return invalid("estimated_time must be a non-negative number of hours")
		}
		issue.EstimatedTime = v
	case "actual_time":
		v, err := unmarshalNonNegative(raw)
		if err != nil {
			return invalid("actual_time must be a non-negative number of hours")
		}
		issue.ActualTime = v
	case "environment":
		if err := json.Unmarshal(raw, &issue.Environment); err != nil {
			return invalid("environment must be a string")
		}
	case "labels":
		labels, err := NormalizeLabelsJSON(raw)
		if err != nil {
			return err
		}
		issue.Labels = labels
	case "sprint_id":
		id, err := unmarshalUUIDPtr(raw)
		if err != nil {
			return invalid("sprint_id must be a sprint id or null")
		}
		issue.SprintID = id
	case "is_blocked":
		if err := json.Unmarshal(raw, &issue.IsBlocked); err != nil {
			return invalid("is_blocked must be a boolean")
		}
	case "blocked_reason":
		if err := json.Unmarshal(raw, &issue.BlockedReason); err != nil {
			return invalid("blocked_reason must be a string")
		}
	}
	return nil
}

func unmarshalUUIDPtr(raw json.RawMessage) (*uuid.UUID, error) {
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if s == nil || *s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func unmarshalNonNegative(raw json.RawMessage) (*float64, error) {
	var v *float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	if v != nil && *v < 0 {
		return nil, errors.New("negative")
	}
	return v, nil
}

// ParseDate accepts RFC 3339 timestamps or bare yyyy-mm-dd dates.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// UpdateIssue applies an allow-listed field patch. The pristine row is
// snapshotted under a row lock, the patch is applied to a working copy, the
// two are diffed, and the update plus its history entries commit together.
func (s *Service) UpdateIssue(ctx context.Context, actor models.Actor, id uuid.UUID, req UpdateRequest) (*models.Issue, error) {
	// Everything is validated before any persistence happens.
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperr.NewInternal("Issue update failed", "could not begin transaction", err)
	}
	defer tx.Rollback()

	var before models.Issue
	err = tx.GetContext(ctx, &before, `SELECT * FROM issues WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errIssueNotFound
	}
	if err != nil {
		return nil, apperr.NewInternal("Issue update failed", "could not load issue", err)
	}

	working := before
	if err := req.ApplyTo(&working); err != nil {
		return nil, err
	}

	changes := DiffIssues(&before, &working)
	now := time.Now()

	_, err = tx.ExecContext(ctx, `
		UPDATE issues SET
			title = $2, summary = $3, description = $4, issue_type = $5,
			status = $6, story_points = $7, priority = $8, assignee_id = $9,
			due_date = $10, estimated_time = $11, actual_time = $12,
			environment = $13, labels = $14, sprint_id = $15,
			is_blocked = $16, blocked_reason = $17, updated_at = $18
		WHERE id = $1`,
		working.ID, working.Title, working.Summary, working.Description,
		working.IssueType, working.Status, working.StoryPoints, working.Priority,
		working.AssigneeID, working.DueDate, working.EstimatedTime,
		working.ActualTime, working.Environment, pq.Array([]string(working.Labels)),
		working.SprintID, working.IsBlocked, working.BlockedReason, now)
	if err != nil {
		return nil, apperr.NewInternal("Issue update failed", "could not persist issue", err)
	}

	entries := HistoryEntries(&working, changes, actor.ID, now)
	for _, e := range entries {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO issue_history (issue_id, field, old_value, new_value, changed_by, changed_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			e.IssueID, e.Field, e.OldValue, e.NewValue, e.ChangedBy, e.ChangedAt)
		if err != nil {
			return nil, apperr.NewInternal("Issue update failed", "could not append history", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.NewInternal("Issue update failed", "could not commit update", err)
	}

	if len(changes) > 0 {
		fields := make([]string, 0, len(changes))
		for _, c := range changes {
			fields = append(fields, c.Field)
		}
		s.publishIssueEvent(&events.IssueEvent{
			Action:    events.IssueUpdated,
			IssueID:   working.ID,
			ProjectID: working.ProjectID,
			ActorID:   actor.ID,
			Status:    working.Status,
			SprintID:  working.SprintID,
			Fields:    fields,
			Timestamp: now,
		})
	}

	return s.loadIssue(ctx, id)
}
