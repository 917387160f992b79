package core

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/trackline/trackline/pkg/models"
)

// The history ledger: every issue update diffs the pristine snapshot against
// the mutated working copy and appends one entry per changed field. Nested
// sub-resources (comments, subtasks, attachments), the history itself and
// updated_at are excluded to keep the trail free of recursive noise.

// FieldChange is one field transition produced by DiffIssues. Values are
// rendered as strings; nil marks an unset value.
type FieldChange struct {
	Field    string
	OldValue *string
	NewValue *string
}

// DiffIssues compares two issue snapshots and reports one change per tracked
// field. Unchanged fields yield nothing.
func DiffIssues(before, after *models.Issue) []FieldChange {
	var changes []FieldChange

	check := func(field string, old, new *string) {
		if !eqStrPtr(old, new) {
			changes = append(changes, FieldChange{Field: field, OldValue: old, NewValue: new})
		}
	}

	check("title", strVal(before.Title), strVal(after.Title))
	check("summary", strVal(before.Summary), strVal(after.Summary))
	check("description", before.Description, after.Description)
	check("issue_type", strVal(before.IssueType), strVal(after.IssueType))
	check("status", strVal(before.Status), strVal(after.Status))
	check("story_points", intVal(before.StoryPoints), intVal(after.StoryPoints))
	check("priority", strVal(before.Priority), strVal(after.Priority))
	check("assignee_id", uuidVal(before.AssigneeID), uuidVal(after.AssigneeID))
	check("due_date", timeVal(before.DueDate), timeVal(after.DueDate))
	check("estimated_time", floatVal(before.EstimatedTime), floatVal(after.EstimatedTime))
	check("actual_time", floatVal(before.ActualTime), floatVal(after.ActualTime))
	check("environment", before.Environment, after.Environment)
	check("labels", labelsVal(before.Labels), labelsVal(after.Labels))
	check("sprint_id", uuidVal(before.SprintID), uuidVal(after.SprintID))
	check("is_blocked", boolVal(before.IsBlocked), boolVal(after.IsBlocked))
	check("blocked_reason", before.BlockedReason, after.BlockedReason)

	return changes
}

// HistoryEntries stamps the changes with the modifying actor and timestamp.
// When no actor is supplied the issue's reporter is recorded instead.
func HistoryEntries(issue *models.Issue, changes []FieldChange, changedBy uuid.UUID, at time.Time) []models.HistoryEntry {
	if changedBy == uuid.Nil {
		changedBy = issue.ReporterID
	}
	entries := make([]models.HistoryEntry, 0, len(changes))
	for _, c := range changes {
		entries = append(entries, models.HistoryEntry{
			IssueID:   issue.ID,
			Field:     c.Field,
			OldValue:  c.OldValue,
			NewValue:  c.NewValue,
			ChangedBy: changedBy,
			ChangedAt: at,
		})
	}
	return entries
}

func eqStrPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func strVal(s string) *string {
	return &s
}

func intVal(n *int) *string {
	if n == nil {
		return nil
	}
	s := strconv.Itoa(*n)
	return &s
}

func floatVal(f *float64) *string {
	if f == nil {
		return nil
	}
	s := strconv.FormatFloat(*f, 'f', -1, 64)
	return &s
}

func boolVal(b bool) *string {
	s := strconv.FormatBool(b)
	return &s
}

func uuidVal(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func timeVal(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func labelsVal(labels []string) *string {
	s := strings.Join(labels, ",")
	return &s
}
