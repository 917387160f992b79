package core

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackline/trackline/pkg/models"
)

func baseIssue() models.Issue {
	return models.Issue{
		ID:         uuid.New(),
		ProjectID:  uuid.New(),
		Title:      "Fix login crash",
		Summary:    "Fix login crash",
		IssueType:  models.IssueTypeBug,
		Status:     models.StatusOpen,
		Priority:   models.PriorityMedium,
		ReporterID: uuid.New(),
		Labels:     []string{"auth"},
	}
}

func TestDiffIssuesNoChanges(t *testing.T) {
	before := baseIssue()
	after := before

	assert.Empty(t, DiffIssues(&before, &after))
}

func TestDiffIssuesTracksChangedFields(t *testing.T) {
	before := baseIssue()
	after := before
	after.Status = models.StatusInProgress
	after.Priority = models.PriorityHigh
	points := 5
	after.StoryPoints = &points

	changes := DiffIssues(&before, &after)
	require.Len(t, changes, 3)

	byField := map[string]FieldChange{}
	for _, c := range changes {
		byField[c.Field] = c
	}

	status := byField["status"]
	require.NotNil(t, status.OldValue)
	require.NotNil(t, status.NewValue)
	assert.Equal(t, "open", *status.OldValue)
	assert.Equal(t, "in_progress", *status.NewValue)

	sp := byField["story_points"]
	assert.Nil(t, sp.OldValue)
	require.NotNil(t, sp.NewValue)
	assert.Equal(t, "5", *sp.NewValue)
}

func TestDiffIssuesNullableTransitions(t *testing.T) {
	before := baseIssue()
	after := before

	assignee := uuid.New()
	after.AssigneeID = &assignee
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	after.DueDate = &due
	after.Labels = []string{"auth", "urgent"}

	changes := DiffIssues(&before, &after)
	require.Len(t, changes, 3)

	byField := map[string]FieldChange{}
	for _, c := range changes {
		byField[c.Field] = c
	}

	assert.Nil(t, byField["assignee_id"].OldValue)
	assert.Equal(t, assignee.String(), *byField["assignee_id"].NewValue)
	assert.Equal(t, "2026-03-01T00:00:00Z", *byField["due_date"].NewValue)
	assert.Equal(t, "auth", *byField["labels"].OldValue)
	assert.Equal(t, "auth,urgent", *byField["labels"].NewValue)
}

func TestDiffIssuesClearingAssignee(t *testing.T) {
	before := baseIssue()
	assignee := uuid.New()
	before.AssigneeID = &assignee
	after := before
	after.AssigneeID = nil

	changes := DiffIssues(&before, &after)
	require.Len(t, changes, 1)
	assert.Equal(t, "assignee_id", changes[0].Field)
	assert.Equal(t, assignee.String(), *changes[0].OldValue)
	assert.Nil(t, changes[0].NewValue)
}

func TestHistoryEntriesStampsActor(t *testing.T) {
	issue := baseIssue()
	actor := uuid.New()
	now := time.Now()

	oldV, newV := "open", "closed"
	entries := HistoryEntries(&issue, []FieldChange{
		{Field: "status", OldValue: &oldV, NewValue: &newV},
	}, actor, now)

	require.Len(t, entries, 1)
	assert.Equal(t, issue.ID, entries[0].IssueID)
	assert.Equal(t, actor, entries[0].ChangedBy)
	assert.Equal(t, now, entries[0].ChangedAt)
}

func TestHistoryEntriesReporterFallback(t *testing.T) {
	issue := baseIssue()
	oldV, newV := "open", "closed"

	entries := HistoryEntries(&issue, []FieldChange{
		{Field: "status", OldValue: &oldV, NewValue: &newV},
	}, uuid.Nil, time.Now())

	require.Len(t, entries, 1)
	assert.Equal(t, issue.ReporterID, entries[0].ChangedBy)
}
