package core

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListConditionsEmptyFilter(t *testing.T) {
	cond, args := listConditions(ListFilter{})
	assert.Equal(t, "1=1", cond)
	assert.Empty(t, args)
}

func TestListConditionsSearchCoversTitleSummaryDescription(t *testing.T) {
	cond, args := listConditions(ListFilter{Status: "open", Search: "login"})

	assert.Equal(t,
		"1=1 AND status = $1 AND (title ILIKE $2 OR summary ILIKE $2 OR description ILIKE $2)",
		cond)
	require.Len(t, args, 2)
	assert.Equal(t, "open", args[0])
	assert.Equal(t, "%login%", args[1])
}

func TestListConditionsNumbering(t *testing.T) {
	projectID := uuid.New()
	sprintID := uuid.New()
	blocked := true

	cond, args := listConditions(ListFilter{
		ProjectID: &projectID,
		SprintID:  &sprintID,
		Priority:  "high",
		IsBlocked: &blocked,
		Search:    "timeout",
	})

	assert.Equal(t,
		"1=1 AND project_id = $1 AND sprint_id = $2 AND priority = $3 AND is_blocked = $4"+
			" AND (title ILIKE $5 OR summary ILIKE $5 OR description ILIKE $5)",
		cond)
	require.Len(t, args, 5)
	assert.Equal(t, projectID, args[0])
	assert.Equal(t, "%timeout%", args[4])
}
