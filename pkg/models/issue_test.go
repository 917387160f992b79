package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidIssueType(t *testing.T) {
	for _, typ := range []string{IssueTypeBug, IssueTypeTask, IssueTypeStory, IssueTypeEpic} {
		assert.True(t, ValidIssueType(typ))
	}
	assert.False(t, ValidIssueType("chore"))
	assert.False(t, ValidIssueType(""))
}

func TestValidIssueStatus(t *testing.T) {
	for _, s := range []string{StatusOpen, StatusInProgress, StatusResolved, StatusClosed, StatusReopened} {
		assert.True(t, ValidIssueStatus(s))
	}
	assert.False(t, ValidIssueStatus("done"))
}

func TestValidSubtaskStatusExcludesReopened(t *testing.T) {
	for _, s := range []string{StatusOpen, StatusInProgress, StatusResolved, StatusClosed} {
		assert.True(t, ValidSubtaskStatus(s))
	}
	assert.False(t, ValidSubtaskStatus(StatusReopened))
	assert.False(t, ValidSubtaskStatus("done"))
}

func TestValidPriority(t *testing.T) {
	for _, p := range []string{
		PriorityLowest, PriorityLow, PriorityMedium,
		PriorityHigh, PriorityHighest, PriorityCritical,
	} {
		assert.True(t, ValidPriority(p))
	}
	assert.False(t, ValidPriority("urgent"))
}
