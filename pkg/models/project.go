package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Project statuses.
const (
	ProjectActive    = "active"
	ProjectInactive  = "inactive"
	ProjectCompleted = "completed"
	ProjectArchived  = "archived"
)

func ValidProjectStatus(status string) bool {
	switch status {
	case ProjectActive, ProjectInactive, ProjectCompleted, ProjectArchived:
		return true
	}
	return false
}

// ProjectKeyMaxLen caps the uppercase project key.
const ProjectKeyMaxLen = 10

type Project struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	CompanyID   uuid.UUID       `json:"company_id" db:"company_id"`
	Name        string          `json:"name" db:"name"`
	Key         string          `json:"key" db:"key"`
	Description *string         `json:"description,omitempty" db:"description"`
	ProjectLead uuid.UUID       `json:"project_lead" db:"project_lead"`
	CreatedBy   uuid.UUID       `json:"created_by" db:"created_by"`
	StartDate   *time.Time      `json:"start_date,omitempty" db:"start_date"`
	EndDate     *time.Time      `json:"end_date,omitempty" db:"end_date"`
	Status      string          `json:"status" db:"status"`
	Categories  pq.StringArray  `json:"categories" db:"categories"`
	Avatar      *string         `json:"avatar,omitempty" db:"avatar"`
	Settings    json.RawMessage `json:"settings" db:"settings"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`

	// TeamMembers lives in project_members and is filled in by the handlers.
	// The project lead is always a member.
	TeamMembers []uuid.UUID `json:"team_members" db:"-"`
}

// ProjectSettings is the per-project workflow declaration. The workflow map is
// served to clients but not enforced as a transition guard on issue mutation.
type ProjectSettings struct {
	IssueTypes []string            `json:"issue_types"`
	Priorities []string            `json:"priorities"`
	Workflow   map[string][]string `json:"workflow"`
}

// DefaultProjectSettings returns the settings new projects start with.
func DefaultProjectSettings() ProjectSettings {
	return ProjectSettings{
		IssueTypes: []string{IssueTypeBug, IssueTypeTask, IssueTypeStory, IssueTypeEpic},
		Priorities: []string{
			PriorityLowest, PriorityLow, PriorityMedium,
			PriorityHigh, PriorityHighest, PriorityCritical,
		},
		Workflow: map[string][]string{
			StatusOpen:       {StatusInProgress, StatusClosed},
			StatusInProgress: {StatusResolved, StatusOpen},
			StatusResolved:   {StatusClosed, StatusInProgress},
			StatusClosed:     {StatusReopened},
			StatusReopened:   {StatusInProgress, StatusClosed},
		},
	}
}
