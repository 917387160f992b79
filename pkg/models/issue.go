package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Issue types.
const (
	IssueTypeBug   = "bug"
	IssueTypeTask  = "task"
	IssueTypeStory = "story"
	IssueTypeEpic  = "epic"
)

func ValidIssueType(t string) bool {
	switch t {
	case IssueTypeBug, IssueTypeTask, IssueTypeStory, IssueTypeEpic:
		return true
	}
	return false
}

// Issue statuses. Subtasks use the same set minus reopened.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
	StatusReopened   = "reopened"
)

func ValidIssueStatus(s string) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed, StatusReopened:
		return true
	}
	return false
}

func ValidSubtaskStatus(s string) bool {
	return s != StatusReopened && ValidIssueStatus(s)
}

// Priorities.
const (
	PriorityLowest   = "lowest"
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityHighest  = "highest"
	PriorityCritical = "critical"
)

func ValidPriority(p string) bool {
	switch p {
	case PriorityLowest, PriorityLow, PriorityMedium,
		PriorityHigh, PriorityHighest, PriorityCritical:
		return true
	}
	return false
}

// Story point bounds.
const (
	StoryPointsMin = 0
	StoryPointsMax = 30
)

type Issue struct {
	ID            uuid.UUID      `json:"id" db:"id"`
	ProjectID     uuid.UUID      `json:"project_id" db:"project_id"`
	Title         string         `json:"title" db:"title"`
	Summary       string         `json:"summary" db:"summary"`
	Description   *string        `json:"description,omitempty" db:"description"`
	IssueType     string         `json:"issue_type" db:"issue_type"`
	Status        string         `json:"status" db:"status"`
	StoryPoints   *int           `json:"story_points,omitempty" db:"story_points"`
	Priority      string         `json:"priority" db:"priority"`
	ReporterID    uuid.UUID      `json:"reporter_id" db:"reporter_id"`
	AssigneeID    *uuid.UUID     `json:"assignee_id,omitempty" db:"assignee_id"`
	DueDate       *time.Time     `json:"due_date,omitempty" db:"due_date"`
	EstimatedTime *float64       `json:"estimated_time,omitempty" db:"estimated_time"` // hours
	ActualTime    *float64       `json:"actual_time,omitempty" db:"actual_time"`       // hours
	Environment   *string        `json:"environment,omitempty" db:"environment"`
	Labels        pq.StringArray `json:"labels" db:"labels"`
	SprintID      *uuid.UUID     `json:"sprint_id,omitempty" db:"sprint_id"` // nil means backlog
	IsBlocked     bool           `json:"is_blocked" db:"is_blocked"`
	BlockedReason *string        `json:"blocked_reason,omitempty" db:"blocked_reason"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`

	// Sub-resources, loaded alongside the row for detail responses.
	Attachments []Attachment   `json:"attachments" db:"-"`
	Comments    []Comment      `json:"comments" db:"-"`
	Subtasks    []Subtask      `json:"subtasks" db:"-"`
	History     []HistoryEntry `json:"history" db:"-"`
}

type Subtask struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	IssueID     uuid.UUID  `json:"issue_id" db:"issue_id"`
	Title       string     `json:"title" db:"title"`
	Description *string    `json:"description,omitempty" db:"description"`
	Status      string     `json:"status" db:"status"`
	ReporterID  uuid.UUID  `json:"reporter_id" db:"reporter_id"`
	AssigneeID  *uuid.UUID `json:"assignee_id,omitempty" db:"assignee_id"`
	DueDate     *time.Time `json:"due_date,omitempty" db:"due_date"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`

	Comments []Comment `json:"comments" db:"-"`
}

// Comment belongs to either an issue or a subtask, never both.
type Comment struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	IssueID   *uuid.UUID `json:"issue_id,omitempty" db:"issue_id"`
	SubtaskID *uuid.UUID `json:"subtask_id,omitempty" db:"subtask_id"`
	UserID    uuid.UUID  `json:"user_id" db:"user_id"`
	Content   string     `json:"content" db:"content"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

type Attachment struct {
	ID         uuid.UUID `json:"id" db:"id"`
	IssueID    uuid.UUID `json:"issue_id" db:"issue_id"`
	FileName   string    `json:"file_name" db:"file_name"`
	FilePath   string    `json:"file_path" db:"file_path"`
	FileType   string    `json:"file_type" db:"file_type"`
	FileSize   int64     `json:"file_size" db:"file_size"`
	UploadedBy uuid.UUID `json:"uploaded_by" db:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at" db:"uploaded_at"`
}

// HistoryEntry is one immutable audit record of a field transition on an
// issue. Entries are appended on update and never edited or removed.
type HistoryEntry struct {
	ID        uuid.UUID `json:"id" db:"id"`
	IssueID   uuid.UUID `json:"issue_id" db:"issue_id"`
	Field     string    `json:"field" db:"field"`
	OldValue  *string   `json:"old_value" db:"old_value"`
	NewValue  *string   `json:"new_value" db:"new_value"`
	ChangedBy uuid.UUID `json:"changed_by" db:"changed_by"`
	ChangedAt time.Time `json:"changed_at" db:"changed_at"`
}
