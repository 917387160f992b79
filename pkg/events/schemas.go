package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	IssueEventSubject  = "issue.events"
	SprintEventSubject = "sprint.events"
)

// Issue event actions.
const (
	IssueCreated           = "issue_created"
	IssueUpdated           = "issue_updated"
	IssueDeleted           = "issue_deleted"
	IssueCommentAdded      = "comment_added"
	IssueSubtaskAdded      = "subtask_added"
	IssueAttachmentAdded   = "attachment_added"
	IssueAttachmentRemoved = "attachment_removed"
)

// Sprint event actions.
const (
	SprintCreated   = "sprint_created"
	SprintStarted   = "sprint_started"
	SprintCompleted = "sprint_completed"
)

// IssueEvent is published on the issue.events subject after an issue mutation
// commits. Consumers (dashboards, reports) are outside this repo.
type IssueEvent struct {
	Action    string     `json:"action"`
	IssueID   uuid.UUID  `json:"issue_id"`
	ProjectID uuid.UUID  `json:"project_id"`
	ActorID   uuid.UUID  `json:"actor_id"`
	Status    string     `json:"status,omitempty"`
	SprintID  *uuid.UUID `json:"sprint_id,omitempty"`
	// Fields lists the issue fields that changed, for update events.
	Fields    []string  `json:"fields,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SprintEvent is published on the sprint.events subject.
type SprintEvent struct {
	Action    string    `json:"action"`
	SprintID  uuid.UUID `json:"sprint_id"`
	ProjectID uuid.UUID `json:"project_id"`
	ActorID   uuid.UUID `json:"actor_id"`
	Status    string    `json:"status"`
	// MovedIssues counts the non-closed issues reassigned on completion.
	MovedIssues int64     `json:"moved_issues,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher is what the lifecycle engines publish through. A nil-safe no-op
// implementation keeps the engines broker-free in tests and when NATS_URL is
// unset.
type Publisher interface {
	PublishIssueEvent(event *IssueEvent) error
	PublishSprintEvent(event *SprintEvent) error
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) PublishIssueEvent(*IssueEvent) error   { return nil }
func (NopPublisher) PublishSprintEvent(*SprintEvent) error { return nil }
