package core

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/trackline/trackline/pkg/apperr"
	"github.com/trackline/trackline/pkg/events"
	"github.com/trackline/trackline/pkg/models"
)

// Service is the sprint lifecycle engine: planned -> active -> completed,
// with the issue-reassignment side effect on completion.
type Service struct {
	DB  *sqlx.DB
	Bus events.Publisher
}

func NewService(db *sqlx.DB, bus events.Publisher) *Service {
	if bus == nil {
		bus = events.NopPublisher{}
	}
	return &Service{DB: db, Bus: bus}
}

var errSprintNotFound = apperr.NewNotFound("Not Found", "Sprint not found")

// uniqueViolation is the Postgres error code raised by the partial unique
// index guarding the one-active-sprint invariant.
const uniqueViolation = "23505"

var errActiveSprintExists = apperr.NewInvalidInput("Validation Error",
	"A sprint is already active for this project. Complete it first.")

// CreateInput carries a new sprint.
type CreateInput struct {
	ProjectID string
	Name      string
	Goal      string
	StartDate string
	EndDate   string
}

// CreateSprint inserts a planned sprint under an existing project.
func (s *Service) CreateSprint(ctx context.Context, actor models.Actor, in CreateInput) (*models.Sprint, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperr.NewInvalidInput("Creation Failed", "Sprint name is required")
	}
	projectID, err := uuid.Parse(in.ProjectID)
	if err != nil {
		return nil, apperr.NewNotFound("Not Found", "Project not found")
	}
	var exists bool
	if err := s.DB.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)`, projectID); err != nil {
		return nil, apperr.NewInternal("Creation Failed", "could not check project", err)
	}
	if !exists {
		return nil, apperr.NewNotFound("Not Found", "Project not found")
	}

	sprint := models.Sprint{
		ID:        uuid.New(),
		ProjectID: projectID,
		Name:      strings.TrimSpace(in.Name),
		Status:    models.SprintPlanned,
		CreatedBy: actor.ID,
	}
	if g := strings.TrimSpace(in.Goal); g != "" {
		sprint.Goal = &g
	}
	if in.StartDate != "" {
		t, err := parseDate(in.StartDate)
		if err != nil {
			return nil, apperr.NewInvalidInput("Creation Failed", "start_date is not a valid date")
		}
		sprint.StartDate = &t
	}
	if in.EndDate != "" {
		t, err := parseDate(in.EndDate)
		if err != nil {
			return nil, apperr.NewInvalidInput("Creation Failed", "end_date is not a valid date")
		}
		sprint.EndDate = &t
	}

	err = s.DB.GetContext(ctx, &sprint, `
		INSERT INTO sprints (id, project_id, name, goal, status, start_date, end_date, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *`,
		sprint.ID, sprint.ProjectID, sprint.Name, sprint.Goal, sprint.Status,
		sprint.StartDate, sprint.EndDate, sprint.CreatedBy)
	if err != nil {
		return nil, apperr.NewInternal("Creation Failed", "could not insert sprint", err)
	}

	s.publishSprintEvent(&events.SprintEvent{
		Action:    events.SprintCreated,
		SprintID:  sprint.ID,
		ProjectID: sprint.ProjectID,
		ActorID:   actor.ID,
		Status:    sprint.Status,
		Timestamp: time.Now(),
	})

	return &sprint, nil
}

// ListByProject returns the project's sprints, newest first.
func (s *Service) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Sprint, error) {
	var sprints []models.Sprint
	err := s.DB.SelectContext(ctx, &sprints,
		`SELECT * FROM sprints WHERE project_id = $1 ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, apperr.NewInternal("Fetch Failed", "could not list sprints", err)
	}
	if sprints == nil {
		sprints = []models.Sprint{}
	}
	return sprints, nil
}

// StartInput optionally overrides the sprint dates at start time.
type StartInput struct {
	StartDate string
	EndDate   string
}

// StartSprint moves a sprint to active. At most one sprint per project may be
// active; the partial unique index makes the check-then-act sequence safe
// under concurrency.
func (s *Service) StartSprint(ctx context.Context, actor models.Actor, id uuid.UUID, in StartInput) (*models.Sprint, error) {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperr.NewInternal("Update Failed", "could not begin transaction", err)
	}
	defer tx.Rollback()

	var sprint models.Sprint
	err = tx.GetContext(ctx, &sprint, `SELECT * FROM sprints WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errSprintNotFound
	}
	if err != nil {
		return nil, apperr.NewInternal("Update Failed", "could not load sprint", err)
	}

	if sprint.Status == models.SprintCompleted {
		return nil, apperr.NewInvalidInput("Validation Error", "A completed sprint cannot be restarted")
	}

	var activeExists bool
	err = tx.GetContext(ctx, &activeExists, `
		SELECT EXISTS (
			SELECT 1 FROM sprints WHERE project_id = $1 AND status = 'active' AND id <> $2
		)`, sprint.ProjectID, sprint.ID)
	if err != nil {
		return nil, apperr.NewInternal("Update Failed", "could not check active sprint", err)
	}
	if activeExists {
		return nil, errActiveSprintExists
	}

	startDate := time.Now()
	if in.StartDate != "" {
		t, err := parseDate(in.StartDate)
		if err != nil {
			return nil, apperr.NewInvalidInput("Update Failed", "start_date is not a valid date")
		}
		startDate = t
	}
	endDate := sprint.EndDate
	if in.EndDate != "" {
		t, err := parseDate(in.EndDate)
		if err != nil {
			return nil, apperr.NewInvalidInput("Update Failed", "end_date is not a valid date")
		}
		endDate = &t
	}

	err = tx.GetContext(ctx, &sprint, `
		UPDATE sprints SET status = 'active', start_date = $2, end_date = $3, updated_at = now()
		WHERE id = $1
		RETURNING *`,
		sprint.ID, startDate, endDate)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, errActiveSprintExists
		}
		return nil, apperr.NewInternal("Update Failed", "could not start sprint", err)
	}

	if err := tx.Commit(); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, errActiveSprintExists
		}
		return nil, apperr.NewInternal("Update Failed", "could not commit sprint start", err)
	}

	s.publishSprintEvent(&events.SprintEvent{
		Action:    events.SprintStarted,
		SprintID:  sprint.ID,
		ProjectID: sprint.ProjectID,
		ActorID:   actor.ID,
		Status:    sprint.Status,
		Timestamp: time.Now(),
	})

	return &sprint, nil
}

// CompleteSprint closes the sprint and, in the same transaction, moves every
// non-closed issue still attached to it either to the destination sprint or
// back to the backlog. Closed issues stay where they are.
func (s *Service) CompleteSprint(ctx context.Context, actor models.Actor, id uuid.UUID, moveToSprintID *uuid.UUID) (*models.Sprint, error) {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperr.NewInternal("Update Failed", "could not begin transaction", err)
	}
	defer tx.Rollback()

	var sprint models.Sprint
	err = tx.GetContext(ctx, &sprint, `SELECT * FROM sprints WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errSprintNotFound
	}
	if err != nil {
		return nil, apperr.NewInternal("Update Failed", "could not load sprint", err)
	}

	if moveToSprintID != nil {
		var exists bool
		err = tx.GetContext(ctx, &exists,
			`SELECT EXISTS (SELECT 1 FROM sprints WHERE id = $1)`, *moveToSprintID)
		if err != nil {
			return nil, apperr.NewInternal("Update Failed", "could not check destination sprint", err)
		}
		if !exists {
			return nil, apperr.NewNotFound("Not Found", "Destination sprint not found")
		}
	}

	err = tx.GetContext(ctx, &sprint, `
		UPDATE sprints SET status = 'completed', completed_at = now(), updated_at = now()
		WHERE id = $1
		RETURNING *`, sprint.ID)
	if err != nil {
		return nil, apperr.NewInternal("Update Failed", "could not complete sprint", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE issues SET sprint_id = $2, updated_at = now()
		WHERE sprint_id = $1 AND status <> 'closed'`,
		sprint.ID, moveToSprintID)
	if err != nil {
		return nil, apperr.NewInternal("Update Failed", "could not move incomplete issues", err)
	}
	moved, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return nil, apperr.NewInternal("Update Failed", "could not commit sprint completion", err)
	}

	s.publishSprintEvent(&events.SprintEvent{
		Action:      events.SprintCompleted,
		SprintID:    sprint.ID,
		ProjectID:   sprint.ProjectID,
		ActorID:     actor.ID,
		Status:      sprint.Status,
		MovedIssues: moved,
		Timestamp:   time.Now(),
	})

	return &sprint, nil
}

func (s *Service) publishSprintEvent(ev *events.SprintEvent) {
	if err := s.Bus.PublishSprintEvent(ev); err != nil {
		log.Printf("sprint event publish failed: %v", err)
	}
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
