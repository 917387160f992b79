package core

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackline/trackline/pkg/apperr"
	"github.com/trackline/trackline/pkg/models"
)

// The lifecycle tests run the state machine against a real migrated Postgres
// and skip when TEST_DATABASE_URL is unset.
func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type fixture struct {
	companyID uuid.UUID
	userID    uuid.UUID
	projectID uuid.UUID
	actor     models.Actor
}

func newFixture(t *testing.T, db *sqlx.DB) fixture {
	t.Helper()
	ctx := context.Background()
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

	var f fixture
	require.NoError(t, db.GetContext(ctx, &f.companyID, `
		INSERT INTO companies (name, email, company_code)
		VALUES ('Sprint Test Co', $1, $2) RETURNING id`,
		suffix+"@sprint.test", strings.ToUpper(suffix)))
	require.NoError(t, db.GetContext(ctx, &f.userID, `
		INSERT INTO users (company_id, name, email, password_hash, role)
		VALUES ($1, 'Sprint Tester', $2, 'unused', 'admin') RETURNING id`,
		f.companyID, "u-"+suffix+"@sprint.test"))
	require.NoError(t, db.GetContext(ctx, &f.projectID, `
		INSERT INTO projects (company_id, name, key, project_lead, created_by)
		VALUES ($1, 'Sprint Project', $2, $3, $3) RETURNING id`,
		f.companyID, strings.ToUpper(suffix), f.userID))

	t.Cleanup(func() {
		db.Exec(`DELETE FROM projects WHERE id = $1`, f.projectID)
		db.Exec(`DELETE FROM users WHERE id = $1`, f.userID)
		db.Exec(`DELETE FROM companies WHERE id = $1`, f.companyID)
	})

	f.actor = models.Actor{ID: f.userID, CompanyID: f.companyID, Role: models.RoleAdmin}
	return f
}

func (f fixture) insertIssue(t *testing.T, db *sqlx.DB, status string, sprintID *uuid.UUID) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	require.NoError(t, db.Get(&id, `
		INSERT INTO issues (project_id, title, status, reporter_id, sprint_id)
		VALUES ($1, 'Lifecycle issue', $2, $3, $4) RETURNING id`,
		f.projectID, status, f.userID, sprintID))
	return id
}

func sprintStatus(t *testing.T, db *sqlx.DB, id uuid.UUID) string {
	t.Helper()
	var status string
	require.NoError(t, db.Get(&status, `SELECT status FROM sprints WHERE id = $1`, id))
	return status
}

func issueSprint(t *testing.T, db *sqlx.DB, id uuid.UUID) *uuid.UUID {
	t.Helper()
	var sprintID *uuid.UUID
	require.NoError(t, db.Get(&sprintID, `SELECT sprint_id FROM issues WHERE id = $1`, id))
	return sprintID
}

func TestStartSprintRejectsSecondActive(t *testing.T) {
	db := testDB(t)
	fx := newFixture(t, db)
	svc := NewService(db, nil)
	ctx := context.Background()

	first, err := svc.CreateSprint(ctx, fx.actor, CreateInput{
		ProjectID: fx.projectID.String(), Name: "Sprint 1",
	})
	require.NoError(t, err)
	second, err := svc.CreateSprint(ctx, fx.actor, CreateInput{
		ProjectID: fx.projectID.String(), Name: "Sprint 2",
	})
	require.NoError(t, err)

	started, err := svc.StartSprint(ctx, fx.actor, first.ID, StartInput{})
	require.NoError(t, err)
	assert.Equal(t, models.SprintActive, started.Status)
	require.NotNil(t, started.StartDate)

	_, err = svc.StartSprint(ctx, fx.actor, second.ID, StartInput{})
	require.Error(t, err)
	ae := apperr.AsError(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.InvalidInput, ae.Kind)
	assert.Equal(t, "Validation Error", ae.Type)

	// Neither sprint changed state.
	assert.Equal(t, models.SprintActive, sprintStatus(t, db, first.ID))
	assert.Equal(t, models.SprintPlanned, sprintStatus(t, db, second.ID))
}

func TestCompleteSprintMovesUnfinishedIssues(t *testing.T) {
	db := testDB(t)
	fx := newFixture(t, db)
	svc := NewService(db, nil)
	ctx := context.Background()

	sprint, err := svc.CreateSprint(ctx, fx.actor, CreateInput{
		ProjectID: fx.projectID.String(), Name: "Current",
	})
	require.NoError(t, err)
	dest, err := svc.CreateSprint(ctx, fx.actor, CreateInput{
		ProjectID: fx.projectID.String(), Name: "Next",
	})
	require.NoError(t, err)
	_, err = svc.StartSprint(ctx, fx.actor, sprint.ID, StartInput{})
	require.NoError(t, err)

	open := fx.insertIssue(t, db, models.StatusOpen, &sprint.ID)
	inProgress := fx.insertIssue(t, db, models.StatusInProgress, &sprint.ID)
	closed := fx.insertIssue(t, db, models.StatusClosed, &sprint.ID)

	completed, err := svc.CompleteSprint(ctx, fx.actor, sprint.ID, &dest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SprintCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	// Unfinished issues follow the destination; closed issues stay put.
	require.NotNil(t, issueSprint(t, db, open))
	assert.Equal(t, dest.ID, *issueSprint(t, db, open))
	assert.Equal(t, dest.ID, *issueSprint(t, db, inProgress))
	require.NotNil(t, issueSprint(t, db, closed))
	assert.Equal(t, sprint.ID, *issueSprint(t, db, closed))
}

func TestCompleteSprintWithoutDestinationMovesToBacklog(t *testing.T) {
	db := testDB(t)
	fx := newFixture(t, db)
	svc := NewService(db, nil)
	ctx := context.Background()

	sprint, err := svc.CreateSprint(ctx, fx.actor, CreateInput{
		ProjectID: fx.projectID.String(), Name: "Solo",
	})
	require.NoError(t, err)
	_, err = svc.StartSprint(ctx, fx.actor, sprint.ID, StartInput{})
	require.NoError(t, err)

	open := fx.insertIssue(t, db, models.StatusOpen, &sprint.ID)
	closed := fx.insertIssue(t, db, models.StatusClosed, &sprint.ID)

	_, err = svc.CompleteSprint(ctx, fx.actor, sprint.ID, nil)
	require.NoError(t, err)

	assert.Nil(t, issueSprint(t, db, open))
	require.NotNil(t, issueSprint(t, db, closed))
	assert.Equal(t, sprint.ID, *issueSprint(t, db, closed))
}

func TestCompleteSprintUnknownDestination(t *testing.T) {
	db := testDB(t)
	fx := newFixture(t, db)
	svc := NewService(db, nil)
	ctx := context.Background()

	sprint, err := svc.CreateSprint(ctx, fx.actor, CreateInput{
		ProjectID: fx.projectID.String(), Name: "Current",
	})
	require.NoError(t, err)

	missing := uuid.New()
	_, err = svc.CompleteSprint(ctx, fx.actor, sprint.ID, &missing)
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	assert.Equal(t, models.SprintPlanned, sprintStatus(t, db, sprint.ID))
}

func TestCompletedSprintCannotRestart(t *testing.T) {
	db := testDB(t)
	fx := newFixture(t, db)
	svc := NewService(db, nil)
	ctx := context.Background()

	sprint, err := svc.CreateSprint(ctx, fx.actor, CreateInput{
		ProjectID: fx.projectID.String(), Name: "Done",
	})
	require.NoError(t, err)
	_, err = svc.StartSprint(ctx, fx.actor, sprint.ID, StartInput{})
	require.NoError(t, err)
	_, err = svc.CompleteSprint(ctx, fx.actor, sprint.ID, nil)
	require.NoError(t, err)

	_, err = svc.StartSprint(ctx, fx.actor, sprint.ID, StartInput{})
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
	assert.Equal(t, models.SprintCompleted, sprintStatus(t, db, sprint.ID))
}
