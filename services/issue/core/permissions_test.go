package core

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/trackline/trackline/pkg/models"
)

func TestCanDeleteIssue(t *testing.T) {
	reporter := uuid.New()
	issue := &models.Issue{ID: uuid.New(), ReporterID: reporter}

	assert.True(t, CanDeleteIssue(models.Actor{ID: reporter, Role: models.RoleDeveloper}, issue))
	assert.True(t, CanDeleteIssue(models.Actor{ID: uuid.New(), Role: models.RoleAdmin}, issue))
	assert.False(t, CanDeleteIssue(models.Actor{ID: uuid.New(), Role: models.RoleDeveloper}, issue))
	assert.False(t, CanDeleteIssue(models.Actor{ID: uuid.New(), Role: models.RoleManager}, issue))
}

func TestCanDeleteAttachment(t *testing.T) {
	uploader := uuid.New()
	att := &models.Attachment{ID: uuid.New(), UploadedBy: uploader}

	assert.True(t, CanDeleteAttachment(models.Actor{ID: uploader, Role: models.RoleTester}, att))
	assert.True(t, CanDeleteAttachment(models.Actor{ID: uuid.New(), Role: models.RoleAdmin}, att))
	assert.False(t, CanDeleteAttachment(models.Actor{ID: uuid.New(), Role: models.RoleDeveloper}, att))
}
