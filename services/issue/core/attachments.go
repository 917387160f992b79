package core

import (
	"context"
	"database/sql"
	"errors"
	"mime/multipart"
	"time"

	"github.com/google/uuid"
	"github.com/trackline/trackline/pkg/apperr"
	"github.com/trackline/trackline/pkg/events"
	"github.com/trackline/trackline/pkg/models"
	"github.com/trackline/trackline/pkg/storage"
)

// AddAttachment stores the payload and appends its metadata to the issue.
func (s *Service) AddAttachment(ctx context.Context, actor models.Actor, issueID uuid.UUID, fh *multipart.FileHeader) (*models.Issue, error) {
	if fh == nil {
		return nil, apperr.NewInvalidInput("Attachment required", "Attachment file is required")
	}

	issue, err := s.loadIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}

	saved, err := s.Files.Save(storage.IssueAttachmentPolicy(), "issues", fh)
	if err != nil {
		return nil, err
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO attachments (issue_id, file_name, file_path, file_type, file_size, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		issue.ID, saved.FileName, saved.FilePath, saved.FileType, saved.FileSize, actor.ID)
	if err != nil {
		_ = s.Files.Remove(saved.FilePath)
		return nil, apperr.NewInternal("Attachment upload failed", "could not insert attachment", err)
	}

	s.publishIssueEvent(&events.IssueEvent{
		Action:    events.IssueAttachmentAdded,
		IssueID:   issue.ID,
		ProjectID: issue.ProjectID,
		ActorID:   actor.ID,
		Timestamp: time.Now(),
	})

	return s.loadIssue(ctx, issueID)
}

// CanDeleteAttachment: only the original uploader or an admin may remove an
// attachment.
func CanDeleteAttachment(actor models.Actor, att *models.Attachment) bool {
	return actor.IsAdmin() || att.UploadedBy == actor.ID
}

// DeleteAttachment removes the stored file first, then the metadata row.
// A file already missing on disk is not an error.
func (s *Service) DeleteAttachment(ctx context.Context, actor models.Actor, issueID, attachmentID uuid.UUID) (*models.Issue, error) {
	issue, err := s.loadIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}

	var att models.Attachment
	err = s.DB.GetContext(ctx, &att,
		`SELECT * FROM attachments WHERE id = $1 AND issue_id = $2`, attachmentID, issue.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NewNotFound("Attachment not found", "The requested attachment does not exist")
	}
	if err != nil {
		return nil, apperr.NewInternal("Attachment deletion failed", "could not load attachment", err)
	}

	if !CanDeleteAttachment(actor, &att) {
		return nil, apperr.NewPermissionDenied("Permission denied", "Not authorized to delete this attachment")
	}

	if err := s.Files.Remove(att.FilePath); err != nil {
		return nil, apperr.NewInternal("Attachment deletion failed", "could not remove stored file", err)
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM attachments WHERE id = $1`, att.ID); err != nil {
		return nil, apperr.NewInternal("Attachment deletion failed", "could not delete attachment", err)
	}

	s.publishIssueEvent(&events.IssueEvent{
		Action:    events.IssueAttachmentRemoved,
		IssueID:   issue.ID,
		ProjectID: issue.ProjectID,
		ActorID:   actor.ID,
		Timestamp: time.Now(),
	})

	return s.loadIssue(ctx, issueID)
}

// CanDeleteIssue: only the original reporter or an admin may delete an issue.
func CanDeleteIssue(actor models.Actor, issue *models.Issue) bool {
	return actor.IsAdmin() || issue.ReporterID == actor.ID
}

// DeleteIssue removes all attachment files through the store binding, then the
// issue row. Comments, subtasks, attachments and history cascade with it.
func (s *Service) DeleteIssue(ctx context.Context, actor models.Actor, issueID uuid.UUID) error {
	issue, err := s.loadIssue(ctx, issueID)
	if err != nil {
		return err
	}

	if !CanDeleteIssue(actor, issue) {
		return apperr.NewPermissionDenied("Permission denied", "Not authorized to delete this issue")
	}

	for _, att := range issue.Attachments {
		if err := s.Files.Remove(att.FilePath); err != nil {
			return apperr.NewInternal("Issue deletion failed", "could not remove attachment file", err)
		}
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM issues WHERE id = $1`, issue.ID); err != nil {
		return apperr.NewInternal("Issue deletion failed", "could not delete issue", err)
	}

	s.publishIssueEvent(&events.IssueEvent{
		Action:    events.IssueDeleted,
		IssueID:   issue.ID,
		ProjectID: issue.ProjectID,
		ActorID:   actor.ID,
		Timestamp: time.Now(),
	})

	return nil
}
