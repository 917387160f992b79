package storage

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/trackline/trackline/pkg/apperr"
)

// Policy configures one upload surface. Issue attachments are checked by MIME
// type, project avatars by file extension; the two surfaces carry separate
// policies.
type Policy struct {
	MaxSize      int64
	AllowedMIME  []string // checked when non-empty
	AllowedExts  []string // checked when non-empty, lowercase with dot
	RejectedType string   // error_type label for a rejected file
}

// IssueAttachmentPolicy: 10MB, images, PDFs and Office documents.
func IssueAttachmentPolicy() Policy {
	return Policy{
		MaxSize: 10 * 1024 * 1024,
		AllowedMIME: []string{
			"image/jpeg",
			"image/png",
			"application/pdf",
			"application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/vnd.ms-excel",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		},
		RejectedType: "File upload failed",
	}
}

// ProjectAvatarPolicy: 2MB, image files by extension.
func ProjectAvatarPolicy() Policy {
	return Policy{
		MaxSize:      2 * 1024 * 1024,
		AllowedExts:  []string{".jpg", ".jpeg", ".png"},
		RejectedType: "File upload failed",
	}
}

// Validate checks a multipart file header against the policy.
func (p Policy) Validate(fh *multipart.FileHeader) error {
	if fh.Size > p.MaxSize {
		return apperr.NewInvalidInput(p.RejectedType,
			fmt.Sprintf("File exceeds the %dMB size limit", p.MaxSize/(1024*1024)))
	}
	if len(p.AllowedMIME) > 0 {
		ct := fh.Header.Get("Content-Type")
		ok := false
		for _, m := range p.AllowedMIME {
			if ct == m {
				ok = true
				break
			}
		}
		if !ok {
			return apperr.NewInvalidInput(p.RejectedType,
				"Invalid file type. Only images, PDFs, and Office documents are allowed.")
		}
	}
	if len(p.AllowedExts) > 0 {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		ok := false
		for _, e := range p.AllowedExts {
			if ext == e {
				ok = true
				break
			}
		}
		if !ok {
			return apperr.NewInvalidInput(p.RejectedType,
				"Only image files (jpg, jpeg, png) are allowed")
		}
	}
	return nil
}

// SavedFile is the metadata the store hands back for persistence.
type SavedFile struct {
	FileName string // original client file name
	FilePath string // stored path
	FileType string // MIME type as sent by the client
	FileSize int64
}

// Store persists and removes binary payloads. The lifecycle engines only
// track metadata and call Remove on delete.
type Store interface {
	Save(policy Policy, subdir string, fh *multipart.FileHeader) (SavedFile, error)
	// Remove deletes the stored file. A missing file is not an error.
	Remove(path string) error
}

// DiskStore writes uploads under Root, one subdirectory per surface.
type DiskStore struct {
	Root string
}

func NewDiskStore(root string) *DiskStore {
	return &DiskStore{Root: root}
}

func (s *DiskStore) Save(policy Policy, subdir string, fh *multipart.FileHeader) (SavedFile, error) {
	if err := policy.Validate(fh); err != nil {
		return SavedFile{}, err
	}

	dir := filepath.Join(s.Root, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return SavedFile{}, apperr.NewInternal("File upload failed", "could not create upload directory", err)
	}

	name := fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString(), filepath.Ext(fh.Filename))
	dst := filepath.Join(dir, name)

	src, err := fh.Open()
	if err != nil {
		return SavedFile{}, apperr.NewInternal("File upload failed", "could not read uploaded file", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return SavedFile{}, apperr.NewInternal("File upload failed", "could not store uploaded file", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		os.Remove(dst)
		return SavedFile{}, apperr.NewInternal("File upload failed", "could not store uploaded file", err)
	}

	return SavedFile{
		FileName: fh.Filename,
		FilePath: dst,
		FileType: fh.Header.Get("Content-Type"),
		FileSize: fh.Size,
	}, nil
}

func (s *DiskStore) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stored file: %w", err)
	}
	return nil
}
