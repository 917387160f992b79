package storage

import (
	"bytes"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackline/trackline/pkg/apperr"
)

func header(name, contentType string, size int64) *multipart.FileHeader {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	return &multipart.FileHeader{Filename: name, Header: h, Size: size}
}

func TestIssueAttachmentPolicy(t *testing.T) {
	p := IssueAttachmentPolicy()

	assert.NoError(t, p.Validate(header("report.pdf", "application/pdf", 1024)))
	assert.NoError(t, p.Validate(header("shot.png", "image/png", 1024)))

	err := p.Validate(header("huge.pdf", "application/pdf", 11*1024*1024))
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))

	err = p.Validate(header("malware.exe", "application/octet-stream", 1024))
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
}

func TestProjectAvatarPolicy(t *testing.T) {
	p := ProjectAvatarPolicy()

	assert.NoError(t, p.Validate(header("logo.png", "image/png", 1024)))
	assert.NoError(t, p.Validate(header("logo.JPG", "image/jpeg", 1024)))

	// Avatars are checked by extension, not MIME type.
	err := p.Validate(header("logo.gif", "image/gif", 1024))
	require.Error(t, err)

	err = p.Validate(header("big.png", "image/png", 3*1024*1024))
	require.Error(t, err)
}

// buildFileHeader produces an openable header by round-tripping a real
// multipart body.
func buildFileHeader(t *testing.T, name, contentType string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	form, err := multipart.NewReader(&buf, mw.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	files := form.File["file"]
	require.Len(t, files, 1)
	return files[0]
}

func TestDiskStoreSaveAndRemove(t *testing.T) {
	store := NewDiskStore(t.TempDir())
	fh := buildFileHeader(t, "notes.pdf", "application/pdf", []byte("pdf-bytes"))

	saved, err := store.Save(IssueAttachmentPolicy(), "issues", fh)
	require.NoError(t, err)
	assert.Equal(t, "notes.pdf", saved.FileName)
	assert.Equal(t, "application/pdf", saved.FileType)
	assert.Equal(t, int64(len("pdf-bytes")), saved.FileSize)
	assert.Equal(t, ".pdf", filepath.Ext(saved.FilePath))

	data, err := os.ReadFile(saved.FilePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf-bytes"), data)

	require.NoError(t, store.Remove(saved.FilePath))
	_, err = os.Stat(saved.FilePath)
	assert.True(t, os.IsNotExist(err))

	// Removing an already-missing file is not an error.
	assert.NoError(t, store.Remove(saved.FilePath))
}

func TestDiskStoreSaveRejectsPolicyViolations(t *testing.T) {
	dir := t.TempDir()
	store := NewDiskStore(dir)
	fh := buildFileHeader(t, "script.sh", "text/x-shellscript", []byte("#!/bin/sh"))

	_, err := store.Save(IssueAttachmentPolicy(), "issues", fh)
	require.Error(t, err)

	// Nothing should have been written.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
