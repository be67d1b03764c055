package fileops

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filehaven/internal/catalog"
	"filehaven/internal/fsutil"
)

func newService(t *testing.T) *Service {
	t.Helper()
	return New(t.TempDir(), []string{"txt", "pdf", "png", "mp4"}, 16<<20)
}

// multipartFiles builds real multipart.FileHeaders the way a handler
// would receive them.
func multipartFiles(t *testing.T, files map[string]string) []*multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/files/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(32<<20))
	return req.MultipartForm.File["files"]
}

func TestCreateFolderIdempotent(t *testing.T) {
	s := newService(t)

	name, err := s.CreateFolder("", "My Docs")
	require.NoError(t, err)
	assert.Equal(t, "My_Docs", name)

	st, err := os.Stat(filepath.Join(s.Root(), "My_Docs"))
	require.NoError(t, err)
	assert.True(t, st.IsDir())

	// same name again is a no-op, not an error
	_, err = s.CreateFolder("", "My Docs")
	assert.NoError(t, err)

	_, err = s.CreateFolder("", "   ")
	assert.ErrorIs(t, err, fsutil.ErrInvalidName)
}

func TestSaveUploadsBatch(t *testing.T) {
	s := newService(t)

	files := multipartFiles(t, map[string]string{
		"notes.txt":  "hello",
		"evil.exe":   "nope",
		"report.pdf": "pdf bytes",
	})
	saved, failures := s.SaveUploads("inbox", files)
	assert.Equal(t, 2, saved)
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], ErrUnsupportedType)

	b, err := os.ReadFile(filepath.Join(s.Root(), "inbox", "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	// the rejected file never touched the directory
	_, err = os.Stat(filepath.Join(s.Root(), "inbox", "evil.exe"))
	assert.True(t, os.IsNotExist(err))

	// no part files left behind
	items, err := catalog.List(filepath.Join(s.Root(), "inbox"), "inbox")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestSaveUploadsOverwrites(t *testing.T) {
	s := newService(t)

	_, failures := s.SaveUploads("", multipartFiles(t, map[string]string{"a.txt": "v1"}))
	require.Empty(t, failures)
	_, failures = s.SaveUploads("", multipartFiles(t, map[string]string{"a.txt": "v2 longer"}))
	require.Empty(t, failures)

	b, err := os.ReadFile(filepath.Join(s.Root(), "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v2 longer", string(b))
}

func TestRenamePreservesExtension(t *testing.T) {
	s := newService(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "old.txt"), []byte("x"), 0o644))

	parent, err := s.Rename("old.txt", "renamed")
	require.NoError(t, err)
	assert.Equal(t, "", parent)

	_, err = os.Stat(filepath.Join(s.Root(), "renamed.txt"))
	assert.NoError(t, err)

	// a dot anywhere in the new name suppresses the append (literal rule)
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "b.txt"), []byte("x"), 0o644))
	_, err = s.Rename("b.txt", "v2.final")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(s.Root(), "v2.final"))
	assert.NoError(t, err)
}

func TestRenameConflictLeavesBothIntact(t *testing.T) {
	s := newService(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "b.txt"), []byte("b"), 0o644))

	_, err := s.Rename("a.txt", "b.txt")
	assert.ErrorIs(t, err, ErrNameConflict)

	for name, want := range map[string]string{"a.txt": "a", "b.txt": "b"} {
		b, err := os.ReadFile(filepath.Join(s.Root(), name))
		require.NoError(t, err)
		assert.Equal(t, want, string(b))
	}
}

func TestRenameMissing(t *testing.T) {
	s := newService(t)
	parent, err := s.Rename("sub/ghost.txt", "x")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "sub", parent)
}

func TestDeleteRecursive(t *testing.T) {
	s := newService(t)
	nested := filepath.Join(s.Root(), "top", "mid")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "deep.txt"), []byte("x"), 0o644))

	parent, err := s.Delete("top")
	require.NoError(t, err)
	assert.Equal(t, "", parent)

	_, err = os.Stat(filepath.Join(s.Root(), "top"))
	assert.True(t, os.IsNotExist(err))

	// listing the vanished path degrades to recreating it empty
	abs, err := s.Resolve("top")
	require.NoError(t, err)
	items, err := catalog.List(abs, "top")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRenameRootRefused(t *testing.T) {
	s := newService(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "keep.txt"), []byte("keep"), 0o644))

	// the storage root itself is never renamed, whatever spelling arrives
	for _, p := range []string{"", "/", "."} {
		_, err := s.Rename(p, "hijacked")
		assert.ErrorIs(t, err, ErrNotFound, "input %q", p)
	}

	// root still in place with its contents, no sibling created
	b, err := os.ReadFile(filepath.Join(s.Root(), "keep.txt"))
	require.NoError(t, err)
	assert.Equal(t, "keep", string(b))
	_, err = os.Stat(filepath.Join(filepath.Dir(s.Root()), "hijacked"))
	assert.True(t, os.IsNotExist(err))
}

func TestRenameDotfileAddsNoExtension(t *testing.T) {
	s := newService(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), ".bashrc"), []byte("x"), 0o644))

	// a leading-dot name with no other dot carries no extension to preserve
	_, err := s.Rename(".bashrc", "profile")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(s.Root(), "profile"))
	assert.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), ".notes.txt"), []byte("x"), 0o644))
	_, err = s.Rename(".notes.txt", "journal")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(s.Root(), "journal.txt"))
	assert.NoError(t, err)
}

func TestDeleteMissingAndRoot(t *testing.T) {
	s := newService(t)

	_, err := s.Delete("nope.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	// the storage root itself is never deleted
	_, err = s.Delete("")
	assert.ErrorIs(t, err, ErrNotFound)
	_, serr := os.Stat(s.Root())
	assert.NoError(t, serr)
}

func TestOperationsRejectTraversal(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "root")
	require.NoError(t, os.Mkdir(root, 0o755))
	s := New(root, []string{"txt"}, 16<<20)

	outside := filepath.Join(base, "victim.txt")
	require.NoError(t, os.WriteFile(outside, []byte("keep"), 0o644))

	// traversal segments are swallowed by cleaning, so the delete targets
	// a (missing) in-root path, never the real outside file
	_, err := s.Delete("../victim.txt")
	assert.ErrorIs(t, err, ErrNotFound)
	b, rerr := os.ReadFile(outside)
	require.NoError(t, rerr)
	assert.Equal(t, "keep", string(b))
}
