// Package fileops performs the mutating filesystem operations: folder
// creation, uploads, renames, deletes. Every target path is resolved
// through fsutil first; nothing here can act outside the storage root.
package fileops

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"filehaven/internal/fsutil"
)

var (
	// ErrNotFound means the target did not exist at operation time.
	ErrNotFound = errors.New("item not found")
	// ErrNameConflict means the rename target already exists.
	ErrNameConflict = errors.New("an item with that name already exists")
	// ErrUnsupportedType means an upload's extension is not allowlisted.
	ErrUnsupportedType = errors.New("file type not supported")
	// ErrBusy means the OS reported a folder as in use during rename.
	ErrBusy = errors.New("folder is in use")
)

// Service mutates files under a fixed storage root. It carries no state
// beyond configuration; the filesystem is the single source of truth and
// concurrent operations race at the OS level (accepted, see DESIGN.md).
type Service struct {
	root     string // abs
	allowed  map[string]struct{}
	maxBytes int64
}

func New(rootAbs string, allowedExts []string, maxBytes int64) *Service {
	allowed := make(map[string]struct{}, len(allowedExts))
	for _, e := range allowedExts {
		allowed[strings.ToLower(strings.TrimPrefix(e, "."))] = struct{}{}
	}
	return &Service{root: rootAbs, allowed: allowed, maxBytes: maxBytes}
}

func (s *Service) Root() string    { return s.root }
func (s *Service) MaxBytes() int64 { return s.maxBytes }

// ExtAllowed reports whether a filename's extension is in the allowlist.
// Files without an extension are never allowed.
func (s *Service) ExtAllowed(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return false
	}
	_, ok := s.allowed[ext]
	return ok
}

// Resolve maps a relative path to an absolute one inside the root.
func (s *Service) Resolve(rel string) (string, error) {
	return fsutil.JoinWithinRoot(s.root, rel)
}

// CreateFolder makes a new directory under dirRel. Creating a folder that
// already exists is a no-op, not an error. Returns the sanitized name.
func (s *Service) CreateFolder(dirRel, name string) (string, error) {
	clean, err := fsutil.SanitizeName(name)
	if err != nil {
		return "", err
	}
	dirAbs, err := s.Resolve(dirRel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Join(dirAbs, clean), 0o755); err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}
	return clean, nil
}

// SaveUploads writes a batch of multipart files into dirRel, overwriting
// existing files of the same name. One rejected file does not abort the
// batch: the returned slice carries per-file failures (wrapping
// ErrUnsupportedType or the underlying I/O error) and saved counts the
// files that landed.
func (s *Service) SaveUploads(dirRel string, files []*multipart.FileHeader) (saved int, failures []error) {
	dirAbs, err := s.Resolve(dirRel)
	if err != nil {
		return 0, []error{err}
	}
	if err := fsutil.EnsureDir(dirAbs); err != nil {
		return 0, []error{fmt.Errorf("create upload dir: %w", err)}
	}
	for _, fh := range files {
		if fh.Filename == "" {
			continue
		}
		if !s.ExtAllowed(fh.Filename) {
			failures = append(failures, fmt.Errorf("%s: %w", fh.Filename, ErrUnsupportedType))
			continue
		}
		name, err := fsutil.SanitizeName(fh.Filename)
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", fh.Filename, err))
			continue
		}
		if err := s.saveOne(dirAbs, name, fh); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", name, err))
			continue
		}
		saved++
	}
	return saved, failures
}

// saveOne spools the upload to a hidden part file in the destination
// directory, then renames it into place. The rename overwrites any
// existing file atomically within the same filesystem.
func (s *Service) saveOne(dirAbs, name string, fh *multipart.FileHeader) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	part := filepath.Join(dirAbs, "."+uuid.NewString()+".part")
	dst, err := os.OpenFile(part, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(part)
		return err
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(part)
		return err
	}
	if err := os.Rename(part, filepath.Join(dirAbs, name)); err != nil {
		_ = os.Remove(part)
		return err
	}
	return nil
}

// Rename moves itemRel to a new name within its parent directory. For
// files whose old name carried an extension, the extension is appended
// when the new name contains no dot at all (literal rule: internal dots
// count as "has an extension"). Fails with ErrNameConflict when the
// target exists; the conflict check runs after sanitization and before
// the move. Returns the parent rel path for redirecting.
func (s *Service) Rename(itemRel, newName string) (string, error) {
	itemRel = fsutil.CleanRelPath(itemRel)
	parentRel := fsutil.ParentRel(itemRel)
	oldAbs, err := s.Resolve(itemRel)
	if err != nil {
		return parentRel, err
	}
	if oldAbs == filepath.Clean(s.root) {
		// the root itself is never renamed
		return parentRel, ErrNotFound
	}
	st, err := os.Stat(oldAbs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return parentRel, ErrNotFound
		}
		return parentRel, fmt.Errorf("stat: %w", err)
	}

	newName = strings.TrimSpace(newName)
	if !st.IsDir() && !strings.Contains(newName, ".") {
		if ext := realExt(filepath.Base(oldAbs)); ext != "" {
			newName += ext
		}
	}
	clean, err := fsutil.SanitizeName(newName)
	if err != nil {
		return parentRel, err
	}

	newAbs := filepath.Join(filepath.Dir(oldAbs), clean)
	if _, err := os.Stat(newAbs); err == nil {
		return parentRel, ErrNameConflict
	}
	if err := os.Rename(oldAbs, newAbs); err != nil {
		if st.IsDir() && isBusy(err) {
			return parentRel, fmt.Errorf("rename folder: %w", ErrBusy)
		}
		return parentRel, fmt.Errorf("rename: %w", err)
	}
	return parentRel, nil
}

// Delete removes a file, or a folder and everything under it. Returns the
// parent rel path for redirecting.
func (s *Service) Delete(itemRel string) (string, error) {
	itemRel = fsutil.CleanRelPath(itemRel)
	parentRel := fsutil.ParentRel(itemRel)
	abs, err := s.Resolve(itemRel)
	if err != nil {
		return parentRel, err
	}
	if abs == filepath.Clean(s.root) {
		// the root itself is never deleted
		return parentRel, ErrNotFound
	}
	st, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return parentRel, ErrNotFound
		}
		return parentRel, fmt.Errorf("stat: %w", err)
	}
	if st.IsDir() {
		err = os.RemoveAll(abs)
	} else {
		err = os.Remove(abs)
	}
	if err != nil {
		return parentRel, fmt.Errorf("delete: %w", err)
	}
	return parentRel, nil
}

// realExt is the extension of a base name with leading dots ignored, so a
// dotfile like ".bashrc" has no extension rather than being all extension.
func realExt(base string) string {
	return filepath.Ext(strings.TrimLeft(base, "."))
}

func isBusy(err error) bool {
	return errors.Is(err, syscall.EBUSY) || errors.Is(err, syscall.ETXTBSY)
}
