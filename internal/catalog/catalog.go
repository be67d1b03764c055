// Package catalog derives per-request views of a directory: its immediate
// children classified for display, and the breadcrumb trail leading to it.
// Nothing here is cached; every call reads the live filesystem.
package catalog

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"filehaven/internal/fsutil"
)

// File display categories, derived from the lowercase extension.
const (
	CategoryImage    = "image"
	CategoryDocument = "document"
	CategoryArchive  = "archive"
	CategoryVideo    = "video"
	CategoryAudio    = "audio"
	CategoryOther    = "other"
)

var categoryByExt = map[string]string{
	"png": CategoryImage, "jpg": CategoryImage, "jpeg": CategoryImage,
	"gif": CategoryImage, "bmp": CategoryImage,
	"txt": CategoryDocument, "pdf": CategoryDocument,
	"doc": CategoryDocument, "docx": CategoryDocument,
	"xls": CategoryDocument, "xlsx": CategoryDocument,
	"ppt": CategoryDocument, "pptx": CategoryDocument,
	"zip": CategoryArchive, "rar": CategoryArchive,
	"mp4": CategoryVideo,
	"mp3": CategoryAudio,
}

// CategoryForName classifies a filename by its extension.
func CategoryForName(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if c, ok := categoryByExt[ext]; ok {
		return c
	}
	return CategoryOther
}

// Entry is one child of a listed directory. Size and Category apply to
// files, ChildCount to folders.
type Entry struct {
	Name       string `json:"name"`
	Path       string `json:"path"` // rel
	IsDir      bool   `json:"isDir"`
	Size       int64  `json:"size"`
	ChildCount int    `json:"childCount"`
	Category   string `json:"category,omitempty"`
	Mtime      int64  `json:"mtime"`
}

// List returns the immediate children of absDir sorted folders-first, then
// case-insensitive by name. A missing directory is created rather than
// reported (first visit to a path materializes the folder). Per-child stat
// failures degrade to zero size/count; only a wholly unreadable directory
// returns an error, and even then the entries slice is usable (empty).
func List(absDir, rel string) ([]Entry, error) {
	if err := fsutil.EnsureDir(absDir); err != nil {
		return []Entry{}, err
	}
	ents, err := os.ReadDir(absDir)
	if err != nil {
		return []Entry{}, err
	}
	items := make([]Entry, 0, len(ents))
	for _, e := range ents {
		name := e.Name()
		it := Entry{
			Name:  name,
			Path:  joinRel(rel, name),
			IsDir: e.IsDir(),
		}
		if info, err := e.Info(); err == nil {
			it.Mtime = info.ModTime().Unix()
			if !it.IsDir {
				it.Size = info.Size()
			}
		}
		if it.IsDir {
			if children, err := os.ReadDir(filepath.Join(absDir, name)); err == nil {
				it.ChildCount = len(children)
			}
		} else {
			it.Category = CategoryForName(name)
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].IsDir != items[j].IsDir {
			return items[i].IsDir
		}
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
	return items, nil
}

// Crumb is one segment of the breadcrumb trail.
type Crumb struct {
	Name string `json:"name"`
	Path string `json:"path"` // cumulative rel path
}

// Breadcrumbs decomposes rel into navigable segments, always starting with
// a synthetic "Home" root. Empty segments from doubled or stray slashes are
// skipped; repeated names stay distinct because each crumb carries its own
// cumulative path.
func Breadcrumbs(rel string) []Crumb {
	crumbs := []Crumb{{Name: "Home", Path: ""}}
	cur := ""
	for _, part := range strings.Split(rel, "/") {
		if part == "" {
			continue
		}
		cur = joinRel(cur, part)
		crumbs = append(crumbs, Crumb{Name: part, Path: cur})
	}
	return crumbs
}

func joinRel(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}
