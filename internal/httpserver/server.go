package httpserver

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/webdav"

	"filehaven/internal/auth"
	"filehaven/internal/catalog"
	"filehaven/internal/config"
	"filehaven/internal/fileops"
	"filehaven/internal/fsutil"
)

type Options struct {
	Config   config.Config
	Provider auth.Provider
	Sessions *auth.Sessions
	Log      *zap.Logger
}

type Server struct {
	cfg      config.Config
	provider auth.Provider
	sessions *auth.Sessions
	ops      *fileops.Service
	log      *zap.Logger
	tmpl     *template.Template
}

//go:embed web/*.html
var embeddedWeb embed.FS

func New(opts Options) (*Server, error) {
	tmpl, err := template.ParseFS(embeddedWeb, "web/*.html")
	if err != nil {
		return nil, err
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		cfg:      opts.Config,
		provider: opts.Provider,
		sessions: opts.Sessions,
		ops:      fileops.New(opts.Config.Root, opts.Config.AllowedExtensions, opts.Config.MaxUploadBytes),
		log:      log,
		tmpl:     tmpl,
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// health
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if s.sessions.User(r) != "" {
			http.Redirect(w, r, "/files/", http.StatusFound)
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	})

	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	mux.Handle("/files", http.RedirectHandler("/files/", http.StatusMovedPermanently))
	mux.Handle("/files/", s.requireUser(http.HandlerFunc(s.handleFiles)))
	mux.Handle("/preview/", s.requireUser(http.HandlerFunc(s.handlePreview)))
	mux.Handle("/download/", s.requireUser(http.HandlerFunc(s.handleDownload)))
	mux.Handle("/stream/", s.requireUser(http.HandlerFunc(s.handleStream)))
	mux.Handle("/delete_item/", s.requireUser(http.HandlerFunc(s.handleDelete)))
	mux.Handle("/rename_item", s.requireUser(http.HandlerFunc(s.handleRename)))

	// thumbnails
	mux.Handle("/thumb", s.requireUser(http.HandlerFunc(s.handleThumb)))

	// WebDAV over the same root. DAV clients cannot hold cookie sessions,
	// so this endpoint uses BasicAuth against the same credential pair.
	dav := &webdav.Handler{
		Prefix:     "/dav",
		FileSystem: webdav.Dir(s.cfg.Root),
		LockSystem: webdav.NewMemLS(),
	}
	mux.Handle("/dav/", auth.RequireBasic(s.provider, "filehaven", dav))

	return mux
}

// requireUser redirects anonymous browser requests to the login form.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.sessions.User(r) == "" {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- auth handlers ---

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, "login.html", map[string]any{
			"Flashes": s.sessions.Flashes(w, r),
		})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		username := strings.TrimSpace(r.FormValue("username"))
		password := strings.TrimSpace(r.FormValue("password"))
		if username == "" || password == "" {
			s.flashRedirect(w, r, "error", "Please enter both username and password!", "/login")
			return
		}
		if !s.provider.Verify(username, password) {
			s.log.Info("login rejected", zap.String("username", username))
			s.flashRedirect(w, r, "error", "Wrong username or password!", "/login")
			return
		}
		if err := s.sessions.Login(w, r, username); err != nil {
			s.log.Error("session save failed", zap.Error(err))
			http.Error(w, "session failed", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/files/", http.StatusFound)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	_ = s.sessions.Logout(w, r)
	s.flashRedirect(w, r, "success", "You have been logged out successfully!", "/login")
}

// --- listing + mutations ---

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	rel := fsutil.CleanRelPath(strings.TrimPrefix(r.URL.Path, "/files/"))
	abs, err := s.ops.Resolve(rel)
	if err != nil {
		s.log.Warn("path rejected", zap.Error(err))
		s.flashRedirect(w, r, "error", "Invalid path!", "/files/")
		return
	}

	if r.Method == http.MethodPost {
		s.handleFilesPost(w, r, rel)
		return
	}

	items, err := catalog.List(abs, rel)
	if err != nil {
		s.log.Warn("listing failed", zap.String("path", rel), zap.Error(err))
		s.sessions.AddFlash(w, r, "error", "Error reading directory!")
	}
	s.render(w, r, "files.html", map[string]any{
		"Items":             items,
		"CurrentPath":       rel,
		"Breadcrumbs":       catalog.Breadcrumbs(rel),
		"Username":          s.sessions.User(r),
		"Flashes":           s.sessions.Flashes(w, r),
		"AllowedExtensions": s.cfg.AllowedExtensions,
	})
}

// handleFilesPost discriminates folder creation from uploads by which form
// fields arrived, mirroring a single form-driven page.
func (s *Server) handleFilesPost(w http.ResponseWriter, r *http.Request, rel string) {
	back := "/files/" + escapeRel(rel)

	r.Body = http.MaxBytesReader(w, r.Body, s.ops.MaxBytes())
	if err := r.ParseMultipartForm(s.ops.MaxBytes()); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.flashRedirect(w, r, "error", "Upload too large!", back)
			return
		}
		// plain form post (folder creation) is fine too
		if err := r.ParseForm(); err != nil {
			s.flashRedirect(w, r, "error", "Invalid request!", back)
			return
		}
	}

	if name := r.FormValue("new_folder_name"); name != "" || r.Form.Has("new_folder_name") {
		if _, err := s.ops.CreateFolder(rel, name); err != nil {
			if errors.Is(err, fsutil.ErrInvalidName) {
				s.flashRedirect(w, r, "error", "Please enter a valid folder name!", back)
				return
			}
			s.log.Error("create folder failed", zap.String("path", rel), zap.Error(err))
			s.flashRedirect(w, r, "error", "Error creating folder!", back)
			return
		}
		s.flashRedirect(w, r, "success", "Folder created successfully!", back)
		return
	}

	if r.MultipartForm != nil && len(r.MultipartForm.File["files"]) > 0 {
		saved, failures := s.ops.SaveUploads(rel, r.MultipartForm.File["files"])
		for _, ferr := range failures {
			if errors.Is(ferr, fileops.ErrUnsupportedType) {
				s.sessions.AddFlash(w, r, "error", "Type not supported!")
				continue
			}
			s.log.Error("upload failed", zap.String("path", rel), zap.Error(ferr))
			s.sessions.AddFlash(w, r, "error", "Error saving file!")
		}
		if saved > 0 {
			s.sessions.AddFlash(w, r, "success", "Files uploaded successfully!")
		}
		http.Redirect(w, r, back, http.StatusFound)
		return
	}

	s.flashRedirect(w, r, "error", "Nothing to do!", back)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	rel := fsutil.CleanRelPath(strings.TrimPrefix(r.URL.Path, "/delete_item/"))
	parent, err := s.ops.Delete(rel)
	back := "/files/" + escapeRel(parent)
	switch {
	case err == nil:
		s.flashRedirect(w, r, "delete", "Item deleted successfully!", back)
	case errors.Is(err, fileops.ErrNotFound):
		s.flashRedirect(w, r, "error", "Item not found!", back)
	default:
		s.log.Error("delete failed", zap.String("path", rel), zap.Error(err))
		s.flashRedirect(w, r, "error", "Error deleting item!", back)
	}
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	itemPath := r.FormValue("item_path")
	newName := strings.TrimSpace(r.FormValue("new_name"))
	if itemPath == "" || newName == "" {
		s.flashRedirect(w, r, "error", "Please provide both item path and new name!", "/files/")
		return
	}
	parent, err := s.ops.Rename(itemPath, newName)
	back := "/files/" + escapeRel(parent)
	switch {
	case err == nil:
		s.flashRedirect(w, r, "success", "Item renamed successfully!", back)
	case errors.Is(err, fileops.ErrNotFound):
		s.flashRedirect(w, r, "error", "Item not found!", back)
	case errors.Is(err, fileops.ErrNameConflict):
		s.flashRedirect(w, r, "error", "An item with that name already exists!", back)
	case errors.Is(err, fileops.ErrBusy):
		s.flashRedirect(w, r, "error", "Cannot rename folder. Close any open files/folders and try again.", back)
	case errors.Is(err, fsutil.ErrInvalidName):
		s.flashRedirect(w, r, "error", "Please enter a valid name!", back)
	default:
		s.log.Error("rename failed", zap.Error(err))
		s.flashRedirect(w, r, "error", "Error renaming item!", back)
	}
}

// --- file serving ---

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	abs, st, ok := s.regularFile(w, r, "/preview/")
	if !ok {
		return
	}
	if isTextPreviewExt(strings.ToLower(filepath.Ext(abs))) {
		// force inline rendering; never let the browser execute content
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	} else if ct := contentTypeForName(st.Name()); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	s.serveFile(w, r, abs, st)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	abs, st, ok := s.regularFile(w, r, "/download/")
	if !ok {
		return
	}
	if ct := contentTypeForName(st.Name()); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", st.Name()))
	s.serveFile(w, r, abs, st)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	abs, st, ok := s.regularFile(w, r, "/stream/")
	if !ok {
		return
	}
	if mt, ok := streamMIME[strings.ToLower(filepath.Ext(abs))]; ok {
		w.Header().Set("Content-Type", mt)
	}
	s.serveFile(w, r, abs, st)
}

// regularFile resolves the path after prefix and requires an existing
// regular file; anything else flashes "File not found!" and redirects.
func (s *Server) regularFile(w http.ResponseWriter, r *http.Request, prefix string) (string, os.FileInfo, bool) {
	rel := fsutil.CleanRelPath(strings.TrimPrefix(r.URL.Path, prefix))
	abs, err := s.ops.Resolve(rel)
	if err == nil {
		if st, serr := os.Stat(abs); serr == nil && st.Mode().IsRegular() {
			return abs, st, true
		}
	}
	s.flashRedirect(w, r, "error", "File not found!", "/files/")
	return "", nil, false
}

// serveFile streams bytes with Range support.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, abs string, st os.FileInfo) {
	f, err := os.Open(abs)
	if err != nil {
		s.log.Error("open failed", zap.Error(err))
		http.Error(w, "open failed", http.StatusInternalServerError)
		return
	}
	defer f.Close()
	http.ServeContent(w, r, st.Name(), st.ModTime(), f)
}

// --- helpers ---

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		s.log.Error("template render failed", zap.String("template", name), zap.Error(err))
	}
}

func (s *Server) flashRedirect(w http.ResponseWriter, r *http.Request, kind, msg, to string) {
	s.sessions.AddFlash(w, r, kind, msg)
	http.Redirect(w, r, to, http.StatusFound)
}

// escapeRel escapes a rel path for use in a redirect Location, keeping the
// slashes that separate segments.
func escapeRel(rel string) string {
	if rel == "" {
		return ""
	}
	parts := strings.Split(rel, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// textPreviewExts render inline as plain text regardless of their real
// type, so previewing never triggers a download or executes markup.
func isTextPreviewExt(ext string) bool {
	switch ext {
	case ".txt", ".md", ".py", ".js", ".html", ".css", ".json", ".xml":
		return true
	default:
		return false
	}
}

// streamMIME is the fixed table for the streaming endpoint. Extensions
// outside it get no explicit type.
var streamMIME = map[string]string{
	".mp4":  "video/mp4",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".m4v":  "video/x-m4v",
}

func contentTypeForName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ""
	}
	switch ext {
	// images
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	// video
	case ".mp4":
		return "video/mp4"
	// audio
	case ".mp3":
		return "audio/mpeg"
	// docs
	case ".pdf":
		return "application/pdf"
	case ".doc", ".docx":
		return "application/msword"
	case ".xls", ".xlsx":
		return "application/vnd.ms-excel"
	case ".ppt", ".pptx":
		return "application/vnd.ms-powerpoint"
	// archives
	case ".zip":
		return "application/zip"
	case ".rar":
		return "application/vnd.rar"
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		return ""
	}
}
