package auth

import (
	"encoding/gob"
	"net/http"

	"github.com/gorilla/sessions"
)

const sessionName = "filehaven"

// Flash is a one-shot notice shown on the next rendered page.
// Kind is one of "success", "error", "info", "delete".
type Flash struct {
	Kind    string
	Message string
}

func init() {
	gob.Register(Flash{})
}

// Sessions holds the cookie store. Session state is request-scoped: the
// only durable facts are the logged-in username and pending flashes.
type Sessions struct {
	store *sessions.CookieStore
}

func NewSessions(secret []byte) *Sessions {
	st := sessions.NewCookieStore(secret)
	st.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &Sessions{store: st}
}

// User returns the logged-in username, or "" for anonymous requests.
func (s *Sessions) User(r *http.Request) string {
	sess, err := s.store.Get(r, sessionName)
	if err != nil {
		return ""
	}
	u, _ := sess.Values["username"].(string)
	return u
}

func (s *Sessions) Login(w http.ResponseWriter, r *http.Request, username string) error {
	sess, _ := s.store.Get(r, sessionName)
	sess.Values["username"] = username
	return sess.Save(r, w)
}

func (s *Sessions) Logout(w http.ResponseWriter, r *http.Request) error {
	sess, _ := s.store.Get(r, sessionName)
	delete(sess.Values, "username")
	return sess.Save(r, w)
}

// AddFlash queues a notice for the next page render.
func (s *Sessions) AddFlash(w http.ResponseWriter, r *http.Request, kind, message string) {
	sess, _ := s.store.Get(r, sessionName)
	sess.AddFlash(Flash{Kind: kind, Message: message})
	_ = sess.Save(r, w)
}

// Flashes drains and returns all queued notices.
func (s *Sessions) Flashes(w http.ResponseWriter, r *http.Request) []Flash {
	sess, err := s.store.Get(r, sessionName)
	if err != nil {
		return nil
	}
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	_ = sess.Save(r, w)
	out := make([]Flash, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(Flash); ok {
			out = append(out, f)
		}
	}
	return out
}
