package auth

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func provider(t *testing.T) StaticProvider {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return StaticProvider{Username: "alice", Bcrypt: string(h)}
}

func TestStaticProviderVerify(t *testing.T) {
	p := provider(t)
	assert.True(t, p.Verify("alice", "s3cret"))
	assert.False(t, p.Verify("alice", "wrong"))
	assert.False(t, p.Verify("bob", "s3cret"))
	assert.False(t, p.Verify("", ""))
}

func TestRequireBasic(t *testing.T) {
	p := provider(t)
	h := RequireBasic(p, "test", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	// no credentials
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dav/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	// valid credentials
	req := httptest.NewRequest(http.MethodGet, "/dav/", nil)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("alice:s3cret")))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// malformed header
	req = httptest.NewRequest(http.MethodGet, "/dav/", nil)
	req.Header.Set("Authorization", "Basic not-base64!!!")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionsLoginFlashRoundTrip(t *testing.T) {
	s := NewSessions([]byte("0123456789abcdef0123456789abcdef"))

	// login sets a cookie carrying the username
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	require.NoError(t, s.Login(rec, req, "alice"))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	next := httptest.NewRequest(http.MethodGet, "/files/", nil)
	for _, c := range cookies {
		next.AddCookie(c)
	}
	assert.Equal(t, "alice", s.User(next))

	// flashes drain on read
	rec = httptest.NewRecorder()
	s.AddFlash(rec, next, "success", "done")
	flashed := httptest.NewRequest(http.MethodGet, "/files/", nil)
	for _, c := range rec.Result().Cookies() {
		flashed.AddCookie(c)
	}
	got := s.Flashes(httptest.NewRecorder(), flashed)
	require.Len(t, got, 1)
	assert.Equal(t, Flash{Kind: "success", Message: "done"}, got[0])
}
