package session

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/repository/memory"
)

var (
	testHashKey  = []byte("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	testBlockKey = []byte("0123456789abcdef0123456789abcdef")
)

func newTestManager(t *testing.T) (*Manager, *memory.Store) {
	t.Helper()
	repo := memory.New()
	store := NewStore(repo, testHashKey, testBlockKey, sessions.Options{
		Path:     "/",
		MaxAge:   3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(store, logger), repo
}

// serve runs one request through the middleware and returns the response.
func serve(m *Manager, cookies []*http.Cookie, fn func(w http.ResponseWriter, r *http.Request)) *http.Response {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	m.Middleware(http.HandlerFunc(fn)).ServeHTTP(rr, req)
	return rr.Result()
}

func TestFromContext_AnonymousByDefault(t *testing.T) {
	st := FromContext(context.Background())
	assert.False(t, st.Authenticated())
	assert.Equal(t, model.SortRecency, st.Sort())
}

func TestSaveAndReload(t *testing.T) {
	m, _ := newTestManager(t)

	first := serve(m, nil, func(w http.ResponseWriter, r *http.Request) {
		st := FromContext(r.Context())
		assert.False(t, st.Authenticated())
		st.Login("user-1")
		st.SortMode = model.SortLikes
		require.NoError(t, m.Save(w, r, st))
	})
	cookies := first.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	serve(m, cookies, func(w http.ResponseWriter, r *http.Request) {
		st := FromContext(r.Context())
		assert.True(t, st.Authenticated())
		assert.Equal(t, "user-1", st.UserID)
		assert.Equal(t, model.SortLikes, st.Sort())
	})
}

func TestLoginMovesSessionToNewID(t *testing.T) {
	m, _ := newTestManager(t)

	// An anonymous session, as a visitor (or someone planting a cookie) would
	// hold before logging in.
	before := serve(m, nil, func(w http.ResponseWriter, r *http.Request) {
		st := FromContext(r.Context())
		st.SortMode = model.SortLikes
		require.NoError(t, m.Save(w, r, st))
	}).Cookies()
	require.Len(t, before, 1)

	after := serve(m, before, func(w http.ResponseWriter, r *http.Request) {
		st := FromContext(r.Context())
		st.Login("user-1")
		require.NoError(t, m.Save(w, r, st))
	}).Cookies()
	require.Len(t, after, 1)

	serve(m, before, func(w http.ResponseWriter, r *http.Request) {
		st := FromContext(r.Context())
		assert.False(t, st.Authenticated(), "pre-login cookie must not carry the login")
		assert.Equal(t, model.SortRecency, st.Sort(), "pre-login row should be gone")
	})
	serve(m, after, func(w http.ResponseWriter, r *http.Request) {
		st := FromContext(r.Context())
		assert.True(t, st.Authenticated())
		assert.Equal(t, "user-1", st.UserID)
		assert.Equal(t, model.SortLikes, st.Sort(), "values survive the move")
	})
}

func TestPendingFingerprintClearedOnLogin(t *testing.T) {
	m, _ := newTestManager(t)

	first := serve(m, nil, func(w http.ResponseWriter, r *http.Request) {
		st := FromContext(r.Context())
		st.PendingFingerprint = "1234"
		require.NoError(t, m.Save(w, r, st))
	})

	serve(m, first.Cookies(), func(w http.ResponseWriter, r *http.Request) {
		st := FromContext(r.Context())
		assert.Equal(t, "1234", st.PendingFingerprint)
		assert.False(t, st.Authenticated())
		st.Login("user-2")
		assert.Empty(t, st.PendingFingerprint)
	})
}

func TestDestroy(t *testing.T) {
	m, repo := newTestManager(t)

	first := serve(m, nil, func(w http.ResponseWriter, r *http.Request) {
		st := FromContext(r.Context())
		st.Login("user-1")
		require.NoError(t, m.Save(w, r, st))
	})
	cookies := first.Cookies()

	destroyed := serve(m, cookies, func(w http.ResponseWriter, r *http.Request) {
		st := FromContext(r.Context())
		require.NoError(t, m.Destroy(w, r, st))
		assert.False(t, st.Authenticated())
	})
	expired := destroyed.Cookies()
	require.Len(t, expired, 1)
	assert.True(t, expired[0].MaxAge < 0)

	n, err := repo.DeleteExpiredSessions(context.Background(), time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n, "destroyed session row should already be gone")

	// Replaying the old cookie finds nothing.
	serve(m, cookies, func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, FromContext(r.Context()).Authenticated())
	})
}

func TestTamperedCookieStartsFresh(t *testing.T) {
	m, _ := newTestManager(t)

	forged := &http.Cookie{Name: CookieName, Value: "not-a-valid-cookie"}
	serve(m, []*http.Cookie{forged}, func(w http.ResponseWriter, r *http.Request) {
		st := FromContext(r.Context())
		assert.False(t, st.Authenticated())
		st.Login("user-3")
		assert.NoError(t, m.Save(w, r, st))
	})
}
