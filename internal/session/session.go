package session

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/sakif/microblog/internal/model"
)

// CookieName names the session cookie.
const CookieName = "microblog_session"

const (
	keyLoggedIn           = "loggedIn"
	keyUserID             = "userId"
	keyPendingFingerprint = "pendingFingerprint"
	keySortMode           = "sortMode"
	keyOAuthNonce         = "oauthNonce"
)

// State is the typed view of one visitor's session. Handlers read and change
// it, then call Manager.Save; nothing else in the process holds it.
type State struct {
	LoggedIn           bool
	UserID             string
	PendingFingerprint string // set between the OAuth callback and username registration
	SortMode           model.SortMode
	OAuthNonce         string // binds an in-flight OAuth state token to this session

	raw    *sessions.Session
	rotate bool
}

// Authenticated reports whether the visitor is logged in.
func (st *State) Authenticated() bool {
	return st.LoggedIn && st.UserID != ""
}

// Login marks the session as belonging to userID and clears any pending
// registration. The next Save moves the session to a new id, so an id
// planted before login is worthless afterwards.
func (st *State) Login(userID string) {
	st.rotate = true
	st.LoggedIn = true
	st.UserID = userID
	st.PendingFingerprint = ""
	st.OAuthNonce = ""
}

// Sort returns the stored feed order, or the default.
func (st *State) Sort() model.SortMode {
	if mode, ok := model.ParseSortMode(string(st.SortMode)); ok {
		return mode
	}
	return model.DefaultSortMode
}

type contextKey struct{}

// WithState returns a context carrying st.
func WithState(ctx context.Context, st *State) context.Context {
	return context.WithValue(ctx, contextKey{}, st)
}

// FromContext returns the request's session state. Requests that did not
// pass through Manager.Middleware get an anonymous state.
func FromContext(ctx context.Context) *State {
	if st, ok := ctx.Value(contextKey{}).(*State); ok {
		return st
	}
	return &State{}
}

// idRotator is implemented by stores that can move a session to a new id.
type idRotator interface {
	Rotate(r *http.Request, session *sessions.Session) error
}

// Manager loads and saves State through a gorilla sessions.Store.
type Manager struct {
	store  sessions.Store
	logger *slog.Logger
}

func NewManager(store sessions.Store, logger *slog.Logger) *Manager {
	return &Manager{store: store, logger: logger}
}

// Middleware loads the session once per request and puts its State in the
// request context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := m.load(r)
		next.ServeHTTP(w, r.WithContext(WithState(r.Context(), st)))
	})
}

func (m *Manager) load(r *http.Request) *State {
	raw, err := m.store.Get(r, CookieName)
	if err != nil {
		// Tampered, expired or unreadable cookies just start a fresh session.
		m.logger.Debug("discarding unreadable session", slog.String("error", err.Error()))
	}
	if raw == nil {
		raw = sessions.NewSession(m.store, CookieName)
		raw.IsNew = true
	}

	st := &State{raw: raw}
	st.LoggedIn, _ = raw.Values[keyLoggedIn].(bool)
	st.UserID, _ = raw.Values[keyUserID].(string)
	st.PendingFingerprint, _ = raw.Values[keyPendingFingerprint].(string)
	st.OAuthNonce, _ = raw.Values[keyOAuthNonce].(string)
	if mode, ok := raw.Values[keySortMode].(string); ok {
		st.SortMode = model.SortMode(mode)
	}
	return st
}

// Save writes st back to the store and refreshes the cookie. It must run
// before the response body is written.
func (m *Manager) Save(w http.ResponseWriter, r *http.Request, st *State) error {
	raw, err := m.rawFor(r, st)
	if err != nil {
		return err
	}
	if st.rotate {
		if rot, ok := m.store.(idRotator); ok {
			if err := rot.Rotate(r, raw); err != nil {
				return err
			}
		}
		st.rotate = false
	}

	raw.Values[keyLoggedIn] = st.LoggedIn
	raw.Values[keyUserID] = st.UserID
	raw.Values[keyPendingFingerprint] = st.PendingFingerprint
	raw.Values[keySortMode] = string(st.SortMode)
	raw.Values[keyOAuthNonce] = st.OAuthNonce
	return raw.Save(r, w)
}

// Destroy deletes the session server-side, expires the cookie and resets st
// to anonymous.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request, st *State) error {
	raw, err := m.rawFor(r, st)
	if err != nil {
		return err
	}

	raw.Options.MaxAge = -1
	raw.Values = make(map[interface{}]interface{})
	*st = State{}
	return raw.Save(r, w)
}

func (m *Manager) rawFor(r *http.Request, st *State) (*sessions.Session, error) {
	if st.raw != nil {
		return st.raw, nil
	}
	raw, err := m.store.New(r, CookieName)
	if raw == nil {
		return nil, err
	}
	st.raw = raw
	return raw, nil
}
