package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/session"
)

// UserLookup loads the account behind a session.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
}

// viewer resolves the logged-in user of a request.
type viewer struct {
	users    UserLookup
	sessions *session.Manager
	logger   *slog.Logger
}

// current returns the request's user, or nil for anonymous visitors.
//
// A session can outlive its account (an admin removed it, or it was deleted
// from another browser). Such sessions are destroyed and the visitor is
// treated as anonymous from then on.
func (v viewer) current(w http.ResponseWriter, r *http.Request) (*model.User, error) {
	st := session.FromContext(r.Context())
	if !st.Authenticated() {
		return nil, nil
	}

	user, err := v.users.GetUser(r.Context(), st.UserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	v.logger.Info("session refers to a removed account", slog.String("userID", st.UserID))
	if err := v.sessions.Destroy(w, r, st); err != nil {
		v.logger.Warn("failed to destroy stale session", slog.String("error", err.Error()))
	}
	return nil, nil
}

// requireUser loads the viewer for a JSON route. RequireLoginJSON has already
// rejected anonymous sessions; this catches sessions whose account is gone.
func (v viewer) requireUser(w http.ResponseWriter, r *http.Request, fallback string) (*model.User, bool) {
	user, err := v.current(w, r)
	if err != nil {
		v.logger.Error("loading user failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, Ack{Success: false, Message: fallback})
		return nil, false
	}
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, Ack{Success: false, Message: "login required"})
		return nil, false
	}
	return user, true
}
