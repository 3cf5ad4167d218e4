package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/service"
	"github.com/sakif/microblog/internal/session"
)

// AccountHandler serves avatars, account removal and the admin toggles.
type AccountHandler struct {
	viewer
	identity *service.IdentityService
	accounts *service.AccountService
}

func NewAccountHandler(
	identity *service.IdentityService,
	accounts *service.AccountService,
	sessions *session.Manager,
	logger *slog.Logger,
) *AccountHandler {
	return &AccountHandler{
		viewer:   viewer{users: identity, sessions: sessions, logger: logger},
		identity: identity,
		accounts: accounts,
	}
}

// HandleAvatar redirects to the user's stored avatar, rendering it first if
// the user has none yet.
//
// HTTP: GET /avatar/{username}
func (h *AccountHandler) HandleAvatar(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := h.identity.EnsureAvatar(r.Context(), username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			http.Error(w, "Did not find user", http.StatusNotFound)
			return
		}
		h.logger.Error("avatar failed",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, user.AvatarURL, http.StatusFound)
}

// HandleDeleteAccount removes the viewer's account and everything it owns,
// then ends the session.
//
// HTTP: POST /deleteaccount
func (h *AccountHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r, "issue deleting account")
	if !ok {
		return
	}

	if err := h.accounts.DeleteAccount(r.Context(), user.ID); err != nil {
		writeAckError(w, err, "issue deleting account")
		return
	}

	st := session.FromContext(r.Context())
	if err := h.sessions.Destroy(w, r, st); err != nil {
		// The account is gone either way; the stale session is cleaned up on
		// its next request.
		h.logger.Warn("destroying session after account deletion failed", slog.String("error", err.Error()))
	}
	writeOK(w)
}

// HandleSetAdminMode gives the viewer the admin role.
//
// HTTP: POST /setAdminMode
//
// Any logged-in user may call this. There is no approval step.
func (h *AccountHandler) HandleSetAdminMode(w http.ResponseWriter, r *http.Request) {
	h.setRole(w, r, model.RoleAdmin, "issue setting admin mode")
}

// HandleExitAdminMode returns the viewer to the user role.
//
// HTTP: POST /exitAdminMode
func (h *AccountHandler) HandleExitAdminMode(w http.ResponseWriter, r *http.Request) {
	h.setRole(w, r, model.RoleUser, "issue exiting admin mode")
}

func (h *AccountHandler) setRole(w http.ResponseWriter, r *http.Request, role model.Role, fallback string) {
	user, ok := h.requireUser(w, r, fallback)
	if !ok {
		return
	}

	if err := h.identity.SetRole(r.Context(), user.ID, role); err != nil {
		h.logger.Error("changing role failed",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		writeAckError(w, err, fallback)
		return
	}
	writeOK(w)
}

// HandleAdminRemoveAccount removes the account that wrote a post. Admins
// only.
//
// HTTP: POST /adminremoveaccount/{id}
// {id} is a post id, not a user id.
func (h *AccountHandler) HandleAdminRemoveAccount(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r, "issue removing account")
	if !ok {
		return
	}

	removed, err := h.accounts.RemoveAuthorOfPost(r.Context(), chi.URLParam(r, "id"), user)
	if err != nil {
		writeAckError(w, err, "issue removing account")
		return
	}

	if removed.ID == user.ID {
		st := session.FromContext(r.Context())
		if err := h.sessions.Destroy(w, r, st); err != nil {
			h.logger.Warn("destroying own session failed", slog.String("error", err.Error()))
		}
	}
	writeOK(w)
}
