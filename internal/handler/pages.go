// Package handler contains the HTTP handlers of the site.
//
// Two kinds of routes live here:
//   - Browser routes render a page or redirect. Failures redirect to /error
//     or back to the form with ?error=...
//   - JSON routes answer page scripts with {success, message?} and the
//     matching status code.
//
// Handlers hold no business rules. They read the request, call a service and
// write the response.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/service"
	"github.com/sakif/microblog/internal/session"
)

// PageHandler renders the HTML pages.
type PageHandler struct {
	viewer
	posts    *service.PostService
	identity *service.IdentityService
	render   *Renderer
}

func NewPageHandler(
	posts *service.PostService,
	identity *service.IdentityService,
	render *Renderer,
	sessions *session.Manager,
	logger *slog.Logger,
) *PageHandler {
	return &PageHandler{
		viewer:   viewer{users: identity, sessions: sessions, logger: logger},
		posts:    posts,
		identity: identity,
		render:   render,
	}
}

// HandleHome renders the feed in the session's sort order.
//
// HTTP: GET /
func (h *PageHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	user, err := h.current(w, r)
	if err != nil {
		h.fail(w, r, "loading user", err)
		return
	}

	st := session.FromContext(r.Context())
	feed, err := h.posts.ListFeed(r.Context(), st.Sort(), user)
	if err != nil {
		h.fail(w, r, "loading feed", err)
		return
	}

	data := h.render.Page("Home", user)
	data.Feed = feed
	data.SortModes = []model.SortMode{model.SortRecency, model.SortLikes}
	h.render.Render(w, http.StatusOK, pageHome, data)
}

// HandleProfile renders the viewer's own posts.
//
// HTTP: GET /profile
func (h *PageHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.current(w, r)
	if err != nil {
		h.fail(w, r, "loading user", err)
		return
	}
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if user.AvatarURL == "" {
		if withAvatar, err := h.identity.EnsureAvatar(r.Context(), user.Username); err == nil {
			user = withAvatar
		}
	}

	feed, err := h.posts.ListProfile(r.Context(), user)
	if err != nil {
		h.fail(w, r, "loading profile", err)
		return
	}

	data := h.render.Page("Profile", user)
	data.Feed = feed
	h.render.Render(w, http.StatusOK, pageProfile, data)
}

// HandleLogin renders the entry page: a Google button, or the username
// forms in username mode.
//
// HTTP: GET /login
func (h *PageHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	user, _ := h.current(w, r)
	data := h.render.Page("Login", user)
	data.LoginError = r.URL.Query().Get("error")
	h.render.Render(w, http.StatusOK, pageLogin, data)
}

// HandleRegisterPage renders the same entry page with the registration
// error, if any.
//
// HTTP: GET /register
func (h *PageHandler) HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	user, _ := h.current(w, r)
	data := h.render.Page("Register", user)
	data.Error = r.URL.Query().Get("error")
	h.render.Render(w, http.StatusOK, pageLogin, data)
}

// HandleRegisterUsername renders the second phase of Google registration.
//
// HTTP: GET /registerUsername
func (h *PageHandler) HandleRegisterUsername(w http.ResponseWriter, r *http.Request) {
	data := h.render.Page("Choose a username", nil)
	data.Error = r.URL.Query().Get("error")
	h.render.Render(w, http.StatusOK, pageRegisterUsername, data)
}

// HandleError renders the generic error page.
//
// HTTP: GET /error
func (h *PageHandler) HandleError(w http.ResponseWriter, r *http.Request) {
	user, _ := h.current(w, r)
	h.render.Render(w, http.StatusOK, pageError, h.render.Page("Error", user))
}

// HandleGoogleLogout renders the signed-out page.
//
// HTTP: GET /googleLogout
func (h *PageHandler) HandleGoogleLogout(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, http.StatusOK, pageGoogleLogout, h.render.Page("Signed out", nil))
}

func (h *PageHandler) fail(w http.ResponseWriter, r *http.Request, what string, err error) {
	h.logger.Error(what+" failed", slog.String("error", err.Error()))
	http.Redirect(w, r, "/error", http.StatusSeeOther)
}
