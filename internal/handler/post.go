package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/service"
	"github.com/sakif/microblog/internal/session"
)

// PostHandler serves post creation and the JSON routes the feed page calls.
type PostHandler struct {
	viewer
	posts *service.PostService
}

func NewPostHandler(posts *service.PostService, users UserLookup, sessions *session.Manager, logger *slog.Logger) *PostHandler {
	return &PostHandler{
		viewer: viewer{users: users, sessions: sessions, logger: logger},
		posts:  posts,
	}
}

// HandleCreate stores a post from the compose form.
//
// HTTP: POST /posts
// FORM: title, content
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, err := h.current(w, r)
	if err != nil {
		h.logger.Error("create post: loading user failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/error", http.StatusSeeOther)
		return
	}
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if _, err := h.posts.CreatePost(r.Context(), user, r.PostFormValue("title"), r.PostFormValue("content")); err != nil {
		h.logger.Warn("create post failed",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		http.Redirect(w, r, "/error", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLike toggles the viewer's like on a post.
//
// HTTP: POST /like/{id}
// RESPONSE: {"success":true,"likes":3,"liked":true}
func (h *PostHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r, "Issue liking post")
	if !ok {
		return
	}

	res, err := h.posts.ToggleLike(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		h.logger.Warn("like failed", slog.String("error", err.Error()))
		writeAckError(w, err, "Issue liking post")
		return
	}
	writeJSON(w, http.StatusOK, LikeAck{Success: true, Likes: res.Likes, Liked: res.Liked})
}

// HandleDelete removes a post owned by the viewer, or any post for admins.
//
// HTTP: POST /delete/{id}
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r, "issue deleting post")
	if !ok {
		return
	}

	if err := h.posts.DeletePost(r.Context(), chi.URLParam(r, "id"), user); err != nil {
		h.logger.Warn("delete post failed",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		writeAckError(w, err, "issue deleting post")
		return
	}
	writeOK(w)
}

// HandleUpdateSorting stores the feed order in the session.
//
// HTTP: POST /updateSorting/{mode}
// mode is "Recency" or "Likes".
func (h *PostHandler) HandleUpdateSorting(w http.ResponseWriter, r *http.Request) {
	mode, ok := model.ParseSortMode(chi.URLParam(r, "mode"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, Ack{Success: false, Message: "unknown sort mode"})
		return
	}

	st := session.FromContext(r.Context())
	st.SortMode = mode
	if err := h.sessions.Save(w, r, st); err != nil {
		h.logger.Error("saving sort mode failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, Ack{Success: false, Message: "issue updating sorting"})
		return
	}
	writeOK(w)
}
