package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/rs/xid"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/auth"
	"github.com/sakif/microblog/internal/config"
	"github.com/sakif/microblog/internal/service"
	"github.com/sakif/microblog/internal/session"
)

const invalidLoginMessage = "INVALID username. Try Another"

// AuthHandler runs both login variants and logout.
//
// HANDLER RESPONSIBILITIES:
//   - HandleGoogleLogin      → redirect to Google with a signed state
//   - HandleGoogleCallback   → resolve the fingerprint, or defer to /registerUsername
//   - HandleRegister         → create the account (second phase in Google mode)
//   - HandleUsernameLogin    → username-only login (username mode)
//   - HandleLogout           → destroy the session
//
// google and states are nil in username mode; the server only mounts the
// Google routes in Google mode.
type AuthHandler struct {
	mode     string
	google   *auth.GoogleProvider
	states   *auth.StateSigner
	identity *service.IdentityService
	sessions *session.Manager
	logger   *slog.Logger
}

func NewAuthHandler(
	mode string,
	google *auth.GoogleProvider,
	states *auth.StateSigner,
	identity *service.IdentityService,
	sessions *session.Manager,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		mode:     mode,
		google:   google,
		states:   states,
		identity: identity,
		sessions: sessions,
		logger:   logger,
	}
}

// HandleGoogleLogin starts the Authorization Code flow.
//
// HTTP: GET /auth/google
//
// CSRF PROTECTION VIA STATE:
// A random nonce is stored in the server-side session and the state sent to
// Google is a short-lived signed token over that nonce. The callback accepts
// only a state signed by us for the nonce this session holds.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	st := session.FromContext(r.Context())
	nonce := xid.New().String()
	st.OAuthNonce = nonce
	if err := h.sessions.Save(w, r, st); err != nil {
		h.logger.Error("google login: saving session failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/error", http.StatusSeeOther)
		return
	}

	state, err := h.states.Issue(nonce)
	if err != nil {
		h.logger.Error("google login: signing state failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/error", http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the OAuth handshake.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Verify the state against the session nonce
//  2. Exchange the code for the Google subject
//  3. Fingerprint the subject and look the user up
//  4. Known user → log in; unknown → keep the fingerprint pending and ask
//     for a username
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	st := session.FromContext(r.Context())
	q := r.URL.Query()

	// --- Step 1: CSRF state ---
	if err := h.states.Verify(q.Get("state"), st.OAuthNonce); err != nil {
		h.logger.Warn("google callback: invalid state", slog.String("error", err.Error()))
		http.Redirect(w, r, "/error", http.StatusSeeOther)
		return
	}
	st.OAuthNonce = ""

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("google callback: user denied authorization", slog.String("error", errParam))
		if h.save(w, r, st) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		}
		return
	}

	// --- Step 2: exchange ---
	code := q.Get("code")
	if code == "" {
		h.logger.Warn("google callback: missing code")
		http.Redirect(w, r, "/error", http.StatusSeeOther)
		return
	}
	gu, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("google callback: exchange failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/error", http.StatusSeeOther)
		return
	}

	// --- Step 3: resolve ---
	fingerprint := auth.Fingerprint(gu.Subject)
	user, err := h.identity.ResolveByFingerprint(r.Context(), fingerprint)
	switch {
	case err == nil:
		// --- Step 4a: known user ---
		st.Login(user.ID)
		if !h.save(w, r, st) {
			return
		}
		h.logger.Info("user logged in", slog.String("userID", user.ID), slog.String("via", "google"))
		http.Redirect(w, r, "/", http.StatusSeeOther)

	case errors.Is(err, apperror.ErrNotFound):
		// --- Step 4b: two-phase registration ---
		st.PendingFingerprint = fingerprint
		if !h.save(w, r, st) {
			return
		}
		http.Redirect(w, r, "/registerUsername", http.StatusSeeOther)

	default:
		h.logger.Error("google callback: resolving user failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/error", http.StatusSeeOther)
	}
}

// HandleRegister creates the account and logs it in.
//
// HTTP: POST /register, POST /registerUsername
// FORM: username
//
// In Google mode the fingerprint pending in the session becomes the
// account's identity and a session without one is sent back to /login. In
// username mode accounts have no fingerprint.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	st := session.FromContext(r.Context())

	formPath := "/register"
	fingerprint := ""
	if h.mode == config.AuthGoogle {
		formPath = "/registerUsername"
		fingerprint = st.PendingFingerprint
		if fingerprint == "" {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
	}

	user, err := h.identity.Register(r.Context(), r.PostFormValue("username"), fingerprint)
	if err != nil {
		if msg := userMessage(err); msg != "" {
			http.Redirect(w, r, formPath+"?error="+url.QueryEscape(msg), http.StatusSeeOther)
			return
		}
		h.logger.Error("register failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/error", http.StatusSeeOther)
		return
	}

	st.Login(user.ID)
	if !h.save(w, r, st) {
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleUsernameLogin logs in by username alone. Only mounted in username
// mode.
//
// HTTP: POST /login
// FORM: username
func (h *AuthHandler) HandleUsernameLogin(w http.ResponseWriter, r *http.Request) {
	user, err := h.identity.ResolveByUsername(r.Context(), r.PostFormValue("username"))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) || errors.Is(err, apperror.ErrValidation) {
			http.Redirect(w, r, "/login?error="+url.QueryEscape(invalidLoginMessage), http.StatusSeeOther)
			return
		}
		h.logger.Error("login failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/error", http.StatusSeeOther)
		return
	}

	st := session.FromContext(r.Context())
	st.Login(user.ID)
	if !h.save(w, r, st) {
		return
	}
	h.logger.Info("user logged in", slog.String("userID", user.ID), slog.String("via", "username"))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout destroys the session.
//
// HTTP: GET /logout
//
// Google mode continues to /googleLogout, which offers to sign out of Google
// as well.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	st := session.FromContext(r.Context())
	if err := h.sessions.Destroy(w, r, st); err != nil {
		h.logger.Error("logout failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/error", http.StatusSeeOther)
		return
	}

	if h.mode == config.AuthGoogle {
		http.Redirect(w, r, "/googleLogout", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// save persists st, sending the visitor to /error when that fails. It
// reports whether the caller may continue.
func (h *AuthHandler) save(w http.ResponseWriter, r *http.Request, st *session.State) bool {
	if err := h.sessions.Save(w, r, st); err != nil {
		h.logger.Error("saving session failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/error", http.StatusSeeOther)
		return false
	}
	return true
}
