package handler

// RESPONSE HELPERS:
// Page scripts call the JSON routes (like, delete, sort, account actions) and
// expect one shape back:
//   {"success": true}
//   {"success": false, "message": "not found or no perms"}
//
// Browser routes never use these. They redirect to /error or back to the
// form with ?error=... instead.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/microblog/internal/apperror"
)

// Ack is the payload of every JSON route.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// LikeAck extends Ack with the post's new like state.
type LikeAck struct {
	Success bool `json:"success"`
	Likes   int  `json:"likes"`
	Liked   bool `json:"liked"`
}

// writeJSON sends a JSON response with the given status code.
// Headers and status go out before the body; later header changes are lost.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent, so all we can do is log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, Ack{Success: true})
}

// writeAckError maps a domain error to a status and a {success:false} body.
//
// MESSAGE CHOICE:
// Client mistakes (validation, forbidden, not found, conflict) carry the
// AppError's own message. Store failures and unknown errors get fallback, a
// fixed per-route message, so SQL and file paths never reach the browser.
func writeAckError(w http.ResponseWriter, err error, fallback string) {
	status := statusFor(err)
	message := fallback

	var appErr *apperror.AppError
	if status < http.StatusInternalServerError && errors.As(err, &appErr) {
		message = appErr.Message
	}
	writeJSON(w, status, Ack{Success: false, Message: message})
}

// statusFor maps the apperror taxonomy to HTTP.
// errors.Is walks the whole chain, so service-level fmt.Errorf wrapping
// does not hide the sentinel.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest // 400
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden // 403
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound // 404
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict // 409
	default:
		return http.StatusInternalServerError
	}
}

// userMessage returns the text to show on a form for err, or "" when the
// error is not the user's to fix.
func userMessage(err error) string {
	if statusFor(err) >= http.StatusInternalServerError {
		return ""
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ""
}
