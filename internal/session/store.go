// Package session keeps per-visitor state on the server. The browser holds
// only a signed, encrypted cookie naming the session id; the payload lives in
// the application's store (SQLite or memory) behind
// repository.SessionRepository.
package session

import (
	"encoding/base32"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/repository"
)

var _ sessions.Store = (*Store)(nil)

// Store implements sessions.Store on top of a SessionRepository, in the same
// shape as gorilla's FilesystemStore: the cookie carries the encoded id and
// the repository holds the encoded values.
type Store struct {
	Codecs  []securecookie.Codec
	Options *sessions.Options
	repo    repository.SessionRepository
}

// NewStore builds a Store. hashKey authenticates cookies and payloads,
// blockKey encrypts them.
func NewStore(repo repository.SessionRepository, hashKey, blockKey []byte, opts sessions.Options) *Store {
	codecs := securecookie.CodecsFromPairs(hashKey, blockKey)
	for _, c := range codecs {
		if sc, ok := c.(*securecookie.SecureCookie); ok {
			sc.MaxAge(opts.MaxAge)
		}
	}
	return &Store{
		Codecs:  codecs,
		Options: &opts,
		repo:    repo,
	}
}

// Get returns the request's cached session, loading it on first use.
func (s *Store) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New returns the session named by the request cookie, or a fresh one when
// the cookie is absent, undecodable, or points at a missing or expired row.
// As with gorilla's own stores, a decode error is returned alongside a usable
// new session.
func (s *Store) New(r *http.Request, name string) (*sessions.Session, error) {
	session := sessions.NewSession(s, name)
	opts := *s.Options
	session.Options = &opts
	session.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}
	if err := securecookie.DecodeMulti(name, c.Value, &session.ID, s.Codecs...); err != nil {
		return session, err
	}

	data, err := s.repo.LoadSession(r.Context(), session.ID)
	if errors.Is(err, apperror.ErrNotFound) {
		session.ID = ""
		return session, nil
	}
	if err != nil {
		return session, err
	}
	if err := securecookie.DecodeMulti(name, data, &session.Values, s.Codecs...); err != nil {
		session.ID = ""
		return session, err
	}
	session.IsNew = false
	return session, nil
}

// Save persists the session and writes its cookie. A negative MaxAge deletes
// both.
func (s *Store) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	if session.Options.MaxAge < 0 {
		if session.ID != "" {
			if err := s.repo.DeleteSession(r.Context(), session.ID); err != nil {
				return err
			}
		}
		http.SetCookie(w, sessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	if session.ID == "" {
		session.ID = strings.TrimRight(
			base32.StdEncoding.EncodeToString(securecookie.GenerateRandomKey(32)), "=")
	}

	data, err := securecookie.EncodeMulti(session.Name(), session.Values, s.Codecs...)
	if err != nil {
		return err
	}
	expiresAt := time.Now().Add(time.Duration(session.Options.MaxAge) * time.Second)
	if err := s.repo.SaveSession(r.Context(), session.ID, data, expiresAt); err != nil {
		return err
	}

	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, s.Codecs...)
	if err != nil {
		return err
	}
	http.SetCookie(w, sessions.NewCookie(session.Name(), encoded, session.Options))
	return nil
}

// Rotate deletes the session's row and clears its id so the next Save issues
// a fresh one. The values are kept.
func (s *Store) Rotate(r *http.Request, session *sessions.Session) error {
	if session.ID == "" {
		return nil
	}
	if err := s.repo.DeleteSession(r.Context(), session.ID); err != nil {
		return err
	}
	session.ID = ""
	return nil
}
