package handler

import (
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sakif/microblog/internal/model"
)

// Pages rendered by the site. Each is parsed together with base.html, which
// defines the "base" layout and the shared "post" block.
const (
	pageHome             = "home"
	pageProfile          = "profile"
	pageLogin            = "login"
	pageRegisterUsername = "registerUsername"
	pageError            = "error"
	pageGoogleLogout     = "googleLogout"
)

var pages = []string{
	pageHome,
	pageProfile,
	pageLogin,
	pageRegisterUsername,
	pageError,
	pageGoogleLogout,
}

// Site holds the values every page shows.
type Site struct {
	AppName     string
	AuthMode    string
	PostNeoType string
}

// PageData is what the templates see.
type PageData struct {
	AppName       string
	Title         string
	CopyrightYear int
	PostNeoType   string
	AuthMode      string

	LoggedIn  bool
	User      *model.User
	Feed      *model.Feed
	SortModes []model.SortMode

	Error      string // registration form error
	LoginError string // username login form error
}

// Renderer executes the page templates. Templates are parsed once at
// startup; a parse error is a startup error.
type Renderer struct {
	site   Site
	pages  map[string]*template.Template
	logger *slog.Logger
}

var funcs = template.FuncMap{
	"avatarSrc":   avatarSrc,
	"memberSince": func(t time.Time) string { return t.Format(model.TimestampLayout) },
}

// NewRenderer parses every page from fsys.
func NewRenderer(fsys fs.FS, site Site, logger *slog.Logger) (*Renderer, error) {
	if site.PostNeoType == "" {
		site.PostNeoType = "Post"
	}

	parsed := make(map[string]*template.Template, len(pages))
	for _, name := range pages {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(fsys, "base.html", name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}
		parsed[name] = tmpl
	}

	return &Renderer{site: site, pages: parsed, logger: logger}, nil
}

// Page returns PageData prefilled with the site values and the viewer.
func (rd *Renderer) Page(title string, user *model.User) PageData {
	return PageData{
		AppName:       rd.site.AppName,
		Title:         title,
		CopyrightYear: time.Now().Year(),
		PostNeoType:   rd.site.PostNeoType,
		AuthMode:      rd.site.AuthMode,
		LoggedIn:      user != nil,
		User:          user,
	}
}

// Render writes page with the "base" layout.
func (rd *Renderer) Render(w http.ResponseWriter, status int, page string, data PageData) {
	tmpl, ok := rd.pages[page]
	if !ok {
		rd.logger.Error("unknown template", slog.String("page", page))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// Render into a buffer first so a template error does not leave a
	// half-written page behind a 200.
	var buf strings.Builder
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		rd.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}

// avatarSrc lets stored PNG data URIs through html/template's URL filter.
// Anything else renders as an empty src.
func avatarSrc(uri string) template.URL {
	if strings.HasPrefix(uri, "data:image/png;base64,") {
		return template.URL(uri)
	}
	return ""
}
