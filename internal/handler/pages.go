// Package handler contains the HTTP handlers: the JSON API under /api, the
// session endpoints under /auth, and the server-rendered pages.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming request (path, query, form or JSON body)
// 2. Call the service layer
// 3. Write the response (status, headers, body)
//
// Business rules live in internal/service; handlers only translate.
package handler

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/poetry-studio/internal/apperror"
	"github.com/sakif/poetry-studio/internal/auth"
	"github.com/sakif/poetry-studio/internal/background"
	"github.com/sakif/poetry-studio/internal/collection"
	"github.com/sakif/poetry-studio/internal/model"
	"github.com/sakif/poetry-studio/internal/notify"
	"github.com/sakif/poetry-studio/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

// pageNames are the templates that fill the "content" block of base.html.
var pageNames = []string{"editor", "history", "detail", "login", "error"}

// PageConfig lists the collaborators of the server-rendered pages.
// Backgrounds, Picker and Session may be nil.
type PageConfig struct {
	Poems       *service.PoemService
	Backgrounds *service.BackgroundService
	Picker      *background.Picker
	// Session is set when authentication is configured. Form posts then
	// require a logged-in author.
	Session *AuthHandler
}

// PageHandler renders the editor, the paginated history and the detail view.
//
// TEMPLATE COMPOSITION:
// base.html defines the page shell with a {{template "content" .}} placeholder.
// Every page template is parsed together with base.html into its own set, so
// each set has exactly one "content" definition.
type PageHandler struct {
	pages  map[string]*template.Template
	cfg    PageConfig
	logger *slog.Logger
}

func NewPageHandler(cfg PageConfig, logger *slog.Logger) (*PageHandler, error) {
	funcs := template.FuncMap{
		"detailLink": collection.DetailLink,
		"pageURL":    collection.PageURL,
		"excerpt":    excerpt,
		"lines":      func(s string) []string { return strings.Split(s, "\n") },
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/base.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &PageHandler{pages: pages, cfg: cfg, logger: logger}, nil
}

// pageData is shared by every template.
type pageData struct {
	Title        string
	Background   string
	Flashes      []Flash
	AuthRequired bool
	LoggedIn     bool

	Editor  *editorData
	History *historyData
	Poem    *model.Poem
	Back    string
	Page    int
	Next    string
	Error   string
}

type colorOption struct {
	Name  string
	Token string
}

type editorData struct {
	ID           string
	Page         int
	Input        model.PoemInput
	Colors       []colorOption
	Images       []string
	Choice       string
	RandomChosen bool
}

type historyData struct {
	collection.Snapshot
	Failed bool
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	data.Background = h.background(r.Context())
	data.AuthRequired = h.cfg.Session != nil
	_, data.LoggedIn = auth.SubjectFromContext(r.Context())
	data.Flashes = append(takeFlash(w, r), data.Flashes...)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.pages[name].ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("failed to render template",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
	}
}

func (h *PageHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorBody(err)
	h.render(w, r, status, "error", pageData{Title: "Something went wrong", Error: body.Message})
}

// background resolves the page background. In random mode every render picks anew.
func (h *PageHandler) background(ctx context.Context) string {
	if h.cfg.Picker == nil {
		return ""
	}
	return h.cfg.Picker.Resolve(ctx)
}

// RequireSession redirects anonymous visitors to the login page when
// authentication is configured, and is a no-op otherwise.
func (h *PageHandler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.cfg.Session != nil {
			if _, ok := auth.SubjectFromContext(r.Context()); !ok {
				http.Redirect(w, r, "/login?next="+url.QueryEscape(safeNext(r.Referer())), http.StatusSeeOther)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// =========================================================================
// EDITOR
// =========================================================================

// HandleEditor renders the compose form.
//
// HTTP: GET /                        → empty form
// HTTP: GET /poem/{id}/edit?page=N   → form pre-filled with an existing poem
func (h *PageHandler) HandleEditor(w http.ResponseWriter, r *http.Request) {
	ed := h.editor(r.Context())

	if id := chi.URLParam(r, "id"); id != "" {
		poem, err := h.cfg.Poems.GetByID(r.Context(), id)
		if err != nil {
			h.renderError(w, r, err)
			return
		}
		ed.ID = poem.ID
		ed.Page = collection.ParsePage(r.URL.RawQuery)
		ed.Input = model.PoemInput{
			Title:          poem.Title,
			Content:        poem.Content,
			ColorToken:     poem.ColorToken,
			ImageReference: poem.ImageReference,
		}
	}

	title := "New poem"
	if ed.ID != "" {
		title = "Edit poem"
	}
	h.render(w, r, http.StatusOK, "editor", pageData{Title: title, Editor: ed})
}

// HandleCreate saves the compose form and redirects to the first history page.
//
// HTTP: POST /
func (h *PageHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	in, err := formInput(w, r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	if _, err := h.cfg.Poems.Create(r.Context(), in); err != nil {
		h.rerenderEditor(w, r, "", 0, in, err)
		return
	}

	setFlash(w, []notify.Notification{{Level: notify.Info, Title: "Poem saved"}})
	http.Redirect(w, r, collection.PageURL(1), http.StatusSeeOther)
}

// HandleEdit updates a poem through the history view and returns to its detail page.
//
// HTTP: POST /poem/{id}/edit?page=N
func (h *PageHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	page := collection.ParsePage(r.URL.RawQuery)

	in, err := formInput(w, r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	rec := &notify.Recorder{}
	view := collection.NewView(h.cfg.Poems, rec, h.logger)
	if _, err := view.Edit(r.Context(), id, in); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			h.renderError(w, r, err)
			return
		}
		h.rerenderEditor(w, r, id, page, in, err)
		return
	}

	setFlash(w, rec.Drain())
	http.Redirect(w, r, collection.DetailLink(id, page), http.StatusSeeOther)
}

func (h *PageHandler) rerenderEditor(w http.ResponseWriter, r *http.Request, id string, page int, in model.PoemInput, err error) {
	status, body := errorBody(err)
	ed := h.editor(r.Context())
	ed.ID = id
	ed.Page = page
	ed.Input = in

	title := "Missing fields"
	if status != http.StatusBadRequest {
		title = "Failed to save poem"
	}
	pageTitle := "New poem"
	if id != "" {
		pageTitle = "Edit poem"
	}
	h.render(w, r, status, "editor", pageData{
		Title:   pageTitle,
		Editor:  ed,
		Flashes: []Flash{{Level: notify.Error.String(), Title: title, Message: body.Message}},
	})
}

func (h *PageHandler) editor(ctx context.Context) *editorData {
	colors := make([]colorOption, 0, len(model.ColorTokens))
	for name, token := range model.ColorTokens {
		colors = append(colors, colorOption{Name: name, Token: token})
	}
	sort.Slice(colors, func(i, j int) bool { return colors[i].Name < colors[j].Name })

	images := append([]string(nil), background.BuiltIn...)
	var gallery []string
	if h.cfg.Backgrounds != nil {
		urls, err := h.cfg.Backgrounds.List(ctx)
		if err != nil && !errors.Is(err, apperror.ErrUnavailable) {
			h.logger.Warn("gallery unavailable for editor", slog.String("error", err.Error()))
		}
		gallery = urls
	}
	images = append(images, gallery...)

	ed := &editorData{
		Input:  model.PoemInput{ColorToken: model.DefaultColorToken},
		Colors: colors,
		Images: images,
		Choice: background.Random,
	}
	if h.cfg.Picker != nil {
		ed.Choice = h.cfg.Picker.Choice(ctx)
		ed.RandomChosen = h.cfg.Picker.IsRandom(ctx)
	}
	return ed
}

func formInput(w http.ResponseWriter, r *http.Request) (model.PoemInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := r.ParseForm(); err != nil {
		return model.PoemInput{}, apperror.ValidationFailed("body", "invalid form body")
	}
	return model.PoemInput{
		Title:          r.PostForm.Get("title"),
		Content:        r.PostForm.Get("content"),
		ColorToken:     r.PostForm.Get("colorToken"),
		ImageReference: r.PostForm.Get("imageReference"),
	}, nil
}

// =========================================================================
// HISTORY + DETAIL
// =========================================================================

// HandleHistory renders one page of the collection.
//
// HTTP: GET /history?page=N
//
// The page comes from the URL alone, so reloads, shared links and the browser's
// back button all land on the same page. A failed fetch still renders, with the
// error notification shown.
func (h *PageHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	rec := &notify.Recorder{}
	view := collection.NewView(h.cfg.Poems, rec, h.logger)
	_ = view.SetLocation(r.Context(), r.URL.RequestURI())

	snap := view.Snapshot()
	h.render(w, r, http.StatusOK, "history", pageData{
		Title:   "History",
		History: &historyData{Snapshot: snap, Failed: snap.Status == collection.StatusError},
		Page:    snap.Page.Current,
		Flashes: toFlashes(rec.Drain()),
	})
}

// HandleDetail renders a single poem with a link back to the list page it came from.
//
// HTTP: GET /poem/{id}?page=N
func (h *PageHandler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	poem, err := h.cfg.Poems.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, "detail", pageData{
		Title: poem.Title,
		Poem:  poem,
		Back:  collection.BackLink(r.URL.RawQuery),
		Page:  collection.ParsePage(r.URL.RawQuery),
	})
}

// HandleDelete deletes a poem and returns to the same list page, even when that
// page is now empty.
//
// HTTP: POST /poem/{id}/delete?page=N
func (h *PageHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	page := collection.ParsePage(r.URL.RawQuery)

	rec := &notify.Recorder{}
	view := collection.NewView(h.cfg.Poems, rec, h.logger)
	// The view refetches its page after a delete; point it at the right one first.
	view.SetPage(page)

	_ = view.Delete(r.Context(), chi.URLParam(r, "id"))

	setFlash(w, rec.Drain())
	http.Redirect(w, r, collection.PageURL(page), http.StatusSeeOther)
}

// =========================================================================
// BACKGROUND + SESSION
// =========================================================================

// HandleBackground stores the background choice from the editor's picker.
//
// HTTP: POST /settings/background   form: choice=<url|random>, random=on
func (h *PageHandler) HandleBackground(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Picker == nil {
		h.renderError(w, r, apperror.Unavailable("background selection is not configured"))
		return
	}
	if err := r.ParseForm(); err != nil {
		h.renderError(w, r, apperror.ValidationFailed("body", "invalid form body"))
		return
	}

	ctx := r.Context()
	if err := h.cfg.Picker.Choose(ctx, r.PostForm.Get("choice")); err != nil {
		h.renderError(w, r, fmt.Errorf("saving background: %w", err))
		return
	}
	if err := h.cfg.Picker.SetRandom(ctx, r.PostForm.Get("random") == "on"); err != nil {
		h.renderError(w, r, fmt.Errorf("saving background mode: %w", err))
		return
	}

	http.Redirect(w, r, safeNext(r.Referer()), http.StatusSeeOther)
}

// HandleLoginPage renders the password form.
//
// HTTP: GET /login?next=/history
func (h *PageHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login", pageData{
		Title: "Log in",
		Next:  safeNext(r.URL.Query().Get("next")),
	})
}

// HandleLoginForm checks the password and sets the session cookie.
//
// HTTP: POST /login
func (h *PageHandler) HandleLoginForm(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Session == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.renderError(w, r, apperror.ValidationFailed("body", "invalid form body"))
		return
	}

	next := safeNext(r.PostForm.Get("next"))
	token, err := h.cfg.Session.auth.Login(r.PostForm.Get("password"))
	if err != nil {
		status, body := errorBody(err)
		h.render(w, r, status, "login", pageData{
			Title:   "Log in",
			Next:    next,
			Flashes: []Flash{{Level: notify.Error.String(), Title: "Login failed", Message: body.Message}},
		})
		return
	}

	h.cfg.Session.setCookie(w, token)
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// HandleLogoutForm clears the session cookie.
//
// HTTP: POST /logout
func (h *PageHandler) HandleLogoutForm(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Session != nil {
		h.cfg.Session.clearCookie(w)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// safeNext keeps redirects on this site: only absolute paths are accepted,
// full URLs are reduced to their path. Browsers read a backslash as a slash,
// so `/\host` is rejected along with `//host`.
func safeNext(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") || strings.Contains(u.Path, `\`) {
		return "/"
	}
	if u.RawQuery != "" {
		return u.Path + "?" + u.RawQuery
	}
	return u.Path
}

// excerpt returns the first n runes of s, with an ellipsis when cut.
func excerpt(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}
