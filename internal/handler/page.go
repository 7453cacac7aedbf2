package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/taskpage/taskpage/internal/model"
	"github.com/taskpage/taskpage/internal/remote"
	"github.com/taskpage/taskpage/internal/store"
	"github.com/taskpage/taskpage/internal/wizard"
	"github.com/taskpage/taskpage/pkg/respond"
)

type loginView struct {
	Error string
}

type tasksView struct {
	Email  string
	Notice string
	Filter store.Filter
	Sort   store.Sort
	Tasks  []model.Task
	Wizard wizard.State
}

func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if h.sessions.Current() != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	respond.HTML(w, r, http.StatusOK, h.tmpl, "login.html", loginView{})
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, h.sessions.SignIn, "sign-in failed")
}

func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, h.sessions.SignUp, "sign-up failed")
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request,
	auth func(ctx context.Context, email, password string) (*remote.Session, error), fallback string) {
	if err := r.ParseForm(); err != nil {
		respond.HTML(w, r, http.StatusBadRequest, h.tmpl, "login.html", loginView{Error: "invalid form"})
		return
	}
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	if _, err := auth(r.Context(), email, password); err != nil {
		h.logger.Error("authentication failed", zap.Error(err))
		respond.HTML(w, r, http.StatusOK, h.tmpl, "login.html", loginView{Error: userMessage(err, fallback)})
		return
	}

	// The load failure stays off the screen: log it and show an empty list.
	if err := h.store.Load(r.Context()); err != nil {
		h.logger.Error("initial task load failed", zap.Error(err))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.SignOut(r.Context()); err != nil {
		h.logger.Warn("sign-out failed", zap.Error(err))
	}
	h.store.Reset()
	h.wizard.Reset()
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *Handler) TasksPage(w http.ResponseWriter, r *http.Request) {
	filter := store.ParseFilter(r.URL.Query().Get("filter"))
	sortMode := store.ParseSort(r.URL.Query().Get("sort"))

	view := tasksView{
		Notice: h.popNotice(),
		Filter: filter,
		Sort:   sortMode,
		Tasks:  store.ApplyView(h.store.Snapshot(), filter, sortMode),
		Wizard: h.wizard.State(),
	}
	if sess := h.sessions.Current(); sess != nil {
		view.Email = sess.User.Email
	}
	respond.HTML(w, r, http.StatusOK, h.tmpl, "tasks.html", view)
}

func (h *Handler) WizardNext(w http.ResponseWriter, r *http.Request) {
	h.saveStepFields(r)
	h.wizard.Next()
	h.redirectBack(w, r)
}

func (h *Handler) WizardBack(w http.ResponseWriter, r *http.Request) {
	h.saveStepFields(r)
	h.wizard.Back()
	h.redirectBack(w, r)
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	h.saveStepFields(r)

	draft, err := h.wizard.Submit()
	if err == nil {
		_, err = h.store.Create(r.Context(), draft)
	}
	switch {
	case err == nil:
		h.wizard.Reset()
	case errors.Is(err, remote.ErrNoSession) || errors.Is(err, remote.ErrUnauthorized):
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	default:
		h.setNotice(userMessage(err, "could not create the task"))
	}
	h.redirectBack(w, r)
}

func (h *Handler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.store.Toggle(r.Context(), id); err != nil {
		if errors.Is(err, remote.ErrNoSession) || errors.Is(err, remote.ErrUnauthorized) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		h.setNotice(userMessage(err, "could not update the task"))
	}
	h.redirectBack(w, r)
}

func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, remote.ErrNoSession) || errors.Is(err, remote.ErrUnauthorized) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		h.setNotice(userMessage(err, "could not delete the task"))
	}
	h.redirectBack(w, r)
}

// saveStepFields records the fields posted with the current step, so
// navigating never loses values.
func (h *Handler) saveStepFields(r *http.Request) {
	r.ParseForm()
	switch h.wizard.Step() {
	case wizard.StepBasics:
		h.wizard.SetBasics(r.FormValue("title"), model.ParsePriority(r.FormValue("priority")))
	case wizard.StepSchedule:
		h.wizard.SetSchedule(r.FormValue("due_date"), r.FormValue("note"))
	case wizard.StepExtras:
		h.wizard.SetExtras(r.FormValue("tags"), r.FormValue("subtasks"), model.ParseRecurrence(r.FormValue("recurrence")))
	}
}

// redirectBack returns to the task screen, keeping the posted filter and
// sort selection.
func (h *Handler) redirectBack(w http.ResponseWriter, r *http.Request) {
	q := url.Values{}
	if f := r.FormValue("filter"); f != "" {
		q.Set("filter", f)
	}
	if s := r.FormValue("sort"); s != "" {
		q.Set("sort", s)
	}
	target := "/"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
