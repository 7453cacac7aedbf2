package handler

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/taskpage/taskpage/internal/remote"
	"github.com/taskpage/taskpage/internal/store"
	"github.com/taskpage/taskpage/internal/wizard"
	"github.com/taskpage/taskpage/pkg/respond"
)

//go:embed templates/*.html
var templateFS embed.FS

// Handler serves the two screens (login, tasks) and the JSON mirror of the
// task operations.
type Handler struct {
	store    *store.Store
	sessions *remote.SessionManager
	wizard   *wizard.Wizard
	logger   *zap.Logger
	tmpl     *template.Template

	noticeMu sync.Mutex
	notice   string
}

func New(st *store.Store, sessions *remote.SessionManager, wz *wizard.Wizard, logger *zap.Logger) *Handler {
	return &Handler{
		store:    st,
		sessions: sessions,
		wizard:   wz,
		logger:   logger,
		tmpl:     template.Must(template.ParseFS(templateFS, "templates/*.html")),
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok"}`)
	})

	r.Get("/login", h.LoginPage)
	r.Post("/login", h.SignIn)
	r.Post("/signup", h.SignUp)
	r.Post("/logout", h.SignOut)

	r.Group(func(r chi.Router) {
		r.Use(h.RequireSession)

		r.Get("/", h.TasksPage)
		r.Post("/wizard/next", h.WizardNext)
		r.Post("/wizard/back", h.WizardBack)
		r.Post("/tasks", h.CreateTask)
		r.Post("/tasks/{id}/toggle", h.ToggleTask)
		r.Post("/tasks/{id}/delete", h.DeleteTask)

		r.Route("/api/tasks", func(r chi.Router) {
			r.Get("/", h.APIList)
			r.Post("/", h.APICreate)
			r.Patch("/{id}", h.APIToggle)
			r.Delete("/{id}", h.APIDelete)
		})
	})

	return r
}

// setNotice stores a one-shot message shown on the next task-screen render.
// All task actions report failures through this single channel.
func (h *Handler) setNotice(msg string) {
	h.noticeMu.Lock()
	h.notice = msg
	h.noticeMu.Unlock()
}

func (h *Handler) popNotice() string {
	h.noticeMu.Lock()
	defer h.noticeMu.Unlock()
	msg := h.notice
	h.notice = ""
	return msg
}

func (h *Handler) handleErrors(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrEmptyTitle) || errors.Is(err, wizard.ErrEmptyTitle):
		respond.Error(w, r, http.StatusBadRequest, "title must not be empty")
	case errors.Is(err, wizard.ErrNotFinal):
		respond.Error(w, r, http.StatusBadRequest, "form is not on its final step")
	case errors.Is(err, remote.ErrNoSession) || errors.Is(err, remote.ErrUnauthorized):
		respond.Error(w, r, http.StatusUnauthorized, "no active session")
	case errors.Is(err, store.ErrBusy):
		respond.Error(w, r, http.StatusConflict, "task mutation in flight")
	case errors.Is(err, remote.ErrNotFound):
		respond.Error(w, r, http.StatusNotFound, "not found")
	default:
		h.logger.Error("internal error", zap.Error(err))
		respond.Error(w, r, http.StatusInternalServerError, "internal error")
	}
}

// userMessage extracts the service-provided message for inline display,
// falling back to a generic line so internals never leak to the screen.
func userMessage(err error, fallback string) string {
	var re *remote.Error
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	switch {
	case errors.Is(err, store.ErrEmptyTitle) || errors.Is(err, wizard.ErrEmptyTitle):
		return "title must not be empty"
	case errors.Is(err, store.ErrBusy):
		return "another change to this task is still in progress"
	}
	return fallback
}
