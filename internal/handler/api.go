package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/taskpage/taskpage/internal/model"
	"github.com/taskpage/taskpage/internal/store"
	"github.com/taskpage/taskpage/pkg/respond"
)

// The JSON surface mirrors the screen actions one to one; both run through
// the same store.

func (h *Handler) APIList(w http.ResponseWriter, r *http.Request) {
	filter := store.ParseFilter(r.URL.Query().Get("filter"))
	sortMode := store.ParseSort(r.URL.Query().Get("sort"))

	tasks := store.ApplyView(h.store.Snapshot(), filter, sortMode)
	respond.JSON(w, r, http.StatusOK, tasks)
}

func (h *Handler) APICreate(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength == 0 {
		respond.Error(w, r, http.StatusBadRequest, "empty request body")
		return
	}

	var draft model.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		h.logger.Error("failed to decode json", zap.Error(err))
		respond.Error(w, r, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return
	}

	task, err := h.store.Create(r.Context(), draft)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/tasks/"+task.ID)
	respond.JSON(w, r, http.StatusCreated, task)
}

func (h *Handler) APIToggle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	task, err := h.store.Toggle(r.Context(), id)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *Handler) APIDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.handleErrors(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
