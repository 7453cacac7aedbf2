package store

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskpage/taskpage/internal/model"
	"github.com/taskpage/taskpage/internal/remote"
)

var (
	ErrEmptyTitle = errors.New("title must not be empty")

	// ErrBusy rejects a second mutation on a task whose previous mutation
	// has not resolved yet, so out-of-order responses cannot leave the
	// local list stale.
	ErrBusy = errors.New("task mutation already in flight")
)

// Sessions is the slice of the session manager the store needs.
type Sessions interface {
	Current() *remote.Session
	Invalidate(reason string)
}

// Store is the in-memory cache of the current user's tasks, ordered newest
// first. It never mutates optimistically: local state changes only after
// the remote service confirms, with the returned row as the source of truth.
type Store struct {
	rows     remote.RowsAPI
	sessions Sessions
	logger   *zap.Logger

	mu       sync.Mutex
	tasks    []model.Task
	inflight map[string]struct{}
}

func New(rows remote.RowsAPI, sessions Sessions, logger *zap.Logger) *Store {
	return &Store{
		rows:     rows,
		sessions: sessions,
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
}

// Load replaces the local list with all tasks visible to the current user.
// On failure the list is left empty.
func (s *Store) Load(ctx context.Context) error {
	if s.sessions.Current() == nil {
		return remote.ErrNoSession
	}

	tasks, err := s.rows.SelectTasks(ctx)
	if err != nil {
		s.logger.Error("failed to load tasks", zap.Error(err))
		s.noteAuthFailure(err)
		s.mu.Lock()
		s.tasks = nil
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.tasks = tasks
	s.mu.Unlock()
	return nil
}

// Create validates the draft and inserts it for the current user. The
// service-returned row (authoritative for id and creation time) is
// prepended to the local list.
func (s *Store) Create(ctx context.Context, d model.Draft) (model.Task, error) {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return model.Task{}, ErrEmptyTitle
	}
	sess := s.sessions.Current()
	if sess == nil {
		return model.Task{}, remote.ErrNoSession
	}

	priority := d.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	row := model.Task{
		Title:      title,
		Priority:   priority,
		Tags:       d.Tags,
		Subtasks:   d.Subtasks,
		Recurrence: d.Recurrence,
		UserID:     sess.User.ID,
	}
	if d.DueDate != "" {
		due := d.DueDate
		row.DueDate = &due
	}
	if d.Note != "" {
		note := d.Note
		row.Note = &note
	}

	created, err := s.rows.InsertTask(ctx, row, uuid.NewString())
	if err != nil {
		s.logger.Error("failed to create task", zap.Error(err))
		s.noteAuthFailure(err)
		return model.Task{}, err
	}

	s.mu.Lock()
	s.tasks = append([]model.Task{created}, s.tasks...)
	s.mu.Unlock()
	return created, nil
}

// Toggle flips a task's completion flag and replaces the local entry with
// the row the service returns. On failure the local entry is untouched.
func (s *Store) Toggle(ctx context.Context, id string) (model.Task, error) {
	s.mu.Lock()
	if _, busy := s.inflight[id]; busy {
		s.mu.Unlock()
		return model.Task{}, ErrBusy
	}
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return model.Task{}, remote.ErrNotFound
	}
	next := !bool(s.tasks[idx].Completed)
	s.inflight[id] = struct{}{}
	s.mu.Unlock()
	defer s.release(id)

	updated, err := s.rows.UpdateTask(ctx, id, remote.TaskPatch{Completed: &next})
	if err != nil {
		s.logger.Error("failed to toggle task", zap.String("id", id), zap.Error(err))
		s.noteAuthFailure(err)
		return model.Task{}, err
	}

	s.mu.Lock()
	if i := s.indexLocked(id); i >= 0 {
		s.tasks[i] = updated
	}
	s.mu.Unlock()
	return updated, nil
}

// Delete removes a task remotely, then drops exactly the matching entry
// from the local list, preserving the order of the rest.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, busy := s.inflight[id]; busy {
		s.mu.Unlock()
		return ErrBusy
	}
	s.inflight[id] = struct{}{}
	s.mu.Unlock()
	defer s.release(id)

	if err := s.rows.DeleteTask(ctx, id); err != nil {
		s.logger.Error("failed to delete task", zap.String("id", id), zap.Error(err))
		s.noteAuthFailure(err)
		return err
	}

	s.mu.Lock()
	if i := s.indexLocked(id); i >= 0 {
		s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	}
	s.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the local list.
func (s *Store) Snapshot() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Reset discards all local task state, typically on session invalidation.
func (s *Store) Reset() {
	s.mu.Lock()
	s.tasks = nil
	s.mu.Unlock()
}

func (s *Store) indexLocked(id string) int {
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) release(id string) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

// noteAuthFailure turns a rejected token into a session invalidation so the
// session guard reacts on the next request.
func (s *Store) noteAuthFailure(err error) {
	if errors.Is(err, remote.ErrUnauthorized) {
		s.sessions.Invalidate("remote call unauthorized")
	}
}
