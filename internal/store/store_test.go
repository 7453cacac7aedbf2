package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taskpage/taskpage/internal/model"
	"github.com/taskpage/taskpage/internal/remote"
)

// MockRowsAPI fakes the remote rows surface.
type MockRowsAPI struct {
	mock.Mock
}

func (m *MockRowsAPI) SelectTasks(ctx context.Context) ([]model.Task, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Task), args.Error(1)
}

func (m *MockRowsAPI) InsertTask(ctx context.Context, row model.Task, idempKey string) (model.Task, error) {
	args := m.Called(ctx, row, idempKey)
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockRowsAPI) UpdateTask(ctx context.Context, id string, patch remote.TaskPatch) (model.Task, error) {
	args := m.Called(ctx, id, patch)
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockRowsAPI) DeleteTask(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type fakeSessions struct {
	mu          sync.Mutex
	sess        *remote.Session
	invalidated []string
}

func signedIn() *fakeSessions {
	return &fakeSessions{sess: &remote.Session{User: remote.User{ID: "user-1", Email: "u@example.com"}}}
}

func (f *fakeSessions) Current() *remote.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sess
}

func (f *fakeSessions) Invalidate(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sess = nil
	f.invalidated = append(f.invalidated, reason)
}

func seed(s *Store, tasks ...model.Task) {
	s.mu.Lock()
	s.tasks = tasks
	s.mu.Unlock()
}

func TestStore_Create(t *testing.T) {
	tests := []struct {
		name      string
		draft     model.Draft
		sessions  *fakeSessions
		setupMock func(*MockRowsAPI)
		wantErr   error
	}{
		{
			name:      "empty title",
			draft:     model.Draft{Title: ""},
			sessions:  signedIn(),
			setupMock: func(m *MockRowsAPI) {},
			wantErr:   ErrEmptyTitle,
		},
		{
			name:      "whitespace title",
			draft:     model.Draft{Title: "   \t"},
			sessions:  signedIn(),
			setupMock: func(m *MockRowsAPI) {},
			wantErr:   ErrEmptyTitle,
		},
		{
			name:      "no session",
			draft:     model.Draft{Title: "Buy milk"},
			sessions:  &fakeSessions{},
			setupMock: func(m *MockRowsAPI) {},
			wantErr:   remote.ErrNoSession,
		},
		{
			name:     "defaults priority to medium and sends the owner",
			draft:    model.Draft{Title: "  Buy milk  "},
			sessions: signedIn(),
			setupMock: func(m *MockRowsAPI) {
				m.On("InsertTask", mock.Anything, mock.MatchedBy(func(row model.Task) bool {
					return row.Title == "Buy milk" &&
						row.Priority == model.PriorityMedium &&
						row.UserID == "user-1" &&
						row.DueDate == nil
				}), mock.MatchedBy(func(key string) bool { return key != "" })).
					Return(model.Task{ID: "task-1", Title: "Buy milk", Priority: model.PriorityMedium}, nil)
			},
		},
		{
			name: "full draft",
			draft: model.Draft{
				Title:      "Plan trip",
				DueDate:    "2024-06-01",
				Note:       "bring maps",
				Priority:   model.PriorityHigh,
				Tags:       []string{"travel"},
				Subtasks:   []string{"book hotel"},
				Recurrence: model.RecurrenceMonthly,
			},
			sessions: signedIn(),
			setupMock: func(m *MockRowsAPI) {
				m.On("InsertTask", mock.Anything, mock.MatchedBy(func(row model.Task) bool {
					return row.Title == "Plan trip" &&
						row.Priority == model.PriorityHigh &&
						row.DueDate != nil && *row.DueDate == "2024-06-01" &&
						row.Note != nil && *row.Note == "bring maps" &&
						len(row.Tags) == 1 && row.Recurrence == model.RecurrenceMonthly
				}), mock.Anything).
					Return(model.Task{ID: "task-2", Title: "Plan trip"}, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRows := new(MockRowsAPI)
			tt.setupMock(mockRows)

			s := New(mockRows, tt.sessions, zap.NewNop())
			created, err := s.Create(context.Background(), tt.draft)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, s.Snapshot(), "failed create must not touch the list")
			} else {
				require.NoError(t, err)
				assert.NotEmpty(t, created.ID)

				// The service row is prepended.
				snap := s.Snapshot()
				require.NotEmpty(t, snap)
				assert.Equal(t, created.ID, snap[0].ID)
			}
			mockRows.AssertExpectations(t)
		})
	}
}

func TestStore_CreateFailureLeavesListAlone(t *testing.T) {
	mockRows := new(MockRowsAPI)
	mockRows.On("InsertTask", mock.Anything, mock.Anything, mock.Anything).
		Return(model.Task{}, errors.New("boom"))

	s := New(mockRows, signedIn(), zap.NewNop())
	seed(s, model.Task{ID: "task-1", Title: "existing"})

	_, err := s.Create(context.Background(), model.Draft{Title: "new"})
	require.Error(t, err)

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "task-1", snap[0].ID)
}

func TestStore_ToggleRoundTrip(t *testing.T) {
	mockRows := new(MockRowsAPI)
	// The fake service just echoes the patch back onto the row.
	current := model.Task{ID: "task-1", Title: "A", Priority: model.PriorityLow}
	mockRows.On("UpdateTask", mock.Anything, "task-1", mock.Anything).
		Return(model.Task{ID: "task-1", Title: "A", Priority: model.PriorityLow, Completed: true}, nil).Once()
	mockRows.On("UpdateTask", mock.Anything, "task-1", mock.Anything).
		Return(model.Task{ID: "task-1", Title: "A", Priority: model.PriorityLow, Completed: false}, nil).Once()

	s := New(mockRows, signedIn(), zap.NewNop())
	seed(s, current)

	first, err := s.Toggle(context.Background(), "task-1")
	require.NoError(t, err)
	assert.True(t, bool(first.Completed))

	second, err := s.Toggle(context.Background(), "task-1")
	require.NoError(t, err)

	// Two toggles return the task to its original state, identity and
	// attributes unchanged.
	assert.Equal(t, current, second)
	mockRows.AssertExpectations(t)
}

func TestStore_ToggleSendsFlippedFlag(t *testing.T) {
	mockRows := new(MockRowsAPI)
	mockRows.On("UpdateTask", mock.Anything, "task-1", mock.MatchedBy(func(p remote.TaskPatch) bool {
		return p.Completed != nil && *p.Completed == true
	})).Return(model.Task{ID: "task-1", Completed: true}, nil)

	s := New(mockRows, signedIn(), zap.NewNop())
	seed(s, model.Task{ID: "task-1"})

	_, err := s.Toggle(context.Background(), "task-1")
	require.NoError(t, err)
	mockRows.AssertExpectations(t)
}

func TestStore_ToggleFailureKeepsLocalState(t *testing.T) {
	mockRows := new(MockRowsAPI)
	mockRows.On("UpdateTask", mock.Anything, "task-1", mock.Anything).
		Return(model.Task{}, errors.New("network down"))

	s := New(mockRows, signedIn(), zap.NewNop())
	seed(s, model.Task{ID: "task-1", Title: "A"})

	_, err := s.Toggle(context.Background(), "task-1")
	require.Error(t, err)

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.False(t, bool(snap[0].Completed), "no optimistic mutation happened, so nothing to revert")
}

func TestStore_ToggleUnknownTask(t *testing.T) {
	s := New(new(MockRowsAPI), signedIn(), zap.NewNop())
	_, err := s.Toggle(context.Background(), "ghost")
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestStore_Delete(t *testing.T) {
	mockRows := new(MockRowsAPI)
	mockRows.On("DeleteTask", mock.Anything, "task-2").Return(nil)

	s := New(mockRows, signedIn(), zap.NewNop())
	seed(s,
		model.Task{ID: "task-3", Title: "C"},
		model.Task{ID: "task-2", Title: "B"},
		model.Task{ID: "task-1", Title: "A"},
	)

	require.NoError(t, s.Delete(context.Background(), "task-2"))

	// Exactly one entry removed, order of the rest preserved.
	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "task-3", snap[0].ID)
	assert.Equal(t, "task-1", snap[1].ID)
}

func TestStore_DeleteFailureKeepsTask(t *testing.T) {
	mockRows := new(MockRowsAPI)
	mockRows.On("DeleteTask", mock.Anything, "task-1").Return(errors.New("boom"))

	s := New(mockRows, signedIn(), zap.NewNop())
	seed(s, model.Task{ID: "task-1"})

	require.Error(t, s.Delete(context.Background(), "task-1"))
	assert.Len(t, s.Snapshot(), 1)
}

func TestStore_InFlightGuard(t *testing.T) {
	started := make(chan struct{})
	finish := make(chan struct{})

	mockRows := new(MockRowsAPI)
	mockRows.On("UpdateTask", mock.Anything, "task-1", mock.Anything).
		Run(func(args mock.Arguments) {
			close(started)
			<-finish
		}).
		Return(model.Task{ID: "task-1", Completed: true}, nil)

	s := New(mockRows, signedIn(), zap.NewNop())
	seed(s, model.Task{ID: "task-1"})

	done := make(chan error, 1)
	go func() {
		_, err := s.Toggle(context.Background(), "task-1")
		done <- err
	}()

	<-started
	// Second mutation on the same id while the first is unresolved.
	_, err := s.Toggle(context.Background(), "task-1")
	assert.ErrorIs(t, err, ErrBusy)
	err = s.Delete(context.Background(), "task-1")
	assert.ErrorIs(t, err, ErrBusy)

	close(finish)
	require.NoError(t, <-done)

	// Guard released after resolution.
	mockRows.On("DeleteTask", mock.Anything, "task-1").Return(nil)
	assert.NoError(t, s.Delete(context.Background(), "task-1"))
}

func TestStore_LoadFailureLeavesListEmpty(t *testing.T) {
	mockRows := new(MockRowsAPI)
	mockRows.On("SelectTasks", mock.Anything).Return([]model.Task{}, errors.New("boom"))

	s := New(mockRows, signedIn(), zap.NewNop())
	seed(s, model.Task{ID: "stale"})

	require.Error(t, s.Load(context.Background()))
	assert.Empty(t, s.Snapshot())
}

func TestStore_UnauthorizedInvalidatesSession(t *testing.T) {
	mockRows := new(MockRowsAPI)
	mockRows.On("SelectTasks", mock.Anything).
		Return([]model.Task{}, &remote.Error{Status: 401, Message: "JWT expired"})

	sessions := signedIn()
	s := New(mockRows, sessions, zap.NewNop())

	require.Error(t, s.Load(context.Background()))
	assert.Nil(t, sessions.Current())
	assert.NotEmpty(t, sessions.invalidated)
}

func TestStore_Reset(t *testing.T) {
	s := New(new(MockRowsAPI), signedIn(), zap.NewNop())
	seed(s, model.Task{ID: "task-1"})

	s.Reset()
	assert.Empty(t, s.Snapshot())
}
