package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/taskpage/taskpage/internal/handler"
	"github.com/taskpage/taskpage/internal/model"
	"github.com/taskpage/taskpage/internal/remote"
	"github.com/taskpage/taskpage/internal/store"
	"github.com/taskpage/taskpage/internal/testutil"
	"github.com/taskpage/taskpage/internal/wizard"
)

// app wires the whole stack against a fake remote service, the same way
// cmd/app does against the real one.
type app struct {
	Server   *httptest.Server
	Fake     *testutil.FakeService
	Store    *store.Store
	Sessions *remote.SessionManager
	Client   *http.Client
}

func setupApp(t *testing.T) *app {
	t.Helper()

	fake := testutil.NewFakeService(t)
	logger := zap.NewNop()

	auth := remote.NewAuthClient(fake.URL(), "test-key", logger)
	sessions := remote.NewSessionManager(auth, logger)
	t.Cleanup(sessions.Close)

	rows := remote.NewRowsClient(fake.URL(), "test-key",
		oauth2.NewClient(context.Background(), sessions), logger)
	taskStore := store.New(rows, sessions, logger)

	changes, release := sessions.Subscribe()
	t.Cleanup(release)
	go func() {
		for ev := range changes {
			if ev.Session == nil {
				taskStore.Reset()
			}
		}
	}()

	h := handler.New(taskStore, sessions, wizard.New(), logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Mount("/", h.Routes())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &app{
		Server:   srv,
		Fake:     fake,
		Store:    taskStore,
		Sessions: sessions,
		Client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (a *app) signUp(t *testing.T, email, password string) {
	t.Helper()
	resp, err := a.Client.PostForm(a.Server.URL+"/signup", url.Values{
		"email":    {email},
		"password": {password},
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

// api performs a JSON request and returns the response; callers close the body.
func (a *app) api(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.Server.URL+path, buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := a.Client.Do(req)
	require.NoError(t, err)
	return resp
}

func (a *app) createTask(t *testing.T, draft model.Draft) model.Task {
	t.Helper()
	resp := a.api(t, http.MethodPost, "/api/tasks", draft)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var task model.Task
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&task))
	return task
}

func (a *app) listTasks(t *testing.T, query string) []model.Task {
	t.Helper()
	resp := a.api(t, http.MethodGet, "/api/tasks"+query, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tasks []model.Task
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tasks))
	return tasks
}

func titles(tasks []model.Task) []string {
	out := make([]string, len(tasks))
	for i, task := range tasks {
		out[i] = task.Title
	}
	return out
}
