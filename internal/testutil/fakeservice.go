// Package testutil provides an in-memory fake of the hosted backend for
// tests: the auth surface and the tasks row-CRUD surface, behind a real
// HTTP server.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/taskpage/taskpage/internal/model"
)

type FakeService struct {
	mu         sync.Mutex
	passwords  map[string]string // email -> password
	userIDs    map[string]string // email -> user id
	tokens     map[string]string // access token -> user id
	refreshes  map[string]string // refresh token -> email
	rows       map[string]model.Task
	idempotent map[string]string // idempotency key -> row id
	nextUser   int
	nextRow    int
	nextToken  int
	clock      time.Time

	delay      time.Duration
	rowsStatus int
	rowsMsg    string

	Server *httptest.Server
}

func NewFakeService(t *testing.T) *FakeService {
	t.Helper()
	f := &FakeService{
		passwords:  make(map[string]string),
		userIDs:    make(map[string]string),
		tokens:     make(map[string]string),
		refreshes:  make(map[string]string),
		rows:       make(map[string]model.Task),
		idempotent: make(map[string]string),
		clock:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/signup", f.handleSignUp)
	mux.HandleFunc("POST /auth/v1/token", f.handleToken)
	mux.HandleFunc("POST /auth/v1/logout", f.handleLogout)
	mux.HandleFunc("GET /auth/v1/user", f.handleUser)
	mux.HandleFunc("/rest/v1/tasks", f.handleRows)

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

func (f *FakeService) URL() string { return f.Server.URL }

// AddUser registers an account without going through the signup endpoint.
func (f *FakeService) AddUser(email, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addUserLocked(email, password)
}

// SetDelay makes every rows request sleep first, for in-flight guard tests.
func (f *FakeService) SetDelay(d time.Duration) {
	f.mu.Lock()
	f.delay = d
	f.mu.Unlock()
}

// FailRows makes every subsequent rows request fail with the given status
// until cleared with FailRows(0, "").
func (f *FakeService) FailRows(status int, msg string) {
	f.mu.Lock()
	f.rowsStatus = status
	f.rowsMsg = msg
	f.mu.Unlock()
}

// RevokeAll invalidates every issued token, simulating remote revocation.
func (f *FakeService) RevokeAll() {
	f.mu.Lock()
	f.tokens = make(map[string]string)
	f.refreshes = make(map[string]string)
	f.mu.Unlock()
}

func (f *FakeService) TaskCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *FakeService) addUserLocked(email, password string) string {
	f.nextUser++
	id := fmt.Sprintf("user-%d", f.nextUser)
	f.passwords[email] = password
	f.userIDs[email] = id
	return id
}

func (f *FakeService) issueSessionLocked(email string) map[string]any {
	f.nextToken++
	access := fmt.Sprintf("access-%d", f.nextToken)
	refresh := fmt.Sprintf("refresh-%d", f.nextToken)
	f.tokens[access] = f.userIDs[email]
	f.refreshes[refresh] = email
	return map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"expires_in":    3600,
		"user":          map[string]string{"id": f.userIDs[email], "email": email},
	}
}

func (f *FakeService) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var creds struct{ Email, Password string }
	json.NewDecoder(r.Body).Decode(&creds)

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.passwords[creds.Email]; exists {
		writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "User already registered"})
		return
	}
	f.addUserLocked(creds.Email, creds.Password)
	writeJSON(w, http.StatusOK, f.issueSessionLocked(creds.Email))
}

func (f *FakeService) handleToken(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email, Password string
		RefreshToken    string `json:"refresh_token"`
	}
	json.NewDecoder(r.Body).Decode(&creds)

	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.URL.Query().Get("grant_type") {
	case "refresh_token":
		email, ok := f.refreshes[creds.RefreshToken]
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error_description": "Invalid refresh token"})
			return
		}
		delete(f.refreshes, creds.RefreshToken)
		writeJSON(w, http.StatusOK, f.issueSessionLocked(email))
	default:
		if pw, ok := f.passwords[creds.Email]; !ok || pw != creds.Password {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error_description": "Invalid login credentials"})
			return
		}
		writeJSON(w, http.StatusOK, f.issueSessionLocked(creds.Email))
	}
}

func (f *FakeService) handleLogout(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	delete(f.tokens, bearer(r))
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeService) handleUser(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.tokens[bearer(r)]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "Invalid token"})
		return
	}
	for email, id := range f.userIDs {
		if id == userID {
			writeJSON(w, http.StatusOK, map[string]string{"id": id, "email": email})
			return
		}
	}
	writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "Unknown user"})
}

func (f *FakeService) handleRows(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	delay := f.delay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.rowsStatus != 0 {
		writeJSON(w, f.rowsStatus, map[string]string{"message": f.rowsMsg})
		return
	}
	userID, ok := f.tokens[bearer(r)]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "JWT is invalid"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, f.visibleLocked(userID))
	case http.MethodPost:
		var row model.Task
		json.NewDecoder(r.Body).Decode(&row)

		if key := r.Header.Get("Idempotency-Key"); key != "" {
			if id, seen := f.idempotent[key]; seen {
				writeJSON(w, http.StatusCreated, []model.Task{f.rows[id]})
				return
			}
		}
		f.nextRow++
		row.ID = fmt.Sprintf("task-%d", f.nextRow)
		row.UserID = userID
		row.CreatedAt = f.clock.Format(time.RFC3339)
		f.clock = f.clock.Add(time.Second)
		f.rows[row.ID] = row
		if key := r.Header.Get("Idempotency-Key"); key != "" {
			f.idempotent[key] = row.ID
		}
		writeJSON(w, http.StatusCreated, []model.Task{row})
	case http.MethodPatch:
		id := rowID(r)
		row, ok := f.rows[id]
		if !ok || row.UserID != userID {
			writeJSON(w, http.StatusOK, []model.Task{})
			return
		}
		var patch struct {
			Completed *bool `json:"completed"`
		}
		json.NewDecoder(r.Body).Decode(&patch)
		if patch.Completed != nil {
			row.Completed = model.Flag(*patch.Completed)
		}
		f.rows[id] = row
		writeJSON(w, http.StatusOK, []model.Task{row})
	case http.MethodDelete:
		id := rowID(r)
		row, ok := f.rows[id]
		if !ok || row.UserID != userID {
			writeJSON(w, http.StatusOK, []model.Task{})
			return
		}
		delete(f.rows, id)
		writeJSON(w, http.StatusOK, []model.Task{row})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// visibleLocked applies the per-user row ownership policy and the
// created_at ordering the client asks for.
func (f *FakeService) visibleLocked(userID string) []model.Task {
	out := make([]model.Task, 0, len(f.rows))
	for _, row := range f.rows {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out
}

func rowID(r *http.Request) string {
	return strings.TrimPrefix(r.URL.Query().Get("id"), "eq.")
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}
