package remote

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/taskpage/taskpage/internal/model"
)

// User identifies the owner of the current session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the credential pair issued by the remote service. The token is
// opaque to everything above this package.
type Session struct {
	Token oauth2.Token
	User  User
}

// AuthAPI is the remote service's session surface.
type AuthAPI interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
	User(ctx context.Context, accessToken string) (*User, error)
}

// RowsAPI is the remote service's row-CRUD surface over the tasks
// collection. Row ownership is enforced server side; SelectTasks issues an
// unfiltered query and sees only the current user's rows.
type RowsAPI interface {
	SelectTasks(ctx context.Context) ([]model.Task, error)
	InsertTask(ctx context.Context, row model.Task, idempKey string) (model.Task, error)
	UpdateTask(ctx context.Context, id string, patch TaskPatch) (model.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// TaskPatch is a partial row update. Only non-nil fields are sent.
type TaskPatch struct {
	Completed *bool `json:"completed,omitempty"`
}
