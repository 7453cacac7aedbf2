package remote

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoSession is returned when an operation needs an active session
	// and none exists.
	ErrNoSession = errors.New("no active session")

	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

// Error carries the status and human-readable message returned by the
// remote service.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("remote service: %d %s", e.Status, e.Message)
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}
