package model

import (
	"bytes"
	"strings"
)

// Priority levels as stored by the remote service.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank orders priorities for sorting: High=1, Medium=2, Low=3.
// Unknown or missing values rank with Low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

// ParsePriority maps free-form input to a Priority, defaulting to Medium.
func ParsePriority(s string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityLow:
		return PriorityLow
	case PriorityHigh:
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

// Recurrence intervals supported by the creation form.
type Recurrence string

const (
	RecurrenceNone    Recurrence = ""
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

// ParseRecurrence maps free-form input to a Recurrence. Unknown values
// mean no recurrence.
func ParseRecurrence(s string) Recurrence {
	switch Recurrence(strings.ToLower(strings.TrimSpace(s))) {
	case RecurrenceDaily:
		return RecurrenceDaily
	case RecurrenceWeekly:
		return RecurrenceWeekly
	case RecurrenceMonthly:
		return RecurrenceMonthly
	default:
		return RecurrenceNone
	}
}

// Flag is a completion flag that survives sloppy values from the remote
// service: null, numbers and string booleans all decode to a strict bool.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", `"true"`, "1":
		*f = true
	default:
		*f = false
	}
	return nil
}

// Task is one row of the remote tasks collection. Timestamps and due dates
// stay ISO text because list ordering compares them lexically.
type Task struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	DueDate    *string    `json:"due_date,omitempty"`
	Note       *string    `json:"note,omitempty"`
	Priority   Priority   `json:"priority"`
	Completed  Flag       `json:"completed"`
	Tags       []string   `json:"tags,omitempty"`
	Subtasks   []string   `json:"subtasks,omitempty"`
	Recurrence Recurrence `json:"recurrence,omitempty"`
	UserID     string     `json:"user_id,omitempty"`
	CreatedAt  string     `json:"created_at,omitempty"`
}

// Due returns the due date or empty when absent.
func (t Task) Due() string {
	if t.DueDate == nil {
		return ""
	}
	return *t.DueDate
}

// Draft is the client-side shape assembled by the creation form. Everything
// except the title is optional.
type Draft struct {
	Title      string     `json:"title"`
	DueDate    string     `json:"due_date,omitempty"`
	Note       string     `json:"note,omitempty"`
	Priority   Priority   `json:"priority,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	Subtasks   []string   `json:"subtasks,omitempty"`
	Recurrence Recurrence `json:"recurrence,omitempty"`
}
