// Package wizard holds the three-step task-creation form state machine.
// Transitions are linear: Back and Next move between steps without touching
// collected values, and submission is only possible from the final step.
package wizard

import (
	"errors"
	"strings"
	"sync"

	"github.com/taskpage/taskpage/internal/model"
)

const (
	StepBasics   = 1
	StepSchedule = 2
	StepExtras   = 3
)

var (
	ErrEmptyTitle = errors.New("title must not be empty")
	ErrNotFinal   = errors.New("submit is only available on the final step")
)

// State is a snapshot of the wizard for rendering.
type State struct {
	Step       int
	Title      string
	Priority   model.Priority
	DueDate    string
	Note       string
	Tags       string
	Subtasks   string
	Recurrence model.Recurrence
}

type Wizard struct {
	mu sync.Mutex
	st State
}

func New() *Wizard {
	return &Wizard{st: State{Step: StepBasics, Priority: model.PriorityMedium}}
}

func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.st
}

func (w *Wizard) Step() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.st.Step
}

// Next advances one step, clamped at the final step.
func (w *Wizard) Next() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.st.Step < StepExtras {
		w.st.Step++
	}
}

// Back retreats one step, clamped at the first.
func (w *Wizard) Back() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.st.Step > StepBasics {
		w.st.Step--
	}
}

func (w *Wizard) SetBasics(title string, p model.Priority) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.st.Title = title
	w.st.Priority = p
}

func (w *Wizard) SetSchedule(dueDate, note string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.st.DueDate = dueDate
	w.st.Note = note
}

func (w *Wizard) SetExtras(tags, subtasks string, r model.Recurrence) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.st.Tags = tags
	w.st.Subtasks = subtasks
	w.st.Recurrence = r
}

// Submit assembles the draft. On any error the step and collected values
// are left exactly as they were, so the user can fix and retry.
func (w *Wizard) Submit() (model.Draft, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.st.Step != StepExtras {
		return model.Draft{}, ErrNotFinal
	}
	title := strings.TrimSpace(w.st.Title)
	if title == "" {
		return model.Draft{}, ErrEmptyTitle
	}

	return model.Draft{
		Title:      title,
		DueDate:    strings.TrimSpace(w.st.DueDate),
		Note:       strings.TrimSpace(w.st.Note),
		Priority:   w.st.Priority,
		Tags:       splitList(w.st.Tags),
		Subtasks:   splitList(w.st.Subtasks),
		Recurrence: w.st.Recurrence,
	}, nil
}

// Reset clears all values and returns to the first step.
func (w *Wizard) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.st = State{Step: StepBasics, Priority: model.PriorityMedium}
}

// splitList parses comma-separated text, trimming items and dropping
// empties. Returns nil for all-blank input.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if item := strings.TrimSpace(part); item != "" {
			out = append(out, item)
		}
	}
	return out
}
