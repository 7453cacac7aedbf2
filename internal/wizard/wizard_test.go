package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskpage/taskpage/internal/model"
)

func TestWizard_Transitions(t *testing.T) {
	w := New()
	assert.Equal(t, StepBasics, w.Step())

	// Back clamps at the first step.
	w.Back()
	assert.Equal(t, StepBasics, w.Step())

	w.Next()
	assert.Equal(t, StepSchedule, w.Step())
	w.Next()
	assert.Equal(t, StepExtras, w.Step())

	// Next clamps at the final step.
	w.Next()
	assert.Equal(t, StepExtras, w.Step())

	w.Back()
	assert.Equal(t, StepSchedule, w.Step())
}

func TestWizard_NavigationKeepsValues(t *testing.T) {
	w := New()
	w.SetBasics("Write report", model.PriorityHigh)
	w.Next()
	w.SetSchedule("2024-05-01", "for the board")
	w.Next()
	w.SetExtras("work, q2", "outline, draft", model.RecurrenceWeekly)

	w.Back()
	w.Back()
	w.Next()
	w.Next()

	st := w.State()
	assert.Equal(t, "Write report", st.Title)
	assert.Equal(t, model.PriorityHigh, st.Priority)
	assert.Equal(t, "2024-05-01", st.DueDate)
	assert.Equal(t, "for the board", st.Note)
	assert.Equal(t, "work, q2", st.Tags)
	assert.Equal(t, "outline, draft", st.Subtasks)
	assert.Equal(t, model.RecurrenceWeekly, st.Recurrence)
}

func TestWizard_SubmitOnlyOnFinalStep(t *testing.T) {
	w := New()
	w.SetBasics("Something", model.PriorityMedium)

	_, err := w.Submit()
	assert.ErrorIs(t, err, ErrNotFinal)
	assert.Equal(t, StepBasics, w.Step())
}

func TestWizard_SubmitEmptyTitle(t *testing.T) {
	w := New()
	w.SetBasics("   ", model.PriorityLow)
	w.Next()
	w.Next()
	w.SetExtras("a, b", "", model.RecurrenceNone)

	_, err := w.Submit()
	assert.ErrorIs(t, err, ErrEmptyTitle)

	// The step and collected values survive a failed submit.
	st := w.State()
	assert.Equal(t, StepExtras, st.Step)
	assert.Equal(t, "a, b", st.Tags)
}

func TestWizard_SubmitAssemblesDraft(t *testing.T) {
	w := New()
	w.SetBasics("  Pack bags  ", model.PriorityHigh)
	w.Next()
	w.SetSchedule("2024-07-01", " passports ")
	w.Next()
	w.SetExtras("travel, summer,", " check in ,, print tickets ", model.RecurrenceNone)

	draft, err := w.Submit()
	require.NoError(t, err)

	assert.Equal(t, model.Draft{
		Title:      "Pack bags",
		DueDate:    "2024-07-01",
		Note:       "passports",
		Priority:   model.PriorityHigh,
		Tags:       []string{"travel", "summer"},
		Subtasks:   []string{"check in", "print tickets"},
		Recurrence: model.RecurrenceNone,
	}, draft)
}

func TestWizard_SubmitWithOnlyTitle(t *testing.T) {
	w := New()
	w.SetBasics("Minimal", model.PriorityMedium)
	w.Next()
	w.Next()

	draft, err := w.Submit()
	require.NoError(t, err)

	assert.Equal(t, "Minimal", draft.Title)
	assert.Equal(t, model.PriorityMedium, draft.Priority)
	assert.Empty(t, draft.DueDate)
	assert.Nil(t, draft.Tags)
	assert.Nil(t, draft.Subtasks)
}

func TestWizard_Reset(t *testing.T) {
	w := New()
	w.SetBasics("Old", model.PriorityLow)
	w.Next()
	w.Next()

	w.Reset()

	st := w.State()
	assert.Equal(t, StepBasics, st.Step)
	assert.Empty(t, st.Title)
	assert.Equal(t, model.PriorityMedium, st.Priority)
}
