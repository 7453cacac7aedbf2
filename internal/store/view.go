package store

import (
	"sort"

	"github.com/taskpage/taskpage/internal/model"
)

// Filter selects which tasks a view shows.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterCompleted Filter = "completed"
	FilterPending   Filter = "pending"
)

func ParseFilter(s string) Filter {
	switch Filter(s) {
	case FilterCompleted:
		return FilterCompleted
	case FilterPending:
		return FilterPending
	default:
		return FilterAll
	}
}

// Sort selects the view's ordering.
type Sort string

const (
	SortNewest   Sort = "newest"
	SortDue      Sort = "due"
	SortPriority Sort = "priority"
)

func ParseSort(s string) Sort {
	switch Sort(s) {
	case SortDue:
		return SortDue
	case SortPriority:
		return SortPriority
	default:
		return SortNewest
	}
}

// ApplyView derives the visible list from the full task list. Pure: the
// input is never mutated and the result is a fresh slice. Sorts are stable,
// so equal-ranked tasks keep their relative order.
func ApplyView(tasks []model.Task, f Filter, s Sort) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		done := bool(t.Completed)
		switch f {
		case FilterCompleted:
			if !done {
				continue
			}
		case FilterPending:
			if done {
				continue
			}
		}
		out = append(out, t)
	}

	switch s {
	case SortDue:
		// A task with no due date always sorts after every task that has
		// one; two absences keep their relative order.
		sort.SliceStable(out, func(i, j int) bool {
			di, dj := out[i].Due(), out[j].Due()
			if di == "" {
				return false
			}
			if dj == "" {
				return true
			}
			return di < dj
		})
	case SortPriority:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Priority.Rank() < out[j].Priority.Rank()
		})
	default:
		// Newest: descending lexical comparison of creation timestamps;
		// missing timestamps compare as empty and land last.
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt > out[j].CreatedAt
		})
	}
	return out
}
