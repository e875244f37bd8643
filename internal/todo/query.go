package todo

import (
	"sort"
	"time"
)

// Filter selects todos for listing. Zero values match everything.
type Filter struct {
	Completed *bool
	Priority  Priority
	Overdue   *bool
	Tags      []string // matches todos carrying any of these
}

// IsOverdue reports whether t is open and its due date is before the
// calendar day of now, read in now's own location.
func IsOverdue(t Todo, now time.Time) bool {
	if t.Completed || t.DueDate == "" {
		return false
	}
	return t.DueDate < now.Format(dateLayout)
}

// FilterTodos returns the todos matching f, in input order
func FilterTodos(todos []Todo, f Filter, now time.Time) []Todo {
	out := make([]Todo, 0, len(todos))
	for _, t := range todos {
		if f.Completed != nil && t.Completed != *f.Completed {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		if f.Overdue != nil && IsOverdue(t, now) != *f.Overdue {
			continue
		}
		if len(f.Tags) > 0 && !hasAnyTag(t, f.Tags) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func hasAnyTag(t Todo, tags []string) bool {
	for _, want := range tags {
		for _, have := range t.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// SortTodos orders todos in place: open before completed, then high priority
// first, then earliest due date with undated last, then newest first.
func SortTodos(todos []Todo) {
	sort.SliceStable(todos, func(i, j int) bool {
		a, b := todos[i], todos[j]
		if a.Completed != b.Completed {
			return !a.Completed
		}
		if ra, rb := a.Priority.rank(), b.Priority.rank(); ra != rb {
			return ra > rb
		}
		if a.DueDate != b.DueDate {
			if a.DueDate == "" {
				return false
			}
			if b.DueDate == "" {
				return true
			}
			return a.DueDate < b.DueDate
		}
		return b.CreatedAt.Before(a.CreatedAt)
	})
}

// ComputeStats summarizes todos as of now
func ComputeStats(todos []Todo, now time.Time) Stats {
	var s Stats
	s.Total = len(todos)
	for _, t := range todos {
		if t.Completed {
			s.Completed++
		}
		if IsOverdue(t, now) {
			s.Overdue++
		}
		switch t.Priority {
		case PriorityHigh:
			s.ByPriority.High++
		case PriorityLow:
			s.ByPriority.Low++
		default:
			s.ByPriority.Medium++
		}
	}
	return s
}
