package todo

import (
	"fmt"
	"strings"
	"time"
)

// CurrentVersion is the on-disk format version written by this store
const CurrentVersion = "1.0.0"

// Field limits
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
	MaxTags              = 10
	MaxTagLength         = 50
)

// Priority is the urgency of a todo
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// IsValid reports whether p is one of the known priorities
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// rank orders priorities for sorting, high first
func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityLow:
		return 1
	default:
		return 2
	}
}

// Todo is a single task record
type Todo struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   Timestamp `json:"createdAt"`
	UpdatedAt   Timestamp `json:"updatedAt"`
	DueDate     string    `json:"dueDate,omitempty"` // YYYY-MM-DD
	Priority    Priority  `json:"priority"`
	Tags        []string  `json:"tags"`
}

// clone returns a copy that shares no slices with t
func (t Todo) clone() Todo {
	c := t
	c.Tags = make([]string, len(t.Tags))
	copy(c.Tags, t.Tags)
	return c
}

// Metadata describes the persisted list. Counts are derived, never authoritative.
type Metadata struct {
	Version        string    `json:"version"`
	LastModified   Timestamp `json:"lastModified"`
	TotalCount     int       `json:"totalCount"`
	CompletedCount int       `json:"completedCount"`
}

// TodoList is the aggregate written to the store file
type TodoList struct {
	Todos    []Todo   `json:"todos"`
	Metadata Metadata `json:"metadata"`
}

// newTodoList builds a list around todos with freshly derived metadata
func newTodoList(todos []Todo, now time.Time) TodoList {
	if todos == nil {
		todos = []Todo{}
	}
	list := TodoList{
		Todos: todos,
		Metadata: Metadata{
			Version:      CurrentVersion,
			LastModified: NewTimestamp(now),
		},
	}
	list.recount()
	return list
}

// recount recomputes the derived counts from the live todos
func (l *TodoList) recount() {
	l.Metadata.TotalCount = len(l.Todos)
	completed := 0
	for _, t := range l.Todos {
		if t.Completed {
			completed++
		}
	}
	l.Metadata.CompletedCount = completed
}

// clone deep-copies the list
func (l TodoList) clone() TodoList {
	c := TodoList{Metadata: l.Metadata, Todos: make([]Todo, len(l.Todos))}
	for i, t := range l.Todos {
		c.Todos[i] = t.clone()
	}
	return c
}

// Update carries the fields of a partial update. Nil fields are left alone.
// ID and CreatedAt are immutable and have no field here.
type Update struct {
	Title       *string   `mapstructure:"title"`
	Description *string   `mapstructure:"description"`
	Completed   *bool     `mapstructure:"completed"`
	DueDate     *string   `mapstructure:"dueDate"` // "" clears the due date
	Priority    *Priority `mapstructure:"priority"`
	Tags        *[]string `mapstructure:"tags"`
}

// IsEmpty reports whether the update changes nothing besides updatedAt
func (u Update) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Completed == nil &&
		u.DueDate == nil && u.Priority == nil && u.Tags == nil
}

// Fields lists the names of the supplied fields, for logging
func (u Update) Fields() []string {
	var fields []string
	if u.Title != nil {
		fields = append(fields, "title")
	}
	if u.Description != nil {
		fields = append(fields, "description")
	}
	if u.Completed != nil {
		fields = append(fields, "completed")
	}
	if u.DueDate != nil {
		fields = append(fields, "dueDate")
	}
	if u.Priority != nil {
		fields = append(fields, "priority")
	}
	if u.Tags != nil {
		fields = append(fields, "tags")
	}
	return fields
}

// applyTo merges the update over t and returns the result. t is not modified.
func (u Update) applyTo(t Todo) (Todo, error) {
	merged := t.clone()
	if u.Title != nil {
		merged.Title = *u.Title
	}
	if u.Description != nil {
		merged.Description = *u.Description
	}
	if u.Completed != nil {
		merged.Completed = *u.Completed
	}
	if u.DueDate != nil {
		if *u.DueDate == "" {
			merged.DueDate = ""
		} else {
			due, err := NormalizeDueDate(*u.DueDate)
			if err != nil {
				return Todo{}, err
			}
			merged.DueDate = due
		}
	}
	if u.Priority != nil {
		merged.Priority = *u.Priority
	}
	if u.Tags != nil {
		merged.Tags = append([]string{}, (*u.Tags)...)
	}
	return merged, nil
}

// PriorityCounts buckets todos by priority
type PriorityCounts struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// Stats summarizes a todo sequence
type Stats struct {
	Total      int            `json:"total"`
	Completed  int            `json:"completed"`
	Overdue    int            `json:"overdue"`
	ByPriority PriorityCounts `json:"byPriority"`
}

// dateLayout is the calendar date format of DueDate
const dateLayout = "2006-01-02"

// NormalizeDueDate accepts a calendar date or a full ISO timestamp and returns
// the YYYY-MM-DD form.
func NormalizeDueDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(dateLayout, s); err == nil {
		return d.Format(dateLayout), nil
	}
	// Keep the calendar day as written, not as seen from UTC.
	if _, err := ParseTimestamp(s); err == nil && len(s) >= len(dateLayout) {
		if d, err := time.Parse(dateLayout, s[:len(dateLayout)]); err == nil {
			return d.Format(dateLayout), nil
		}
	}
	return "", &ValidationError{
		Field:   "dueDate",
		Message: fmt.Sprintf("invalid due date %q: expected YYYY-MM-DD", s),
	}
}
