package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vthunder/todo-mcp/internal/activity"
	"github.com/vthunder/todo-mcp/internal/health"
	"github.com/vthunder/todo-mcp/internal/todo"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	labelStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Strikethrough(true)

	priorityStyles = map[todo.Priority]lipgloss.Style{
		todo.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		todo.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		todo.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	}
)

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// renderTodo formats one todo as a single line
func renderTodo(t todo.Todo, now time.Time) string {
	box := "[ ]"
	title := t.Title
	if t.Completed {
		box = "[x]"
		title = doneStyle.Render(title)
	}

	parts := []string{
		mutedStyle.Render(shortID(t.ID)),
		box,
		priorityStyles[t.Priority].Render(fmt.Sprintf("%-6s", t.Priority)),
		title,
	}
	if t.DueDate != "" {
		due := "due " + t.DueDate
		if todo.IsOverdue(t, now) {
			due = errorStyle.Render(due + " (overdue)")
		}
		parts = append(parts, due)
	}
	if len(t.Tags) > 0 {
		parts = append(parts, mutedStyle.Render("#"+strings.Join(t.Tags, " #")))
	}
	return strings.Join(parts, " ")
}

// renderStats formats a stats block
func renderStats(s todo.Stats) string {
	var b strings.Builder
	fmt.Fprintln(&b, headerStyle.Render("Todo stats"))
	fmt.Fprintf(&b, "%s %d\n", labelStyle.Render("Total:    "), s.Total)
	fmt.Fprintf(&b, "%s %d\n", labelStyle.Render("Completed:"), s.Completed)
	fmt.Fprintf(&b, "%s %d\n", labelStyle.Render("Open:     "), s.Total-s.Completed)
	overdue := fmt.Sprintf("%d", s.Overdue)
	if s.Overdue > 0 {
		overdue = errorStyle.Render(overdue)
	}
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Overdue:  "), overdue)
	fmt.Fprintf(&b, "%s high %d, medium %d, low %d\n", labelStyle.Render("Priority: "),
		s.ByPriority.High, s.ByPriority.Medium, s.ByPriority.Low)
	return b.String()
}

// renderCheck formats one health probe
func renderCheck(c health.Check) string {
	status := successStyle.Render("ok  ")
	if !c.Healthy {
		status = errorStyle.Render("FAIL")
	}
	line := fmt.Sprintf("%s %s", status, labelStyle.Render(c.Name))
	if c.Error != "" {
		line += " " + c.Error
	}
	return line
}

// renderEntry formats one activity entry
func renderEntry(e activity.Entry) string {
	status := successStyle.Render("ok")
	if !e.Success {
		status = errorStyle.Render(e.ErrorCode)
		if e.ErrorCode == "" {
			status = errorStyle.Render("failed")
		}
	}
	what := string(e.Type)
	if e.Tool != "" {
		what = e.Tool
	}
	return fmt.Sprintf("%s %-14s %s %s %s",
		mutedStyle.Render(e.Timestamp.Local().Format("2006-01-02 15:04:05")),
		what,
		status,
		mutedStyle.Render(e.Duration.Round(time.Millisecond).String()),
		e.Summary,
	)
}
