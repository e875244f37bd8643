// Package tools provides MCP tool registration with dependency injection.
package tools

import (
	"time"

	"github.com/vthunder/todo-mcp/internal/activity"
	"github.com/vthunder/todo-mcp/internal/config"
	"github.com/vthunder/todo-mcp/internal/health"
	"github.com/vthunder/todo-mcp/internal/todo"
	"github.com/vthunder/todo-mcp/internal/widget"
)

// Dependencies holds all services that MCP tools may need.
// Optional fields may be nil.
type Dependencies struct {
	// Core services (required)
	Store  *todo.Store
	Widget config.WidgetConfig

	// Optional services
	Assets   *widget.Assets
	Health   *health.Checker
	Activity *activity.Log // nil disables call recording

	// Now overrides the clock used for overdue checks and response timestamps
	Now func() time.Time

	requestIDs *requestIDs
}

func (d *Dependencies) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// nextRequestID requires RegisterAll to have run
func (d *Dependencies) nextRequestID() string {
	return d.requestIDs.next()
}
