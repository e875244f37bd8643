package tools

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/vthunder/todo-mcp/internal/config"
	"github.com/vthunder/todo-mcp/internal/todo"
)

// Widget metadata keys understood by the chat client
const (
	metaOutputTemplate     = "openai/outputTemplate"
	metaInvoking           = "openai/toolInvocation/invoking"
	metaInvoked            = "openai/toolInvocation/invoked"
	metaWidgetAccessible   = "openai/widgetAccessible"
	metaResultCanProduceUI = "openai/resultCanProduceWidget"

	widgetType = "todo-management"
)

// requestIDs hands out req_<unix>_<counter> identifiers
type requestIDs struct {
	now     func() time.Time
	counter atomic.Uint64
}

func newRequestIDs(now func() time.Time) *requestIDs {
	return &requestIDs{now: now}
}

func (r *requestIDs) next() string {
	return fmt.Sprintf("req_%d_%d", r.now().Unix(), r.counter.Add(1))
}

// widgetMeta is attached to every successful tool response
func widgetMeta(w config.WidgetConfig) map[string]any {
	return map[string]any{
		metaOutputTemplate:     w.TemplateURI,
		metaInvoking:           w.Invoking,
		metaInvoked:            w.Invoked,
		metaWidgetAccessible:   true,
		metaResultCanProduceUI: true,
	}
}

// TodoView is a todo as shown to the widget
type TodoView struct {
	todo.Todo
	IsOverdue bool `json:"isOverdue"`
}

// StatsView is a stats block stamped with the time it was computed
type StatsView struct {
	todo.Stats
	Timestamp string `json:"timestamp"`
}

// ContentMetadata describes the structured payload itself
type ContentMetadata struct {
	Version     string `json:"version"`
	WidgetType  string `json:"widgetType"`
	LastUpdated string `json:"lastUpdated"`
	ServerType  string `json:"serverType"`
}

// todoViews sorts todos for display and annotates overdue ones
func todoViews(todos []todo.Todo, now time.Time) []TodoView {
	sorted := append([]todo.Todo(nil), todos...)
	todo.SortTodos(sorted)
	views := make([]TodoView, len(sorted))
	for i, t := range sorted {
		views[i] = TodoView{Todo: t, IsOverdue: todo.IsOverdue(t, now)}
	}
	return views
}

// structuredContent builds the widget payload for todos plus any
// action-specific fields
func (d *Dependencies) structuredContent(todos []todo.Todo, extra map[string]any) map[string]any {
	now := d.now()
	stamp := todo.NewTimestamp(now).String()
	content := map[string]any{
		"todos": todoViews(todos, now),
		"stats": StatsView{Stats: todo.ComputeStats(todos, now), Timestamp: stamp},
		"metadata": ContentMetadata{
			Version:     todo.CurrentVersion,
			WidgetType:  widgetType,
			LastUpdated: stamp,
			ServerType:  "go",
		},
	}
	for k, v := range extra {
		content[k] = v
	}
	return content
}

// widgetResult is a successful tool response carrying the widget payload
func (d *Dependencies) widgetResult(text string, todos []todo.Todo, extra map[string]any) *mcpgo.CallToolResult {
	return &mcpgo.CallToolResult{
		Result:            mcpgo.Result{Meta: mcpgo.NewMetaFromMap(widgetMeta(d.Widget))},
		Content:           []mcpgo.Content{mcpgo.NewTextContent(text)},
		StructuredContent: d.structuredContent(todos, extra),
	}
}

// ErrorInfo is the error block reported under _meta.error
type ErrorInfo struct {
	Message    string         `json:"message"`
	Code       string         `json:"code"`
	StatusCode int            `json:"statusCode"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  string         `json:"timestamp"`
	RequestID  string         `json:"requestId"`
}

// classify maps an error to its wire code, status and details
func classify(err error) (string, int, map[string]any) {
	var (
		ve *todo.ValidationError
		nf *todo.NotFoundError
		fe *todo.FileError
		se *todo.StorageError
	)
	// File errors first: a failed restore wraps the validation error of
	// the backup it read.
	switch {
	case errors.As(err, &fe):
		details := map[string]any{"operation": string(fe.Op)}
		if fe.Path != "" {
			details["path"] = fe.Path
		}
		return fe.Code(), 500, details
	case errors.As(err, &ve):
		details := map[string]any{}
		for k, v := range ve.Details {
			details[k] = v
		}
		if ve.Field != "" {
			details["field"] = ve.Field
		}
		return ve.Code(), 400, details
	case errors.As(err, &nf):
		return nf.Code(), 404, map[string]any{"resource": nf.Resource, "id": nf.ID}
	case errors.As(err, &se):
		return se.Code(), 500, nil
	default:
		return todo.CodeInternal, 500, nil
	}
}

// errorResult turns err into an isError response
func (d *Dependencies) errorResult(tool, requestID string, err error) (*mcpgo.CallToolResult, ErrorInfo) {
	code, status, details := classify(err)
	info := ErrorInfo{
		Message:    err.Error(),
		Code:       code,
		StatusCode: status,
		Details:    details,
		Timestamp:  todo.NewTimestamp(d.now()).String(),
		RequestID:  requestID,
	}
	result := mcpgo.NewToolResultError(fmt.Sprintf("Error in %s: %s", tool, err.Error()))
	result.Meta = mcpgo.NewMetaFromMap(map[string]any{
		"error":      info,
		"tool_name":  tool,
		"request_id": requestID,
	})
	return result, info
}
