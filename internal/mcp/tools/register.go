package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/vthunder/todo-mcp/internal/logging"
	"github.com/vthunder/todo-mcp/internal/mcp"
	"github.com/vthunder/todo-mcp/internal/todo"
)

// handlerFunc is a tool body. A returned error becomes an isError result.
type handlerFunc func(ctx context.Context, requestID string, args map[string]any) (*mcpgo.CallToolResult, error)

// RegisterAll registers all MCP tools and resources with the given server and dependencies.
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	deps.requestIDs = newRequestIDs(deps.now)

	registerTodoTools(server, deps)
	registerBackupTools(server, deps)
	if deps.Health != nil {
		registerHealthTools(server, deps)
	}
	registerResources(server, deps)
}

// register wraps fn with request ids, error mapping and activity recording
func register(server *mcp.Server, deps *Dependencies, tool mcpgo.Tool, fn handlerFunc) {
	server.RegisterTool(tool, func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		started := time.Now()
		requestID := deps.nextRequestID()

		result, err := fn(ctx, requestID, req.GetArguments())

		var errCode, summary string
		if err != nil {
			var info ErrorInfo
			result, info = deps.errorResult(tool.Name, requestID, err)
			errCode, summary = info.Code, info.Message
			logging.Warn("mcp", "[%s] %s failed (%s): %v", requestID, tool.Name, info.Code, err)
		} else {
			summary = resultText(result)
			logging.Info("mcp", "[%s] %s: %s", requestID, tool.Name, logging.Truncate(summary, 100))
		}

		if rerr := deps.Activity.RecordToolCall(requestID, tool.Name, started, errCode, summary); rerr != nil {
			logging.Warn("activity", "Failed to record %s call: %v", tool.Name, rerr)
		}
		return result, nil
	})
}

func resultText(result *mcpgo.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(mcpgo.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func tagsProperty(desc string) mcpgo.ToolOption {
	return mcpgo.WithArray("tags",
		mcpgo.Description(desc),
		mcpgo.Items(map[string]any{"type": "string", "minLength": 1, "maxLength": todo.MaxTagLength}),
		mcpgo.MaxItems(todo.MaxTags),
	)
}

func priorityProperty(desc string) mcpgo.ToolOption {
	return mcpgo.WithString("priority",
		mcpgo.Description(desc),
		mcpgo.Enum(string(todo.PriorityLow), string(todo.PriorityMedium), string(todo.PriorityHigh)),
	)
}

func registerTodoTools(server *mcp.Server, deps *Dependencies) {
	// list_todos - filtered, sorted view with stats
	register(server, deps, mcpgo.NewTool("list_todos",
		mcpgo.WithDescription("List all todos with optional filtering by completion status, priority, tags, or overdue status"),
		mcpgo.WithTitleAnnotation("List todos"),
		mcpgo.WithReadOnlyHintAnnotation(true),
		mcpgo.WithOpenWorldHintAnnotation(false),
		mcpgo.WithBoolean("completed", mcpgo.Description("Only completed (true) or open (false) todos")),
		priorityProperty("Only todos with this priority"),
		mcpgo.WithBoolean("overdue", mcpgo.Description("Only overdue (true) or not overdue (false) todos")),
		tagsProperty("Only todos carrying any of these tags"),
	), func(ctx context.Context, requestID string, args map[string]any) (*mcpgo.CallToolResult, error) {
		var a listTodosArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		priority, err := parsePriority(a.Priority)
		if err != nil {
			return nil, err
		}
		filter := todo.Filter{Completed: a.Completed, Priority: priority, Overdue: a.Overdue, Tags: normalizeTags(a.Tags)}

		all, err := deps.Store.GetAllTodos()
		if err != nil {
			return nil, err
		}
		now := deps.now()
		matched := todo.FilterTodos(all, filter, now)
		stats := todo.ComputeStats(matched, now)

		text := fmt.Sprintf("Found %d todo(s)", len(matched))
		if stats.Completed > 0 {
			text += fmt.Sprintf(" (%d completed)", stats.Completed)
		}
		if stats.Overdue > 0 {
			text += fmt.Sprintf(" (%d overdue)", stats.Overdue)
		}
		logging.Debug("mcp", "[%s] list_todos matched %d of %d", requestID, len(matched), len(all))

		return deps.widgetResult(text, matched, map[string]any{"filter": filterView(filter)}), nil
	})

	// create_todo - add a new todo with a fresh id
	register(server, deps, mcpgo.NewTool("create_todo",
		mcpgo.WithDescription("Create a new todo item with title, optional description, due date, priority, and tags"),
		mcpgo.WithTitleAnnotation("Create todo"),
		mcpgo.WithDestructiveHintAnnotation(false),
		mcpgo.WithOpenWorldHintAnnotation(false),
		mcpgo.WithString("title", mcpgo.Required(), mcpgo.Description("Todo title"), mcpgo.MinLength(1), mcpgo.MaxLength(todo.MaxTitleLength)),
		mcpgo.WithString("description", mcpgo.Description("Longer description"), mcpgo.MaxLength(todo.MaxDescriptionLength)),
		mcpgo.WithString("dueDate", mcpgo.Description("Due date as YYYY-MM-DD")),
		priorityProperty("Priority, medium when omitted"),
		tagsProperty("Tags for grouping"),
	), func(ctx context.Context, requestID string, args map[string]any) (*mcpgo.CallToolResult, error) {
		var a createTodoArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		title := strings.TrimSpace(a.Title)
		if title == "" {
			return nil, &todo.ValidationError{Field: "title", Message: "title cannot be empty"}
		}
		priority, err := parsePriority(a.Priority)
		if err != nil {
			return nil, err
		}
		t := todo.Todo{
			Title:       title,
			Description: a.Description,
			Priority:    priority,
			Tags:        normalizeTags(a.Tags),
		}
		if strings.TrimSpace(a.DueDate) != "" {
			if t.DueDate, err = todo.NormalizeDueDate(a.DueDate); err != nil {
				return nil, err
			}
		}

		created, err := deps.Store.AddTodo(t)
		if err != nil {
			return nil, err
		}
		all, err := deps.Store.GetAllTodos()
		if err != nil {
			return nil, err
		}
		return deps.widgetResult(fmt.Sprintf("Created todo: \"%s\"", created.Title), all, map[string]any{
			"action":      "create",
			"createdTodo": deps.view(created),
		}), nil
	})

	// update_todo - partial update by id
	register(server, deps, mcpgo.NewTool("update_todo",
		mcpgo.WithDescription("Update an existing todo item by ID with new values for any field. Pass an empty dueDate to clear it."),
		mcpgo.WithTitleAnnotation("Update todo"),
		mcpgo.WithDestructiveHintAnnotation(false),
		mcpgo.WithIdempotentHintAnnotation(true),
		mcpgo.WithOpenWorldHintAnnotation(false),
		mcpgo.WithString("id", mcpgo.Required(), mcpgo.Description("Todo ID")),
		mcpgo.WithString("title", mcpgo.Description("New title"), mcpgo.MinLength(1), mcpgo.MaxLength(todo.MaxTitleLength)),
		mcpgo.WithString("description", mcpgo.Description("New description"), mcpgo.MaxLength(todo.MaxDescriptionLength)),
		mcpgo.WithString("dueDate", mcpgo.Description("New due date as YYYY-MM-DD, empty to clear")),
		priorityProperty("New priority"),
		mcpgo.WithBoolean("completed", mcpgo.Description("New completion state")),
		tagsProperty("Replacement tag list"),
	), func(ctx context.Context, requestID string, args map[string]any) (*mcpgo.CallToolResult, error) {
		var a updateTodoArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		id, err := requireID(a.ID)
		if err != nil {
			return nil, err
		}
		u := a.Update
		if u.Title != nil {
			title := strings.TrimSpace(*u.Title)
			if title == "" {
				return nil, &todo.ValidationError{Field: "title", Message: "title cannot be empty"}
			}
			u.Title = &title
		}
		if u.Priority != nil {
			p, err := parsePriority(string(*u.Priority))
			if err != nil {
				return nil, err
			}
			if p == "" {
				u.Priority = nil
			} else {
				u.Priority = &p
			}
		}
		if u.Tags != nil {
			tags := normalizeTags(*u.Tags)
			u.Tags = &tags
		}

		updated, err := deps.Store.UpdateTodo(id, u)
		if err != nil {
			return nil, err
		}
		all, err := deps.Store.GetAllTodos()
		if err != nil {
			return nil, err
		}
		logging.Debug("mcp", "[%s] update_todo %s fields=%v", requestID, id, u.Fields())
		return deps.widgetResult(fmt.Sprintf("Updated todo: \"%s\"", updated.Title), all, map[string]any{
			"action":      "update",
			"updatedTodo": deps.view(updated),
		}), nil
	})

	// complete_todo - toggle completion
	register(server, deps, mcpgo.NewTool("complete_todo",
		mcpgo.WithDescription("Mark a todo as completed or incomplete by ID"),
		mcpgo.WithTitleAnnotation("Complete todo"),
		mcpgo.WithDestructiveHintAnnotation(false),
		mcpgo.WithIdempotentHintAnnotation(true),
		mcpgo.WithOpenWorldHintAnnotation(false),
		mcpgo.WithString("id", mcpgo.Required(), mcpgo.Description("Todo ID")),
		mcpgo.WithBoolean("completed", mcpgo.Description("Completion state"), mcpgo.DefaultBool(true)),
	), func(ctx context.Context, requestID string, args map[string]any) (*mcpgo.CallToolResult, error) {
		var a completeTodoArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		id, err := requireID(a.ID)
		if err != nil {
			return nil, err
		}
		completed := true
		if a.Completed != nil {
			completed = *a.Completed
		}

		updated, err := deps.Store.UpdateTodo(id, todo.Update{Completed: &completed})
		if err != nil {
			return nil, err
		}
		all, err := deps.Store.GetAllTodos()
		if err != nil {
			return nil, err
		}
		action := "completed"
		if !completed {
			action = "marked as incomplete"
		}
		return deps.widgetResult(fmt.Sprintf("Todo \"%s\" %s", updated.Title, action), all, map[string]any{
			"action":      "complete",
			"updatedTodo": deps.view(updated),
			"completed":   completed,
		}), nil
	})

	// delete_todo - remove by id
	register(server, deps, mcpgo.NewTool("delete_todo",
		mcpgo.WithDescription("Delete a todo item by ID"),
		mcpgo.WithTitleAnnotation("Delete todo"),
		mcpgo.WithDestructiveHintAnnotation(true),
		mcpgo.WithOpenWorldHintAnnotation(false),
		mcpgo.WithString("id", mcpgo.Required(), mcpgo.Description("Todo ID")),
	), func(ctx context.Context, requestID string, args map[string]any) (*mcpgo.CallToolResult, error) {
		var a deleteTodoArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		id, err := requireID(a.ID)
		if err != nil {
			return nil, err
		}

		existing, ok, err := deps.Store.GetTodoByID(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &todo.NotFoundError{Resource: "todo", ID: id}
		}
		deleted, err := deps.Store.DeleteTodo(id)
		if err != nil {
			return nil, err
		}
		if !deleted {
			// Removed by a concurrent call between lookup and delete
			return nil, &todo.NotFoundError{Resource: "todo", ID: id}
		}

		all, err := deps.Store.GetAllTodos()
		if err != nil {
			return nil, err
		}
		return deps.widgetResult(fmt.Sprintf("Deleted todo: \"%s\"", existing.Title), all, map[string]any{
			"action":      "delete",
			"deletedTodo": deps.view(existing),
		}), nil
	})
}

func registerBackupTools(server *mcp.Server, deps *Dependencies) {
	// backup_todos - timestamped copy next to the store file
	register(server, deps, mcpgo.NewTool("backup_todos",
		mcpgo.WithDescription("Write a timestamped backup of the todo list next to the store file and return its path"),
		mcpgo.WithTitleAnnotation("Back up todos"),
		mcpgo.WithDestructiveHintAnnotation(false),
		mcpgo.WithOpenWorldHintAnnotation(false),
	), func(ctx context.Context, requestID string, args map[string]any) (*mcpgo.CallToolResult, error) {
		path, err := deps.Store.CreateBackup()
		if err != nil {
			return nil, err
		}
		all, err := deps.Store.GetAllTodos()
		if err != nil {
			return nil, err
		}
		return deps.widgetResult(fmt.Sprintf("Backed up %d todo(s) to %s", len(all), path), all, map[string]any{
			"action":     "backup",
			"backupPath": path,
		}), nil
	})

	// restore_todos - replace the list with a backup
	register(server, deps, mcpgo.NewTool("restore_todos",
		mcpgo.WithDescription("Replace the whole todo list with the contents of a backup file. Legacy formats are migrated."),
		mcpgo.WithTitleAnnotation("Restore todos"),
		mcpgo.WithDestructiveHintAnnotation(true),
		mcpgo.WithOpenWorldHintAnnotation(false),
		mcpgo.WithString("path", mcpgo.Required(), mcpgo.Description("Path of the backup file, as returned by backup_todos")),
	), func(ctx context.Context, requestID string, args map[string]any) (*mcpgo.CallToolResult, error) {
		var a restoreTodosArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		path := strings.TrimSpace(a.Path)
		if path == "" {
			return nil, &todo.ValidationError{Field: "path", Message: "path is required"}
		}
		if err := deps.Store.RestoreFromBackup(path); err != nil {
			return nil, err
		}
		all, err := deps.Store.GetAllTodos()
		if err != nil {
			return nil, err
		}
		return deps.widgetResult(fmt.Sprintf("Restored %d todo(s) from %s", len(all), path), all, map[string]any{
			"action":       "restore",
			"restoredFrom": path,
		}), nil
	})
}

func registerHealthTools(server *mcp.Server, deps *Dependencies) {
	// health_check - storage and memory probes
	register(server, deps, mcpgo.NewTool("health_check",
		mcpgo.WithDescription("Check that the todo store is writable and that server memory use is within limits"),
		mcpgo.WithTitleAnnotation("Health check"),
		mcpgo.WithReadOnlyHintAnnotation(true),
		mcpgo.WithOpenWorldHintAnnotation(false),
	), func(ctx context.Context, requestID string, args map[string]any) (*mcpgo.CallToolResult, error) {
		report := deps.Health.Run()

		text := "Server is healthy"
		if !report.Healthy {
			var failed []string
			for _, c := range report.Checks {
				if !c.Healthy {
					failed = append(failed, fmt.Sprintf("%s: %s", c.Name, c.Error))
				}
			}
			text = "Server is unhealthy: " + strings.Join(failed, "; ")
		}

		result := mcpgo.NewToolResultText(text)
		result.StructuredContent = map[string]any{
			"health": report,
			"store": map[string]any{
				"path":  deps.Store.Path(),
				"ready": deps.Store.Ready(),
			},
		}
		return result, nil
	})
}

// view annotates a single todo for an action field
func (d *Dependencies) view(t todo.Todo) TodoView {
	return TodoView{Todo: t, IsOverdue: todo.IsOverdue(t, d.now())}
}

// filterView echoes the applied filter, with nil for unset fields
func filterView(f todo.Filter) map[string]any {
	view := map[string]any{
		"completed": nil,
		"priority":  nil,
		"overdue":   nil,
		"tags":      nil,
	}
	if f.Completed != nil {
		view["completed"] = *f.Completed
	}
	if f.Priority != "" {
		view["priority"] = string(f.Priority)
	}
	if f.Overdue != nil {
		view["overdue"] = *f.Overdue
	}
	if len(f.Tags) > 0 {
		view["tags"] = f.Tags
	}
	return view
}
