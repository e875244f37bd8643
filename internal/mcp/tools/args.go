package tools

import (
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/vthunder/todo-mcp/internal/todo"
)

type listTodosArgs struct {
	Completed *bool    `mapstructure:"completed"`
	Priority  string   `mapstructure:"priority"`
	Overdue   *bool    `mapstructure:"overdue"`
	Tags      []string `mapstructure:"tags"`
}

type createTodoArgs struct {
	Title       string   `mapstructure:"title"`
	Description string   `mapstructure:"description"`
	DueDate     string   `mapstructure:"dueDate"`
	Priority    string   `mapstructure:"priority"`
	Tags        []string `mapstructure:"tags"`
}

type updateTodoArgs struct {
	ID          string `mapstructure:"id"`
	todo.Update `mapstructure:",squash"`
}

type completeTodoArgs struct {
	ID        string `mapstructure:"id"`
	Completed *bool  `mapstructure:"completed"`
}

type deleteTodoArgs struct {
	ID string `mapstructure:"id"`
}

type restoreTodosArgs struct {
	Path string `mapstructure:"path"`
}

// snakeAliases maps accepted snake_case argument names to their canonical key
var snakeAliases = map[string]string{
	"due_date": "dueDate",
}

// decodeArgs decodes tool arguments into out. Type mismatches are reported
// as validation errors.
func decodeArgs(args map[string]any, out any) error {
	input := make(map[string]any, len(args))
	for k, v := range args {
		input[k] = v
	}
	for alias, canonical := range snakeAliases {
		if v, ok := input[alias]; ok {
			if _, taken := input[canonical]; !taken {
				input[canonical] = v
			}
			delete(input, alias)
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(input); err != nil {
		details := map[string]any{}
		if me, ok := err.(*mapstructure.Error); ok {
			details["errors"] = me.Errors
		}
		return &todo.ValidationError{Field: "arguments", Message: err.Error(), Details: details}
	}
	return nil
}

// requireID trims id and rejects an empty one
func requireID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", &todo.ValidationError{Field: "id", Message: "id is required"}
	}
	return id, nil
}

// parsePriority accepts "" as unset
func parsePriority(s string) (todo.Priority, error) {
	p := todo.Priority(strings.ToLower(strings.TrimSpace(s)))
	if p == "" || p.IsValid() {
		return p, nil
	}
	return "", &todo.ValidationError{
		Field:   "priority",
		Message: "must be one of low, medium, high, got " + s,
	}
}

// normalizeTags trims tags, drops blanks and keeps the first of duplicates
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
