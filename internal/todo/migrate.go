package todo

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vthunder/todo-mcp/internal/logging"
)

// fileFormat is the shape a store document was recognized as
type fileFormat int

const (
	formatCurrent         fileFormat = iota // {todos, metadata}
	formatLegacyArray                       // bare array of todo-like objects
	formatMissingMetadata                   // {todos} without metadata
	formatSnakeCase                         // {todos, metadata} with snake_case keys
)

func (f fileFormat) String() string {
	switch f {
	case formatCurrent:
		return "current"
	case formatLegacyArray:
		return "legacy-array"
	case formatMissingMetadata:
		return "missing-metadata"
	case formatSnakeCase:
		return "snake-case"
	default:
		return "unknown"
	}
}

// errMalformedJSON marks documents that are not JSON at all
var errMalformedJSON = errors.New("malformed JSON")

// loadDocument recognizes data as one of the known store formats and returns
// the list it describes. Any format other than formatCurrent must be persisted
// by the caller.
func loadDocument(data []byte, now time.Time, newID func() string) (TodoList, fileFormat, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return TodoList{}, 0, fmt.Errorf("%w: %v", errMalformedJSON, err)
	}

	set, err := loadSchemas()
	if err != nil {
		return TodoList{}, 0, err
	}

	switch v := doc.(type) {
	case []any:
		list, err := migrateLegacyArray(v, now, newID)
		return list, formatLegacyArray, err

	case map[string]any:
		_, hasTodos := v["todos"]
		_, hasMetadata := v["metadata"]
		switch {
		case hasTodos && isSnakeCase(v):
			list, err := migrateSnakeCase(set, v["todos"], now)
			return list, formatSnakeCase, err
		case hasTodos && hasMetadata:
			list, err := decodeCurrent(set, doc, data)
			return list, formatCurrent, err
		case hasTodos:
			list, err := migrateMissingMetadata(set, v["todos"], data, now)
			return list, formatMissingMetadata, err
		}
	}

	return TodoList{}, 0, unsupportedFormat(nil)
}

func unsupportedFormat(cause error) error {
	var ve *ValidationError
	if errors.As(cause, &ve) {
		return &ValidationError{
			Field:   ve.Field,
			Message: "unsupported format: " + ve.Message,
			Details: ve.Details,
		}
	}
	return &ValidationError{Message: "unsupported format"}
}

// decodeCurrent validates a {todos, metadata} document and decodes it. The
// stored counts are not trusted.
func decodeCurrent(set schemaSet, doc any, data []byte) (TodoList, error) {
	if err := validateDocument(set.list, doc); err != nil {
		return TodoList{}, unsupportedFormat(err)
	}

	var list TodoList
	if err := json.Unmarshal(data, &list); err != nil {
		return TodoList{}, &ValidationError{Message: err.Error()}
	}
	if list.Todos == nil {
		list.Todos = []Todo{}
	}
	if err := checkUniqueIDs(list.Todos); err != nil {
		return TodoList{}, err
	}
	list.recount()
	return list, nil
}

// migrateMissingMetadata accepts {todos: [...]} when every todo is valid
func migrateMissingMetadata(set schemaSet, rawTodos any, data []byte, now time.Time) (TodoList, error) {
	items, ok := rawTodos.([]any)
	if !ok {
		return TodoList{}, &ValidationError{Field: "todos", Message: "unsupported format: todos must be an array"}
	}
	for i, item := range items {
		if err := validateDocument(set.todo, item); err != nil {
			return TodoList{}, prefixField(err, fmt.Sprintf("todos.%d", i))
		}
	}

	var wrapper struct {
		Todos []Todo `json:"todos"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return TodoList{}, &ValidationError{Field: "todos", Message: err.Error()}
	}
	if err := checkUniqueIDs(wrapper.Todos); err != nil {
		return TodoList{}, err
	}

	logging.Info("migrate", "Synthesized metadata for %d todos", len(wrapper.Todos))
	return newTodoList(wrapper.Todos, now), nil
}

// snakeTodoKeys maps the keys written by the Python build to their camelCase form
var snakeTodoKeys = map[string]string{
	"created_at": "createdAt",
	"updated_at": "updatedAt",
	"due_date":   "dueDate",
}

var snakeMetadataKeys = []string{"last_modified", "total_count", "completed_count"}

// isSnakeCase reports whether doc was written with snake_case keys, either in
// its metadata or in any todo.
func isSnakeCase(doc map[string]any) bool {
	if meta, ok := doc["metadata"].(map[string]any); ok {
		for _, key := range snakeMetadataKeys {
			if _, found := meta[key]; found {
				return true
			}
		}
	}
	items, _ := doc["todos"].([]any)
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		for key := range snakeTodoKeys {
			if _, found := obj[key]; found {
				return true
			}
		}
	}
	return false
}

// migrateSnakeCase renames snake_case todo keys, then holds every todo to the
// same schema as the current format. Stored metadata is recomputed.
func migrateSnakeCase(set schemaSet, rawTodos any, now time.Time) (TodoList, error) {
	items, ok := rawTodos.([]any)
	if !ok {
		return TodoList{}, &ValidationError{Field: "todos", Message: "unsupported format: todos must be an array"}
	}

	todos := make([]Todo, 0, len(items))
	for i, item := range items {
		field := fmt.Sprintf("todos.%d", i)
		obj, ok := item.(map[string]any)
		if !ok {
			return TodoList{}, &ValidationError{Field: field, Message: "unsupported format: todo must be an object"}
		}
		renamed, err := camelCaseTodo(obj)
		if err != nil {
			return TodoList{}, prefixField(err, field)
		}
		if err := validateDocument(set.todo, renamed); err != nil {
			return TodoList{}, prefixField(err, field)
		}

		data, err := json.Marshal(renamed)
		if err != nil {
			return TodoList{}, &ValidationError{Field: field, Message: err.Error()}
		}
		var t Todo
		if err := json.Unmarshal(data, &t); err != nil {
			return TodoList{}, &ValidationError{Field: field, Message: err.Error()}
		}
		todos = append(todos, t)
	}
	if err := checkUniqueIDs(todos); err != nil {
		return TodoList{}, err
	}

	logging.Info("migrate", "Migrated %d todos from snake_case keys", len(todos))
	return newTodoList(todos, now), nil
}

// camelCaseTodo copies obj with snake_case keys renamed. A camelCase key
// already present wins. A null due date is dropped and a dated timestamp is
// cut to its calendar day.
func camelCaseTodo(obj map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		if _, snake := snakeTodoKeys[k]; !snake {
			out[k] = v
		}
	}
	for snake, camel := range snakeTodoKeys {
		v, found := obj[snake]
		if !found || v == nil {
			continue
		}
		if _, taken := out[camel]; !taken {
			out[camel] = v
		}
	}

	if due, found := out["dueDate"]; found {
		s, ok := due.(string)
		if !ok {
			return nil, &ValidationError{Field: "dueDate", Message: "due date must be a string"}
		}
		normalized, err := NormalizeDueDate(s)
		if err != nil {
			return nil, err
		}
		out["dueDate"] = normalized
	}
	return out, nil
}

// migrateLegacyArray coerces every element of a bare array into a Todo
func migrateLegacyArray(items []any, now time.Time, newID func() string) (TodoList, error) {
	todos := make([]Todo, 0, len(items))
	seen := make(map[string]bool, len(items))

	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return TodoList{}, &ValidationError{
				Field:   fmt.Sprintf("todos.%d", i),
				Message: "unsupported format: legacy entry must be an object",
			}
		}

		t := coerceLegacyTodo(obj, now, newID)
		if seen[t.ID] {
			old := t.ID
			t.ID = newID()
			logging.Warn("migrate", "Duplicate legacy id %s reassigned to %s", old, t.ID)
		}
		seen[t.ID] = true

		if err := ValidateTodo(t); err != nil {
			return TodoList{}, prefixField(err, fmt.Sprintf("todos.%d", i))
		}
		todos = append(todos, t)
	}

	logging.Info("migrate", "Migrated %d todos from legacy array format", len(todos))
	return newTodoList(todos, now), nil
}

// coerceLegacyTodo fills every missing or mistyped field with its default
func coerceLegacyTodo(obj map[string]any, now time.Time, newID func() string) Todo {
	id := coerceID(obj["id"], newID)
	t := Todo{
		ID:          id,
		Title:       clampLegacyText(id, "title", strings.TrimSpace(stringField(obj, "title")), MaxTitleLength),
		Description: clampLegacyText(id, "description", stringField(obj, "description"), MaxDescriptionLength),
		Completed:   coerceBool(obj["completed"]),
		CreatedAt:   coerceTimestamp(obj, now, "createdAt", "created_at"),
		Priority:    Priority(stringField(obj, "priority")),
		Tags:        coerceTags(obj["tags"]),
	}
	if t.Title == "" {
		t.Title = "Untitled"
	}
	t.UpdatedAt = coerceTimestamp(obj, now, "updatedAt", "updated_at")
	if t.UpdatedAt.Before(t.CreatedAt) {
		t.UpdatedAt = t.CreatedAt
	}
	if !t.Priority.IsValid() {
		t.Priority = PriorityMedium
	}

	due := stringField(obj, "dueDate")
	if due == "" {
		due = stringField(obj, "due_date")
	}
	if due != "" {
		if normalized, err := NormalizeDueDate(due); err == nil {
			t.DueDate = normalized
		} else {
			logging.Warn("migrate", "Dropping unparseable due date %q on %s", due, t.ID)
		}
	}
	return t
}

// clampLegacyText cuts an overlong legacy value to max runes and says so
func clampLegacyText(id, field, s string, max int) string {
	cut := truncateRunes(s, max)
	if cut != s {
		logging.Warn("migrate", "Truncated %s of %s from %d to %d characters", field, id, utf8.RuneCountInString(s), max)
	}
	return cut
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func coerceID(v any, newID func() string) string {
	switch id := v.(type) {
	case string:
		if strings.TrimSpace(id) != "" {
			return id
		}
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	}
	return newID()
}

func coerceBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case float64:
		return b != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes", "y", "on":
			return true
		}
	}
	return false
}

// coerceTimestamp returns the first key that parses, else now
func coerceTimestamp(obj map[string]any, now time.Time, keys ...string) Timestamp {
	for _, key := range keys {
		if s := stringField(obj, key); s != "" {
			if ts, err := ParseTimestamp(s); err == nil {
				return ts
			}
		}
	}
	return NewTimestamp(now)
}

// coerceTags keeps the first MaxTags distinct non-blank strings
func coerceTags(v any) []string {
	tags := []string{}
	raw, ok := v.([]any)
	if !ok {
		return tags
	}
	seen := make(map[string]bool)
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = truncateRunes(strings.TrimSpace(s), MaxTagLength)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		tags = append(tags, s)
		if len(tags) == MaxTags {
			break
		}
	}
	return tags
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

func checkUniqueIDs(todos []Todo) error {
	seen := make(map[string]bool, len(todos))
	for i, t := range todos {
		if seen[t.ID] {
			return &ValidationError{
				Field:   fmt.Sprintf("todos.%d.id", i),
				Message: fmt.Sprintf("duplicate id %s", t.ID),
			}
		}
		seen[t.ID] = true
	}
	return nil
}

// prefixField nests a ValidationError's field under prefix
func prefixField(err error, prefix string) error {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	field := prefix
	if ve.Field != "" {
		field += "." + ve.Field
	}
	return &ValidationError{Field: field, Message: ve.Message, Details: ve.Details}
}
