package todo

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

const schemaBaseURL = "https://schemas.todo-mcp.dev/"

type schemaSet struct {
	todo *jsonschema.Schema
	list *jsonschema.Schema
}

var (
	schemasOnce sync.Once
	schemas     schemaSet
	schemasErr  error
)

// loadSchemas compiles the embedded schemas once per process
func loadSchemas() (schemaSet, error) {
	schemasOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true

		for _, name := range []string{"todo.json", "todo-list.json"} {
			data, err := schemaFiles.ReadFile("schemas/" + name)
			if err != nil {
				schemasErr = fmt.Errorf("read schema %s: %w", name, err)
				return
			}
			if err := compiler.AddResource(schemaBaseURL+name, bytes.NewReader(data)); err != nil {
				schemasErr = fmt.Errorf("add schema %s: %w", name, err)
				return
			}
		}

		if schemas.todo, schemasErr = compiler.Compile(schemaBaseURL + "todo.json"); schemasErr != nil {
			schemasErr = fmt.Errorf("compile todo schema: %w", schemasErr)
			return
		}
		if schemas.list, schemasErr = compiler.Compile(schemaBaseURL + "todo-list.json"); schemasErr != nil {
			schemasErr = fmt.Errorf("compile todo list schema: %w", schemasErr)
		}
	})
	return schemas, schemasErr
}

// ValidateTodo checks a single record against the todo schema
func ValidateTodo(t Todo) error {
	set, err := loadSchemas()
	if err != nil {
		return err
	}
	doc, err := toDocument(t)
	if err != nil {
		return err
	}
	return validateDocument(set.todo, doc)
}

// validateDocument runs schema over an already-decoded JSON value
func validateDocument(schema *jsonschema.Schema, doc any) error {
	if err := schema.Validate(doc); err != nil {
		return mapSchemaError(err)
	}
	return nil
}

// toDocument round-trips v through JSON so the validator sees exactly what
// would be written to disk.
func toDocument(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal for validation: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal for validation: %w", err)
	}
	return doc, nil
}

// mapSchemaError converts a jsonschema failure into a ValidationError that
// names the offending field.
func mapSchemaError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &ValidationError{Message: err.Error()}
	}

	leaf := deepestCause(ve)
	return &ValidationError{
		Field:   pointerToField(leaf.InstanceLocation),
		Message: leaf.Message,
		Details: map[string]any{
			"keywordLocation":  leaf.KeywordLocation,
			"instanceLocation": leaf.InstanceLocation,
		},
	}
}

// deepestCause follows the first cause chain down to a leaf
func deepestCause(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}

// pointerToField turns "/todos/0/title" into "todos.0.title"
func pointerToField(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return ""
	}
	parts := strings.Split(pointer, "/")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		parts[i] = strings.ReplaceAll(p, "~0", "~")
	}
	return strings.Join(parts, ".")
}
