package todo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"
)

// fixedClock returns a controllable clock starting at start
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// faultFS wraps the real filesystem and fails the next N calls of an op
type faultFS struct {
	mu         sync.Mutex
	readFails  int
	writeFails int
	mkdirErr   error
	readErr    error
	writeErr   error
	reads      int
	writes     int
}

func (f *faultFS) ReadFile(name string) ([]byte, error) {
	f.mu.Lock()
	f.reads++
	if f.readFails > 0 {
		f.readFails--
		f.mu.Unlock()
		return nil, f.readErr
	}
	f.mu.Unlock()
	return os.ReadFile(name)
}

func (f *faultFS) WriteFile(name string, data []byte, perm os.FileMode) error {
	f.mu.Lock()
	f.writes++
	if f.writeFails > 0 {
		f.writeFails--
		f.mu.Unlock()
		return f.writeErr
	}
	f.mu.Unlock()
	return os.WriteFile(name, data, perm)
}

func (f *faultFS) MkdirAll(path string, perm os.FileMode) error {
	if f.mkdirErr != nil {
		return f.mkdirErr
	}
	return os.MkdirAll(path, perm)
}

func (f *faultFS) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

func (f *faultFS) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

var errFlaky = errors.New("device busy")

func testStart() time.Time {
	return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
}

// newTestStore returns an initialized store in a temp dir with a fake clock,
// sequential ids and no retry pauses.
func newTestStore(t *testing.T, opts ...Option) (*Store, *fixedClock) {
	t.Helper()
	clock := &fixedClock{now: testStart()}
	n := 0
	base := []Option{
		WithClock(clock.Now),
		WithSleep(func(time.Duration) {}),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	}
	store := NewStore(filepath.Join(t.TempDir(), "data", "todos.json"), append(base, opts...)...)
	if err := store.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return store, clock
}

func readDisk(t *testing.T, path string) TodoList {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var list TodoList
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	return list
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestStore_InitializeCreatesEmptyFile(t *testing.T) {
	store, _ := newTestStore(t)

	list := readDisk(t, store.Path())
	if list.Metadata.Version != CurrentVersion {
		t.Errorf("Expected version %s, got %s", CurrentVersion, list.Metadata.Version)
	}
	if len(list.Todos) != 0 || list.Metadata.TotalCount != 0 || list.Metadata.CompletedCount != 0 {
		t.Errorf("Expected empty list, got %+v", list)
	}

	raw, _ := os.ReadFile(store.Path())
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	if todos, ok := doc["todos"].([]any); !ok || len(todos) != 0 {
		t.Errorf("Expected todos to be an empty array on disk, got %v", doc["todos"])
	}
}

func TestStore_NotInitialized(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "todos.json"))

	checks := map[string]error{}
	_, checks["GetAllTodos"] = store.GetAllTodos()
	_, _, checks["GetTodoByID"] = store.GetTodoByID("x")
	_, checks["AddTodo"] = store.AddTodo(Todo{Title: "x"})
	_, checks["UpdateTodo"] = store.UpdateTodo("x", Update{})
	_, checks["DeleteTodo"] = store.DeleteTodo("x")
	checks["ClearAllTodos"] = store.ClearAllTodos()
	_, checks["GetStats"] = store.GetStats()
	_, checks["GetTodoList"] = store.GetTodoList()
	_, checks["CreateBackup"] = store.CreateBackup()
	checks["RestoreFromBackup"] = store.RestoreFromBackup("x")

	for op, err := range checks {
		var se *StorageError
		if !errors.As(err, &se) {
			t.Errorf("%s: expected StorageError, got %v", op, err)
			continue
		}
		if !errors.Is(err, ErrNotInitialized) {
			t.Errorf("%s: expected ErrNotInitialized in chain, got %v", op, err)
		}
	}
	if store.Ready() {
		t.Error("Expected store not to be ready")
	}
}

func TestStore_InitializeTwiceIsNoop(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.AddTodo(Todo{Title: "Keep me"}); err != nil {
		t.Fatal(err)
	}

	// Overwrite the file behind the store's back; a second Initialize must
	// not reload it.
	if err := os.WriteFile(store.Path(), []byte(`{"todos":[],"metadata":{"version":"1.0.0","lastModified":"2025-01-01T00:00:00.000Z","totalCount":0,"completedCount":0}}`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := store.Initialize(); err != nil {
		t.Fatalf("second Initialize failed: %v", err)
	}

	todos, _ := store.GetAllTodos()
	if len(todos) != 1 {
		t.Errorf("Expected 1 todo after second Initialize, got %d", len(todos))
	}
}

func TestStore_AddTodoDefaults(t *testing.T) {
	store, clock := newTestStore(t)

	todo, err := store.AddTodo(Todo{Title: "Buy milk"})
	if err != nil {
		t.Fatalf("AddTodo failed: %v", err)
	}

	if todo.ID != "id-1" {
		t.Errorf("Expected generated id id-1, got %q", todo.ID)
	}
	if todo.Completed {
		t.Error("Expected completed=false")
	}
	if todo.Priority != PriorityMedium {
		t.Errorf("Expected priority medium, got %s", todo.Priority)
	}
	if todo.Tags == nil || len(todo.Tags) != 0 {
		t.Errorf("Expected empty non-nil tags, got %#v", todo.Tags)
	}
	if todo.Description != "" {
		t.Errorf("Expected empty description, got %q", todo.Description)
	}
	if !todo.CreatedAt.Equal(NewTimestamp(clock.Now())) || !todo.UpdatedAt.Equal(todo.CreatedAt) {
		t.Errorf("Unexpected timestamps %s / %s", todo.CreatedAt, todo.UpdatedAt)
	}

	todos, _ := store.GetAllTodos()
	if len(todos) != 1 {
		t.Fatalf("Expected 1 todo, got %d", len(todos))
	}

	disk := readDisk(t, store.Path())
	if disk.Metadata.TotalCount != 1 || len(disk.Todos) != 1 {
		t.Errorf("Expected todo persisted, got %+v", disk.Metadata)
	}
}

func TestStore_AddTodoDuplicateID(t *testing.T) {
	store, _ := newTestStore(t)

	if _, err := store.AddTodo(Todo{ID: "X", Title: "First"}); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(store.Path())

	_, err := store.AddTodo(Todo{ID: "X", Title: "Second"})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if ve.Field != "id" {
		t.Errorf("Expected field id, got %q", ve.Field)
	}

	todos, _ := store.GetAllTodos()
	if len(todos) != 1 || todos[0].Title != "First" {
		t.Errorf("Expected store unchanged, got %+v", todos)
	}
	after, _ := os.ReadFile(store.Path())
	if string(before) != string(after) {
		t.Error("Expected file unchanged after rejected add")
	}
}

func TestStore_AddTodoValidation(t *testing.T) {
	long := func(n int) string {
		b := make([]rune, n)
		for i := range b {
			b[i] = 'a'
		}
		return string(b)
	}

	tests := []struct {
		name  string
		todo  Todo
		field string
	}{
		{"empty title", Todo{Title: ""}, "title"},
		{"blank title", Todo{Title: "   "}, "title"},
		{"title too long", Todo{Title: long(MaxTitleLength + 1)}, "title"},
		{"description too long", Todo{Title: "ok", Description: long(MaxDescriptionLength + 1)}, "description"},
		{"bad priority", Todo{Title: "ok", Priority: "urgent"}, "priority"},
		{"bad due date", Todo{Title: "ok", DueDate: "next week"}, "dueDate"},
		{"too many tags", Todo{Title: "ok", Tags: []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"}}, "tags"},
		{"duplicate tags", Todo{Title: "ok", Tags: []string{"a", "a"}}, "tags"},
		{"tag too long", Todo{Title: "ok", Tags: []string{long(MaxTagLength + 1)}}, "tags.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := newTestStore(t)

			_, err := store.AddTodo(tt.todo)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Expected field %q, got %q (%s)", tt.field, ve.Field, ve.Message)
			}
			if todos, _ := store.GetAllTodos(); len(todos) != 0 {
				t.Errorf("Expected nothing stored, got %d todos", len(todos))
			}
		})
	}
}

func TestStore_UpdateTodo(t *testing.T) {
	store, clock := newTestStore(t)

	orig, err := store.AddTodo(Todo{Title: "Draft", Tags: []string{"work"}, DueDate: "2025-04-01"})
	if err != nil {
		t.Fatal(err)
	}

	clock.Advance(time.Minute)
	prio := PriorityHigh
	updated, err := store.UpdateTodo(orig.ID, Update{
		Title:    strPtr("Final"),
		Priority: &prio,
	})
	if err != nil {
		t.Fatalf("UpdateTodo failed: %v", err)
	}

	if updated.ID != orig.ID || !updated.CreatedAt.Equal(orig.CreatedAt) {
		t.Error("Expected id and createdAt preserved")
	}
	if !orig.UpdatedAt.Before(updated.UpdatedAt) {
		t.Errorf("Expected updatedAt to advance, %s -> %s", orig.UpdatedAt, updated.UpdatedAt)
	}
	if updated.Title != "Final" || updated.Priority != PriorityHigh {
		t.Errorf("Expected supplied fields applied, got %+v", updated)
	}
	if updated.DueDate != "2025-04-01" || !reflect.DeepEqual(updated.Tags, []string{"work"}) {
		t.Errorf("Expected untouched fields kept, got %+v", updated)
	}

	// Clearing the due date with an empty string
	cleared, err := store.UpdateTodo(orig.ID, Update{DueDate: strPtr("")})
	if err != nil {
		t.Fatal(err)
	}
	if cleared.DueDate != "" {
		t.Errorf("Expected due date cleared, got %q", cleared.DueDate)
	}

	disk := readDisk(t, store.Path())
	if disk.Todos[0].Title != "Final" {
		t.Errorf("Expected update persisted, got %q", disk.Todos[0].Title)
	}
}

func TestStore_UpdateTodoEmptyStillTouchesUpdatedAt(t *testing.T) {
	store, clock := newTestStore(t)
	orig, _ := store.AddTodo(Todo{Title: "Same"})

	clock.Advance(time.Second)
	updated, err := store.UpdateTodo(orig.ID, Update{})
	if err != nil {
		t.Fatal(err)
	}
	if !updated.UpdatedAt.Equal(NewTimestamp(clock.Now())) {
		t.Errorf("Expected updatedAt=%s, got %s", NewTimestamp(clock.Now()), updated.UpdatedAt)
	}
}

func TestStore_UpdateTodoNeverMovesBackwards(t *testing.T) {
	store, clock := newTestStore(t)
	orig, _ := store.AddTodo(Todo{Title: "Clock skew"})

	clock.Advance(-time.Hour)
	updated, err := store.UpdateTodo(orig.ID, Update{Completed: boolPtr(true)})
	if err != nil {
		t.Fatal(err)
	}
	if updated.UpdatedAt.Before(orig.UpdatedAt) {
		t.Errorf("updatedAt moved backwards: %s -> %s", orig.UpdatedAt, updated.UpdatedAt)
	}
}

func TestStore_UpdateTodoNotFound(t *testing.T) {
	fsys := &faultFS{}
	store, _ := newTestStore(t, WithFileSystem(fsys))
	writes := fsys.writeCount()

	_, err := store.UpdateTodo("missing-id", Update{Title: strPtr("x")})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Expected NotFoundError, got %v", err)
	}
	if nf.ID != "missing-id" {
		t.Errorf("Expected id missing-id, got %q", nf.ID)
	}
	if fsys.writeCount() != writes {
		t.Error("Expected no file write")
	}
}

func TestStore_UpdateTodoInvalidLeavesOriginal(t *testing.T) {
	store, _ := newTestStore(t)
	orig, _ := store.AddTodo(Todo{Title: "Valid"})

	_, err := store.UpdateTodo(orig.ID, Update{Title: strPtr("  ")})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}

	bad := Priority("someday")
	if _, err := store.UpdateTodo(orig.ID, Update{Priority: &bad}); !errors.As(err, &ve) {
		t.Fatalf("Expected ValidationError for priority, got %v", err)
	}

	got, ok, _ := store.GetTodoByID(orig.ID)
	if !ok || !reflect.DeepEqual(got, orig) {
		t.Errorf("Expected original untouched, got %+v", got)
	}
}

func TestStore_DeleteTodo(t *testing.T) {
	fsys := &faultFS{}
	store, _ := newTestStore(t, WithFileSystem(fsys))
	a, _ := store.AddTodo(Todo{Title: "A"})
	b, _ := store.AddTodo(Todo{Title: "B"})

	writes := fsys.writeCount()
	deleted, err := store.DeleteTodo("nope")
	if err != nil || deleted {
		t.Fatalf("Expected (false, nil), got (%v, %v)", deleted, err)
	}
	if fsys.writeCount() != writes {
		t.Error("Expected no write when deleting a missing id")
	}

	deleted, err = store.DeleteTodo(a.ID)
	if err != nil || !deleted {
		t.Fatalf("Expected (true, nil), got (%v, %v)", deleted, err)
	}
	todos, _ := store.GetAllTodos()
	if len(todos) != 1 || todos[0].ID != b.ID {
		t.Errorf("Expected only B left, got %+v", todos)
	}
	if disk := readDisk(t, store.Path()); len(disk.Todos) != 1 {
		t.Errorf("Expected delete persisted, got %d todos on disk", len(disk.Todos))
	}
}

func TestStore_ClearAllTodos(t *testing.T) {
	store, _ := newTestStore(t)
	store.AddTodo(Todo{Title: "A"})
	store.AddTodo(Todo{Title: "B", Completed: true})

	if err := store.ClearAllTodos(); err != nil {
		t.Fatal(err)
	}
	todos, _ := store.GetAllTodos()
	if len(todos) != 0 {
		t.Errorf("Expected 0 todos, got %d", len(todos))
	}
	disk := readDisk(t, store.Path())
	if len(disk.Todos) != 0 || disk.Metadata.TotalCount != 0 || disk.Metadata.CompletedCount != 0 {
		t.Errorf("Expected cleared file, got %+v", disk.Metadata)
	}
}

func TestStore_GetAllTodosReturnsCopy(t *testing.T) {
	store, _ := newTestStore(t)
	store.AddTodo(Todo{Title: "A", Tags: []string{"x"}})

	todos, _ := store.GetAllTodos()
	todos[0].Title = "mutated"
	todos[0].Tags[0] = "mutated"

	again, _ := store.GetAllTodos()
	if again[0].Title != "A" || again[0].Tags[0] != "x" {
		t.Errorf("Expected store unaffected by caller mutation, got %+v", again[0])
	}
}

func TestStore_GetTodoByIDAbsent(t *testing.T) {
	store, _ := newTestStore(t)
	_, ok, err := store.GetTodoByID("ghost")
	if err != nil || ok {
		t.Errorf("Expected (false, nil), got (%v, %v)", ok, err)
	}
}

func TestStore_GetTodoListCounts(t *testing.T) {
	store, _ := newTestStore(t)
	store.AddTodo(Todo{Title: "A"})
	store.AddTodo(Todo{Title: "B", Completed: true})
	store.AddTodo(Todo{Title: "C", Completed: true})

	list, err := store.GetTodoList()
	if err != nil {
		t.Fatal(err)
	}
	if list.Metadata.TotalCount != 3 || list.Metadata.CompletedCount != 2 {
		t.Errorf("Expected counts 3/2, got %d/%d", list.Metadata.TotalCount, list.Metadata.CompletedCount)
	}
	if list.Metadata.Version != CurrentVersion {
		t.Errorf("Expected version %s, got %s", CurrentVersion, list.Metadata.Version)
	}
}

func TestStore_GetStatsOverdue(t *testing.T) {
	store, clock := newTestStore(t)
	yesterday := clock.Now().AddDate(0, 0, -1).Format("2006-01-02")
	today := clock.Now().Format("2006-01-02")

	todo, _ := store.AddTodo(Todo{Title: "Late", DueDate: yesterday, Priority: PriorityHigh})
	store.AddTodo(Todo{Title: "Due today", DueDate: today, Priority: PriorityLow})
	store.AddTodo(Todo{Title: "No date"})

	stats, _ := store.GetStats()
	if stats.Overdue != 1 {
		t.Errorf("Expected 1 overdue, got %d", stats.Overdue)
	}
	if stats.Total != 3 || stats.ByPriority.High != 1 || stats.ByPriority.Low != 1 || stats.ByPriority.Medium != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}

	store.UpdateTodo(todo.ID, Update{Completed: boolPtr(true)})
	stats, _ = store.GetStats()
	if stats.Overdue != 0 {
		t.Errorf("Expected completed todo not overdue, got %d", stats.Overdue)
	}
	if stats.Completed != 1 {
		t.Errorf("Expected 1 completed, got %d", stats.Completed)
	}
}

func TestStore_RoundTrip(t *testing.T) {
	store, clock := newTestStore(t)
	store.AddTodo(Todo{Title: "First", Description: "with details", Tags: []string{"a", "b"}})
	clock.Advance(time.Millisecond * 1500)
	store.AddTodo(Todo{Title: "Second", DueDate: "2025-12-31", Priority: PriorityLow, Completed: true})
	clock.Advance(time.Second)
	store.AddTodo(Todo{Title: "Third ✓ unicode"})

	before, _ := store.GetAllTodos()

	reopened := NewStore(store.Path())
	if err := reopened.Initialize(); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	after, _ := reopened.GetAllTodos()

	if !reflect.DeepEqual(before, after) {
		t.Errorf("Round trip mismatch:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestStore_ConcurrentAddsKeepIDsUnique(t *testing.T) {
	clock := &fixedClock{now: testStart()}
	store := NewStore(filepath.Join(t.TempDir(), "todos.json"), WithClock(clock.Now))
	if err := store.Initialize(); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Half the goroutines race on the same explicit id
			id := ""
			if i%2 == 0 {
				id = "shared"
			}
			store.AddTodo(Todo{ID: id, Title: fmt.Sprintf("todo %d", i)})
		}(i)
	}
	wg.Wait()

	todos, _ := store.GetAllTodos()
	seen := map[string]bool{}
	for _, todo := range todos {
		if seen[todo.ID] {
			t.Fatalf("Duplicate id %s", todo.ID)
		}
		seen[todo.ID] = true
	}
	if len(todos) != 11 {
		t.Errorf("Expected 11 todos (10 generated + 1 shared), got %d", len(todos))
	}
	if disk := readDisk(t, store.Path()); len(disk.Todos) != len(todos) {
		t.Errorf("Expected disk to match memory, got %d vs %d", len(disk.Todos), len(todos))
	}
}

func TestStore_InitializeMkdirFailure(t *testing.T) {
	fsys := &faultFS{mkdirErr: fs.ErrPermission}
	store := NewStore(filepath.Join(t.TempDir(), "x", "todos.json"), WithFileSystem(fsys))

	err := store.Initialize()
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("Expected StorageError, got %v", err)
	}
	if store.Ready() {
		t.Error("Expected store not ready after failure")
	}
}
