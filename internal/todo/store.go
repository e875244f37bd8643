package todo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vthunder/todo-mcp/internal/logging"
)

type storeState int

const (
	stateUninitialized storeState = iota
	stateInitializing
	stateReady
)

// Store owns one JSON todo file and its in-memory copy. All methods are safe
// for concurrent use. Two Stores on the same path are not coordinated.
type Store struct {
	path  string
	fs    FileSystem
	now   func() time.Time
	sleep func(time.Duration)
	newID func() string

	mu    sync.RWMutex
	state storeState
	list  TodoList
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithFileSystem replaces the os-backed file access
func WithFileSystem(fsys FileSystem) Option {
	return func(s *Store) { s.fs = fsys }
}

// WithSleep replaces the pause between retries
func WithSleep(sleep func(time.Duration)) Option {
	return func(s *Store) { s.sleep = sleep }
}

// WithIDGenerator replaces uuid generation for new todos
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// NewStore creates a store bound to path. Call Initialize before use.
func NewStore(path string, opts ...Option) *Store {
	s := &Store{
		path:  path,
		fs:    osFS{},
		now:   time.Now,
		sleep: time.Sleep,
		newID: uuid.NewString,
		list:  TodoList{Todos: []Todo{}},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the store file path
func (s *Store) Path() string {
	return s.path
}

// Ready reports whether Initialize has completed
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == stateReady
}

// Initialize loads the store file, creating or migrating it as needed.
// Calling it again on a ready store does nothing.
func (s *Store) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateReady {
		logging.Debug("store", "Initialize called on ready store, ignoring")
		return nil
	}
	s.state = stateInitializing

	list, err := s.load()
	if err != nil {
		s.state = stateUninitialized
		return err
	}

	s.list = list
	s.state = stateReady
	logging.Info("store", "Loaded %d todos from %s", len(list.Todos), s.path)
	return nil
}

// load reads, recognizes and if necessary rewrites the store file
func (s *Store) load() (TodoList, error) {
	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return TodoList{}, &StorageError{Message: fmt.Sprintf("failed to create directory %s", dir), Err: err}
	}

	var data []byte
	missing := false
	err := withRetry(readRetry, s.sleep, "read "+s.path, func() error {
		b, err := s.fs.ReadFile(s.path)
		if errors.Is(err, fs.ErrNotExist) {
			missing = true
			return nil
		}
		if err != nil {
			return err
		}
		data = b
		return nil
	})
	if err != nil {
		return TodoList{}, err
	}

	if missing {
		list := newTodoList(nil, s.now())
		if err := s.persist(list); err != nil {
			return TodoList{}, err
		}
		logging.Info("store", "Created empty todo file at %s", s.path)
		return list, nil
	}

	list, format, err := s.decode(s.path, data)
	if err != nil {
		return TodoList{}, err
	}
	if format != formatCurrent {
		logging.Info("migrate", "Rewriting %s from %s format", s.path, format)
		if err := s.persist(list); err != nil {
			return TodoList{}, err
		}
	}
	return list, nil
}

// decode wraps loadDocument, reporting malformed JSON as a read failure
func (s *Store) decode(path string, data []byte) (TodoList, fileFormat, error) {
	list, format, err := loadDocument(data, s.now(), s.newID)
	if errors.Is(err, errMalformedJSON) {
		return TodoList{}, 0, &FileError{Op: OpRead, Path: path, Message: "failed to parse todo file", Err: err}
	}
	return list, format, err
}

// persist writes list to the store file, retrying transient failures
func (s *Store) persist(list TodoList) error {
	return s.writeList(s.path, list)
}

func (s *Store) writeList(path string, list TodoList) error {
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return &FileError{Op: OpWrite, Path: path, Message: "failed to marshal todos", Err: err}
	}

	err = withRetry(writeRetry, s.sleep, "write "+path, func() error {
		return s.fs.WriteFile(path, data, 0644)
	})
	if err != nil {
		return &FileError{Op: OpWrite, Path: path, Message: "failed to save todos", Err: err}
	}
	return nil
}

// commit persists next and, only when that succeeds, makes it current.
// Caller must hold the write lock.
func (s *Store) commit(next TodoList) error {
	next.Metadata.Version = CurrentVersion
	next.Metadata.LastModified = NewTimestamp(s.now())
	next.recount()
	if err := s.persist(next); err != nil {
		return err
	}
	s.list = next
	return nil
}

func (s *Store) indexOf(id string) int {
	for i := range s.list.Todos {
		if s.list.Todos[i].ID == id {
			return i
		}
	}
	return -1
}

// GetAllTodos returns a copy of every todo in storage order
func (s *Store) GetAllTodos() ([]Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != stateReady {
		return nil, notInitialized()
	}
	return s.list.clone().Todos, nil
}

// GetTodoByID returns the todo with id. A missing todo is reported through
// the bool, not as an error.
func (s *Store) GetTodoByID(id string) (Todo, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != stateReady {
		return Todo{}, false, notInitialized()
	}
	if i := s.indexOf(id); i >= 0 {
		return s.list.Todos[i].clone(), true, nil
	}
	return Todo{}, false, nil
}

// AddTodo fills defaults on t, validates it and appends it
func (s *Store) AddTodo(t Todo) (Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateReady {
		return Todo{}, notInitialized()
	}

	t = t.clone()
	now := NewTimestamp(s.now())
	if t.ID == "" {
		t.ID = s.newID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}

	if err := ValidateTodo(t); err != nil {
		return Todo{}, err
	}
	if s.indexOf(t.ID) >= 0 {
		return Todo{}, &ValidationError{
			Field:   "id",
			Message: fmt.Sprintf("todo with id %s already exists", t.ID),
		}
	}

	next := s.list.clone()
	next.Todos = append(next.Todos, t)
	if err := s.commit(next); err != nil {
		return Todo{}, err
	}

	logging.Debug("store", "Added todo %s: %s", t.ID, logging.Truncate(t.Title, 60))
	return t.clone(), nil
}

// UpdateTodo applies the supplied fields of u to the todo with id. UpdatedAt
// always moves to now and never backwards.
func (s *Store) UpdateTodo(id string, u Update) (Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateReady {
		return Todo{}, notInitialized()
	}

	i := s.indexOf(id)
	if i < 0 {
		return Todo{}, &NotFoundError{Resource: "todo", ID: id}
	}
	existing := s.list.Todos[i]

	merged, err := u.applyTo(existing)
	if err != nil {
		return Todo{}, err
	}
	merged.ID = existing.ID
	merged.CreatedAt = existing.CreatedAt
	merged.UpdatedAt = NewTimestamp(s.now())
	if merged.UpdatedAt.Before(existing.UpdatedAt) {
		merged.UpdatedAt = existing.UpdatedAt
	}

	if err := ValidateTodo(merged); err != nil {
		return Todo{}, err
	}

	next := s.list.clone()
	next.Todos[i] = merged
	if err := s.commit(next); err != nil {
		return Todo{}, err
	}

	logging.Debug("store", "Updated todo %s fields=%v", id, u.Fields())
	return merged.clone(), nil
}

// DeleteTodo removes the todo with id and reports whether it existed
func (s *Store) DeleteTodo(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateReady {
		return false, notInitialized()
	}

	i := s.indexOf(id)
	if i < 0 {
		return false, nil
	}

	next := s.list.clone()
	next.Todos = append(next.Todos[:i], next.Todos[i+1:]...)
	if err := s.commit(next); err != nil {
		return false, err
	}

	logging.Debug("store", "Deleted todo %s", id)
	return true, nil
}

// ClearAllTodos removes every todo
func (s *Store) ClearAllTodos() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateReady {
		return notInitialized()
	}

	next := s.list.clone()
	next.Todos = []Todo{}
	if err := s.commit(next); err != nil {
		return err
	}

	logging.Info("store", "Cleared all todos")
	return nil
}

// GetStats summarizes the live todos
func (s *Store) GetStats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != stateReady {
		return Stats{}, notInitialized()
	}
	return ComputeStats(s.list.Todos, s.now()), nil
}

// GetTodoList returns a copy of the whole list with freshly derived counts
func (s *Store) GetTodoList() (TodoList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != stateReady {
		return TodoList{}, notInitialized()
	}
	list := s.list.clone()
	list.recount()
	return list, nil
}
