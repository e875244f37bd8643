package activity

import (
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// helper: open a Log backed by a temp directory
func newTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "system", "activity.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

// --- Basic write/read ---

func TestRecordAndRecent(t *testing.T) {
	l := newTestLog(t)

	ts := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	err := l.Record(Entry{
		Timestamp: ts,
		Type:      TypeToolCall,
		RequestID: "req_1_1",
		Tool:      "create_todo",
		Duration:  15 * time.Millisecond,
		Success:   true,
		Summary:   `Created todo: "Buy milk"`,
		Data:      map[string]any{"todo_id": "abc"},
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	entries, err := l.Recent(10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.ID == 0 {
		t.Error("Expected ID to be assigned")
	}
	if !e.Timestamp.Equal(ts) {
		t.Errorf("Expected ts %v, got %v", ts, e.Timestamp)
	}
	if e.Type != TypeToolCall || e.Tool != "create_todo" || e.RequestID != "req_1_1" {
		t.Errorf("Unexpected entry %+v", e)
	}
	if e.Duration != 15*time.Millisecond || !e.Success {
		t.Errorf("Expected 15ms success, got %v/%v", e.Duration, e.Success)
	}
	if e.Data["todo_id"] != "abc" {
		t.Errorf("Expected data round trip, got %v", e.Data)
	}
}

func TestRecord_SetsTimestamp(t *testing.T) {
	l := newTestLog(t)
	before := time.Now().Add(-time.Second)

	if err := l.Record(Entry{Type: TypeStartup, Success: true, Summary: "started"}); err != nil {
		t.Fatal(err)
	}

	entries, _ := l.Recent(1)
	if entries[0].Timestamp.Before(before) {
		t.Errorf("Expected timestamp to be set, got %v", entries[0].Timestamp)
	}
}

func TestRecent_NewestFirstAndLimit(t *testing.T) {
	l := newTestLog(t)
	for i := 0; i < 5; i++ {
		l.Record(Entry{Type: TypeToolCall, Tool: "list_todos", Success: true, Summary: string(rune('a' + i))})
	}

	entries, err := l.Recent(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[0].Summary != "e" || entries[2].Summary != "c" {
		t.Errorf("Expected newest first, got %s..%s", entries[0].Summary, entries[2].Summary)
	}
}

func TestByToolAndFailures(t *testing.T) {
	l := newTestLog(t)
	start := time.Now()
	l.RecordToolCall("req_1", "create_todo", start, "", "ok")
	l.RecordToolCall("req_2", "update_todo", start, "TODO_NOT_FOUND", "missing")
	l.RecordToolCall("req_3", "create_todo", start, "VALIDATION_ERROR", "bad title")

	creates, err := l.ByTool("create_todo", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(creates) != 2 {
		t.Errorf("Expected 2 create_todo calls, got %d", len(creates))
	}

	failures, err := l.Failures(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(failures) != 2 {
		t.Fatalf("Expected 2 failures, got %d", len(failures))
	}
	if failures[0].ErrorCode != "VALIDATION_ERROR" || failures[0].Success {
		t.Errorf("Unexpected newest failure %+v", failures[0])
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.db")
	l, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	l.Record(Entry{Type: TypeBackup, Success: true, Summary: "backup"})
	l.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	entries, _ := reopened.Recent(10)
	if len(entries) != 1 || entries[0].Type != TypeBackup {
		t.Errorf("Expected persisted backup entry, got %+v", entries)
	}
	if reopened.Path() != path {
		t.Errorf("Expected path %s, got %s", path, reopened.Path())
	}
}

func TestNilLogIsNoop(t *testing.T) {
	var l *Log

	if err := l.Record(Entry{Summary: "ignored"}); err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
	if entries, err := l.Recent(5); err != nil || entries != nil {
		t.Errorf("Expected (nil, nil), got (%v, %v)", entries, err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("Expected nil error on close, got %v", err)
	}
}

// --- Concurrency ---

func TestConcurrentRecords(t *testing.T) {
	l := newTestLog(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.RecordToolCall("req", "list_todos", time.Now(), "", "listed")
		}()
	}
	wg.Wait()

	entries, err := l.Recent(100)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 20 {
		t.Errorf("Expected 20 entries, got %d", len(entries))
	}
}
