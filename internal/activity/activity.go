package activity

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Type identifies what kind of activity this is
type Type string

const (
	TypeToolCall Type = "tool_call" // A tool handler ran
	TypeStartup  Type = "startup"   // Server started and the store loaded
	TypeBackup   Type = "backup"    // Backup created from the CLI
	TypeRestore  Type = "restore"   // Restore run from the CLI
)

// Entry represents a single activity log entry
type Entry struct {
	ID        int64          `json:"id,omitempty"`
	Timestamp time.Time      `json:"ts"`
	Type      Type           `json:"type"`
	RequestID string         `json:"request_id,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Duration  time.Duration  `json:"duration_ns"`
	Success   bool           `json:"success"`
	ErrorCode string         `json:"error_code,omitempty"`
	Summary   string         `json:"summary"`
	Data      map[string]any `json:"data,omitempty"` // Structured details
}

// Log is the SQLite-backed activity logger. A nil *Log is valid and
// records nothing.
type Log struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the activity database at path
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	l := &Log{db: db, path: path}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return l, nil
}

func (l *Log) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS activity (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts DATETIME NOT NULL,
		type TEXT NOT NULL,
		request_id TEXT,
		tool TEXT,
		duration_ns INTEGER NOT NULL DEFAULT 0,
		success INTEGER NOT NULL,
		error_code TEXT,
		summary TEXT NOT NULL,
		data TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_activity_ts ON activity(ts);
	CREATE INDEX IF NOT EXISTS idx_activity_tool ON activity(tool);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Path returns the database file path
func (l *Log) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Close closes the database
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	return l.db.Close()
}

// Record appends an entry to the activity log
func (l *Log) Record(entry Entry) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	// Set timestamp if not provided
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	var data sql.NullString
	if len(entry.Data) > 0 {
		b, err := json.Marshal(entry.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal activity data: %w", err)
		}
		data = sql.NullString{String: string(b), Valid: true}
	}

	_, err := l.db.Exec(`
		INSERT INTO activity (ts, type, request_id, tool, duration_ns, success, error_code, summary, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Timestamp.UTC(), string(entry.Type), entry.RequestID, entry.Tool,
		int64(entry.Duration), entry.Success, entry.ErrorCode, entry.Summary, data,
	)
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// RecordToolCall logs one tool invocation
func (l *Log) RecordToolCall(requestID, tool string, started time.Time, errCode, summary string) error {
	return l.Record(Entry{
		Timestamp: started,
		Type:      TypeToolCall,
		RequestID: requestID,
		Tool:      tool,
		Duration:  time.Since(started),
		Success:   errCode == "",
		ErrorCode: errCode,
		Summary:   summary,
	})
}

// Recent returns the last n entries, newest first
func (l *Log) Recent(n int) ([]Entry, error) {
	return l.query(`SELECT id, ts, type, request_id, tool, duration_ns, success, error_code, summary, data
		FROM activity ORDER BY id DESC LIMIT ?`, n)
}

// ByTool returns the last limit calls of one tool, newest first
func (l *Log) ByTool(tool string, limit int) ([]Entry, error) {
	return l.query(`SELECT id, ts, type, request_id, tool, duration_ns, success, error_code, summary, data
		FROM activity WHERE tool = ? ORDER BY id DESC LIMIT ?`, tool, limit)
}

// Failures returns the last limit unsuccessful entries, newest first
func (l *Log) Failures(limit int) ([]Entry, error) {
	return l.query(`SELECT id, ts, type, request_id, tool, duration_ns, success, error_code, summary, data
		FROM activity WHERE success = 0 ORDER BY id DESC LIMIT ?`, limit)
}

func (l *Log) query(q string, args ...any) ([]Entry, error) {
	if l == nil {
		return nil, nil
	}
	rows, err := l.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                        Entry
			typ                      string
			requestID, tool, errCode sql.NullString
			data                     sql.NullString
			durationNS               int64
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &typ, &requestID, &tool, &durationNS, &e.Success, &errCode, &e.Summary, &data); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		e.Type = Type(typ)
		e.RequestID = requestID.String
		e.Tool = tool.String
		e.ErrorCode = errCode.String
		e.Duration = time.Duration(durationNS)
		if data.Valid {
			if err := json.Unmarshal([]byte(data.String), &e.Data); err != nil {
				return nil, fmt.Errorf("failed to parse activity data: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
