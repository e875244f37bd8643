package todo

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/vthunder/todo-mcp/internal/logging"
)

const backupTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// BackupPath returns the sibling backup name for storePath at t:
// <dir>/<stem>_backup_<timestamp><ext>
func BackupPath(storePath string, t time.Time) string {
	ext := filepath.Ext(storePath)
	stem := strings.TrimSuffix(filepath.Base(storePath), ext)
	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(t.UTC().Format(backupTimeLayout))
	return filepath.Join(filepath.Dir(storePath), stem+"_backup_"+stamp+ext)
}

// CreateBackup writes the in-memory list next to the store file and returns
// the backup's path.
func (s *Store) CreateBackup() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != stateReady {
		return "", notInitialized()
	}

	path := BackupPath(s.path, s.now())
	list := s.list.clone()
	list.recount()

	if err := s.writeList(path, list); err != nil {
		return "", &FileError{Op: OpBackup, Path: path, Message: "failed to write backup", Err: err}
	}

	logging.Info("store", "Backed up %d todos to %s", len(list.Todos), path)
	return path, nil
}

// RestoreFromBackup loads path through the same validate-or-migrate pipeline
// as Initialize, replaces the in-memory list and saves it to the primary path.
func (s *Store) RestoreFromBackup(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateReady {
		return notInitialized()
	}

	data, err := s.fs.ReadFile(path)
	if err != nil {
		return &FileError{Op: OpRestore, Path: path, Message: "failed to read backup", Err: err}
	}

	list, format, err := s.decode(path, data)
	if err != nil {
		return &FileError{Op: OpRestore, Path: path, Message: "backup is not a valid todo file", Err: err}
	}

	if err := s.commit(list); err != nil {
		return &FileError{Op: OpRestore, Path: s.path, Message: "failed to save restored todos", Err: err}
	}

	logging.Info("store", "Restored %d todos from %s (%s format)", len(list.Todos), path, format)
	return nil
}
