package health

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckStorage_Healthy(t *testing.T) {
	dir := t.TempDir()
	c := NewChecker(filepath.Join(dir, "todos.json"), 80)

	check := c.CheckStorage()
	if !check.Healthy {
		t.Fatalf("Expected healthy storage, got %q", check.Error)
	}
	if check.Details["storeFile"] != "missing" {
		t.Errorf("Expected storeFile missing, got %v", check.Details["storeFile"])
	}

	// Probe file must be cleaned up
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".health_check_") {
			t.Errorf("Probe file left behind: %s", e.Name())
		}
	}
}

func TestCheckStorage_MissingDirectory(t *testing.T) {
	c := NewChecker(filepath.Join(t.TempDir(), "nope", "todos.json"), 80)

	check := c.CheckStorage()
	if check.Healthy {
		t.Fatal("Expected unhealthy storage")
	}
	if !strings.Contains(check.Error, "does not exist") {
		t.Errorf("Unexpected error %q", check.Error)
	}
}

func TestCheckStorage_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain")
	os.WriteFile(file, []byte("x"), 0644)
	c := NewChecker(filepath.Join(file, "todos.json"), 80)

	if check := c.CheckStorage(); check.Healthy {
		t.Error("Expected unhealthy when parent is a file")
	}
}

func TestCheckMemory(t *testing.T) {
	tests := []struct {
		name    string
		usage   MemoryUsage
		err     error
		healthy bool
	}{
		{"below threshold", MemoryUsage{RSS: 10 << 20, VMS: 100 << 20, Percent: 1.5}, nil, true},
		{"above threshold", MemoryUsage{Percent: 91}, nil, false},
		{"at threshold", MemoryUsage{Percent: 80}, nil, false},
		{"probe error", MemoryUsage{}, errors.New("no procfs"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker("todos.json", 80)
			c.memory = func() (MemoryUsage, error) { return tt.usage, tt.err }

			check := c.CheckMemory()
			if check.Healthy != tt.healthy {
				t.Errorf("Healthy = %v, want %v (%s)", check.Healthy, tt.healthy, check.Error)
			}
			if tt.err == nil && check.Details["rss"] != tt.usage.RSS {
				t.Errorf("Expected rss in details, got %v", check.Details)
			}
		})
	}
}

func TestCheckMemory_RealProcess(t *testing.T) {
	c := NewChecker("todos.json", 100)
	check := c.CheckMemory()
	if check.Error != "" && check.Details == nil {
		t.Skipf("process memory unavailable here: %s", check.Error)
	}
	if rss, _ := check.Details["rss"].(uint64); rss == 0 {
		t.Errorf("Expected non-zero rss, got %v", check.Details["rss"])
	}
}

func TestRun_Aggregates(t *testing.T) {
	c := NewChecker(filepath.Join(t.TempDir(), "todos.json"), 80)
	c.memory = func() (MemoryUsage, error) { return MemoryUsage{Percent: 99}, nil }

	report := c.Run()
	if report.Healthy {
		t.Error("Expected report unhealthy when memory check fails")
	}
	if len(report.Checks) != 2 || report.Checks[0].Name != "storage" || report.Checks[1].Name != "memory" {
		t.Errorf("Unexpected checks %+v", report.Checks)
	}
	if !report.Checks[0].Healthy {
		t.Errorf("Expected storage healthy, got %q", report.Checks[0].Error)
	}
}
