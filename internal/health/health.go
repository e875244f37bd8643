package health

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/vthunder/todo-mcp/internal/logging"
)

// Check is the outcome of one probe
type Check struct {
	Name    string         `json:"name"`
	Healthy bool           `json:"healthy"`
	Error   string         `json:"error,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Report aggregates every probe
type Report struct {
	Healthy   bool      `json:"healthy"`
	Timestamp time.Time `json:"timestamp"`
	Checks    []Check   `json:"checks"`
}

// MemoryUsage is the resident and virtual size of a process
type MemoryUsage struct {
	RSS     uint64  `json:"rss"`
	VMS     uint64  `json:"vms"`
	Percent float64 `json:"percent"`
}

// Checker probes the store directory and process memory
type Checker struct {
	storePath       string
	memoryThreshold float64
	now             func() time.Time
	memory          func() (MemoryUsage, error)
}

// NewChecker creates a checker for the store at storePath. Memory above
// threshold percent of system RAM is reported unhealthy.
func NewChecker(storePath string, threshold float64) *Checker {
	return &Checker{
		storePath:       storePath,
		memoryThreshold: threshold,
		now:             time.Now,
		memory:          processMemory,
	}
}

// processMemory samples the current process through gopsutil
func processMemory() (MemoryUsage, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return MemoryUsage{}, fmt.Errorf("failed to inspect process: %w", err)
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return MemoryUsage{}, fmt.Errorf("failed to read memory info: %w", err)
	}
	percent, err := proc.MemoryPercent()
	if err != nil {
		return MemoryUsage{}, fmt.Errorf("failed to read memory percent: %w", err)
	}
	return MemoryUsage{RSS: info.RSS, VMS: info.VMS, Percent: float64(percent)}, nil
}

// CheckStorage verifies the store directory exists and accepts a write
func (c *Checker) CheckStorage() Check {
	check := Check{Name: "storage", Details: map[string]any{}}
	dir := filepath.Dir(c.storePath)
	check.Details["directory"] = dir

	info, err := os.Stat(dir)
	if err != nil {
		check.Error = fmt.Sprintf("Storage directory does not exist: %s", dir)
		return check
	}
	if !info.IsDir() {
		check.Error = fmt.Sprintf("Storage path is not a directory: %s", dir)
		return check
	}

	if _, err := os.ReadDir(dir); err != nil {
		check.Error = fmt.Sprintf("No read access to storage directory: %v", err)
		return check
	}

	probe := filepath.Join(dir, fmt.Sprintf(".health_check_%d", c.now().UnixNano()))
	if err := os.WriteFile(probe, []byte("health check"), 0644); err != nil {
		check.Error = fmt.Sprintf("Write test failed: %v", err)
		return check
	}
	if err := os.Remove(probe); err != nil {
		logging.Warn("health", "Failed to remove probe %s: %v", probe, err)
	}

	if _, err := os.Stat(c.storePath); err == nil {
		check.Details["storeFile"] = "present"
	} else {
		check.Details["storeFile"] = "missing"
	}

	check.Healthy = true
	return check
}

// CheckMemory compares process memory to the configured threshold
func (c *Checker) CheckMemory() Check {
	check := Check{Name: "memory"}
	usage, err := c.memory()
	if err != nil {
		check.Error = err.Error()
		return check
	}

	check.Details = map[string]any{
		"rss":       usage.RSS,
		"vms":       usage.VMS,
		"percent":   usage.Percent,
		"threshold": c.memoryThreshold,
	}
	check.Healthy = usage.Percent < c.memoryThreshold
	if !check.Healthy {
		check.Error = fmt.Sprintf("memory usage %.1f%% exceeds %.1f%%", usage.Percent, c.memoryThreshold)
	}
	return check
}

// Run executes every probe
func (c *Checker) Run() Report {
	checks := []Check{c.CheckStorage(), c.CheckMemory()}
	report := Report{Healthy: true, Timestamp: c.now(), Checks: checks}
	for _, check := range checks {
		if !check.Healthy {
			report.Healthy = false
			logging.Warn("health", "%s check failed: %s", check.Name, check.Error)
		}
	}
	return report
}
