package todo

import (
	"fmt"
	"time"

	"github.com/vthunder/todo-mcp/internal/logging"
)

// retryPolicy bounds how an I/O operation is retried
type retryPolicy struct {
	attempts int
	delay    time.Duration
	backoff  bool // double the delay after every failed attempt
}

var (
	// reads during Initialize: fixed 1s pause
	readRetry = retryPolicy{attempts: 3, delay: time.Second}
	// writes: 500ms, then 1s
	writeRetry = retryPolicy{attempts: 3, delay: 500 * time.Millisecond, backoff: true}
)

// withRetry runs op until it succeeds, fails permanently, or the policy is
// exhausted. Exhaustion yields a StorageError wrapping the last failure.
func withRetry(policy retryPolicy, sleep func(time.Duration), what string, op func() error) error {
	var lastErr error
	delay := policy.delay

	for attempt := 1; attempt <= policy.attempts; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if isPermanent(err) {
			return err
		}

		logging.Warn("store", "%s failed, attempt %d/%d: %v", what, attempt, policy.attempts, err)

		if attempt == policy.attempts {
			break
		}
		sleep(delay)
		if policy.backoff {
			delay *= 2
		}
	}

	return &StorageError{
		Message: fmt.Sprintf("%s failed after %d attempts", what, policy.attempts),
		Err:     lastErr,
	}
}
