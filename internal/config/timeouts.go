package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout values for cloud operations.
type Timeouts struct {
	InstanceRunning    time.Duration // Waiting for an instance to reach running state
	InstanceTerminated time.Duration // Waiting for an instance to reach terminated state
	Delete             time.Duration // Per-resource delete operations
	PollInterval       time.Duration // Interval between state polls
	RetryMaxAttempts   int           // Maximum number of retry attempts for delete calls
	RetryInitialDelay  time.Duration // Initial delay between retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If a variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - SECBASE_TIMEOUT_INSTANCE_RUNNING (default: 5m)
//   - SECBASE_TIMEOUT_INSTANCE_TERMINATED (default: 5m)
//   - SECBASE_TIMEOUT_DELETE (default: 2m)
//   - SECBASE_POLL_INTERVAL (default: 10s)
//   - SECBASE_RETRY_MAX_ATTEMPTS (default: 4)
//   - SECBASE_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		InstanceRunning:    parseDuration("SECBASE_TIMEOUT_INSTANCE_RUNNING", 5*time.Minute),
		InstanceTerminated: parseDuration("SECBASE_TIMEOUT_INSTANCE_TERMINATED", 5*time.Minute),
		Delete:             parseDuration("SECBASE_TIMEOUT_DELETE", 2*time.Minute),
		PollInterval:       parseDuration("SECBASE_POLL_INTERVAL", 10*time.Second),
		RetryMaxAttempts:   parseInt("SECBASE_RETRY_MAX_ATTEMPTS", 4),
		RetryInitialDelay:  parseDuration("SECBASE_RETRY_INITIAL_DELAY", 1*time.Second),
	}
}

// parseDuration parses a duration from an environment variable, falling
// back to the default when unset or invalid.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

// parseInt parses an integer from an environment variable, falling back to
// the default when unset or invalid.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}
