package scheduler

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls scheduler intervals, timeouts and job selection.
type Config struct {
	RunInterval       time.Duration
	JobTimeout        time.Duration
	RecoveryThreshold time.Duration
	EnabledJobs       []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:       time.Minute,
		JobTimeout:        2 * time.Minute,
		RecoveryThreshold: 15 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.RecoveryThreshold <= 0 {
		c.RecoveryThreshold = defaults.RecoveryThreshold
	}
	return c
}

// ProvideConfig builds the scheduler config from SCHEDULER_* env vars.
func ProvideConfig() Config {
	cfg := Config{
		RunInterval:       envDuration("SCHEDULER_RUN_INTERVAL"),
		JobTimeout:        envDuration("SCHEDULER_JOB_TIMEOUT"),
		RecoveryThreshold: envDuration("SCHEDULER_RECOVERY_THRESHOLD"),
	}
	if jobs := strings.TrimSpace(os.Getenv("SCHEDULER_ENABLED_JOBS")); jobs != "" {
		for _, job := range strings.Split(jobs, ",") {
			if job = strings.TrimSpace(job); job != "" {
				cfg.EnabledJobs = append(cfg.EnabledJobs, job)
			}
		}
	}
	return cfg.withDefaults()
}

func envDuration(key string) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return 0
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	// Plain numbers are read as seconds.
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return 0
}
