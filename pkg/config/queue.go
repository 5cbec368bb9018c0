package config

import "time"

// QueueConfig controls how incident jobs are polled, claimed, retried and
// rate limited.
type QueueConfig struct {
	// WorkerCount is the number of worker goroutines per pod.
	WorkerCount int `yaml:"worker_count" validate:"min=1"`

	// MaxConcurrentJobs is the global limit of incidents being processed
	// across all pods. Enforced by a COUNT(*) check before claiming.
	MaxConcurrentJobs int `yaml:"max_concurrent_jobs" validate:"min=1"`

	// MaxRetries is how many times a failed job is redelivered before it is
	// marked failed for good.
	MaxRetries int `yaml:"max_retries" validate:"min=0"`

	// BackoffBase is the delay before the first retry; each further retry
	// doubles it.
	BackoffBase time.Duration `yaml:"backoff_base" validate:"gt=0"`

	// BackoffMax caps the retry delay.
	BackoffMax time.Duration `yaml:"backoff_max" validate:"gtefield=BackoffBase"`

	// RateLimitJobs is the number of job starts allowed per RateLimitWindow.
	RateLimitJobs int `yaml:"rate_limit_jobs" validate:"min=1"`

	// RateLimitWindow is the rolling window for RateLimitJobs.
	RateLimitWindow time.Duration `yaml:"rate_limit_window" validate:"gt=0"`

	PollInterval       time.Duration `yaml:"poll_interval" validate:"gt=0"`
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter" validate:"gte=0,ltfield=PollInterval"`

	// HeartbeatInterval is how often an active job refreshes its heartbeat.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" validate:"gt=0"`

	// GracefulShutdownTimeout bounds how long shutdown waits for active jobs.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout" validate:"gt=0"`

	// OrphanDetectionInterval is how often stale jobs and unqueued incidents
	// are scanned for.
	OrphanDetectionInterval time.Duration `yaml:"orphan_detection_interval" validate:"gt=0"`

	// OrphanThreshold is how long an active job can go without a heartbeat,
	// or a received incident without a job, before it is recovered.
	OrphanThreshold time.Duration `yaml:"orphan_threshold" validate:"gtfield=HeartbeatInterval"`
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		WorkerCount:             2,
		MaxConcurrentJobs:       2,
		MaxRetries:              3,
		BackoffBase:             30 * time.Second,
		BackoffMax:              30 * time.Minute,
		RateLimitJobs:           5,
		RateLimitWindow:         60 * time.Second,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		HeartbeatInterval:       30 * time.Second,
		GracefulShutdownTimeout: 15 * time.Minute,
		OrphanDetectionInterval: 2 * time.Minute,
		OrphanThreshold:         5 * time.Minute,
	}
}
