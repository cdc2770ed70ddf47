package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultRetention is how long an idle session is kept.
	DefaultRetention = 24 * time.Hour
	// DefaultCleanupInterval is the default interval between sweeps.
	DefaultCleanupInterval = 10 * time.Minute
)

// CleanupConfig holds configuration for the eviction job.
type CleanupConfig struct {
	Retention       time.Duration // idle time before a session is evicted
	CleanupInterval time.Duration // interval between sweeps
}

// DefaultCleanupConfig returns the default eviction configuration.
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		Retention:       DefaultRetention,
		CleanupInterval: DefaultCleanupInterval,
	}
}

// CleanupJob periodically evicts idle sessions so in-memory state stays
// bounded.
type CleanupJob struct {
	store  *Store
	config CleanupConfig

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
}

// NewCleanupJob creates an eviction job for the store.
func NewCleanupJob(store *Store, config CleanupConfig) *CleanupJob {
	if config.Retention <= 0 {
		config.Retention = DefaultRetention
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCleanupInterval
	}
	return &CleanupJob{
		store:  store,
		config: config,
	}
}

// Start begins the periodic sweep in a goroutine. Calling Start on a
// running job is a no-op.
func (j *CleanupJob) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return
	}
	j.running = true
	j.stopChan = make(chan struct{})

	go j.run(ctx)

	slog.Info("session cleanup job started",
		"retention", j.config.Retention,
		"interval", j.config.CleanupInterval)
}

// Stop stops the sweep.
func (j *CleanupJob) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.running {
		return
	}
	close(j.stopChan)
	j.running = false

	slog.Info("session cleanup job stopped")
}

// RunOnce executes a single sweep immediately.
func (j *CleanupJob) RunOnce() int {
	return j.store.CleanupIdle(j.config.Retention)
}

// IsRunning reports whether the job is active.
func (j *CleanupJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

func (j *CleanupJob) run(ctx context.Context) {
	ticker := time.NewTicker(j.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stopChan:
			return
		case <-ticker.C:
			if evicted := j.RunOnce(); evicted > 0 {
				slog.Info("session cleanup completed", "evicted", evicted)
			}
		}
	}
}
