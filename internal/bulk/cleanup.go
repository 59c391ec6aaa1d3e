package bulk

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"certificate-studio/certificate-backend/internal/metrics"
	"certificate-studio/certificate-backend/pkg/storage"
)

// Cleaner periodically deletes archives older than the retention window
type Cleaner struct {
	cron      *cron.Cron
	schedule  string
	retention time.Duration
	archives  *storage.Disk
	registry  *Registry
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
	mu        sync.Mutex
	running   bool
}

// NewCleaner accepts any robfig/cron spec, including descriptors such as
// "@every 15m"
func NewCleaner(archives *storage.Disk, registry *Registry, retention time.Duration, schedule string, m *metrics.Metrics, logger *zap.Logger) *Cleaner {
	return &Cleaner{
		cron:      cron.New(),
		schedule:  schedule,
		retention: retention,
		archives:  archives,
		registry:  registry,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Start registers the cleanup job and starts the scheduler
func (c *Cleaner) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("archive cleaner already running")
	}
	if _, err := c.cron.AddFunc(c.schedule, func() { c.RunOnce() }); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", c.schedule, err)
	}
	c.cron.Start()
	c.running = true
	c.logger.Info("Archive cleaner started", zap.String("schedule", c.schedule), zap.Duration("retention", c.retention))
	return nil
}

// Stop waits for a running cleanup to finish
func (c *Cleaner) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	<-c.cron.Stop().Done()
	c.running = false
}

// RunOnce removes expired archives and returns how many were deleted
func (c *Cleaner) RunOnce() int {
	cutoff := c.now().Add(-c.retention)

	files, err := c.archives.List(".zip")
	if err != nil {
		c.logger.Error("Failed to list archives", zap.Error(err))
		return 0
	}

	removed := 0
	for _, f := range files {
		if !f.ModTime.Before(cutoff) {
			continue
		}
		if err := c.archives.Remove(f.Name); err != nil {
			c.logger.Warn("Failed to remove archive", zap.String("zip", f.Name), zap.Error(err))
			continue
		}
		c.registry.Forget(f.Name)
		removed++
	}
	c.registry.Prune(cutoff)

	c.metrics.AddArchivesRemoved(removed)
	if removed > 0 {
		c.logger.Info("Expired archives removed", zap.Int("count", removed))
	}
	return removed
}
