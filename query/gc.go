package query

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule is the cron schedule the Collector runs Sweep on.
const DefaultSweepSchedule = "@every 1m"

// Sweep evicts entries nobody has read for longer than their policy's GC window.
// Entries being fetched for the first time are kept. It returns the number of
// evicted entries.
func (c *Cache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if e.status == StatusLoading {
			continue
		}
		if now.Sub(e.lastAccess) > e.policy.GCTime {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Collector runs Sweep on a cron schedule.
type Collector struct {
	cache  *Cache
	cron   *cron.Cron
	logger *slog.Logger
}

// NewCollector schedules Sweep on c. An empty schedule uses DefaultSweepSchedule.
func NewCollector(c *Cache, schedule string, logger *slog.Logger) (*Collector, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if logger == nil {
		logger = c.logger
	}
	gc := &Collector{
		cache:  c,
		cron:   cron.New(),
		logger: logger,
	}
	if _, err := gc.cron.AddFunc(schedule, gc.run); err != nil {
		return nil, fmt.Errorf("schedule cache sweep %q: %w", schedule, err)
	}
	return gc, nil
}

func (gc *Collector) run() {
	if n := gc.cache.Sweep(gc.cache.now()); n > 0 {
		gc.logger.Debug("cache sweep", "evicted", n, "remaining", gc.cache.Len())
	}
}

// Start begins running the schedule in the background.
func (gc *Collector) Start() {
	gc.cron.Start()
	gc.logger.Debug("cache collector started")
}

// Stop stops the schedule and waits for a running sweep to finish.
func (gc *Collector) Stop() {
	<-gc.cron.Stop().Done()
}

// Shutdown stops the collector and closes the cache.
func (gc *Collector) Shutdown() error {
	gc.Stop()
	return gc.cache.Close()
}
