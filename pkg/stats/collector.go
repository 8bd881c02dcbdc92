// Package stats keeps a periodically refreshed snapshot of the message
// counters so the API and the stats command never query the database on
// the hot path.
package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/axt-team/axtgate/pkg/bus"
	"github.com/axt-team/axtgate/pkg/logger"
	"github.com/axt-team/axtgate/pkg/store"
)

// Source reports the current per-channel counters.
type Source interface {
	Counts() (map[store.Channel]store.ChannelCounts, error)
}

type systemPublisher interface {
	PublishSystem(bus.SystemEvent)
}

// Snapshot is one collected view of the counters.
type Snapshot struct {
	TakenAt  time.Time                             `json:"taken_at"`
	Channels map[store.Channel]store.ChannelCounts `json:"channels"`
}

// Collector refreshes the snapshot on a cron schedule.
type Collector struct {
	schedule string
	source   Source
	events   systemPublisher
	gron     *gronx.Gronx

	mu   sync.RWMutex
	last Snapshot
}

func NewCollector(schedule string, source Source, events systemPublisher) (*Collector, error) {
	g := gronx.New()
	if !g.IsValid(schedule) {
		return nil, fmt.Errorf("stats: invalid schedule %q", schedule)
	}
	return &Collector{
		schedule: schedule,
		source:   source,
		events:   events,
		gron:     g,
	}, nil
}

// Snapshot returns the most recent collected view. Zero value until the
// first refresh.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// Refresh collects a snapshot immediately.
func (c *Collector) Refresh() error {
	counts, err := c.source.Counts()
	if err != nil {
		return fmt.Errorf("stats: collect counts: %w", err)
	}
	snap := Snapshot{TakenAt: time.Now(), Channels: counts}

	c.mu.Lock()
	c.last = snap
	c.mu.Unlock()

	if c.events != nil {
		c.events.PublishSystem(bus.SystemEvent{Type: bus.EventStatsSnapshot, Source: "stats", Data: snap})
	}
	return nil
}

// Run refreshes once at startup, then once per minute in which the
// schedule is due, until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) {
	if err := c.Refresh(); err != nil {
		logger.WarnC("stats", err.Error())
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			due, err := c.gron.IsDue(c.schedule, now)
			if err != nil {
				logger.WarnC("stats", "schedule check failed: "+err.Error())
				continue
			}
			if !due {
				continue
			}
			if err := c.Refresh(); err != nil {
				logger.WarnC("stats", err.Error())
			}
		}
	}
}
