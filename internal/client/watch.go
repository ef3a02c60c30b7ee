package client

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rohzyy/govai/internal/lifecycle"
)

// DefaultWatchInterval replaces a non-positive poll interval.
const DefaultWatchInterval = 10 * time.Second

// Watcher polls a grievance timeline. Updates is closed when the grievance
// reaches a terminal status or the context ends.
type Watcher struct {
	Updates <-chan []lifecycle.TimelineEvent
	paused  atomic.Bool
}

// Pause skips polls until Resume, for when nobody is looking.
func (w *Watcher) Pause() { w.paused.Store(true) }

func (w *Watcher) Resume() { w.paused.Store(false) }

// WatchTimeline polls id every interval and emits the timeline whenever it
// has grown since the last emission.
func (c *Client) WatchTimeline(ctx context.Context, id string, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	updates := make(chan []lifecycle.TimelineEvent, 1)
	w := &Watcher{Updates: updates}

	go func() {
		defer close(updates)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		seen := 0
		for {
			if !w.paused.Load() {
				result := c.Timeline(ctx, id)
				if result.Success && len(result.Data) > seen {
					seen = len(result.Data)
					select {
					case updates <- result.Data:
					case <-ctx.Done():
						return
					}
					if lifecycle.IsTerminal(lifecycle.DeriveCurrentStatus(result.Data)) {
						return
					}
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return w
}
