package service

import (
	"context"
	"sync"
	"time"

	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/store"
	"github.com/BrandonDHaskell/cherrydoor/internal/logger"
)

// HeartbeatPruner deletes stored heartbeats older than the retention period
// on a fixed interval. A retention of 0 disables it.
type HeartbeatPruner struct {
	store     store.HeartbeatStore
	retention time.Duration
	interval  time.Duration
	log       *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type PrunerConfig struct {
	// RetentionDays is how many days of heartbeats to keep. 0 keeps
	// everything.
	RetentionDays int

	// IntervalHours defaults to 6.
	IntervalHours int
}

func NewHeartbeatPruner(s store.HeartbeatStore, cfg PrunerConfig, log *logger.Logger) *HeartbeatPruner {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	return &HeartbeatPruner{
		store:     s,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:  interval,
		log:       log.With("component", "heartbeat_pruner"),
	}
}

// Start prunes once immediately, then on every interval, until ctx is
// cancelled or Stop is called.
func (p *HeartbeatPruner) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done != nil {
		return
	}
	if p.retention <= 0 {
		p.log.Infow("heartbeat pruner disabled", "retention_days", 0)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)

	p.log.Infow("heartbeat pruner started",
		"retention_days", int(p.retention.Hours()/24),
		"interval_hours", int(p.interval.Hours()))
}

// Stop signals the loop to exit and waits for it. Safe to call more than
// once, or without Start.
func (p *HeartbeatPruner) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *HeartbeatPruner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	p.PruneNow(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PruneNow(ctx)
		}
	}
}

// PruneNow runs one prune pass and returns the number of rows deleted.
// With retention disabled it deletes nothing.
func (p *HeartbeatPruner) PruneNow(ctx context.Context) int64 {
	if p.retention <= 0 {
		return 0
	}
	cutoff := time.Now().UTC().Add(-p.retention)
	deleted, err := p.store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		p.log.Errorw("heartbeat prune", "error", err)
		return 0
	}
	if deleted > 0 {
		p.log.Infow("heartbeat prune", "deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))
	}
	return deleted
}
