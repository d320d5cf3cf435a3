package challenge

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultRefreshInterval is used when a Refresher is given no interval.
const DefaultRefreshInterval = 30 * time.Second

// Refresher reloads a Controller from a Source on a fixed interval.
type Refresher struct {
	ctrl     *Controller
	src      Source
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRefresher returns a stopped Refresher.
func NewRefresher(ctrl *Controller, src Source, interval time.Duration, logger *zap.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{ctrl: ctrl, src: src, interval: interval, logger: logger}
}

// Start begins the refresh loop. A running loop is stopped first. The loop
// ends when ctx is done or Stop is called.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	ctx, cancel := context.WithCancel(ctx)
	r.cancel, r.done = cancel, make(chan struct{})
	go r.loop(ctx, r.done)
}

// Stop ends the refresh loop and waits for it to exit. It is safe to call
// more than once.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Refresher) stopLocked() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.cancel, r.done = nil, nil
}

// Running reports whether the loop is active.
func (r *Refresher) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

func (r *Refresher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.ctrl.Load(ctx, r.src); err != nil {
				r.logger.Warn("challenge refresh failed", zap.Error(err))
			}
		}
	}
}
