package sync

import (
	"context"
	"time"
)

// The two schedulers — recurring interval and debounce-after-edit — are
// independent; both funnel into the same guarded Sync entry point, so a
// collision simply drops one trigger.

// StartAutoSync starts the recurring timer. An interval ≤ 0 disables it.
// Calling it while already running is a no-op.
func (e *Engine) StartAutoSync() {
	if e.cfg.AutoSyncInterval <= 0 {
		return
	}
	e.autoMu.Lock()
	defer e.autoMu.Unlock()
	if e.autoStop != nil {
		return
	}
	stop := make(chan struct{})
	e.autoStop = stop

	go func() {
		ticker := time.NewTicker(e.cfg.AutoSyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.Sync(context.Background())
			case <-stop:
				return
			}
		}
	}()
}

// StopAutoSync stops the recurring timer.
func (e *Engine) StopAutoSync() {
	e.autoMu.Lock()
	defer e.autoMu.Unlock()
	if e.autoStop != nil {
		close(e.autoStop)
		e.autoStop = nil
	}
}

// TriggerDebouncedSync coalesces bursts of local changes into a single sync
// after the configured quiet period; each call resets the timer.
func (e *Engine) TriggerDebouncedSync() {
	e.debounceMu.Lock()
	defer e.debounceMu.Unlock()
	if e.debounce != nil {
		e.debounce.Stop()
	}
	e.debounce = time.AfterFunc(e.cfg.DebounceQuiet, func() {
		e.Sync(context.Background())
	})
}
