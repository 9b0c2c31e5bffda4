// Package sync orchestrates the client side of synchronization: one guarded
// pull → apply → push → image-sync → cleanup pass, recurring and debounced
// scheduling, and an event stream for the UI.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/closetapp/closet-sync/internal/client/config"
	"github.com/closetapp/closet-sync/internal/client/store"
	"github.com/closetapp/closet-sync/internal/client/tracker"
	"github.com/closetapp/closet-sync/internal/client/transport"
	"github.com/closetapp/closet-sync/internal/logging"
	"github.com/closetapp/closet-sync/internal/shared"
	"github.com/golang-jwt/jwt/v5"
)

// Result summarizes one sync pass. The engine never panics or returns a Go
// error from Sync; every failure lands here as Success=false plus Error.
type Result struct {
	Success          bool
	Pulled           int
	Pushed           int
	ImagesUploaded   int
	ImagesDownloaded int
	Conflicts        int
	Duration         time.Duration
	Error            string
}

// Engine runs sync passes for one account. At most one pass is in flight at
// a time; concurrent triggers are dropped with an error result rather than
// queued — the next scheduled trigger picks up any missed work.
type Engine struct {
	cfg     *config.Config
	store   *store.Store
	tracker *tracker.Tracker
	api     transport.API
	log     logging.Logger

	now func() time.Time

	mu      sync.Mutex
	syncing bool

	subs subscribers

	autoMu   sync.Mutex
	autoStop chan struct{}

	debounceMu sync.Mutex
	debounce   *time.Timer
}

// New constructs an engine with injected configuration, storage and network
// dependencies.
func New(cfg *config.Config, s *store.Store, t *tracker.Tracker, api transport.API, log logging.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		store:   s,
		tracker: t,
		api:     api,
		log:     log,
		now:     time.Now,
	}
}

// Sync runs one full synchronization pass.
func (e *Engine) Sync(ctx context.Context) *Result {
	if !e.cfg.Enabled {
		return &Result{Error: shared.ErrSyncDisabled.Error()}
	}
	if e.cfg.Token == "" {
		return &Result{Error: "not authenticated"}
	}

	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		return &Result{Error: shared.ErrSyncInProgress.Error()}
	}
	e.syncing = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.syncing = false
		e.mu.Unlock()
	}()

	start := e.now()
	e.emit(Event{Type: EventSyncStarted})

	res := &Result{}
	err := e.runPass(ctx, res)
	res.Duration = e.now().Sub(start)

	if err != nil {
		res.Error = err.Error()
		if serr := e.store.SetLastSyncError(ctx, res.Error); serr != nil {
			e.log.Warn(ctx, "failed to persist sync error", "error", serr)
		}
		if errors.Is(err, shared.ErrUnauthorized) || errors.Is(err, shared.ErrTokenExpired) {
			e.emit(Event{Type: EventAuthRequired, Error: res.Error})
		}
		e.emit(Event{Type: EventSyncError, Error: res.Error})
		e.log.Warn(ctx, "sync pass failed", "error", err, "duration", res.Duration)
		return res
	}

	res.Success = true
	if err := e.store.SetLastSyncAt(ctx, e.now().UnixMilli()); err != nil {
		e.log.Warn(ctx, "failed to record sync time", "error", err)
	}
	if err := e.store.SetLastSyncError(ctx, ""); err != nil {
		e.log.Warn(ctx, "failed to clear sync error", "error", err)
	}
	e.emit(Event{Type: EventSyncCompleted, Result: res})
	e.log.Info(ctx, "sync pass completed",
		"pulled", res.Pulled, "pushed", res.Pushed,
		"imagesUp", res.ImagesUploaded, "imagesDown", res.ImagesDownloaded,
		"conflicts", res.Conflicts, "duration", res.Duration)
	return res
}

func (e *Engine) runPass(ctx context.Context, res *Result) error {
	if err := e.checkCredential(); err != nil {
		return err
	}

	e.emit(Event{Type: EventSyncProgress, Step: "pull"})
	if err := e.pull(ctx, res); err != nil {
		return fmt.Errorf("pull: %w", err)
	}

	e.emit(Event{Type: EventSyncProgress, Step: "push"})
	if err := e.push(ctx, res); err != nil {
		return fmt.Errorf("push: %w", err)
	}

	e.emit(Event{Type: EventSyncProgress, Step: "images"})
	if err := e.syncImages(ctx, res); err != nil {
		return fmt.Errorf("images: %w", err)
	}

	e.emit(Event{Type: EventSyncProgress, Step: "cleanup"})
	if _, err := e.store.PurgeSyncedChanges(ctx); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	return nil
}

// checkCredential rejects a pass before any network traffic when the token
// is a well-formed JWT that has already expired. Opaque (non-JWT) tokens
// pass through; the server is the authority on those.
func (e *Engine) checkCredential() error {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(e.cfg.Token, claims); err != nil {
		return nil
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(e.now()) {
		return shared.ErrTokenExpired
	}
	return nil
}
