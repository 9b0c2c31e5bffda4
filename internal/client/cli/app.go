// Package cli implements the closet-sync command line client: login, one-shot
// sync, auto-sync, and status.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "modernc.org/sqlite"

	"github.com/closetapp/closet-sync/internal/client/config"
	"github.com/closetapp/closet-sync/internal/client/store"
	"github.com/closetapp/closet-sync/internal/client/sync"
	"github.com/closetapp/closet-sync/internal/client/tracker"
	"github.com/closetapp/closet-sync/internal/client/transport"
	"github.com/closetapp/closet-sync/internal/logging"
)

type App struct {
	cfg     *config.Config
	cfgPath string
	store   *store.Store
	engine  *sync.Engine
	log     logging.Logger
}

func NewApp(ctx context.Context, cfgPath string) (*App, error) {
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: slog.LevelWarn})))

	s, err := store.Open(ctx, cfg.DatabasePath, cfg.ImageCacheDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	tr := tracker.New(s, log)
	api := transport.NewHTTPClient(cfg.ServerURL, cfg.Token, cfg.HTTPTimeout)
	engine := sync.New(cfg, s, tr, api, log)

	return &App{cfg: cfg, cfgPath: cfgPath, store: s, engine: engine, log: log}, nil
}

func (a *App) Close() error {
	return a.store.Close()
}
