package app

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/stellarlinkco/myalex/internal/api"
	"github.com/stellarlinkco/myalex/internal/auth"
	"github.com/stellarlinkco/myalex/internal/config"
	"github.com/stellarlinkco/myalex/internal/feedback"
	"github.com/stellarlinkco/myalex/internal/histcache"
	"github.com/stellarlinkco/myalex/internal/netstatus"
	"github.com/stellarlinkco/myalex/internal/storage"
)

// App wires the shared services together. Everything hangs off this one
// value; there is no package-level state, so tests and commands build as
// many independent instances as they need.
type App struct {
	Cfg      *config.Config
	Net      *netstatus.Monitor
	Auth     *auth.Store
	API      *api.Client
	KV       *storage.KV
	Cache    *histcache.Manager
	Feedback *feedback.Queue
}

// New builds the full service graph from config. The caller owns Close.
func New(cfg *config.Config) (*App, error) {
	if cfg.Backend.BaseURL == "" {
		return nil, fmt.Errorf("backend base URL not set. Run 'myalex onboard' or set MYALEX_BASE_URL")
	}

	net := netstatus.NewMonitor()
	authStore, err := auth.NewStore(config.ConfigDir())
	if err != nil {
		return nil, fmt.Errorf("open auth store: %w", err)
	}
	client, err := api.NewClient(cfg.Backend, net, authStore)
	if err != nil {
		return nil, err
	}

	dbPath := cfg.Cache.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(config.ConfigDir(), "cache.db")
	}
	kv, err := storage.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	cache := histcache.NewManager(client, net, kv)
	cache.SetPreloadDelay(time.Duration(cfg.Cache.PreloadDelayMs) * time.Millisecond)

	fb := feedback.NewQueue(client, net, kv)
	fb.WatchConnectivity(net)

	return &App{
		Cfg:      cfg,
		Net:      net,
		Auth:     authStore,
		API:      client,
		KV:       kv,
		Cache:    cache,
		Feedback: fb,
	}, nil
}

func (a *App) Close() error {
	if a.KV != nil {
		return a.KV.Close()
	}
	return nil
}

// CurrentUser returns the locally persisted identity, or an error directing
// the user to log in.
func (a *App) CurrentUser() (auth.User, error) {
	user, ok := a.Auth.User()
	if !ok {
		return auth.User{}, fmt.Errorf("not logged in. Run 'myalex login' first")
	}
	return user, nil
}
