package app

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pairchat/internal/domain"
	"pairchat/internal/eventloop"
	"pairchat/internal/relay"
	identitysvc "pairchat/internal/services/identity"
	"pairchat/internal/store"
)

// Wire bundles the stores, services and clients that do not need the
// identity unlocked.
type Wire struct {
	Config   Config
	Timings  Timings
	Log      *zap.Logger
	Keys     *store.IdentityFileStore
	Aliases  *store.AliasFileStore
	Marks    *store.MarkFileStore
	Identity domain.IdentityService
	Graph    domain.Store
	Relay    *relay.Client
	Loop     *eventloop.Loop
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config, log *zap.Logger) (*Wire, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Home == "" {
		home, err := DefaultHome()
		if err != nil {
			return nil, err
		}
		cfg.Home = home
	}
	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return nil, fmt.Errorf("create home: %w", err)
	}
	timings, err := cfg.Timings()
	if err != nil {
		return nil, err
	}

	// File-based stores
	keys := store.NewIdentityFileStore(cfg.Home)

	rc := relay.NewClient(cfg.RelayURL, relay.WithClientLogger(log.Named("relay")))

	return &Wire{
		Config:   cfg,
		Timings:  timings,
		Log:      log,
		Keys:     keys,
		Aliases:  store.NewAliasFileStore(cfg.Home),
		Marks:    store.NewMarkFileStore(cfg.Home),
		Identity: identitysvc.New(keys),
		Graph:    rc,
		Relay:    rc,
		Loop:     eventloop.New(log.Named("loop")),
	}, nil
}

// Run drives the event loop and the relay subscription channel until ctx
// ends.
func (w *Wire) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Loop.Run(ctx) })
	g.Go(func() error { return w.Relay.Run(ctx) })
	return g.Wait()
}

// Close releases the relay client.
func (w *Wire) Close() {
	w.Relay.Close()
}
