package main

import (
	"fmt"

	"github.com/batonhq/baton/internal/config"
	"github.com/batonhq/baton/internal/coordinator"
	"github.com/batonhq/baton/internal/engine"
	"github.com/batonhq/baton/internal/executor"
	"github.com/batonhq/baton/internal/manifest"
	"github.com/batonhq/baton/internal/perf"
)

// session bundles everything a command needs to work with a manifest.
type session struct {
	cfg   *config.Config
	man   *manifest.Manifest
	coord *coordinator.Coordinator
	store *perf.Store
}

// newSession loads config and manifest, then wires up a coordinator.
// With simulate true, items run through the seeded simulator; otherwise
// every item must declare a command binding for the command invoker.
func newSession(manifestPath string, simulate, strict, persist bool) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	man, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, err
	}

	defs, err := man.Definitions()
	if err != nil {
		return nil, err
	}

	var invoker executor.Invoker
	if !simulate {
		commands := man.Commands()
		inv := executor.NewCommandInvoker("")
		for _, def := range defs {
			command, ok := commands[def.Name]
			if !ok {
				return nil, fmt.Errorf("item %q has no command; run with --simulate or add one", def.Name)
			}
			inv.Bind(def.Name, command)
		}
		invoker = inv
	}

	var store *perf.Store
	if persist && cfg.History.DBPath != "off" {
		path := cfg.History.DBPath
		if path == "" {
			path = perf.DefaultDBPath()
		}
		store, err = perf.OpenStore(path)
		if err != nil {
			return nil, fmt.Errorf("open performance store: %w", err)
		}
	}

	var logger *engine.DebugLogger
	if cfg.Engine.DebugLog != "" {
		logger, err = engine.NewDebugLogger(cfg.Engine.DebugLog)
		if err != nil {
			return nil, fmt.Errorf("open debug log: %w", err)
		}
	}

	coord, err := coordinator.New(coordinator.Config{
		Invoker:      invoker,
		Seed:         cfg.Simulate.Seed,
		Scale:        cfg.Simulate.Scale,
		Strict:       strict,
		CacheSize:    cfg.Cache.MaxEntries,
		HistoryLimit: cfg.History.Limit,
		Logger:       logger,
		Store:        store,
	})
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}

	for _, def := range defs {
		if err := coord.RegisterItem(def); err != nil {
			return nil, fmt.Errorf("register %s: %w", def.Name, err)
		}
	}

	return &session{cfg: cfg, man: man, coord: coord, store: store}, nil
}

// Close releases the session's persistent resources.
func (s *session) Close() {
	if s.store != nil {
		s.store.Close()
	}
}
