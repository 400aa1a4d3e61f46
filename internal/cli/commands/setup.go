// Package commands implements the relstore subcommands.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/relstack-labs/relstore/internal/config"
	"github.com/relstack-labs/relstore/internal/indexsync"
	"github.com/relstack-labs/relstore/internal/record"
	"github.com/relstack-labs/relstore/internal/store"
	"github.com/relstack-labs/relstore/pkg/schema"
)

// Options provides the root command's flag values to subcommands.
type Options struct {
	ConfigFile func() string
	Database   func() string
	Logger     func() *slog.Logger
}

// runtime is the wired application: store, registry, record access, and
// sync propagation into the in-process index.
type runtime struct {
	cfg    *config.Config
	store  *store.Store
	access *record.Access
	index  *indexsync.MemoryIndex
	logger *slog.Logger
}

// setup loads configuration, opens the store, registers the declared
// models, and wires the sync propagator.
func setup(opts Options) (*runtime, error) {
	logger := opts.Logger()

	cfg, err := config.Load(opts.ConfigFile())
	if err != nil {
		return nil, err
	}
	if db := opts.Database(); db != "" {
		cfg.Database = db
	}

	models, err := cfg.BuildModels()
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("no models declared; add a models section to %s", config.ConfigFileName)
	}

	registry := schema.NewRegistry()
	for _, m := range models {
		if err := registry.Register(m); err != nil {
			return nil, err
		}
	}

	st, err := store.Open(cfg.Database, store.Options{Logger: logger})
	if err != nil {
		return nil, err
	}
	if err := st.InitSchema(models...); err != nil {
		st.Close()
		return nil, err
	}

	access := record.NewAccess(st.Session(), registry, record.Options{Logger: logger})
	index := indexsync.NewMemoryIndex()
	prop := indexsync.NewPropagator(index, access, indexsync.Options{
		Logger:  logger,
		Refresh: cfg.IndexRefresh,
	})
	access.SetEmitter(prop)

	return &runtime{
		cfg:    cfg,
		store:  st,
		access: access,
		index:  index,
		logger: logger,
	}, nil
}

func (rt *runtime) Close() error {
	return rt.store.Close()
}
