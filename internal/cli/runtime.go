package cli

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/roach88/geoff/internal/catalog"
	"github.com/roach88/geoff/internal/config"
	"github.com/roach88/geoff/internal/examples"
	"github.com/roach88/geoff/internal/llm"
	"github.com/roach88/geoff/internal/logging"
	"github.com/roach88/geoff/internal/postgis"
	"github.com/roach88/geoff/internal/service"
	"github.com/roach88/geoff/internal/store"
)

// Overrides replace the external collaborators of commands that talk to the
// database and the model. Nil fields use the configured services.
type Overrides struct {
	Executor  service.Executor
	Generator service.Generator
	History   service.History
}

// loadConfig reads and validates the configuration named by --config.
// --verbose forces debug logging.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.fs(), o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// logger builds the process logger writing to w.
func (o *RootOptions) logger(cfg *config.Config, w io.Writer) (*zap.Logger, error) {
	return logging.NewWriter(cfg.Log, w)
}

// fileCatalog returns the configured catalog file, or the embedded default.
func (o *RootOptions) fileCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog.File == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadFile(o.fs(), cfg.Catalog.File)
}

// backend is a service with the resources it holds open.
type backend struct {
	svc     *service.Service
	closers []func()
}

// Close releases resources in reverse acquisition order.
func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackend connects the configured collaborators and builds the service.
// On error everything acquired so far is released.
func (o *RootOptions) openBackend(ctx context.Context, cfg *config.Config, log *zap.Logger, ov Overrides) (_ *backend, err error) {
	b := &backend{}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	exec := ov.Executor
	var cat *catalog.Catalog
	if exec == nil {
		pool, err := postgis.Connect(ctx, cfg.Database.PostGIS(), log)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		exec = postgis.NewExecutor(pool)

		if cfg.Catalog.Source == config.CatalogDatabase {
			loaded, err := catalog.LoadPostgres(ctx, pool, cfg.Catalog.Schema)
			if err != nil {
				return nil, fmt.Errorf("failed to load catalog from database: %w", err)
			}
			cat = loaded.WithKeywords(catalog.Default())
			log.Info("catalog loaded from database",
				zap.String("schema", cfg.Catalog.Schema),
				zap.Int("tables", len(cat.Tables())))
		}
	}
	if cat == nil {
		cat, err = o.fileCatalog(cfg)
		if err != nil {
			return nil, err
		}
	}

	gen := ov.Generator
	if gen == nil {
		client, err := llm.NewClient(cfg.LLM.Client())
		if err != nil {
			return nil, err
		}
		gen = client
	}

	opts := []service.Option{
		service.WithGenerator(gen),
		service.WithExamples(examples.Default()),
		service.WithLogger(log),
		service.WithRetries(cfg.Query.Retries),
		service.WithRetryDelay(cfg.Query.RetryDelay),
		service.WithCacheSize(cfg.Query.CacheSize),
		service.WithStrict(cfg.Query.Strict),
		service.WithParallelism(cfg.Query.Parallelism),
		service.WithMaxExamples(cfg.Query.MaxExamples),
	}
	switch {
	case ov.History != nil:
		opts = append(opts, service.WithHistory(ov.History))
	case cfg.History.Path != "":
		st, err := store.Open(cfg.History.Path)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() {
			if err := st.Close(); err != nil {
				log.Warn("failed to close history", zap.Error(err))
			}
		})
		opts = append(opts, service.WithHistory(st))
	}

	b.svc, err = service.New(cat, exec, opts...)
	if err != nil {
		return nil, err
	}
	return b, nil
}
