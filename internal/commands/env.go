package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/conciliar-dev/conciliar/internal/catalog"
	"github.com/conciliar-dev/conciliar/internal/config"
	"github.com/conciliar-dev/conciliar/internal/importer"
	"github.com/conciliar-dev/conciliar/internal/logging"
	"github.com/conciliar-dev/conciliar/internal/pipeline"
	"github.com/conciliar-dev/conciliar/internal/reconcile"
	"github.com/conciliar-dev/conciliar/internal/report"
	"github.com/conciliar-dev/conciliar/internal/store"
)

// env is everything a command needs once the configuration is loaded.
type env struct {
	cfg      *config.Config
	dir      string
	log      *slog.Logger
	store    *store.Store
	registry *importer.Registry
	catalog  *catalog.Service
}

func openEnv(ctx context.Context, configPath string, logOut io.Writer) (*env, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	cfg, err := config.Load(absPath)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(absPath)

	log, err := logging.New(cfg.Log, logOut)
	if err != nil {
		return nil, err
	}
	cat, err := cfg.Catalog(dir)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Database.Driver, cfg.DatabaseDSN(dir))
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:      cfg,
		dir:      dir,
		log:      log,
		store:    st,
		registry: importer.DefaultRegistry(),
		catalog:  cat,
	}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

func (e *env) pipeline() (*pipeline.Pipeline, error) {
	tol, err := e.cfg.Tolerance()
	if err != nil {
		return nil, err
	}
	return pipeline.New(e.registry, e.store, pipeline.Options{
		Tolerance: tol,
		Logger:    e.log,
		SealKey:   e.cfg.SealKey(),
	}), nil
}

func (e *env) engine() *reconcile.Engine {
	return reconcile.New(e.store, e.catalog, e.log)
}

func (e *env) reports() *report.Aggregator {
	return report.NewAggregator(e.store, e.log)
}
