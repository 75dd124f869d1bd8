package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Hansil-Chapadiya/problems-analyzer/internal/analysis"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/catalog"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/config"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/remote"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/session"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/storage"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/workflow"
)

// app bundles everything a command needs.
type app struct {
	cfg      config.Config
	catalogs *catalog.Client
	analyses *analysis.Client
	tokens   *session.Store
	session  session.Provider
	store    *storage.Store // nil when history is disabled
	logger   *slog.Logger
}

var newApp = func() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := slog.Default()

	opts := []remote.Option{
		remote.WithTimeout(cfg.ServiceTimeout()),
		remote.WithAPIKey(cfg.Service.APIKey),
		remote.WithLogger(logger),
	}
	a := &app{
		cfg:      cfg,
		catalogs: catalog.NewClient(remote.New(cfg.Catalog.BaseURL, opts...), cfg.Catalog.Path),
		analyses: analysis.NewClient(remote.New(cfg.Analysis.BaseURL, opts...), cfg.Analysis.Path),
		tokens:   session.NewStore(config.PlatformKeychain()),
		logger:   logger,
	}
	a.session = session.Default(a.tokens)

	if cfg.History.Enabled {
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening storage: %w", err)
		}
		a.store = store
	}
	return a, nil
}

func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
	}
}

func (a *app) controller() *workflow.Controller {
	opts := []workflow.Option{workflow.WithLogger(a.logger)}
	if a.store != nil {
		opts = append(opts, workflow.WithHistory(a.store))
	}
	return workflow.New(a.catalogs, a.analyses, a.session, opts...)
}

func (a *app) requireStore() (*storage.Store, error) {
	if a.store == nil {
		return nil, fmt.Errorf("history is disabled (set history.enabled to true)")
	}
	return a.store, nil
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
