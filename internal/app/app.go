// Package app wires storage, services and transports from a Config.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"sitebuilder/internal/config"
	"sitebuilder/internal/resolver"
	"sitebuilder/internal/secret"
	"sitebuilder/internal/service"
	"sitebuilder/internal/storage"
	"sitebuilder/internal/transpile"
)

// App holds every long-lived service of one process.
type App struct {
	Config   *config.Config
	Resolver *resolver.Resolver
	Emitter  service.EventEmitter

	db      *storage.DB
	secrets secret.SecretStore

	Sites       *service.SiteService
	Blocks      *service.BlockService
	Editor      *service.EditorService
	DataSources *service.DataSourceService
	Publish     *service.PublishService
	Watcher     *service.BlockWatcher

	log *logrus.Entry
}

// Option customizes Open.
type Option func(*App)

// WithEmitter replaces the default logging emitter.
func WithEmitter(e service.EventEmitter) Option {
	return func(a *App) { a.Emitter = e }
}

// WithSecrets replaces the secret store chosen for the platform.
func WithSecrets(s secret.SecretStore) Option {
	return func(a *App) { a.secrets = s }
}

// Open opens the database and builds the services described by cfg.
func Open(cfg *config.Config, opts ...Option) (*App, error) {
	cfg.ApplyLogging()
	r, err := cfg.Resolver()
	if err != nil {
		return nil, fmt.Errorf("component catalog: %w", err)
	}

	a := &App{
		Config:   cfg,
		Resolver: r,
		Emitter:  service.NewLogEmitter(),
		log:      logrus.WithField("component", "app"),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.secrets == nil {
		a.secrets = platformSecrets()
	}

	db, err := storage.New(cfg.DBPath, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.db = db

	siteStore := storage.NewSiteStore(db)
	history := storage.NewHistoryStore(db)

	a.Sites = service.NewSiteService(siteStore, history, r, a.Emitter)
	a.Blocks = service.NewBlockService(storage.NewBlockStore(db), r, a.Emitter)
	a.Editor = service.NewEditorService(siteStore, history, a.Blocks, r, a.Emitter)
	a.DataSources = service.NewDataSourceService(storage.NewDataSourceStore(db), a.secrets, a.Emitter)
	a.Publish = service.NewPublishService(siteStore, a.DataSources, r, service.PublishOptions{
		OutDir: cfg.Publish.OutDir,
		Transpile: transpile.Options{
			ImportPath:   cfg.Transpile.ImportPath,
			BootstrapURL: cfg.Transpile.BootstrapURL,
		},
		Rename:      cfg.Transpile.Rename,
		Concurrency: cfg.Publish.Concurrency,
	}, a.Emitter)
	a.Watcher = service.NewBlockWatcher(cfg.Blocks.Dir, a.Blocks)

	a.log.WithFields(logrus.Fields{
		"db":         cfg.DBPath,
		"components": len(r.Names()),
	}).Debug("app opened")
	return a, nil
}

// platformSecrets uses the keychain when the security tool is installed.
// Elsewhere passwords live in memory for the lifetime of the process.
func platformSecrets() secret.SecretStore {
	kc := secret.NewKeychainStore(secret.DefaultKeychainService)
	if kc.Available() {
		return kc
	}
	logrus.WithField("component", "app").Warn("keychain unavailable, data source passwords are kept in memory")
	return secret.NewMemoryStore()
}

// Close stops background work and closes the database.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	a.Publish.Stop(ctx)
	a.Watcher.Stop()
	a.Editor.CloseAll()
	a.DataSources.Close()
	return a.db.Close()
}
