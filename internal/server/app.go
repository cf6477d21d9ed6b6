// Package server initializes and runs the WOPI host. It builds the storage
// backends selected by configuration, the protocol core and its HTTP and
// gRPC adapters, and shuts everything down on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dmitrijs2005/wopihost/internal/cryptox"
	"github.com/dmitrijs2005/wopihost/internal/logging"
	"github.com/dmitrijs2005/wopihost/internal/server/config"
	"github.com/dmitrijs2005/wopihost/internal/server/content"
	"github.com/dmitrijs2005/wopihost/internal/server/discovery"
	"github.com/dmitrijs2005/wopihost/internal/server/httpapi"
	"github.com/dmitrijs2005/wopihost/internal/server/locks"
	"github.com/dmitrijs2005/wopihost/internal/server/repositories/kv"
	"github.com/dmitrijs2005/wopihost/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/wopihost/internal/server/services"
	"github.com/dmitrijs2005/wopihost/internal/server/storage"
	"github.com/dmitrijs2005/wopihost/internal/server/tokens"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/wopihost/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	service *services.WopiService
	tokens  *tokens.Manager
	http    *httpapi.Server
	grpc    *gs.GRPCServer
	closers []func() error
}

// seams for tests
var (
	openPostgres = repomanager.Open
	openBadger   = kv.Open
	newS3Store   = storage.NewS3Store
)

// NewApp wires the application from c. Resources opened before a failure
// are closed again.
func NewApp(ctx context.Context, c *config.Config) (_ *App, err error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	app := &App{config: c, logger: logger}

	defer func() {
		if err != nil {
			app.close(ctx)
		}
	}()

	var db *sql.DB
	if c.Backend == config.BackendPostgres || c.Store == config.StorePostgres {
		if db, err = openPostgres(ctx, c.DatabaseDSN); err != nil {
			return nil, err
		}
		app.closers = append(app.closers, db.Close)
		if err = repomanager.NewPostgresRepositoryManager().RunMigrations(ctx, db); err != nil {
			return nil, fmt.Errorf("migration error: %w", err)
		}
	}

	repo, err := app.contentRepository(ctx, db)
	if err != nil {
		return nil, err
	}
	tokenStore, lockStore, err := app.stores(db)
	if err != nil {
		return nil, err
	}

	tm := tokens.NewManager(tokenStore, cryptox.AccessTokenKey(c.SecretKey), c.AccessTokenTTL, logger)
	lm := locks.NewManager(lockStore, c.LockTTL, logger)

	var disc services.Discovery
	if c.EditorURL != "" {
		dc, err := discovery.NewClient(c.EditorURL, logger)
		if err != nil {
			return nil, err
		}
		// an unreachable editor is retried lazily on lookup
		if err := dc.Load(ctx); err != nil {
			logger.Warn(ctx, "editor discovery unavailable", "error", err.Error())
		}
		disc = dc
	}

	app.service = services.NewWopiService(repo, tm, lm, disc, services.Options{
		PublicURL:           c.PublicURL,
		FileInfoFlags:       c.UI.FileInfoFlags(),
		DefaultKeepAuto:     &c.KeepAuto,
		DefaultKeepExplicit: &c.KeepExplicit,
		Admins:              c.AdminUsers,
	}, logger)
	app.tokens = tm

	h := httpapi.NewHandler(app.service, httpapi.Options{
		IdentityHeader: c.IdentityHeader,
		Admins:         c.AdminUsers,
		MaxUploadBytes: c.MaxUploadBytes,
	}, logger)
	app.http = httpapi.NewServer(c.HTTPAddr, h, logger)
	app.grpc = gs.NewGRPCServer(c.GRPCAddr, logger, app.service, cryptox.AdminTokenKey(c.SecretKey), c.AdminUsers)

	return app, nil
}

func (app *App) contentRepository(ctx context.Context, db *sql.DB) (content.Repository, error) {
	c := app.config
	if c.Backend != config.BackendPostgres {
		return content.NewMemoryRepository(), nil
	}

	blobs, err := newS3Store(ctx, storage.S3Config{
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
		AccessKey:    c.S3AccessKey,
		SecretKey:    c.S3SecretKey,
		Bucket:       c.S3Bucket,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 init error: %w", err)
	}
	if err := blobs.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("s3 bucket error: %w", err)
	}
	return content.NewStoredRepository(db, repomanager.NewPostgresRepositoryManager(), blobs, app.logger), nil
}

func (app *App) stores(db *sql.DB) (tokens.Store, locks.Store, error) {
	switch app.config.Store {
	case config.StorePostgres:
		rm := repomanager.NewPostgresRepositoryManager()
		return rm.AccessTokens(db), rm.Locks(db), nil
	case config.StoreBadger:
		kdb, err := openBadger(app.config.BadgerPath)
		if err != nil {
			return nil, nil, err
		}
		app.closers = append(app.closers, kdb.Close)
		go runBadgerGC(kdb)
		return kv.NewTokenStore(kdb), kv.NewLockStore(kdb), nil
	default:
		return tokens.NewMemoryStore(), locks.NewMemoryStore(), nil
	}
}

// runBadgerGC reclaims value log space until the database is closed.
func runBadgerGC(db *badger.DB) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		if db.IsClosed() {
			return
		}
		for db.RunValueLogGC(0.5) == nil {
		}
	}
}

// Service exposes the protocol core, mainly for seeding and tests.
func (app *App) Service() *services.WopiService {
	return app.service
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// purgeTokens drops expired access tokens every TokenPurgeInterval.
func (app *App) purgeTokens(ctx context.Context) error {
	ticker := time.NewTicker(app.config.TokenPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := app.tokens.PurgeExpired(ctx)
			if err != nil {
				app.logger.Warn(ctx, "token purge failed", "error", err.Error())
				continue
			}
			if n > 0 {
				app.logger.Debug(ctx, "expired tokens purged", "count", n)
			}
		}
	}
}

// Run serves HTTP and gRPC until ctx is cancelled, a signal arrives or one
// of the servers fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.http.Run(gctx) })
	g.Go(func() error { return app.grpc.Run(gctx) })
	g.Go(func() error { return app.purgeTokens(gctx) })

	err := g.Wait()
	app.close(context.WithoutCancel(ctx))
	app.logger.Info(ctx, "App stopped")
	return err
}

func (app *App) close(ctx context.Context) {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		errs = append(errs, app.closers[i]())
	}
	app.closers = nil
	if err := errors.Join(errs...); err != nil {
		app.logger.Error(ctx, "close error", "error", err.Error())
	}
}
