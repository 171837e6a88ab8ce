// Package server wires configuration, storage, services and the HTTP and
// gRPC front ends into a runnable application.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"

	"github.com/dmitrijs2005/gophstore/internal/logging"
	"github.com/dmitrijs2005/gophstore/internal/server/auth"
	"github.com/dmitrijs2005/gophstore/internal/server/config"
	"github.com/dmitrijs2005/gophstore/internal/server/httpapi"
	"github.com/dmitrijs2005/gophstore/internal/server/notify"
	"github.com/dmitrijs2005/gophstore/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophstore/internal/server/services"

	gs "github.com/dmitrijs2005/gophstore/internal/server/grpc"
)

var errDefaultSecret = errors.New("invalid config: the default secret key cannot be used with postgres storage")

// Seams for tests.
var (
	openDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	}
	logOutput io.Writer = os.Stdout
)

const dbConnectTimeout = 30 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger

	db    *sql.DB
	nc    *nats.Conn
	repos repomanager.RepositoryManager

	sessions *services.SessionService
	products *services.ProductService

	httpServer *httpapi.Server
	grpcServer *gs.GRPCServer
}

// NewApp validates c and builds every component. On error, anything already
// opened is closed again.
func NewApp(ctx context.Context, c *config.Config) (app *App, err error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if c.Storage == config.StoragePostgres && c.UsesDefaultSecret() {
		return nil, errDefaultSecret
	}

	logger, err := logging.New(c.LogBackend, c.LogLevel, logOutput)
	if err != nil {
		return nil, err
	}
	if c.UsesDefaultSecret() {
		logger.Warn(ctx, "signing tokens with the default secret key, set GOPHSTORE_SECRET_KEY")
	}

	app = &App{config: c, logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close()
			app = nil
		}
	}()

	if err := app.initStorage(ctx); err != nil {
		return nil, err
	}

	notifier, err := app.initNotifier(ctx)
	if err != nil {
		return nil, err
	}

	signer := auth.NewSigner([]byte(c.SecretKey), c.AccessTokenValidityDuration)
	refresh := services.NewRefreshLedger(app.repos, c.RefreshTokenValidityDuration, logger)
	reset := services.NewResetLedger(app.repos, c.ResetTokenValidityDuration, logger)

	app.sessions = services.NewSessionService(app.repos, signer, services.NewBcryptHasher(c.BcryptCost), refresh, reset, notifier, logger)
	if c.TestingDisableAuthUserID > 0 {
		app.sessions.EnableTestingAuthBypass(c.TestingDisableAuthUserID)
		logger.Warn(ctx, "AUTHENTICATION IS DISABLED: every request acts as a fixed user, never run like this in production",
			"user_id", c.TestingDisableAuthUserID)
	}
	app.products = services.NewProductService(app.repos, c, logger)

	api := httpapi.New(app.sessions, app.products, app.repos, httpapi.NewRateLimiter(c.RateLimitRPM), logger)
	app.httpServer = httpapi.NewServer(c.HTTPAddr, api.Router(), logger)
	app.grpcServer = gs.NewGRPCServer(c.GRPCHealthAddr, app.repos, logger)

	return app, nil
}

func (app *App) initStorage(ctx context.Context) error {
	switch app.config.Storage {
	case config.StorageMemory:
		app.logger.Warn(ctx, "using in-memory storage, data is lost on restart")
		app.repos = repomanager.NewInMemoryRepositoryManager(nil)
		return nil
	case config.StoragePostgres:
	default:
		return fmt.Errorf("unknown storage %q", app.config.Storage)
	}

	db, err := openDB(app.config.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	app.db = db
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = dbConnectTimeout
	ping := func() error {
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := db.PingContext(pctx); err != nil {
			app.logger.Warn(ctx, "database not ready, retrying", "error", err)
			return err
		}
		return nil
	}
	if err := backoff.Retry(ping, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("db connect error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager(db)
	if err := repos.RunMigrations(ctx); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}
	app.repos = repos
	return nil
}

func (app *App) initNotifier(ctx context.Context) (notify.ResetNotifier, error) {
	if app.config.NATSURL == "" {
		app.logger.Info(ctx, "NATS URL not set, password reset notices are only logged")
		return notify.NewLogNotifier(app.logger), nil
	}

	nc, err := notify.Connect(ctx, app.config.NATSURL, app.logger)
	if err != nil {
		return nil, fmt.Errorf("nats connect error: %w", err)
	}
	app.nc = nc
	return notify.NewNATSNotifier(nc, app.config.NATSResetSubject, app.logger), nil
}

// Run serves HTTP and gRPC until ctx is canceled or either server fails.
// A failing server stops the other one.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.Storage)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	run := func(name string, fn func(context.Context) error) {
		defer wg.Done()
		if err := fn(ctx); err != nil {
			app.logger.Error(ctx, name+" server failed", "error", err)
			mu.Lock()
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			mu.Unlock()
			cancelFunc()
		}
	}

	wg.Add(2)
	go run("http", app.httpServer.Run)
	go run("grpc", app.grpcServer.Run)
	wg.Wait()

	app.logger.Info(context.WithoutCancel(ctx), "App stopped")
	return errors.Join(errs...)
}

// Close releases the database pool and the NATS connection.
func (app *App) Close() error {
	var errs []error
	if app.nc != nil {
		if err := app.nc.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("nats drain: %w", err))
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("db close: %w", err))
		}
	}
	if z, ok := app.logger.(*logging.ZapLogger); ok {
		_ = z.Sync()
	}
	return errors.Join(errs...)
}
