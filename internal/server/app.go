// Package server initializes and runs the application: configuration,
// database and migrations, blob storage backend, mail delivery and the
// service layer, with graceful shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/vaultshare/internal/logging"
	"github.com/dmitrijs2005/vaultshare/internal/server/config"
	"github.com/dmitrijs2005/vaultshare/internal/server/mail"
	"github.com/dmitrijs2005/vaultshare/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vaultshare/internal/server/services"
	"github.com/dmitrijs2005/vaultshare/internal/server/storage"
)

// resetSweepInterval is how often expired password reset rows are purged.
const resetSweepInterval = time.Hour

// App wires configuration, storage and the service layer together and owns
// their lifecycles.
type App struct {
	config *config.Config
	logger logging.Logger

	db        *sql.DB
	boltStore *storage.BoltStore
	mailQueue *mail.Queue

	Users      *services.UserService
	Files      *services.FileService
	Shares     *services.ShareService
	Resets     *services.ResetService
	Activities *services.ActivityService
}

// NewApp builds the application from config: it opens the database, runs
// migrations, selects the blob backend and constructs all services.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	app := &App{config: cfg, logger: logger, db: db}

	store, err := app.initBlobStore(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	var sender mail.Sender
	if cfg.SMTPAddr != "" {
		sender = mail.NewSMTPSender(cfg.SMTPAddr, cfg.SMTPFrom)
	} else {
		sender = mail.NewLogSender(logger)
	}
	app.mailQueue = mail.NewQueue(sender, logger)

	app.Users = services.NewUserService(db, rm, cfg, logger)
	app.Files = services.NewFileService(db, rm, store, logger)
	app.Shares = services.NewShareService(db, rm, app.Files, app.mailQueue, logger)
	app.Resets = services.NewResetService(db, rm, app.mailQueue, logger)
	app.Activities = services.NewActivityService(db, rm)

	return app, nil
}

func (app *App) initBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.BlobBackend {
	case "s3":
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			RootUser:     cfg.S3RootUser,
			RootPassword: cfg.S3RootPassword,
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 init error: %w", err)
		}
		return store, nil
	case "bolt":
		store, err := storage.OpenBoltStore(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("bolt init error: %w", err)
		}
		app.boltStore = store
		return store, nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// sweepResets periodically removes expired password reset requests.
func (app *App) sweepResets(ctx context.Context) {
	ticker := time.NewTicker(resetSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.Resets.SweepExpired(ctx)
			if err != nil {
				app.logger.Error(ctx, "reset sweep failed", "error", err.Error())
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "expired resets swept", "count", n)
			}
		}
	}
}

// Run blocks until the context is cancelled or an OS signal arrives, then
// shuts everything down in dependency order.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app")

	app.initSignalHandler(cancelFunc)
	go app.sweepResets(ctx)

	<-ctx.Done()

	app.logger.Info(ctx, "shutting down")
	app.Close()
}

// Close releases the app's resources: the mail queue is drained, then
// storage handles are closed.
func (app *App) Close() {
	if app.mailQueue != nil {
		app.mailQueue.Close()
	}
	if app.boltStore != nil {
		if err := app.boltStore.Close(); err != nil {
			app.logger.Error(context.Background(), "bolt close failed", "error", err.Error())
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(context.Background(), "db close failed", "error", err.Error())
		}
	}
}
