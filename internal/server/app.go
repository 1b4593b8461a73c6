// Package server initializes and runs the Reelproof backend: it opens the
// database, applies migrations, prepares the upload staging area, and serves
// the HTTP API with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reelproof/reelproof/internal/logging"
	"github.com/reelproof/reelproof/internal/server/api"
	"github.com/reelproof/reelproof/internal/server/config"
	"github.com/reelproof/reelproof/internal/server/repositories/repomanager"
	"github.com/reelproof/reelproof/internal/server/services"
	"github.com/reelproof/reelproof/internal/server/storage"
)

type App struct {
	config        *config.Config
	logger        logging.Logger
	db            *sql.DB
	userService   *services.UserService
	recordService *services.RecordService
}

func NewApp(c *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	db, err := repomanager.OpenDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	staging, err := storage.NewStaging(c.StagingDir)
	if err != nil {
		return nil, fmt.Errorf("staging init error: %w", err)
	}

	us := services.NewUserService(db, rm, c)
	rs := services.NewRecordService(db, rm, staging, c)

	return &App{config: c, logger: logger, db: db, userService: us, recordService: rs}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	handler := api.NewHandler(app.userService, app.recordService)
	e := api.SetupRouter(handler)

	go func() {
		if err := e.Start(app.config.EndpointAddr); err != nil && err != http.ErrServerClosed {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, err.Error())
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(shutdownCtx, err.Error())
	}

	app.logger.Info(shutdownCtx, "Server stopped")
}
