package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/hostelbites/internal/config"
	"github.com/mamadbah2/hostelbites/internal/repository"
	"github.com/mamadbah2/hostelbites/internal/repository/jsonfile"
	"github.com/mamadbah2/hostelbites/internal/repository/mongodb"
	"github.com/mamadbah2/hostelbites/internal/repository/sheets"
	"github.com/mamadbah2/hostelbites/internal/repository/sqlite"
	"github.com/mamadbah2/hostelbites/internal/scheduler"
	"github.com/mamadbah2/hostelbites/internal/server/handlers"
	"github.com/mamadbah2/hostelbites/internal/server/router"
	"github.com/mamadbah2/hostelbites/internal/service/attendance"
	reportingsvc "github.com/mamadbah2/hostelbites/internal/service/reporting"
	"github.com/mamadbah2/hostelbites/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	loc, err := cfg.Location()
	if err != nil {
		baseLogger.Fatal("failed to resolve timezone", zap.Error(err))
	}

	store, closeStore, err := openStore(context.Background(), cfg, logger.Named(baseLogger, "repo.store"))
	if err != nil {
		baseLogger.Fatal("failed to init ledger store", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
	}
	defer closeStore()

	ledger := attendance.NewLedger(store, attendance.Options{
		ExpectedCount:     cfg.Attendance.ExpectedCount,
		Location:          loc,
		StrictRosterVotes: cfg.Attendance.StrictRosterVotes,
	}, baseLogger.Named("svc.attendance"))

	var sheetsRepo sheets.Repository
	if cfg.Sheets.Enabled() {
		sheetsRepo, err = sheets.NewGoogleSheetRepository(context.Background(), cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		baseLogger.Info("sheet publishing enabled", zap.String("sheet", cfg.Sheets.SheetName))
	} else {
		baseLogger.Warn("google sheets credentials missing, sheet publishing disabled")
	}
	publisher := reportingsvc.NewService(sheetsRepo, ledger, cfg.Sheets.SheetName, baseLogger.Named("svc.reporting"))

	handler := handlers.NewAttendanceHandler(ledger, publisher, baseLogger.Named("handlers.attendance"))
	engine := router.New(handler, baseLogger.Named("router"))

	sched := scheduler.NewScheduler(cfg.Scheduler, loc, ledger, publisher, baseLogger.Named("scheduler"))
	if err := sched.Register(); err != nil {
		baseLogger.Fatal("failed to register scheduled jobs", zap.Error(err))
	}
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("backend", cfg.Storage.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// openStore builds the configured backend and returns a matching close func.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.Store, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		store, err := sqlite.NewStore(ctx, cfg.Storage.SQLitePath, log)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				log.Error("failed to close sqlite database", zap.Error(err))
			}
		}, nil
	case config.BackendMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		store, err := mongodb.NewMongoDBRepository(connectCtx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(context.Background()); err != nil {
				log.Error("failed to close mongodb connection", zap.Error(err))
			}
		}, nil
	default:
		store, err := jsonfile.NewStore(cfg.Storage.DataFile, cfg.Storage.NamesFile, log)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}
