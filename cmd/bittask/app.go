package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DaveSongnata/BitTask/internal/config"
	"github.com/DaveSongnata/BitTask/internal/logging"
	"github.com/DaveSongnata/BitTask/internal/queue"
	"github.com/DaveSongnata/BitTask/internal/service"
	"github.com/DaveSongnata/BitTask/internal/store"
	"github.com/DaveSongnata/BitTask/internal/types"
)

// app is everything a command needs once the database is open.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	closeLog func() error
	db       *store.DB
	queue    *queue.Queue
	svc      *service.Services
}

// fatalf reports err on stderr and exits.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// openApp loads configuration, opens and migrates the database, and wires
// the queue and services. It exits on failure.
func openApp(cmd *cobra.Command) *app {
	cfg, err := config.Load(settings, configFile)
	if err != nil {
		fatalf("%v", err)
	}

	logger, closeLog, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		fatalf("%v", err)
	}

	db, err := store.Open(cfg.DB.Path, store.WithLogger(logger))
	if err != nil {
		fatalf("failed to open database: %v", err)
	}
	if err := db.Migrate(cmd.Context()); err != nil {
		_ = db.Close()
		fatalf("failed to migrate database: %v", err)
	}

	q := queue.New(db, queue.WithLogger(logger))
	return &app{
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		db:       db,
		queue:    q,
		svc:      service.New(db, q, service.WithLogger(logger)),
	}
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", zap.Error(err))
	}
	_ = a.closeLog()
}

// fail closes the app before exiting so WAL state is checkpointed.
func (a *app) fail(format string, args ...any) {
	a.Close()
	fatalf(format, args...)
}

func parseID(what, s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	return id, nil
}

// parseIDs parses every argument as a positive ID.
func parseIDs(what string, args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseID(what, arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// mustTask resolves a citation ("#12" or "12") or exits.
func (a *app) mustTask(cmd *cobra.Command, ref string) *types.Task {
	seq, err := parseID("task", strings.TrimPrefix(strings.TrimSpace(ref), "#"))
	if err != nil {
		a.fail("%v", err)
	}
	task, err := a.svc.Tasks.GetTaskBySequentialID(cmd.Context(), seq)
	if err != nil {
		a.fail("%v", err)
	}
	if task == nil {
		a.fail("task #%d not found", seq)
	}
	return task
}
