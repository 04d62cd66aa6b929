// Command reconcile advances numbering sequences that lag behind the
// document numbers actually stored, across every tenant. Run it after
// restoring a backup or fixing data by hand.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	appnumbering "github.com/invoiced/backend/internal/application/numbering"
	"github.com/invoiced/backend/internal/domain/numbering"
	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/invoiced/backend/internal/infrastructure/config"
	"github.com/invoiced/backend/internal/infrastructure/lock"
	"github.com/invoiced/backend/internal/infrastructure/logger"
	"github.com/invoiced/backend/internal/infrastructure/persistence"
	"github.com/invoiced/backend/internal/infrastructure/persistence/tenant"
	"go.uber.org/zap"
)

func main() {
	var types stringList
	flag.Var(&types, "type", "Object type to reconcile (repeatable; default: all)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log, types); err != nil {
		log.Fatal("Reconciliation failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger, typeNames []string) error {
	objectTypes := make([]numbering.ObjectType, 0, len(typeNames))
	for _, name := range typeNames {
		t, err := numbering.ParseObjectType(name)
		if err != nil {
			return err
		}
		objectTypes = append(objectTypes, t)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	guard := tenant.NewGuard()
	db, err := persistence.NewDatabase(&cfg.Database, log, cfg.Log.Level, guard)
	if err != nil {
		return err
	}
	defer db.Close()

	// Writes must serialize with live reservations, so the in-memory
	// fallback is never used here.
	locker, err := lock.NewFactory(cfg.Redis,
		lock.WithLogger(log),
		lock.WithBackend(cfg.Numbering.Backend),
	).CreateLocker()
	if err != nil {
		return err
	}
	defer locker.Close()

	store := persistence.NewGormSequenceStore(db.DB, guard)
	gen := numbering.NewGenerator(store, locker,
		numbering.WithLockConfig(shared.LockConfig{TTL: cfg.Numbering.LockTTL, Wait: cfg.Numbering.LockWait}),
		numbering.WithLogger(log),
	)

	res, err := appnumbering.NewReconciler(gen, store, log, objectTypes...).Run(ctx)
	if err != nil {
		return err
	}
	for _, a := range res.Advanced {
		fmt.Printf("%s: %d -> %d\n", a.Key, a.From, a.To)
	}
	if res.Unparsed > 0 {
		log.Warn("Some numbers do not match their sequence template and were ignored",
			zap.Int("unparsed", res.Unparsed))
	}
	return nil
}

type stringList []string

func (s *stringList) String() string { return fmt.Sprint(*s) }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
