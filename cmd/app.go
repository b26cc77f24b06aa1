package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"

	"smartdine/internal/config"
	"smartdine/internal/database"
	"smartdine/internal/docstore"
	"smartdine/internal/docstore/memstore"
	"smartdine/internal/docstore/natskv"
	"smartdine/internal/docstore/pgstore"
	"smartdine/internal/httpx"
	"smartdine/internal/logger"
	"smartdine/internal/messaging"
	"smartdine/internal/metrics"
	"smartdine/internal/services/catalog"
	"smartdine/internal/services/kitchen"
	"smartdine/internal/services/order"
	"smartdine/internal/services/tracking"
)

// app owns the shared infrastructure of one process and releases it in
// reverse order of acquisition.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Metrics
	closers []func()

	store docstore.Store
	db    *database.DB
}

func newApp(cfg *config.Config, log *logger.Logger) *app {
	return &app{cfg: cfg, log: log, metrics: metrics.New()}
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// database connects once per process
func (a *app) database(ctx context.Context) (*database.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := database.New(ctx, a.cfg, a.log)
	if err != nil {
		return nil, err
	}
	a.onClose(db.Close)
	a.db = db
	return db, nil
}

// openStore builds the configured document store backend
func (a *app) openStore(ctx context.Context) (docstore.Store, error) {
	if a.store != nil {
		return a.store, nil
	}

	var store docstore.Store
	switch a.cfg.Store.Backend {
	case config.BackendMemory:
		store = memstore.New()

	case config.BackendNATS:
		nc, err := a.connectNATS()
		if err != nil {
			return nil, err
		}
		js, err := jetstream.New(nc)
		if err != nil {
			return nil, fmt.Errorf("create jetstream context: %w", err)
		}
		store = natskv.NewStore(js)

	case config.BackendPostgres:
		db, err := a.database(ctx)
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrations(ctx); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		store = pgstore.NewStore(db, a.log)

	default:
		return nil, fmt.Errorf("unknown store backend %q", a.cfg.Store.Backend)
	}

	a.onClose(func() { _ = store.Close() })
	a.store = store
	return store, nil
}

func (a *app) connectNATS() (*nats.Conn, error) {
	if a.cfg.NATS.URL != "" {
		nc, err := nats.Connect(a.cfg.NATS.URL,
			nats.Name(appName),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			return nil, fmt.Errorf("connect to NATS at %s: %w", a.cfg.NATS.URL, err)
		}
		a.onClose(nc.Close)
		a.log.Info("nats_connected", "Connected to NATS", "startup", map[string]interface{}{
			"url": a.cfg.NATS.URL,
		})
		return nc, nil
	}

	emb, err := natskv.StartEmbedded(a.cfg.NATS.StoreDir)
	if err != nil {
		return nil, err
	}
	a.onClose(emb.Close)
	a.log.Info("nats_embedded_started", "Started embedded NATS server", "startup", map[string]interface{}{
		"url":       emb.Server.ClientURL(),
		"store_dir": a.cfg.NATS.StoreDir,
	})
	return emb.Conn, nil
}

// openPublisher returns the order event publisher, or nil when RabbitMQ is
// disabled.
func (a *app) openPublisher() (order.EventPublisher, error) {
	if !a.cfg.RabbitMQ.Enabled {
		return nil, nil
	}
	conn, err := messaging.New(a.cfg.RabbitMQURL(), a.log)
	if err != nil {
		return nil, err
	}
	a.onClose(func() { _ = conn.Close() })
	return messaging.NewPublisher(conn, a.log), nil
}

func (a *app) lifecycle(store docstore.Store) (*order.Lifecycle, error) {
	pub, err := a.openPublisher()
	if err != nil {
		return nil, err
	}
	return order.NewLifecycle(store, pub, a.metrics, a.log, order.Options{
		RequireTable:  a.cfg.Ordering.RequireTable,
		UnknownTable:  a.cfg.Ordering.UnknownTable,
		SubmitTimeout: a.cfg.Ordering.SubmitTimeout,
	}), nil
}

// ErrProcessLocalStore rejects running ordering or kitchen alone on a store
// that no other process can see.
var ErrProcessLocalStore = errors.New("store is local to this process")

// requireSharedStore fails when a standalone service would get a private
// copy of the documents.
func (a *app) requireSharedStore(service string) error {
	if a.cfg.SharedStore() {
		return nil
	}
	return fmt.Errorf("%s: %w (backend %q): set nats.url, use store.backend postgres, or run both with `%s serve`",
		service, ErrProcessLocalStore, a.cfg.Store.Backend, appName)
}

type mirror interface {
	Start(ctx context.Context) error
	Run(ctx context.Context) error
	Stop()
}

// runGroup starts every mirror, then runs mirrors, background tasks and
// servers until ctx ends or one fails.
func (a *app) runGroup(ctx context.Context, mirrors []mirror, tasks []func(context.Context) error, servers map[string]*http.Server) error {
	for i, m := range mirrors {
		if err := m.Start(ctx); err != nil {
			for _, started := range mirrors[:i] {
				started.Stop()
			}
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, m := range mirrors {
		g.Go(func() error { return m.Run(gctx) })
	}
	for _, task := range tasks {
		g.Go(func() error { return task(gctx) })
	}
	for name, srv := range servers {
		g.Go(func() error { return httpx.Serve(gctx, srv, a.log, name) })
	}
	return ignoreCanceled(g.Wait())
}

type ordering struct {
	menu     *catalog.Catalog
	sessions *order.Sessions
	server   *http.Server
}

func (a *app) orderingServer(store docstore.Store, lc *order.Lifecycle) ordering {
	menu := catalog.New(store, a.log)
	sessions := order.NewSessions(menu, a.metrics)
	h := order.NewHandler(sessions, lc, menu, a.metrics, a.log)
	return ordering{
		menu:     menu,
		sessions: sessions,
		server:   newServer(a.cfg.HTTP.OrderingPort, h.SetupRoutes()),
	}
}

func (a *app) expireSessions(sessions *order.Sessions) func(context.Context) error {
	return func(ctx context.Context) error {
		return sessions.Expire(ctx, a.cfg.Ordering.SessionIdleTimeout)
	}
}

func (a *app) kitchenServer(store docstore.Store, lc *order.Lifecycle) (*kitchen.Board, *http.Server) {
	board := kitchen.NewBoard(store, a.log)
	h := kitchen.NewHandler(board, lc, a.metrics, a.log)
	return board, newServer(a.cfg.HTTP.KitchenPort, h.SetupRoutes())
}

func (a *app) runOrdering(ctx context.Context) error {
	if err := a.requireSharedStore("ordering"); err != nil {
		return err
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	lc, err := a.lifecycle(store)
	if err != nil {
		return err
	}
	o := a.orderingServer(store, lc)
	return a.runGroup(ctx,
		[]mirror{o.menu},
		[]func(context.Context) error{a.expireSessions(o.sessions)},
		map[string]*http.Server{"ordering-service": o.server})
}

func (a *app) runKitchen(ctx context.Context) error {
	if err := a.requireSharedStore("kitchen"); err != nil {
		return err
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	lc, err := a.lifecycle(store)
	if err != nil {
		return err
	}
	board, srv := a.kitchenServer(store, lc)
	return a.runGroup(ctx, []mirror{board}, nil, map[string]*http.Server{"kitchen-service": srv})
}

// runAll serves ordering and kitchen from one process over one store, the
// only way to run them on a process-local backend.
func (a *app) runAll(ctx context.Context) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	lc, err := a.lifecycle(store)
	if err != nil {
		return err
	}
	o := a.orderingServer(store, lc)
	board, kitchenSrv := a.kitchenServer(store, lc)
	return a.runGroup(ctx,
		[]mirror{o.menu, board},
		[]func(context.Context) error{a.expireSessions(o.sessions)},
		map[string]*http.Server{
			"ordering-service": o.server,
			"kitchen-service":  kitchenSrv,
		})
}

func (a *app) runTracker(ctx context.Context, prefetch int) error {
	if !a.cfg.RabbitMQ.Enabled {
		return errors.New("tracker requires rabbitmq.enabled")
	}
	db, err := a.database(ctx)
	if err != nil {
		return err
	}
	if err := db.RunMigrations(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	conn, err := messaging.New(a.cfg.RabbitMQURL(), a.log)
	if err != nil {
		return err
	}
	hostname, _ := os.Hostname()
	consumer := messaging.NewConsumer(conn, a.log, messaging.OrderEventsQueue, "tracker-"+hostname, prefetch)
	a.onClose(func() { _ = consumer.Close() })

	svc := tracking.NewService(tracking.NewPostgresRepo(db), a.log)
	srv := newServer(a.cfg.HTTP.TrackerPort, tracking.NewHandler(svc, db, a.log).SetupRoutes())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return consumer.StartConsuming(gctx, svc.HandleMessage) })
	g.Go(func() error { return httpx.Serve(gctx, srv, a.log, "tracking-service") })
	return ignoreCanceled(g.Wait())
}

func (a *app) migrate(ctx context.Context) error {
	db, err := a.database(ctx)
	if err != nil {
		return err
	}
	return db.RunMigrations(ctx)
}

func (a *app) seedMenu(ctx context.Context, file string) error {
	items, err := catalog.LoadSeedFile(file)
	if err != nil {
		return err
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	ids, err := catalog.Seed(ctx, store, items)
	if err != nil {
		return err
	}
	a.log.Info("menu_seeded", fmt.Sprintf("Seeded %d menu items", len(ids)), "seed", map[string]interface{}{
		"file":  file,
		"count": len(ids),
	})
	return nil
}

func newServer(port int, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
