// Package app assembles the circulation server from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"libraflow/internal/catalog"
	"libraflow/internal/circulation"
	"libraflow/internal/command"
	"libraflow/internal/facade"
	"libraflow/internal/membership"
	"libraflow/internal/notify"
	"libraflow/internal/platform/clock"
	"libraflow/internal/platform/config"
	"libraflow/internal/platform/database"
	"libraflow/internal/platform/lock"
	"libraflow/internal/reservation"
	"libraflow/internal/scheduler"
	"libraflow/pkg/eventstore"
)

// App holds the wired components of one server process.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Router    chi.Router
	Engine    *circulation.Engine
	Facade    *facade.Facade
	Catalog   catalog.Service
	Members   membership.Service
	Scheduler *scheduler.Scheduler
	Delivery  *notify.Delivery
	Registry  *prometheus.Registry

	closers []func() error
}

type stores struct {
	events       eventstore.Store
	items        catalog.Store
	members      membership.Store
	reservations reservation.Store
	transactions circulation.Store
	notes        notify.Store
}

func memoryStores() stores {
	return stores{
		events:       eventstore.NewMemoryStore(),
		items:        catalog.NewMemoryStore(),
		members:      membership.NewMemoryStore(),
		reservations: reservation.NewMemoryStore(),
		transactions: circulation.NewMemoryStore(),
		notes:        notify.NewMemoryStore(),
	}
}

func postgresStores(db *sqlx.DB) stores {
	return stores{
		events:       eventstore.NewPostgresStore(db.DB),
		items:        catalog.NewPostgresStore(db),
		members:      membership.NewPostgresStore(db),
		reservations: reservation.NewPostgresStore(db),
		transactions: circulation.NewPostgresStore(db),
		notes:        notify.NewPostgresStore(db),
	}
}

// New builds the application. An empty database URL keeps all state in
// memory; an empty Redis URL uses in-process item locks.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	st := memoryStores()
	if cfg.Database.URL != "" {
		db, err := database.Open(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		st = postgresStores(db)
	}

	var locker lock.Locker = lock.NewLocal()
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		a.closers = append(a.closers, client.Close)
		locker = lock.NewRedis(client, lock.WithTTL(cfg.Redis.LockTTL), lock.WithLogger(logger))
	}

	c := clock.System{}
	a.Catalog = catalog.NewService(st.events, st.items, catalog.WithLogger(logger))
	a.Members = membership.NewService(st.events, st.members, membership.WithLogger(logger))

	a.Delivery = notify.NewDelivery(notify.LogMailer{Logger: logger},
		notify.WithRate(cfg.Mail.RatePerMinute, cfg.Mail.Burst),
		notify.WithQueueSize(cfg.Mail.QueueSize),
		notify.WithDeliveryLogger(logger),
	)
	notifications := notify.NewService(st.notes, a.Members,
		notify.WithDelivery(a.Delivery),
		notify.WithServiceLogger(logger),
	)

	subject := notify.NewSubject(notify.WithLogger(logger))
	subject.Attach("user", notify.NewUserObserver(notifications, logger))
	if len(cfg.Kafka.Brokers) > 0 {
		client, err := notify.NewKafkaClient(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("kafka client: %w", err)
		}
		a.closers = append(a.closers, func() error { client.Close(); return nil })
		subject.Attach("kafka", notify.NewKafkaObserver(client, cfg.Kafka.Topic, logger))
	}

	a.Engine = circulation.NewEngine(st.items, st.members, st.events,
		reservation.NewQueue(st.reservations, c),
		circulation.NewLedger(st.transactions, c, cfg.Circulation.RevokeWindow),
		subject,
		circulation.WithLocker(locker),
		circulation.WithClock(c),
		circulation.WithLogger(logger),
		circulation.WithMetrics(circulation.NewMetrics(a.Registry)),
		circulation.WithHoldDays(cfg.Circulation.HoldDays),
		circulation.WithReminderLead(cfg.Circulation.ReminderLead),
	)

	a.Scheduler = scheduler.New(
		scheduler.Jobs(a.Engine, cfg.Scheduler.ReminderInterval, cfg.Scheduler.ExpiryInterval, cfg.Scheduler.OverdueInterval),
		scheduler.WithLogger(logger),
	)

	a.Facade = facade.New(a.Engine,
		command.NewInvoker(command.WithDepth(cfg.Circulation.UndoHistoryLimit), command.WithLogger(logger)),
		a.Members, a.Catalog,
		facade.WithReminders(a.Scheduler),
		facade.WithLogger(logger),
	)

	a.Router = a.routes(notifications)
	return a, nil
}

func (a *App) routes(notifications *notify.Service) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))

	catalog.NewHandler(a.Catalog).Routes(r)
	membership.NewHandler(a.Members).Routes(r)
	circulation.NewHandler(a.Engine).Routes(r)
	facade.NewHandler(a.Facade).Routes(r)
	notify.NewHandler(notifications).Routes(r)
	return r
}

// Run serves HTTP and runs the mail outbox and, when enabled, the scheduler
// until ctx is done or one of them fails.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{Addr: a.Config.HTTP.Addr, Handler: a.Router}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := a.Delivery.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if a.Config.Scheduler.Enabled {
		g.Go(func() error { return a.Scheduler.Run(ctx) })
	}
	return g.Wait()
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
