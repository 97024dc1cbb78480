package main

import (
	"database/sql"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/portfolio-lease/internal/config"
	"github.com/iliyamo/portfolio-lease/internal/database"
	"github.com/iliyamo/portfolio-lease/internal/issue"
	"github.com/iliyamo/portfolio-lease/internal/lease"
	"github.com/iliyamo/portfolio-lease/internal/logging"
	"github.com/iliyamo/portfolio-lease/internal/metrics"
	"github.com/iliyamo/portfolio-lease/internal/repository"
	queue_publisher "github.com/iliyamo/portfolio-lease/internal/service"
)

// app holds everything the commands share once configuration is loaded.
type app struct {
	cfg      config.Config
	leaseCfg config.LeaseConfig
	queueCfg config.QueueConfig
	log      *slog.Logger

	db        *sql.DB
	rdb       *redis.Client
	registry  *prometheus.Registry
	metrics   *metrics.LeaseMetrics
	publisher *queue_publisher.Publisher

	reservations *repository.ReservationRepo
	leases       *lease.Service
	issues       *issue.Service
}

func newApp() (*app, error) {
	cfg := config.Load()
	a := &app{
		cfg:      cfg,
		leaseCfg: config.LoadLeaseConfig(),
		queueCfg: config.LoadQueueConfig(),
		log:      logging.New(cfg.Env).With("app", "portfolio-lease"),
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m, err := metrics.NewLeaseMetrics(a.registry)
	if err != nil {
		return nil, err
	}
	a.metrics = m

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, err
	}
	a.db = db

	a.rdb = config.NewRedisClient()
	if a.rdb == nil {
		a.log.Warn("redis unavailable; rate limiting and name cache disabled")
	}

	var events lease.EventPublisher
	if a.queueCfg.PublishEnabled {
		a.publisher = queue_publisher.NewPublisher(a.queueCfg, a.log)
		events = a.publisher
	}

	a.reservations = repository.NewReservationRepo(db)
	portfolios := repository.NewPortfolioRepo(db)
	names := repository.NewCachedPortfolioNames(portfolios, a.rdb, config.LoadNameCacheConfig())

	a.leases = lease.NewService(a.reservations, portfolios, names, lease.Options{
		Logger:        a.log,
		Metrics:       m,
		Events:        events,
		LeaseDuration: a.leaseCfg.Duration,
	})
	a.issues = issue.NewService(a.leases, repository.NewIssueRepo(db), portfolios, a.log)
	return a, nil
}

func (a *app) reclaimer() *lease.Reclaimer {
	var events lease.EventPublisher
	if a.publisher != nil {
		events = a.publisher
	}
	return lease.NewReclaimer(a.reservations, lease.ReclaimerConfig{
		Interval: a.leaseCfg.SweepInterval,
		Grace:    a.leaseCfg.RolloverGrace,
		Location: a.leaseCfg.Location,
		Logger:   a.log,
		Metrics:  a.metrics,
		Events:   events,
	})
}

func (a *app) Close() {
	if a.publisher != nil {
		_ = a.publisher.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
