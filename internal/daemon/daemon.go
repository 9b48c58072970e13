package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/tempohq/tempo/internal/api"
	"github.com/tempohq/tempo/internal/domain"
	"github.com/tempohq/tempo/internal/eventbus"
	"github.com/tempohq/tempo/internal/infra/delegation"
	"github.com/tempohq/tempo/internal/infra/disruption"
	"github.com/tempohq/tempo/internal/infra/energy"
	"github.com/tempohq/tempo/internal/infra/kernel"
	"github.com/tempohq/tempo/internal/infra/lts"
	"github.com/tempohq/tempo/internal/infra/mts"
	"github.com/tempohq/tempo/internal/infra/sqlite"
	"github.com/tempohq/tempo/internal/infra/store"
	"github.com/tempohq/tempo/internal/infra/sts"
)

// Daemon is the Tempo runtime. It wires the store, the three scheduling
// tiers, the delegation gateway, and the HTTP boundary together.
type Daemon struct {
	Config Config
	Log    zerolog.Logger

	DB         *sqlite.DB
	Store      *store.Store
	Energy     *energy.Estimator
	Planner    *lts.Planner
	Classifier *disruption.Classifier
	Swapper    *mts.Swapper
	Queue      *sts.Queue
	Gateway    *delegation.Gateway
	Engine     *kernel.Engine
	Bus        eventbus.Bus
	Server     *api.Server

	cancel context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	log := newLogger(cfg.Logging.Level)

	db, err := sqlite.Open(Home())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	st := store.New(db, log)
	if tasks, err := db.LoadTasks(); err != nil {
		log.Warn().Err(err).Msg("task journal unreadable, starting empty")
	} else if len(tasks) > 0 {
		st.Load(tasks)
		log.Info().Int("tasks", len(tasks)).Msg("restored journaled tasks")
	}

	est := energy.New(energy.Config{
		DecayWindow: parseDuration(cfg.Energy.DecayWindow, 2*time.Hour),
	}, db, log)
	if report, err := db.LatestEnergyReport(); err == nil && report != nil {
		est.Update(*report)
	}

	// Profiling subsystem boundary: the default no-op profile until the
	// external profiler pushes signals.
	profile := domain.DefaultProfile{}

	planner := lts.New(lts.Config{
		WeightUrgency:  cfg.Planner.WeightUrgency,
		WeightPriority: cfg.Planner.WeightPriority,
		WeightPeak:     cfg.Planner.WeightPeak,
		WeightDuration: cfg.Planner.WeightDuration,
	}, st, est, profile, log)

	classifier := disruption.New(disruption.Config{
		MinDeltaMinutes:      cfg.Classifier.MinDeltaMinutes,
		MajorDeltaMinutes:    cfg.Classifier.MajorDeltaMinutes,
		CriticalDeltaMinutes: cfg.Classifier.CriticalDeltaMinutes,
		CascadeCount:         cfg.Classifier.CascadeCount,
	}, st, profile, db, log)

	swapper := mts.New(st, planner, db, log)
	queue := sts.New(st, db, log)

	gateway := delegation.New(delegation.Config{
		AckTimeout:    parseDuration(cfg.Delegation.AckTimeout, 15*time.Minute),
		MaxPending:    cfg.Delegation.MaxPending,
		SweepInterval: parseDuration(cfg.Delegation.SweepInterval, time.Minute),
	}, st, log)

	bus := eventbus.New()
	engine := kernel.New(st, planner, classifier, swapper, queue, gateway, est, bus, log)

	srv := api.NewServer(engine, cfg.API.EventsPerSecond, log)
	if cfg.API.Metrics {
		srv.EnableMetrics()
	}

	return &Daemon{
		Config:     cfg,
		Log:        log,
		DB:         db,
		Store:      st,
		Energy:     est,
		Planner:    planner,
		Classifier: classifier,
		Swapper:    swapper,
		Queue:      queue,
		Gateway:    gateway,
		Engine:     engine,
		Bus:        bus,
		Server:     srv,
	}, nil
}

// Serve starts the HTTP server and background services, blocking until
// shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// Delegation timeout reaper.
	go d.Gateway.Run(ctx)

	// Morning planning cadence.
	var c *cron.Cron
	if d.Config.Daemon.DailyPlanCron != "" {
		c = cron.New()
		_, err := c.AddFunc(d.Config.Daemon.DailyPlanCron, func() {
			res := d.Engine.PlanDay(d.Config.Daemon.DailyPlanMinutes)
			d.Log.Info().
				Int("admitted", len(res.Admitted)).
				Int("skipped", len(res.Skipped)).
				Msg("daily plan pass")
		})
		if err != nil {
			d.Log.Warn().Err(err).Str("cron", d.Config.Daemon.DailyPlanCron).Msg("daily plan cron disabled")
		} else {
			c.Start()
		}
	}

	// Config hot reload for tunables.
	go d.watchConfig(ctx, ConfigPath())

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()

		if c != nil {
			c.Stop()
		}
		_ = httpServer.Shutdown(shutdownCtx)
		_ = d.DB.Close()
		cancel()
	}()

	d.Log.Info().Str("addr", addr).Msg("tempo serving")
	if d.Config.API.Metrics {
		d.Log.Info().Str("metrics", "http://"+addr+"/metrics").Msg("metrics enabled")
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}

// newLogger builds the daemon's zerolog root logger.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().Timestamp().Logger()
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
