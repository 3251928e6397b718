package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vshulcz/dslbridge/internal/adapters/collector/runtime"
	"github.com/vshulcz/dslbridge/internal/adapters/http/ginserver"
	"github.com/vshulcz/dslbridge/internal/adapters/http/ginserver/middlewares"
	"github.com/vshulcz/dslbridge/internal/adapters/observability"
	memrepo "github.com/vshulcz/dslbridge/internal/adapters/repository/memory"
	"github.com/vshulcz/dslbridge/internal/config"
	"github.com/vshulcz/dslbridge/internal/services/bridge"
	"github.com/vshulcz/dslbridge/internal/services/discovery"
	"github.com/vshulcz/dslbridge/internal/services/events"
	"github.com/vshulcz/dslbridge/internal/services/liveness"
	"github.com/vshulcz/dslbridge/internal/services/publisher"
	"github.com/vshulcz/dslbridge/internal/services/rate"
)

// run wires the bridge and blocks until ctx is done (nil) or the watchdog
// gives up on the device session (non-nil).
func run(ctx context.Context, cfg config.BridgeConfig, logger *zap.Logger, d deps) error {
	sensor := sensorFor(cfg)
	topics := sensor.Topics()
	logger = logger.With(zap.String("device", sensor.HostPort()))

	rec := observability.NewPromRecorder()
	conns := events.NewConnSubject(events.ConnObserverFunc(rec.ObserveConn))
	conns.SetErrorHandler(func(err error) {
		logger.Warn("connectivity observer failed", zap.Error(err))
	})

	bus := d.newBus(cfg, topics, conns, logger)
	announcer, err := discovery.NewAnnouncer(bus, sensor, logger)
	if err != nil {
		return err
	}
	conns.Attach(announcer)

	if err := bus.Connect(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		logger.Error("bus connect failed, polling without publishing", zap.Error(err))
	}
	defer bus.Close()

	store := memrepo.New()
	sinks, repo, closeSinks := openSinks(ctx, cfg, d, logger)
	defer closeSinks()
	if cfg.Store.Restore {
		restore(ctx, sinks, store, logger)
	}

	polls := events.NewPollSubject(rec)
	for _, s := range sinks {
		polls.Attach(s)
	}
	for _, o := range auditObservers(cfg.Audit, logger) {
		polls.Attach(o)
	}
	polls.SetErrorHandler(func(err error) {
		logger.Warn("poll observer failed", zap.Error(err))
	})
	queue := events.NewPollQueue(polls, pollQueueSize)

	st := &bridge.State{
		Store:     store,
		Rates:     rate.New(cfg.Sensor.Precision),
		Publisher: publisher.New(bus, topics, logger),
		Monitor:   liveness.New(),
		Polls:     queue,
		Recorder:  rec,
	}
	sess := bridge.NewSession(bridge.SessionConfig{
		Username:       cfg.Device.Username,
		Password:       cfg.Device.Password,
		Interface:      cfg.Device.Interface,
		UpdateInterval: cfg.Sensor.UpdateInterval.Duration,
	}, st, logger)
	sup := bridge.NewSupervisor(sensor.HostPort(), d.dialer, st, sess, logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Go(func() { queue.Run(runCtx) })
	wg.Go(func() { _ = sup.Run(runCtx) })

	deadline := cfg.Sensor.UpdateInterval.Duration + d.grace
	if cfg.HTTP.Address != "" {
		proc := runtime.New(logger)
		proc.Start(runCtx, sampleInterval)
		defer proc.Stop()

		hd := ginserver.Deps{
			Store:    store,
			Liveness: st.Monitor,
			Process:  proc,
			Metrics:  promhttp.HandlerFor(rec.Registry(), promhttp.HandlerOpts{}),
			Deadline: deadline,
		}
		if repo != nil {
			hd.DB = repo
		}
		serve(runCtx, &wg, cfg.HTTP.Address, ginserver.NewHandler(hd), d, logger)
	}

	logger.Info("bridge running",
		zap.String("bus", cfg.Bus.Kind),
		zap.String("topic_prefix", sensor.Prefix()),
		zap.Duration("update_interval", cfg.Sensor.UpdateInterval.Duration),
		zap.Duration("watchdog", deadline))

	err = st.Monitor.Watch(runCtx, deadline)
	cancel()
	if ctx.Err() != nil {
		wg.Wait()
		return nil
	}
	if isWatchdogExit(err) {
		logger.Error("device session stalled",
			zap.Duration("since_progress", st.Monitor.Age()), zap.Error(err))
	}
	return err
}

// serve runs the status server until ctx is done.
func serve(ctx context.Context, wg *sync.WaitGroup, addr string, h *ginserver.Handler, d deps, logger *zap.Logger) {
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              addr,
		Handler:           ginserver.NewRouter(h, logger, middlewares.GzipResponse(
			middlewares.WithMinLength(gzipMinLength),
			middlewares.WithoutPaths("/metrics"),
		)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	wg.Go(func() {
		logger.Info("status server listening", zap.String("addr", addr))
		if err := d.listen(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("status server failed", zap.Error(err))
		}
	})
	wg.Go(func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Warn("status server shutdown", zap.Error(err))
		}
	})
}
