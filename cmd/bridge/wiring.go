package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	auditfile "github.com/vshulcz/dslbridge/internal/adapters/audit/file"
	remoteaudit "github.com/vshulcz/dslbridge/internal/adapters/audit/remote"
	"github.com/vshulcz/dslbridge/internal/adapters/bus/mqtt"
	natsbus "github.com/vshulcz/dslbridge/internal/adapters/bus/nats"
	"github.com/vshulcz/dslbridge/internal/adapters/persistence/file"
	pgrepo "github.com/vshulcz/dslbridge/internal/adapters/repository/postgres"
	"github.com/vshulcz/dslbridge/internal/adapters/telnet"
	"github.com/vshulcz/dslbridge/internal/config"
	"github.com/vshulcz/dslbridge/internal/domain"
	"github.com/vshulcz/dslbridge/internal/misc"
	"github.com/vshulcz/dslbridge/internal/ports"
	"github.com/vshulcz/dslbridge/internal/services/discovery"
	"github.com/vshulcz/dslbridge/internal/services/events"
)

const (
	dialTimeout    = 10 * time.Second
	watchdogGrace  = 10 * time.Second
	sampleInterval = 15 * time.Second
	shutdownWait   = 5 * time.Second
	pollQueueSize  = 16
	gzipMinLength  = 512
)

// deps are the seams between run and the outside world.
type deps struct {
	dialer ports.DeviceDialer
	newBus func(cfg config.BridgeConfig, topics discovery.Topics, conns *events.ConnSubject, logger *zap.Logger) ports.BusClient
	openDB func(dsn string) (*sql.DB, error)
	listen func(srv *http.Server) error
	grace  time.Duration
}

func defaultDeps(cfg config.BridgeConfig) deps {
	return deps{
		dialer: telnet.Dialer{DialTimeout: dialTimeout, ReadTimeout: cfg.Device.ReadTimeout.Duration},
		newBus: newBus,
		openDB: func(dsn string) (*sql.DB, error) { return sql.Open("postgres", dsn) },
		listen: (*http.Server).ListenAndServe,
		grace:  watchdogGrace,
	}
}

func sensorFor(cfg config.BridgeConfig) discovery.Sensor {
	return discovery.Sensor{
		DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
		Host:            cfg.Device.Host,
		Port:            cfg.Device.Port,
		ObjectID:        cfg.ObjectID,
		Name:            cfg.Name,
		ForceUpdate:     cfg.ForceUpdate,
	}
}

// newBus builds the configured bus client with the offline status as last will.
func newBus(cfg config.BridgeConfig, topics discovery.Topics, conns *events.ConnSubject, logger *zap.Logger) ports.BusClient {
	if cfg.Bus.Kind == config.BusNATS {
		return natsbus.New(natsbus.Options{
			URL:         cfg.NATS.URL,
			Name:        "dslbridge-" + cfg.ObjectID,
			WillTopic:   topics.Status,
			WillPayload: discovery.PayloadOffline,
		}, conns, logger)
	}
	return mqtt.New(mqtt.Options{
		Broker:      cfg.MQTT.Broker,
		Port:        cfg.MQTT.Port,
		ClientID:    cfg.MQTT.ClientID,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		KeepAlive:   time.Duration(cfg.MQTT.KeepAlive) * time.Second,
		WillTopic:   topics.Status,
		WillPayload: discovery.PayloadOffline,
	}, conns, logger)
}

// sink keeps the latest snapshot and follows every poll.
type sink interface {
	ports.SnapshotSink
	events.PollObserver
}

// openSinks returns the configured sinks, Postgres first. A database that
// cannot be reached is logged and skipped.
func openSinks(ctx context.Context, cfg config.BridgeConfig, d deps, logger *zap.Logger) ([]sink, *pgrepo.Repo, func()) {
	var sinks []sink
	var repo *pgrepo.Repo
	closers := []func(){}

	if cfg.Store.DSN != "" {
		db, err := d.openDB(cfg.Store.DSN)
		if err == nil {
			op := func() error {
				if err := db.PingContext(ctx); err != nil {
					return err
				}
				return pgrepo.Migrate(ctx, db)
			}
			err = misc.RetryNotify(ctx, misc.DefaultBackoff, pgrepo.IsRetryable, op,
				func(attempt int, err error, wait time.Duration) {
					logger.Warn("postgres not ready, retrying",
						zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
				})
			if err == nil {
				logger.Info("db connected & migrated")
				repo = pgrepo.New(db)
				sinks = append(sinks, repo)
				closers = append(closers, func() { _ = db.Close() })
			} else {
				_ = db.Close()
			}
		}
		if err != nil {
			logger.Warn("postgres init failed, continuing without it", zap.Error(err))
		}
	}
	if cfg.Store.File != "" {
		sinks = append(sinks, file.New(cfg.Store.File))
	}

	return sinks, repo, func() {
		for _, c := range closers {
			c()
		}
	}
}

// auditObservers returns the change log sinks enabled in cfg. A bad webhook
// URL is logged and skipped.
func auditObservers(cfg config.AuditConfig, logger *zap.Logger) []events.PollObserver {
	var out []events.PollObserver
	if cfg.File != "" {
		out = append(out, auditfile.New(cfg.File))
	}
	if cfg.URL != "" {
		cli, err := remoteaudit.New(cfg.URL, cfg.Key, nil)
		if err != nil {
			logger.Warn("audit webhook disabled", zap.Error(err))
		} else {
			out = append(out, cli)
		}
	}
	return out
}

// restore pre-fills store from the first sink holding a snapshot.
func restore(ctx context.Context, sinks []sink, store ports.MetricStore, logger *zap.Logger) {
	for _, s := range sinks {
		snap, err := s.Restore(ctx)
		if err != nil {
			logger.Warn("restore failed", zap.Error(err))
			continue
		}
		if len(snap) == 0 {
			continue
		}
		store.Apply(snap)
		logger.Info("restore ok", zap.Int("keys", len(snap)))
		return
	}
}

func isWatchdogExit(err error) bool {
	return errors.Is(err, domain.ErrLivenessTimeout) || errors.Is(err, domain.ErrSessionExited)
}
