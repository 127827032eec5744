package main

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/christopherklint97/citabot/internal/booking"
	"github.com/christopherklint97/citabot/internal/calendar"
	"github.com/christopherklint97/citabot/internal/caltime"
	"github.com/christopherklint97/citabot/internal/config"
	"github.com/christopherklint97/citabot/internal/gcal"
	"github.com/christopherklint97/citabot/internal/logging"
	"github.com/christopherklint97/citabot/internal/msgraph"
	"github.com/christopherklint97/citabot/internal/notify"
	"github.com/christopherklint97/citabot/internal/scheduler"
	"github.com/christopherklint97/citabot/internal/session"
	"github.com/christopherklint97/citabot/internal/store"
)

// runtime holds everything a command needs, built from the config file.
type runtime struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *store.DB
	sessions session.Store
	gateway  calendar.Gateway
	notifier booking.Notifier

	closers []func() error
}

func newRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	logger, err := logging.New(logging.Options{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		File:        cfg.Log.File,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating logger")
	}
	rt := &runtime{cfg: cfg, logger: logger}
	rt.closers = append(rt.closers, func() error {
		_ = logger.Sync()
		return nil
	})

	gateway, err := newGateway(cfg, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.gateway = gateway

	// bookings are always audited in SQLite, whatever holds the sessions
	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		rt.Close()
		return nil, errors.Wrap(err, "opening database")
	}
	rt.db = db
	rt.closers = append(rt.closers, db.Close)

	switch cfg.Store.Driver {
	case "memory":
		rt.sessions = session.NewMemoryStore()
	case "redis":
		rs := session.NewRedisStore(session.RedisOptions{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
			TTL:      cfg.SessionTTL(),
		})
		rt.closers = append(rt.closers, rs.Close)
		if err := rs.Ping(ctx); err != nil {
			rt.Close()
			return nil, err
		}
		rt.sessions = rs
	default:
		rt.sessions = db.Sessions()
	}

	if cfg.Notifications.Enabled {
		rt.notifier = notify.NewDesktop(cfg.Business.Name)
	} else {
		rt.notifier = notify.Discard{}
	}

	logger.Debug("runtime ready",
		zap.String("calendar", providerName(cfg)),
		zap.String("store", cfg.Store.Driver),
	)
	return rt, nil
}

func providerName(cfg *config.Config) string {
	if cfg.Calendar.Provider == "" {
		return "google"
	}
	return cfg.Calendar.Provider
}

func newGateway(cfg *config.Config, logger *zap.Logger) (calendar.Gateway, error) {
	switch providerName(cfg) {
	case "ics":
		return calendar.NewICS(cfg.Calendar.Source, logger.Named("ics")), nil
	case "graph":
		tokens, err := msgraph.DefaultTokenStore()
		if err != nil {
			return nil, err
		}
		auth := msgraph.NewAuth(cfg.Calendar.Graph.ClientID, cfg.Calendar.Graph.TenantID, tokens, logger.Named("msgraph"))
		return msgraph.NewClient(auth, logger.Named("msgraph")), nil
	default:
		return gcal.New(googleOptions(cfg), logger.Named("gcal")), nil
	}
}

func googleOptions(cfg *config.Config) gcal.Options {
	return gcal.Options{
		CredentialsPath:   cfg.Calendar.Google.CredentialsPath,
		TokenPath:         cfg.Calendar.Google.TokenPath,
		CalendarID:        cfg.Calendar.Google.CalendarID,
		RequestsPerSecond: cfg.Calendar.Google.RequestsPerSecond,
	}
}

func (rt *runtime) assistant() (*booking.Assistant, error) {
	return booking.New(rt.cfg.Settings(), rt.sessions, rt.gateway,
		booking.WithLogger(rt.logger.Named("booking")),
		booking.WithRecorder(rt.db),
		booking.WithNotifier(rt.notifier),
	)
}

func (rt *runtime) retrier() *scheduler.Retrier {
	r := scheduler.New(rt.db, rt.gateway, rt.cfg.Settings(), caltime.SystemClock{}, rt.logger.Named("retry"))
	r.SetNotifier(rt.notifier)
	return r
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil && rt.logger != nil {
			rt.logger.Warn("closing resource", zap.Error(err))
		}
	}
}
