package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	alarmapp "alarm-dashboard/internal/alarms/application"
	alarms "alarm-dashboard/internal/alarms/domain"
	"alarm-dashboard/internal/alarms/infrastructure/memory"
	"alarm-dashboard/internal/alarms/infrastructure/sqlstore"
	alarmhttp "alarm-dashboard/internal/alarms/interfaces/http"
	"alarm-dashboard/internal/alarms/notify"
	apihttp "alarm-dashboard/internal/api/http"
	"alarm-dashboard/internal/audit"
	"alarm-dashboard/internal/auth"
	"alarm-dashboard/internal/config"
	"alarm-dashboard/internal/database"
	"alarm-dashboard/internal/observability/metrics"
)

// AlarmStore is what the dashboard needs from a backing store.
type AlarmStore interface {
	alarmapp.AlarmStore
	Create(ctx context.Context, alarm *alarms.Alarm) error
	CountOpen(ctx context.Context) (int64, error)
}

// App holds the wired dashboard components.
type App struct {
	Config    *config.Config
	Logger    *zap.SugaredLogger
	Location  *time.Location
	DB        *sql.DB
	Dialect   database.Dialect
	Store     AlarmStore
	Service   *alarmapp.Service
	Dashboard *alarmapp.Dashboard
	Broker    *alarmhttp.Broker

	closers []io.Closer
}

// Option customizes New.
type Option func(*options)

type options struct {
	store AlarmStore
	clock alarmapp.Clock
}

// WithStore bypasses the configured database.
func WithStore(store AlarmStore) Option {
	return func(o *options) { o.store = store }
}

// WithClock overrides the service clock.
func WithClock(clock alarmapp.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// New opens the store and wires the services. Callers must Close the app.
func New(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger, Location: loc, Store: o.store}

	if a.Store == nil {
		if err := a.openStore(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Broker = alarmhttp.NewBroker()
	notifier, err := a.buildNotifier()
	if err != nil {
		a.Close()
		return nil, err
	}

	serviceOpts := []alarmapp.ServiceOption{
		alarmapp.WithNotifier(notifier),
		alarmapp.WithLogger(logger),
	}
	if o.clock != nil {
		serviceOpts = append(serviceOpts, alarmapp.WithClock(o.clock))
	}
	if repo := audit.NewRepository(a.DB, a.Dialect); repo != nil {
		serviceOpts = append(serviceOpts, alarmapp.WithAuditLogger(repo))
	}
	a.Service, err = alarmapp.NewService(a.Store, serviceOpts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Dashboard, err = alarmapp.NewDashboard(a.Service,
		alarmapp.WithPublisher(a.Broker),
		alarmapp.WithDashboardLogger(logger),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config
	if cfg.InMemory() {
		a.Logger.Warnw("using in-memory alarm store")
		a.Store = memory.NewAlarmRepository()
		return nil
	}

	db, dialect, err := database.Open(ctx, cfg.DatabaseConfig())
	if err != nil {
		return err
	}
	a.DB = db
	a.Dialect = dialect
	a.closers = append(a.closers, db)

	if cfg.Database.Migrate {
		if err := a.Migrate(ctx); err != nil {
			return err
		}
	}

	repo, err := sqlstore.NewAlarmRepository(db, dialect,
		sqlstore.WithTable(cfg.Database.Table),
		sqlstore.WithStatusLabels(cfg.StatusLabels),
	)
	if err != nil {
		return err
	}
	a.Store = repo
	a.Logger.Infow("alarm store ready", "driver", dialect.Name, "table", repo.Table())
	return nil
}

// Migrate creates the alarm and audit tables when missing.
func (a *App) Migrate(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	if err := sqlstore.Migrate(ctx, a.DB, a.Dialect, a.Config.Database.Table); err != nil {
		return fmt.Errorf("migrate alarm table: %w", err)
	}
	if err := audit.Migrate(ctx, a.DB, a.Dialect); err != nil {
		return fmt.Errorf("migrate audit table: %w", err)
	}
	return nil
}

func (a *App) buildNotifier() (alarmapp.AlarmNotifier, error) {
	cfg := a.Config.Notify
	multi := notify.NewMultiNotifier(a.Broker)

	var channels []notify.Channel
	if cfg.WebhookURL != "" {
		channel, err := notify.NewWebhookChannel(cfg.WebhookURL)
		if err != nil {
			return nil, fmt.Errorf("alarm webhook: %w", err)
		}
		channels = append(channels, channel)
	}
	if cfg.TelegramToken != "" {
		var tgOpts []notify.TelegramOption
		if cfg.TelegramServerURL != "" {
			tgOpts = append(tgOpts, notify.WithTelegramServerURL(cfg.TelegramServerURL))
		}
		channel, err := notify.NewTelegramChannel(cfg.TelegramToken, cfg.TelegramChatID, tgOpts...)
		if err != nil {
			return nil, fmt.Errorf("alarm telegram: %w", err)
		}
		channels = append(channels, channel)
	}
	if len(channels) > 0 {
		tpl, err := notify.NewTemplate(cfg.Template)
		if err != nil {
			return nil, fmt.Errorf("alarm template: %w", err)
		}
		for _, channel := range channels {
			notifier, err := notify.NewNotifier(channel, tpl,
				notify.WithLocation(a.Location),
				notify.WithLogger(a.Logger),
				notify.WithRequestTimeout(cfg.Timeout),
				notify.WithCooldown(cfg.Cooldown),
				notify.WithDedupeWindow(cfg.DedupeWindow),
			)
			if err != nil {
				return nil, err
			}
			multi.Add(notifier)
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("alarm kafka: %w", err)
		}
		a.closers = append(a.closers, publisher)
		multi.Add(publisher)
	}
	a.Logger.Infow("alarm notifiers configured", "count", multi.Len())
	return multi, nil
}

// Handler builds the HTTP routes with their middleware.
func (a *App) Handler() (http.Handler, error) {
	alarmHandler, err := alarmhttp.NewHandler(a.Service, a.Dashboard, a.Logger)
	if err != nil {
		return nil, err
	}
	dashboardHandler, err := alarmhttp.NewDashboardHandler(a.Dashboard, a.Logger)
	if err != nil {
		return nil, err
	}
	analysisHandler, err := alarmhttp.NewAnalysisHandler(a.Service, a.Logger)
	if err != nil {
		return nil, err
	}
	exportHandler, err := alarmhttp.NewExportHandler(a.Service, a.Location, a.Logger)
	if err != nil {
		return nil, err
	}

	var pinger apihttp.Pinger
	if a.DB != nil {
		pinger = a.DB
	}

	mux := http.NewServeMux()
	mux.Handle("/healthz", apihttp.NewHealthHandler(pinger))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/api/v1/alarms", alarmHandler)
	mux.Handle("/api/v1/alarms/", alarmHandler)
	mux.Handle("/api/v1/dashboard", dashboardHandler)
	mux.Handle("/api/v1/dashboard/stream", alarmhttp.NewStreamHandler(a.Broker, a.Dashboard))
	mux.Handle("/api/v1/dashboard/ws", alarmhttp.NewWebSocketHandler(a.Broker, a.Dashboard, a.Logger))
	mux.Handle("/api/v1/analysis", analysisHandler)
	mux.Handle("/api/v1/exports/", exportHandler)

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	var handler http.Handler = auth.NewMiddleware([]byte(a.Config.Auth.JWTSecret), policy).Wrap(mux)
	handler = apihttp.Logging(handler, a.Logger)
	handler = apihttp.Recover(handler, a.Logger)
	handler = apihttp.RequestID(handler)
	return handler, nil
}

// Serve runs the HTTP server and the dashboard refresher until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	metrics.Init(a.Store, a.Logger)

	handler, err := a.Handler()
	if err != nil {
		return err
	}

	refresher, err := alarmapp.NewRefresher(a.Dashboard, a.Config.Dashboard.RefreshInterval, a.Logger)
	if err != nil {
		return err
	}
	if err := refresher.Start(ctx); err != nil {
		return err
	}
	defer refresher.Stop()

	server := &http.Server{
		Addr:              a.Config.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Infow("http server listening", "addr", server.Addr, "refresh", refresher.Spec())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.HTTP.ShutdownTimeout)
	defer cancel()
	a.Logger.Infow("http server shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Close releases the store connection and notifier clients.
func (a *App) Close() {
	if a == nil {
		return
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.Logger.Warnw("close failed", "error", err)
		}
	}
	a.closers = nil
}
