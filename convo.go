package convo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/appsail/convo/internal/config"
	"github.com/appsail/convo/internal/flows"
	"github.com/appsail/convo/internal/logging"
	"github.com/appsail/convo/internal/runtime"
	"github.com/appsail/convo/pkg/adapters/dynamodb"
	convohttp "github.com/appsail/convo/pkg/adapters/http"
	"github.com/appsail/convo/pkg/adapters/memory"
	"github.com/appsail/convo/pkg/adapters/postgres"
	"github.com/appsail/convo/pkg/adapters/redis"
	"github.com/appsail/convo/pkg/adapters/sqlite"
	"github.com/appsail/convo/pkg/adapters/webhook"
	"github.com/appsail/convo/pkg/observability"
	"github.com/appsail/convo/pkg/persistence/middleware"
	"github.com/appsail/convo/pkg/ports"
	"github.com/appsail/convo/pkg/runner"
	"github.com/appsail/convo/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version is stamped at build time with -ldflags "-X github.com/appsail/convo.Version=...".
var Version = "0.1.0-dev"

// App holds every component built from a configuration.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Engine   *runtime.Engine
	States   ports.StateStore
	Records  ports.RecordStore
	Sender   ports.Sender
	Sessions *session.Manager
	Runner   *runner.Runner
	Registry *prometheus.Registry

	closers []func() error
}

// Option overrides a component New would otherwise build from the configuration.
type Option func(*App)

// WithLogger sets the application logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.Logger = logger
	}
}

// WithSender replaces the webhook client, e.g. with a webhook.Recorder.
func WithSender(s ports.Sender) Option {
	return func(a *App) {
		a.Sender = s
	}
}

// WithStateStore replaces the configured state backend.
func WithStateStore(s ports.StateStore) Option {
	return func(a *App) {
		a.States = s
	}
}

// WithRecordStore replaces the configured record backend.
func WithRecordStore(r ports.RecordStore) Option {
	return func(a *App) {
		a.Records = r
	}
}

// New wires stores, delivery, flows, metrics and the runner from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	a := &App{Config: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.Logger == nil {
		level, err := logging.ParseLevel(cfg.Logging.Level)
		if err != nil {
			return nil, err
		}
		a.Logger = logging.New(level, cfg.Logging.Format)
	}

	if err := a.build(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config

	all, err := flows.All(cfg.FlowConfig())
	if err != nil {
		return fmt.Errorf("building flows: %w", err)
	}
	a.Engine, err = runtime.NewEngine(all, runtime.WithLogger(a.Logger))
	if err != nil {
		return err
	}

	if a.States == nil {
		if a.States, err = a.openStates(ctx); err != nil {
			return err
		}
	}
	if a.Records == nil {
		if a.Records, err = a.openRecords(ctx); err != nil {
			return err
		}
	}
	if a.Sender == nil {
		a.Sender = a.newSender()
	}

	a.Sessions = session.NewManager(a.States, session.WithLogger(a.Logger))

	hooks := observability.LogHooks(a.Logger)
	if cfg.Metrics.Enabled {
		a.Registry = prometheus.NewRegistry()
		a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics, err := observability.NewMetrics(a.Registry)
		if err != nil {
			return err
		}
		hooks = observability.Merge(hooks, metrics.Hooks())
	}

	runnerOpts := []runner.Option{
		runner.WithRecords(a.Records),
		runner.WithLogger(a.Logger),
		runner.WithHooks(hooks),
		runner.WithOptimisticWrites(cfg.State.OptimisticWrites),
		runner.WithMaxInputSize(cfg.Server.MaxInputSize),
	}
	if cfg.Server.SerializeTurns {
		runnerOpts = append(runnerOpts, runner.WithSessionManager(a.Sessions))
	}
	a.Runner, err = runner.New(a.Engine, a.States, a.Sender, runnerOpts...)
	return err
}

func (a *App) openStates(ctx context.Context) (ports.StateStore, error) {
	cfg := a.Config.State
	var store ports.StateStore

	switch cfg.Backend {
	case config.BackendMemory:
		store = memory.NewStore(memory.WithTTL(cfg.TTL), memory.WithExtendOnWrite(cfg.ExtendOnWrite))
	case config.BackendRedis:
		rs := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithTTL(cfg.TTL),
			redis.WithPrefix(cfg.Prefix),
			redis.WithExtendOnWrite(cfg.ExtendOnWrite))
		a.closers = append(a.closers, rs.Close)
		store = rs
	case config.BackendDynamoDB:
		ds, err := dynamodb.Open(ctx, cfg.DynamoDB.Table, cfg.DynamoDB.Region,
			dynamodb.WithTTL(cfg.TTL),
			dynamodb.WithExtendOnWrite(cfg.ExtendOnWrite))
		if err != nil {
			return nil, err
		}
		store = ds
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.Backend)
	}

	if cfg.Encryption.ActiveKey == "" {
		return store, nil
	}
	active, err := middleware.DecodeKey(cfg.Encryption.ActiveKey)
	if err != nil {
		return nil, err
	}
	enc := middleware.EncryptionConfig{ActiveKey: active}
	for _, k := range cfg.Encryption.FallbackKeys {
		key, err := middleware.DecodeKey(k)
		if err != nil {
			return nil, fmt.Errorf("fallback key: %w", err)
		}
		enc.FallbackKeys = append(enc.FallbackKeys, key)
	}
	a.Logger.Info("state encryption enabled", "fallback_keys", len(enc.FallbackKeys))
	return middleware.Chain(store, middleware.NewEncryptionMiddleware(enc)), nil
}

func (a *App) openRecords(ctx context.Context) (ports.RecordStore, error) {
	cfg := a.Config.Records

	switch cfg.Backend {
	case config.BackendMemory:
		return memory.NewRecords(), nil
	case config.BackendSQLite:
		r, err := sqlite.Open(cfg.SQLite.Path, a.Logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, r.Close)
		return r, nil
	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})
		r := postgres.NewRecords(pool)
		if err := r.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown records backend %q", cfg.Backend)
	}
}

func (a *App) newSender() ports.Sender {
	opts := []webhook.Option{
		webhook.WithHTTPClient(&http.Client{Timeout: a.Config.Delivery.Timeout}),
		webhook.WithLogger(a.Logger),
	}
	for flow, targets := range a.Config.FlowTargets() {
		opts = append(opts, webhook.WithFlowTargets(flow, targets))
	}
	return webhook.NewClient(a.Config.Delivery.Targets, opts...)
}

// Handler returns the webhook router.
func (a *App) Handler() http.Handler {
	opts := []convohttp.Option{
		convohttp.WithLogger(a.Logger),
		convohttp.WithMaxBodySize(a.Config.Server.MaxBodySize),
	}
	if a.Registry != nil {
		opts = append(opts,
			convohttp.WithMetrics(promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})),
			convohttp.WithMetricsPath(a.Config.Metrics.Path))
	}
	return convohttp.NewHandler(a.Runner, opts...)
}

// Close releases backend connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
