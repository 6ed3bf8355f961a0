package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/appsail/convo/internal/flows"
	"github.com/appsail/convo/internal/flows/reminder"
	"github.com/appsail/convo/internal/flows/scripted"
	"github.com/appsail/convo/internal/flows/wallet"
	"github.com/appsail/convo/pkg/adapters/webhook"
	"github.com/appsail/convo/pkg/domain"
	"github.com/appsail/convo/pkg/ports"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CONVO_"

// Backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config is the complete runtime configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	State    StateConfig    `mapstructure:"state"`
	Records  RecordsConfig  `mapstructure:"records"`
	Delivery DeliveryConfig `mapstructure:"delivery"`
	Flows    FlowsConfig    `mapstructure:"flows"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	MaxInputSize    int           `mapstructure:"max_input_size"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	SerializeTurns  bool          `mapstructure:"serialize_turns"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StateConfig struct {
	Backend          string           `mapstructure:"backend"`
	TTL              time.Duration    `mapstructure:"ttl"`
	ExtendOnWrite    bool             `mapstructure:"extend_on_write"`
	OptimisticWrites bool             `mapstructure:"optimistic_writes"`
	Prefix           string           `mapstructure:"prefix"`
	Redis            RedisConfig      `mapstructure:"redis"`
	DynamoDB         DynamoDBConfig   `mapstructure:"dynamodb"`
	Encryption       EncryptionConfig `mapstructure:"encryption"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DynamoDBConfig struct {
	Table  string `mapstructure:"table"`
	Region string `mapstructure:"region"`
}

// EncryptionConfig holds base64 encoded AES-256 keys. An empty active key disables encryption.
type EncryptionConfig struct {
	ActiveKey    string   `mapstructure:"active_key"`
	FallbackKeys []string `mapstructure:"fallback_keys"`
}

type RecordsConfig struct {
	Backend  string         `mapstructure:"backend"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type DeliveryConfig struct {
	Timeout time.Duration   `mapstructure:"timeout"`
	Targets webhook.Targets `mapstructure:"targets"`
}

type FlowsConfig struct {
	Scripted ScriptedConfig `mapstructure:"scripted"`
	Reminder ReminderConfig `mapstructure:"reminder"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
}

type ScriptedConfig struct {
	Rate     float64             `mapstructure:"rate"`
	Script   []scripted.Question `mapstructure:"script"`
	Delivery webhook.Targets     `mapstructure:"delivery"`
}

type ReminderConfig struct {
	DefaultAmount  domain.Money          `mapstructure:"default_amount"`
	PaymentGateway domain.PaymentGateway `mapstructure:"payment_gateway"`
	Delivery       webhook.Targets       `mapstructure:"delivery"`
}

type WalletConfig struct {
	StoreName       string                `mapstructure:"store_name"`
	RechargeUnits   []domain.Money        `mapstructure:"recharge_units"`
	TopUpMultiplier int64                 `mapstructure:"topup_multiplier"`
	PaymentGateway  domain.PaymentGateway `mapstructure:"payment_gateway"`
	Catalog         wallet.CatalogConfig  `mapstructure:"catalog"`
	Delivery        webhook.Targets       `mapstructure:"delivery"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			MaxBodySize:     1 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		State: StateConfig{
			Backend:       BackendMemory,
			TTL:           24 * time.Hour,
			ExtendOnWrite: true,
			Prefix:        "convo:state:",
		},
		Records:  RecordsConfig{Backend: BackendMemory},
		Delivery: DeliveryConfig{Timeout: webhook.DefaultTimeout},
		Metrics:  MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// Load reads the YAML file at path over the defaults, applies CONVO_*
// environment overrides and validates the result. An empty path skips the file.
// Environment variables in the format ${VAR_NAME} are expanded in the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := cfg.merge([]byte(expandEnvVars(string(data)))); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Parse decodes raw YAML over the defaults without touching the environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.merge(data); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) merge(data []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           c,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			moneyHook,
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	return nil
}

var moneyType = reflect.TypeOf(domain.Money(0))

// moneyHook reads amounts written in major units ("90", 100.5, "₹5000").
func moneyHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != moneyType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return domain.ParseMoney(v)
	case int:
		return domain.Units(int64(v)), nil
	case int64:
		return domain.Units(v), nil
	case float64:
		return domain.FromFloat(v), nil
	default:
		return data, nil
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyEnv overlays the CONVO_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	var errs []error
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("ADDR", &c.Server.Addr)
	integer("MAX_INPUT_SIZE", &c.Server.MaxInputSize)
	boolean("SERIALIZE_TURNS", &c.Server.SerializeTurns)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)

	str("STATE_BACKEND", &c.State.Backend)
	duration("STATE_TTL", &c.State.TTL)
	boolean("OPTIMISTIC_WRITES", &c.State.OptimisticWrites)
	str("REDIS_ADDR", &c.State.Redis.Addr)
	str("REDIS_PASSWORD", &c.State.Redis.Password)
	integer("REDIS_DB", &c.State.Redis.DB)
	str("DYNAMODB_TABLE", &c.State.DynamoDB.Table)
	str("DYNAMODB_REGION", &c.State.DynamoDB.Region)
	str("ENCRYPTION_KEY", &c.State.Encryption.ActiveKey)

	str("RECORDS_BACKEND", &c.Records.Backend)
	str("SQLITE_PATH", &c.Records.SQLite.Path)
	str("POSTGRES_DSN", &c.Records.Postgres.DSN)

	boolean("METRICS_ENABLED", &c.Metrics.Enabled)

	for _, mode := range []ports.Mode{ports.ModeProduction, ports.ModeDevelopment, ports.ModeLocal} {
		name := "WEBHOOK_" + strings.ToUpper(string(mode))
		if v, ok := lookup(EnvPrefix + name); ok {
			if c.Delivery.Targets == nil {
				c.Delivery.Targets = webhook.Targets{}
			}
			t := c.Delivery.Targets[mode]
			t.Endpoint = v
			c.Delivery.Targets[mode] = t
		}
	}

	return errors.Join(errs...)
}

// Validate checks backend names and the settings each backend needs.
func (c *Config) Validate() error {
	switch c.State.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.State.Redis.Addr == "" {
			return errors.New("state.redis.addr is required for the redis backend")
		}
	case BackendDynamoDB:
		if c.State.DynamoDB.Table == "" {
			return errors.New("state.dynamodb.table is required for the dynamodb backend")
		}
	default:
		return fmt.Errorf("unknown state.backend %q", c.State.Backend)
	}
	if c.State.TTL < 0 {
		return errors.New("state.ttl must not be negative")
	}

	switch c.Records.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Records.SQLite.Path == "" {
			return errors.New("records.sqlite.path is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Records.Postgres.DSN == "" {
			return errors.New("records.postgres.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown records.backend %q", c.Records.Backend)
	}

	if err := validTargets("delivery.targets", c.Delivery.Targets); err != nil {
		return err
	}
	for name, t := range map[string]webhook.Targets{
		"flows.scripted.delivery": c.Flows.Scripted.Delivery,
		"flows.reminder.delivery": c.Flows.Reminder.Delivery,
		"flows.wallet.delivery":   c.Flows.Wallet.Delivery,
	} {
		if err := validTargets(name, t); err != nil {
			return err
		}
	}

	if c.Flows.Scripted.Rate < 0 {
		return errors.New("flows.scripted.rate must not be negative")
	}
	if c.Flows.Wallet.TopUpMultiplier < 0 {
		return errors.New("flows.wallet.topup_multiplier must not be negative")
	}
	return nil
}

func validTargets(section string, targets webhook.Targets) error {
	for mode, t := range targets {
		if _, err := ports.ParseMode(string(mode)); err != nil {
			return fmt.Errorf("%s: %w", section, err)
		}
		if t.Endpoint == "" {
			return fmt.Errorf("%s.%s.endpoint is required", section, mode)
		}
	}
	return nil
}

// ValidateDelivery checks that every flow has a production delivery target,
// either its own or the default. Servers call it at startup; commands that
// never send through the webhook client do not need targets.
func (c *Config) ValidateDelivery() error {
	flowTargets := c.FlowTargets()
	var missing []string
	for _, flow := range []domain.FlowName{domain.FlowScripted, domain.FlowReminder, domain.FlowWallet} {
		if t, ok := flowTargets[flow][ports.ModeProduction]; ok && t.Endpoint != "" {
			continue
		}
		if t, ok := c.Delivery.Targets[ports.ModeProduction]; ok && t.Endpoint != "" {
			continue
		}
		missing = append(missing, string(flow))
	}
	if len(missing) > 0 {
		return fmt.Errorf("no production delivery target for flows: %s (set delivery.targets.production or flows.<flow>.delivery.production)", strings.Join(missing, ", "))
	}
	return nil
}

// FlowConfig converts the flow sections for flows.All.
func (c *Config) FlowConfig() flows.Config {
	return flows.Config{
		Scripted: scripted.Config{
			Rate:   c.Flows.Scripted.Rate,
			Script: c.Flows.Scripted.Script,
		},
		Reminder: reminder.Config{
			DefaultAmount: c.Flows.Reminder.DefaultAmount,
			Gateway:       c.Flows.Reminder.PaymentGateway,
		},
		Wallet: wallet.Config{
			StoreName:     c.Flows.Wallet.StoreName,
			RechargeUnits: c.Flows.Wallet.RechargeUnits,
			Multiplier:    c.Flows.Wallet.TopUpMultiplier,
			Gateway:       c.Flows.Wallet.PaymentGateway,
			Catalog:       c.Flows.Wallet.Catalog,
		},
	}
}

// FlowTargets lists the per-flow delivery overrides.
func (c *Config) FlowTargets() map[domain.FlowName]webhook.Targets {
	out := make(map[domain.FlowName]webhook.Targets)
	for flow, t := range map[domain.FlowName]webhook.Targets{
		domain.FlowScripted: c.Flows.Scripted.Delivery,
		domain.FlowReminder: c.Flows.Reminder.Delivery,
		domain.FlowWallet:   c.Flows.Wallet.Delivery,
	} {
		if len(t) > 0 {
			out[flow] = t
		}
	}
	return out
}
