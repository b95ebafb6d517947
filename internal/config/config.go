package config

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"rubswatch/internal/allocation"
	"rubswatch/internal/anomaly"
	"rubswatch/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Allocation AllocationConfig `mapstructure:"allocation"`
	Anomaly    AnomalyConfig    `mapstructure:"anomaly"`
	Alerting   AlertingConfig   `mapstructure:"alerting"`
	Export     ExportConfig     `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs the monitoring cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToStart    bool          `mapstructure:"align_to_start"`
	RunImmediately  bool          `mapstructure:"run_immediately"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// AllocationConfig sets R.U.B.S. weights and rounding policy.
type AllocationConfig struct {
	SqftWeight     float64 `mapstructure:"sqft_weight"`
	OccupantWeight float64 `mapstructure:"occupant_weight"`
	Reconciliation string  `mapstructure:"reconciliation"`
	Currency       string  `mapstructure:"currency"`
	MinorExponent  int32   `mapstructure:"minor_exponent"`
}

// AnomalyConfig tunes baseline detection.
type AnomalyConfig struct {
	BaselineWindow   int                `mapstructure:"baseline_window"`
	StdDevMultiplier float64            `mapstructure:"stddev_multiplier"`
	Workers          int                `mapstructure:"workers"`
	CostPerUnit      map[string]float64 `mapstructure:"cost_per_unit"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Channels    []string       `mapstructure:"channels"`
	LinkBaseURL string         `mapstructure:"link_base_url"`
	Telegram    TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram channel.
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	ChartWidth  int `mapstructure:"chart_width"`
	ChartHeight int `mapstructure:"chart_height"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RUBSWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "rubswatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("scheduler.interval", "24h")
	v.SetDefault("scheduler.align_to_start", true)
	v.SetDefault("scheduler.run_immediately", false)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x72756273))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("allocation.sqft_weight", 0.6)
	v.SetDefault("allocation.occupant_weight", 0.4)
	v.SetDefault("allocation.reconciliation", allocation.StrategyCyclic)
	v.SetDefault("allocation.currency", "USD")
	v.SetDefault("allocation.minor_exponent", 2)

	defaults := anomaly.DefaultConfig()
	v.SetDefault("anomaly.baseline_window", defaults.BaselineWindow)
	v.SetDefault("anomaly.stddev_multiplier", defaults.StdDevMultiplier)
	v.SetDefault("anomaly.workers", 0)
	prices := make(map[string]float64, len(defaults.CostPerUnit))
	for utility, price := range defaults.CostPerUnit {
		prices[string(utility)] = price.InexactFloat64()
	}
	v.SetDefault("anomaly.cost_per_unit", prices)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.link_base_url", "")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("export.chart_width", 1280)
	v.SetDefault("export.chart_height", 720)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Allocation.SqftWeight < 0 || c.Allocation.OccupantWeight < 0 {
		return fmt.Errorf("allocation weights cannot be negative")
	}
	if math.Abs(c.Allocation.SqftWeight+c.Allocation.OccupantWeight-1) > 1e-9 {
		return fmt.Errorf("allocation.sqft_weight and allocation.occupant_weight must sum to 1")
	}
	if _, err := allocation.ReconcilerByName(c.Allocation.Reconciliation); err != nil {
		return fmt.Errorf("allocation.reconciliation: %w", err)
	}
	if c.Allocation.MinorExponent < 0 {
		return fmt.Errorf("allocation.minor_exponent cannot be negative")
	}
	if c.Anomaly.BaselineWindow < 1 {
		return fmt.Errorf("anomaly.baseline_window must be at least 1")
	}
	if c.Anomaly.StdDevMultiplier <= 0 {
		return fmt.Errorf("anomaly.stddev_multiplier must be greater than zero")
	}
	for name, price := range c.Anomaly.CostPerUnit {
		if _, err := anomaly.ParseUtilityType(name); err != nil {
			return fmt.Errorf("anomaly.cost_per_unit: %w", err)
		}
		if price < 0 {
			return fmt.Errorf("anomaly.cost_per_unit.%s cannot be negative", name)
		}
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// Weights converts the configured weights for the allocation engine.
func (c AllocationConfig) Weights() allocation.Weights {
	return allocation.Weights{
		SquareFootage: decimal.NewFromFloat(c.SqftWeight),
		Occupancy:     decimal.NewFromFloat(c.OccupantWeight),
	}
}

// DetectorConfig converts the anomaly section for the batch detector.
func (c AnomalyConfig) DetectorConfig() anomaly.Config {
	prices := make(map[anomaly.UtilityType]decimal.Decimal, len(c.CostPerUnit))
	// sorted so the canonical "electricity" key wins over the "electric" alias
	for _, name := range slices.Sorted(maps.Keys(c.CostPerUnit)) {
		utility, err := anomaly.ParseUtilityType(name)
		if err != nil {
			continue
		}
		prices[utility] = decimal.NewFromFloat(c.CostPerUnit[name])
	}
	return anomaly.Config{
		BaselineWindow:   c.BaselineWindow,
		StdDevMultiplier: c.StdDevMultiplier,
		CostPerUnit:      prices,
		Workers:          c.Workers,
	}
}
