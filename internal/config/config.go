package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"flocktwin/internal/alerts"
	"flocktwin/internal/projection"
)

// EnvPrefix prefixes every environment override, e.g. FLOCKTWIN_HTTP_ADDR
const EnvPrefix = "FLOCKTWIN"

// Config holds runtime configuration for the service.
type Config struct {
	Log        LogConfig         `mapstructure:"log"`
	HTTP       HTTPConfig        `mapstructure:"http"`
	Monitor    MonitorConfig     `mapstructure:"monitor"`
	Alerts     alerts.Thresholds `mapstructure:"alerts"`
	Projection ProjectionConfig  `mapstructure:"projection"`
	Kafka      KafkaConfig       `mapstructure:"kafka"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// MonitorConfig controls the simulated monitoring loop
type MonitorConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Seed     int64         `mapstructure:"seed"` // 0 seeds from the clock
}

type ProjectionConfig struct {
	Days  int                    `mapstructure:"days"`
	Seed  int64                  `mapstructure:"seed"` // 0 seeds from the clock
	Model projection.GrowthModel `mapstructure:"model"`
}

// KafkaConfig enables the Kafka notice sink when Brokers is non-empty
type KafkaConfig struct {
	Brokers   []string       `mapstructure:"brokers"`
	Topic     string         `mapstructure:"topic"`
	Workers   int            `mapstructure:"workers"`
	QueueSize int            `mapstructure:"queue_size"`
	Producer  ProducerConfig `mapstructure:"producer"`
}

// Enabled reports whether a Kafka sink should be started
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type ProducerConfig struct {
	PoolSize     int           `mapstructure:"pool_size"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RequiredAcks int           `mapstructure:"required_acks"`
	Compression  string        `mapstructure:"compression"` // none, gzip, snappy, lz4, zstd
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// Default returns a sensible default config for local dev.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "json"},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Monitor: MonitorConfig{Enabled: true, Interval: 10 * time.Second},
		Alerts:  alerts.DefaultThresholds(),
		Projection: ProjectionConfig{
			Days:  projection.DefaultDays,
			Model: projection.DefaultGrowthModel(),
		},
		Kafka: KafkaConfig{
			Topic:     "flocktwin.alerts",
			Workers:   1,
			QueueSize: 256,
			Producer: ProducerConfig{
				PoolSize:     2,
				BatchSize:    50,
				BatchTimeout: 100 * time.Millisecond,
				WriteTimeout: 10 * time.Second,
				RequiredAcks: 1,
				Compression:  "snappy",
				MaxRetries:   3,
				RetryBackoff: 100 * time.Millisecond,
			},
		},
	}
}

// Load reads configuration from defaults, an optional .env file, the YAML file
// at path (flocktwin.yaml in the working directory when path is empty) and
// FLOCKTWIN_* environment variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("flocktwin")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Monitor.Enabled && c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive, got %s", c.Monitor.Interval)
	}
	if c.Projection.Days < 7 {
		return fmt.Errorf("projection.days must be at least 7, got %d", c.Projection.Days)
	}
	if err := c.Projection.Model.Validate(); err != nil {
		return fmt.Errorf("projection.model: %w", err)
	}
	if err := c.Alerts.Validate(); err != nil {
		return fmt.Errorf("alerts: %w", err)
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		return errors.New("kafka.topic is required when brokers are set")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// setDefaults registers every key so environment overrides reach Unmarshal
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.read_timeout", d.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", d.HTTP.WriteTimeout)
	v.SetDefault("http.idle_timeout", d.HTTP.IdleTimeout)
	v.SetDefault("http.shutdown_timeout", d.HTTP.ShutdownTimeout)

	v.SetDefault("monitor.enabled", d.Monitor.Enabled)
	v.SetDefault("monitor.interval", d.Monitor.Interval)
	v.SetDefault("monitor.seed", d.Monitor.Seed)

	t := d.Alerts
	v.SetDefault("alerts.temperature_high", t.TemperatureHigh)
	v.SetDefault("alerts.temperature_critical", t.TemperatureCritical)
	v.SetDefault("alerts.temperature_low", t.TemperatureLow)
	v.SetDefault("alerts.temperature_freezing", t.TemperatureFreezing)
	v.SetDefault("alerts.mortality_factor", t.MortalityFactor)
	v.SetDefault("alerts.mortality_critical", t.MortalityCritical)
	v.SetDefault("alerts.feed_deviation", t.FeedDeviation)
	v.SetDefault("alerts.feed_high", t.FeedHigh)
	v.SetDefault("alerts.water_deviation", t.WaterDeviation)
	v.SetDefault("alerts.water_high", t.WaterHigh)
	v.SetDefault("alerts.growth_deviation", t.GrowthDeviation)
	v.SetDefault("alerts.growth_high", t.GrowthHigh)

	v.SetDefault("projection.days", d.Projection.Days)
	v.SetDefault("projection.seed", d.Projection.Seed)
	v.SetDefault("projection.model.max_weight", d.Projection.Model.MaxWeight)
	v.SetDefault("projection.model.growth_rate", d.Projection.Model.GrowthRate)
	v.SetDefault("projection.model.midpoint", d.Projection.Model.Midpoint)

	k := d.Kafka
	v.SetDefault("kafka.brokers", k.Brokers)
	v.SetDefault("kafka.topic", k.Topic)
	v.SetDefault("kafka.workers", k.Workers)
	v.SetDefault("kafka.queue_size", k.QueueSize)
	v.SetDefault("kafka.producer.pool_size", k.Producer.PoolSize)
	v.SetDefault("kafka.producer.batch_size", k.Producer.BatchSize)
	v.SetDefault("kafka.producer.batch_timeout", k.Producer.BatchTimeout)
	v.SetDefault("kafka.producer.write_timeout", k.Producer.WriteTimeout)
	v.SetDefault("kafka.producer.required_acks", k.Producer.RequiredAcks)
	v.SetDefault("kafka.producer.compression", k.Producer.Compression)
	v.SetDefault("kafka.producer.max_retries", k.Producer.MaxRetries)
	v.SetDefault("kafka.producer.retry_backoff", k.Producer.RetryBackoff)
}
