package config

import (
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"

	"github.com/angeloszaimis/pokeapi-edge/internal/strategy"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	Environment     string        `mapstructure:"environment"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type LoggingConfig struct {
	Level     string        `mapstructure:"level"`
	AddSource bool          `mapstructure:"add_source"`
	File      LogFileConfig `mapstructure:"file"`
}

type BreakerConfig struct {
	Name              string        `mapstructure:"name"`
	MaxFailures       int           `mapstructure:"max_failures"`
	Timeout           time.Duration `mapstructure:"timeout"`
	ResetTimeout      time.Duration `mapstructure:"reset_timeout"`
	FallbackOnFailure bool          `mapstructure:"fallback_on_failure"`
}

type HealthCheckConfig struct {
	Name     string        `mapstructure:"name"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Interval time.Duration `mapstructure:"interval"`
}

type SourcesConfig struct {
	Defaults     string        `mapstructure:"defaults"`
	External     string        `mapstructure:"external"`
	ScanInterval time.Duration `mapstructure:"scan_interval"`
}

type DispatchConfig struct {
	Instances int    `mapstructure:"instances"`
	Strategy  string `mapstructure:"strategy"`
}

type MetricsConfig struct {
	BufferSize     int           `mapstructure:"buffer_size"`
	ReportInterval time.Duration `mapstructure:"report_interval"`
}

type UpstreamConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Breaker     BreakerConfig     `mapstructure:"breaker"`
	HealthCheck HealthCheckConfig `mapstructure:"health_check"`
	Sources     SourcesConfig     `mapstructure:"sources"`
	Dispatch    DispatchConfig    `mapstructure:"dispatch"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Upstream    UpstreamConfig    `mapstructure:"upstream"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "5s")

	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.file.path", "")
	v.SetDefault("logging.file.max_size_mb", 100)
	v.SetDefault("logging.file.max_backups", 3)
	v.SetDefault("logging.file.max_age_days", 28)
	v.SetDefault("logging.file.compress", false)

	v.SetDefault("breaker.name", "pokeapi")
	v.SetDefault("breaker.max_failures", 3)
	v.SetDefault("breaker.timeout", "1s")
	v.SetDefault("breaker.reset_timeout", "60s")
	v.SetDefault("breaker.fallback_on_failure", true)

	v.SetDefault("health_check.name", "pokeApiHealthcheck")
	v.SetDefault("health_check.timeout", "1s")
	v.SetDefault("health_check.interval", "5s")

	v.SetDefault("sources.defaults", "config/default.properties")
	v.SetDefault("sources.external", "/etc/default/demo")
	v.SetDefault("sources.scan_interval", "5s")

	v.SetDefault("dispatch.instances", 0)
	v.SetDefault("dispatch.strategy", strategy.RoundRobin)

	v.SetDefault("metrics.buffer_size", 1000)
	v.SetDefault("metrics.report_interval", "60s")

	v.SetDefault("upstream.timeout", "5s")
}

// Load reads path, or config.yaml from ./config or the working directory
// when path is empty. Environment variables override file values using the
// upper-cased key with dots replaced by underscores, e.g. SERVER_ADDRESS.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Info("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server),
		validation.Field(&c.Logging),
		validation.Field(&c.Breaker),
		validation.Field(&c.HealthCheck),
		validation.Field(&c.Sources),
		validation.Field(&c.Dispatch),
		validation.Field(&c.Metrics),
		validation.Field(&c.Upstream),
	)
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Environment,
			validation.Required,
			validation.In(EnvDev, EnvStaging, EnvProd),
		),
		validation.Field(&s.Address,
			validation.Required,
			validation.By(validateHostPort),
		),
		validation.Field(&s.ReadTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&s.WriteTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&s.IdleTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&s.ShutdownTimeout, validation.Required, validation.Min(time.Millisecond)),
	)
}

func (l LoggingConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level,
			validation.Required,
			validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
		),
		validation.Field(&l.File),
	)
}

func (f LogFileConfig) Validate() error {
	enabled := f.Path != ""
	return validation.ValidateStruct(&f,
		validation.Field(&f.MaxSizeMB, validation.When(enabled, validation.Required, validation.Min(1))),
		validation.Field(&f.MaxBackups, validation.Min(0)),
		validation.Field(&f.MaxAgeDays, validation.Min(0)),
	)
}

func (b BreakerConfig) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Name, validation.Required),
		validation.Field(&b.MaxFailures, validation.Required, validation.Min(1)),
		validation.Field(&b.Timeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&b.ResetTimeout, validation.Required, validation.Min(time.Millisecond)),
	)
}

func (h HealthCheckConfig) Validate() error {
	return validation.ValidateStruct(&h,
		validation.Field(&h.Name, validation.Required),
		validation.Field(&h.Timeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&h.Interval, validation.Required, validation.Min(time.Second)),
	)
}

func (s SourcesConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Defaults, validation.Required),
		validation.Field(&s.ScanInterval, validation.Required, validation.Min(time.Second)),
	)
}

func (d DispatchConfig) Validate() error {
	names := make([]interface{}, len(strategy.Names))
	for i, name := range strategy.Names {
		names[i] = name
	}

	return validation.ValidateStruct(&d,
		validation.Field(&d.Instances, validation.Min(0)),
		validation.Field(&d.Strategy, validation.Required, validation.In(names...)),
	)
}

func (m MetricsConfig) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.BufferSize, validation.Required, validation.Min(1)),
		validation.Field(&m.ReportInterval, validation.Required, validation.Min(time.Second)),
	)
}

func (u UpstreamConfig) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.Timeout, validation.Required, validation.Min(time.Millisecond)),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}
