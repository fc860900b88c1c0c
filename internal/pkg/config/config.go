package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/samirrijal/flightmap/internal/core/domain"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Geocoder  GeocoderConfig  `mapstructure:"geocoder"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Viewport  ViewportConfig  `mapstructure:"viewport"`
	Animation AnimationConfig `mapstructure:"animation"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr      string `mapstructure:"addr"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	Exporter    string `mapstructure:"exporter"`
	Endpoint    string `mapstructure:"endpoint"`
	Enabled     bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// StaticPlace is a fixed coordinate for the static geocoder table.
type StaticPlace struct {
	Lat float64 `mapstructure:"lat"`
	Lon float64 `mapstructure:"lon"`
}

type GeocoderConfig struct {
	// Provider is "nominatim", "static" or "chain" (static first, then nominatim).
	Provider       string                 `mapstructure:"provider"`
	BaseURL        string                 `mapstructure:"base_url"`
	UserAgent      string                 `mapstructure:"user_agent"`
	Timeout        time.Duration          `mapstructure:"timeout"`
	MaxRetries     int                    `mapstructure:"max_retries"`
	RequestsPerSec float64                `mapstructure:"requests_per_sec"`
	CacheTTL       time.Duration          `mapstructure:"cache_ttl"`
	Static         map[string]StaticPlace `mapstructure:"static"`
}

// StaticPoints converts the static table for the geocoding provider.
func (g GeocoderConfig) StaticPoints() map[string]domain.GeoPoint {
	m := make(map[string]domain.GeoPoint, len(g.Static))
	for name, p := range g.Static {
		m[name] = domain.GeoPoint{Lat: p.Lat, Lon: p.Lon}
	}
	return m
}

type ResolverConfig struct {
	MaxConcurrency int `mapstructure:"max_concurrency"`
}

type ViewportConfig struct {
	Padding float64 `mapstructure:"padding"`
}

type AnimationConfig struct {
	Speed         float64       `mapstructure:"speed"`
	FrameInterval time.Duration `mapstructure:"frame_interval"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.enabled", true)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "flightmap")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "flightmap")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.key_prefix", "flightmap")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.exporter", "otlp")
	v.SetDefault("telemetry.endpoint", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "flightmap-route-sync")
	v.SetDefault("geocoder.provider", "nominatim")
	v.SetDefault("geocoder.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.user_agent", "flightmap/1.0")
	v.SetDefault("geocoder.timeout", 10*time.Second)
	v.SetDefault("geocoder.max_retries", 2)
	v.SetDefault("geocoder.requests_per_sec", 1.0)
	v.SetDefault("geocoder.cache_ttl", 7*24*time.Hour)
	v.SetDefault("resolver.max_concurrency", 8)
	v.SetDefault("viewport.padding", 0.1)
	v.SetDefault("animation.speed", 0.002)
	v.SetDefault("animation.frame_interval", 50*time.Millisecond)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: FLIGHTMAP_GEOCODER_BASE_URL → geocoder.base_url
	v.SetEnvPrefix("FLIGHTMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Database.Enabled {
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	switch c.Telemetry.Exporter {
	case "otlp", "stdout":
	default:
		errs = append(errs, fmt.Sprintf("telemetry.exporter must be otlp or stdout, got %q", c.Telemetry.Exporter))
	}

	switch c.Geocoder.Provider {
	case "nominatim", "chain":
		if c.Geocoder.BaseURL == "" {
			errs = append(errs, "geocoder.base_url is required")
		}
		if c.Geocoder.UserAgent == "" {
			errs = append(errs, "geocoder.user_agent is required by the Nominatim usage policy")
		}
	case "static":
		if len(c.Geocoder.Static) == 0 {
			errs = append(errs, "geocoder.static must list at least one place")
		}
	default:
		errs = append(errs, fmt.Sprintf("geocoder.provider must be nominatim, static or chain, got %q", c.Geocoder.Provider))
	}
	if c.Geocoder.Timeout <= 0 {
		errs = append(errs, "geocoder.timeout must be positive")
	}
	if c.Geocoder.MaxRetries < 0 {
		errs = append(errs, "geocoder.max_retries must not be negative")
	}
	for name, p := range c.Geocoder.Static {
		if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
			errs = append(errs, fmt.Sprintf("geocoder.static.%s has out-of-range coordinates", name))
		}
	}
	if c.Resolver.MaxConcurrency <= 0 {
		errs = append(errs, "resolver.max_concurrency must be positive")
	}
	if c.Viewport.Padding < 0 || math.IsNaN(c.Viewport.Padding) {
		errs = append(errs, "viewport.padding must not be negative")
	}
	if c.Animation.Speed <= 0 || c.Animation.Speed >= 1 {
		errs = append(errs, fmt.Sprintf("animation.speed must be in (0, 1), got %v", c.Animation.Speed))
	}
	if c.Animation.FrameInterval <= 0 {
		errs = append(errs, "animation.frame_interval must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
