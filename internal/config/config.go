package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Twin        TwinConfig        `mapstructure:"twin"`
	Simulation  SimulationConfig  `mapstructure:"simulation"`
	Risk        RiskConfig        `mapstructure:"risk"`
	Cascade     CascadeConfig     `mapstructure:"cascade"`
	Threat      ThreatConfig      `mapstructure:"threat"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	NATS        NATSConfig        `mapstructure:"nats"`
	GraphMirror GraphMirrorConfig `mapstructure:"graph_mirror"`
	CORS        CORSConfig        `mapstructure:"cors"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	Logger      LoggerConfig      `mapstructure:"logger"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
	Debug       bool   `mapstructure:"debug"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	HTTPPort        int           `mapstructure:"http_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// TwinConfig controls how the digital twin graph is built
type TwinConfig struct {
	NodeCount int   `mapstructure:"node_count"`
	Seed      int64 `mapstructure:"seed"`
}

// SimulationConfig controls the orchestrator tick loop
type SimulationConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	AutoStart    bool          `mapstructure:"auto_start"`
}

// RiskConfig holds the composite scoring weights and thresholds.
// Weights must sum to 1.0; Validate enforces it.
type RiskConfig struct {
	PhysicalWeight      float64 `mapstructure:"physical_weight"`
	CyberWeight         float64 `mapstructure:"cyber_weight"`
	OperationalWeight   float64 `mapstructure:"operational_weight"`
	EnvironmentalWeight float64 `mapstructure:"environmental_weight"`
	CascadingWeight     float64 `mapstructure:"cascading_weight"`

	PredictionThreshold float64       `mapstructure:"prediction_threshold"`
	PredictionHorizon   time.Duration `mapstructure:"prediction_horizon"`
}

// CascadeConfig holds the shared propagation parameters used by both the
// advisory path predictor and the mutative cascade engine.
type CascadeConfig struct {
	Decay   float64 `mapstructure:"decay"`
	Floor   float64 `mapstructure:"floor"`
	MaxHops int     `mapstructure:"max_hops"`
}

type ThreatConfig struct {
	DefaultDuration time.Duration `mapstructure:"default_duration"`
	MaxActive       int           `mapstructure:"max_active"`
}

type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URL        string `mapstructure:"url"`
	StreamName string `mapstructure:"stream_name"`
}

// GraphMirrorConfig controls the optional Neo4j topology export
type GraphMirrorConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	TimeFormat string `mapstructure:"time_format"`
}

// Validate checks cross-field constraints before any component consumes the config
func (c *Config) Validate() error {
	if c.Twin.NodeCount <= 0 {
		return fmt.Errorf("twin.node_count must be positive, got %d", c.Twin.NodeCount)
	}
	if c.Simulation.TickInterval <= 0 {
		return fmt.Errorf("simulation.tick_interval must be positive, got %s", c.Simulation.TickInterval)
	}
	sum := c.Risk.PhysicalWeight + c.Risk.CyberWeight + c.Risk.OperationalWeight +
		c.Risk.EnvironmentalWeight + c.Risk.CascadingWeight
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("risk weights must sum to 1.0, got %.3f", sum)
	}
	if c.Cascade.Decay <= 0 || c.Cascade.Decay > 1 {
		return fmt.Errorf("cascade.decay must be in (0,1], got %.3f", c.Cascade.Decay)
	}
	if c.Cascade.Floor < 0 || c.Cascade.Floor >= 1 {
		return fmt.Errorf("cascade.floor must be in [0,1), got %.3f", c.Cascade.Floor)
	}
	if c.Cascade.MaxHops <= 0 {
		return fmt.Errorf("cascade.max_hops must be positive, got %d", c.Cascade.MaxHops)
	}
	return nil
}

// setDefaults registers defaults so the service runs without a config file
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "twinguard-lab")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "0.1.0")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("twin.node_count", 150)
	v.SetDefault("twin.seed", 12345)

	v.SetDefault("simulation.tick_interval", 2*time.Second)
	v.SetDefault("simulation.auto_start", true)

	v.SetDefault("risk.physical_weight", 0.30)
	v.SetDefault("risk.cyber_weight", 0.25)
	v.SetDefault("risk.operational_weight", 0.15)
	v.SetDefault("risk.environmental_weight", 0.10)
	v.SetDefault("risk.cascading_weight", 0.20)
	v.SetDefault("risk.prediction_threshold", 0.5)
	v.SetDefault("risk.prediction_horizon", 24*time.Hour)

	v.SetDefault("cascade.decay", 0.7)
	v.SetDefault("cascade.floor", 0.05)
	v.SetDefault("cascade.max_hops", 6)

	v.SetDefault("threat.default_duration", 5*time.Minute)
	v.SetDefault("threat.max_active", 32)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.key_prefix", "twinguard:")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.stream_name", "TWINGUARD_EVENTS")

	v.SetDefault("graph_mirror.enabled", false)
	v.SetDefault("graph_mirror.database", "neo4j")

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Accept", "Authorization", "Content-Type"})
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.requests_per_minute", 300)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.time_format", time.RFC3339)
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/twinguard-lab")
	}

	// Environment variables
	v.SetEnvPrefix("TWINGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind nested env vars explicitly (viper doesn't auto-bind nested struct fields)
	v.BindEnv("twin.node_count", "TWINGUARD_TWIN_NODE_COUNT")
	v.BindEnv("twin.seed", "TWINGUARD_TWIN_SEED")
	v.BindEnv("database.enabled", "TWINGUARD_DATABASE_ENABLED")
	v.BindEnv("database.host", "TWINGUARD_DATABASE_HOST")
	v.BindEnv("database.port", "TWINGUARD_DATABASE_PORT")
	v.BindEnv("database.user", "TWINGUARD_DATABASE_USER")
	v.BindEnv("database.password", "TWINGUARD_DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "TWINGUARD_DATABASE_DBNAME")
	v.BindEnv("redis.enabled", "TWINGUARD_REDIS_ENABLED")
	v.BindEnv("redis.host", "TWINGUARD_REDIS_HOST")
	v.BindEnv("redis.port", "TWINGUARD_REDIS_PORT")
	v.BindEnv("redis.password", "TWINGUARD_REDIS_PASSWORD")
	v.BindEnv("nats.enabled", "TWINGUARD_NATS_ENABLED")
	v.BindEnv("nats.url", "TWINGUARD_NATS_URL")
	v.BindEnv("graph_mirror.enabled", "TWINGUARD_GRAPH_MIRROR_ENABLED")
	v.BindEnv("app.environment", "TWINGUARD_APP_ENVIRONMENT")

	// Read config file if one is present; defaults cover the rest
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadDefault loads configuration with default path
func LoadDefault() (*Config, error) {
	return Load("")
}
