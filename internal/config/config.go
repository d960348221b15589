package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Config captures the settings required to boot the TrendPulse service.
type Config struct {
	Server          ServerConfig          `yaml:"server"`
	Engine          EngineConfig          `yaml:"engine"`
	Recommendations RecommendationsConfig `yaml:"recommendations"`
	Logging         LoggingConfig         `yaml:"logging"`
	Cache           CacheConfig           `yaml:"cache"`
	CORS            CORSConfig            `yaml:"cors"`
}

// ServerConfig controls the HTTP, gRPC and metrics listeners.
type ServerConfig struct {
	HTTPAddress     string        `yaml:"httpAddress"`
	GRPCAddress     string        `yaml:"grpcAddress"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes"`
}

// EngineConfig fixes the analysis pipeline. VelocityMode is "smoothed" or
// "simple"; each brings its own classification thresholds.
type EngineConfig struct {
	VelocityMode     string `yaml:"velocityMode"`
	R0Window         int    `yaml:"r0Window"`
	BatchConcurrency int    `yaml:"batchConcurrency"`
}

// RecommendationsConfig points at an optional recommendation table file.
type RecommendationsConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	JSON   bool   `yaml:"json"`
	Access bool   `yaml:"access"`
}

// CacheConfig controls memoisation of analysis results.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Backend      string        `yaml:"backend"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	TTL          time.Duration `yaml:"ttl"`
	KeyPrefix    string        `yaml:"keyPrefix"`
}

// CORSConfig lists origins allowed to call the REST API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// Load initialises Config from a YAML file and optional environment overrides.
// A .env file in the working directory, if any, is loaded into the process
// environment first.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("TRENDPULSE_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Engine.VelocityMode) {
	case "smoothed", "simple":
	default:
		return fmt.Errorf("engine.velocityMode must be smoothed or simple, got %q", c.Engine.VelocityMode)
	}
	if c.Engine.R0Window <= 0 {
		return fmt.Errorf("engine.r0Window must be positive, got %d", c.Engine.R0Window)
	}
	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case CacheBackendMemory:
		case CacheBackendRedis:
			if c.Cache.Addr == "" {
				return errors.New("cache.addr is required for the redis backend")
			}
		default:
			return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Cache.Backend)
		}
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			HTTPAddress:     ":8000",
			GRPCAddress:     ":50051",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    15 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Engine: EngineConfig{
			VelocityMode:     "smoothed",
			R0Window:         7,
			BatchConcurrency: 8,
		},
		Logging: LoggingConfig{Level: "info", JSON: false, Access: true},
		Cache: CacheConfig{
			Enabled:      false,
			Backend:      CacheBackendMemory,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			TTL:          10 * time.Minute,
			KeyPrefix:    "trendpulse:analysis:",
		},
		CORS: CORSConfig{AllowedOrigins: []string{"*"}},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRENDPULSE_HTTP_ADDRESS"); v != "" {
		cfg.Server.HTTPAddress = v
	}
	if v := os.Getenv("PORT"); v != "" && os.Getenv("TRENDPULSE_HTTP_ADDRESS") == "" {
		cfg.Server.HTTPAddress = ":" + v
	}
	if v := os.Getenv("TRENDPULSE_GRPC_ADDRESS"); v != "" {
		cfg.Server.GRPCAddress = v
	}
	if v := os.Getenv("TRENDPULSE_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("TRENDPULSE_VELOCITY_MODE"); v != "" {
		cfg.Engine.VelocityMode = v
	}
	if v := os.Getenv("TRENDPULSE_R0_WINDOW"); v != "" {
		if w, err := strconv.Atoi(v); err == nil {
			cfg.Engine.R0Window = w
		}
	}
	if v := os.Getenv("TRENDPULSE_BATCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.BatchConcurrency = n
		}
	}
	if v := os.Getenv("TRENDPULSE_RECOMMENDATIONS_PATH"); v != "" {
		cfg.Recommendations.Path = v
	}
	if v := os.Getenv("TRENDPULSE_RECOMMENDATIONS_WATCH"); v != "" {
		cfg.Recommendations.Watch = parseBool(v)
	}
	if v := os.Getenv("TRENDPULSE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TRENDPULSE_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("TRENDPULSE_ACCESS_LOG"); v != "" {
		cfg.Logging.Access = parseBool(v)
	}
	if v := os.Getenv("TRENDPULSE_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("TRENDPULSE_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("TRENDPULSE_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("TRENDPULSE_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("TRENDPULSE_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("TRENDPULSE_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("TRENDPULSE_CACHE_TLS"); parseBool(v) {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("TRENDPULSE_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}
	if v := os.Getenv("TRENDPULSE_CORS_ORIGINS"); v != "" {
		origins := make([]string, 0)
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.CORS.AllowedOrigins = origins
	}
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
