package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const fileEnvVar = "FORMRELAY_CONFIG"

type Config struct {
	// Web Service
	HTTPHost       string        `yaml:"http_host"`
	HTTPPort       int           `yaml:"http_port"`
	DocumentRoot   string        `yaml:"document_root"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxRequestBody int64         `yaml:"max_request_body"`

	// Ingestion Service
	SocketIP    string `yaml:"socket_ip"`
	SocketPort  int    `yaml:"socket_port"`
	BufferSize  int    `yaml:"buffer_size"`
	StoragePath string `yaml:"storage_path"`

	// Kafka sink
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	// Redis sink
	RedisAddr        string `yaml:"redis_addr"`
	RedisPassword    string `yaml:"redis_password"`
	RedisDB          int    `yaml:"redis_db"`
	RedisRecentKey   string `yaml:"redis_recent_key"`
	RedisRecentLimit int64  `yaml:"redis_recent_limit"`

	// Postgres sink
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		HTTPHost:       "",
		HTTPPort:       3000,
		DocumentRoot:   "static",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxRequestBody: 1 << 20,

		SocketIP:    "127.0.0.1",
		SocketPort:  5000,
		BufferSize:  1024,
		StoragePath: filepath.Join("storage", "data.json"),

		KafkaBrokers: []string{"localhost:9092"},

		RedisRecentKey:   "formrelay:recent",
		RedisRecentLimit: 100,
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by FORMRELAY_CONFIG and the environment, in that order.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv(fileEnvVar); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile returns the defaults overlaid with the YAML file at path. The
// environment is not consulted.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(content, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.HTTPHost = getEnv("HTTP_HOST", c.HTTPHost)
	c.HTTPPort = getIntEnv("HTTP_PORT", c.HTTPPort)
	c.DocumentRoot = getEnv("DOCUMENT_ROOT", c.DocumentRoot)
	c.ReadTimeout = getDuration("READ_TIMEOUT", c.ReadTimeout)
	c.WriteTimeout = getDuration("WRITE_TIMEOUT", c.WriteTimeout)
	c.MaxRequestBody = int64(getIntEnv("MAX_REQUEST_BODY_BYTES", int(c.MaxRequestBody)))

	c.SocketIP = getEnv("SOCKET_IP", c.SocketIP)
	c.SocketPort = getIntEnv("SOCKET_PORT", c.SocketPort)
	c.BufferSize = getIntEnv("BUFFER_SIZE", c.BufferSize)
	c.StoragePath = getEnv("STORAGE_PATH", c.StoragePath)

	c.KafkaBrokers = getStringSliceEnv("KAFKA_BROKERS", c.KafkaBrokers)
	c.KafkaTopic = getEnv("KAFKA_TOPIC", c.KafkaTopic)

	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getIntEnv("REDIS_DB", c.RedisDB)
	c.RedisRecentKey = getEnv("REDIS_RECENT_KEY", c.RedisRecentKey)
	c.RedisRecentLimit = int64(getIntEnv("REDIS_RECENT_LIMIT", int(c.RedisRecentLimit)))

	c.PostgresDSN = getEnv("POSTGRES_DSN", c.PostgresDSN)
}

// Validate reports settings that would prevent either listener from starting.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("http_port %d out of range", c.HTTPPort))
	}
	if c.SocketPort < 0 || c.SocketPort > 65535 {
		errs = append(errs, fmt.Errorf("socket_port %d out of range", c.SocketPort))
	}
	if c.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("buffer_size must be positive, got %d", c.BufferSize))
	}
	if net.ParseIP(c.SocketIP) == nil {
		errs = append(errs, fmt.Errorf("socket_ip %q is not an IP address", c.SocketIP))
	}
	if c.StoragePath == "" {
		errs = append(errs, errors.New("storage_path required"))
	}
	return errors.Join(errs...)
}

// HTTPAddr is the TCP address the Web Service listens on.
func (c *Config) HTTPAddr() string {
	return net.JoinHostPort(c.HTTPHost, strconv.Itoa(c.HTTPPort))
}

// SocketAddr is the UDP address the Ingestion Service binds and the Web
// Service sends to.
func (c *Config) SocketAddr() string {
	return net.JoinHostPort(c.SocketIP, strconv.Itoa(c.SocketPort))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
