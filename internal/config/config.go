package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends
const (
	BackendMemory   = "memory"
	BackendNATS     = "nats"
	BackendPostgres = "postgres"
)

// Config holds all configuration for the ordering system
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	NATS     NATSConfig     `yaml:"nats"`
	HTTP     HTTPConfig     `yaml:"http"`
	Ordering OrderingConfig `yaml:"ordering"`
}

// StoreConfig selects the document store backend
type StoreConfig struct {
	Backend string `yaml:"backend"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// RabbitMQConfig holds RabbitMQ connection configuration
type RabbitMQConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// NATSConfig configures the NATS connection. An empty URL with Embedded set
// starts an in-process server.
type NATSConfig struct {
	URL      string `yaml:"url"`
	Embedded bool   `yaml:"embedded"`
	StoreDir string `yaml:"store_dir"`
}

// HTTPConfig holds listen ports for each service
type HTTPConfig struct {
	OrderingPort int `yaml:"ordering_port"`
	KitchenPort  int `yaml:"kitchen_port"`
	TrackerPort  int `yaml:"tracker_port"`
}

// OrderingConfig tunes checkout behaviour
type OrderingConfig struct {
	// RequireTable rejects checkout without a bound table instead of
	// substituting UnknownTable.
	RequireTable  bool          `yaml:"require_table"`
	UnknownTable  string        `yaml:"unknown_table"`
	SubmitTimeout time.Duration `yaml:"submit_timeout"`

	// SessionIdleTimeout ends guest sessions not used for this long; zero
	// keeps them until deleted.
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
}

// DefaultConfig returns a Config with local development defaults
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{Backend: BackendNATS},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "smartdine",
			Password: "smartdine",
			Database: "smartdine",
		},
		RabbitMQ: RabbitMQConfig{
			Host:     "localhost",
			Port:     5672,
			User:     "guest",
			Password: "guest",
		},
		NATS: NATSConfig{Embedded: true},
		HTTP: HTTPConfig{
			OrderingPort: 3000,
			KitchenPort:  3001,
			TrackerPort:  3002,
		},
		Ordering: OrderingConfig{
			UnknownTable:       "UNKNOWN",
			SubmitTimeout:      10 * time.Second,
			SessionIdleTimeout: 2 * time.Hour,
		},
	}
}

// Load reads configuration from a YAML file on top of the defaults, then
// applies .env and environment overrides. An empty filename skips the file.
func Load(filename string) (*Config, error) {
	config := DefaultConfig()

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	_ = godotenv.Load()
	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnv overrides values from environment variables
func (c *Config) applyEnv() error {
	setString(&c.Store.Backend, "SMARTDINE_STORE_BACKEND")

	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Database, "DB_NAME")
	if err := setInt(&c.Database.Port, "DB_PORT"); err != nil {
		return err
	}

	setString(&c.RabbitMQ.Host, "RABBITMQ_HOST")
	setString(&c.RabbitMQ.User, "RABBITMQ_USER")
	setString(&c.RabbitMQ.Password, "RABBITMQ_PASSWORD")
	if err := setInt(&c.RabbitMQ.Port, "RABBITMQ_PORT"); err != nil {
		return err
	}
	if v := os.Getenv("RABBITMQ_ENABLED"); v != "" {
		c.RabbitMQ.Enabled = v == "1" || strings.EqualFold(v, "true")
	}

	setString(&c.NATS.URL, "NATS_URL")
	if v := os.Getenv("SMARTDINE_REQUIRE_TABLE"); v != "" {
		c.Ordering.RequireTable = v == "1" || strings.EqualFold(v, "true")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s value: %w", key, err)
	}
	*dst = n
	return nil
}

// Validate checks the configuration for missing or inconsistent values
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendNATS, BackendPostgres:
	default:
		return fmt.Errorf("store.backend must be one of: memory, nats, postgres")
	}
	if c.Store.Backend == BackendNATS && c.NATS.URL == "" && !c.NATS.Embedded {
		return errors.New("nats.url is required when nats.embedded is false")
	}
	for name, port := range map[string]int{
		"http.ordering_port": c.HTTP.OrderingPort,
		"http.kitchen_port":  c.HTTP.KitchenPort,
		"http.tracker_port":  c.HTTP.TrackerPort,
		"database.port":      c.Database.Port,
		"rabbitmq.port":      c.RabbitMQ.Port,
	} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("%s must be between 1 and 65535", name)
		}
	}
	if !c.Ordering.RequireTable && c.Ordering.UnknownTable == "" {
		return errors.New("ordering.unknown_table is required when ordering.require_table is false")
	}
	if c.Ordering.SubmitTimeout <= 0 {
		return errors.New("ordering.submit_timeout must be positive")
	}
	if c.Ordering.SessionIdleTimeout < 0 {
		return errors.New("ordering.session_idle_timeout must not be negative")
	}
	return nil
}

// SharedStore reports whether separate processes see the same documents.
// The memory backend and an embedded NATS server live inside one process.
func (c *Config) SharedStore() bool {
	switch c.Store.Backend {
	case BackendMemory:
		return false
	case BackendNATS:
		return c.NATS.URL != ""
	}
	return true
}

// DatabaseURL returns a PostgreSQL connection URL
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Database)
}

// RabbitMQURL returns an AMQP connection URL
func (c *Config) RabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		c.RabbitMQ.User, c.RabbitMQ.Password, c.RabbitMQ.Host, c.RabbitMQ.Port)
}
