package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the telemetry API service
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Primary store configuration
	Mongo MongoConfig `json:"mongo"`

	// Fallback store configuration
	Fallback FallbackConfig `json:"fallback"`

	// MQTT configuration
	MQTT MQTTConfig `json:"mqtt"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// CORS configuration
	CORS CORSConfig `json:"cors"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// MongoConfig holds primary document store configuration. URI may be empty,
// in which case the service boots in degraded mode on the fallback store.
type MongoConfig struct {
	URI            string        `json:"uri"`
	Database       string        `json:"database"`
	Collection     string        `json:"collection"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
}

// FallbackConfig holds the bounded local file store configuration
type FallbackConfig struct {
	Path        string `json:"path"`
	MaxRecords  int    `json:"max_records"`
	MaxRawBytes int    `json:"max_raw_bytes"`
}

// MQTTConfig holds MQTT-related configuration
type MQTTConfig struct {
	BrokerHost  string        `json:"broker_host"`
	BrokerPort  int           `json:"broker_port"`
	BrokerUser  string        `json:"broker_user"`
	BrokerPass  string        `json:"broker_pass"`
	UseTLS      bool          `json:"use_tls"`
	CACertPath  string        `json:"ca_cert_path"`
	Topic       string        `json:"topic"`
	ClientID    string        `json:"client_id"`
	KeepAlive   time.Duration `json:"keep_alive"`
	PingTimeout time.Duration `json:"ping_timeout"`
	Reconnect   time.Duration `json:"reconnect"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level        string `json:"level"`
	Format       string `json:"format"` // json or text
	Output       string `json:"output"` // stdout or stderr
	EnableCaller bool   `json:"enable_caller"`
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

// SyncConfig holds configuration for the client sync daemon
type SyncConfig struct {
	ApiServiceURL string        `json:"api_service_url"`
	OutboxPath    string        `json:"outbox_path"`
	FlushInterval time.Duration `json:"flush_interval"`
	MaxAttempts   int           `json:"max_attempts"`
	RetryDelay    time.Duration `json:"retry_delay"`
	HTTPTimeout   time.Duration `json:"http_timeout"`
	Logging       LoggingConfig `json:"logging"`
}

// LoadApiConfig loads configuration for the telemetry API service
func LoadApiConfig() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	if err := godotenv.Load(); err != nil {
		// Environment variables may be set directly
	}

	config := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "9002"),
			ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getDuration("IDLE_TIMEOUT", 120*time.Second),
		},
		Mongo: MongoConfig{
			URI:            getEnv("MONGODB_URI", ""),
			Database:       getEnv("DB_NAME", "agrosens"),
			Collection:     getEnv("COLL_NAME", "sensorreadings"),
			ConnectTimeout: getDuration("MONGO_CONNECT_TIMEOUT", 20*time.Second),
		},
		Fallback: FallbackConfig{
			Path:        getEnv("FALLBACK_PATH", "data/readings.json"),
			MaxRecords:  getInt("FALLBACK_MAX_RECORDS", 500),
			MaxRawBytes: getInt("FALLBACK_MAX_RAW_BYTES", 8192),
		},
		MQTT: MQTTConfig{
			BrokerHost:  getEnv("MQTT_HOST", "localhost"),
			BrokerPort:  getInt("MQTT_PORT", 1883),
			BrokerUser:  getEnv("MQTT_USER", ""),
			BrokerPass:  getEnv("MQTT_PASS", ""),
			UseTLS:      getBool("MQTT_TLS", false),
			CACertPath:  getEnv("MQTT_CA_FILE", ""),
			Topic:       getEnv("MQTT_TOPIC", "agrosens/+/+"),
			ClientID:    getEnv("MQTT_CLIENT_ID", "agrosens-bridge"),
			KeepAlive:   getDuration("MQTT_KEEP_ALIVE", 30*time.Second),
			PingTimeout: getDuration("MQTT_PING_TIMEOUT", 10*time.Second),
			Reconnect:   getDuration("MQTT_RECONNECT_INTERVAL", 5*time.Second),
		},
		Logging: LoggingConfig{
			Level:        getEnv("LOG_LEVEL", "info"),
			Format:       getEnv("LOG_FORMAT", "text"),
			Output:       getEnv("LOG_OUTPUT", "stdout"),
			EnableCaller: getBool("LOG_ENABLE_CALLER", false),
		},
		CORS: CORSConfig{
			AllowedOrigins:   getStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders:   getStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization"}),
			ExposedHeaders:   getStringSlice("CORS_EXPOSED_HEADERS", []string{"Content-Length"}),
			AllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           getInt("CORS_MAX_AGE", 43200), // 12 hours
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadSyncConfig loads configuration for the client sync daemon
func LoadSyncConfig() (*SyncConfig, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	if err := godotenv.Load(); err != nil {
		// Environment variables may be set directly
	}

	config := &SyncConfig{
		ApiServiceURL: getEnv("API_SERVICE_URL", "http://localhost:9002"),
		OutboxPath:    getEnv("OUTBOX_PATH", "data/outbox.json"),
		FlushInterval: getDuration("FLUSH_INTERVAL", 30*time.Second),
		MaxAttempts:   getInt("SYNC_MAX_ATTEMPTS", 3),
		RetryDelay:    getDuration("SYNC_RETRY_DELAY", 2*time.Second),
		HTTPTimeout:   getDuration("SYNC_HTTP_TIMEOUT", 10*time.Second),
		Logging: LoggingConfig{
			Level:        getEnv("LOG_LEVEL", "info"),
			Format:       getEnv("LOG_FORMAT", "text"),
			Output:       getEnv("LOG_OUTPUT", "stdout"),
			EnableCaller: getBool("LOG_ENABLE_CALLER", false),
		},
	}

	if config.ApiServiceURL == "" {
		return nil, fmt.Errorf("API_SERVICE_URL is required")
	}
	if config.MaxAttempts < 1 {
		return nil, fmt.Errorf("SYNC_MAX_ATTEMPTS must be at least 1")
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Mongo.URI == "" {
		log.Println("WARNING: MONGODB_URI not set. Readings will be persisted to the local fallback store only.")
	}
	if c.Fallback.Path == "" {
		return fmt.Errorf("FALLBACK_PATH is required")
	}
	if c.Fallback.MaxRecords < 1 {
		return fmt.Errorf("FALLBACK_MAX_RECORDS must be at least 1")
	}
	return nil
}

// GetMQTTBrokerURL returns the MQTT broker URL
func (c *Config) GetMQTTBrokerURL() string {
	scheme := "tcp"
	if c.MQTT.UseTLS {
		scheme = "tcps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.MQTT.BrokerHost, c.MQTT.BrokerPort)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return intValue
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if value == "1" || value == "true" || value == "TRUE" {
		return true
	}
	if value == "0" || value == "false" || value == "FALSE" {
		return false
	}
	log.Fatalf("invalid %s: %q (expected true/false or 1/0)", key, value)
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return duration
}

func getStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
