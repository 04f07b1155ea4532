// Package config provides environment configuration for the API server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBolt   = "bolt"
	BackendNATS   = "nats"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	PublicBaseURL      string
	CORSAllowedOrigins []string
	// TrustProxyHeaders takes the client address from X-Forwarded-For,
	// X-Real-IP or True-Client-IP. Enable only behind a proxy that sets them.
	TrustProxyHeaders  bool

	// Storage settings
	StoreBackend  string
	RedisAddr     string
	RedisUsername string
	RedisPassword string
	RedisDB       int
	BoltPath      string

	// NATS settings
	NATSURL       string
	NATSCAFile    string
	NATSCertFile  string
	NATSKeyFile   string
	NATSToken     string
	EventsEnabled bool

	// JWT settings
	JWTSecret string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitAtomic   bool

	// Ingestion
	MaxContentBytes     int
	IDMaxAttempts       int
	StructuredMultiTurn bool

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables. When CONFIG_FILE
// names a YAML file its keys fill in whatever the environment leaves unset.
func Load() (*Config, error) {
	src := source{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		file, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		src.file = file
	}

	cfg := &Config{
		// Server
		ServerPort:         src.getEnv("PORT", "8080"),
		ServerReadTimeout:  src.getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: src.getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
		PublicBaseURL:      src.getEnv("PUBLIC_BASE_URL", ""),
		CORSAllowedOrigins: splitList(src.getEnv("CORS_ALLOWED_ORIGINS", "https://*,http://*")),
		TrustProxyHeaders:  src.getBoolEnv("TRUST_PROXY_HEADERS", false),

		// Storage
		StoreBackend:  strings.ToLower(src.getEnv("STORE_BACKEND", BackendMemory)),
		RedisAddr:     src.getEnv("REDIS_ADDR", "localhost:6379"),
		RedisUsername: src.getEnv("REDIS_USERNAME", ""),
		RedisPassword: src.getEnv("REDIS_PASSWORD", ""),
		RedisDB:       src.getIntEnv("REDIS_DB", 0),
		BoltPath:      src.getEnv("BOLT_PATH", "chatshare.db"),

		// NATS
		NATSURL:       src.getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:    src.getEnv("NATS_CA_FILE", ""),
		NATSCertFile:  src.getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:   src.getEnv("NATS_KEY_FILE", ""),
		NATSToken:     src.getEnv("NATS_TOKEN", ""),
		EventsEnabled: src.getBoolEnv("EVENTS_ENABLED", false),

		// JWT
		JWTSecret: src.getEnv("JWT_SECRET", ""),

		// Rate limiting
		RateLimitRequests: src.getIntEnv("RATE_LIMIT_REQUESTS", 10),
		RateLimitWindow:   src.getDurationEnv("RATE_LIMIT_WINDOW", time.Hour),
		RateLimitAtomic:   src.getBoolEnv("RATE_LIMIT_ATOMIC", false),

		// Ingestion
		MaxContentBytes:     src.getIntEnv("MAX_CONTENT_BYTES", 1<<20),
		IDMaxAttempts:       src.getIntEnv("ID_MAX_ATTEMPTS", 10),
		StructuredMultiTurn: src.getBoolEnv("STRUCTURED_MULTI_TURN", false),

		// Logging
		LogLevel: src.getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: src.getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  src.getBoolEnv("TRACING_ENABLED", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendRedis, BackendBolt, BackendNATS:
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.RateLimitRequests <= 0 {
		return fmt.Errorf("config: RATE_LIMIT_REQUESTS must be positive, got %d", c.RateLimitRequests)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("config: RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimitWindow)
	}
	if c.MaxContentBytes <= 0 {
		return fmt.Errorf("config: MAX_CONTENT_BYTES must be positive, got %d", c.MaxContentBytes)
	}
	if c.IDMaxAttempts <= 0 {
		return fmt.Errorf("config: ID_MAX_ATTEMPTS must be positive, got %d", c.IDMaxAttempts)
	}
	return nil
}

// source resolves a key from the environment first, then the config file.
type source struct {
	file map[string]string
}

func (s source) lookup(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return s.file[key]
}

func (s source) getEnv(key, defaultValue string) string {
	if value := s.lookup(key); value != "" {
		return value
	}
	return defaultValue
}

func (s source) getIntEnv(key string, defaultValue int) int {
	if value := s.lookup(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func (s source) getBoolEnv(key string, defaultValue bool) bool {
	if value := s.lookup(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func (s source) getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := s.lookup(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// loadFile reads a flat YAML mapping whose keys are the environment variable
// names, matched case-insensitively. Sequences are joined with commas.
func loadFile(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var raw map[string]interface{}
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		key := strings.ToUpper(strings.TrimSpace(k))
		switch val := v.(type) {
		case nil:
		case []interface{}:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				parts = append(parts, fmt.Sprint(item))
			}
			values[key] = strings.Join(parts, ",")
		case map[string]interface{}:
			return nil, fmt.Errorf("parsing %s: key %q must be a scalar or list", path, k)
		default:
			values[key] = fmt.Sprint(val)
		}
	}
	return values, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
