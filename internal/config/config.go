package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Credential backends
const (
	CredentialBackendRedis   = "redis"
	CredentialBackendKeyring = "keyring"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Local backend
	LocalURL    string // base URL of the local backend (ex: http://127.0.0.1:7778)
	LocalSecret string // X-Secret-Key sent to the local backend

	// Sources
	CredentialBackend  string        // "redis" | "keyring"
	KeyringService     string        // keyring service name (keyring backend only)
	LegacyFile         string        // optional YAML file with legacy cloudServers / lanConnections
	HealthPollInterval time.Duration // interval between background health polls (0 = disabled)
	CacheTTL           time.Duration // aggregate cache TTL (default: 5m)
	CacheMaxEntries    int           // max cache entries per resource kind (default: 50)
	Strict             bool          // panic on internal contract violations (dev only)
	TestRateBurst      int           // connection tests per client IP in a burst (default: 5)
	TestRatePerMinute  int           // connection tests refilled per minute per client IP (default: 10)

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedCIDRS []string // optional, restrict mutating routes and /metrics to these networks
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("SOURCEHUB_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("SOURCEHUB_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("SOURCEHUB_LOG_LEVEL", "info"),
		PrettyLog: mustBool("SOURCEHUB_PRETTY_LOG", true),

		// Local backend
		LocalURL:    strings.TrimRight(requireEnv("SOURCEHUB_LOCAL_URL"), "/"),
		LocalSecret: getenv("SOURCEHUB_LOCAL_SECRET", ""),

		// Sources
		CredentialBackend:  strings.ToLower(getenv("SOURCEHUB_CREDENTIAL_BACKEND", CredentialBackendRedis)),
		KeyringService:     getenv("SOURCEHUB_KEYRING_SERVICE", "sourcehub"),
		LegacyFile:         getenv("SOURCEHUB_LEGACY_FILE", ""), // Optional, empty = no file import
		HealthPollInterval: mustDuration("SOURCEHUB_HEALTH_POLL_INTERVAL", 30*time.Second),
		CacheTTL:           mustDuration("SOURCEHUB_CACHE_TTL", 5*time.Minute),
		CacheMaxEntries:    getenvInt("SOURCEHUB_CACHE_MAX_ENTRIES", 50),
		Strict:             mustBool("SOURCEHUB_STRICT", false),
		TestRateBurst:      getenvInt("SOURCEHUB_TEST_RATE_BURST", 5),
		TestRatePerMinute:  getenvInt("SOURCEHUB_TEST_RATE_PER_MINUTE", 10),

		// Redis settings
		RedisAddr:             requireEnv("SOURCEHUB_REDIS_ADDR"),
		RedisUser:             getenv("SOURCEHUB_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("SOURCEHUB_REDIS_PASSWORD_REQUIRED", true),
		RedisPassword:         getenv("SOURCEHUB_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("SOURCEHUB_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedCIDRS: parseAllowedIPs(getenv("SOURCEHUB_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("SOURCEHUB_TRUST_PROXY", true),
	}

	if err := cfg.Validate(); err != nil {
		panic("❌ FATAL: " + err.Error())
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// Validate checks the combinations Load cannot catch one variable at a time.
func (c *Config) Validate() error {
	if c.RedisPasswordRequired && c.RedisPassword == "" {
		return fmt.Errorf("SOURCEHUB_REDIS_PASSWORD is required when SOURCEHUB_REDIS_PASSWORD_REQUIRED=true")
	}
	switch c.CredentialBackend {
	case CredentialBackendRedis, CredentialBackendKeyring:
	default:
		return fmt.Errorf("SOURCEHUB_CREDENTIAL_BACKEND must be %q or %q, got %q",
			CredentialBackendRedis, CredentialBackendKeyring, c.CredentialBackend)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("SOURCEHUB_CACHE_TTL must be > 0, got %v", c.CacheTTL)
	}
	if c.CacheMaxEntries <= 0 {
		return fmt.Errorf("SOURCEHUB_CACHE_MAX_ENTRIES must be > 0, got %d", c.CacheMaxEntries)
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	if cp.RedisPassword != "" {
		cp.RedisPassword = "***REDACTED***"
	}
	if cp.RedisUser != "" {
		cp.RedisUser = "***REDACTED***"
	}
	if cp.LocalSecret != "" {
		cp.LocalSecret = "***REDACTED***"
	}
	return cp
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
