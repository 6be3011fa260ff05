package config

import (
	"strings"
	"testing"
	"time"
)

func TestRequireEnv(t *testing.T) {
	t.Run("variable set", func(t *testing.T) {
		t.Setenv("SOURCEHUB_TEST_VAR", "test_value")
		if got := requireEnv("SOURCEHUB_TEST_VAR"); got != "test_value" {
			t.Errorf("requireEnv() = %v, want test_value", got)
		}
	})

	t.Run("variable not set", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("requireEnv() should have panicked")
			}
		}()
		requireEnv("SOURCEHUB_TEST_VAR_MISSING")
	})
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SOURCEHUB_LOCAL_URL", "http://127.0.0.1:7778/")
	t.Setenv("SOURCEHUB_REDIS_ADDR", "localhost:6379")
	t.Setenv("SOURCEHUB_REDIS_PASSWORD", "pw")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg := Load()

	if cfg.LocalURL != "http://127.0.0.1:7778" {
		t.Errorf("LocalURL = %q, trailing slash should be trimmed", cfg.LocalURL)
	}
	if cfg.ListenPort != ":8080" {
		t.Errorf("ListenPort = %q, want :8080", cfg.ListenPort)
	}
	if cfg.CredentialBackend != CredentialBackendRedis {
		t.Errorf("CredentialBackend = %q, want redis", cfg.CredentialBackend)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want 5m", cfg.CacheTTL)
	}
	if cfg.CacheMaxEntries != 50 {
		t.Errorf("CacheMaxEntries = %d, want 50", cfg.CacheMaxEntries)
	}
	if cfg.HealthPollInterval != 30*time.Second {
		t.Errorf("HealthPollInterval = %v, want 30s", cfg.HealthPollInterval)
	}
	if cfg.Strict {
		t.Error("Strict should default to false")
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SOURCEHUB_CREDENTIAL_BACKEND", "KEYRING")
	t.Setenv("SOURCEHUB_CACHE_TTL", "90s")
	t.Setenv("SOURCEHUB_ALLOWED_CIDRS", `"10.0.0.0/8", 192.168.1.0/24`)
	t.Setenv("SOURCEHUB_STRICT", "true")

	cfg := Load()

	if cfg.CredentialBackend != CredentialBackendKeyring {
		t.Errorf("CredentialBackend = %q, want keyring", cfg.CredentialBackend)
	}
	if cfg.CacheTTL != 90*time.Second {
		t.Errorf("CacheTTL = %v, want 90s", cfg.CacheTTL)
	}
	if len(cfg.AllowedCIDRS) != 2 || cfg.AllowedCIDRS[0] != "10.0.0.0/8" {
		t.Errorf("AllowedCIDRS = %v", cfg.AllowedCIDRS)
	}
	if !cfg.Strict {
		t.Error("Strict should be true")
	}
}

func TestLoad_PanicsWithoutLocalURL(t *testing.T) {
	t.Setenv("SOURCEHUB_LOCAL_URL", "")
	t.Setenv("SOURCEHUB_REDIS_ADDR", "localhost:6379")

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Load() should have panicked")
		}
	}()
	Load()
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			CredentialBackend: CredentialBackendRedis,
			CacheTTL:          time.Minute,
			CacheMaxEntries:   10,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "password required",
			mutate:  func(c *Config) { c.RedisPasswordRequired = true },
			wantErr: "SOURCEHUB_REDIS_PASSWORD",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.CredentialBackend = "vault" },
			wantErr: "SOURCEHUB_CREDENTIAL_BACKEND",
		},
		{
			name:    "zero ttl",
			mutate:  func(c *Config) { c.CacheTTL = 0 },
			wantErr: "SOURCEHUB_CACHE_TTL",
		},
		{
			name:    "zero max entries",
			mutate:  func(c *Config) { c.CacheMaxEntries = 0 },
			wantErr: "SOURCEHUB_CACHE_MAX_ENTRIES",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %s", err, tt.wantErr)
			}
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := &Config{RedisUser: "default", RedisPassword: "pw", LocalSecret: "s3cret"}
	r := cfg.Redacted()

	if r.RedisPassword == "pw" || r.LocalSecret == "s3cret" || r.RedisUser == "default" {
		t.Errorf("Redacted() leaked a secret: %+v", r)
	}
	if cfg.RedisPassword != "pw" {
		t.Error("Redacted() must not modify the original")
	}
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{
			name:     "valid duration",
			key:      "TEST_DURATION",
			value:    "5s",
			def:      1 * time.Second,
			expected: 5 * time.Second,
		},
		{
			name:     "invalid duration uses default",
			key:      "TEST_DURATION_INVALID",
			value:    "invalid",
			def:      10 * time.Second,
			expected: 10 * time.Second,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_DURATION_MISSING",
			value:    "",
			def:      15 * time.Second,
			expected: 15 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv(tt.key, tt.value)
			}

			result := mustDuration(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustDuration() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMustBool(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      bool
		expected bool
	}{
		{name: "true value", key: "TEST_BOOL", value: "true", def: false, expected: true},
		{name: "false value", key: "TEST_BOOL_FALSE", value: "false", def: true, expected: false},
		{name: "invalid value uses default", key: "TEST_BOOL_INVALID", value: "invalid", def: true, expected: true},
		{name: "missing variable uses default", key: "TEST_BOOL_MISSING", value: "", def: false, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv(tt.key, tt.value)
			}

			result := mustBool(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustBool() = %v, want %v", result, tt.expected)
			}
		})
	}
}
