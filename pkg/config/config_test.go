package config

import (
	"testing"
	"time"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg.Port != "8000" {
		t.Errorf("Port = %q, want 8000", cfg.Port)
	}
	if cfg.BlockThreshold != 0.8 {
		t.Errorf("BlockThreshold = %v, want 0.8", cfg.BlockThreshold)
	}
	if cfg.SanitizeThreshold != 0.5 {
		t.Errorf("SanitizeThreshold = %v, want 0.5", cfg.SanitizeThreshold)
	}
	if cfg.MaxHistory != 10 {
		t.Errorf("MaxHistory = %d, want 10", cfg.MaxHistory)
	}
	if cfg.OracleTimeout != 10*time.Second {
		t.Errorf("OracleTimeout = %v, want 10s", cfg.OracleTimeout)
	}
	if cfg.AuditBackend != AuditSQLite {
		t.Errorf("AuditBackend = %q, want sqlite", cfg.AuditBackend)
	}
	if cfg.HistoryBackend != HistoryMemory {
		t.Errorf("HistoryBackend = %q, want memory", cfg.HistoryBackend)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SENTINEL_PORT", "9999")
	t.Setenv("SENTINEL_BLOCK_THRESHOLD", "0.9")
	t.Setenv("SENTINEL_MAX_HISTORY", "25")
	t.Setenv("SENTINEL_ORACLE_PROVIDER", "semantic")

	cfg := NewDefaultConfig()
	if cfg.Port != "9999" {
		t.Errorf("Port = %q, want 9999", cfg.Port)
	}
	if cfg.BlockThreshold != 0.9 {
		t.Errorf("BlockThreshold = %v, want 0.9", cfg.BlockThreshold)
	}
	if cfg.MaxHistory != 25 {
		t.Errorf("MaxHistory = %d, want 25", cfg.MaxHistory)
	}
	if cfg.OracleProvider != ProviderSemantic {
		t.Errorf("OracleProvider = %q, want semantic", cfg.OracleProvider)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"sanitize above block", func(c *Config) {
			c.SanitizeThreshold = 0.9
			c.BlockThreshold = 0.5
		}},
		{"block out of range", func(c *Config) { c.BlockThreshold = 1.5 }},
		{"negative sanitize", func(c *Config) { c.SanitizeThreshold = -0.1 }},
		{"zero history", func(c *Config) { c.MaxHistory = 0 }},
		{"unknown history backend", func(c *Config) { c.HistoryBackend = "etcd" }},
		{"redis without addr", func(c *Config) {
			c.HistoryBackend = HistoryRedis
			c.RedisAddr = ""
		}},
		{"unknown audit backend", func(c *Config) { c.AuditBackend = "csv" }},
		{"postgres without dsn", func(c *Config) {
			c.AuditBackend = AuditPostgres
			c.PostgresDSN = ""
		}},
		{"groq without key", func(c *Config) {
			c.OracleProvider = ProviderGroq
			c.OracleAPIKey = ""
		}},
		{"custom without base url", func(c *Config) {
			c.OracleProvider = ProviderCustom
			c.OracleBaseURL = ""
		}},
		{"unknown provider", func(c *Config) { c.OracleProvider = "gpt9" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			cfg.OracleProvider = ProviderNone
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestProfiles(t *testing.T) {
	strict := NewHighSecurityConfig()
	lax := NewHighUsabilityConfig()

	if strict.BlockThreshold >= lax.BlockThreshold {
		t.Errorf("high-security block threshold %v should be below high-usability %v",
			strict.BlockThreshold, lax.BlockThreshold)
	}
	for name, cfg := range map[string]*Config{"security": strict, "usability": lax} {
		if err := cfg.Validate(); err != nil {
			t.Errorf("%s profile should validate, got %v", name, err)
		}
	}

	local := NewLocalConfig()
	if local.OracleProvider != ProviderOllama {
		t.Errorf("local profile provider = %q, want ollama", local.OracleProvider)
	}
	if err := local.Validate(); err != nil {
		t.Errorf("local profile should validate, got %v", err)
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "value")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_FLOAT", "0.25")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_SLICE", "a, b ,c")
	t.Setenv("TEST_BAD_INT", "not-a-number")

	if got := GetEnv("TEST_STR", "x"); got != "value" {
		t.Errorf("GetEnv = %q", got)
	}
	if got := GetEnv("TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("GetEnv fallback = %q", got)
	}
	if !GetEnvBool("TEST_BOOL", false) {
		t.Error("GetEnvBool should parse true")
	}
	if got := GetEnvFloat("TEST_FLOAT", 0); got != 0.25 {
		t.Errorf("GetEnvFloat = %v", got)
	}
	if got := GetEnvInt("TEST_INT", 0); got != 42 {
		t.Errorf("GetEnvInt = %v", got)
	}
	if got := GetEnvInt("TEST_BAD_INT", 7); got != 7 {
		t.Errorf("GetEnvInt on garbage = %v, want default 7", got)
	}
	if got := GetEnvSlice("TEST_SLICE", nil); len(got) != 3 || got[1] != "b" {
		t.Errorf("GetEnvSlice = %v", got)
	}
}
