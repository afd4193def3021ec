// Package config holds gateway settings. Everything is env-driven with
// programmatic overrides, so the same binary serves local development,
// tests, and production.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// OracleProvider defines which LLM judge backend handles ambiguous prompts.
type OracleProvider string

const (
	ProviderNone       OracleProvider = "none"       // No escalation, local scoring only
	ProviderOllama     OracleProvider = "ollama"     // Local Ollama server
	ProviderOpenRouter OracleProvider = "openrouter" // OpenRouter (has free tier)
	ProviderGroq       OracleProvider = "groq"       // Groq (high-speed inference)
	ProviderCustom     OracleProvider = "custom"     // Custom OpenAI-compatible endpoint
	ProviderSemantic   OracleProvider = "semantic"   // Embedding similarity, no judge model
)

// AuditBackend selects where decision records are persisted.
type AuditBackend string

const (
	AuditSQLite   AuditBackend = "sqlite"
	AuditPostgres AuditBackend = "postgres"
	AuditMemory   AuditBackend = "memory"
)

// HistoryBackend selects where per-user conversation history lives.
type HistoryBackend string

const (
	HistoryMemory HistoryBackend = "memory"
	HistoryRedis  HistoryBackend = "redis"
)

// Config holds global settings for the Sentinel gateway.
type Config struct {
	// === Core ===
	Port        string   // HTTP listen port (default: "8000")
	LogLevel    string   // debug, info, warn, error
	PolicyPath  string   // Optional YAML policy file extending the pattern catalog
	CORSOrigins []string // Allowed CORS origins (default: all)

	// === Decision Thresholds (0.0 - 1.0) ===
	// confidence >= BlockThreshold blocks, >= SanitizeThreshold sanitizes.
	BlockThreshold    float64 // default: 0.8
	SanitizeThreshold float64 // default: 0.5

	// === Conversation History ===
	MaxHistory     int            // Prompts retained per user (default: 10)
	HistoryBackend HistoryBackend // memory or redis
	RedisAddr      string         // host:port for the redis backend

	// === Temporal Analysis ===
	EscalationRate float64 // Keyword-density delta that flags gradual escalation (default: 3)
	RoleShiftCount int     // role_manipulation hits in history that flag repetition (default: 2)
	OverrideCount  int     // system_override hits in history that flag an attempt (default: 1)

	// === Oracle (LLM judge) ===
	OracleProvider      OracleProvider
	OracleAPIKey        string
	OracleModel         string
	OracleBaseURL       string
	OracleTimeout       time.Duration // default: 10s
	OracleMaxConcurrent int           // Concurrent escalation cap (default: 8)

	// === Audit Store ===
	AuditBackend AuditBackend
	AuditPath    string // SQLite file path (default: "sentinel_audit.db")
	PostgresDSN  string // DSN for the postgres backend
}

// NewDefaultConfig creates a Config from environment variables with
// sensible defaults for everything unset.
func NewDefaultConfig() *Config {
	return &Config{
		Port:        GetEnv("SENTINEL_PORT", "8000"),
		LogLevel:    GetEnv("SENTINEL_LOG_LEVEL", "info"),
		PolicyPath:  GetEnv("SENTINEL_POLICY_PATH", ""),
		CORSOrigins: GetEnvSlice("SENTINEL_CORS_ORIGINS", []string{"*"}),

		BlockThreshold:    GetEnvFloat("SENTINEL_BLOCK_THRESHOLD", 0.8),
		SanitizeThreshold: GetEnvFloat("SENTINEL_SANITIZE_THRESHOLD", 0.5),

		MaxHistory:     clampInt(GetEnvInt("SENTINEL_MAX_HISTORY", 10), 1, 1000),
		HistoryBackend: HistoryBackend(GetEnv("SENTINEL_HISTORY_BACKEND", "memory")),
		RedisAddr:      GetEnv("SENTINEL_REDIS_ADDR", "localhost:6379"),

		EscalationRate: GetEnvFloat("SENTINEL_ESCALATION_RATE", 3),
		RoleShiftCount: GetEnvInt("SENTINEL_ROLE_SHIFT_COUNT", 2),
		OverrideCount:  GetEnvInt("SENTINEL_OVERRIDE_COUNT", 1),

		OracleProvider:      detectOracleProvider(),
		OracleAPIKey:        GetEnv("SENTINEL_ORACLE_API_KEY", GetEnv("GROQ_API_KEY", os.Getenv("OPENROUTER_API_KEY"))),
		OracleModel:         GetEnv("SENTINEL_ORACLE_MODEL", "llama-3.1-8b-instant"),
		OracleBaseURL:       GetEnv("SENTINEL_ORACLE_BASE_URL", ""),
		OracleTimeout:       time.Duration(GetEnvInt("SENTINEL_ORACLE_TIMEOUT_MS", 10000)) * time.Millisecond,
		OracleMaxConcurrent: clampInt(GetEnvInt("SENTINEL_ORACLE_MAX_CONCURRENT", 8), 1, 256),

		AuditBackend: AuditBackend(GetEnv("SENTINEL_AUDIT_BACKEND", "sqlite")),
		AuditPath:    GetEnv("SENTINEL_AUDIT_PATH", "sentinel_audit.db"),
		PostgresDSN:  GetEnv("SENTINEL_POSTGRES_DSN", ""),
	}
}

// NewLocalConfig creates a Config for air-gapped or privacy-first
// deployments: everything in-process, judge on local Ollama.
func NewLocalConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.OracleProvider = ProviderOllama
	cfg.OracleBaseURL = "http://localhost:11434/v1"
	cfg.OracleModel = "qwen2.5:7b"
	cfg.OracleAPIKey = ""
	cfg.HistoryBackend = HistoryMemory
	cfg.AuditBackend = AuditSQLite
	return cfg
}

// NewHighSecurityConfig lowers thresholds for aggressive blocking.
// Expect more false positives.
func NewHighSecurityConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.BlockThreshold = 0.6
	cfg.SanitizeThreshold = 0.35
	return cfg
}

// NewHighUsabilityConfig raises thresholds to minimize false positives.
func NewHighUsabilityConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.BlockThreshold = 0.9
	cfg.SanitizeThreshold = 0.6
	return cfg
}

func detectOracleProvider() OracleProvider {
	if p := os.Getenv("SENTINEL_ORACLE_PROVIDER"); p != "" {
		return OracleProvider(p)
	}
	// Auto-detect from available keys; no key means no escalation.
	if os.Getenv("GROQ_API_KEY") != "" {
		return ProviderGroq
	}
	if os.Getenv("OPENROUTER_API_KEY") != "" || os.Getenv("SENTINEL_ORACLE_API_KEY") != "" {
		return ProviderOpenRouter
	}
	return ProviderNone
}

// clampInt ensures a value is within bounds
func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// Validate checks internal consistency. Call at startup before serving.
func (c *Config) Validate() error {
	if c.BlockThreshold < 0 || c.BlockThreshold > 1 {
		return fmt.Errorf("block threshold out of range: %v", c.BlockThreshold)
	}
	if c.SanitizeThreshold < 0 || c.SanitizeThreshold > 1 {
		return fmt.Errorf("sanitize threshold out of range: %v", c.SanitizeThreshold)
	}
	if c.SanitizeThreshold > c.BlockThreshold {
		return fmt.Errorf("sanitize threshold %v exceeds block threshold %v",
			c.SanitizeThreshold, c.BlockThreshold)
	}
	if c.MaxHistory < 1 {
		return fmt.Errorf("max history must be positive, got %d", c.MaxHistory)
	}

	switch c.HistoryBackend {
	case HistoryMemory:
	case HistoryRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis history backend requires SENTINEL_REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown history backend %q", c.HistoryBackend)
	}

	switch c.AuditBackend {
	case AuditMemory, AuditSQLite:
	case AuditPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres audit backend requires SENTINEL_POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("unknown audit backend %q", c.AuditBackend)
	}

	switch c.OracleProvider {
	case ProviderNone, ProviderSemantic, ProviderOllama:
	case ProviderOpenRouter, ProviderGroq:
		if c.OracleAPIKey == "" {
			return fmt.Errorf("oracle provider %q requires an API key", c.OracleProvider)
		}
	case ProviderCustom:
		if c.OracleBaseURL == "" {
			return fmt.Errorf("custom oracle provider requires SENTINEL_ORACLE_BASE_URL")
		}
	default:
		return fmt.Errorf("unknown oracle provider %q", c.OracleProvider)
	}

	return nil
}

// Helper functions for environment variable parsing.

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetEnvBool returns the boolean value of an environment variable or a default value.
func GetEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvFloat returns the float64 value of an environment variable or a default value.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

// GetEnvInt returns the integer value of an environment variable or a default value.
func GetEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

// GetEnvSlice returns a comma-separated list from an environment variable or a default value.
func GetEnvSlice(key string, defaultValue []string) []string {
	if v := os.Getenv(key); v != "" {
		var parts []string
		for _, p := range strings.Split(v, ",") {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}
