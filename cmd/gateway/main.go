package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"

	"github.com/sentinelguard/sentinel/pkg/audit"
	"github.com/sentinelguard/sentinel/pkg/config"
	"github.com/sentinelguard/sentinel/pkg/decision"
	"github.com/sentinelguard/sentinel/pkg/detect"
	"github.com/sentinelguard/sentinel/pkg/guard"
	"github.com/sentinelguard/sentinel/pkg/history"
	"github.com/sentinelguard/sentinel/pkg/oracle"
	"github.com/sentinelguard/sentinel/pkg/patterns"
	"github.com/sentinelguard/sentinel/pkg/score"
	"github.com/sentinelguard/sentinel/pkg/telemetry"
	"github.com/sentinelguard/sentinel/pkg/temporal"
)

const Version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cfg := config.NewDefaultConfig()
		if len(os.Args) > 2 {
			cfg.Port = os.Args[2]
		}
		runServer(cfg)
	case "scan":
		if len(os.Args) < 3 {
			fmt.Println("Usage: sentinel scan <prompt>")
			os.Exit(1)
		}
		runCLIScan(strings.Join(os.Args[2:], " "))
	case "version":
		fmt.Printf("Sentinel v%s\n", Version)
		fmt.Println("Prompt security gateway")
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("Sentinel v%s - Prompt security gateway\n\n", Version)
	fmt.Println("Usage:")
	fmt.Println("  sentinel serve [port]   Start HTTP server (default: 8000)")
	fmt.Println("  sentinel scan <prompt>  Analyze one prompt and print the decision")
	fmt.Println("  sentinel version        Show version")
	fmt.Println("")
	fmt.Println("Environment Variables:")
	fmt.Println("  SENTINEL_ORACLE_PROVIDER   none, openrouter, groq, ollama, custom, semantic")
	fmt.Println("  SENTINEL_ORACLE_API_KEY    API key for cloud judge providers")
	fmt.Println("  SENTINEL_HISTORY_BACKEND   memory (default) or redis")
	fmt.Println("  SENTINEL_AUDIT_BACKEND     sqlite (default), postgres, or memory")
	fmt.Println("  SENTINEL_POLICY_PATH       YAML file extending the pattern catalog")
}

// buildGuard assembles the pipeline from config. Optional components
// degrade gracefully: a missing oracle means local scoring only.
func buildGuard(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*guard.Guard, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	catalog := patterns.Get()
	if cfg.PolicyPath != "" {
		if err := catalog.LoadPolicy(cfg.PolicyPath); err != nil {
			return nil, nil, fmt.Errorf("load policy: %w", err)
		}
		logger.Info("policy loaded", "path", cfg.PolicyPath)
	}

	var closers []func()

	var hist history.Store
	switch cfg.HistoryBackend {
	case config.HistoryRedis:
		redisStore, err := history.NewRedisStore(ctx, cfg.RedisAddr, cfg.MaxHistory)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = redisStore.Close() })
		hist = redisStore
		logger.Info("history backend: redis", "addr", cfg.RedisAddr)
	default:
		hist = history.NewMemoryStore(cfg.MaxHistory)
		logger.Info("history backend: memory", "window", cfg.MaxHistory)
	}

	var auditStore audit.Store
	switch cfg.AuditBackend {
	case config.AuditPostgres:
		pg, err := audit.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		auditStore = pg
		logger.Info("audit backend: postgres")
	case config.AuditMemory:
		auditStore = audit.NewMemoryStore()
		logger.Info("audit backend: memory")
	default:
		sq, err := audit.NewSQLiteStore(ctx, cfg.AuditPath)
		if err != nil {
			return nil, nil, err
		}
		auditStore = sq
		logger.Info("audit backend: sqlite", "path", cfg.AuditPath)
	}
	closers = append(closers, func() { _ = auditStore.Close() })

	var escalator oracle.Escalator
	switch cfg.OracleProvider {
	case config.ProviderNone:
		logger.Info("oracle disabled, local scoring only")
	case config.ProviderSemantic:
		baseURL := cfg.OracleBaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		// The chat-model default does not apply here; an unset model lets
		// the escalator pick its embedding default.
		model := config.GetEnv("SENTINEL_ORACLE_MODEL", "")
		seedCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		sem, err := oracle.NewSemanticEscalator(seedCtx, model, baseURL)
		cancel()
		if err != nil {
			logger.Warn("semantic oracle unavailable, local scoring only", "err", err)
		} else {
			escalator = sem
			logger.Info("oracle enabled: semantic similarity", "embeddings", baseURL)
		}
	default:
		escalator = oracle.NewRemoteEscalator(cfg, logger)
		logger.Info("oracle enabled", "provider", cfg.OracleProvider, "model", cfg.OracleModel)
	}

	engine, err := decision.NewEngine(cfg.BlockThreshold, cfg.SanitizeThreshold)
	if err != nil {
		return nil, nil, err
	}

	thresholds := temporal.Thresholds{
		EscalationRate: cfg.EscalationRate,
		RoleShiftCount: cfg.RoleShiftCount,
		OverrideCount:  cfg.OverrideCount,
	}

	g := guard.New(
		detect.NewClassifier(catalog, logger),
		temporal.NewAnalyzer(hist, catalog, thresholds),
		score.NewScorer(catalog, escalator, cfg.SanitizeThreshold, cfg.BlockThreshold, logger),
		engine,
		hist,
		auditStore,
		logger,
	)

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return g, cleanup, nil
}

func runServer(cfg *config.Config) {
	logger := telemetry.NewLogger(cfg.LogLevel)

	g, cleanup, err := buildGuard(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	app := fiber.New(fiber.Config{
		AppName: "Sentinel",
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "Sentinel",
			"version": Version,
			"status":  "operational",
		})
	})

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "version": Version})
	})

	app.Post("/analyze", func(c fiber.Ctx) error {
		var req struct {
			UserID string `json:"user_id"`
			Prompt string `json:"prompt"`
		}
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if req.UserID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id field is required"})
		}
		if req.Prompt == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "prompt field is required"})
		}

		result, err := g.Analyze(c.Context(), req.UserID, req.Prompt)
		if err != nil {
			logger.Error("analysis failed", "user_id", req.UserID, "err", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "analysis failed"})
		}
		return c.JSON(result)
	})

	app.Get("/history/:user_id", func(c fiber.Ctx) error {
		limit := queryInt(c, "limit", 0)
		records, err := g.History(c.Context(), c.Params("user_id"), limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "history lookup failed"})
		}
		return c.JSON(fiber.Map{
			"user_id": c.Params("user_id"),
			"history": records,
		})
	})

	app.Delete("/history/:user_id", func(c fiber.Ctx) error {
		if err := g.ClearHistory(c.Context(), c.Params("user_id")); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "history clear failed"})
		}
		return c.JSON(fiber.Map{"user_id": c.Params("user_id"), "cleared": true})
	})

	app.Get("/audit/user/:user_id", func(c fiber.Ctx) error {
		limit := queryInt(c, "limit", audit.DefaultQueryLimit)
		logs, err := g.AuditLogs(c.Context(), c.Params("user_id"), limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "audit lookup failed"})
		}
		return c.JSON(fiber.Map{
			"user_id": c.Params("user_id"),
			"logs":    logs,
		})
	})

	app.Get("/audit/blocked", func(c fiber.Ctx) error {
		limit := queryInt(c, "limit", audit.DefaultQueryLimit)
		logs, err := g.BlockedLogs(c.Context(), limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "audit lookup failed"})
		}
		return c.JSON(fiber.Map{"logs": logs})
	})

	app.Get("/stats", func(c fiber.Ctx) error {
		stats, err := g.Statistics(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "statistics failed"})
		}
		return c.JSON(stats)
	})

	logger.Info("sentinel listening", "port", cfg.Port)
	logger.Info("endpoints",
		"analyze", "POST /analyze",
		"history", "GET|DELETE /history/:user_id",
		"audit", "GET /audit/user/:user_id, GET /audit/blocked",
		"stats", "GET /stats",
	)

	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func queryInt(c fiber.Ctx, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

// runCLIScan analyzes one prompt with an in-memory pipeline and prints the
// decision as JSON. No history, no audit file, no oracle.
func runCLIScan(prompt string) {
	logger := telemetry.NewLogger("error")

	cfg := config.NewDefaultConfig()
	cfg.OracleProvider = config.ProviderNone
	cfg.HistoryBackend = config.HistoryMemory
	cfg.AuditBackend = config.AuditMemory

	g, cleanup, err := buildGuard(context.Background(), cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	result, err := g.Analyze(context.Background(), "cli", prompt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	output, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(output))
}
