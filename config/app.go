package config

import (
	"os"
	"strconv"
	"time"
)

// Settings holds the orchestration knobs. Everything comes from the
// environment with sane defaults so a bare deploy still works.
type Settings struct {
	Port      string
	JWTSecret string

	// conversation window
	ContextWindowSize  int
	SessionIdleTimeout time.Duration
	SessionSweepEvery  time.Duration

	// gateway
	GatewayTimeout time.Duration
	GatewayRetries int
	DefaultModel   string

	// per-user daily caps
	BudgetDailyTokens   int64
	BudgetDailyRequests int64

	// providers
	OpenAIKey     string
	OpenAIBaseURL string // OpenRouter-compatible endpoints go here
	VertexProject string
	VertexRegion  string
}

func Load() Settings {
	return Settings{
		Port:      getEnv("PORT", "8080"),
		JWTSecret: getEnv("JWT_SECRET", ""),

		ContextWindowSize:  getEnvInt("CONTEXT_WINDOW_SIZE", 20),
		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		SessionSweepEvery:  getEnvDuration("SESSION_SWEEP_INTERVAL", time.Minute),

		GatewayTimeout: getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second),
		GatewayRetries: getEnvInt("GATEWAY_RETRIES", 2),
		DefaultModel:   getEnv("DEFAULT_MODEL", "gpt-4o-mini"),

		BudgetDailyTokens:   int64(getEnvInt("BUDGET_DAILY_TOKENS", 50000)),
		BudgetDailyRequests: int64(getEnvInt("BUDGET_DAILY_REQUESTS", 200)),

		OpenAIKey:     getEnv("OPENAI_API_KEY", os.Getenv("OPENROUTER_API_KEY")),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		VertexProject: getEnv("VERTEX_PROJECT_ID", ""),
		VertexRegion:  getEnv("VERTEX_REGION", "us-central1"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
